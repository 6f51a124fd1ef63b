package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/kafka"
)

type stubPublisher struct {
	got   []kafka.Event
	block bool
}

func (p *stubPublisher) Publish(ctx context.Context, event kafka.Event) error {
	if p.block {
		<-ctx.Done()
		return ctx.Err()
	}
	p.got = append(p.got, event)
	return nil
}

func (p *stubPublisher) Close() error { return nil }

func TestPublish(t *testing.T) {
	pub := &stubPublisher{}
	ev := NewIndexBuilt(10, 4, 12, "/data/index")
	if err := Publish(context.Background(), pub, ev, time.Second); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(pub.got) != 1 || pub.got[0].Key != ev.BuildID {
		t.Fatalf("published = %+v", pub.got)
	}
}

func TestPublishTimesOut(t *testing.T) {
	pub := &stubPublisher{block: true}
	err := Publish(context.Background(), pub, NewIndexBuilt(1, 1, 1, ""), 20*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestHandler(t *testing.T) {
	var got IndexBuilt
	h := Handler(func(ctx context.Context, ev IndexBuilt) error {
		got = ev
		return nil
	})

	want := NewIndexBuilt(3, 2, 1, "/idx")
	value, _ := json.Marshal(want)
	if err := h(context.Background(), []byte(want.BuildID), value); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got.BuildID != want.BuildID || got.Documents != 3 {
		t.Errorf("got = %+v", got)
	}

	if err := h(context.Background(), nil, []byte("garbage")); err != nil {
		t.Errorf("bad payload should be skipped, got %v", err)
	}
}

func TestHandlerPropagatesFailure(t *testing.T) {
	h := Handler(func(ctx context.Context, ev IndexBuilt) error {
		return errors.New("reload failed")
	})
	value, _ := json.Marshal(NewIndexBuilt(1, 1, 1, ""))
	if err := h(context.Background(), nil, value); err == nil {
		t.Fatal("expected error so the message is not committed")
	}
}
