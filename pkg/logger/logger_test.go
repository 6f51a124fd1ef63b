package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "WARN", "json")
	log.Info("hidden")
	log.Warn("shown", "component", "frontier")

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("expected exactly one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "shown" || rec["component"] != "frontier" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-42")
	if got := RequestID(ctx); got != "req-42" {
		t.Errorf("RequestID = %q, want req-42", got)
	}
	if got := RequestID(context.Background()); got != "" {
		t.Errorf("RequestID on empty context = %q", got)
	}
}

func TestContextRequestIDTagged(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "text").With("component", "search-handler")
	ctx := WithRequestID(context.Background(), "req-7")

	log.InfoContext(ctx, "query served")
	log.Info("no context")
	log.With("request_id", "req-7").InfoContext(ctx, "already bound")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "request_id=req-7") {
		t.Errorf("context record not tagged: %s", lines[0])
	}
	if strings.Contains(lines[1], "request_id") {
		t.Errorf("record without context tagged: %s", lines[1])
	}
	if n := strings.Count(lines[2], "request_id="); n != 1 {
		t.Errorf("bound logger repeated request_id %d times: %s", n, lines[2])
	}
}
