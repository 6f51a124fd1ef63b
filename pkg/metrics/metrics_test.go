package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.DocProcessed("indexed")
	m.SetQueueDepth(3)
	m.BatchFlushed(nil)
	m.ShardMerged("a", 10, time.Millisecond)
	m.ShardCacheLookup(true)
	m.ShardEvicted()
	m.ResultCacheLookup(false)
	m.QueryServed(2, false, time.Millisecond, nil)
}

func TestRecording(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.DocProcessed("duplicate")
	m.DocProcessed("indexed")
	m.BatchFlushed(errors.New("disk full"))
	m.QueryServed(0, false, time.Millisecond, nil)

	if got := testutil.ToFloat64(m.DuplicatesTotal); got != 1 {
		t.Errorf("duplicates = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DocsProcessedTotal.WithLabelValues("indexed")); got != 1 {
		t.Errorf("indexed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.BatchFlushesTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("flush errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("zero_result")); got != 1 {
		t.Errorf("zero results = %v, want 1", got)
	}
}

func TestStartServerServesMetrics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	shutdown, err := StartServer(port)
	if err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	defer shutdown(context.Background())

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", port))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if _, err := StartServer(port); err == nil {
		t.Error("second bind of the same port succeeded")
	}
}
