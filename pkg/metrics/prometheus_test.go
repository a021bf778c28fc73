package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordFetch("price", "ok")
	r.RecordFetch("price", "ok")
	r.RecordSubmission("LSTM", "error")
	r.RecordError("network")
	r.RecordLastPrice("ethereum", 3012.5)
	r.RecordSignal("ethereum", "BUY")
	r.RecordLatency("price_history", 0.2)

	if got := testutil.ToFloat64(r.fetches.WithLabelValues("price", "ok")); got != 2 {
		t.Fatalf("fetches = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.lastPrice.WithLabelValues("ethereum")); got != 3012.5 {
		t.Fatalf("last price = %v", got)
	}
	if got := testutil.ToFloat64(r.signals.WithLabelValues("ethereum", "BUY")); got != 1 {
		t.Fatalf("signals = %v", got)
	}
	if n := testutil.CollectAndCount(r.latency); n != 1 {
		t.Fatalf("latency series = %d, want 1", n)
	}

	// A second recorder on its own registry must not collide.
	_ = New(prometheus.NewRegistry())
}
