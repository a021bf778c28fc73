package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"ForecastDesk/internal/domain/models"
	xhttp "ForecastDesk/pkg/http"
)

func TestFetchRecentPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/ethereum/market_chart" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if q := r.URL.Query(); q.Get("vs_currency") != "usd" || q.Get("days") != "30" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"prices":[[1714600000000,3020.5],[1714500000000,3000.25],[1714700000000,3050]]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "usd", xhttp.NewClient(), nil)
	got, err := c.FetchRecentPrices(context.Background(), "ethereum", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d points, want 3", len(got))
	}
	want := []float64{3000.25, 3020.5, 3050}
	for i, p := range got {
		if p.Value != want[i] {
			t.Fatalf("point %d = %v, want %v", i, p.Value, want[i])
		}
		if i > 0 && !got[i-1].Timestamp.Before(p.Timestamp) {
			t.Fatalf("points not ascending at %d", i)
		}
	}
	if got[0].Timestamp.UnixMilli() != 1714500000000 {
		t.Fatalf("timestamp = %d", got[0].Timestamp.UnixMilli())
	}
}

func TestFetchRecentPricesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "throttled", status: http.StatusTooManyRequests, body: `{"status":{"error_code":429}}`},
		{name: "not json", status: http.StatusOK, body: `oops`},
		{name: "missing prices", status: http.StatusOK, body: `{"market_caps":[]}`},
		{name: "short pair", status: http.StatusOK, body: `{"prices":[[1714500000000,3000],[1714600000000]]}`},
		{name: "null value", status: http.StatusOK, body: `{"prices":[[1714500000000,null]]}`},
		{name: "string value", status: http.StatusOK, body: `{"prices":[[1714500000000,"3000"]]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "usd", xhttp.NewClient(), nil)
			got, err := c.FetchRecentPrices(context.Background(), "ethereum", 30)
			if !models.IsKind(err, models.KindPriceFeedUnavailable) {
				t.Fatalf("expected price feed unavailable, got %v", err)
			}
			if got != nil {
				t.Fatalf("expected no data, got %v", got)
			}
		})
	}
}

func TestFetchRecentPricesRejectsBadWindow(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "usd", xhttp.NewClient(), nil)
	if _, err := c.FetchRecentPrices(context.Background(), "ethereum", 0); !models.IsKind(err, models.KindPriceFeedUnavailable) {
		t.Fatalf("expected price feed unavailable, got %v", err)
	}
}
