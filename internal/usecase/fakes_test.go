package usecase

import (
	"context"
	"sync"
	"time"

	"ForecastDesk/internal/domain/models"
)

type fakeGateway struct {
	mu sync.Mutex

	listFn   func(ctx context.Context, call int) ([]models.ForecastRecord, error)
	submitFn func(ctx context.Context, model string, horizon int, requester string) (models.ForecastRecord, error)

	listCalls   int
	submitCalls int
	requesters  []string
}

func (g *fakeGateway) ListForecasts(ctx context.Context) ([]models.ForecastRecord, error) {
	g.mu.Lock()
	g.listCalls++
	call := g.listCalls
	fn := g.listFn
	g.mu.Unlock()
	if fn == nil {
		return []models.ForecastRecord{}, nil
	}
	return fn(ctx, call)
}

func (g *fakeGateway) SubmitForecast(ctx context.Context, model string, horizon int, requester string) (models.ForecastRecord, error) {
	g.mu.Lock()
	g.submitCalls++
	g.requesters = append(g.requesters, requester)
	fn := g.submitFn
	g.mu.Unlock()
	if fn == nil {
		return models.ForecastRecord{ID: 100, Model: models.ModelKind(model)}, nil
	}
	return fn(ctx, model, horizon, requester)
}

func (g *fakeGateway) counts() (list, submit int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listCalls, g.submitCalls
}

type fakePrices struct {
	fn func(ctx context.Context) ([]models.PricePoint, error)
}

func (p *fakePrices) FetchRecentPrices(ctx context.Context, _ string, _ int) ([]models.PricePoint, error) {
	if p.fn == nil {
		return []models.PricePoint{}, nil
	}
	return p.fn(ctx)
}

type staticResolver struct{}

func (staticResolver) Resolve(_ context.Context, id string) (string, error) { return id, nil }

type recordingEvents struct {
	mu     sync.Mutex
	events []models.WorkflowEvent
}

func (r *recordingEvents) Publish(_ context.Context, e models.WorkflowEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEvents) Close() error { return nil }

func (r *recordingEvents) types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func points(values ...float64) []models.PricePoint {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.PricePoint, 0, len(values))
	for i, v := range values {
		out = append(out, models.PricePoint{Timestamp: base.AddDate(0, 0, i), Value: v})
	}
	return out
}

func record(id int64, values ...float64) models.ForecastRecord {
	rec := models.ForecastRecord{ID: id, Model: models.ModelLSTM, CreatedAt: "2024-05-01 17:00:00", Results: []models.ForecastPoint{}}
	for _, v := range values {
		rec.Results = append(rec.Results, models.ForecastPoint{Date: "2024-05-02 17:00:00", PredictedValue: v})
	}
	return rec
}
