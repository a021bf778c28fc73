package repository

import (
	"context"

	"ForecastDesk/internal/domain/models"
)

// ForecastGateway is the forecasting backend as seen by the workflow.
type ForecastGateway interface {
	ListForecasts(ctx context.Context) ([]models.ForecastRecord, error)
	SubmitForecast(ctx context.Context, model string, horizonDays int, requester string) (models.ForecastRecord, error)
}

// PriceFeed returns recent prices in ascending timestamp order.
type PriceFeed interface {
	FetchRecentPrices(ctx context.Context, symbol string, windowDays int) ([]models.PricePoint, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, e models.WorkflowEvent) error
	Close() error
}

type Metrics interface {
	RecordFetch(source, result string)
	RecordSubmission(model, result string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordSignal(symbol, signal string)
	RecordLatency(op string, seconds float64)
}
