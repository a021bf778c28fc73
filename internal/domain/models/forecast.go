package models

import (
	"strings"
	"time"
)

type ModelKind string

const (
	ModelLSTM ModelKind = "LSTM"
	ModelGRU  ModelKind = "GRU"
	// ModelGARCH is known to the backend but cannot be requested from here.
	ModelGARCH ModelKind = "GARCH"
)

// ParseModelKind upper-cases s; ok reports whether the result names a known model.
func ParseModelKind(s string) (kind ModelKind, ok bool) {
	kind = ModelKind(strings.ToUpper(strings.TrimSpace(s)))
	switch kind {
	case ModelLSTM, ModelGRU, ModelGARCH:
		return kind, true
	}
	return kind, false
}

// Supported reports whether forecasts can be submitted for the model.
func (m ModelKind) Supported() bool {
	return m == ModelLSTM || m == ModelGRU
}

type ForecastPoint struct {
	Date           string  `json:"date"`
	PredictedValue float64 `json:"predictedValue"`
}

// ForecastRecord is one forecast run as returned by the backend.
type ForecastRecord struct {
	ID          int64           `json:"id"`
	Model       ModelKind       `json:"model"`
	SubmittedBy string          `json:"submittedBy"`
	CreatedAt   string          `json:"createdAt"`   // raw backend value, may be unparsable
	HorizonDays int             `json:"horizonDays"` // 0 when the backend omitted it
	Results     []ForecastPoint `json:"results"`
}

// SelectLatest returns the record with the highest ID.
// Array position and dates are ignored.
func SelectLatest(records []ForecastRecord) (ForecastRecord, bool) {
	if len(records) == 0 {
		return ForecastRecord{}, false
	}
	latest := records[0]
	for _, r := range records[1:] {
		if r.ID > latest.ID {
			latest = r
		}
	}
	return latest, true
}

type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type Signal string

const (
	SignalSell Signal = "SELL"
	SignalBuy  Signal = "BUY"
	SignalHold Signal = "HOLD"
)
