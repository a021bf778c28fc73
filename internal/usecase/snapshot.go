package usecase

import (
	"errors"

	"ForecastDesk/internal/domain/models"
)

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// MessageSource names one dismissible message slot of the view.
type MessageSource string

const (
	MessagePrice      MessageSource = "price"
	MessageForecast   MessageSource = "forecast"
	MessageSubmit     MessageSource = "submit"
	MessageValidation MessageSource = "validation"
	MessageNotice     MessageSource = "notice"
)

// ParseMessageSource reports whether s names a message slot.
func ParseMessageSource(s string) (MessageSource, bool) {
	switch src := MessageSource(s); src {
	case MessagePrice, MessageForecast, MessageSubmit, MessageValidation, MessageNotice:
		return src, true
	}
	return "", false
}

// messageSlot picks the slot an error is shown in.
func messageSlot(err error) MessageSource {
	var de *models.Error
	if !errors.As(err, &de) {
		return MessageSubmit
	}
	if de.Kind == models.KindValidation {
		return MessageValidation
	}
	switch de.Source {
	case models.SourcePrice:
		return MessagePrice
	case models.SourceForecast:
		return MessageForecast
	default:
		return MessageSubmit
	}
}

// Snapshot is the complete render state of a workflow at one transition.
type Snapshot struct {
	Identifier     string                   `json:"identifier"`
	Generation     uint64                   `json:"generation"`
	Version        uint64                   `json:"version"`
	State          State                    `json:"state"`
	Submitting     bool                     `json:"submitting"`
	Symbol         string                   `json:"symbol"`
	Prices         []models.PricePoint      `json:"prices"`
	CurrentPrice   *float64                 `json:"currentPrice"` // null renders as N/A
	Latest         *ForecastView            `json:"latest"`
	NoForecast     bool                     `json:"noForecast"`
	Page           PageView                 `json:"page"`
	Recommendation models.Signal            `json:"recommendation,omitempty"`
	Messages       map[MessageSource]string `json:"messages,omitempty"`
}

type ForecastView struct {
	ID               int64            `json:"id"`
	Model            models.ModelKind `json:"model"`
	SubmittedBy      string           `json:"submittedBy"`
	CreatedAt        string           `json:"createdAt"`
	CreatedAtDisplay string           `json:"createdAtDisplay"`
	HorizonDays      int              `json:"horizonDays,omitempty"`
	ResultCount      int              `json:"resultCount"`
}

type PageView struct {
	Number       int         `json:"number"`
	Size         int         `json:"size"`
	TotalPages   int         `json:"totalPages"`
	ShowControls bool        `json:"showControls"`
	Rows         []ResultRow `json:"rows"`
}

type ResultRow struct {
	Date           string  `json:"date"`
	DateDisplay    string  `json:"dateDisplay"`
	PredictedValue float64 `json:"predictedValue"`
}

func newForecastView(r *models.ForecastRecord) *ForecastView {
	return &ForecastView{
		ID:               r.ID,
		Model:            r.Model,
		SubmittedBy:      r.SubmittedBy,
		CreatedAt:        r.CreatedAt,
		CreatedAtDisplay: models.FormatTimestamp(r.CreatedAt),
		HorizonDays:      r.HorizonDays,
		ResultCount:      len(r.Results),
	}
}

func newPageView(results []models.ForecastPoint, pageSize, page int) PageView {
	total := TotalPages(len(results), pageSize)
	points := Paginate(results, pageSize, page)

	rows := make([]ResultRow, 0, len(points))
	for _, p := range points {
		rows = append(rows, ResultRow{
			Date:           p.Date,
			DateDisplay:    models.FormatTimestamp(p.Date),
			PredictedValue: p.PredictedValue,
		})
	}

	return PageView{
		Number:       page,
		Size:         pageSize,
		TotalPages:   total,
		ShowControls: total > 0,
		Rows:         rows,
	}
}
