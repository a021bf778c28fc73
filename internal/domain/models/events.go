package models

import "time"

type EventType string

const (
	EventWorkflowActivated    EventType = "workflow.activated"
	EventForecastSubmitted    EventType = "forecast.submitted"
	EventForecastSubmitFailed EventType = "forecast.submit_failed"
)

// WorkflowEvent is published to the event stream on workflow milestones.
type WorkflowEvent struct {
	Type        EventType `json:"type"`
	Identifier  string    `json:"identifier"`
	Generation  uint64    `json:"generation"`
	Model       ModelKind `json:"model,omitempty"`
	HorizonDays int       `json:"horizonDays,omitempty"`
	ForecastID  int64     `json:"forecastId,omitempty"`
	State       string    `json:"state,omitempty"`
	ErrorKind   ErrorKind `json:"errorKind,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
