package models

import (
	"context"
	"fmt"
	"strings"

	xhttp "ForecastDesk/pkg/http"
)

// SubmitForecastRequest is the BFF body for a new forecast.
type SubmitForecastRequest struct {
	Model       string `json:"model" validate:"required,oneof=LSTM GRU"`
	HorizonDays int    `json:"horizonDays" validate:"gt=0"`
}

// SubmitForecastPayload is the body sent to POST /forecasts/{model}.
type SubmitForecastPayload struct {
	Requester   string `json:"requester"`
	HorizonDays int    `json:"horizonDays"`
}

// ValidateSubmission checks model and horizon without touching the network.
func ValidateSubmission(ctx context.Context, model string, horizonDays int) (ModelKind, error) {
	kind, known := ParseModelKind(model)
	if known && !kind.Supported() {
		return kind, NewError(KindValidation, SourceValidation,
			fmt.Sprintf("model %s is not supported", kind), nil)
	}

	req := SubmitForecastRequest{Model: string(kind), HorizonDays: horizonDays}
	if errs := xhttp.ValidateStruct(ctx, &req); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Message)
		}
		return kind, NewError(KindValidation, SourceValidation, strings.Join(msgs, "; "), nil)
	}

	return kind, nil
}
