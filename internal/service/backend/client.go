// Package backend talks to the forecasting backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"ForecastDesk/internal/domain/models"
	xhttp "ForecastDesk/pkg/http"
	applogger "ForecastDesk/pkg/logger"
	"ForecastDesk/pkg/util"
)

const rejectionFallback = "The forecast service rejected the request."

type Client struct {
	baseURL string
	http    *xhttp.Client
	l       *applogger.Logger
}

func NewClient(baseURL string, hc *xhttp.Client, l *applogger.Logger) *Client {
	if l == nil {
		l = applogger.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		l:       l.Component("backend"),
	}
}

// listEnvelope covers the keys different backend versions used for the list.
type listEnvelope struct {
	Forecasts json.RawMessage `json:"forecasts"`
	Predict   json.RawMessage `json:"predict"`
	Data      json.RawMessage `json:"data"`
}

func (e listEnvelope) records() json.RawMessage {
	for _, raw := range []json.RawMessage{e.Forecasts, e.Predict, e.Data} {
		if len(raw) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return raw
		}
	}
	return nil
}

// ListForecasts returns every record the backend holds, in the order received.
// A 404 means there are none.
func (c *Client) ListForecasts(ctx context.Context) ([]models.ForecastRecord, error) {
	var body []byte
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/forecasts",
	}, &body)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return []models.ForecastRecord{}, nil
		}
		return nil, classify(models.SourceForecast, err)
	}

	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, malformed(fmt.Errorf("list envelope: %w", err))
	}
	raw := env.records()
	if raw == nil {
		return nil, malformed(errors.New("list payload has no forecasts key"))
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, malformed(fmt.Errorf("forecasts is not a list: %w", err))
	}

	records := make([]models.ForecastRecord, 0, len(items))
	for i, item := range items {
		rec, err := models.Normalize(item)
		if err != nil {
			c.l.Warn("skipping unreadable forecast record",
				applogger.Int("index", i),
				applogger.Error(err),
			)
			continue
		}
		records = append(records, rec)
	}

	if len(items) > 0 && len(records) == 0 {
		return nil, malformed(fmt.Errorf("none of %d forecast records could be read", len(items)))
	}
	return records, nil
}

// SubmitForecast validates the request and posts it. Invalid input never
// reaches the network. The returned record is a hint; callers re-list to confirm.
func (c *Client) SubmitForecast(ctx context.Context, model string, horizonDays int, requester string) (models.ForecastRecord, error) {
	kind, err := models.ValidateSubmission(ctx, model, horizonDays)
	if err != nil {
		return models.ForecastRecord{}, err
	}

	var body []byte
	err = c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.baseURL + "/forecasts/" + url.PathEscape(string(kind)),
		Body: models.SubmitForecastPayload{
			Requester:   requester,
			HorizonDays: horizonDays,
		},
	}, &body)
	if err != nil {
		return models.ForecastRecord{}, classify(models.SourceSubmit, err)
	}

	rec, err := models.Normalize(unwrapData(body))
	if err != nil {
		// The submission was accepted; an unreadable echo only loses the hint.
		c.l.Debug("submit response not a forecast record", applogger.Error(err))
		return models.ForecastRecord{Model: kind, SubmittedBy: requester, HorizonDays: horizonDays}, nil
	}
	return rec, nil
}

// LookupRequester resolves an identifier to a username through GET /users/{id}.
func (c *Client) LookupRequester(ctx context.Context, identifier string) (string, error) {
	var resp struct {
		Data struct {
			Username string `json:"username"`
			User     string `json:"user"`
		} `json:"data"`
		Username string `json:"username"`
	}
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/users/" + url.PathEscape(identifier),
	}, &resp)
	if err != nil {
		return "", classify(models.SourceRequester, err)
	}

	for _, name := range []string{resp.Data.Username, resp.Data.User, resp.Username} {
		if strings.TrimSpace(name) != "" {
			return name, nil
		}
	}
	return "", models.NewError(models.KindMalformedResponse, models.SourceRequester,
		"The user record has no username.", fmt.Errorf("user %q", identifier))
}

// unwrapData returns body.data when the backend wrapped the record.
func unwrapData(body []byte) json.RawMessage {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 && env.Data[0] == '{' {
		return env.Data
	}
	return body
}

func malformed(err error) error {
	return models.NewError(models.KindMalformedResponse, models.SourceForecast,
		"The backend returned a forecast that could not be read.", err)
}

// classify maps transport failures onto the domain taxonomy.
func classify(source models.Source, err error) error {
	var se *xhttp.StatusError
	switch {
	case errors.As(err, &se):
		return models.NewError(models.KindBackendRejection, source, rejectionMessage(se.Body), err)
	case errors.Is(err, xhttp.ErrDecode):
		return models.NewError(models.KindMalformedResponse, source,
			"The backend returned a response that could not be read.", err)
	default:
		return models.NewError(models.KindNetwork, source,
			"Unable to reach the forecast service.", err)
	}
}

// rejectionMessage pulls the backend's explanation out of an error body.
// Older backends send {"error": true, "message": "..."}; newer ones send
// {"error": "..."}.
func rejectionMessage(body []byte) string {
	var env struct {
		Error   json.RawMessage `json:"error"`
		Message json.RawMessage `json:"message"`
		Detail  json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return rejectionFallback
	}
	candidates := make([]string, 0, 3)
	for _, raw := range []json.RawMessage{env.Error, env.Message, env.Detail} {
		var s string
		if len(raw) > 0 && json.Unmarshal(raw, &s) == nil {
			candidates = append(candidates, s)
		}
	}
	if msg := util.FirstNonEmpty(candidates...); msg != "" {
		return msg
	}
	return rejectionFallback
}
