package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Field aliases accepted from the backend, in order of preference.
var (
	submittedByKeys = []string{"submittedBy", "requester", "username_predict", "username"}
	createdAtKeys   = []string{"createdAt", "date"}
	horizonKeys     = []string{"horizonDays", "forecast_days", "days"}
	resultsKeys     = []string{"results", "forecast_result"}
	predictedKeys   = []string{"predictedValue", "predicted_value"}
)

func malformed(format string, args ...interface{}) *Error {
	return NewError(KindMalformedResponse, SourceForecast,
		"The backend returned a forecast that could not be read.", fmt.Errorf(format, args...))
}

// Normalize converts one raw backend record into a ForecastRecord.
//
// A missing horizon becomes 0 and a results field holding a bare string
// becomes an empty sequence. A missing or non-integer id, or a result point
// without a numeric value, yields a MalformedResponse error.
func Normalize(raw json.RawMessage) (ForecastRecord, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return ForecastRecord{}, malformed("record: %v", err)
	}

	id, ok := intField(fields, "id")
	if !ok {
		return ForecastRecord{}, malformed("record has no integer id")
	}

	rec := ForecastRecord{
		ID:          id,
		SubmittedBy: stringField(fields, submittedByKeys...),
		CreatedAt:   stringField(fields, createdAtKeys...),
	}

	if m := stringField(fields, "model"); m != "" {
		rec.Model, _ = ParseModelKind(m)
	}

	for _, key := range horizonKeys {
		if h, ok := intField(fields, key); ok && h > 0 && h <= math.MaxInt32 {
			rec.HorizonDays = int(h)
			break
		}
	}

	results, err := resultsField(fields)
	if err != nil {
		return ForecastRecord{}, malformed("record %d: %v", id, err)
	}
	rec.Results = results

	return rec, nil
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, fmt.Errorf("not an object")
	}
	return fields, nil
}

func lookup(fields map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		v, ok := fields[k]
		if ok && !isNull(v) {
			return v, true
		}
	}
	return nil, false
}

func isNull(v json.RawMessage) bool {
	return len(bytes.TrimSpace(v)) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func stringField(fields map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		v, ok := lookup(fields, k)
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func intField(fields map[string]json.RawMessage, key string) (int64, bool) {
	v, ok := lookup(fields, key)
	if !ok {
		return 0, false
	}
	// Quoted numbers are rejected.
	if c := bytes.TrimSpace(v)[0]; c != '-' && (c < '0' || c > '9') {
		return 0, false
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return i, true
}

func resultsField(fields map[string]json.RawMessage) ([]ForecastPoint, error) {
	v, ok := lookup(fields, resultsKeys...)
	if !ok {
		return []ForecastPoint{}, nil
	}

	switch bytes.TrimSpace(v)[0] {
	case '"':
		// Older backends store the result as an unparsed string.
		return []ForecastPoint{}, nil
	case '[':
	default:
		return nil, fmt.Errorf("results is neither a list nor a string")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return nil, fmt.Errorf("results: %w", err)
	}

	points := make([]ForecastPoint, 0, len(items))
	for i, item := range items {
		pf, err := decodeObject(item)
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}
		pv, ok := lookup(pf, predictedKeys...)
		if !ok {
			return nil, fmt.Errorf("result %d has no predicted value", i)
		}
		var value float64
		if err := json.Unmarshal(pv, &value); err != nil {
			return nil, fmt.Errorf("result %d predicted value: %w", i, err)
		}
		points = append(points, ForecastPoint{
			Date:           stringField(pf, "date"),
			PredictedValue: value,
		})
	}
	return points, nil
}
