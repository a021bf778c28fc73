package usecase

import "ForecastDesk/internal/domain/models"

// Recommend compares a predicted value with the current price.
// It reports false when either input is missing.
func Recommend(currentPrice, predictedValue *float64) (models.Signal, bool) {
	if currentPrice == nil || predictedValue == nil {
		return "", false
	}
	switch {
	case *predictedValue < *currentPrice:
		return models.SignalSell, true
	case *predictedValue > *currentPrice:
		return models.SignalBuy, true
	default:
		return models.SignalHold, true
	}
}

// CurrentPrice is the value of the last point, or nil for no history.
func CurrentPrice(prices []models.PricePoint) *float64 {
	if len(prices) == 0 {
		return nil
	}
	v := prices[len(prices)-1].Value
	return &v
}

// FirstPrediction is the first forecast point's value, or nil when there is none.
func FirstPrediction(record *models.ForecastRecord) *float64 {
	if record == nil || len(record.Results) == 0 {
		return nil
	}
	v := record.Results[0].PredictedValue
	return &v
}

// RecommendFor compares the first forecast point of record with the last price.
func RecommendFor(prices []models.PricePoint, record *models.ForecastRecord) (models.Signal, bool) {
	return Recommend(CurrentPrice(prices), FirstPrediction(record))
}
