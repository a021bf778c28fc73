// Package pricefeed fetches recent market prices from a CoinGecko-style API.
package pricefeed

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"ForecastDesk/internal/domain/models"
	xhttp "ForecastDesk/pkg/http"
	applogger "ForecastDesk/pkg/logger"
)

const unavailableMessage = "Price history is unavailable right now."

type Client struct {
	baseURL    string
	vsCurrency string
	http       *xhttp.Client
	l          *applogger.Logger
}

// NewClient expects hc to carry the feed's rate limit.
func NewClient(baseURL, vsCurrency string, hc *xhttp.Client, l *applogger.Logger) *Client {
	if l == nil {
		l = applogger.Nop()
	}
	if vsCurrency == "" {
		vsCurrency = "usd"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		vsCurrency: vsCurrency,
		http:       hc,
		l:          l.Component("pricefeed"),
	}
}

type marketChart struct {
	// Pointers let a null inside a pair be told apart from a zero price.
	Prices [][]*float64 `json:"prices"`
}

func unavailable(err error) error {
	return models.NewError(models.KindPriceFeedUnavailable, models.SourcePrice, unavailableMessage, err)
}

// FetchRecentPrices returns windowDays of prices for symbol, oldest first.
// Any failure, including one malformed pair, returns no data.
func (c *Client) FetchRecentPrices(ctx context.Context, symbol string, windowDays int) ([]models.PricePoint, error) {
	if windowDays <= 0 {
		return nil, unavailable(fmt.Errorf("window must be positive, got %d", windowDays))
	}
	if strings.TrimSpace(symbol) == "" {
		return nil, unavailable(fmt.Errorf("symbol is required"))
	}

	start := time.Now()
	var chart marketChart
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/coins/" + url.PathEscape(symbol) + "/market_chart",
		QueryParams: map[string][]string{
			"vs_currency": {c.vsCurrency},
			"days":        {strconv.Itoa(windowDays)},
		},
	}, &chart)
	if err != nil {
		return nil, unavailable(err)
	}
	if chart.Prices == nil {
		return nil, unavailable(fmt.Errorf("response has no prices"))
	}

	points := make([]models.PricePoint, 0, len(chart.Prices))
	for i, pair := range chart.Prices {
		if len(pair) != 2 || pair[0] == nil || pair[1] == nil {
			return nil, unavailable(fmt.Errorf("price %d is not a [timestamp, value] pair", i))
		}
		points = append(points, models.PricePoint{
			Timestamp: time.UnixMilli(int64(*pair[0])).UTC(),
			Value:     *pair[1],
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	c.l.Debug("price history fetched",
		applogger.String("symbol", symbol),
		applogger.Int("points", len(points)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return points, nil
}
