package middleware

import (
	"time"

	applogger "ForecastDesk/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs one line per request. 5xx are logged as errors,
// requests slower than slow (when positive) as warnings.
func RequestLogging(l *applogger.Logger, slow time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			latency := time.Since(start)
			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("route", routeLabel(c)),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", res.Status),
				applogger.Int64("bytes", res.Size),
				applogger.Duration("duration_ms", latency),
			}

			switch {
			case res.Status >= 500:
				l.Error("http request failed", fields...)
			case slow > 0 && latency >= slow:
				l.Warn("http request slow", fields...)
			default:
				l.Debug("http request", fields...)
			}

			return nil
		}
	}
}
