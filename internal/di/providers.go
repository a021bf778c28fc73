package di

import (
	"context"
	"fmt"
	"time"

	domrepo "ForecastDesk/internal/domain/repository"
	domsvc "ForecastDesk/internal/domain/service"
	"ForecastDesk/internal/handler/api"
	internalrepo "ForecastDesk/internal/repository"
	"ForecastDesk/internal/service/backend"
	"ForecastDesk/internal/service/pricefeed"
	"ForecastDesk/internal/service/ratelimit"
	"ForecastDesk/internal/service/requester"
	"ForecastDesk/internal/usecase"
	"ForecastDesk/pkg/config"
	xhttp "ForecastDesk/pkg/http"
	pkgkafka "ForecastDesk/pkg/kafka"
	"ForecastDesk/pkg/lock"
	applogger "ForecastDesk/pkg/logger"
	"ForecastDesk/pkg/metrics"
	"ForecastDesk/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

const userAgent = "ForecastDesk/1.0"

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideLogger creates the application logger. Error logs are also
// aggregated to Kafka when the log collector is enabled.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	if cfg.LogCollector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.LogCollector.Interval,
			CountThreshold: cfg.LogCollector.CountThreshold,
			Topic:          cfg.LogCollector.Topic,
			Publisher:      internalrepo.NewLogSink(producer),
		})
	}

	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideEventPublisher publishes workflow events to Kafka, or drops them when Kafka is disabled.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.EventPublisher {
	if producer == nil {
		return internalrepo.NopPublisher{}
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideBackendClient creates the forecast backend client.
func ProvideBackendClient(cfg *config.Config, l *applogger.Logger) *backend.Client {
	opts := []xhttp.ClientOption{
		xhttp.WithTimeout(cfg.HTTPClient.Timeout),
		xhttp.WithUserAgent(userAgent),
	}
	if cfg.HTTPClient.BackendRPS > 0 {
		opts = append(opts, xhttp.WithRateLimit(cfg.HTTPClient.BackendRPS, 1))
	}
	return backend.NewClient(cfg.Workflow.BackendBaseURL, xhttp.NewClient(opts...), l)
}

func ProvideForecastGateway(c *backend.Client) domrepo.ForecastGateway {
	return c
}

// ProvidePriceFeed creates the public price feed client. The feed is rate
// limited upstream, so outbound calls are paced.
func ProvidePriceFeed(cfg *config.Config, l *applogger.Logger) domrepo.PriceFeed {
	hc := xhttp.NewClient(
		xhttp.WithTimeout(cfg.HTTPClient.Timeout),
		xhttp.WithUserAgent(userAgent),
		xhttp.WithRateLimit(cfg.HTTPClient.PriceFeedRPS, cfg.HTTPClient.PriceFeedBurst),
	)
	return pricefeed.NewClient(cfg.Workflow.PriceFeedBaseURL, cfg.Workflow.VsCurrency, hc, l)
}

func ProvideRequesterResolver(cfg *config.Config, c *backend.Client) (domsvc.RequesterResolver, error) {
	r, err := requester.New(cfg.Workflow.Requester.Strategy, c)
	if err != nil {
		return nil, fmt.Errorf("requester resolver: %w", err)
	}
	return r, nil
}

// ProvideLocker uses Redis when enabled so replicas share the submit guard.
func ProvideLocker(cfg *config.Config) (lock.Locker, error) {
	if !cfg.Redis.Enabled {
		return lock.NewMemoryLocker(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lk, err := lock.NewRedisLocker(ctx,
		lock.WithRedisAddr(cfg.Redis.Addr),
		lock.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		lock.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis locker: %w", err)
	}
	return lk, nil
}

// ProvideRegistry creates the per-identifier workflow registry.
func ProvideRegistry(
	cfg *config.Config,
	forecasts domrepo.ForecastGateway,
	prices domrepo.PriceFeed,
	resolver domsvc.RequesterResolver,
	events domrepo.EventPublisher,
	m domrepo.Metrics,
	locker lock.Locker,
	l *applogger.Logger,
) *usecase.Registry {
	return usecase.NewRegistry(func(id string) *usecase.Workflow {
		return usecase.NewWorkflow(
			usecase.WorkflowConfig{
				Identifier:    id,
				Symbol:        cfg.Workflow.Symbol,
				WindowDays:    cfg.Workflow.PriceWindowDays,
				PageSize:      cfg.Workflow.PageSize,
				SubmitLockTTL: cfg.Workflow.SubmitLockTTL,
			},
			forecasts, prices, resolver,
			usecase.WithEvents(events),
			usecase.WithMetrics(m),
			usecase.WithLocker(locker),
			usecase.WithLogger(l),
		)
	})
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Workflow.SubmitRateLimit.Capacity, cfg.Workflow.SubmitRateLimit.RefillPerSec)
}

func ProvideHTTPHandler(l *applogger.Logger, registry *usecase.Registry, limiter *ratelimit.Limiter) xhttp.Handler {
	return api.NewWorkflowEchoHandler(l, registry, limiter)
}

// ProvideHTTPServer creates the Echo server with routes registered.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h xhttp.Handler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, h,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequestThreshold(cfg.Server.SlowRequest),
		xhttp.WithCORS(true, cfg.Server.AllowOrigins...),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	registry *usecase.Registry,
	limiter *ratelimit.Limiter,
	events domrepo.EventPublisher,
	locker lock.Locker,
) *server.App {
	return server.New(cfg, l, srv, registry, limiter, events, locker)
}
