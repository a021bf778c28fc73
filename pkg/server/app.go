package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "ForecastDesk/internal/domain/repository"
	"ForecastDesk/internal/service/ratelimit"
	"ForecastDesk/internal/usecase"
	"ForecastDesk/pkg/config"
	xhttp "ForecastDesk/pkg/http"
	"ForecastDesk/pkg/lock"
	applogger "ForecastDesk/pkg/logger"
)

const (
	sweepInterval = time.Minute
	limiterIdle   = 10 * time.Minute
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	registry   *usecase.Registry
	limiter    *ratelimit.Limiter
	events     domrepo.EventPublisher
	locker     lock.Locker
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	registry *usecase.Registry,
	limiter *ratelimit.Limiter,
	events domrepo.EventPublisher,
	locker lock.Locker,
) *App {
	return &App{
		cfg:        cfg,
		l:          l,
		httpServer: httpServer,
		registry:   registry,
		limiter:    limiter,
		events:     events,
		locker:     locker,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	a.l.Info("forecastdesk started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("backend", a.cfg.Workflow.BackendBaseURL),
		applogger.String("requester_strategy", a.cfg.Workflow.Requester.Strategy),
		applogger.Bool("kafka", a.cfg.Kafka.Enabled),
		applogger.Bool("redis", a.cfg.Redis.Enabled),
	)

	go a.sweep(ctx)

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) sweep(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweepOnce()
		}
	}
}

// sweepOnce drops idle rate limiter keys and unused workflows.
func (a *App) sweepOnce() {
	if a.limiter != nil {
		if n := a.limiter.Sweep(limiterIdle); n > 0 {
			a.l.Debug("rate limiter swept", applogger.Int("removed", n))
		}
	}
	if n := a.registry.Sweep(a.cfg.Workflow.IdleEviction); n > 0 {
		a.l.Debug("workflows evicted", applogger.Int("removed", n))
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	a.l.Info("shutting down...")

	// Drop in-flight fetch results before the server stops answering.
	a.registry.DeactivateAll()

	if err := a.httpServer.Stop(context.Background()); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	// Flush aggregated logs while the producer is still open.
	a.l.RemoveCollector()

	if err := a.events.Close(); err != nil {
		a.l.Warn("event publisher close error", applogger.Error(err))
	}

	if err := a.locker.Close(); err != nil {
		a.l.Warn("locker close error", applogger.Error(err))
	}

	a.l.Info("shutdown complete")
	return nil
}
