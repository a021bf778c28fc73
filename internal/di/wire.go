//go:build wireinject
// +build wireinject

package di

import (
	"ForecastDesk/pkg/config"
	"ForecastDesk/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideLocker,

		// Upstream clients
		ProvideBackendClient,
		ProvideForecastGateway,
		ProvidePriceFeed,
		ProvideRequesterResolver,

		// Repositories
		ProvideEventPublisher,

		// Use cases
		ProvideRegistry,
		ProvideRateLimiter,

		// Transport
		ProvideHTTPHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
