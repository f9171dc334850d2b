//go:build wireinject
// +build wireinject

package di

import (
	"BrentView/pkg/config"
	"BrentView/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideCache,

		// Analytics API
		ProvideHistoricalSource,
		ProvideForecaster,
		ProvideChangePointDetector,
		ProvideVolatilityForecaster,

		// Use cases
		ProvideDashboard,
		ProvideRefresher,

		// HTTP
		ProvideRateLimiter,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
