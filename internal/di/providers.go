package di

import (
	"fmt"
	"time"

	"BrentView/internal/domain/models"
	"BrentView/internal/domain/repository"
	domsvc "BrentView/internal/domain/service"
	"BrentView/internal/handler/web"
	internalrepo "BrentView/internal/repository"
	"BrentView/internal/service/ratelimit"
	"BrentView/internal/services/analytics"
	"BrentView/internal/usecase"
	"BrentView/pkg/cache"
	"BrentView/pkg/config"
	xhttp "BrentView/pkg/http"
	pkgkafka "BrentView/pkg/kafka"
	applogger "BrentView/pkg/logger"
	"BrentView/pkg/metrics"
	"BrentView/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithClientID("brentview-"+cfg.Environment),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	l.Info("kafka producer ready",
		applogger.Strings("brokers", cfg.Kafka.Brokers),
		applogger.Bool("async", cfg.Kafka.Async),
	)
	return producer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache creates the in-memory cache, layered over Redis when enabled.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, error) {
	if !cfg.Cache.Redis.Enabled {
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
			cache.WithMemoryCleanup(cfg.Cache.MemoryCleanup),
		), nil
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Cache.Redis.Host),
		cache.WithRedisPort(cfg.Cache.Redis.Port),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		cache.WithRedisPool(cfg.Cache.Redis.PoolSize, cfg.Cache.Redis.MinIdleConns, cfg.Cache.Redis.PoolTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis cache connected",
		applogger.String("host", cfg.Cache.Redis.Host),
		applogger.Int("port", cfg.Cache.Redis.Port),
	)
	return cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
		cache.WithLayeredL1TTL(cfg.Historical.CacheTTL),
	), nil
}

// ProvideHistoricalSource creates the cached historical series client.
func ProvideHistoricalSource(cfg *config.Config, c cache.Service, l *applogger.Logger) *internalrepo.CachedHistoricalSource {
	src := analytics.NewHTTPHistoricalSource(cfg, analytics.WithLogger(l.Named("analytics")))
	cached := internalrepo.NewCachedHistoricalSource(src, c, cfg.Historical.CacheTTL)
	cached.SetLogger(l.Named("historical"))
	return cached
}

// ProvideForecaster creates the ARIMA forecast client.
func ProvideForecaster(cfg *config.Config, l *applogger.Logger) domsvc.Forecaster {
	return analytics.NewHTTPArimaForecaster(cfg, analytics.WithLogger(l.Named("analytics")))
}

// ProvideChangePointDetector creates the change point client.
func ProvideChangePointDetector(cfg *config.Config, l *applogger.Logger) domsvc.ChangePointDetector {
	return analytics.NewHTTPChangePointDetector(cfg, analytics.WithLogger(l.Named("analytics")))
}

// ProvideVolatilityForecaster creates the GARCH volatility client.
func ProvideVolatilityForecaster(cfg *config.Config, l *applogger.Logger) domsvc.VolatilityForecaster {
	return analytics.NewHTTPGarchForecaster(cfg, analytics.WithLogger(l.Named("analytics")))
}

// ProvideDashboard creates the dashboard use case.
func ProvideDashboard(
	cfg *config.Config,
	historical *internalrepo.CachedHistoricalSource,
	forecaster domsvc.Forecaster,
	detector domsvc.ChangePointDetector,
	volatility domsvc.VolatilityForecaster,
	m repository.Metrics,
	l *applogger.Logger,
) (*usecase.Dashboard, error) {
	return usecase.NewDashboard(models.ViewConfig{
		Title:           cfg.View.Title,
		StartDate:       cfg.View.StartDate,
		EndDate:         cfg.View.EndDate,
		ForecastSteps:   cfg.View.ForecastSteps,
		VolatilitySteps: cfg.View.VolatilitySteps,
	}, historical, forecaster, detector, volatility, m,
		usecase.WithDashboardLogger(l.Named("dashboard")),
	)
}

// ProvideRefresher creates the scheduled historical refresh.
func ProvideRefresher(cfg *config.Config, dash *usecase.Dashboard, historical *internalrepo.CachedHistoricalSource, l *applogger.Logger) *usecase.Refresher {
	return usecase.NewRefresher(cfg.Historical.RefreshCron, dash, historical, l.Named("refresher"))
}

// ProvideRateLimiter creates the per-client action limiter.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

// ProvideHTTPHandler creates the dashboard routes.
func ProvideHTTPHandler(l *applogger.Logger, dash *usecase.Dashboard, limiter *ratelimit.Limiter) (xhttp.Handler, error) {
	renderer, err := web.NewRenderer()
	if err != nil {
		return nil, err
	}
	return web.NewDashboardHandler(l.Named("web"), dash, limiter, renderer), nil
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	dash *usecase.Dashboard,
	refresher *usecase.Refresher,
	c cache.Service,
	producer *pkgkafka.Producer,
	limiter *ratelimit.Limiter,
) *server.App {
	// ship aggregated error logs when a producer is available
	if cfg.Log.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.Collector.Interval,
			CountThreshold: cfg.Log.Collector.Threshold,
			Topic:          cfg.Log.Collector.Topic,
			Publisher:      producer,
		})
	}

	app := server.New(cfg, l, handler, dash, refresher, c)
	if producer != nil {
		app.SetProducer(producer)
	}
	app.SetLimiter(limiter, time.Minute)
	return app
}
