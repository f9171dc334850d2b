package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"BrentView/internal/service/ratelimit"
	"BrentView/internal/usecase"
	"BrentView/pkg/cache"
	"BrentView/pkg/config"
	xhttp "BrentView/pkg/http"
	pkgkafka "BrentView/pkg/kafka"
	applogger "BrentView/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	l           *applogger.Logger
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	dash        *usecase.Dashboard
	refresher   *usecase.Refresher
	cache       cache.Service
	producer    *pkgkafka.Producer
	limiter     *ratelimit.Limiter
	pruneEvery  time.Duration
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	dash *usecase.Dashboard,
	refresher *usecase.Refresher,
	c cache.Service,
) *App {
	return &App{
		cfg:         cfg,
		l:           l,
		httpHandler: handler,
		dash:        dash,
		refresher:   refresher,
		cache:       c,
	}
}

// SetProducer hands the Kafka producer to the app so it is closed on shutdown.
func (a *App) SetProducer(p *pkgkafka.Producer) { a.producer = p }

// SetLimiter enables periodic pruning of idle rate-limit buckets.
func (a *App) SetLimiter(l *ratelimit.Limiter, every time.Duration) {
	a.limiter = l
	a.pruneEvery = every
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(a.cfg.Server.SlowThreshold),
		xhttp.WithCORS(a.cfg.Server.CORS.Enabled, a.cfg.Server.CORS.AllowOrigins),
		xhttp.WithMetricsPath(a.metricsPath()),
		xhttp.WithLogger(a.l.Named("http")),
	)

	// Load the historical series without holding up the listener
	go func() {
		initCtx, initCancel := context.WithTimeout(ctx, a.cfg.Analytics.Timeout*time.Duration(a.cfg.Analytics.RetryAttempts+1))
		defer initCancel()
		if err := a.dash.Initialize(initCtx); err != nil {
			a.l.Warn("initial historical load failed", applogger.Error(err))
		}
	}()

	if err := a.refresher.Start(); err != nil {
		a.l.Error("refresher start error", applogger.Error(err))
		return err
	}

	if a.limiter != nil && a.pruneEvery > 0 {
		go a.pruneLimiter(ctx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		_ = a.refresher.Stop(ctx)
		return err
	}
	a.l.Info("dashboard ready",
		applogger.String("env", a.cfg.Environment),
		applogger.String("analytics", a.cfg.Analytics.BaseURL),
		applogger.Int("port", a.cfg.Server.Port),
	)

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

func (a *App) metricsPath() string {
	if !a.cfg.Metrics.Enabled {
		return ""
	}
	return a.cfg.Metrics.Path
}

func (a *App) pruneLimiter(ctx context.Context) {
	ticker := time.NewTicker(a.pruneEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.limiter.Prune(); n > 0 {
				a.l.Debug("pruned rate limit buckets", applogger.Int("count", n))
			}
		}
	}
}

// shutdown stops the server first, then background work, then clients.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if err := a.refresher.Stop(shutdownCtx); err != nil {
		a.l.Warn("refresher stop error", applogger.Error(err))
	}

	// flush aggregated error logs while the producer is still open
	a.l.RemoveCollector()

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.l.Warn("cache close error", applogger.Error(err))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
