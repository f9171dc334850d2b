package usecase

import (
	"context"
	"fmt"
	"time"

	applogger "BrentView/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Invalidator drops cached data for a date range.
type Invalidator interface {
	Invalidate(ctx context.Context, start, end time.Time) error
}

// Refresher periodically reloads the historical series on a cron schedule.
type Refresher struct {
	cron    *cron.Cron
	spec    string
	dash    *Dashboard
	inv     Invalidator
	timeout time.Duration
	l       *applogger.Logger
}

// NewRefresher accepts standard five-field specs, an optional leading seconds
// field, and descriptors such as "@every 1h" or "@daily". An empty spec
// disables the refresher. inv may be nil when nothing is cached.
func NewRefresher(spec string, dash *Dashboard, inv Invalidator, l *applogger.Logger) *Refresher {
	if l == nil {
		l = applogger.NewNop()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Refresher{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		spec:    spec,
		dash:    dash,
		inv:     inv,
		timeout: time.Minute,
		l:       l,
	}
}

// Enabled reports whether a schedule is configured.
func (r *Refresher) Enabled() bool { return r.spec != "" }

// Start registers the refresh job and starts the scheduler.
func (r *Refresher) Start() error {
	if !r.Enabled() {
		r.l.Info("historical refresh disabled")
		return nil
	}
	if _, err := r.cron.AddFunc(r.spec, r.refresh); err != nil {
		return fmt.Errorf("register refresh job %q: %w", r.spec, err)
	}
	r.cron.Start()
	r.l.Info("historical refresh scheduled", applogger.String("cron", r.spec))
	return nil
}

// Stop stops the scheduler and waits for a running refresh, bounded by ctx.
func (r *Refresher) Stop(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}
	done := r.cron.Stop()
	select {
	case <-done.Done():
		r.l.Info("historical refresh stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop refresher: %w", ctx.Err())
	}
}

// RunNow invalidates the cached range and reloads it.
func (r *Refresher) RunNow(ctx context.Context) error {
	start, end := r.dash.Range()
	if r.inv != nil {
		if err := r.inv.Invalidate(ctx, start, end); err != nil {
			r.l.Warn("historical cache invalidation failed", applogger.Error(err))
		}
	}
	return r.dash.ReloadHistorical(ctx)
}

func (r *Refresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.RunNow(ctx); err != nil && !IsSuperseded(err) {
		r.l.Error("scheduled historical refresh failed", applogger.Error(err))
	}
}
