package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"BrentView/internal/domain/models"
	domrepo "BrentView/internal/domain/repository"
	domsvc "BrentView/internal/domain/service"
	applogger "BrentView/pkg/logger"
	"BrentView/pkg/util"
)

const (
	outcomeSuccess    = "success"
	outcomeEmpty      = "empty"
	outcomeError      = "error"
	outcomeSuperseded = "superseded"
)

// DashboardOption configures Dashboard.
type DashboardOption func(*Dashboard)

// WithClock replaces time.Now, used to date forecasts.
func WithClock(now func() time.Time) DashboardOption {
	return func(d *Dashboard) {
		d.now = now
	}
}

// WithDashboardLogger sets the logger.
func WithDashboardLogger(l *applogger.Logger) DashboardOption {
	return func(d *Dashboard) {
		if l != nil {
			d.l = l
		}
	}
}

// inflight tracks the newest request of one kind.
type inflight struct {
	gen    uint64
	cancel context.CancelFunc
}

// Dashboard owns the view state of the page: four independent result slots.
//
// Requests of different kinds run concurrently and each touches only its own
// slot. A new request of a kind cancels the one in flight; the older
// completion is dropped and its caller gets models.ErrSuperseded.
type Dashboard struct {
	historical domrepo.HistoricalSource
	forecaster domsvc.Forecaster
	detector   domsvc.ChangePointDetector
	volatility domsvc.VolatilityForecaster
	metrics    domrepo.Metrics
	l          *applogger.Logger
	now        func() time.Time

	start, end time.Time

	mu       sync.Mutex
	state    models.ViewState
	inflight map[models.SlotName]*inflight
	gens     map[models.SlotName]uint64
	subs     map[int]chan models.ViewState
	nextSub  int

	initOnce    sync.Once
	initialized bool
}

func NewDashboard(
	cfg models.ViewConfig,
	historical domrepo.HistoricalSource,
	forecaster domsvc.Forecaster,
	detector domsvc.ChangePointDetector,
	volatility domsvc.VolatilityForecaster,
	metrics domrepo.Metrics,
	opts ...DashboardOption,
) (*Dashboard, error) {
	start, ok := util.ParseDate(cfg.StartDate)
	if !ok {
		return nil, fmt.Errorf("invalid start date %q", cfg.StartDate)
	}
	end, ok := util.ParseDate(cfg.EndDate)
	if !ok {
		return nil, fmt.Errorf("invalid end date %q", cfg.EndDate)
	}
	if start.After(end) {
		return nil, fmt.Errorf("start date %s is after end date %s", cfg.StartDate, cfg.EndDate)
	}

	d := &Dashboard{
		historical: historical,
		forecaster: forecaster,
		detector:   detector,
		volatility: volatility,
		metrics:    metrics,
		l:          applogger.NewNop(),
		now:        time.Now,
		start:      start,
		end:        end,
		inflight:   make(map[models.SlotName]*inflight),
		gens:       make(map[models.SlotName]uint64),
		subs:       make(map[int]chan models.ViewState),
	}
	d.state = models.ViewState{
		Config:      cfg,
		Historical:  models.Slot[[]models.HistoricalPoint]{Status: models.StatusIdle},
		Forecast:    models.Slot[[]models.ForecastPoint]{Status: models.StatusIdle},
		ChangePoint: models.Slot[*int]{Status: models.StatusIdle},
		Volatility:  models.Slot[[]models.VolatilityPoint]{Status: models.StatusIdle},
	}

	if d.metrics == nil {
		d.metrics = nopMetrics{}
	}

	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Initialize loads the historical series for the configured range. Only the
// first call fetches; later calls return nil immediately.
func (d *Dashboard) Initialize(ctx context.Context) error {
	var err error
	d.initOnce.Do(func() {
		d.mu.Lock()
		d.initialized = true
		d.mu.Unlock()
		err = d.ReloadHistorical(ctx)
	})
	return err
}

// Initialized reports whether Initialize has been called.
func (d *Dashboard) Initialized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized
}

// Range returns the configured historical range.
func (d *Dashboard) Range() (time.Time, time.Time) {
	return d.start, d.end
}

// ReloadHistorical fetches the historical series again and replaces it.
func (d *Dashboard) ReloadHistorical(ctx context.Context) error {
	points, err := runSlot(ctx, d, models.SlotHistorical,
		func(s *models.ViewState) *models.Slot[[]models.HistoricalPoint] { return &s.Historical },
		func(ctx context.Context) ([]models.HistoricalPoint, error) {
			return d.historical.GetHistorical(ctx, d.start, d.end)
		},
	)
	if err == nil && len(points) > 0 {
		d.metrics.RecordSeries(string(models.SlotHistorical), len(points), points[len(points)-1].Price)
	}
	return err
}

// RequestForecast fetches steps forecast prices and dates them from today.
// steps <= 0 uses the configured default.
func (d *Dashboard) RequestForecast(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = d.state.Config.ForecastSteps
	}

	points, err := runSlot(ctx, d, models.SlotForecast,
		func(s *models.ViewState) *models.Slot[[]models.ForecastPoint] { return &s.Forecast },
		func(ctx context.Context) ([]models.ForecastPoint, error) {
			calledAt := d.now()
			prices, dates, err := d.forecast(ctx, steps)
			if err != nil {
				return nil, err
			}
			if dates == nil {
				dates = util.DaySeries(calledAt, len(prices))
			}
			out := make([]models.ForecastPoint, len(prices))
			for i, p := range prices {
				out[i] = models.ForecastPoint{Date: dates[i], Price: p}
			}
			return out, nil
		},
	)
	if err == nil && len(points) > 0 {
		d.metrics.RecordSeries(string(models.SlotForecast), len(points), points[len(points)-1].Price)
	}
	return err
}

func (d *Dashboard) forecast(ctx context.Context, steps int) ([]float64, []string, error) {
	if df, ok := d.forecaster.(domsvc.DatedForecaster); ok {
		return df.ForecastWithDates(ctx, steps)
	}
	prices, err := d.forecaster.Forecast(ctx, steps)
	return prices, nil, err
}

// RequestChangePoint fetches the most likely change point. A nil result
// clears the previous one.
func (d *Dashboard) RequestChangePoint(ctx context.Context) error {
	_, err := runSlot(ctx, d, models.SlotChangePoint,
		func(s *models.ViewState) *models.Slot[*int] { return &s.ChangePoint },
		d.detector.Detect,
	)
	return err
}

// RequestVolatility fetches steps conditional variances dated from today.
// steps <= 0 uses the configured default.
func (d *Dashboard) RequestVolatility(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = d.state.Config.VolatilitySteps
	}

	points, err := runSlot(ctx, d, models.SlotVolatility,
		func(s *models.ViewState) *models.Slot[[]models.VolatilityPoint] { return &s.Volatility },
		func(ctx context.Context) ([]models.VolatilityPoint, error) {
			calledAt := d.now()
			variances, err := d.volatility.Forecast(ctx, steps)
			if err != nil {
				return nil, err
			}
			dates := util.DaySeries(calledAt, len(variances))
			out := make([]models.VolatilityPoint, len(variances))
			for i, v := range variances {
				out[i] = models.VolatilityPoint{Date: dates[i], Variance: v}
			}
			return out, nil
		},
	)
	if err == nil && len(points) > 0 {
		d.metrics.RecordSeries(string(models.SlotVolatility), len(points), points[len(points)-1].Variance)
	}
	return err
}

// Snapshot returns a copy of the current view state.
func (d *Dashboard) Snapshot() models.ViewState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

// Subscribe returns a channel receiving the newest snapshot after every state
// change. A slow reader only misses intermediate snapshots. The returned
// function unsubscribes and closes the channel.
func (d *Dashboard) Subscribe() (<-chan models.ViewState, func()) {
	ch := make(chan models.ViewState, 1)

	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = ch
	d.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subs, id)
			d.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (d *Dashboard) Subscribers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// runSlot executes fetch as the newest request of kind name and applies its
// outcome to the slot selected by pick.
func runSlot[T any](
	ctx context.Context,
	d *Dashboard,
	name models.SlotName,
	pick func(*models.ViewState) *models.Slot[T],
	fetch func(context.Context) (T, error),
) (T, error) {
	var zero T
	rctx, gen := d.begin(ctx, name, func(s *models.ViewState) {
		pick(s).Status = models.StatusLoading
	})
	defer d.finish(name, gen)

	started := time.Now()
	value, err := fetch(rctx)
	d.metrics.RecordLatency("fetch_"+string(name), time.Since(started).Seconds())

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.gens[name] != gen {
		d.metrics.RecordFetch(string(name), outcomeSuperseded)
		d.metrics.RecordSuperseded(string(name))
		d.l.Debug("discarding superseded result", applogger.String("slot", string(name)))
		return zero, models.ErrSuperseded
	}

	slot := pick(&d.state)
	if err != nil {
		slot.Status = models.StatusFailed
		slot.Error = models.ToSlotError(err)
		d.metrics.RecordFetch(string(name), outcomeError)
		d.metrics.RecordError(string(slot.Error.Kind))
		d.l.Error("fetch failed",
			applogger.String("slot", string(name)),
			applogger.Bool("retryable", slot.Error.Retryable),
			applogger.Error(err),
		)
		d.publishLocked()
		return zero, err
	}

	slot.Status = models.StatusReady
	slot.Value = value
	slot.HasValue = true
	slot.Error = nil
	slot.UpdatedAt = d.now()
	if isEmpty(value) {
		d.metrics.RecordFetch(string(name), outcomeEmpty)
	} else {
		d.metrics.RecordFetch(string(name), outcomeSuccess)
	}
	d.l.Info("fetch completed",
		applogger.String("slot", string(name)),
		applogger.Duration("took_ms", time.Since(started)),
	)
	d.publishLocked()
	return value, nil
}

// begin registers a new request of kind name, cancelling the previous one.
func (d *Dashboard) begin(ctx context.Context, name models.SlotName, mark func(*models.ViewState)) (context.Context, uint64) {
	rctx, cancel := context.WithCancel(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.inflight[name]; ok {
		prev.cancel()
	}
	d.gens[name]++
	gen := d.gens[name]
	d.inflight[name] = &inflight{gen: gen, cancel: cancel}

	mark(&d.state)
	d.publishLocked()
	return rctx, gen
}

// finish releases the request context once the request is done.
func (d *Dashboard) finish(name models.SlotName, gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cur, ok := d.inflight[name]; ok && cur.gen == gen {
		cur.cancel()
		delete(d.inflight, name)
	}
}

func (d *Dashboard) snapshotLocked() models.ViewState {
	s := d.state
	s.Historical.Value = slices.Clone(s.Historical.Value)
	s.Forecast.Value = slices.Clone(s.Forecast.Value)
	s.Volatility.Value = slices.Clone(s.Volatility.Value)
	if cp := s.ChangePoint.Value; cp != nil {
		v := *cp
		s.ChangePoint.Value = &v
	}
	s.Historical.Error = cloneErr(s.Historical.Error)
	s.Forecast.Error = cloneErr(s.Forecast.Error)
	s.ChangePoint.Error = cloneErr(s.ChangePoint.Error)
	s.Volatility.Error = cloneErr(s.Volatility.Error)
	return s
}

// publishLocked bumps the version and hands the newest snapshot to every
// subscriber, replacing one it has not read yet.
func (d *Dashboard) publishLocked() {
	d.state.Version++
	if len(d.subs) == 0 {
		return
	}
	snap := d.snapshotLocked()
	for _, ch := range d.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func cloneErr(e *models.SlotError) *models.SlotError {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

func isEmpty(v interface{}) bool {
	switch x := v.(type) {
	case []models.HistoricalPoint:
		return len(x) == 0
	case []models.ForecastPoint:
		return len(x) == 0
	case []models.VolatilityPoint:
		return len(x) == 0
	case *int:
		return x == nil
	}
	return false
}

// IsSuperseded reports whether err means the request was replaced.
func IsSuperseded(err error) bool {
	return errors.Is(err, models.ErrSuperseded)
}

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, string)        {}
func (nopMetrics) RecordError(string)                {}
func (nopMetrics) RecordSuperseded(string)           {}
func (nopMetrics) RecordSeries(string, int, float64) {}
func (nopMetrics) RecordLatency(string, float64)     {}
