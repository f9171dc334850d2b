package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"BrentView/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

type fakeHistorical struct {
	mu     sync.Mutex
	calls  int
	start  time.Time
	end    time.Time
	points []models.HistoricalPoint
	err    error
}

func (f *fakeHistorical) GetHistorical(_ context.Context, start, end time.Time) ([]models.HistoricalPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.start, f.end = start, end
	return f.points, f.err
}

func (f *fakeHistorical) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeForecaster struct {
	mu     sync.Mutex
	prices []float64
	err    error
	// block, when set, makes the next call wait for ctx cancellation and
	// then return stale prices anyway.
	block   bool
	stale   []float64
	started chan struct{}
}

func (f *fakeForecaster) Forecast(ctx context.Context, steps int) ([]float64, error) {
	f.mu.Lock()
	if f.block {
		f.block = false
		stale := f.stale
		f.mu.Unlock()
		close(f.started)
		<-ctx.Done()
		return stale, nil
	}
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.prices[:steps], nil
}

type fakeDetector struct {
	day *int
	err error
}

func (f *fakeDetector) Detect(context.Context) (*int, error) { return f.day, f.err }

type fakeVolatility struct{ values []float64 }

func (f *fakeVolatility) Forecast(_ context.Context, steps int) ([]float64, error) {
	return f.values[:steps], nil
}

type fakeMetrics struct {
	mu         sync.Mutex
	fetches    map[string]int
	superseded int
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{fetches: map[string]int{}} }

func (m *fakeMetrics) RecordFetch(endpoint, outcome string) {
	m.mu.Lock()
	m.fetches[endpoint+"/"+outcome]++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordError(string) {}
func (m *fakeMetrics) RecordSuperseded(string) {
	m.mu.Lock()
	m.superseded++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordSeries(string, int, float64) {}
func (m *fakeMetrics) RecordLatency(string, float64)     {}

type fixture struct {
	dash       *Dashboard
	historical *fakeHistorical
	forecaster *fakeForecaster
	detector   *fakeDetector
	volatility *fakeVolatility
	metrics    *fakeMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	prices := make([]float64, 365)
	for i := range prices {
		prices[i] = 70 + float64(i)/10
	}
	f := &fixture{
		historical: &fakeHistorical{points: []models.HistoricalPoint{
			{Date: "2020-01-02", Price: 67.05},
			{Date: "2020-01-03", Price: 69.08},
			{Date: "2020-01-06", Price: 70.25},
		}},
		forecaster: &fakeForecaster{prices: prices, started: make(chan struct{})},
		detector:   &fakeDetector{},
		volatility: &fakeVolatility{values: prices},
		metrics:    newFakeMetrics(),
	}
	dash, err := NewDashboard(models.ViewConfig{
		Title:           "Brent Oil Price Analysis",
		StartDate:       "2020-01-01",
		EndDate:         "2022-12-31",
		ForecastSteps:   30,
		VolatilitySteps: 30,
	}, f.historical, f.forecaster, f.detector, f.volatility, f.metrics, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	f.dash = dash
	return f
}

func TestNewDashboardRejectsBadRange(t *testing.T) {
	for _, cfg := range []models.ViewConfig{
		{StartDate: "01/01/2020", EndDate: "2022-12-31"},
		{StartDate: "2020-01-01", EndDate: ""},
		{StartDate: "2023-01-01", EndDate: "2022-12-31"},
	} {
		_, err := NewDashboard(cfg, &fakeHistorical{}, &fakeForecaster{}, &fakeDetector{}, &fakeVolatility{}, nil)
		assert.Error(t, err, "%+v", cfg)
	}
}

func TestInitializeFetchesConfiguredRangeOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dash.Initialize(ctx))
	require.NoError(t, f.dash.Initialize(ctx))

	assert.Equal(t, 1, f.historical.Calls())
	assert.Equal(t, "2020-01-01", f.historical.start.Format("2006-01-02"))
	assert.Equal(t, "2022-12-31", f.historical.end.Format("2006-01-02"))

	snap := f.dash.Snapshot()
	assert.Equal(t, models.StatusReady, snap.Historical.Status)
	assert.Equal(t, f.historical.points, snap.Historical.Value)
	assert.True(t, f.dash.Initialized())
}

func TestForecastMapsPricesToConsecutiveDays(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.dash.RequestForecast(context.Background(), 0))

	snap := f.dash.Snapshot()
	require.Len(t, snap.Forecast.Value, 30)
	assert.True(t, snap.ShowForecast())
	first, err := time.Parse("2006-01-02", snap.Forecast.Value[0].Date)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", snap.Forecast.Value[0].Date)
	for i, p := range snap.Forecast.Value {
		assert.Equal(t, first.AddDate(0, 0, i).Format("2006-01-02"), p.Date)
		assert.Equal(t, f.forecaster.prices[i], p.Price)
	}
}

func TestForecastReplacesRatherThanAppends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dash.RequestForecast(ctx, 30))
	require.NoError(t, f.dash.RequestForecast(ctx, 10))

	assert.Len(t, f.dash.Snapshot().Forecast.Value, 10)
}

func TestChangePointPresentThenNull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	day := 17
	f.detector.day = &day
	require.NoError(t, f.dash.RequestChangePoint(ctx))
	got, ok := f.dash.Snapshot().ChangePointDay()
	require.True(t, ok)
	assert.Equal(t, 17, got)

	f.detector.day = nil
	require.NoError(t, f.dash.RequestChangePoint(ctx))
	_, ok = f.dash.Snapshot().ChangePointDay()
	assert.False(t, ok)
}

func TestFailedFetchKeepsPriorState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.dash.RequestForecast(ctx, 30))

	f.forecaster.err = models.NewNetworkError("/api/arima-forecast", 503, errors.New("unavailable"))
	err := f.dash.RequestForecast(ctx, 30)
	require.Error(t, err)

	snap := f.dash.Snapshot()
	assert.Equal(t, models.StatusFailed, snap.Forecast.Status)
	assert.Len(t, snap.Forecast.Value, 30)
	require.NotNil(t, snap.Forecast.Error)
	assert.True(t, snap.Forecast.Error.Retryable)
	assert.Equal(t, models.KindNetwork, snap.Forecast.Error.Kind)
}

func TestDecodeFailureIsNotRetryable(t *testing.T) {
	f := newFixture(t)
	f.detector.err = models.NewDecodeError("/api/bayesian-change-point", errors.New("bad shape"))

	require.Error(t, f.dash.RequestChangePoint(context.Background()))

	snap := f.dash.Snapshot()
	require.NotNil(t, snap.ChangePoint.Error)
	assert.False(t, snap.ChangePoint.Error.Retryable)
	assert.False(t, snap.ChangePoint.HasValue)
}

func TestHistoricalFailureIsVisible(t *testing.T) {
	f := newFixture(t)
	f.historical.err = errors.New("connection refused")

	require.Error(t, f.dash.Initialize(context.Background()))

	snap := f.dash.Snapshot()
	assert.Equal(t, models.StatusFailed, snap.Historical.Status)
	assert.Empty(t, snap.Historical.Value)
	assert.True(t, snap.Historical.Error.Retryable)
}

func TestEmptyHistoricalIsReady(t *testing.T) {
	f := newFixture(t)
	f.historical.points = []models.HistoricalPoint{}

	require.NoError(t, f.dash.Initialize(context.Background()))

	snap := f.dash.Snapshot()
	assert.Equal(t, models.StatusReady, snap.Historical.Status)
	assert.Nil(t, snap.Historical.Error)
	assert.Equal(t, 1, f.metrics.fetches["historical/empty"])
}

func TestStaleForecastNeverOverwritesNewer(t *testing.T) {
	f := newFixture(t)
	f.forecaster.block = true
	f.forecaster.stale = []float64{1, 2, 3}

	firstErr := make(chan error, 1)
	go func() {
		firstErr <- f.dash.RequestForecast(context.Background(), 3)
	}()
	<-f.forecaster.started

	require.NoError(t, f.dash.RequestForecast(context.Background(), 5))

	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, models.ErrSuperseded)
		assert.True(t, IsSuperseded(err))
	case <-time.After(2 * time.Second):
		t.Fatal("superseded request did not return")
	}

	snap := f.dash.Snapshot()
	require.Len(t, snap.Forecast.Value, 5)
	assert.Equal(t, f.forecaster.prices[0], snap.Forecast.Value[0].Price)
	assert.Equal(t, models.StatusReady, snap.Forecast.Status)
	assert.Equal(t, 1, f.metrics.superseded)
}

func TestSlotsAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := 3
	f.detector.day = &day

	var wg sync.WaitGroup
	for _, fn := range []func() error{
		func() error { return f.dash.Initialize(ctx) },
		func() error { return f.dash.RequestForecast(ctx, 30) },
		func() error { return f.dash.RequestChangePoint(ctx) },
		func() error { return f.dash.RequestVolatility(ctx, 7) },
	} {
		wg.Add(1)
		go func(fn func() error) {
			defer wg.Done()
			assert.NoError(t, fn())
		}(fn)
	}
	wg.Wait()

	snap := f.dash.Snapshot()
	assert.Len(t, snap.Historical.Value, 3)
	assert.Len(t, snap.Forecast.Value, 30)
	assert.Len(t, snap.Volatility.Value, 7)
	assert.Equal(t, "2024-03-07", snap.Volatility.Value[6].Date)
	got, ok := snap.ChangePointDay()
	assert.True(t, ok)
	assert.Equal(t, 3, got)
}

func TestSubscribeReceivesLatestSnapshot(t *testing.T) {
	f := newFixture(t)
	ch, unsubscribe := f.dash.Subscribe()
	assert.Equal(t, 1, f.dash.Subscribers())

	require.NoError(t, f.dash.RequestForecast(context.Background(), 30))

	// loading and ready were both published; only the newest is buffered
	snap := <-ch
	assert.Equal(t, models.StatusReady, snap.Forecast.Status)
	assert.Len(t, snap.Forecast.Value, 30)

	unsubscribe()
	unsubscribe()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, f.dash.Subscribers())
}

func TestSnapshotIsACopy(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.dash.Initialize(context.Background()))

	snap := f.dash.Snapshot()
	snap.Historical.Value[0].Price = -1

	assert.Equal(t, 67.05, f.dash.Snapshot().Historical.Value[0].Price)
}
