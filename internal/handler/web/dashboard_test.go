package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"BrentView/internal/domain/models"
	"BrentView/internal/service/ratelimit"
	"BrentView/internal/usecase"
	xhttp "BrentView/pkg/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHistorical struct {
	mu     sync.Mutex
	calls  int
	points []models.HistoricalPoint
}

func (s *stubHistorical) GetHistorical(context.Context, time.Time, time.Time) ([]models.HistoricalPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.points != nil {
		return s.points, nil
	}
	return []models.HistoricalPoint{
		{Date: "2020-01-02", Price: 67.05},
		{Date: "2020-01-03", Price: 69.08},
	}, nil
}

func (s *stubHistorical) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubForecaster struct{ err error }

func (s *stubForecaster) Forecast(_ context.Context, steps int) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]float64, steps)
	for i := range out {
		out[i] = 75 + float64(i)
	}
	return out, nil
}

type stubDetector struct{ day *int }

func (s *stubDetector) Detect(context.Context) (*int, error) { return s.day, nil }

type testEnv struct {
	e          *echo.Echo
	dash       *usecase.Dashboard
	historical *stubHistorical
	forecaster *stubForecaster
	detector   *stubDetector
}

func newTestEnv(t *testing.T, limiter *ratelimit.Limiter) *testEnv {
	t.Helper()
	env := &testEnv{
		historical: &stubHistorical{},
		forecaster: &stubForecaster{},
		detector:   &stubDetector{},
	}
	dash, err := usecase.NewDashboard(models.ViewConfig{
		Title:           "Brent Oil Price Analysis",
		StartDate:       "2020-01-01",
		EndDate:         "2022-12-31",
		ForecastSteps:   30,
		VolatilitySteps: 30,
	}, env.historical, env.forecaster, env.detector, env.forecaster, nil)
	require.NoError(t, err)
	env.dash = dash

	renderer, err := NewRenderer()
	require.NoError(t, err)

	env.e = echo.New()
	NewDashboardHandler(nil, env.dash, limiter, renderer).RegisterRoutes(env.e)
	return env
}

func (env *testEnv) do(method, target string, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func TestIndexInitialRender(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "<h1>Brent Oil Price Analysis</h1>")
	assert.Contains(t, body, "/charts/historical.svg")
	assert.Contains(t, body, "Fetch ARIMA Forecast")
	assert.Contains(t, body, "Detect Change Point")
	assert.NotContains(t, body, "/charts/forecast.svg")
	assert.NotContains(t, body, "Most Likely Change Point")

	assert.Eventually(t, func() bool { return env.historical.Calls() == 1 }, 2*time.Second, 10*time.Millisecond)

	env.do(http.MethodGet, "/", nil, nil)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, env.historical.Calls())
}

func TestForecastActionRedirectsAndRevealsChart(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/forecast", url.Values{}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))
	assert.Len(t, env.dash.Snapshot().Forecast.Value, 30)

	rec = env.do(http.MethodGet, "/", nil, nil)
	assert.Contains(t, rec.Body.String(), "/charts/forecast.svg")
}

func TestForecastActionHonoursSteps(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/forecast", url.Values{"steps": {"7"}}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Len(t, env.dash.Snapshot().Forecast.Value, 7)

	rec = env.do(http.MethodPost, "/forecast", url.Values{"steps": {"1000"}}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, env.dash.Snapshot().Forecast.Value, 7)
}

func TestChangePointText(t *testing.T) {
	env := newTestEnv(t, nil)
	day := 17
	env.detector.day = &day

	rec := env.do(http.MethodPost, "/change-point", url.Values{}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = env.do(http.MethodGet, "/", nil, nil)
	assert.Contains(t, rec.Body.String(), "Most Likely Change Point: Day 17")

	env.detector.day = nil
	env.do(http.MethodPost, "/change-point", url.Values{}, nil)
	rec = env.do(http.MethodGet, "/", nil, nil)
	assert.NotContains(t, rec.Body.String(), "Most Likely Change Point")
}

func TestFailedActionShowsRetry(t *testing.T) {
	env := newTestEnv(t, nil)
	env.forecaster.err = models.NewNetworkError("/api/arima-forecast", 0, errors.New("connection refused"))

	rec := env.do(http.MethodPost, "/forecast", url.Values{}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = env.do(http.MethodGet, "/", nil, nil)
	body := rec.Body.String()
	assert.Contains(t, body, "Could not reach the analytics service.")
	assert.Contains(t, body, `action="/forecast"><button type="submit">Retry</button>`)
	assert.Contains(t, body, `<div class="error">`)
	assert.NotContains(t, body, `<p class="error">`)
}

func TestJSONClientsGetEnvelope(t *testing.T) {
	env := newTestEnv(t, nil)
	headers := map[string]string{echo.HeaderAccept: echo.MIMEApplicationJSON}

	rec := env.do(http.MethodPost, "/forecast", url.Values{"steps": {"3"}}, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status int              `json:"status"`
		Data   models.ViewState `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Len(t, resp.Data.Forecast.Value, 3)

	env.forecaster.err = models.NewDecodeError("/api/arima-forecast", errors.New("bad"))
	rec = env.do(http.MethodPost, "/forecast", url.Values{}, headers)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var failed struct {
		Data []xhttp.AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failed))
	require.Len(t, failed.Data, 1)
	assert.Equal(t, "ERR_UPSTREAM", failed.Data[0].Code)
	assert.Equal(t, "forecast", failed.Data[0].Params["action"])
	assert.Equal(t, false, failed.Data[0].Params["retryable"])
}

func TestRateLimitedActions(t *testing.T) {
	env := newTestEnv(t, ratelimit.New(1, 0.001))

	rec := env.do(http.MethodPost, "/change-point", url.Values{}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = env.do(http.MethodPost, "/change-point", url.Values{}, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = env.do(http.MethodPost, "/forecast", url.Values{}, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code, "limits are per action")
}

func TestChartsAreSVG(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.dash.Initialize(context.Background()))

	for _, name := range []string{"historical", "forecast", "volatility"} {
		rec := env.do(http.MethodGet, "/charts/"+name+".svg", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code, name)
		assert.Equal(t, "image/svg+xml", rec.Header().Get(echo.HeaderContentType), name)
		assert.Contains(t, rec.Body.String(), "<svg", name)
	}
}

var (
	svgPath   = regexp.MustCompile(`<path[^>]*>`)
	svgPathD  = regexp.MustCompile(`d="([^"]*)"`)
	svgVertex = regexp.MustCompile(`[ML]\s*(-?[0-9.]+)[\s,]+(-?[0-9.]+)`)
)

// longestStrokeXs returns the x coordinates of the longest path drawn in rgb.
func longestStrokeXs(t *testing.T, svg, rgb string) []float64 {
	t.Helper()
	var longest []float64
	for _, tag := range svgPath.FindAllString(svg, -1) {
		if !strings.Contains(tag, "rgba("+rgb) {
			continue
		}
		d := svgPathD.FindStringSubmatch(tag)
		if d == nil {
			continue
		}
		var xs []float64
		for _, m := range svgVertex.FindAllStringSubmatch(d[1], -1) {
			x, err := strconv.ParseFloat(m[1], 64)
			require.NoError(t, err)
			xs = append(xs, x)
		}
		if len(xs) > len(longest) {
			longest = xs
		}
	}
	return longest
}

func TestHistoricalChartFollowsRecords(t *testing.T) {
	env := newTestEnv(t, nil)
	env.historical.points = []models.HistoricalPoint{
		{Date: "2020-01-02", Price: 67.05},
		{Date: "2020-01-03", Price: 69.08},
		{Date: "2020-01-06", Price: 70.25},
		{Date: "2020-01-07", Price: 68.27},
		{Date: "2020-01-08", Price: 65.44},
		{Date: "2020-01-09", Price: 65.37},
	}
	require.NoError(t, env.dash.Initialize(context.Background()))

	rec := env.do(http.MethodGet, "/charts/historical.svg", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	xs := longestStrokeXs(t, rec.Body.String(), "136,132,216")
	require.Len(t, xs, len(env.historical.points))
	for i := 1; i < len(xs); i++ {
		assert.Greater(t, xs[i], xs[i-1], "vertex %d", i)
	}
}

func TestUnknownChartIsNotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/charts/candles.svg", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_FOUND")
}

func TestViewAPI(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.dash.Initialize(context.Background()))

	rec := env.do(http.MethodGet, "/api/view", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp xhttp.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "OK", resp.Message)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, data, "historical")
}

func TestWebsocketPushesSnapshots(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(env.e)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	var first models.ViewState
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "Brent Oil Price Analysis", first.Config.Title)

	day := 5
	env.detector.day = &day
	require.NoError(t, env.dash.RequestChangePoint(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var snap models.ViewState
		require.NoError(t, conn.ReadJSON(&snap))
		if snap.ChangePoint.Status == models.StatusReady {
			got, ok := snap.ChangePointDay()
			require.True(t, ok)
			assert.Equal(t, 5, got)
			break
		}
	}
}
