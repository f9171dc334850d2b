package web

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"BrentView/internal/chart"
	"BrentView/internal/domain/models"
	"BrentView/internal/service/ratelimit"
	"BrentView/internal/usecase"
	xhttp "BrentView/pkg/http"
	xlogger "BrentView/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DashboardHandler serves the dashboard page, its actions and its charts.
type DashboardHandler struct {
	logger      *xlogger.Logger
	dash        *usecase.Dashboard
	limiter     *ratelimit.Limiter
	renderer    *Renderer
	stream      *StreamHandler
	initTimeout time.Duration
}

func NewDashboardHandler(logger *xlogger.Logger, dash *usecase.Dashboard, limiter *ratelimit.Limiter, renderer *Renderer) *DashboardHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &DashboardHandler{
		logger:      logger,
		dash:        dash,
		limiter:     limiter,
		renderer:    renderer,
		stream:      NewStreamHandler(logger, dash),
		initTimeout: time.Minute,
	}
}

func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	e.Renderer = h.renderer

	e.GET("/", h.Index)
	e.GET("/ws", h.stream.Serve)

	e.POST("/historical/reload", h.ReloadHistorical, h.rateLimit)
	e.POST("/forecast", h.Forecast, h.rateLimit)
	e.POST("/change-point", h.ChangePoint, h.rateLimit)
	e.POST("/volatility", h.Volatility, h.rateLimit)

	e.GET("/charts/:file", h.Chart)

	api := e.Group("/api")
	api.GET("/view", h.View)
}

type slotRetry struct {
	Error  *models.SlotError
	Action string
}

type pageData struct {
	State            models.ViewState
	HasChangePoint   bool
	ChangePointDay   int
	HistoricalRetry  slotRetry
	ForecastRetry    slotRetry
	ChangePointRetry slotRetry
	VolatilityRetry  slotRetry
}

// Index renders the page. The first render starts loading the historical
// series when startup has not already done so.
func (h *DashboardHandler) Index(c echo.Context) error {
	h.ensureInitialized()

	state := h.dash.Snapshot()
	day, ok := state.ChangePointDay()
	data := pageData{
		State:            state,
		HasChangePoint:   ok,
		ChangePointDay:   day,
		HistoricalRetry:  slotRetry{Error: state.Historical.Error, Action: "/historical/reload"},
		ForecastRetry:    slotRetry{Error: state.Forecast.Error, Action: "/forecast"},
		ChangePointRetry: slotRetry{Error: state.ChangePoint.Error, Action: "/change-point"},
		VolatilityRetry:  slotRetry{Error: state.Volatility.Error, Action: "/volatility"},
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Render(http.StatusOK, "dashboard.html", data)
}

func (h *DashboardHandler) ensureInitialized() {
	if h.dash.Initialized() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.initTimeout)
		defer cancel()
		_ = h.dash.Initialize(ctx)
	}()
}

// View returns the current snapshot as JSON.
func (h *DashboardHandler) View(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.dash.Snapshot())
}

func (h *DashboardHandler) ReloadHistorical(c echo.Context) error {
	return h.runAction(c, "historical", func(ctx context.Context, _ int) error {
		return h.dash.ReloadHistorical(ctx)
	})
}

func (h *DashboardHandler) Forecast(c echo.Context) error {
	return h.runAction(c, "forecast", h.dash.RequestForecast)
}

func (h *DashboardHandler) ChangePoint(c echo.Context) error {
	return h.runAction(c, "change_point", func(ctx context.Context, _ int) error {
		return h.dash.RequestChangePoint(ctx)
	})
}

func (h *DashboardHandler) Volatility(c echo.Context) error {
	return h.runAction(c, "volatility", h.dash.RequestVolatility)
}

// runAction binds the optional steps field, runs op and answers with a
// redirect to the page, or with the snapshot for JSON clients. Fetch errors
// are recorded in the view state and shown on the page.
func (h *DashboardHandler) runAction(c echo.Context, name string, op func(context.Context, int) error) error {
	req := &models.StepsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	err := op(c.Request().Context(), req.Steps)
	switch {
	case err == nil:
	case usecase.IsSuperseded(err):
		h.logger.Debug("action superseded", xlogger.String("action", name))
	default:
		h.logger.Warn("action failed", xlogger.String("action", name), xlogger.Error(err))
	}

	if !wantsJSON(c) {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	if err != nil && !usecase.IsSuperseded(err) {
		slotErr := models.ToSlotError(err)
		appErr := xhttp.BadGatewayError(slotErr.Message).
			WithParam("action", name).
			WithParam("retryable", slotErr.Retryable).
			WithError(err)
		return xhttp.AppErrorResponse(c, appErr)
	}
	return xhttp.SuccessResponse(c, h.dash.Snapshot())
}

func (h *DashboardHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.limiter == nil {
			return next(c)
		}
		key := c.RealIP() + "|" + c.Path()
		if !h.limiter.Allow(key) {
			h.logger.Warn("rate limited", xlogger.String("client", c.RealIP()), xlogger.String("path", c.Path()))
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many requests, slow down"))
		}
		return next(c)
	}
}

// Chart renders one of historical.svg, forecast.svg or volatility.svg.
func (h *DashboardHandler) Chart(c echo.Context) error {
	file := c.Param("file")
	state := h.dash.Snapshot()

	var (
		opts chart.Options
		line chart.Line
	)
	switch file {
	case "historical.svg":
		opts = chart.Options{YLabel: "Price"}
		line = chart.Line{Name: "Historical", Color: chart.ColorHistorical, Points: make([]chart.Point, len(state.Historical.Value))}
		for i, p := range state.Historical.Value {
			line.Points[i] = chart.Point{Date: p.Date, Value: p.Price}
		}
	case "forecast.svg":
		opts = chart.Options{YLabel: "Price"}
		line = chart.Line{Name: "Forecast", Color: chart.ColorForecast, Points: make([]chart.Point, len(state.Forecast.Value))}
		for i, p := range state.Forecast.Value {
			line.Points[i] = chart.Point{Date: p.Date, Value: p.Price}
		}
	case "volatility.svg":
		opts = chart.Options{YLabel: "Variance"}
		line = chart.Line{Name: "Volatility", Color: chart.ColorVolatility, Points: make([]chart.Point, len(state.Volatility.Value))}
		for i, p := range state.Volatility.Value {
			line.Points[i] = chart.Point{Date: p.Date, Value: p.Variance}
		}
	default:
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("unknown chart %q", file))
	}
	return h.renderChart(c, opts, line)
}

func (h *DashboardHandler) renderChart(c echo.Context, opts chart.Options, line chart.Line) error {
	var buf bytes.Buffer
	if err := chart.RenderLine(&buf, opts, line); err != nil {
		h.logger.Error("chart render error", xlogger.String("series", line.Name), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("render %s chart", line.Name).WithError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Blob(http.StatusOK, "image/svg+xml", buf.Bytes())
}

func wantsJSON(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}
