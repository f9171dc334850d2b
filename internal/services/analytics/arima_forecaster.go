package analytics

import (
	"context"
	"fmt"

	"BrentView/internal/domain/models"
	domsvc "BrentView/internal/domain/service"
	"BrentView/pkg/config"
	"BrentView/pkg/util"
)

const arimaPath = "/api/arima-forecast"

// HTTPArimaForecaster requests price forecasts from the ARIMA endpoint.
type HTTPArimaForecaster struct {
	base *HTTPServiceBase
}

func NewHTTPArimaForecaster(cfg *config.Config, opts ...BaseOption) *HTTPArimaForecaster {
	return &HTTPArimaForecaster{base: NewHTTPServiceBase(cfg, opts...)}
}

type stepsReq struct {
	Steps int `json:"steps"`
}

type arimaResp struct {
	Forecast []*float64 `json:"forecast" validate:"required"`
	Dates    []string   `json:"dates,omitempty"`
}

func (f *HTTPArimaForecaster) Forecast(ctx context.Context, steps int) ([]float64, error) {
	values, _, err := f.ForecastWithDates(ctx, steps)
	return values, err
}

// ForecastWithDates also returns the backend's dates when it sends a usable
// list. The dates are nil otherwise and the caller synthesizes them.
func (f *HTTPArimaForecaster) ForecastWithDates(ctx context.Context, steps int) ([]float64, []string, error) {
	var ar arimaResp
	if err := f.base.PostJSON(ctx, arimaPath, stepsReq{Steps: steps}, &ar); err != nil {
		return nil, nil, err
	}
	if err := validatePayload(ctx, arimaPath, &ar); err != nil {
		return nil, nil, err
	}
	if len(ar.Forecast) != steps {
		return nil, nil, models.NewDecodeError(arimaPath, fmt.Errorf("got %d values for %d steps", len(ar.Forecast), steps))
	}
	values, err := series(arimaPath, ar.Forecast)
	if err != nil {
		return nil, nil, err
	}
	return values, normalizeDates(ar.Dates, len(values)), nil
}

// normalizeDates returns dates as YYYY-MM-DD when there is exactly one
// parseable date per value, and nil otherwise.
func normalizeDates(dates []string, n int) []string {
	if len(dates) != n || n == 0 {
		return nil
	}
	out := make([]string, n)
	for i, d := range dates {
		norm, ok := util.NormalizeDate(d)
		if !ok {
			return nil
		}
		out[i] = norm
	}
	return out
}

var (
	_ domsvc.Forecaster      = (*HTTPArimaForecaster)(nil)
	_ domsvc.DatedForecaster = (*HTTPArimaForecaster)(nil)
)
