package analytics

import (
	"context"
	"fmt"

	"BrentView/internal/domain/models"
	domsvc "BrentView/internal/domain/service"
	"BrentView/pkg/config"
)

const garchPath = "/api/garch-volatility"

// HTTPGarchForecaster requests conditional variance forecasts.
type HTTPGarchForecaster struct {
	base *HTTPServiceBase
}

func NewHTTPGarchForecaster(cfg *config.Config, opts ...BaseOption) *HTTPGarchForecaster {
	return &HTTPGarchForecaster{base: NewHTTPServiceBase(cfg, opts...)}
}

type garchResp struct {
	Volatility []*float64 `json:"volatility" validate:"required"`
}

func (f *HTTPGarchForecaster) Forecast(ctx context.Context, steps int) ([]float64, error) {
	var gr garchResp
	if err := f.base.PostJSON(ctx, garchPath, stepsReq{Steps: steps}, &gr); err != nil {
		return nil, err
	}
	if err := validatePayload(ctx, garchPath, &gr); err != nil {
		return nil, err
	}
	if len(gr.Volatility) != steps {
		return nil, models.NewDecodeError(garchPath, fmt.Errorf("got %d values for %d steps", len(gr.Volatility), steps))
	}
	values, err := series(garchPath, gr.Volatility)
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if v < 0 {
			return nil, models.NewDecodeError(garchPath, fmt.Errorf("negative variance %g at index %d", v, i))
		}
	}
	return values, nil
}

var _ domsvc.VolatilityForecaster = (*HTTPGarchForecaster)(nil)
