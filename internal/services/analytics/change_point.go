package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"BrentView/internal/domain/models"
	domsvc "BrentView/internal/domain/service"
	"BrentView/pkg/config"
)

const changePointPath = "/api/bayesian-change-point"

// HTTPChangePointDetector queries the Bayesian change point endpoint.
type HTTPChangePointDetector struct {
	base *HTTPServiceBase
}

func NewHTTPChangePointDetector(cfg *config.Config, opts ...BaseOption) *HTTPChangePointDetector {
	return &HTTPChangePointDetector{base: NewHTTPServiceBase(cfg, opts...)}
}

type changePointResp struct {
	ChangePoint *json.Number `json:"change_point"`
}

func (d *HTTPChangePointDetector) Detect(ctx context.Context) (*int, error) {
	var cr changePointResp
	if err := d.base.GetJSON(ctx, changePointPath, nil, &cr); err != nil {
		return nil, err
	}
	if cr.ChangePoint == nil {
		return nil, nil
	}

	day, err := dayIndex(*cr.ChangePoint)
	if err != nil {
		return nil, models.NewDecodeError(changePointPath, err)
	}
	return &day, nil
}

// maxDayIndex bounds a change point however it is encoded.
const maxDayIndex = math.MaxInt32

// dayIndex accepts integral numbers, including ones encoded as floats (17.0).
func dayIndex(n json.Number) (int, error) {
	if i, err := n.Int64(); err == nil {
		if i < 0 || i > maxDayIndex {
			return 0, fmt.Errorf("change point %d is not a day index", i)
		}
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("change point %q: %w", n, err)
	}
	if f < 0 || f != math.Trunc(f) || f > maxDayIndex {
		return 0, fmt.Errorf("change point %q is not a day index", n)
	}
	return int(f), nil
}

var _ domsvc.ChangePointDetector = (*HTTPChangePointDetector)(nil)
