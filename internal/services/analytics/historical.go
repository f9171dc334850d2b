package analytics

import (
	"context"
	"fmt"
	"time"

	"BrentView/internal/domain/models"
	"BrentView/internal/domain/repository"
	"BrentView/pkg/config"
	"BrentView/pkg/util"
)

const historicalPath = "/api/historical-data"

// HTTPHistoricalSource reads the daily price series from the analytics API.
type HTTPHistoricalSource struct {
	base *HTTPServiceBase
}

func NewHTTPHistoricalSource(cfg *config.Config, opts ...BaseOption) *HTTPHistoricalSource {
	return &HTTPHistoricalSource{base: NewHTTPServiceBase(cfg, opts...)}
}

// historicalRecord is one row of the backend's frame. Other columns are ignored.
type historicalRecord struct {
	Date  string   `json:"Date" validate:"required"`
	Price *float64 `json:"Price" validate:"required"`
}

type historicalResp struct {
	Records []historicalRecord `validate:"dive"`
}

func (s *HTTPHistoricalSource) GetHistorical(ctx context.Context, start, end time.Time) ([]models.HistoricalPoint, error) {
	var hr historicalResp
	err := s.base.GetJSON(ctx, historicalPath, map[string][]string{
		"start_date": {util.FormatDate(start)},
		"end_date":   {util.FormatDate(end)},
	}, &hr.Records)
	if err != nil {
		return nil, err
	}
	if err := validatePayload(ctx, historicalPath, &hr); err != nil {
		return nil, err
	}

	out := make([]models.HistoricalPoint, 0, len(hr.Records))
	for i, r := range hr.Records {
		date, ok := util.NormalizeDate(r.Date)
		if !ok {
			return nil, models.NewDecodeError(historicalPath, fmt.Errorf("record %d: unparseable date %q", i, r.Date))
		}
		out = append(out, models.HistoricalPoint{Date: date, Price: *r.Price})
	}
	return out, nil
}

var _ repository.HistoricalSource = (*HTTPHistoricalSource)(nil)
