package repository

import (
	"context"
	"time"

	"BrentView/internal/domain/models"
)

// HistoricalSource returns the daily price series for an inclusive date range.
// An empty slice with a nil error is a valid result.
type HistoricalSource interface {
	GetHistorical(ctx context.Context, start, end time.Time) ([]models.HistoricalPoint, error)
}

// Metrics records dashboard activity.
type Metrics interface {
	RecordFetch(endpoint, outcome string)
	RecordError(kind string)
	RecordSuperseded(slot string)
	RecordSeries(series string, points int, last float64)
	RecordLatency(op string, seconds float64)
}
