package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"BrentView/internal/domain/models"
	"BrentView/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls  int
	points []models.HistoricalPoint
	err    error
}

func (s *countingSource) GetHistorical(context.Context, time.Time, time.Time) ([]models.HistoricalPoint, error) {
	s.calls++
	return s.points, s.err
}

var (
	rangeStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd   = time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)
)

func TestCachedHistoricalHitsUpstreamOnce(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	src := &countingSource{points: []models.HistoricalPoint{{Date: "2020-01-02", Price: 67.05}}}
	cached := NewCachedHistoricalSource(src, mem, time.Hour)

	for i := 0; i < 3; i++ {
		points, err := cached.GetHistorical(context.Background(), rangeStart, rangeEnd)
		require.NoError(t, err)
		assert.Equal(t, src.points, points)
	}
	assert.Equal(t, 1, src.calls)
}

func TestCachedHistoricalInvalidate(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	src := &countingSource{points: []models.HistoricalPoint{}}
	cached := NewCachedHistoricalSource(src, mem, time.Hour)

	_, err := cached.GetHistorical(context.Background(), rangeStart, rangeEnd)
	require.NoError(t, err)
	require.NoError(t, cached.Invalidate(context.Background(), rangeStart, rangeEnd))
	_, err = cached.GetHistorical(context.Background(), rangeStart, rangeEnd)
	require.NoError(t, err)

	assert.Equal(t, 2, src.calls)
}

func TestCachedHistoricalDoesNotCacheErrors(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	src := &countingSource{err: errors.New("down")}
	cached := NewCachedHistoricalSource(src, mem, time.Hour)

	_, err := cached.GetHistorical(context.Background(), rangeStart, rangeEnd)
	require.Error(t, err)
	assert.Equal(t, 0, mem.Len())

	src.err = nil
	src.points = []models.HistoricalPoint{{Date: "2020-01-02", Price: 1}}
	points, err := cached.GetHistorical(context.Background(), rangeStart, rangeEnd)
	require.NoError(t, err)
	assert.Len(t, points, 1)
}
