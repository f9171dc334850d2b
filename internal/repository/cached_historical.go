package repository

import (
	"context"
	"errors"
	"time"

	"BrentView/internal/domain/models"
	domrepo "BrentView/internal/domain/repository"
	"BrentView/pkg/cache"
	applogger "BrentView/pkg/logger"
	"BrentView/pkg/util"
)

const historicalKeyPrefix = "historical"

// CachedHistoricalSource serves the historical series from cache and falls
// back to the wrapped source on a miss. Errors are never cached.
type CachedHistoricalSource struct {
	next  domrepo.HistoricalSource
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

func NewCachedHistoricalSource(next domrepo.HistoricalSource, c cache.Service, ttl time.Duration) *CachedHistoricalSource {
	return &CachedHistoricalSource{next: next, cache: c, ttl: ttl, l: applogger.NewNop()}
}

// SetLogger injects a structured logger.
func (s *CachedHistoricalSource) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *CachedHistoricalSource) GetHistorical(ctx context.Context, start, end time.Time) ([]models.HistoricalPoint, error) {
	key := historicalKey(start, end)

	points, err := cache.GetJSON[[]models.HistoricalPoint](ctx, s.cache, key)
	if err == nil {
		s.l.Debug("historical cache hit", applogger.String("key", key), applogger.Int("points", len(points)))
		return points, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.l.Warn("historical cache read failed", applogger.String("key", key), applogger.Error(err))
	}

	points, err = s.next.GetHistorical(ctx, start, end)
	if err != nil {
		return nil, err
	}

	if err := cache.SetJSON(ctx, s.cache, key, points, s.ttl); err != nil {
		s.l.Warn("historical cache write failed", applogger.String("key", key), applogger.Error(err))
	}
	return points, nil
}

// Invalidate drops the cached series for the range.
func (s *CachedHistoricalSource) Invalidate(ctx context.Context, start, end time.Time) error {
	return s.cache.Delete(ctx, historicalKey(start, end))
}

func historicalKey(start, end time.Time) string {
	return cache.GenerateKeyWithParams(historicalKeyPrefix, util.FormatDate(start), util.FormatDate(end))
}

var _ domrepo.HistoricalSource = (*CachedHistoricalSource)(nil)
