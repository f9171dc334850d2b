package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"BrentView/internal/domain/models"
	"BrentView/pkg/config"
	xhttp "BrentView/pkg/http"
	applogger "BrentView/pkg/logger"
)

// BaseOption configures HTTPServiceBase.
type BaseOption func(*HTTPServiceBase)

// WithBackoff sets the base delay between retries. Attempt i waits i*d.
func WithBackoff(d time.Duration) BaseOption {
	return func(b *HTTPServiceBase) {
		b.backoff = d
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *applogger.Logger) BaseOption {
	return func(b *HTTPServiceBase) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithClientOptions passes options through to the underlying HTTP client.
func WithClientOptions(opts ...xhttp.ClientOption) BaseOption {
	return func(b *HTTPServiceBase) {
		b.clientOpts = append(b.clientOpts, opts...)
	}
}

// HTTPServiceBase is the shared foundation of the analytics API clients.
// It owns the HTTP client, retries transient failures and classifies every
// failure as a models.FetchError.
type HTTPServiceBase struct {
	baseURL    string
	attempts   int
	backoff    time.Duration
	client     *xhttp.Client
	clientOpts []xhttp.ClientOption
	logger     *applogger.Logger
}

// NewHTTPServiceBase builds a client from the analytics section of cfg.
func NewHTTPServiceBase(cfg *config.Config, opts ...BaseOption) *HTTPServiceBase {
	b := &HTTPServiceBase{
		baseURL:  strings.TrimRight(cfg.Analytics.BaseURL, "/"),
		attempts: cfg.Analytics.RetryAttempts,
		backoff:  cfg.Analytics.Backoff,
		logger:   applogger.NewNop(),
	}
	if b.attempts < 1 {
		b.attempts = 1
	}

	for _, opt := range opts {
		opt(b)
	}

	clientOpts := append([]xhttp.ClientOption{xhttp.WithTimeout(cfg.Analytics.Timeout)}, b.clientOpts...)
	b.client = xhttp.NewClient(clientOpts...)
	return b
}

// GetJSON issues a GET to path with query and decodes the JSON answer into dest.
func (b *HTTPServiceBase) GetJSON(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	return b.doWithRetry(ctx, path, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         b.baseURL + path,
		QueryParams: query,
	}, dest)
}

// PostJSON posts payload as JSON to path and decodes the JSON answer into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	return b.doWithRetry(ctx, path, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    b.baseURL + path,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: payload,
	}, dest)
}

func (b *HTTPServiceBase) doWithRetry(ctx context.Context, path string, opts *xhttp.RequestOptions, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return models.NewNetworkError(path, 0, errors.New("analytics http client not initialized"))
	}

	var ferr *models.FetchError
	for i := 1; i <= b.attempts; i++ {
		ferr = classify(path, b.client.SendAndParse(ctx, opts, dest))
		if ferr == nil {
			return nil
		}
		if !ferr.Retryable() || i == b.attempts || ctx.Err() != nil {
			break
		}

		b.logger.Warn("analytics request failed, retrying",
			applogger.String("endpoint", path),
			applogger.Int("attempt", i),
			applogger.Error(ferr),
		)
		select {
		case <-time.After(time.Duration(i) * b.backoff):
		case <-ctx.Done():
			return models.NewNetworkError(path, 0, ctx.Err())
		}
	}
	return ferr
}

// classify maps a client error onto a FetchError kind.
func classify(path string, err error) *models.FetchError {
	if err == nil {
		return nil
	}

	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return models.NewNetworkError(path, se.Code, err)
	}
	var de *xhttp.DecodeError
	if errors.As(err, &de) {
		return models.NewDecodeError(path, err)
	}
	return models.NewNetworkError(path, 0, err)
}

// series unwraps a decoded numeric array. A null element is a decode error.
func series(path string, vals []*float64) ([]float64, error) {
	out := make([]float64, len(vals))
	for i, v := range vals {
		if v == nil {
			return nil, models.NewDecodeError(path, fmt.Errorf("null value at index %d", i))
		}
		out[i] = *v
	}
	return out, nil
}

// validatePayload checks struct tags of a decoded response.
func validatePayload(ctx context.Context, path string, v interface{}) error {
	if err := xhttp.ValidateStruct(ctx, v); err != nil {
		return models.NewDecodeError(path, fmt.Errorf("invalid payload: %w", err))
	}
	return nil
}
