package service

import "context"

// Forecaster predicts the next steps daily prices, in order.
type Forecaster interface {
	Forecast(ctx context.Context, steps int) ([]float64, error)
}

// DatedForecaster is implemented by forecasters whose backend also returns
// the dates of the predicted values.
type DatedForecaster interface {
	ForecastWithDates(ctx context.Context, steps int) ([]float64, []string, error)
}

// ChangePointDetector returns the most likely structural break as a day
// index into the historical series. Nil means none was found.
type ChangePointDetector interface {
	Detect(ctx context.Context) (*int, error)
}

// VolatilityForecaster predicts the next steps conditional variances.
type VolatilityForecaster interface {
	Forecast(ctx context.Context, steps int) ([]float64, error)
}
