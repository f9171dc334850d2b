package models

import "time"

// HistoricalPoint is one observed daily price.
type HistoricalPoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// ForecastPoint is one predicted daily price. Date is synthesized from the
// request time, not returned by the model.
type ForecastPoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// VolatilityPoint is one predicted conditional variance.
type VolatilityPoint struct {
	Date     string  `json:"date"`
	Variance float64 `json:"variance"`
}

// SlotStatus is the lifecycle of a single result held by the dashboard.
type SlotStatus string

const (
	StatusIdle    SlotStatus = "idle"
	StatusLoading SlotStatus = "loading"
	StatusReady   SlotStatus = "ready"
	StatusFailed  SlotStatus = "failed"
)

// SlotError is the view of the last failure of a slot.
type SlotError struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
}

// Slot holds the last good value of one result and the state of the most
// recent request for it. A failure never clears Value.
type Slot[T any] struct {
	Status    SlotStatus `json:"status"`
	Value     T          `json:"value"`
	HasValue  bool       `json:"has_value"`
	Error     *SlotError `json:"error,omitempty"`
	UpdatedAt time.Time  `json:"updated_at,omitempty"`
}

// Loading reports whether a request is in flight.
func (s Slot[T]) Loading() bool { return s.Status == StatusLoading }

// Failed reports whether the last request failed.
func (s Slot[T]) Failed() bool { return s.Status == StatusFailed }

// ViewConfig is the static part of the page.
type ViewConfig struct {
	Title           string `json:"title"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	ForecastSteps   int    `json:"forecast_steps"`
	VolatilitySteps int    `json:"volatility_steps"`
}

// ViewState is a point-in-time copy of everything the page shows.
type ViewState struct {
	Config      ViewConfig              `json:"config"`
	Historical  Slot[[]HistoricalPoint] `json:"historical"`
	Forecast    Slot[[]ForecastPoint]   `json:"forecast"`
	ChangePoint Slot[*int]              `json:"change_point"`
	Volatility  Slot[[]VolatilityPoint] `json:"volatility"`
	Version     uint64                  `json:"version"`
}

// ShowForecast reports whether the forecast chart is visible.
func (v ViewState) ShowForecast() bool { return len(v.Forecast.Value) > 0 }

// ShowVolatility reports whether the volatility chart is visible.
func (v ViewState) ShowVolatility() bool { return len(v.Volatility.Value) > 0 }

// ChangePointDay returns the detected day index, if any.
func (v ViewState) ChangePointDay() (int, bool) {
	if v.ChangePoint.Value == nil {
		return 0, false
	}
	return *v.ChangePoint.Value, true
}
