package models

// StepsRequest is the optional form or query input of the forecast actions.
// Zero means the configured default.
type StepsRequest struct {
	Steps int `form:"steps" query:"steps" json:"steps" validate:"omitempty,gte=1,lte=365"`
}

// SlotName identifies one of the dashboard results.
type SlotName string

const (
	SlotHistorical  SlotName = "historical"
	SlotForecast    SlotName = "forecast"
	SlotChangePoint SlotName = "change_point"
	SlotVolatility  SlotName = "volatility"
)
