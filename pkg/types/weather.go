package types

import (
	"time"
)

// Location is a geocoded place as resolved by the weather provider.
type Location struct {
	Name    string  `json:"name"`
	Country string  `json:"country,omitempty"`
	State   string  `json:"state,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// WeatherConditions is a point-in-time weather snapshot shown alongside
// runs. It never feeds into control decisions.
type WeatherConditions struct {
	Main          string    `json:"main"`
	Description   string    `json:"description"`
	Icon          string    `json:"icon"`
	TemperatureC  float64   `json:"temperatureC"`
	HumidityPct   float64   `json:"humidityPct"`
	CloudCoverPct float64   `json:"cloudCoverPct"`
	WindSpeedMPS  float64   `json:"windSpeedMPS"`
	Sunrise       time.Time `json:"sunrise"`
	Sunset        time.Time `json:"sunset"`
}
