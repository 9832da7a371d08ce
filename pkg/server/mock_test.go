package server

import (
	"context"
	"time"

	"github.com/sunstead/sunstead/pkg/types"
)

// mockForecastProvider returns canned irradiance points and captures the last
// planning request for verification.
type mockForecastProvider struct {
	name   string
	points []types.IrradiancePoint
	err    error

	lastLat  float64
	lastLon  float64
	lastRef  time.Time
	lastDays int
}

func (m *mockForecastProvider) Name() string {
	if m.name == "" {
		return "mock"
	}
	return m.name
}

func (m *mockForecastProvider) PlanningGHI(ctx context.Context, lat, lon float64, ref time.Time, days int) ([]types.IrradiancePoint, error) {
	m.lastLat = lat
	m.lastLon = lon
	m.lastRef = ref
	m.lastDays = days
	return m.points, m.err
}

// mockWeather returns canned geocoding and conditions responses.
type mockWeather struct {
	enabled    bool
	locations  []types.Location
	conditions types.WeatherConditions
	geocodeErr error
	reverseErr error
	currentErr error

	lastQuery string
	lastLat   float64
	lastLon   float64
}

func (m *mockWeather) Enabled() bool {
	return m.enabled
}

func (m *mockWeather) Geocode(ctx context.Context, query string, limit int) ([]types.Location, error) {
	m.lastQuery = query
	return m.locations, m.geocodeErr
}

func (m *mockWeather) ReverseGeocode(ctx context.Context, lat, lon float64) ([]types.Location, error) {
	return m.locations, m.reverseErr
}

func (m *mockWeather) CurrentWeather(ctx context.Context, lat, lon float64) (types.WeatherConditions, error) {
	m.lastLat = lat
	m.lastLon = lon
	return m.conditions, m.currentErr
}

// testScenario returns a small but realistic household for handler tests.
// Tunables are left zero so handlers exercise their own defaulting.
func testScenario() types.Scenario {
	return types.Scenario{
		Config: types.SystemConfig{
			LocationName:       "Test Site",
			Latitude:           -1.2833,
			Longitude:          36.8167,
			PVCapacityKW:       2,
			BatteryCapacityKWH: 5,
			InverterMaxKW:      2,
		},
		Appliances: []types.Appliance{
			{ID: "fridge", Name: "Fridge", Category: types.CategoryCritical, PowerKW: 0.15},
			{ID: "washer", Name: "Washer", Category: types.CategoryDeferrable, PowerKW: 0.5, DurationSteps: 4},
		},
	}
}
