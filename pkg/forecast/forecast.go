// Package forecast retrieves and shapes solar irradiance series for
// simulation runs. Providers return hourly GHI covering the planning window;
// Resample fits any series to the run's step grid. Weather lookups are a
// separate display-only concern and never contribute irradiance.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/sunstead/sunstead/pkg/types"
)

const (
	// NameNASAPower is the NASA POWER hourly archive provider.
	NameNASAPower = "nasa_power"
	// NameSynthetic is the deterministic bell-shaped profile.
	NameSynthetic = "synthetic"
)

// ErrNoData is returned when neither the planning fetch nor any fallback
// produced a usable irradiance series. Callers substitute the synthetic
// profile and record the substitution on the run.
var ErrNoData = errors.New("no usable irradiance data")

// Provider supplies hourly GHI forecasts for run planning.
type Provider interface {
	// Name identifies the provider in run provenance.
	Name() string

	// PlanningGHI returns hourly irradiance points covering the given number
	// of full UTC calendar days, starting the day after ref.
	PlanningGHI(ctx context.Context, lat, lon float64, ref time.Time, days int) ([]types.IrradiancePoint, error)
}

// Weather resolves place names and current conditions for display.
type Weather interface {
	// Enabled reports whether the client has credentials to make requests.
	Enabled() bool

	// Geocode resolves a place name to candidate coordinates.
	Geocode(ctx context.Context, query string, limit int) ([]types.Location, error)

	// ReverseGeocode resolves coordinates to the nearest named place.
	ReverseGeocode(ctx context.Context, lat, lon float64) ([]types.Location, error)

	// CurrentWeather fetches current conditions at the coordinates.
	CurrentWeather(ctx context.Context, lat, lon float64) (types.WeatherConditions, error)
}

// Configured sets up the forecast providers and returns a Map.
func Configured() *Map {
	m := NewMap()
	m.nasa = configuredNASAPower()
	m.weather = configuredOpenWeather()
	defaultName := lflag.String("forecast-provider", NameNASAPower, "solar forecast provider used for runs (nasa_power or synthetic)")
	lflag.Do(func() {
		m.defaultName = *defaultName
		if err := m.Validate(); err != nil {
			panic(fmt.Sprintf("forecast validation failed: %v", err))
		}
	})
	return m
}

// Map manages forecast providers.
type Map struct {
	mu          sync.Mutex
	nasa        *NASAPower
	weather     Weather
	defaultName string
	providers   map[string]Provider
}

// NewMap creates a new forecast Map.
func NewMap() *Map {
	return &Map{
		defaultName: NameNASAPower,
		providers:   make(map[string]Provider),
	}
}

// Validate ensures the configured providers are valid.
func (m *Map) Validate() error {
	if m.nasa != nil {
		if err := m.nasa.Validate(); err != nil {
			return err
		}
	}
	if w, ok := m.weather.(*OpenWeather); ok && w != nil {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	switch m.defaultName {
	case "", NameNASAPower, NameSynthetic:
	default:
		if _, ok := m.providers[m.defaultName]; !ok {
			return fmt.Errorf("unknown forecast provider: %s", m.defaultName)
		}
	}
	return nil
}

// Provider returns the named forecast provider. An empty name selects the
// configured default.
func (m *Map) Provider(name string) (Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		name = m.defaultName
	}
	if p, ok := m.providers[name]; ok {
		return p, nil
	}

	switch name {
	case NameNASAPower:
		if m.nasa == nil {
			return nil, fmt.Errorf("nasa_power provider not configured")
		}
		m.providers[name] = m.nasa
		return m.nasa, nil
	case NameSynthetic:
		p := Synthetic{}
		m.providers[name] = p
		return p, nil
	default:
		return nil, fmt.Errorf("unknown forecast provider: %s", name)
	}
}

// Weather returns the display weather client. It may be disabled; callers
// check Enabled before use.
func (m *Map) Weather() Weather {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.weather
}

// SetProvider sets a mock provider for testing.
func (m *Map) SetProvider(name string, provider Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = provider
}

// SetWeather sets a mock weather client for testing.
func (m *Map) SetWeather(w Weather) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weather = w
}
