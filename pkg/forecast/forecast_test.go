package forecast

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunstead/sunstead/pkg/types"
)

type staticProvider struct {
	name   string
	points []types.IrradiancePoint
}

func (p staticProvider) Name() string { return p.name }

func (p staticProvider) PlanningGHI(context.Context, float64, float64, time.Time, int) ([]types.IrradiancePoint, error) {
	return p.points, nil
}

func TestMap(t *testing.T) {
	t.Run("DefaultProvider", func(t *testing.T) {
		m := NewMap()
		m.nasa = &NASAPower{apiURL: "https://example.com", client: http.DefaultClient}

		p, err := m.Provider("")
		require.NoError(t, err)
		assert.Equal(t, NameNASAPower, p.Name())
	})

	t.Run("Synthetic", func(t *testing.T) {
		p, err := NewMap().Provider(NameSynthetic)
		require.NoError(t, err)
		assert.Equal(t, NameSynthetic, p.Name())
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := NewMap().Provider("greedy")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown forecast provider")
	})

	t.Run("NASANotConfigured", func(t *testing.T) {
		_, err := NewMap().Provider(NameNASAPower)
		require.Error(t, err)
	})

	t.Run("SetProviderOverride", func(t *testing.T) {
		m := NewMap()
		m.SetProvider(NameNASAPower, staticProvider{name: "static"})

		p, err := m.Provider(NameNASAPower)
		require.NoError(t, err)
		assert.Equal(t, "static", p.Name())
	})

	t.Run("Validate", func(t *testing.T) {
		m := NewMap()
		require.NoError(t, m.Validate())

		m.defaultName = "bogus"
		require.Error(t, m.Validate())

		m.SetProvider("bogus", staticProvider{name: "bogus"})
		require.NoError(t, m.Validate())
	})

	t.Run("Weather", func(t *testing.T) {
		m := NewMap()
		assert.Nil(t, m.Weather())

		w := &OpenWeather{baseURL: "https://api.openweathermap.org", apiKey: "k", client: http.DefaultClient}
		m.SetWeather(w)
		require.NotNil(t, m.Weather())
		assert.True(t, m.Weather().Enabled())
	})
}
