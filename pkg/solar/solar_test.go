package solar

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sunstead/sunstead/pkg/types"
)

func testConfig() types.SystemConfig {
	cfg := types.SystemConfig{
		PVCapacityKW:       3,
		BatteryCapacityKWH: 5,
		InverterMaxKW:      2.5,
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestPowerKW(t *testing.T) {
	cfg := testConfig()

	assert.Zero(t, PowerKW(0, cfg))
	assert.Zero(t, PowerKW(-50, cfg), "negative irradiance clamps to zero")

	// 3 kW * (500/1000) * 0.85 = 1.275 kW
	assert.InDelta(t, 1.275, PowerKW(500, cfg), 1e-9)

	// 1000 W/m² never exceeds nameplate even with efficiency folded in.
	assert.InDelta(t, 2.55, PowerKW(1000, cfg), 1e-9)
	assert.LessOrEqual(t, PowerKW(2000, cfg), cfg.PVCapacityKW, "clamped to nameplate")
}

func TestSeries(t *testing.T) {
	cfg := testConfig()
	out := Series([]float64{0, 500, 1000}, cfg)
	assert.Equal(t, []float64{0, 1.275, 2.55}, out)
}
