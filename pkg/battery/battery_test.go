package battery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func TestUpdateCharge(t *testing.T) {
	cfg := testConfig()
	state := types.BatteryState{SOC: 0.5}

	// 2 kW for 15 min at 0.95 efficiency stores 0.475 kWh.
	next, unmet := Update(state, 2.0, 0.25, cfg)
	require.Zero(t, unmet)
	assert.InDelta(t, 0.5+0.475/5.0, next.SOC, 1e-9)
	assert.InDelta(t, 0.475, next.ThroughputKWH, 1e-9)
}

func TestUpdateChargeClampsAtSOCMax(t *testing.T) {
	cfg := testConfig()
	state := types.BatteryState{SOC: 0.94}

	next, unmet := Update(state, 2.5, 0.25, cfg)
	assert.InDelta(t, cfg.SOCMax, next.SOC, 1e-9)
	// Only 0.05 kWh fit; the rest of the command is reported back.
	stored := (cfg.SOCMax - 0.94) * cfg.BatteryCapacityKWH
	assert.InDelta(t, stored, next.ThroughputKWH, 1e-9)
	assert.InDelta(t, 2.5-stored/(0.25*cfg.ChargeEfficiency), unmet, 1e-9)
	assert.Positive(t, unmet)
}

func TestUpdateDischarge(t *testing.T) {
	cfg := testConfig()
	state := types.BatteryState{SOC: 0.7}

	// Delivering 1 kW for 15 min draws 0.25/0.95 kWh from the cells.
	next, unmet := Update(state, -1.0, 0.25, cfg)
	require.Zero(t, unmet)
	drawn := 0.25 / cfg.DischargeEfficiency
	assert.InDelta(t, 0.7-drawn/5.0, next.SOC, 1e-9)
	assert.InDelta(t, drawn, next.ThroughputKWH, 1e-9)
}

func TestUpdateDischargeClampsAtSOCMin(t *testing.T) {
	cfg := testConfig()
	state := types.BatteryState{SOC: cfg.SOCMin + 0.01}

	next, unmet := Update(state, -2.5, 0.25, cfg)
	assert.InDelta(t, cfg.SOCMin, next.SOC, 1e-9)
	drawn := 0.01 * cfg.BatteryCapacityKWH
	delivered := drawn * cfg.DischargeEfficiency
	assert.InDelta(t, 2.5-delivered/0.25, unmet, 1e-9)
	assert.Positive(t, unmet)
}

func TestUpdateClipsToInverter(t *testing.T) {
	cfg := testConfig()
	state := types.BatteryState{SOC: 0.5}

	// A 10 kW command on a 2.5 kW inverter applies 2.5 kW and returns 7.5.
	next, unmet := Update(state, 10, 0.25, cfg)
	assert.InDelta(t, 7.5, unmet, 1e-9)
	assert.InDelta(t, 0.5+2.5*0.25*cfg.ChargeEfficiency/5.0, next.SOC, 1e-9)
}

func TestUpdateZeroCommand(t *testing.T) {
	cfg := testConfig()
	state := types.BatteryState{SOC: 0.5, ThroughputKWH: 1.25}

	next, unmet := Update(state, 0, 0.25, cfg)
	assert.Equal(t, state, next)
	assert.Zero(t, unmet)
}

func TestUpdateSOCStaysInBounds(t *testing.T) {
	cfg := testConfig()
	state := types.BatteryState{SOC: cfg.SOCInit}

	commands := []float64{3, -3, 2.5, 2.5, 2.5, 2.5, -4, -4, -4, -4, -4, 1}
	for _, c := range commands {
		state, _ = Update(state, c, 0.25, cfg)
		assert.GreaterOrEqual(t, state.SOC, cfg.SOCMin)
		assert.LessOrEqual(t, state.SOC, cfg.SOCMax)
	}
	assert.Positive(t, state.ThroughputKWH)
}

func TestMaxChargeKW(t *testing.T) {
	cfg := testConfig()

	assert.Zero(t, MaxChargeKW(types.BatteryState{SOC: cfg.SOCMax}, 0.25, cfg))

	// Plenty of headroom caps at the inverter rating.
	assert.InDelta(t, 2.5, MaxChargeKW(types.BatteryState{SOC: 0.3}, 0.25, cfg), 1e-9)

	// Near-full pack accepts only what the remaining headroom allows.
	got := MaxChargeKW(types.BatteryState{SOC: 0.94}, 0.25, cfg)
	assert.InDelta(t, (cfg.SOCMax-0.94)*5.0/(0.25*cfg.ChargeEfficiency), got, 1e-9)
}

func TestMaxDischargeKW(t *testing.T) {
	cfg := testConfig()

	assert.Zero(t, MaxDischargeKW(types.BatteryState{SOC: cfg.SOCMin}, cfg.SOCMin, 0.25, cfg))

	assert.InDelta(t, 2.5, MaxDischargeKW(types.BatteryState{SOC: 0.9}, cfg.SOCMin, 0.25, cfg), 1e-9)

	// A raised floor shrinks what the pack may deliver.
	floor := cfg.SOCMin + 0.2
	got := MaxDischargeKW(types.BatteryState{SOC: floor + 0.02}, floor, 0.25, cfg)
	assert.InDelta(t, 0.02*5.0*cfg.DischargeEfficiency/0.25, got, 1e-9)
}

func TestMaxDischargeRoundTripsThroughUpdate(t *testing.T) {
	cfg := testConfig()
	state := types.BatteryState{SOC: 0.4}

	max := MaxDischargeKW(state, cfg.SOCMin, 0.25, cfg)
	_, unmet := Update(state, -max, 0.25, cfg)
	assert.InDelta(t, 0, unmet, 1e-9, "a command sized by MaxDischargeKW is fully served")
}
