// Package battery models the storage pack as a state-of-charge integrator
// with charge/discharge efficiencies and hard SOC and inverter limits.
package battery

import (
	"math"

	"github.com/sunstead/sunstead/pkg/types"
)

// Update applies a signed power command to the pack for one timestep and
// returns the new state plus the portion of the command that could not be
// applied. Positive commands charge, negative commands discharge. Commands
// are clipped to the inverter rating and SOC is clamped to [SOCMin, SOCMax];
// both clips surface in the returned unmet power so the caller can decide
// whether that means curtailment (charge) or shedding (discharge).
// Throughput accumulates the energy that actually moved through the cells.
func Update(state types.BatteryState, commandKW, dtHours float64, cfg types.SystemConfig) (types.BatteryState, float64) {
	if dtHours <= 0 || cfg.BatteryCapacityKWH <= 0 {
		return state, 0
	}

	requested := math.Abs(commandKW)
	applied := math.Min(requested, cfg.InverterMaxKW)

	next := state
	var appliedKW float64
	switch {
	case commandKW > 0:
		// Charging: efficiency losses happen before the cells, so only
		// applied*eff reaches storage.
		deltaSOC := applied * dtHours * cfg.ChargeEfficiency / cfg.BatteryCapacityKWH
		target := state.SOC + deltaSOC
		if target > cfg.SOCMax {
			target = cfg.SOCMax
		}
		stored := (target - state.SOC) * cfg.BatteryCapacityKWH
		next.SOC = target
		next.ThroughputKWH += stored
		appliedKW = stored / (dtHours * cfg.ChargeEfficiency)
	case commandKW < 0:
		// Discharging: cells must supply applied/eff to deliver applied.
		deltaSOC := applied * dtHours / math.Max(1e-9, cfg.DischargeEfficiency) / cfg.BatteryCapacityKWH
		target := state.SOC - deltaSOC
		if target < cfg.SOCMin {
			target = cfg.SOCMin
		}
		drawn := (state.SOC - target) * cfg.BatteryCapacityKWH
		next.SOC = target
		next.ThroughputKWH += drawn
		appliedKW = drawn * cfg.DischargeEfficiency / dtHours
	default:
		return state, 0
	}

	unmet := requested - appliedKW
	if unmet < 1e-12 {
		unmet = 0
	}
	return next, unmet
}

// MaxChargeKW returns the largest charge command the pack can fully absorb
// this timestep without hitting SOCMax or the inverter rating.
func MaxChargeKW(state types.BatteryState, dtHours float64, cfg types.SystemConfig) float64 {
	if dtHours <= 0 || cfg.BatteryCapacityKWH <= 0 || cfg.ChargeEfficiency <= 0 {
		return 0
	}
	headroom := (cfg.SOCMax - state.SOC) * cfg.BatteryCapacityKWH
	if headroom <= 0 {
		return 0
	}
	return math.Min(headroom/(dtHours*cfg.ChargeEfficiency), cfg.InverterMaxKW)
}

// MaxDischargeKW returns the largest discharge command the pack can fully
// deliver this timestep without dropping below floorSOC. Policies pass their
// own reserve floor; the physical floor is cfg.SOCMin.
func MaxDischargeKW(state types.BatteryState, floorSOC, dtHours float64, cfg types.SystemConfig) float64 {
	if dtHours <= 0 || cfg.BatteryCapacityKWH <= 0 {
		return 0
	}
	avail := (state.SOC - floorSOC) * cfg.BatteryCapacityKWH * cfg.DischargeEfficiency
	if avail <= 0 {
		return 0
	}
	return math.Min(avail/dtHours, cfg.InverterMaxKW)
}
