// Package solar converts irradiance forecasts into PV power output.
package solar

import (
	"github.com/sunstead/sunstead/pkg/types"
)

// PowerKW returns the AC power produced by the array for a given global
// horizontal irradiance in W/m². The array is modeled as nameplate capacity
// scaled by irradiance relative to standard test conditions (1000 W/m²) and
// by the system performance ratio. Output is clamped to [0, capacity] so
// bad irradiance inputs can never produce negative or super-nameplate power.
func PowerKW(ghiWM2 float64, cfg types.SystemConfig) float64 {
	if ghiWM2 <= 0 {
		return 0
	}
	p := cfg.PVCapacityKW * (ghiWM2 / 1000.0) * cfg.PVEfficiency
	if p < 0 {
		return 0
	}
	if p > cfg.PVCapacityKW {
		return cfg.PVCapacityKW
	}
	return p
}

// Series maps a slice of irradiance values through PowerKW.
func Series(ghi []float64, cfg types.SystemConfig) []float64 {
	out := make([]float64, len(ghi))
	for i, g := range ghi {
		out[i] = PowerKW(g, cfg)
	}
	return out
}
