// Package kpi maintains running survivability and utilization aggregates.
// Counters accumulate incrementally per step; snapshots are pure reads and
// never recompute from history.
package kpi

import (
	"math"

	"github.com/sunstead/sunstead/pkg/types"
)

// shortfallTolerance absorbs float dust when comparing served against
// requested critical power.
const shortfallTolerance = 1e-9

// StepInput is everything one simulation step contributes to the aggregates.
type StepInput struct {
	DTHours             float64
	CriticalRequestedKW float64
	CriticalServedKW    float64
	TotalServedKW       float64
	PVKW                float64
	CurtailedKW         float64
	// ThroughputKWH is the battery's cumulative throughput after the step,
	// mirrored rather than re-accumulated.
	ThroughputKWH float64
}

// Accumulator holds the running counters for one simulation run.
type Accumulator struct {
	critRequestedKWH float64
	critServedKWH    float64
	servedKWH        float64
	pvServedKWH      float64
	solarGenKWH      float64
	solarUsedKWH     float64
	blackoutMinutes  float64
	throughputKWH    float64
}

// Add folds one step into the counters.
func (a *Accumulator) Add(in StepInput) {
	dt := in.DTHours
	if dt <= 0 {
		return
	}
	a.critRequestedKWH += in.CriticalRequestedKW * dt
	a.critServedKWH += in.CriticalServedKW * dt
	a.servedKWH += in.TotalServedKW * dt
	a.pvServedKWH += math.Min(in.PVKW, in.TotalServedKW) * dt
	a.solarGenKWH += in.PVKW * dt
	a.solarUsedKWH += math.Max(0, in.PVKW-in.CurtailedKW) * dt
	if in.CriticalServedKW+shortfallTolerance < in.CriticalRequestedKW {
		a.blackoutMinutes += dt * 60
	}
	a.throughputKWH = in.ThroughputKWH
}

// Snapshot reads the current aggregates. CLSR and solar utilization report
// 1.0 while their denominators are still zero; SAR reports 0.0 until any
// load was served.
func (a *Accumulator) Snapshot() types.KPISnapshot {
	s := types.KPISnapshot{
		CLSR:                 1.0,
		SolarUtilization:     1.0,
		BlackoutMinutes:      a.blackoutMinutes,
		BatteryThroughputKWH: a.throughputKWH,
	}
	if a.critRequestedKWH > 0 {
		s.CLSR = a.critServedKWH / a.critRequestedKWH
	}
	if a.servedKWH > 0 {
		s.SAR = a.pvServedKWH / a.servedKWH
	}
	if a.solarGenKWH > 0 {
		s.SolarUtilization = a.solarUsedKWH / a.solarGenKWH
	}
	return s
}
