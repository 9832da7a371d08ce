package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccumulator(t *testing.T) {
	t.Run("EmptyDefaults", func(t *testing.T) {
		var a Accumulator
		s := a.Snapshot()
		assert.Equal(t, 1.0, s.CLSR)
		assert.Equal(t, 0.0, s.SAR)
		assert.Equal(t, 1.0, s.SolarUtilization)
		assert.Equal(t, 0.0, s.BlackoutMinutes)
	})

	t.Run("FullService", func(t *testing.T) {
		var a Accumulator
		for i := 0; i < 4; i++ {
			a.Add(StepInput{
				DTHours:             0.25,
				CriticalRequestedKW: 1,
				CriticalServedKW:    1,
				TotalServedKW:       2,
				PVKW:                3,
				ThroughputKWH:       float64(i) * 0.1,
			})
		}
		s := a.Snapshot()
		assert.InDelta(t, 1.0, s.CLSR, 1e-9)
		assert.Equal(t, 0.0, s.BlackoutMinutes)
		// pv covers all served load directly
		assert.InDelta(t, 1.0, s.SAR, 1e-9)
		assert.InDelta(t, 1.0, s.SolarUtilization, 1e-9)
		// throughput mirrors the latest running total
		assert.InDelta(t, 0.3, s.BatteryThroughputKWH, 1e-9)
	})

	t.Run("Shortfall", func(t *testing.T) {
		var a Accumulator
		a.Add(StepInput{DTHours: 0.25, CriticalRequestedKW: 2, CriticalServedKW: 2, TotalServedKW: 2})
		a.Add(StepInput{DTHours: 0.25, CriticalRequestedKW: 2, CriticalServedKW: 1, TotalServedKW: 1})

		s := a.Snapshot()
		assert.InDelta(t, 0.75, s.CLSR, 1e-9)
		assert.InDelta(t, 15, s.BlackoutMinutes, 1e-9)
	})

	t.Run("SARPartialSolar", func(t *testing.T) {
		var a Accumulator
		// pv 1 kW of 3 kW served comes from solar, the rest from the battery
		a.Add(StepInput{DTHours: 1, TotalServedKW: 3, PVKW: 1})
		assert.InDelta(t, 1.0/3.0, a.Snapshot().SAR, 1e-9)
	})

	t.Run("SolarUtilizationWithCurtailment", func(t *testing.T) {
		var a Accumulator
		a.Add(StepInput{DTHours: 1, PVKW: 4, CurtailedKW: 1})
		assert.InDelta(t, 0.75, a.Snapshot().SolarUtilization, 1e-9)
	})

	t.Run("IgnoresNonPositiveTimestep", func(t *testing.T) {
		var a Accumulator
		a.Add(StepInput{DTHours: 0, CriticalRequestedKW: 5})
		assert.Equal(t, 1.0, a.Snapshot().CLSR)
	})

	t.Run("CLSRStaysInUnitRange", func(t *testing.T) {
		served := []float64{0, 0.2, 0.5, 1, 1, 0.9, 0, 1}
		var a Accumulator
		for _, s := range served {
			a.Add(StepInput{
				DTHours:             0.25,
				CriticalRequestedKW: 1,
				CriticalServedKW:    s,
				TotalServedKW:       s,
			})
			snap := a.Snapshot()
			assert.GreaterOrEqual(t, snap.CLSR, 0.0)
			assert.LessOrEqual(t, snap.CLSR, 1.0)
		}
	})
}

