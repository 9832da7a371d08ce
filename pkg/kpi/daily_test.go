package kpi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunstead/sunstead/pkg/types"
)

func TestDaily(t *testing.T) {
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	rec := func(offset time.Duration, critReq, critServed, pv, curtailed, throughput float64, blackout bool) types.StepRecord {
		return types.StepRecord{
			Timestamp:   start.Add(offset),
			PVKW:        pv,
			Requested:   types.CategoryPower{CriticalKW: critReq},
			Served:      types.CategoryPower{CriticalKW: critServed},
			CurtailedKW: curtailed,
			Blackout:    blackout,
			KPIs:        types.KPISnapshot{BatteryThroughputKWH: throughput},
		}
	}

	t.Run("GroupsByCalendarDay", func(t *testing.T) {
		records := []types.StepRecord{
			// day one: fully served, half the solar curtailed on the second step
			rec(0, 1, 1, 2, 0, 0.1, false),
			rec(time.Hour, 1, 1, 2, 1, 0.2, false),
			// day two: one blackout step
			rec(24*time.Hour, 1, 0.5, 0, 0, 0.3, true),
			rec(25*time.Hour, 1, 1, 0, 0, 0.4, false),
		}

		days := Daily(records, 1)
		require.Len(t, days, 2)

		assert.Equal(t, "2026-06-01", days[0].Date)
		assert.InDelta(t, 1.0, days[0].CLSR, 1e-9)
		assert.Equal(t, 0.0, days[0].BlackoutMinutes)
		// 4 kWh pv against 2 kWh requested
		assert.InDelta(t, 2.0, days[0].SSR, 1e-9)
		assert.InDelta(t, 0.75, days[0].SolarUtilization, 1e-9)
		assert.InDelta(t, 0.2, days[0].ThroughputKWH, 1e-9)

		assert.Equal(t, "2026-06-02", days[1].Date)
		assert.InDelta(t, 0.75, days[1].CLSR, 1e-9)
		assert.InDelta(t, 60, days[1].BlackoutMinutes, 1e-9)
		assert.Equal(t, 0.0, days[1].SSR)
		// no generation means nothing was wasted
		assert.InDelta(t, 1.0, days[1].SolarUtilization, 1e-9)
		assert.InDelta(t, 0.4, days[1].ThroughputKWH, 1e-9)
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Nil(t, Daily(nil, 0.25))
		assert.Nil(t, Daily([]types.StepRecord{rec(0, 1, 1, 0, 0, 0, false)}, 0))
	})
}
