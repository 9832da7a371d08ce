package kpi

import (
	"github.com/sunstead/sunstead/pkg/types"
)

// DailyMetrics summarizes one UTC calendar day of step records.
type DailyMetrics struct {
	Date string  `json:"date"`
	CLSR float64 `json:"clsr"`
	// BlackoutMinutes counts the day's critical-shortfall steps.
	BlackoutMinutes float64 `json:"blackoutMinutes"`
	// SSR is the day's intrinsic adequacy: PV energy over requested energy,
	// regardless of what the controller actually served.
	SSR              float64 `json:"ssr"`
	SolarUtilization float64 `json:"solarUtilization"`
	// ThroughputKWH is the running battery throughput at the day's last step.
	ThroughputKWH float64 `json:"throughputKWH"`
}

// Daily groups step records by UTC calendar day and reduces each day to its
// metrics. Records are assumed chronological, as the simulation loop emits
// them.
func Daily(records []types.StepRecord, dtHours float64) []DailyMetrics {
	if len(records) == 0 || dtHours <= 0 {
		return nil
	}

	var out []DailyMetrics
	var day string
	var critReqKWH, critServedKWH, pvKWH, reqKWH, usedKWH float64
	var blackoutMinutes, throughputKWH float64

	flush := func() {
		m := DailyMetrics{
			Date:             day,
			CLSR:             1.0,
			SolarUtilization: 1.0,
			BlackoutMinutes:  blackoutMinutes,
			ThroughputKWH:    throughputKWH,
		}
		if critReqKWH > 0 {
			m.CLSR = critServedKWH / critReqKWH
		}
		if reqKWH > 0 {
			m.SSR = pvKWH / reqKWH
		}
		if pvKWH > 0 {
			m.SolarUtilization = usedKWH / pvKWH
		}
		out = append(out, m)
	}

	for _, r := range records {
		d := r.Timestamp.UTC().Format("2006-01-02")
		if d != day {
			if day != "" {
				flush()
			}
			day = d
			critReqKWH, critServedKWH, pvKWH, reqKWH, usedKWH = 0, 0, 0, 0, 0
			blackoutMinutes = 0
		}
		critReqKWH += r.Requested.CriticalKW * dtHours
		critServedKWH += r.Served.CriticalKW * dtHours
		pvKWH += r.PVKW * dtHours
		reqKWH += r.Requested.TotalKW() * dtHours
		if used := r.PVKW - r.CurtailedKW; used > 0 {
			usedKWH += used * dtHours
		}
		if r.Blackout {
			blackoutMinutes += dtHours * 60
		}
		throughputKWH = r.KPIs.BatteryThroughputKWH
	}
	flush()

	return out
}
