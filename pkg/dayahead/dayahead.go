// Package dayahead reduces one simulated day of step records into a
// feasibility verdict: daily energy margin, surplus and deficit windows,
// critical-load protection, a risk grade, and per-appliance advisories.
// Everything here is a pure function of its inputs so results are
// reproducible and safe to compute concurrently across runs.
package dayahead

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sunstead/sunstead/pkg/types"
)

// ErrInsufficientData reports fewer than one full day of step records.
// Matching refuses to produce a partial verdict.
var ErrInsufficientData = errors.New("insufficient records for day-ahead matching")

// Energy margin thresholds in kWh. The daily margin must clear the band on
// either side to leave "tight".
const (
	SurplusMarginKWH = 0.5
	DeficitMarginKWH = -0.5
)

// StepDeficitKW is the per-step power margin below which a single step is
// bad enough to escalate risk on its own.
const StepDeficitKW = -0.5

// safeCoverageRatio is the fraction of the day that must be surplus before
// a fitting window upgrades an advisory from "run in window" to "safe".
const safeCoverageRatio = 0.5

// protectionTolerance absorbs float dust when comparing served against
// requested critical power.
const protectionTolerance = 1e-9

// Compute reduces the first day of records into a MatchingResult. It needs
// at least one full day at the config's resolution and never reads past the
// first day; fewer records fail with ErrInsufficientData rather than
// producing a misleading partial verdict.
func Compute(records []types.StepRecord, appliances []types.Appliance, cfg types.SystemConfig) (types.MatchingResult, error) {
	stepsPerDay := cfg.StepsPerDay()
	if len(records) < stepsPerDay {
		return types.MatchingResult{}, fmt.Errorf("need %d records for one day, have %d: %w",
			stepsPerDay, len(records), ErrInsufficientData)
	}
	day := records[:stepsPerDay]
	dtHours := cfg.DTHours()

	res := types.MatchingResult{
		DayStartTS:             day[0].Timestamp,
		TimestepMinutes:        cfg.TimestepMinutes,
		StepsPerDay:            stepsPerDay,
		MinPowerMarginKW:       math.Inf(1),
		CriticalFullyProtected: true,
	}

	surplus := make([]bool, stepsPerDay)
	deficit := make([]bool, stepsPerDay)
	for i, r := range day {
		requested := r.Requested.TotalKW()
		res.TotalSolarKWH += r.PVKW * dtHours
		res.TotalDemandKWH += requested * dtHours
		if margin := r.PVKW - requested; margin < res.MinPowerMarginKW {
			res.MinPowerMarginKW = margin
		}
		// Solar-only comparison: the battery is deliberately excluded so the
		// windows answer whether solar alone covers demand.
		surplus[i] = r.PVKW >= requested
		deficit[i] = !surplus[i]
		if deficit[i] {
			res.DeficitSteps = append(res.DeficitSteps, i)
		}
		if r.Served.CriticalKW+protectionTolerance < r.Requested.CriticalKW {
			res.CriticalFullyProtected = false
			res.CriticalShortfallSteps = append(res.CriticalShortfallSteps, i)
		}
	}
	res.MarginKWH = res.TotalSolarKWH - res.TotalDemandKWH

	switch {
	case res.MarginKWH > SurplusMarginKWH:
		res.MarginType = types.MarginSurplus
	case res.MarginKWH < DeficitMarginKWH:
		res.MarginType = types.MarginDeficit
	default:
		res.MarginType = types.MarginTight
	}
	res.DailyOutlook = outlookText(res.MarginType, res.MarginKWH)

	res.SurplusWindows = mergeWindows(surplus, day, "surplus")
	res.DeficitWindows = mergeWindows(deficit, day, "deficit")

	switch {
	case !res.CriticalFullyProtected || res.MarginKWH < DeficitMarginKWH:
		res.Risk = types.RiskHigh
	case res.MarginKWH < 0 || res.MinPowerMarginKW < StepDeficitKW:
		res.Risk = types.RiskMedium
	default:
		res.Risk = types.RiskLow
	}

	res.Advisories = computeAdvisories(appliances, res)
	res.Statements = FormatStatements(res)
	return res, nil
}

func outlookText(mt types.MarginType, marginKWH float64) string {
	switch mt {
	case types.MarginSurplus:
		return "Solar energy is sufficient for the day (expected surplus)."
	case types.MarginTight:
		return fmt.Sprintf("Solar and demand are closely matched. Small margin: %+.2f kWh. "+
			"Consider shifting flexible loads into surplus windows.", marginKWH)
	default:
		return fmt.Sprintf("Expected shortfall of %.2f kWh. Prioritise critical loads; "+
			"run flexible/deferrable only in surplus windows or avoid today.", math.Abs(marginKWH))
	}
}

// mergeWindows converts per-step flags into contiguous windows. End steps
// are inclusive, so every emitted window covers at least one step.
func mergeWindows(flags []bool, day []types.StepRecord, label string) []types.TimeWindow {
	var windows []types.TimeWindow
	start := -1
	for i, flag := range flags {
		switch {
		case flag && start < 0:
			start = i
		case !flag && start >= 0:
			windows = append(windows, newWindow(day, start, i-1, label))
			start = -1
		}
	}
	if start >= 0 {
		windows = append(windows, newWindow(day, start, len(flags)-1, label))
	}
	return windows
}

func newWindow(day []types.StepRecord, start, end int, label string) types.TimeWindow {
	return types.TimeWindow{
		StartStep: start,
		EndStep:   end,
		StartTS:   day[start].Timestamp,
		EndTS:     day[end].Timestamp,
		Label:     label,
	}
}

// FormatWindow renders a window's clock span as "HH:MM–HH:MM". The end
// bound is the close of the last step, so a one-step window at 15-minute
// resolution starting at midnight reads "00:00–00:15".
func FormatWindow(w types.TimeWindow, timestepMinutes int) string {
	startMin := w.StartStep * timestepMinutes
	endMin := (w.EndStep + 1) * timestepMinutes
	return fmt.Sprintf("%02d:%02d–%02d:%02d", startMin/60, startMin%60, endMin/60, endMin%60)
}

func formatWindowList(windows []types.TimeWindow, timestepMinutes int) string {
	if len(windows) == 0 {
		return ""
	}
	spans := make([]string, len(windows))
	for i, w := range windows {
		spans[i] = FormatWindow(w, timestepMinutes)
	}
	return strings.Join(spans, " and ")
}

// computeAdvisories derives a per-appliance verdict from the day's windows
// and the appliance's category and duration. Every advisory names the
// window or shortfall that produced it so users can verify the advice.
func computeAdvisories(appliances []types.Appliance, res types.MatchingResult) []types.ApplianceAdvisory {
	advisories := make([]types.ApplianceAdvisory, 0, len(appliances))
	coverage := surplusCoverage(res.SurplusWindows, res.StepsPerDay)
	deficitTimes := formatWindowList(res.DeficitWindows, res.TimestepMinutes)

	for _, a := range appliances {
		adv := types.ApplianceAdvisory{
			ApplianceID: a.ID,
			Name:        a.Name,
			Category:    a.Category,
		}
		if a.Category == types.CategoryCritical {
			if res.CriticalFullyProtected {
				adv.Status = types.AdvisorySafeToRun
				adv.Reason = fmt.Sprintf("Your %s (%.2f kW) is covered by expected solar all day.",
					a.Name, a.TotalPowerKW())
			} else {
				adv.Status = types.AdvisoryAvoidToday
				phrase := "Expected solar may not cover essentials in some windows."
				if deficitTimes != "" {
					phrase = fmt.Sprintf("Shortfall expected %s.", deficitTimes)
				}
				adv.Reason = fmt.Sprintf("%s Keep %s on and avoid adding load then.", phrase, a.Name)
			}
			advisories = append(advisories, adv)
			continue
		}

		// Flexible and deferrable loads get steered into surplus windows
		// that fit their duration.
		if len(res.SurplusWindows) == 0 || res.MarginType == types.MarginDeficit {
			adv.Status = types.AdvisoryAvoidToday
			if deficitTimes != "" {
				adv.Reason = fmt.Sprintf("Demand exceeds solar in %s. Avoid running %s (%.2f kW) then; "+
					"run in surplus windows if any.", deficitTimes, a.Name, a.TotalPowerKW())
			} else {
				adv.Reason = fmt.Sprintf("No surplus windows expected; avoid non-essential use of %s.", a.Name)
			}
			advisories = append(advisories, adv)
			continue
		}

		duration := a.DurationSteps
		if duration < 1 {
			duration = 1
		}
		fit, longest := bestSurplusWindow(res.SurplusWindows, duration)
		switch {
		case fit != nil && coverage >= safeCoverageRatio:
			span := FormatWindow(*fit, res.TimestepMinutes)
			adv.Status = types.AdvisorySafeToRun
			adv.RecommendedWindow = span
			adv.Reason = fmt.Sprintf("Run %s between %s; solar exceeds your load then (%.2f kW).",
				a.Name, span, a.TotalPowerKW())
		case fit != nil:
			span := FormatWindow(*fit, res.TimestepMinutes)
			adv.Status = types.AdvisoryRunInWindow
			adv.RecommendedWindow = span
			adv.Reason = fmt.Sprintf("Run %s only between %s; solar covers your load (%.2f kW) in that window.",
				a.Name, span, a.TotalPowerKW())
		case longest != nil:
			span := FormatWindow(*longest, res.TimestepMinutes)
			adv.Status = types.AdvisoryRunInWindow
			adv.RecommendedWindow = span
			adv.Reason = fmt.Sprintf("%s needs %d min of continuous surplus; the longest surplus is %s. "+
				"Run there if needed (%.2f kW).", a.Name, duration*res.TimestepMinutes, span, a.TotalPowerKW())
		default:
			adv.Status = types.AdvisoryAvoidToday
			adv.Reason = fmt.Sprintf("No surplus window long enough for %s (%.2f kW).", a.Name, a.TotalPowerKW())
		}
		advisories = append(advisories, adv)
	}
	return advisories
}

// surplusCoverage is the fraction of the day covered by surplus windows.
func surplusCoverage(windows []types.TimeWindow, stepsPerDay int) float64 {
	if stepsPerDay <= 0 {
		return 0
	}
	steps := 0
	for _, w := range windows {
		steps += w.Steps()
	}
	return float64(steps) / float64(stepsPerDay)
}

// bestSurplusWindow returns the first window long enough for the duration,
// or the longest window as a fallback when none fits.
func bestSurplusWindow(windows []types.TimeWindow, durationSteps int) (fit, longest *types.TimeWindow) {
	for i := range windows {
		if windows[i].Steps() >= durationSteps {
			return &windows[i], nil
		}
	}
	for i := range windows {
		if longest == nil || windows[i].Steps() > longest.Steps() {
			longest = &windows[i]
		}
	}
	return nil, longest
}
