package policy

import (
	"math"

	"github.com/sunstead/sunstead/pkg/types"
)

// outlookSteps is how far ahead ForecastHeuristic averages the PV horizon.
const outlookSteps = 12

// conservativeFactor scales the battery allowance when the outlook is poor.
const conservativeFactor = 0.5

// ForecastHeuristic sizes its battery spend from the PV outlook: when solar
// is expected soon the reserve will refill, so the full dischargeable
// headroom may go to tasks now; when the outlook is poor only half of it
// may. Within each category the most urgent tasks are served first. Unserved
// tasks are deferred, never shed; the day's window limits decide their fate.
// A deterministic greedy heuristic, not an optimizer.
type ForecastHeuristic struct{}

// Name implements Policy.
func (ForecastHeuristic) Name() string { return NameForecastHeuristic }

// Decide implements Policy.
func (ForecastHeuristic) Decide(cfg types.SystemConfig, in Input) types.Decision {
	var d types.Decision

	factor := 1.0
	if in.Forecast.AvgKW(outlookSteps) < lowPVFraction*cfg.PVCapacityKW {
		factor = conservativeFactor
	}
	allowanceKW := factor * in.dischargeableKW()

	d.ServedTaskIDs = taskIDs(tasksIn(in.Tasks, types.CategoryCritical))
	usedKW := in.Requested.CriticalKW
	remaining := math.Max(0, in.PVNowKW+allowanceKW-usedKW)

	var deferred []types.TaskInstance
	for _, c := range []types.Category{types.CategoryFlexible, types.CategoryDeferrable} {
		candidates := rankByUrgency(tasksIn(in.Tasks, c), in.Step)
		served, left, used := serveWhileFits(candidates, remaining)
		d.ServedTaskIDs = append(d.ServedTaskIDs, served...)
		deferred = append(deferred, left...)
		usedKW += used
		remaining -= used
	}
	d.DeferredTaskIDs = taskIDs(deferred)

	d.ChargeKW, d.DischargeKW = netCommand(in.PVNowKW, usedKW, in.dischargeableKW(), cfg)
	d.Risk, d.ReasonCodes = assess(cfg, in, len(d.DeferredTaskIDs))
	return d
}
