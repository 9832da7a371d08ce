package policy

import (
	"github.com/sunstead/sunstead/pkg/types"
)

// Per-category SOC offsets above the floor before StaticPriority will serve
// that category at all.
const (
	flexibleSOCOffset   = 0.05
	deferrableSOCOffset = 0.10
)

// StaticPriority gates each non-critical category behind a fixed SOC
// threshold above the floor, with no forecast lookahead. Gated or unfitting
// tasks are deferred; once SOC reaches the floor itself they are shed.
type StaticPriority struct{}

// Name implements Policy.
func (StaticPriority) Name() string { return NameStaticPriority }

// Decide implements Policy.
func (StaticPriority) Decide(cfg types.SystemConfig, in Input) types.Decision {
	var d types.Decision

	d.ServedTaskIDs = taskIDs(tasksIn(in.Tasks, types.CategoryCritical))
	usedKW := in.Requested.CriticalKW
	remaining := in.AvailableKW - usedKW

	gates := []struct {
		category types.Category
		minSOC   float64
	}{
		{types.CategoryFlexible, cfg.SOCMin + flexibleSOCOffset},
		{types.CategoryDeferrable, cfg.SOCMin + deferrableSOCOffset},
	}

	var deferred []types.TaskInstance
	for _, g := range gates {
		candidates := tasksIn(in.Tasks, g.category)
		if in.State.SOC < g.minSOC {
			deferred = append(deferred, candidates...)
			continue
		}
		served, left, used := serveWhileFits(candidates, remaining)
		d.ServedTaskIDs = append(d.ServedTaskIDs, served...)
		deferred = append(deferred, left...)
		usedKW += used
		remaining -= used
	}

	if in.State.SOC <= cfg.SOCMin+socFloorTolerance {
		d.ShedTaskIDs = taskIDs(deferred)
	} else {
		d.DeferredTaskIDs = taskIDs(deferred)
	}

	d.ChargeKW, d.DischargeKW = netCommand(in.PVNowKW, usedKW, in.dischargeableKW(), cfg)
	d.Risk, d.ReasonCodes = assess(cfg, in, len(d.DeferredTaskIDs))
	return d
}
