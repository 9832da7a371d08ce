package policy

import (
	"github.com/sunstead/sunstead/pkg/types"
)

// Naive serves whatever PV and the battery can physically cover, with no
// reserve: the pack may run all the way down to its hard floor. Tasks that do
// not fit are shed outright; naive never plans for later.
type Naive struct{}

// Name implements Policy.
func (Naive) Name() string { return NameNaive }

// Decide implements Policy.
func (Naive) Decide(cfg types.SystemConfig, in Input) types.Decision {
	var d types.Decision

	// Critical is always attempted in full.
	d.ServedTaskIDs = taskIDs(tasksIn(in.Tasks, types.CategoryCritical))
	usedKW := in.Requested.CriticalKW
	remaining := in.AvailableKW - usedKW

	for _, c := range []types.Category{types.CategoryFlexible, types.CategoryDeferrable} {
		served, left, used := serveWhileFits(tasksIn(in.Tasks, c), remaining)
		d.ServedTaskIDs = append(d.ServedTaskIDs, served...)
		d.ShedTaskIDs = append(d.ShedTaskIDs, taskIDs(left)...)
		usedKW += used
		remaining -= used
	}

	d.ChargeKW, d.DischargeKW = netCommand(in.PVNowKW, usedKW, in.dischargeableKW(), cfg)
	d.Risk, d.ReasonCodes = assess(cfg, in, 0)
	return d
}
