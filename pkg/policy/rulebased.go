package policy

import (
	"math"

	"github.com/sunstead/sunstead/pkg/types"
)

// RuleBased keeps a reserve band of ReserveSOC above the floor. Non-critical
// tasks run only from the PV surplus left after critical load, never from the
// battery; the battery discharges for critical load alone, down to the hard
// floor as a last resort. Below the reserve band unserved tasks are shed
// rather than deferred.
type RuleBased struct{}

// Name implements Policy.
func (RuleBased) Name() string { return NameRuleBased }

// Decide implements Policy.
func (RuleBased) Decide(cfg types.SystemConfig, in Input) types.Decision {
	var d types.Decision

	d.ServedTaskIDs = taskIDs(tasksIn(in.Tasks, types.CategoryCritical))
	usedKW := in.Requested.CriticalKW
	remaining := math.Max(0, in.PVNowKW-usedKW)

	belowReserve := in.State.SOC < cfg.SOCMin+cfg.ReserveSOC
	var deferred []types.TaskInstance
	for _, c := range []types.Category{types.CategoryFlexible, types.CategoryDeferrable} {
		served, left, used := serveWhileFits(tasksIn(in.Tasks, c), remaining)
		d.ServedTaskIDs = append(d.ServedTaskIDs, served...)
		deferred = append(deferred, left...)
		usedKW += used
		remaining -= used
	}
	if belowReserve {
		d.ShedTaskIDs = taskIDs(deferred)
	} else {
		d.DeferredTaskIDs = taskIDs(deferred)
	}

	d.ChargeKW, d.DischargeKW = netCommand(in.PVNowKW, usedKW, in.dischargeableKW(), cfg)
	d.Risk, d.ReasonCodes = assess(cfg, in, len(d.DeferredTaskIDs))
	return d
}
