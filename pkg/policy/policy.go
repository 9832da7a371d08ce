// Package policy implements the controller variants that decide, step by
// step, which tasks to serve and how to run the battery. Policies are pure:
// identical inputs produce identical decisions, so concurrent runs can share
// one instance.
package policy

import (
	"fmt"
	"math"
	"sort"

	"github.com/sunstead/sunstead/pkg/types"
)

// Policy names, in increasing sophistication.
const (
	NameNaive             = "naive"
	NameRuleBased         = "rule_based"
	NameStaticPriority    = "static_priority"
	NameForecastHeuristic = "forecast_heuristic"
)

// DefaultName is the policy used when a run does not request one.
const DefaultName = NameForecastHeuristic

// Risk thresholds shared by every policy's assessment.
const (
	// lowSOCMargin above the floor marks high risk, midSOCMargin medium.
	lowSOCMargin = 0.05
	midSOCMargin = 0.12
	// lowPVFraction of nameplate capacity is the outlook below which the
	// forecast counts as poor.
	lowPVFraction = 0.25
	// surplusMarginKW above critical load before PV counts as a surplus.
	surplusMarginKW = 0.5
	// socFloorTolerance absorbs float error when comparing SOC to the floor.
	socFloorTolerance = 1e-6
)

// Forecast is the forward PV outlook a policy sees at one step, in kW,
// starting at the current step.
type Forecast struct {
	HorizonKW []float64
}

// AvgKW returns the mean of the first n horizon values, or of the whole
// horizon when it is shorter. An empty horizon averages to zero.
func (f Forecast) AvgKW(n int) float64 {
	if n > len(f.HorizonKW) {
		n = len(f.HorizonKW)
	}
	if n <= 0 {
		return 0
	}
	var sum float64
	for _, v := range f.HorizonKW[:n] {
		sum += v
	}
	return sum / float64(n)
}

// Input carries everything a policy may consult when deciding one step.
type Input struct {
	// Step is the index within the simulated day.
	Step int
	// DTHours is the step length in hours.
	DTHours float64
	State   types.BatteryState
	// Requested is the active task demand by category.
	Requested types.CategoryPower
	// AvailableKW is PV plus the battery power physically dischargeable to
	// the hard floor, inverter-bounded. Policies subtract their own reserve.
	AvailableKW float64
	PVNowKW     float64
	// Tasks holds the in-window, unserved tasks at Step.
	Tasks    []types.TaskInstance
	Forecast Forecast
}

// dischargeableKW is the battery share of the available power.
func (in Input) dischargeableKW() float64 {
	return math.Max(0, in.AvailableKW-in.PVNowKW)
}

// Policy decides one step. Implementations are stateless and deterministic.
type Policy interface {
	Name() string
	Decide(cfg types.SystemConfig, in Input) types.Decision
}

// New returns the named policy.
func New(name string) (Policy, error) {
	switch name {
	case NameNaive:
		return Naive{}, nil
	case NameRuleBased:
		return RuleBased{}, nil
	case NameStaticPriority:
		return StaticPriority{}, nil
	case NameForecastHeuristic:
		return ForecastHeuristic{}, nil
	}
	return nil, fmt.Errorf("unknown policy %q", name)
}

// Names lists every policy name in increasing sophistication.
func Names() []string {
	return []string{NameNaive, NameRuleBased, NameStaticPriority, NameForecastHeuristic}
}

// All returns one instance of every policy, ordered as Names.
func All() []Policy {
	return []Policy{Naive{}, RuleBased{}, StaticPriority{}, ForecastHeuristic{}}
}

// tasksIn filters tasks by category, preserving order.
func tasksIn(tasks []types.TaskInstance, c types.Category) []types.TaskInstance {
	var out []types.TaskInstance
	for _, t := range tasks {
		if t.Category == c {
			out = append(out, t)
		}
	}
	return out
}

func taskIDs(tasks []types.TaskInstance) []string {
	if len(tasks) == 0 {
		return nil
	}
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

// serveWhileFits serves whole tasks in order while their power fits in the
// remaining budget. It returns the served ids, the tasks that did not fit,
// and the power consumed.
func serveWhileFits(tasks []types.TaskInstance, budgetKW float64) ([]string, []types.TaskInstance, float64) {
	var served []string
	var left []types.TaskInstance
	var usedKW float64
	for _, t := range tasks {
		if usedKW+t.PowerKW <= budgetKW+1e-9 {
			served = append(served, t.ID)
			usedKW += t.PowerKW
		} else {
			left = append(left, t)
		}
	}
	return served, left, usedKW
}

// rankByUrgency orders tasks most-urgent first: must-complete plus inverse
// slack to the window close, ties broken by higher power.
func rankByUrgency(tasks []types.TaskInstance, step int) []types.TaskInstance {
	out := make([]types.TaskInstance, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := urgencyScore(out[i], step), urgencyScore(out[j], step)
		if si != sj {
			return si > sj
		}
		return out[i].PowerKW > out[j].PowerKW
	})
	return out
}

func urgencyScore(t types.TaskInstance, step int) float64 {
	slack := t.LatestEndStep - step
	if slack < 1 {
		slack = 1
	}
	score := 1.0 / float64(slack)
	if t.MustComplete {
		score++
	}
	return score
}

// netCommand converts a serve plan into the battery command for the step:
// charge the PV surplus, discharge to cover the shortfall. Discharge is
// bounded by maxDischargeKW so the command stays within what the plan was
// allowed to spend; critical shortfall beyond it is the loop's to record.
func netCommand(pvKW, servedKW, maxDischargeKW float64, cfg types.SystemConfig) (chargeKW, dischargeKW float64) {
	net := pvKW - servedKW
	if net >= 0 {
		return math.Min(net, cfg.InverterMaxKW), 0
	}
	return 0, math.Min(math.Min(-net, cfg.InverterMaxKW), maxDischargeKW)
}

// assess derives the step risk level and reason codes from battery state, PV
// conditions, and how many tasks the plan postponed.
func assess(cfg types.SystemConfig, in Input, deferredCount int) (types.RiskLevel, []types.ReasonCode) {
	risk := types.RiskLow
	var codes []types.ReasonCode

	switch {
	case in.State.SOC <= cfg.SOCMin+lowSOCMargin:
		risk = types.RiskHigh
		codes = append(codes, types.ReasonLowSOC)
	case in.State.SOC <= cfg.SOCMin+midSOCMargin:
		risk = types.RiskMedium
		codes = append(codes, types.ReasonMidSOC)
	}

	next2h := 1
	if in.DTHours > 0 {
		next2h = int(math.Round(2.0 / in.DTHours))
	}
	if in.Forecast.AvgKW(next2h) < lowPVFraction*cfg.PVCapacityKW {
		codes = append(codes, types.ReasonLowPVForecast)
		if risk == types.RiskMedium {
			risk = types.RiskHigh
		}
	}

	if in.PVNowKW > in.Requested.CriticalKW+surplusMarginKW {
		codes = append(codes, types.ReasonPVSurplus)
	}

	if deferredCount > 0 {
		codes = append(codes, types.ReasonDeferTasks)
	}
	return risk, codes
}
