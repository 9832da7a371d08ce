// Package load expands the appliance catalog into per-day task instances and
// aggregates the power they request at each step.
package load

import (
	"fmt"

	"github.com/sunstead/sunstead/pkg/types"
)

// BuildDailyTasks expands each appliance template into the TaskInstances for
// one simulated day at the given resolution. Critical appliances become a
// single always-on task spanning the day. Deferrable appliances with a daily
// quota become that many single-step must-complete tasks, schedulable anywhere
// in the appliance window. Everything else becomes one task per appliance with
// its window (whole day when unset); deferrable tasks are must-complete so a
// policy that keeps postponing them eventually has to shed them explicitly.
func BuildDailyTasks(appliances []types.Appliance, stepsPerDay int) ([]types.TaskInstance, error) {
	tasks := make([]types.TaskInstance, 0, len(appliances))
	for _, a := range appliances {
		earliest, latest := 0, stepsPerDay
		if a.Category != types.CategoryCritical && a.Window != nil {
			var err error
			earliest, latest, err = a.Window.StepRange(stepsPerDay)
			if err != nil {
				return nil, fmt.Errorf("appliance %s: %w", a.ID, err)
			}
		}

		switch {
		case a.Category == types.CategoryCritical:
			tasks = append(tasks, types.TaskInstance{
				ID:                a.ID,
				ApplianceID:       a.ID,
				Name:              a.Name,
				Category:          a.Category,
				PowerKW:           a.TotalPowerKW(),
				DurationSteps:     stepsPerDay,
				RemainingSteps:    stepsPerDay,
				EarliestStartStep: 0,
				LatestEndStep:     stepsPerDay,
				MustComplete:      true,
			})
		case a.Category == types.CategoryDeferrable && a.DailyQuotaSteps > 0:
			for i := 0; i < a.DailyQuotaSteps; i++ {
				tasks = append(tasks, types.TaskInstance{
					ID:                fmt.Sprintf("%s-q%d", a.ID, i+1),
					ApplianceID:       a.ID,
					Name:              a.Name,
					Category:          a.Category,
					PowerKW:           a.TotalPowerKW(),
					DurationSteps:     1,
					RemainingSteps:    1,
					EarliestStartStep: earliest,
					LatestEndStep:     latest,
					MustComplete:      true,
				})
			}
		default:
			duration := a.DurationSteps
			if duration < 1 {
				duration = 1
			}
			tasks = append(tasks, types.TaskInstance{
				ID:                a.ID,
				ApplianceID:       a.ID,
				Name:              a.Name,
				Category:          a.Category,
				PowerKW:           a.TotalPowerKW(),
				DurationSteps:     duration,
				RemainingSteps:    duration,
				EarliestStartStep: earliest,
				LatestEndStep:     latest,
				MustComplete:      a.Category == types.CategoryDeferrable,
			})
		}
	}
	return tasks, nil
}

// RequestedForStep sums the power of tasks in the category that are active at
// the given day-step.
func RequestedForStep(tasks []types.TaskInstance, step int, category types.Category) float64 {
	var kw float64
	for _, t := range tasks {
		if t.Category == category && t.ActiveAt(step) {
			kw += t.PowerKW
		}
	}
	return kw
}

// Requested aggregates active task power across all categories at the given
// day-step.
func Requested(tasks []types.TaskInstance, step int) types.CategoryPower {
	var p types.CategoryPower
	for _, t := range tasks {
		if t.ActiveAt(step) {
			p.Add(t.Category, t.PowerKW)
		}
	}
	return p
}

// ActiveTasks returns the tasks that can draw power at the given day-step,
// preserving catalog order.
func ActiveTasks(tasks []types.TaskInstance, step int) []types.TaskInstance {
	out := make([]types.TaskInstance, 0, len(tasks))
	for _, t := range tasks {
		if t.ActiveAt(step) {
			out = append(out, t)
		}
	}
	return out
}
