package dayahead

import (
	"github.com/sunstead/sunstead/pkg/types"
)

// Default daily runtimes in hours per category, used for nominal planned
// energy before any simulation has run.
const (
	DefaultHoursCritical   = 24.0
	DefaultHoursFlexible   = 4.0
	DefaultHoursDeferrable = 2.0
)

// NominalPlan is the planned daily energy derived from the appliance
// catalog and default per-category runtimes. It is the single source of
// planned demand shown when no run exists yet.
type NominalPlan struct {
	Plan24hKWH float64 `json:"plan24hKWH"`
	Plan12hKWH float64 `json:"plan12hKWH"`
	AvgKW      float64 `json:"avgKW"`
}

// ComputeNominalPlan sums catalog power times the default runtime for each
// appliance's category.
func ComputeNominalPlan(appliances []types.Appliance) NominalPlan {
	var plan NominalPlan
	for _, a := range appliances {
		hours := DefaultHoursCritical
		switch a.Category {
		case types.CategoryFlexible:
			hours = DefaultHoursFlexible
		case types.CategoryDeferrable:
			hours = DefaultHoursDeferrable
		}
		plan.Plan24hKWH += a.TotalPowerKW() * hours
	}
	plan.Plan12hKWH = plan.Plan24hKWH / 2
	if plan.Plan24hKWH > 0 {
		plan.AvgKW = plan.Plan24hKWH / 24
	}
	return plan
}
