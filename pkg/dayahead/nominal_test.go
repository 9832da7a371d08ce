package dayahead

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sunstead/sunstead/pkg/types"
)

func TestComputeNominalPlan(t *testing.T) {
	appliances := []types.Appliance{
		{ID: "fridge", Category: types.CategoryCritical, PowerKW: 0.15, Quantity: 1},
		{ID: "lights", Category: types.CategoryCritical, PowerKW: 0.01, Quantity: 5},
		{ID: "washer", Category: types.CategoryFlexible, PowerKW: 0.5, Quantity: 1},
		{ID: "pump", Category: types.CategoryDeferrable, PowerKW: 0.75, Quantity: 1},
	}

	plan := ComputeNominalPlan(appliances)

	// 0.15×24 + 0.05×24 + 0.5×4 + 0.75×2 = 8.3 kWh.
	assert.InDelta(t, 8.3, plan.Plan24hKWH, 1e-9)
	assert.InDelta(t, 4.15, plan.Plan12hKWH, 1e-9)
	assert.InDelta(t, 8.3/24, plan.AvgKW, 1e-9)
}

func TestComputeNominalPlanEmpty(t *testing.T) {
	plan := ComputeNominalPlan(nil)
	assert.Zero(t, plan.Plan24hKWH)
	assert.Zero(t, plan.Plan12hKWH)
	assert.Zero(t, plan.AvgKW)
}
