package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunstead/sunstead/pkg/types"
)

func TestFirestoreProvider(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set, skipping firestore provider test")
	}

	// Use a random database for isolation
	randDB := fmt.Sprintf("test-db-%d", time.Now().UnixNano())
	f := &FirestoreProvider{
		projectID: "test-project-id",
		database:  randDB,
	}

	ctx := context.Background()
	require.NoError(t, f.Init(ctx))
	defer f.Close()

	now := time.Now().Truncate(time.Second).UTC() // RFC3339 doc IDs carry seconds

	t.Run("Runs", func(t *testing.T) {
		run := testSummary("run-1", now)
		require.NoError(t, f.SaveRun(ctx, run))

		got, err := f.GetRun(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, run.Policy, got.Policy)
		assert.Equal(t, run.KPIs.SolarUtilization, got.KPIs.SolarUtilization)

		t.Run("NotFound", func(t *testing.T) {
			_, err := f.GetRun(ctx, "does-not-exist")
			assert.ErrorIs(t, err, ErrRunNotFound)
		})

		t.Run("EmptyRunID", func(t *testing.T) {
			_, err := f.GetRun(ctx, "")
			assert.ErrorContains(t, err, "runID cannot be empty")
		})
	})

	t.Run("ListRuns", func(t *testing.T) {
		require.NoError(t, f.SaveRun(ctx, testSummary("run-older", now.Add(-time.Hour))))
		require.NoError(t, f.SaveRun(ctx, testSummary("run-newer", now.Add(time.Hour))))

		runs, err := f.ListRuns(ctx, 0)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(runs), 3)
		assert.Equal(t, "run-newer", runs[0].ID, "newest run should come first")

		t.Run("LatestRunID", func(t *testing.T) {
			id, err := f.LatestRunID(ctx)
			require.NoError(t, err)
			assert.Equal(t, "run-newer", id)
		})
	})

	t.Run("Records", func(t *testing.T) {
		records := []types.StepRecord{
			testRecord(now, 0),
			testRecord(now.Add(15*time.Minute), 1),
			testRecord(now.Add(30*time.Minute), 2),
		}
		require.NoError(t, f.SaveRecords(ctx, "run-1", records))

		t.Run("RangeFiltering", func(t *testing.T) {
			got, err := f.GetRecords(ctx, "run-1", now, now.Add(30*time.Minute))
			require.NoError(t, err)
			require.Len(t, got, 2, "end of range is exclusive")
			assert.Equal(t, 0, got[0].StepIndex)
			assert.Equal(t, 1, got[1].StepIndex)
		})

		t.Run("FullRange", func(t *testing.T) {
			got, err := f.GetRecords(ctx, "run-1", now.Add(-time.Minute), now.Add(time.Hour))
			require.NoError(t, err)
			assert.Len(t, got, 3)
		})
	})

	t.Run("Plan", func(t *testing.T) {
		plan := testPlan(now.Truncate(24 * time.Hour))
		require.NoError(t, f.SavePlan(ctx, "run-1", plan))

		got, err := f.GetPlan(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, plan.MarginType, got.MarginType)
		assert.Equal(t, plan.TotalDemandKWH, got.TotalDemandKWH)

		t.Run("NotFound", func(t *testing.T) {
			_, err := f.GetPlan(ctx, "run-without-plan")
			assert.ErrorIs(t, err, ErrPlanNotFound)
		})
	})
}
