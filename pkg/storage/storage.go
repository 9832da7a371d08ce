package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/sunstead/sunstead/pkg/types"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrPlanNotFound = errors.New("plan not found")
)

// Database defines the interface for persisting simulation runs and their
// derived artifacts.
type Database interface {
	// Runs
	SaveRun(ctx context.Context, run types.RunSummary) error
	GetRun(ctx context.Context, runID string) (types.RunSummary, error)
	ListRuns(ctx context.Context, limit int) ([]types.RunSummary, error)
	LatestRunID(ctx context.Context) (string, error)

	// Step records
	SaveRecords(ctx context.Context, runID string, records []types.StepRecord) error
	GetRecords(ctx context.Context, runID string, start, end time.Time) ([]types.StepRecord, error)

	// Day-ahead matching plans
	SavePlan(ctx context.Context, runID string, plan types.MatchingResult) error
	GetPlan(ctx context.Context, runID string) (types.MatchingResult, error)

	// Lifecycle
	Close() error
}

// Configured sets up the storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "sqlite", "Storage provider to use (available: sqlite, firestore)")

	var p struct{ Database }

	sq := configuredSQLite()
	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "sqlite":
			if err := sq.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("sqlite init failed: %v", err))
			}
			p.Database = sq
		case "firestore":
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
			p.Database = fs
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
