package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/levenlabs/go-lflag"
	"github.com/sunstead/sunstead/pkg/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// recordInsertBatch keeps multi-row inserts under SQLite's bind variable
// limit.
const recordInsertBatch = 500

// StoredRun is a run summary row. The summary itself is kept as a JSON blob
// so the schema only carries the columns listings order and filter on.
type StoredRun struct {
	ID        string    `gorm:"primaryKey"`
	CreatedTS time.Time `gorm:"index"`
	JSON      string
}

// StoredStepRecord is one step record row, keyed by run and timestamp.
type StoredStepRecord struct {
	RunID     string    `gorm:"primaryKey"`
	Timestamp time.Time `gorm:"primaryKey"`
	JSON      string
}

// StoredPlan is the day-ahead matching plan row for a run.
type StoredPlan struct {
	RunID string `gorm:"primaryKey"`
	JSON  string
}

// SQLiteProvider implements the Database interface using a local SQLite file.
// It is the default provider so the simulator works without any cloud setup.
type SQLiteProvider struct {
	db   *gorm.DB
	path string
}

// NewSQLite opens (or creates) the SQLite database at path and migrates the
// schema.
func NewSQLite(path string) (*SQLiteProvider, error) {
	s := &SQLiteProvider{path: path}
	if err := s.Init(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// configuredSQLite sets up the SQLite provider.
// It registers flags for configuration.
func configuredSQLite() *SQLiteProvider {
	path := lflag.String("sqlite-path", "sunstead.db", "Path to the SQLite database file")

	s := &SQLiteProvider{}

	lflag.Do(func() {
		s.path = *path
	})

	return s
}

// Init opens the database file and migrates the schema.
// This must be called before using the provider methods.
func (s *SQLiteProvider) Init(ctx context.Context) error {
	db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open sqlite database %s: %w", s.path, err)
	}
	if err := db.AutoMigrate(&StoredRun{}, &StoredStepRecord{}, &StoredPlan{}); err != nil {
		return fmt.Errorf("failed to migrate sqlite database %s: %w", s.path, err)
	}
	s.db = db
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteProvider) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// SaveRun stores (or replaces) a run summary.
func (s *SQLiteProvider) SaveRun(ctx context.Context, run types.RunSummary) error {
	jsonBytes, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&StoredRun{
			ID:        run.ID,
			CreatedTS: run.CreatedTS,
			JSON:      string(jsonBytes),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, result.Error)
	}
	return nil
}

// GetRun retrieves a run summary by ID.
func (s *SQLiteProvider) GetRun(ctx context.Context, runID string) (types.RunSummary, error) {
	var stored StoredRun
	result := s.db.WithContext(ctx).First(&stored, "id = ?", runID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return types.RunSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return types.RunSummary{}, fmt.Errorf("failed to fetch run %s: %w", runID, result.Error)
	}

	var run types.RunSummary
	if err := json.Unmarshal([]byte(stored.JSON), &run); err != nil {
		return types.RunSummary{}, fmt.Errorf("failed to unmarshal run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns retrieves up to limit run summaries ordered newest first.
func (s *SQLiteProvider) ListRuns(ctx context.Context, limit int) ([]types.RunSummary, error) {
	var stored []StoredRun
	query := s.db.WithContext(ctx).Order("created_ts desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	result := query.Find(&stored)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list runs: %w", result.Error)
	}

	var runs []types.RunSummary
	for _, row := range stored {
		var run types.RunSummary
		if err := json.Unmarshal([]byte(row.JSON), &run); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run %s: %w", row.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// LatestRunID retrieves the ID of the most recently created run.
// Returns ErrRunNotFound when no runs have been stored.
func (s *SQLiteProvider) LatestRunID(ctx context.Context) (string, error) {
	var stored StoredRun
	result := s.db.WithContext(ctx).Order("created_ts desc").First(&stored)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", ErrRunNotFound
		}
		return "", fmt.Errorf("failed to get latest run: %w", result.Error)
	}
	return stored.ID, nil
}

// SaveRecords stores step records for a run, replacing any that already exist
// for the same timestamps.
func (s *SQLiteProvider) SaveRecords(ctx context.Context, runID string, records []types.StepRecord) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	if len(records) == 0 {
		return nil
	}

	rows := make([]StoredStepRecord, 0, len(records))
	for _, rec := range records {
		jsonBytes, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal step record %d: %w", rec.StepIndex, err)
		}
		rows = append(rows, StoredStepRecord{
			RunID:     runID,
			Timestamp: rec.Timestamp.UTC(),
			JSON:      string(jsonBytes),
		})
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(rows, recordInsertBatch)
	if result.Error != nil {
		return fmt.Errorf("failed to save %d step records for run %s: %w", len(rows), runID, result.Error)
	}
	return nil
}

// GetRecords retrieves step records for a run within the specified time
// range, ordered by timestamp.
func (s *SQLiteProvider) GetRecords(ctx context.Context, runID string, start, end time.Time) ([]types.StepRecord, error) {
	var stored []StoredStepRecord
	result := s.db.WithContext(ctx).
		Where("run_id = ? AND timestamp >= ? AND timestamp < ?", runID, start.UTC(), end.UTC()).
		Order("timestamp asc").
		Find(&stored)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to fetch step records for run %s: %w", runID, result.Error)
	}

	var records []types.StepRecord
	for _, row := range stored {
		var rec types.StepRecord
		if err := json.Unmarshal([]byte(row.JSON), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal step record (run=%s, ts=%s): %w", runID, row.Timestamp, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// SavePlan stores (or replaces) the day-ahead matching plan for a run.
func (s *SQLiteProvider) SavePlan(ctx context.Context, runID string, plan types.MatchingResult) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	jsonBytes, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&StoredPlan{
			RunID: runID,
			JSON:  string(jsonBytes),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save plan for run %s: %w", runID, result.Error)
	}
	return nil
}

// GetPlan retrieves the day-ahead matching plan for a run.
func (s *SQLiteProvider) GetPlan(ctx context.Context, runID string) (types.MatchingResult, error) {
	var stored StoredPlan
	result := s.db.WithContext(ctx).First(&stored, "run_id = ?", runID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return types.MatchingResult{}, fmt.Errorf("%w: run %s", ErrPlanNotFound, runID)
		}
		return types.MatchingResult{}, fmt.Errorf("failed to fetch plan for run %s: %w", runID, result.Error)
	}

	var plan types.MatchingResult
	if err := json.Unmarshal([]byte(stored.JSON), &plan); err != nil {
		return types.MatchingResult{}, fmt.Errorf("failed to unmarshal plan for run %s: %w", runID, err)
	}
	return plan, nil
}
