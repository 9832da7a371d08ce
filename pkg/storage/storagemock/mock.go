package storagemock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/sunstead/sunstead/pkg/storage"
	"github.com/sunstead/sunstead/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) SaveRun(ctx context.Context, run types.RunSummary) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockDatabase) GetRun(ctx context.Context, runID string) (types.RunSummary, error) {
	args := m.Called(ctx, runID)
	if len(args) > 0 {
		return args.Get(0).(types.RunSummary), args.Error(1)
	}
	return types.RunSummary{}, nil
}

func (m *MockDatabase) ListRuns(ctx context.Context, limit int) ([]types.RunSummary, error) {
	args := m.Called(ctx, limit)
	if len(args) > 0 {
		return args.Get(0).([]types.RunSummary), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) LatestRunID(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDatabase) SaveRecords(ctx context.Context, runID string, records []types.StepRecord) error {
	args := m.Called(ctx, runID, records)
	return args.Error(0)
}

func (m *MockDatabase) GetRecords(ctx context.Context, runID string, start, end time.Time) ([]types.StepRecord, error) {
	args := m.Called(ctx, runID, start, end)
	if len(args) > 0 {
		return args.Get(0).([]types.StepRecord), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) SavePlan(ctx context.Context, runID string, plan types.MatchingResult) error {
	args := m.Called(ctx, runID, plan)
	return args.Error(0)
}

func (m *MockDatabase) GetPlan(ctx context.Context, runID string) (types.MatchingResult, error) {
	args := m.Called(ctx, runID)
	if len(args) > 0 {
		return args.Get(0).(types.MatchingResult), args.Error(1)
	}
	return types.MatchingResult{}, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
