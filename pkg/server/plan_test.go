package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/sunstead/sunstead/pkg/storage"
	"github.com/sunstead/sunstead/pkg/storage/storagemock"
	"github.com/sunstead/sunstead/pkg/types"
)

func TestGetPlan(t *testing.T) {
	newHandler := func(db *storagemock.MockDatabase) http.Handler {
		srv := &Server{storage: db, listenAddr: ":8080"}
		return srv.setupHandler()
	}

	dayStart := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	plan := types.MatchingResult{
		TotalSolarKWH:          12.4,
		TotalDemandKWH:         9.1,
		MarginKWH:              3.3,
		MarginType:             types.MarginSurplus,
		DailyOutlook:           "Comfortable surplus expected.",
		CriticalFullyProtected: true,
		Risk:                   types.RiskLow,
		DayStartTS:             dayStart,
		TimestepMinutes:        15,
		StepsPerDay:            96,
	}

	t.Run("Latest Run", func(t *testing.T) {
		mockDB := &storagemock.MockDatabase{}
		mockDB.On("LatestRunID", mock.Anything).Return("run-9", nil).Once()
		mockDB.On("GetPlan", mock.Anything, "run-9").Return(plan, nil).Once()

		handler := newHandler(mockDB)
		req := httptest.NewRequest("GET", "/api/plan", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "private, max-age=60", w.Header().Get("Cache-Control"))

		var got types.MatchingResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, types.MarginSurplus, got.MarginType)
		assert.Equal(t, 12.4, got.TotalSolarKWH)
		mockDB.AssertExpectations(t)
	})

	t.Run("Explicit RunID", func(t *testing.T) {
		mockDB := &storagemock.MockDatabase{}
		mockDB.On("GetPlan", mock.Anything, "run-3").Return(plan, nil).Once()

		handler := newHandler(mockDB)
		req := httptest.NewRequest("GET", "/api/plan?runID=run-3", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockDB.AssertNotCalled(t, "LatestRunID", mock.Anything)
		mockDB.AssertExpectations(t)
	})

	t.Run("No Runs Stored", func(t *testing.T) {
		mockDB := &storagemock.MockDatabase{}
		mockDB.On("LatestRunID", mock.Anything).Return("", storage.ErrRunNotFound).Once()

		handler := newHandler(mockDB)
		req := httptest.NewRequest("GET", "/api/plan", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "no runs stored yet")
		mockDB.AssertNotCalled(t, "GetPlan", mock.Anything, mock.Anything)
	})

	t.Run("Plan Not Found", func(t *testing.T) {
		mockDB := &storagemock.MockDatabase{}
		mockDB.On("GetPlan", mock.Anything, "run-3").Return(types.MatchingResult{}, storage.ErrPlanNotFound).Once()

		handler := newHandler(mockDB)
		req := httptest.NewRequest("GET", "/api/plan?runID=run-3", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "plan not found")
	})

	t.Run("Storage Error", func(t *testing.T) {
		mockDB := &storagemock.MockDatabase{}
		mockDB.On("LatestRunID", mock.Anything).Return("", assert.AnError).Once()

		handler := newHandler(mockDB)
		req := httptest.NewRequest("GET", "/api/plan", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "failed to get latest run")
	})
}
