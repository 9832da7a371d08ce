package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sunstead/sunstead/pkg/log"
	"github.com/sunstead/sunstead/pkg/storage"
)

// defaultListLimit bounds unqualified run listings.
const defaultListLimit = 50

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			writeJSONError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := s.storage.ListRuns(ctx, limit)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list runs", slog.Any("error", err))
		writeJSONError(w, "failed to list runs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=60")
	writeJSON(w, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := r.PathValue("id")

	run, err := s.storage.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			writeJSONError(w, "run not found", http.StatusNotFound)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to get run", slog.String("runID", runID), slog.Any("error", err))
		writeJSONError(w, "failed to get run", http.StatusInternalServerError)
		return
	}

	// completed runs never change
	w.Header().Set("Cache-Control", "private, max-age=86400")
	writeJSON(w, run)
}

func (s *Server) handleGetRunRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := r.PathValue("id")

	run, err := s.storage.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			writeJSONError(w, "run not found", http.StatusNotFound)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to get run", slog.String("runID", runID), slog.Any("error", err))
		writeJSONError(w, "failed to get run", http.StatusInternalServerError)
		return
	}

	// the whole run by default
	start := run.StartTS
	end := run.StartTS.AddDate(0, 0, run.Days)
	if qStart, qEnd, ok, err := parseTimeRange(r); err != nil {
		writeJSONError(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	} else if ok {
		start, end = qStart, qEnd
	}

	records, err := s.storage.GetRecords(ctx, runID, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get records", slog.String("runID", runID), slog.Any("error", err))
		writeJSONError(w, "failed to get records", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=86400")
	writeJSON(w, records)
}

// parseTimeRange reads the optional start/end query parameters. ok is false
// when neither was supplied.
func parseTimeRange(r *http.Request) (time.Time, time.Time, bool, error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" && endStr == "" {
		return time.Time{}, time.Time{}, false, nil
	}
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, false, fmt.Errorf("start and end must be supplied together")
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("invalid start time: %w", err)
	}

	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("invalid end time: %w", err)
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, false, fmt.Errorf("start time must be before end time")
	}

	return start, end, true, nil
}
