package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sunstead/sunstead/pkg/log"
	"github.com/sunstead/sunstead/pkg/storage"
)

// handleGetPlan returns the day-ahead matching plan for the given run, or for
// the most recent run when no runID is supplied.
func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	runID := r.URL.Query().Get("runID")
	if runID == "" {
		latest, err := s.storage.LatestRunID(ctx)
		if err != nil {
			if errors.Is(err, storage.ErrRunNotFound) {
				writeJSONError(w, "no runs stored yet", http.StatusNotFound)
				return
			}
			log.Ctx(ctx).ErrorContext(ctx, "failed to get latest run", slog.Any("error", err))
			writeJSONError(w, "failed to get latest run", http.StatusInternalServerError)
			return
		}
		runID = latest
	}

	plan, err := s.storage.GetPlan(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrPlanNotFound) {
			writeJSONError(w, "plan not found", http.StatusNotFound)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to get plan", slog.String("runID", runID), slog.Any("error", err))
		writeJSONError(w, "failed to get plan", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=60")
	writeJSON(w, plan)
}
