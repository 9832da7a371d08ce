package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sunstead/sunstead/pkg/dayahead"
	"github.com/sunstead/sunstead/pkg/log"
	"github.com/sunstead/sunstead/pkg/sim"
)

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Limit body size to 1MB to prevent DoS
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	var req sim.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode simulate request", slog.Any("error", err))
		writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	req.Scenario.Config.ApplyDefaults()

	result, err := s.runner.Run(ctx, req)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "run rejected", slog.Any("error", err))
		writeJSONError(w, "run failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.storage.SaveRun(ctx, result.Summary()); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save run", slog.String("runID", result.ID), slog.Any("error", err))
		writeJSONError(w, "failed to save run", http.StatusInternalServerError)
		return
	}
	if err := s.storage.SaveRecords(ctx, result.ID, result.Records); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save records", slog.String("runID", result.ID), slog.Any("error", err))
		writeJSONError(w, "failed to save records", http.StatusInternalServerError)
		return
	}

	plan, err := dayahead.Compute(result.Records, result.Appliances, result.Config)
	if err != nil {
		// a completed run always has at least one full day of records
		log.Ctx(ctx).ErrorContext(ctx, "failed to compute plan", slog.String("runID", result.ID), slog.Any("error", err))
		writeJSONError(w, "failed to compute plan", http.StatusInternalServerError)
		return
	}
	if err := s.storage.SavePlan(ctx, result.ID, plan); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save plan", slog.String("runID", result.ID), slog.Any("error", err))
		writeJSONError(w, "failed to save plan", http.StatusInternalServerError)
		return
	}

	log.Ctx(ctx).InfoContext(ctx, "run stored",
		slog.String("runID", result.ID),
		slog.String("policy", result.Policy),
		slog.String("status", string(result.Status)),
		slog.Int("records", len(result.Records)),
	)

	writeJSON(w, result)
}
