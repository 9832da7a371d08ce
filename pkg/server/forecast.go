package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sunstead/sunstead/pkg/forecast"
	"github.com/sunstead/sunstead/pkg/log"
	"github.com/sunstead/sunstead/pkg/types"
)

type forecastResponse struct {
	// Provider is the source the series actually came from;
	// "synthetic_fallback" marks a failed fetch replaced by the placeholder
	// profile.
	Provider        string                  `json:"provider"`
	StartTS         time.Time               `json:"startTS"`
	Days            int                     `json:"days"`
	TimestepMinutes int                     `json:"timestepMinutes"`
	Hourly          []types.IrradiancePoint `json:"hourly"`
	StepGHI         []float64               `json:"stepGHI"`
}

// handleForecast previews the irradiance series a run would consume,
// resampled to the requested step resolution.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		writeJSONError(w, "invalid lat", http.StatusBadRequest)
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		writeJSONError(w, "invalid lon", http.StatusBadRequest)
		return
	}

	days := 1
	if daysStr := q.Get("days"); daysStr != "" {
		days, err = strconv.Atoi(daysStr)
		if err != nil || days < 1 {
			writeJSONError(w, "invalid days", http.StatusBadRequest)
			return
		}
	}

	timestepMinutes := types.DefaultTimestepMinutes
	if stepStr := q.Get("timestepMinutes"); stepStr != "" {
		timestepMinutes, err = strconv.Atoi(stepStr)
		if err != nil || timestepMinutes < 1 || (24*60)%timestepMinutes != 0 {
			writeJSONError(w, "invalid timestepMinutes", http.StatusBadRequest)
			return
		}
	}

	// series starts at the next UTC day unless told otherwise
	start := time.Now().UTC().AddDate(0, 0, 1)
	if startStr := q.Get("start"); startStr != "" {
		start, err = time.Parse(time.RFC3339, startStr)
		if err != nil {
			writeJSONError(w, "invalid start time", http.StatusBadRequest)
			return
		}
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	provider, err := s.forecasts.Provider(q.Get("provider"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	totalSteps := days * (24 * 60 / timestepMinutes)
	resp := forecastResponse{
		Provider:        provider.Name(),
		StartTS:         start,
		Days:            days,
		TimestepMinutes: timestepMinutes,
	}

	points, err := provider.PlanningGHI(ctx, lat, lon, start.AddDate(0, 0, -1), days)
	if err != nil {
		// same substitution the run loop makes, with provenance
		log.Ctx(ctx).WarnContext(ctx, "forecast fetch failed, using synthetic profile",
			slog.String("provider", provider.Name()), slog.Any("error", err))
		points = forecast.Synthetic{}.Series(start, days*24, 60)
		resp.Provider = types.ForecastSourceFallback
	}
	resp.Hourly = points
	resp.StepGHI = forecast.Resample(forecast.GHIValues(points), totalSteps)

	w.Header().Set("Cache-Control", "private, max-age=300")
	writeJSON(w, resp)
}
