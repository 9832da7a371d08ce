package server

import (
	"net/http"
	"strconv"

	"github.com/sunstead/sunstead/pkg/types"
)

type weatherResponse struct {
	Location   types.Location          `json:"location"`
	Conditions types.WeatherConditions `json:"conditions"`
}

// handleWeather reports current conditions for a place name or coordinate
// pair. This is display context only; runs never read from it.
func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	wc := s.forecasts.Weather()
	if wc == nil || !wc.Enabled() {
		writeJSONError(w, "weather provider not configured", http.StatusServiceUnavailable)
		return
	}

	var loc types.Location
	if query := q.Get("q"); query != "" {
		locations, err := wc.Geocode(ctx, query, 1)
		if err != nil {
			writeJSONError(w, "geocoding failed", http.StatusBadGateway)
			return
		}
		if len(locations) == 0 {
			writeJSONError(w, "location not found", http.StatusNotFound)
			return
		}
		loc = locations[0]
	} else {
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
		loc = types.Location{Lat: lat, Lon: lon}
		// best-effort name for display, coordinates alone are fine
		if locations, err := wc.ReverseGeocode(ctx, lat, lon); err == nil && len(locations) > 0 {
			loc = locations[0]
		}
	}

	cond, err := wc.CurrentWeather(ctx, loc.Lat, loc.Lon)
	if err != nil {
		writeJSONError(w, "weather fetch failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=300")
	writeJSON(w, weatherResponse{Location: loc, Conditions: cond})
}
