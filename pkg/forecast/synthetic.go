package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/sunstead/sunstead/pkg/types"
)

// DefaultPeakGHIWM2 is the clear-sky noon irradiance of the synthetic
// profile.
const DefaultPeakGHIWM2 = 850.0

const (
	syntheticSunriseHour = 6.0
	syntheticSunsetHour  = 18.0
)

// Synthetic produces a deterministic bell-shaped irradiance day: zero
// outside 06:00-18:00 and a parabola peaking at noon inside it. It backs
// offline runs and any run whose provider produced no usable data.
type Synthetic struct {
	// PeakGHIWM2 overrides the noon peak; zero means DefaultPeakGHIWM2.
	PeakGHIWM2 float64
}

// Name identifies the provider in run provenance.
func (Synthetic) Name() string {
	return NameSynthetic
}

// GHIAt returns the profile value at a point in time.
func (s Synthetic) GHIAt(ts time.Time) float64 {
	peak := s.PeakGHIWM2
	if peak <= 0 {
		peak = DefaultPeakGHIWM2
	}
	hour := float64(ts.Hour()) + float64(ts.Minute())/60
	if hour < syntheticSunriseHour || hour > syntheticSunsetHour {
		return 0
	}
	x := (hour - syntheticSunriseHour) / (syntheticSunsetHour - syntheticSunriseHour)
	return peak * 4 * x * (1 - x)
}

// Series generates the profile at an arbitrary step resolution starting at
// start.
func (s Synthetic) Series(start time.Time, steps, stepMinutes int) []types.IrradiancePoint {
	points := make([]types.IrradiancePoint, steps)
	for i := range points {
		ts := start.Add(time.Duration(i*stepMinutes) * time.Minute)
		points[i] = types.IrradiancePoint{TS: ts, GHIWM2: s.GHIAt(ts)}
	}
	return points
}

// PlanningGHI returns hourly points for the planning days. It never fails
// for a valid day count.
func (s Synthetic) PlanningGHI(_ context.Context, _, _ float64, ref time.Time, days int) ([]types.IrradiancePoint, error) {
	if days < 1 {
		return nil, fmt.Errorf("days must be at least 1, got %d", days)
	}
	first := midnightUTC(ref).AddDate(0, 0, 1)
	return s.Series(first, 24*days, 60), nil
}
