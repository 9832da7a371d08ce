package forecast

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nasaBody builds a POWER point response covering the UTC days start through
// end, inclusive, with per-hour values from fn.
func nasaBody(start, end time.Time, fn func(ts time.Time) float64) string {
	var entries []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		for h := 0; h < 24; h++ {
			ts := d.Add(time.Duration(h) * time.Hour)
			entries = append(entries, fmt.Sprintf("%q:%s", ts.Format("2006010215"), strconv.FormatFloat(fn(ts), 'f', -1, 64)))
		}
	}
	return fmt.Sprintf(`{"properties":{"parameter":{"ALLSKY_SFC_SW_DWN":{%s}}}}`, strings.Join(entries, ","))
}

// bellGHI is a plausible clear day peaking at 600 W/m2 at noon.
func bellGHI(ts time.Time) float64 {
	h := float64(ts.Hour())
	if h < 6 || h > 18 {
		return 0
	}
	x := (h - 6) / 12
	return 600 * 4 * x * (1 - x)
}

// fillGHI mimics hours the archive hasn't published.
func fillGHI(time.Time) float64 { return -999 }

func TestNASAPower(t *testing.T) {
	// 2026-03-10 15:30 UTC: planning days start 2026-03-11, the history
	// window is 2026-02-22 through 2026-02-28 and the last-year window is
	// 2025-03-08 through 2025-03-14.
	ref := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	firstDay := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)

	newServer := func(t *testing.T, handle func(q url.Values) string) (*httptest.Server, *int) {
		requests := 0
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(handle(r.URL.Query())))
		}))
		t.Cleanup(ts.Close)
		return ts, &requests
	}

	t.Run("PlanningParse", func(t *testing.T) {
		ts, _ := newServer(t, func(q url.Values) string {
			assert.Equal(t, "ALLSKY_SFC_SW_DWN", q.Get("parameters"))
			assert.Equal(t, "RE", q.Get("community"))
			assert.Equal(t, "JSON", q.Get("format"))
			assert.Equal(t, "UTC", q.Get("time-standard"))
			assert.Equal(t, "41.8781", q.Get("latitude"))
			assert.Equal(t, "-87.6298", q.Get("longitude"))
			assert.Equal(t, "20260311", q.Get("start"))
			assert.Equal(t, "20260312", q.Get("end"))
			return nasaBody(firstDay, firstDay.AddDate(0, 0, 1), func(ts time.Time) float64 {
				// one unpublished hour in an otherwise clear day
				if ts.Equal(firstDay.Add(3 * time.Hour)) {
					return -999
				}
				return bellGHI(ts)
			})
		})

		n := &NASAPower{apiURL: ts.URL, client: ts.Client()}
		points, err := n.PlanningGHI(context.Background(), 41.8781, -87.6298, ref, 2)
		require.NoError(t, err)
		require.Len(t, points, 48)

		assert.True(t, points[0].TS.Equal(firstDay))
		assert.InDelta(t, 600, points[12].GHIWM2, 1e-9)
		// fill values clamp to zero instead of dropping the hour
		assert.Equal(t, 0.0, points[3].GHIWM2)
		for i := 1; i < len(points); i++ {
			assert.True(t, points[i].TS.After(points[i-1].TS), "points must be chronological")
		}
	})

	t.Run("FallsBackToRecentHistory", func(t *testing.T) {
		ts, requests := newServer(t, func(q url.Values) string {
			switch q.Get("start") {
			case "20260311":
				return nasaBody(firstDay, firstDay.AddDate(0, 0, 1), fillGHI)
			case "20260222":
				assert.Equal(t, "20260228", q.Get("end"))
				return nasaBody(
					time.Date(2026, 2, 22, 0, 0, 0, 0, time.UTC),
					time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
					bellGHI,
				)
			default:
				t.Errorf("unexpected start param %q", q.Get("start"))
				return "{}"
			}
		})

		n := &NASAPower{apiURL: ts.URL, client: ts.Client()}
		points, err := n.PlanningGHI(context.Background(), 41.8781, -87.6298, ref, 2)
		require.NoError(t, err)
		require.Len(t, points, 48)
		assert.Equal(t, 2, *requests)

		// the profile is stamped onto the planning days, not the history days
		assert.True(t, points[0].TS.Equal(firstDay))
		assert.True(t, points[24].TS.Equal(firstDay.AddDate(0, 0, 1)))
		assert.InDelta(t, 600, points[12].GHIWM2, 1e-9)
		assert.InDelta(t, 600, points[36].GHIWM2, 1e-9)
		assert.Equal(t, 0.0, points[0].GHIWM2)
	})

	t.Run("FallsBackToLastYear", func(t *testing.T) {
		ts, requests := newServer(t, func(q url.Values) string {
			switch q.Get("start") {
			case "20260311", "20260222":
				return nasaBody(firstDay, firstDay, fillGHI)
			case "20250308":
				assert.Equal(t, "20250314", q.Get("end"))
				return nasaBody(
					time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC),
					time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
					bellGHI,
				)
			default:
				t.Errorf("unexpected start param %q", q.Get("start"))
				return "{}"
			}
		})

		n := &NASAPower{apiURL: ts.URL, client: ts.Client()}
		points, err := n.PlanningGHI(context.Background(), 41.8781, -87.6298, ref, 1)
		require.NoError(t, err)
		require.Len(t, points, 24)
		assert.Equal(t, 3, *requests)

		assert.True(t, points[0].TS.Equal(firstDay))
		assert.InDelta(t, 600, points[12].GHIWM2, 1e-9)
	})

	t.Run("NoUsableData", func(t *testing.T) {
		ts, requests := newServer(t, func(url.Values) string {
			return nasaBody(firstDay, firstDay, fillGHI)
		})

		n := &NASAPower{apiURL: ts.URL, client: ts.Client()}
		_, err := n.PlanningGHI(context.Background(), 41.8781, -87.6298, ref, 1)
		require.ErrorIs(t, err, ErrNoData)
		assert.Equal(t, 3, *requests)
	})

	t.Run("Caching", func(t *testing.T) {
		ts, requests := newServer(t, func(url.Values) string {
			return nasaBody(firstDay, firstDay, bellGHI)
		})

		n := &NASAPower{apiURL: ts.URL, client: ts.Client()}
		first, err := n.PlanningGHI(context.Background(), 41.8781, -87.6298, ref, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, *requests)

		second, err := n.PlanningGHI(context.Background(), 41.8781, -87.6298, ref, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, *requests, "expected cached response")
		assert.Equal(t, first, second)
	})

	t.Run("ServerError", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer ts.Close()

		n := &NASAPower{apiURL: ts.URL, client: ts.Client()}
		_, err := n.PlanningGHI(context.Background(), 41.8781, -87.6298, ref, 1)
		require.ErrorIs(t, err, ErrNoData)
	})

	t.Run("DaysGuard", func(t *testing.T) {
		n := &NASAPower{apiURL: "http://example.com", client: http.DefaultClient}
		_, err := n.PlanningGHI(context.Background(), 0, 0, ref, 0)
		require.Error(t, err)
	})

	t.Run("Validate", func(t *testing.T) {
		n := &NASAPower{}
		require.Error(t, n.Validate())

		n.apiURL = "https://power.larc.nasa.gov/api/temporal/hourly/point"
		require.NoError(t, n.Validate())
	})
}

func TestPlausibleGHI(t *testing.T) {
	assert.False(t, plausibleGHI(nil))
	assert.False(t, plausibleGHI([]float64{0, 0, 0}))
	// peak below threshold
	assert.False(t, plausibleGHI([]float64{0, 2, 4, 2, 0}))
	// flat nonzero series has no spread
	assert.False(t, plausibleGHI([]float64{10, 10, 10}))
	assert.True(t, plausibleGHI([]float64{0, 100, 600, 100, 0}))
}

func TestHourOfDayMean(t *testing.T) {
	day1 := time.Date(2026, 2, 22, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	points := append(
		Synthetic{}.Series(day1, 24, 60),
		Synthetic{PeakGHIWM2: 400}.Series(day2, 24, 60)...,
	)

	profile := hourOfDayMean(points)
	require.Len(t, profile, 24)
	assert.InDelta(t, (850+400)/2.0, profile[12], 1e-9)
	assert.Equal(t, 0.0, profile[0])
	// hours with no samples stay zero
	assert.Equal(t, 0.0, hourOfDayMean(nil)[5])
}
