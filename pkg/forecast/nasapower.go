package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/sunstead/sunstead/pkg/common"
	"github.com/sunstead/sunstead/pkg/log"
	"github.com/sunstead/sunstead/pkg/types"
)

const nasaGHIParameter = "ALLSKY_SFC_SW_DWN"

const (
	// historyLagDays keeps the recent-history window behind the archive's
	// publication delay.
	historyLagDays    = 10
	historyWindowDays = 7
	// lastYearWindowDays widens the same-day-last-year fallback on each side.
	lastYearWindowDays = 3

	// plausibleMinPeakWM2 and plausibleMinSpreadWM2 reject flat series. Fill
	// values decode to zero, so days the archive hasn't published yet show up
	// as an implausibly flat profile.
	plausibleMinPeakWM2   = 5.0
	plausibleMinSpreadWM2 = 1.0
)

// NASAPower retrieves hourly GHI from the NASA POWER temporal API. The
// archive publishes with a lag of about a week, so a fetch for upcoming days
// usually lands on fill values; PlanningGHI then falls back to an expected
// profile built from recent history, then from the same days last year.
type NASAPower struct {
	apiURL string
	client *http.Client

	mu        sync.Mutex
	cacheKey  string
	cached    []types.IrradiancePoint
	fetchedAt time.Time
}

// configuredNASAPower sets up flags for NASA POWER and returns the instance.
func configuredNASAPower() *NASAPower {
	n := &NASAPower{
		client: common.HTTPClient(30 * time.Second),
	}
	apiURL := lflag.String("nasa-power-api-url", "https://power.larc.nasa.gov/api/temporal/hourly/point", "URL for the NASA POWER hourly point API")

	lflag.Do(func() {
		n.apiURL = *apiURL
	})

	return n
}

// Validate ensures the configuration is valid.
func (n *NASAPower) Validate() error {
	if n.apiURL == "" {
		return fmt.Errorf("nasa-power-api-url is required")
	}
	if _, err := url.Parse(n.apiURL); err != nil {
		return fmt.Errorf("failed to parse nasa power url (%s): %w", n.apiURL, err)
	}
	return nil
}

// Name identifies the provider in run provenance.
func (n *NASAPower) Name() string {
	return NameNASAPower
}

// PlanningGHI returns hourly irradiance for the planning days, falling back
// to expected profiles when the archive has no data yet. The result is
// cached for an hour per location and window.
func (n *NASAPower) PlanningGHI(ctx context.Context, lat, lon float64, ref time.Time, days int) ([]types.IrradiancePoint, error) {
	if days < 1 {
		return nil, fmt.Errorf("days must be at least 1, got %d", days)
	}
	ref = ref.UTC()
	first := midnightUTC(ref).AddDate(0, 0, 1)

	key := fmt.Sprintf("%.4f,%.4f,%s,%d", lat, lon, first.Format("20060102"), days)
	n.mu.Lock()
	if n.cacheKey == key && time.Since(n.fetchedAt) < time.Hour {
		points := n.cached
		n.mu.Unlock()
		return points, nil
	}
	n.mu.Unlock()

	points, err := n.plan(ctx, lat, lon, ref, first, days)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.cacheKey = key
	n.cached = points
	n.fetchedAt = time.Now()
	n.mu.Unlock()

	return points, nil
}

func (n *NASAPower) plan(ctx context.Context, lat, lon float64, ref, first time.Time, days int) ([]types.IrradiancePoint, error) {
	last := first.AddDate(0, 0, days-1)

	points, err := n.fetchRange(ctx, lat, lon, first, last, false)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "nasa power planning fetch failed", slog.Any("error", err))
	} else if plausibleGHI(GHIValues(points)) {
		return points, nil
	}

	profile, err := n.historyProfile(ctx, lat, lon, ref)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "nasa power history fetch failed", slog.Any("error", err))
	} else if plausibleGHI(profile) {
		log.Ctx(ctx).InfoContext(
			ctx,
			"using recent-history irradiance profile",
			slog.Int("lagDays", historyLagDays),
			slog.Int("windowDays", historyWindowDays),
		)
		return profilePoints(profile, first, days), nil
	}

	profile, err = n.lastYearProfile(ctx, lat, lon, first)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "nasa power last-year fetch failed", slog.Any("error", err))
	} else if plausibleGHI(profile) {
		log.Ctx(ctx).InfoContext(
			ctx,
			"using same-day-last-year irradiance profile",
			slog.Time("firstDay", first),
		)
		return profilePoints(profile, first, days), nil
	}

	return nil, ErrNoData
}

// historyProfile builds the hour-of-day mean over a recent window that sits
// behind the archive's publication lag.
func (n *NASAPower) historyProfile(ctx context.Context, lat, lon float64, ref time.Time) ([]float64, error) {
	end := midnightUTC(ref).AddDate(0, 0, -historyLagDays)
	start := end.AddDate(0, 0, -(historyWindowDays - 1))
	points, err := n.fetchRange(ctx, lat, lon, start, end, true)
	if err != nil {
		return nil, err
	}
	return hourOfDayMean(points), nil
}

// lastYearProfile averages the same calendar days one year before the first
// planning day.
func (n *NASAPower) lastYearProfile(ctx context.Context, lat, lon float64, first time.Time) ([]float64, error) {
	target := time.Date(first.Year()-1, first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
	// Feb 29 normalizes to Mar 1 on a non-leap year; pull it back a day.
	if first.Month() == time.February && target.Month() == time.March {
		target = target.AddDate(0, 0, -1)
	}
	points, err := n.fetchRange(ctx, lat, lon, target.AddDate(0, 0, -lastYearWindowDays), target.AddDate(0, 0, lastYearWindowDays), true)
	if err != nil {
		return nil, err
	}
	return hourOfDayMean(points), nil
}

// nasaPowerResponse is the subset of the POWER point response we read. Hours
// are keyed YYYYMMDDHH in the requested time standard.
type nasaPowerResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

// fetchRange retrieves hourly GHI between the first and last UTC day,
// inclusive. Fill values are dropped when validOnly is set and clamped to
// zero otherwise.
func (n *NASAPower) fetchRange(ctx context.Context, lat, lon float64, start, end time.Time, validOnly bool) ([]types.IrradiancePoint, error) {
	u, err := url.Parse(n.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}

	params := url.Values{}
	params.Set("parameters", nasaGHIParameter)
	params.Set("community", "RE")
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("start", start.Format("20060102"))
	params.Set("end", end.Format("20060102"))
	params.Set("format", "JSON")
	params.Set("time-standard", "UTC")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	log.Ctx(ctx).DebugContext(ctx, "fetching irradiance from nasa power", "url", u.String())

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch irradiance: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nasa power api returned status: %d", resp.StatusCode)
	}

	var data nasaPowerResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	hours := data.Properties.Parameter[nasaGHIParameter]
	keys := make([]string, 0, len(hours))
	for k := range hours {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	points := make([]types.IrradiancePoint, 0, len(keys))
	for _, k := range keys {
		ts, err := time.ParseInLocation("2006010215", k, time.UTC)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to parse nasa power hour key", slog.String("value", k), slog.Any("error", err))
			continue
		}
		v := hours[k]
		if v < 0 {
			// -999 marks hours the archive hasn't published
			if validOnly {
				continue
			}
			v = 0
		}
		points = append(points, types.IrradiancePoint{TS: ts, GHIWM2: v})
	}

	log.Ctx(ctx).DebugContext(
		ctx,
		"fetched irradiance",
		slog.Int("count", len(points)),
		slog.String("start", start.Format("20060102")),
		slog.String("end", end.Format("20060102")),
	)

	return points, nil
}

func midnightUTC(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

// GHIValues extracts the raw irradiance series from forecast points.
func GHIValues(points []types.IrradiancePoint) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.GHIWM2
	}
	return values
}

// plausibleGHI reports whether a series looks like real daylight data rather
// than fill values or a dead sensor.
func plausibleGHI(values []float64) bool {
	if len(values) == 0 {
		return false
	}
	minV, maxV := values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	return sum > 0 && maxV >= plausibleMinPeakWM2 && maxV-minV >= plausibleMinSpreadWM2
}

// hourOfDayMean collapses points into a 24-entry mean profile. Hours with no
// valid samples stay zero.
func hourOfDayMean(points []types.IrradiancePoint) []float64 {
	sums := make([]float64, 24)
	counts := make([]int, 24)
	for _, p := range points {
		h := p.TS.UTC().Hour()
		sums[h] += p.GHIWM2
		counts[h]++
	}
	profile := make([]float64, 24)
	for h := range profile {
		if counts[h] > 0 {
			profile[h] = sums[h] / float64(counts[h])
		}
	}
	return profile
}

// profilePoints expands a 24-hour profile across the planning days.
func profilePoints(profile []float64, first time.Time, days int) []types.IrradiancePoint {
	points := make([]types.IrradiancePoint, 0, 24*days)
	for d := 0; d < days; d++ {
		day := first.AddDate(0, 0, d)
		for h := 0; h < 24; h++ {
			points = append(points, types.IrradiancePoint{
				TS:     day.Add(time.Duration(h) * time.Hour),
				GHIWM2: profile[h],
			})
		}
	}
	return points
}
