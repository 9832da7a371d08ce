// Package replay loads measured household demand from UK-DALE style
// datasets so runs can be validated against recorded consumption instead of
// a synthetic appliance catalog.
//
// A dataset root contains one directory per house:
//
//	<root>/house_1/labels.dat
//	<root>/house_1/channel_1.dat
//	<root>/house_1/channel_2.dat
//
// labels.dat lines are "<channel> <label>"; channel files are space-separated
// "<epoch_seconds> <power_watts>" samples at irregular intervals. Aggregate
// demand is the sum of the channels labeled "mains" (commonly two).
package replay

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxGapSteps is how many consecutive empty steps get interpolated
// across; at the 15-minute default that bridges up to an hour of missing
// samples. Longer outages stay missing and are filled per-day from the
// nearest measurement.
const DefaultMaxGapSteps = 4

// Options selects what to load and the grid to put it on.
type Options struct {
	// Root is the dataset root containing house_<N> directories.
	Root  string
	House int
	// Start and End bound the samples read, half-open [Start, End); zero
	// values mean unbounded.
	Start time.Time
	End   time.Time
	// TimestepMinutes is the resample resolution; it must divide a day
	// evenly so days align with the simulation grid.
	TimestepMinutes int
	// MaxGapSteps overrides DefaultMaxGapSteps when positive.
	MaxGapSteps int
}

func (o Options) validate() error {
	if o.Root == "" {
		return fmt.Errorf("dataset root is required")
	}
	if o.House < 1 {
		return fmt.Errorf("house must be at least 1, got %d", o.House)
	}
	if o.TimestepMinutes < 1 || (24*60)%o.TimestepMinutes != 0 {
		return fmt.Errorf("timestepMinutes (%d) must divide a day evenly", o.TimestepMinutes)
	}
	if !o.Start.IsZero() && !o.End.IsZero() && !o.Start.Before(o.End) {
		return fmt.Errorf("start must be before end")
	}
	return nil
}

// Day is one UTC calendar day of measured demand aligned to the step grid.
type Day struct {
	// Date is midnight UTC.
	Date time.Time
	// KW holds one mean power value per step, gap-filled from the nearest
	// measurement so every step carries a value.
	KW []float64
}

// LoadDays reads the house's mains channels and reduces them to per-day mean
// power series on the requested grid. Days without a single sample are
// omitted; the result is sorted by date but not necessarily contiguous.
func LoadDays(opts Options) ([]Day, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.MaxGapSteps < 1 {
		opts.MaxGapSteps = DefaultMaxGapSteps
	}

	dir := filepath.Join(opts.Root, fmt.Sprintf("house_%d", opts.House))
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("house directory not found: %w", err)
	}

	labels, err := readLabels(filepath.Join(dir, "labels.dat"))
	if err != nil {
		return nil, err
	}
	channels := mainsChannels(labels, dir)
	if len(channels) == 0 {
		return nil, fmt.Errorf("no mains channels found in %s", dir)
	}

	// Channels sample at independent instants, so summing per epoch second
	// merges them into one aggregate stream.
	agg := make(map[int64]float64)
	for _, ch := range channels {
		samples, err := readChannel(filepath.Join(dir, fmt.Sprintf("channel_%d.dat", ch)))
		if err != nil {
			return nil, err
		}
		for ts, w := range samples {
			agg[ts] += w
		}
	}
	if !opts.Start.IsZero() || !opts.End.IsZero() {
		for ts := range agg {
			if !opts.Start.IsZero() && ts < opts.Start.Unix() {
				delete(agg, ts)
			} else if !opts.End.IsZero() && ts >= opts.End.Unix() {
				delete(agg, ts)
			}
		}
	}
	if len(agg) == 0 {
		return nil, fmt.Errorf("no samples in the requested window")
	}

	steps, firstStep := resample(agg, opts.TimestepMinutes)
	interpolateGaps(steps, opts.MaxGapSteps)
	return splitDays(steps, firstStep, opts.TimestepMinutes), nil
}

// readLabels parses "<channel> <label>" lines. Malformed lines are skipped,
// matching how the datasets are distributed: labels files carry occasional
// comments and blank lines.
func readLabels(path string) (map[int]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int]string{}, nil
		}
		return nil, fmt.Errorf("failed to open labels file: %w", err)
	}
	defer f.Close()

	labels := make(map[int]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		ch, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		labels[ch] = strings.ToLower(strings.Join(fields[1:], " "))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels file: %w", err)
	}
	return labels, nil
}

// mainsChannels returns the channels labeled "mains". When the labels file
// is absent or names none, channels 1 and 2 stand in when their files exist.
func mainsChannels(labels map[int]string, dir string) []int {
	var channels []int
	for ch, label := range labels {
		if label == "mains" {
			channels = append(channels, ch)
		}
	}
	if len(channels) == 0 {
		for _, ch := range []int{1, 2} {
			if _, err := os.Stat(filepath.Join(dir, fmt.Sprintf("channel_%d.dat", ch))); err == nil {
				channels = append(channels, ch)
			}
		}
	}
	sort.Ints(channels)
	return channels
}

// readChannel parses one channel file into watts keyed by epoch second.
// Duplicate timestamps keep the last sample.
func readChannel(path string) (map[int64]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open channel file: %w", err)
	}
	defer f.Close()

	samples := make(map[int64]float64)
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%s:%d: expected \"<epoch> <watts>\", got %q", path, line, text)
		}
		ts, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: invalid timestamp: %w", path, line, err)
		}
		w, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: invalid power: %w", path, line, err)
		}
		samples[ts] = w
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read channel file %s: %w", path, err)
	}
	return samples, nil
}

// resample reduces the irregular samples to mean kW per step. The returned
// slice spans the first through last step holding any sample; steps without
// samples are NaN. firstStep is the index of the first step on the epoch
// grid, which keeps the series aligned to UTC midnights.
func resample(agg map[int64]float64, timestepMinutes int) ([]float64, int64) {
	stepSec := int64(timestepMinutes * 60)

	var firstStep, lastStep int64
	first := true
	sums := make(map[int64]float64)
	counts := make(map[int64]int)
	for ts, w := range agg {
		step := ts / stepSec
		sums[step] += w
		counts[step]++
		if first || step < firstStep {
			firstStep = step
		}
		if first || step > lastStep {
			lastStep = step
		}
		first = false
	}

	steps := make([]float64, lastStep-firstStep+1)
	for i := range steps {
		step := firstStep + int64(i)
		if n := counts[step]; n > 0 {
			steps[i] = sums[step] / float64(n) / 1000.0
		} else {
			steps[i] = math.NaN()
		}
	}
	return steps, firstStep
}

// interpolateGaps fills interior runs of up to maxGap missing steps by
// linear interpolation between the surrounding measurements. Longer runs and
// gaps touching either end stay NaN.
func interpolateGaps(steps []float64, maxGap int) {
	i := 0
	for i < len(steps) {
		if !math.IsNaN(steps[i]) {
			i++
			continue
		}
		j := i
		for j < len(steps) && math.IsNaN(steps[j]) {
			j++
		}
		gap := j - i
		if i > 0 && j < len(steps) && gap <= maxGap {
			lo, hi := steps[i-1], steps[j]
			for k := 0; k < gap; k++ {
				frac := float64(k+1) / float64(gap+1)
				steps[i+k] = lo + (hi-lo)*frac
			}
		}
		i = j
	}
}

// splitDays groups the step series by UTC calendar day and aligns each day
// that holds at least one measurement onto the full day grid. Missing steps
// are forward-filled then back-filled, which is conservative for demand: an
// unmeasured stretch is assumed to keep drawing what it last drew.
func splitDays(steps []float64, firstStep int64, timestepMinutes int) []Day {
	stepsPerDay := (24 * 60) / timestepMinutes
	stepSec := int64(timestepMinutes * 60)

	byDate := make(map[string]*Day)
	var dates []string
	for i, v := range steps {
		if math.IsNaN(v) {
			continue
		}
		step := firstStep + int64(i)
		ts := time.Unix(step*stepSec, 0).UTC()
		date := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		key := date.Format("2006-01-02")

		day, ok := byDate[key]
		if !ok {
			day = &Day{Date: date, KW: nanSlice(stepsPerDay)}
			byDate[key] = day
			dates = append(dates, key)
		}
		day.KW[int(ts.Sub(date)/time.Minute)/timestepMinutes] = v
	}

	sort.Strings(dates)
	out := make([]Day, 0, len(dates))
	for _, key := range dates {
		day := byDate[key]
		fillDay(day.KW)
		out = append(out, *day)
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// fillDay forward-fills then back-fills the day's missing steps. The caller
// guarantees at least one real value, so nothing stays NaN.
func fillDay(kw []float64) {
	last := math.NaN()
	for i, v := range kw {
		if math.IsNaN(v) {
			kw[i] = last
		} else {
			last = v
		}
	}
	last = math.NaN()
	for i := len(kw) - 1; i >= 0; i-- {
		if math.IsNaN(kw[i]) {
			kw[i] = last
		} else {
			last = kw[i]
		}
	}
}

// Baseline flattens n consecutive days starting at start into one per-step
// series suitable for a run's measured-demand input. A zero start means the
// first loaded day. Every day in the window must be present.
func Baseline(days []Day, start time.Time, n int) ([]float64, error) {
	if len(days) == 0 {
		return nil, fmt.Errorf("no measured days loaded")
	}
	if n < 1 {
		return nil, fmt.Errorf("need at least one day, got %d", n)
	}
	if start.IsZero() {
		start = days[0].Date
	}
	start = start.UTC()
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	byDate := make(map[string]Day, len(days))
	for _, d := range days {
		byDate[d.Date.Format("2006-01-02")] = d
	}

	out := make([]float64, 0, n*len(days[0].KW))
	for i := 0; i < n; i++ {
		key := start.AddDate(0, 0, i).Format("2006-01-02")
		day, ok := byDate[key]
		if !ok {
			return nil, fmt.Errorf("no measured demand for %s", key)
		}
		out = append(out, day.KW...)
	}
	return out, nil
}
