// Command simulate runs the digital twin offline: it reads a scenario file,
// executes one policy (or compares all of them), prints per-day KPIs and the
// day-ahead verdict, and writes the per-run state CSV and guidance JSONL.
// Runs can optionally be persisted to a SQLite file for the HTTP service to
// serve later, and measured UK-DALE demand can stand in for the catalog's
// critical base load.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
	"github.com/sunstead/sunstead/pkg/dayahead"
	"github.com/sunstead/sunstead/pkg/forecast"
	"github.com/sunstead/sunstead/pkg/kpi"
	"github.com/sunstead/sunstead/pkg/log"
	"github.com/sunstead/sunstead/pkg/policy"
	"github.com/sunstead/sunstead/pkg/replay"
	"github.com/sunstead/sunstead/pkg/runlog"
	"github.com/sunstead/sunstead/pkg/sim"
	"github.com/sunstead/sunstead/pkg/storage"
	"github.com/sunstead/sunstead/pkg/types"
)

func main() {
	scenarioPath := lflag.String("scenario", "", "Path to the scenario JSON file (required)")
	policyName := lflag.String("policy", policy.DefaultName, "Controller policy for the run")
	compare := lflag.Bool("compare", false, "Run every registered policy on the same forecast and report each")
	days := lflag.Int("days", 1, "Number of days to simulate")
	startStr := lflag.String("start", "", "Run start day as RFC3339; empty means the next UTC day")
	outDir := lflag.String("out", "runs", "Directory for per-run state CSV and guidance JSONL files; empty disables them")
	dbPath := lflag.String("db", "", "SQLite file to persist runs into; empty disables persistence")
	replayRoot := lflag.String("replay-root", "", "UK-DALE dataset root; replays measured mains demand as the critical base load")
	replayHouse := lflag.Int("replay-house", 1, "House number under the replay dataset root")

	f := forecast.Configured()
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}
	log.SetDefaultLogLevel(level)

	ctx := context.Background()

	if *scenarioPath == "" {
		log.Ctx(ctx).ErrorContext(ctx, "-scenario is required")
		os.Exit(1)
	}
	scenario, err := types.ReadScenario(*scenarioPath)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to read scenario", "error", err)
		os.Exit(1)
	}

	var start time.Time
	if *startStr != "" {
		ts, err := time.Parse(time.RFC3339, *startStr)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "-start must be RFC3339", "error", err)
			os.Exit(1)
		}
		ts = ts.UTC()
		start = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	}

	req := sim.Request{
		Scenario: scenario,
		Policy:   *policyName,
		Days:     *days,
		Start:    start,
	}

	if *replayRoot != "" {
		req.Start, req.Baseline, err = loadReplay(*replayRoot, *replayHouse, scenario.Config.TimestepMinutes, start, *days)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to load measured demand", "error", err)
			os.Exit(1)
		}
	}

	var db *storage.SQLiteProvider
	if *dbPath != "" {
		db, err = storage.NewSQLite(*dbPath)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	runner := sim.NewRunner(f, nil)

	var results []types.RunResult
	if *compare {
		results, err = runner.Compare(ctx, req, nil)
	} else {
		var res types.RunResult
		res, err = runner.Run(ctx, req)
		results = append(results, res)
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "run failed", "error", err)
		os.Exit(1)
	}

	for _, res := range results {
		if err := report(ctx, res, *outDir, db); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to report run", "runID", res.ID, "policy", res.Policy, "error", err)
			os.Exit(1)
		}
	}
}

// loadReplay resolves the measured-demand series for the run window. An
// empty start pins the run to the first measured day so record timestamps
// line up with the dataset.
func loadReplay(root string, house, timestepMinutes int, start time.Time, days int) (time.Time, []float64, error) {
	opts := replay.Options{Root: root, House: house, TimestepMinutes: timestepMinutes}
	if !start.IsZero() {
		opts.Start = start
		opts.End = start.AddDate(0, 0, days)
	}
	measured, err := replay.LoadDays(opts)
	if err != nil {
		return time.Time{}, nil, err
	}
	if start.IsZero() {
		start = measured[0].Date
	}
	baseline, err := replay.Baseline(measured, start, days)
	if err != nil {
		return time.Time{}, nil, err
	}
	return start, baseline, nil
}

// report prints the run's KPIs and day-ahead verdict, writes its log files,
// and persists everything when a database is configured.
func report(ctx context.Context, res types.RunResult, outDir string, db *storage.SQLiteProvider) error {
	fmt.Printf("run %s policy=%s status=%s forecast=%s\n", res.ID, res.Policy, res.Status, res.ForecastSource)

	for _, d := range kpi.Daily(res.Records, res.Config.DTHours()) {
		fmt.Printf("  %s  clsr=%.3f blackout=%.0fmin ssr=%.2f solarUtil=%.2f throughput=%.1fkWh\n",
			d.Date, d.CLSR, d.BlackoutMinutes, d.SSR, d.SolarUtilization, d.ThroughputKWH)
	}
	k := res.KPIs
	fmt.Printf("  total clsr=%.3f blackout=%.0fmin sar=%.2f solarUtil=%.2f throughput=%.1fkWh\n",
		k.CLSR, k.BlackoutMinutes, k.SAR, k.SolarUtilization, k.BatteryThroughputKWH)

	plan, err := dayahead.Compute(res.Records, res.Appliances, res.Config)
	if err != nil {
		return fmt.Errorf("day-ahead matching failed: %w", err)
	}
	fmt.Printf("  day ahead: %s\n", plan.DailyOutlook)
	for _, s := range plan.Statements {
		fmt.Printf("    - %s\n", s)
	}

	if outDir != "" {
		dir, err := runlog.Dir(outDir, res.ID)
		if err != nil {
			return err
		}
		files, err := runlog.Write(dir, res.Policy, res.Records)
		if err != nil {
			return err
		}
		fmt.Printf("  logs: %s, %s\n", files.StateCSV, files.GuidanceJSONL)
	}

	if db != nil {
		if err := db.SaveRun(ctx, res.Summary()); err != nil {
			return err
		}
		if err := db.SaveRecords(ctx, res.ID, res.Records); err != nil {
			return err
		}
		if err := db.SavePlan(ctx, res.ID, plan); err != nil {
			return err
		}
	}
	return nil
}
