// Package runlog writes a run's step records to per-run files: a state CSV
// for offline analysis and a guidance JSONL feeding display pipelines. Both
// encodings derive from types.StepRecord, so every row carries the timestamp
// and the step index.
package runlog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sunstead/sunstead/pkg/types"
)

// Files holds the paths Write produced.
type Files struct {
	StateCSV      string `json:"stateCSV"`
	GuidanceJSONL string `json:"guidanceJSONL"`
}

// Dir returns the per-run output directory under base, creating it if
// needed.
func Dir(base, runID string) (string, error) {
	dir := filepath.Join(base, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run directory (%s): %w", dir, err)
	}
	return dir, nil
}

// Write writes prefix_state.csv and prefix_guidance.jsonl under dir. No
// records means nothing to write: no files are created and the returned
// Files is empty.
func Write(dir, prefix string, records []types.StepRecord) (Files, error) {
	if len(records) == 0 {
		return Files{}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("failed to create output directory (%s): %w", dir, err)
	}

	files := Files{
		StateCSV:      filepath.Join(dir, prefix+"_state.csv"),
		GuidanceJSONL: filepath.Join(dir, prefix+"_guidance.jsonl"),
	}
	if err := writeStateCSV(files.StateCSV, records); err != nil {
		return Files{}, err
	}
	if err := writeGuidanceJSONL(files.GuidanceJSONL, records); err != nil {
		return Files{}, err
	}
	return files, nil
}

// stateHeader is the CSV column order. Appending is fine; reordering breaks
// downstream notebooks.
var stateHeader = []string{
	"timestamp",
	"step_index",
	"ghi_wm2",
	"pv_kw",
	"soc",
	"requested_kw",
	"served_kw",
	"crit_requested_kw",
	"crit_served_kw",
	"charge_kw",
	"discharge_kw",
	"curtailed_kw",
	"unmet_kw",
	"blackout",
	"served_task_ids",
	"deferred_task_ids",
	"shed_task_ids",
	"risk",
	"reason_codes",
	"headline",
	"explanation",
	"kpi_clsr",
	"kpi_blackout_minutes",
	"kpi_sar",
	"kpi_solar_utilization",
	"kpi_battery_throughput_kwh",
}

func writeStateCSV(path string, records []types.StepRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create state log (%s): %w", path, err)
	}
	w := csv.NewWriter(f)

	if err := w.Write(stateHeader); err != nil {
		f.Close()
		return fmt.Errorf("failed to write state log header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(stateRow(r)); err != nil {
			f.Close()
			return fmt.Errorf("failed to write state log row %d: %w", r.StepIndex, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush state log (%s): %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close state log (%s): %w", path, err)
	}
	return nil
}

func stateRow(r types.StepRecord) []string {
	return []string{
		r.Timestamp.UTC().Format(time.RFC3339),
		strconv.Itoa(r.StepIndex),
		formatFloat(r.GHIWM2),
		formatFloat(r.PVKW),
		formatFloat(r.SOC),
		formatFloat(r.Requested.TotalKW()),
		formatFloat(r.Served.TotalKW()),
		formatFloat(r.Requested.CriticalKW),
		formatFloat(r.Served.CriticalKW),
		formatFloat(r.ChargeKW),
		formatFloat(r.DischargeKW),
		formatFloat(r.CurtailedKW),
		formatFloat(r.UnmetKW),
		strconv.FormatBool(r.Blackout),
		strings.Join(r.Decision.ServedTaskIDs, ";"),
		strings.Join(r.Decision.DeferredTaskIDs, ";"),
		strings.Join(r.Decision.ShedTaskIDs, ";"),
		string(r.Decision.Risk),
		joinReasons(r.Decision.ReasonCodes),
		r.Guidance.Headline,
		r.Guidance.Explanation,
		formatFloat(r.KPIs.CLSR),
		formatFloat(r.KPIs.BlackoutMinutes),
		formatFloat(r.KPIs.SAR),
		formatFloat(r.KPIs.SolarUtilization),
		formatFloat(r.KPIs.BatteryThroughputKWH),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func joinReasons(codes []types.ReasonCode) string {
	if len(codes) == 0 {
		return ""
	}
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return strings.Join(out, ";")
}

// guidanceLine is one JSONL record: the step's guidance plus its position
// in the run.
type guidanceLine struct {
	Timestamp time.Time `json:"timestamp"`
	StepIndex int       `json:"stepIndex"`
	types.Guidance
}

func writeGuidanceJSONL(path string, records []types.StepRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create guidance log (%s): %w", path, err)
	}
	enc := json.NewEncoder(f)
	for _, r := range records {
		line := guidanceLine{
			Timestamp: r.Timestamp.UTC(),
			StepIndex: r.StepIndex,
			Guidance:  r.Guidance,
		}
		if err := enc.Encode(line); err != nil {
			f.Close()
			return fmt.Errorf("failed to write guidance line %d: %w", r.StepIndex, err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close guidance log (%s): %w", path, err)
	}
	return nil
}
