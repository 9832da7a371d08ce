// Package sim orchestrates simulation runs: it materializes a forecast,
// steps the household model through days × stepsPerDay transitions, and
// emits the append-only record sequence plus final KPIs. One run owns all of
// its mutable state, so independent runs execute concurrently without
// locking.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sunstead/sunstead/pkg/battery"
	"github.com/sunstead/sunstead/pkg/forecast"
	"github.com/sunstead/sunstead/pkg/guidance"
	"github.com/sunstead/sunstead/pkg/kpi"
	"github.com/sunstead/sunstead/pkg/load"
	"github.com/sunstead/sunstead/pkg/log"
	"github.com/sunstead/sunstead/pkg/policy"
	"github.com/sunstead/sunstead/pkg/solar"
	"github.com/sunstead/sunstead/pkg/types"
)

// admitTolerance absorbs float error when fitting task power into the
// remaining supply.
const admitTolerance = 1e-9

// Runner executes simulation runs. The zero value runs offline on the
// synthetic profile with template guidance prose.
type Runner struct {
	forecasts *forecast.Map
	rewriter  guidance.Rewriter
}

// NewRunner returns a Runner. forecasts may be nil for offline use, in which
// case every run uses the synthetic profile; rewriter may be nil to keep
// template guidance prose.
func NewRunner(forecasts *forecast.Map, rewriter guidance.Rewriter) *Runner {
	return &Runner{forecasts: forecasts, rewriter: rewriter}
}

// Request describes one simulation run.
type Request struct {
	Scenario types.Scenario `json:"scenario"`
	// Policy names the controller; empty means policy.DefaultName.
	Policy string `json:"policy"`
	Days   int    `json:"days"`
	// Start is truncated to its UTC day so step indexes map to wall-clock
	// times; zero means the next UTC day.
	Start time.Time `json:"start"`
	// GHI optionally supplies the irradiance series directly, at any
	// resolution. When empty the forecast provider is consulted.
	GHI []float64 `json:"ghi,omitempty"`
	// ForecastProvider selects the provider when GHI is empty; empty uses
	// the configured default.
	ForecastProvider string `json:"forecastProvider,omitempty"`
	// Baseline optionally supplies a measured critical-demand series in kW,
	// one value per step. When present it replaces the catalog's critical
	// base load, so runs can replay recorded household demand.
	Baseline []float64 `json:"baseline,omitempty"`
}

// Run executes one simulation run. Configuration problems fail before any
// step executes; forecast unavailability falls back to the synthetic profile
// and completes the run with fallback provenance.
func (r *Runner) Run(ctx context.Context, req Request) (types.RunResult, error) {
	if err := validateRequest(req); err != nil {
		return failedRun(req, err), err
	}

	name := req.Policy
	if name == "" {
		name = policy.DefaultName
	}
	pol, err := policy.New(name)
	if err != nil {
		return failedRun(req, err), err
	}

	start := startFor(req)
	totalSteps := req.Days * req.Scenario.Config.StepsPerDay()
	ghi, source, status, err := r.resolveForecast(ctx, req, start, totalSteps)
	if err != nil {
		return failedRun(req, err), err
	}

	return r.runWith(ctx, req, pol, ghi, source, status, start, totalSteps)
}

func validateRequest(req Request) error {
	if err := req.Scenario.Config.Validate(); err != nil {
		return err
	}
	if err := types.ValidateCatalog(req.Scenario.Appliances); err != nil {
		return err
	}
	if req.Days < 1 {
		return fmt.Errorf("days must be at least 1, got %d", req.Days)
	}
	if n := len(req.Baseline); n > 0 {
		if want := req.Days * req.Scenario.Config.StepsPerDay(); n != want {
			return fmt.Errorf("baseline must supply one value per step: got %d, want %d", n, want)
		}
	}
	return nil
}

// startFor pins the run start to a UTC day boundary.
func startFor(req Request) time.Time {
	ts := req.Start
	if ts.IsZero() {
		ts = time.Now().UTC().AddDate(0, 0, 1)
	}
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

// resolveForecast materializes the full per-step GHI series before the loop
// starts, so no step blocks on I/O.
func (r *Runner) resolveForecast(ctx context.Context, req Request, start time.Time, totalSteps int) ([]float64, string, types.RunStatus, error) {
	cfg := req.Scenario.Config

	if len(req.GHI) > 0 {
		return forecast.Resample(req.GHI, totalSteps), types.ForecastSourceRequest, types.RunStatusCompleted, nil
	}

	if r.forecasts == nil {
		series := forecast.Synthetic{}.Series(start, totalSteps, cfg.TimestepMinutes)
		return forecast.GHIValues(series), forecast.NameSynthetic, types.RunStatusCompleted, nil
	}

	p, err := r.forecasts.Provider(req.ForecastProvider)
	if err != nil {
		return nil, "", types.RunStatusFailed, err
	}
	points, err := p.PlanningGHI(ctx, cfg.Latitude, cfg.Longitude, start.AddDate(0, 0, -1), req.Days)
	if err == nil {
		return forecast.Resample(forecast.GHIValues(points), totalSteps), p.Name(), types.RunStatusCompleted, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, "", types.RunStatusFailed, ctxErr
	}

	log.Ctx(ctx).WarnContext(
		ctx,
		"forecast fetch failed, using synthetic profile",
		slog.String("provider", p.Name()),
		slog.Any("error", err),
	)
	series := forecast.Synthetic{}.Series(start, totalSteps, cfg.TimestepMinutes)
	return forecast.GHIValues(series), types.ForecastSourceFallback, types.RunStatusCompletedFallback, nil
}

func (r *Runner) runWith(ctx context.Context, req Request, pol policy.Policy, ghi []float64, source string, status types.RunStatus, start time.Time, totalSteps int) (types.RunResult, error) {
	cfg := req.Scenario.Config
	runID := uuid.NewString()
	ctx = log.WithRun(ctx, runID, pol.Name())

	s := &run{
		cfg:        cfg,
		appliances: req.Scenario.Appliances,
		pol:        pol,
		rewriter:   r.rewriter,
		start:      start,
		ghi:        ghi,
		pv:         solar.Series(ghi, cfg),
		baseline:   req.Baseline,
		state:      types.BatteryState{SOC: cfg.SOCInit},
		records:    make([]types.StepRecord, 0, totalSteps),
	}

	log.Ctx(ctx).InfoContext(
		ctx,
		"starting run",
		slog.Int("days", req.Days),
		slog.Int("steps", totalSteps),
		slog.String("forecastSource", source),
	)

	for step := 0; step < totalSteps; step++ {
		// cancellation is checked at step boundaries only; no step blocks
		select {
		case <-ctx.Done():
			return failedRun(req, ctx.Err()), ctx.Err()
		default:
		}
		if err := s.step(ctx, step); err != nil {
			return failedRun(req, err), err
		}
	}

	kpis := s.acc.Snapshot()
	log.Ctx(ctx).InfoContext(
		ctx,
		"run complete",
		slog.Float64("clsr", kpis.CLSR),
		slog.Float64("blackoutMinutes", kpis.BlackoutMinutes),
		slog.Float64("socEnd", s.state.SOC),
	)

	return types.RunResult{
		ID:             runID,
		Policy:         pol.Name(),
		Config:         cfg,
		Appliances:     req.Scenario.Appliances,
		StartTS:        start,
		Days:           req.Days,
		ForecastSource: source,
		Status:         status,
		Records:        s.records,
		KPIs:           kpis,
	}, nil
}

func failedRun(req Request, err error) types.RunResult {
	return types.RunResult{
		ID:            uuid.NewString(),
		Policy:        req.Policy,
		Config:        req.Scenario.Config,
		Days:          req.Days,
		Status:        types.RunStatusFailed,
		FailureReason: err.Error(),
	}
}

// run is the mutable state of one simulation run, owned exclusively by its
// loop.
type run struct {
	cfg        types.SystemConfig
	appliances []types.Appliance
	pol        policy.Policy
	rewriter   guidance.Rewriter
	start      time.Time
	ghi        []float64
	pv         []float64
	baseline   []float64

	state   types.BatteryState
	tasks   []types.TaskInstance
	acc     kpi.Accumulator
	records []types.StepRecord
}

// step advances the run by one transition and appends its record.
func (s *run) step(ctx context.Context, step int) error {
	cfg := s.cfg
	dt := cfg.DTHours()
	stepsPerDay := cfg.StepsPerDay()
	dayStep := step % stepsPerDay

	// 1. tasks regenerate from the appliance templates at each day boundary
	if dayStep == 0 {
		tasks, err := load.BuildDailyTasks(s.appliances, stepsPerDay)
		if err != nil {
			return err
		}
		s.tasks = tasks
	}

	pvNow := s.pv[step]
	horizon := s.horizonAt(step)

	// 2. gather demand and let the policy plan the step. A measured baseline
	// overrides the catalog's critical base load.
	active := load.ActiveTasks(s.tasks, dayStep)
	requested := load.Requested(s.tasks, dayStep)
	if len(s.baseline) > 0 {
		requested.CriticalKW = s.baseline[step]
	}
	maxDischargeKW := battery.MaxDischargeKW(s.state, cfg.SOCMin, dt, cfg)

	decision := s.pol.Decide(cfg, policy.Input{
		Step:        dayStep,
		DTHours:     dt,
		State:       s.state,
		Requested:   requested,
		AvailableKW: pvNow + maxDischargeKW,
		PVNowKW:     pvNow,
		Tasks:       active,
		Forecast:    policy.Forecast{HorizonKW: horizon},
	})

	// 3. assemble the serve set: the policy's picks plus forced
	// continuations of started multi-step tasks, which are never
	// interrupted mid-cycle
	activeByID := make(map[string]types.TaskInstance, len(active))
	for _, t := range active {
		activeByID[t.ID] = t
	}
	picked := make(map[string]bool, len(decision.ServedTaskIDs))
	var candidates []types.TaskInstance
	for _, t := range active {
		if t.Started() {
			picked[t.ID] = true
			candidates = append(candidates, t)
		}
	}
	for _, id := range decision.ServedTaskIDs {
		t, ok := activeByID[id]
		if !ok || picked[id] {
			continue
		}
		picked[id] = true
		candidates = append(candidates, t)
	}

	// 4. admit under physical supply in strict category precedence.
	// Critical is an aggregate base load and may be partially supplied;
	// flexible and deferrable tasks run whole or not at all.
	supplyKW := pvNow + maxDischargeKW
	served := types.CategoryPower{}
	var servedIDs []string
	var loopShed []string

	critServedKW := math.Min(requested.CriticalKW, supplyKW)
	served.CriticalKW = critServedKW
	remainingKW := supplyKW - critServedKW
	for _, t := range candidates {
		if t.Category == types.CategoryCritical {
			servedIDs = append(servedIDs, t.ID)
		}
	}
	for _, c := range []types.Category{types.CategoryFlexible, types.CategoryDeferrable} {
		for _, t := range candidates {
			if t.Category != c {
				continue
			}
			if t.PowerKW <= remainingKW+admitTolerance {
				served.Add(c, t.PowerKW)
				servedIDs = append(servedIDs, t.ID)
				remainingKW -= t.PowerKW
			} else {
				loopShed = append(loopShed, t.ID)
			}
		}
	}
	blackout := critServedKW+admitTolerance < requested.CriticalKW

	// 5. run the battery from the final balance: surplus charges, shortfall
	// discharges. Charge the battery cannot take is curtailed.
	servedKW := served.TotalKW()
	net := pvNow - servedKW
	newState, unmet := battery.Update(s.state, net, dt, cfg)
	var chargeKW, dischargeKW, curtailedKW float64
	if net >= 0 {
		chargeKW = net - unmet
		curtailedKW = unmet
	} else {
		dischargeKW = -net - unmet
	}
	s.state = newState

	// 6. mark task progress for everything that drew power this step
	progressed := make(map[string]bool, len(servedIDs))
	for _, id := range servedIDs {
		progressed[id] = true
	}
	for i := range s.tasks {
		if !progressed[s.tasks[i].ID] {
			continue
		}
		if s.tasks[i].RemainingSteps > 0 {
			s.tasks[i].RemainingSteps--
		}
		if s.tasks[i].RemainingSteps == 0 {
			s.tasks[i].Served = true
		}
	}

	// 7. reconcile the recorded decision with what physically happened
	decision.ServedTaskIDs = servedIDs
	decision.DeferredTaskIDs = excludeIDs(decision.DeferredTaskIDs, progressed)
	decision.ShedTaskIDs = append(excludeIDs(decision.ShedTaskIDs, progressed), loopShed...)
	decision.ChargeKW = chargeKW
	decision.DischargeKW = dischargeKW
	if blackout {
		decision.Risk = types.RiskHigh
		if !decision.HasReason(types.ReasonCriticalShortfall) {
			decision.ReasonCodes = append(decision.ReasonCodes, types.ReasonCriticalShortfall)
		}
	}

	unmetKW := requested.CriticalKW - critServedKW
	for _, id := range decision.ShedTaskIDs {
		if t, ok := activeByID[id]; ok {
			unmetKW += t.PowerKW
		}
	}

	// 8. accumulate KPIs, derive guidance, append the record
	s.acc.Add(kpi.StepInput{
		DTHours:             dt,
		CriticalRequestedKW: requested.CriticalKW,
		CriticalServedKW:    critServedKW,
		TotalServedKW:       servedKW,
		PVKW:                pvNow,
		CurtailedKW:         curtailedKW,
		ThroughputKWH:       newState.ThroughputKWH,
	})

	next2h := int(math.Round(2.0 / dt))
	g := guidance.FromDecision(decision, map[string]float64{
		"soc":           newState.SOC,
		"pvNowKW":       pvNow,
		"pvAvgNext2hKW": policy.Forecast{HorizonKW: horizon}.AvgKW(next2h),
	})
	g = guidance.Apply(ctx, s.rewriter, g, cfg.LocationName)

	s.records = append(s.records, types.StepRecord{
		Timestamp:   s.start.Add(time.Duration(step) * cfg.StepDuration()),
		StepIndex:   step,
		GHIWM2:      s.ghi[step],
		PVKW:        pvNow,
		SOC:         newState.SOC,
		Requested:   requested,
		Served:      served,
		ChargeKW:    chargeKW,
		DischargeKW: dischargeKW,
		CurtailedKW: curtailedKW,
		UnmetKW:     unmetKW,
		Blackout:    blackout,
		Decision:    decision,
		Guidance:    g,
		KPIs:        s.acc.Snapshot(),
	})
	return nil
}

// horizonAt returns the PV outlook window starting at step, zero-padded past
// the end of the run.
func (s *run) horizonAt(step int) []float64 {
	out := make([]float64, s.cfg.HorizonSteps)
	copy(out, s.pv[step:min(len(s.pv), step+s.cfg.HorizonSteps)])
	return out
}

func excludeIDs(ids []string, drop map[string]bool) []string {
	var out []string
	for _, id := range ids {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out
}
