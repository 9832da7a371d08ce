package types

import (
	"time"
)

// BatteryState is the battery's mutable state. It is owned by the simulation
// loop and only ever advanced through battery.Update.
type BatteryState struct {
	SOC           float64 `json:"soc"`
	ThroughputKWH float64 `json:"throughputKWH"`
}

// IrradiancePoint is one sample of global horizontal irradiance, immutable
// once received from a forecast provider.
type IrradiancePoint struct {
	TS     time.Time `json:"ts"`
	GHIWM2 float64   `json:"ghiWM2"`
}

// RiskLevel grades how threatened critical supply is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ReasonCode is a structured explanation token attached to decisions and
// guidance. Codes are stable identifiers consumed by downstream tooling.
type ReasonCode string

const (
	// ReasonLowSOC: state of charge is at or barely above the physical floor.
	ReasonLowSOC ReasonCode = "LOW_SOC"
	// ReasonMidSOC: state of charge is getting close to the floor.
	ReasonMidSOC ReasonCode = "MID_SOC"
	// ReasonLowPVForecast: the near-term solar outlook is weak.
	ReasonLowPVForecast ReasonCode = "LOW_PV_FORECAST"
	// ReasonPVSurplus: solar currently exceeds critical demand with margin.
	ReasonPVSurplus ReasonCode = "PV_SURPLUS"
	// ReasonDeferTasks: non-critical tasks were pushed to a later step.
	ReasonDeferTasks ReasonCode = "DEFER_TASKS"
	// ReasonCriticalShortfall: critical demand could not be fully served.
	ReasonCriticalShortfall ReasonCode = "CRITICAL_SHORTFALL"
)

// Decision is a controller policy's per-step output.
type Decision struct {
	ServedTaskIDs   []string `json:"servedTaskIDs"`
	DeferredTaskIDs []string `json:"deferredTaskIDs"`
	ShedTaskIDs     []string `json:"shedTaskIDs"`
	// ChargeKW/DischargeKW are the policy's suggested battery command; the
	// loop recomputes the feasible command from the final served load.
	ChargeKW    float64      `json:"chargeKW"`
	DischargeKW float64      `json:"dischargeKW"`
	Risk        RiskLevel    `json:"risk"`
	ReasonCodes []ReasonCode `json:"reasonCodes"`
}

// HasReason reports whether the decision carries the given code.
func (d Decision) HasReason(code ReasonCode) bool {
	for _, c := range d.ReasonCodes {
		if c == code {
			return true
		}
	}
	return false
}

// Guidance is the human-facing explanation derived from a decision's
// structured reason codes. It never feeds back into control.
type Guidance struct {
	Headline    string             `json:"headline"`
	Explanation string             `json:"explanation"`
	Risk        RiskLevel          `json:"risk"`
	Confidence  float64            `json:"confidence"`
	ReasonCodes []ReasonCode       `json:"reasonCodes"`
	Factors     map[string]float64 `json:"factors,omitempty"`
}

// KPISnapshot is a pure read of the KPI accumulator at some step.
type KPISnapshot struct {
	// CLSR is critical load service ratio: served / requested critical
	// energy to date. Defined as 1.0 while nothing critical was requested.
	CLSR float64 `json:"clsr"`
	// BlackoutMinutes counts time where critical demand went partly unserved.
	BlackoutMinutes float64 `json:"blackoutMinutes"`
	// SAR is solar autarky ratio: PV energy delivered straight to loads over
	// total served energy.
	SAR float64 `json:"sar"`
	// SolarUtilization is 1 minus the curtailed share of generation.
	SolarUtilization float64 `json:"solarUtilization"`
	// BatteryThroughputKWH accumulates absolute charge plus discharge energy.
	BatteryThroughputKWH float64 `json:"batteryThroughputKWH"`
}

// StepRecord is the immutable per-step snapshot emitted by the simulation
// loop. This struct is the canonical record schema: every encoding (JSON API,
// CSV, JSONL, Firestore, SQLite) derives from it, and a timestamp is always
// present alongside the step index.
type StepRecord struct {
	Timestamp time.Time `json:"timestamp"`
	StepIndex int       `json:"stepIndex"`

	GHIWM2 float64 `json:"ghiWM2"`
	PVKW   float64 `json:"pvKW"`
	SOC    float64 `json:"soc"`

	Requested CategoryPower `json:"requested"`
	Served    CategoryPower `json:"served"`

	ChargeKW    float64 `json:"chargeKW"`
	DischargeKW float64 `json:"dischargeKW"`
	CurtailedKW float64 `json:"curtailedKW"`
	UnmetKW     float64 `json:"unmetKW"`
	Blackout    bool    `json:"blackout"`

	Decision Decision `json:"decision"`
	Guidance Guidance `json:"guidance"`

	KPIs KPISnapshot `json:"kpis"`
}

// RunStatus distinguishes the three run outcomes consumers care about.
type RunStatus string

const (
	RunStatusCompleted         RunStatus = "completed"
	RunStatusCompletedFallback RunStatus = "completed_fallback"
	RunStatusFailed            RunStatus = "failed"
)

// Forecast provenance values beyond provider names.
const (
	// ForecastSourceRequest marks a series supplied directly with the run
	// request.
	ForecastSourceRequest = "request"
	// ForecastSourceFallback marks the deterministic placeholder profile
	// substituted after a provider failure.
	ForecastSourceFallback = "synthetic_fallback"
)

// RunResult is everything one simulation run produced.
type RunResult struct {
	ID         string       `json:"id"`
	Policy     string       `json:"policy"`
	Config     SystemConfig `json:"config"`
	Appliances []Appliance  `json:"appliances"`
	StartTS    time.Time    `json:"startTS"`
	Days       int          `json:"days"`
	// ForecastSource names the provider the PV series came from;
	// "synthetic_fallback" marks the deterministic placeholder profile.
	ForecastSource string       `json:"forecastSource"`
	Status         RunStatus    `json:"status"`
	Records        []StepRecord `json:"records"`
	KPIs           KPISnapshot  `json:"kpis"`
	FailureReason  string       `json:"failureReason,omitempty"`
}

// UsedFallbackForecast reports whether the run ran on the placeholder profile.
func (r RunResult) UsedFallbackForecast() bool {
	return r.Status == RunStatusCompletedFallback
}

// RunSummary is the record-free view of a run kept in listings and storage
// indexes.
type RunSummary struct {
	ID             string      `json:"id"`
	Policy         string      `json:"policy"`
	StartTS        time.Time   `json:"startTS"`
	Days           int         `json:"days"`
	ForecastSource string      `json:"forecastSource"`
	Status         RunStatus   `json:"status"`
	KPIs           KPISnapshot `json:"kpis"`
	CreatedTS      time.Time   `json:"createdTS"`
}

// Summary strips the records off a RunResult.
func (r RunResult) Summary() RunSummary {
	return RunSummary{
		ID:             r.ID,
		Policy:         r.Policy,
		StartTS:        r.StartTS,
		Days:           r.Days,
		ForecastSource: r.ForecastSource,
		Status:         r.Status,
		KPIs:           r.KPIs,
		CreatedTS:      time.Now().UTC(),
	}
}
