package types

import (
	"time"
)

// MarginType classifies the day's energy balance.
type MarginType string

const (
	MarginSurplus MarginType = "surplus"
	MarginTight   MarginType = "tight"
	MarginDeficit MarginType = "deficit"
)

// AdvisoryStatus is the day-ahead verdict for one appliance.
type AdvisoryStatus string

const (
	AdvisorySafeToRun   AdvisoryStatus = "safe_to_run"
	AdvisoryRunInWindow AdvisoryStatus = "run_only_in_recommended_window"
	AdvisoryAvoidToday  AdvisoryStatus = "avoid_today"
)

// TimeWindow is a contiguous run of steps sharing a surplus or deficit flag.
// EndStep is inclusive; windows never have zero length.
type TimeWindow struct {
	StartStep int       `json:"startStep"`
	EndStep   int       `json:"endStep"`
	StartTS   time.Time `json:"startTS"`
	EndTS     time.Time `json:"endTS"`
	Label     string    `json:"label"`
}

// Steps returns the window length in steps.
func (w TimeWindow) Steps() int {
	return w.EndStep - w.StartStep + 1
}

// ApplianceAdvisory is the per-appliance outcome of day-ahead matching,
// traceable to the windows that produced it.
type ApplianceAdvisory struct {
	ApplianceID string         `json:"applianceID"`
	Name        string         `json:"name"`
	Category    Category       `json:"category"`
	Status      AdvisoryStatus `json:"status"`
	// RecommendedWindow is "HH:MM–HH:MM" when a window is being suggested.
	RecommendedWindow string `json:"recommendedWindow,omitempty"`
	Reason            string `json:"reason"`
}

// MatchingResult aggregates one day of step records into a feasibility
// verdict. It is a plain key-value structure safe to hand across boundaries.
type MatchingResult struct {
	TotalSolarKWH  float64    `json:"totalSolarKWH"`
	TotalDemandKWH float64    `json:"totalDemandKWH"`
	MarginKWH      float64    `json:"marginKWH"`
	MarginType     MarginType `json:"marginType"`
	DailyOutlook   string     `json:"dailyOutlook"`

	SurplusWindows   []TimeWindow `json:"surplusWindows"`
	DeficitWindows   []TimeWindow `json:"deficitWindows"`
	MinPowerMarginKW float64      `json:"minPowerMarginKW"`

	CriticalFullyProtected bool  `json:"criticalFullyProtected"`
	CriticalShortfallSteps []int `json:"criticalShortfallSteps,omitempty"`
	DeficitSteps           []int `json:"deficitSteps,omitempty"`

	Risk       RiskLevel           `json:"risk"`
	Advisories []ApplianceAdvisory `json:"advisories"`
	Statements []string            `json:"statements"`

	DayStartTS      time.Time `json:"dayStartTS"`
	TimestepMinutes int       `json:"timestepMinutes"`
	StepsPerDay     int       `json:"stepsPerDay"`
}
