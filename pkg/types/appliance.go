package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Category is a load priority class. Categories are served in strict
// precedence order: critical first, then flexible, then deferrable.
type Category string

const (
	CategoryCritical   Category = "critical"
	CategoryFlexible   Category = "flexible"
	CategoryDeferrable Category = "deferrable"
)

// Categories lists all categories in serve-precedence order.
var Categories = []Category{CategoryCritical, CategoryFlexible, CategoryDeferrable}

// Valid reports whether c names a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryCritical, CategoryFlexible, CategoryDeferrable:
		return true
	}
	return false
}

// CategoryPower holds a power value per load category, in kW.
type CategoryPower struct {
	CriticalKW   float64 `json:"criticalKW"`
	FlexibleKW   float64 `json:"flexibleKW"`
	DeferrableKW float64 `json:"deferrableKW"`
}

// TotalKW returns the sum across all categories.
func (p CategoryPower) TotalKW() float64 {
	return p.CriticalKW + p.FlexibleKW + p.DeferrableKW
}

// For returns the value for a single category.
func (p CategoryPower) For(c Category) float64 {
	switch c {
	case CategoryCritical:
		return p.CriticalKW
	case CategoryFlexible:
		return p.FlexibleKW
	case CategoryDeferrable:
		return p.DeferrableKW
	}
	return 0
}

// Add accumulates kw into the given category.
func (p *CategoryPower) Add(c Category, kw float64) {
	switch c {
	case CategoryCritical:
		p.CriticalKW += kw
	case CategoryFlexible:
		p.FlexibleKW += kw
	case CategoryDeferrable:
		p.DeferrableKW += kw
	}
}

// Window is an allowed clock-time window within one day, e.g. 09:30 to 16:00.
// End is exclusive; "24:00" means end of day. Windows may not cross midnight.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("clock time %q out of range", s)
	}
	return h*60 + m, nil
}

// Validate checks both endpoints parse and the window has positive length.
func (w Window) Validate() error {
	start, err := parseClock(w.Start)
	if err != nil {
		return fmt.Errorf("window start: %w", err)
	}
	end, err := parseClock(w.End)
	if err != nil {
		return fmt.Errorf("window end: %w", err)
	}
	if end <= start {
		return fmt.Errorf("window end (%s) must be after start (%s)", w.End, w.Start)
	}
	return nil
}

// StepRange converts the window to [earliest, latest) step indices at the
// given day resolution. Boundaries that do not land on a step edge widen
// outward so the window never excludes time the user asked for.
func (w Window) StepRange(stepsPerDay int) (int, int, error) {
	if err := w.Validate(); err != nil {
		return 0, 0, err
	}
	startMin, _ := parseClock(w.Start)
	endMin, _ := parseClock(w.End)
	stepMin := (24 * 60) / stepsPerDay
	earliest := startMin / stepMin
	latest := (endMin + stepMin - 1) / stepMin
	if latest > stepsPerDay {
		latest = stepsPerDay
	}
	return earliest, latest, nil
}

// Appliance is one catalog entry supplied by the user. Immutable during a run.
type Appliance struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	// PowerKW is the draw of a single unit; Quantity multiplies it.
	PowerKW  float64 `json:"powerKW"`
	Quantity int     `json:"quantity"`
	// DurationSteps is how many consecutive steps one activation runs for.
	DurationSteps int `json:"durationSteps"`
	// DailyQuotaSteps, for deferrable appliances, expands into that many
	// single-step must-complete tasks per day instead of one long task.
	DailyQuotaSteps int     `json:"dailyQuotaSteps"`
	Window          *Window `json:"window,omitempty"`
}

// TotalPowerKW is the combined draw of all units.
func (a Appliance) TotalPowerKW() float64 {
	q := a.Quantity
	if q < 1 {
		q = 1
	}
	return a.PowerKW * float64(q)
}

// Validate checks a single appliance entry.
func (a Appliance) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("appliance id is required")
	}
	if !a.Category.Valid() {
		return fmt.Errorf("appliance %s: unknown category %q", a.ID, a.Category)
	}
	if a.PowerKW <= 0 {
		return fmt.Errorf("appliance %s: powerKW must be positive, got %v", a.ID, a.PowerKW)
	}
	if a.Quantity < 0 {
		return fmt.Errorf("appliance %s: quantity must not be negative, got %d", a.ID, a.Quantity)
	}
	if a.DurationSteps < 0 {
		return fmt.Errorf("appliance %s: durationSteps must not be negative, got %d", a.ID, a.DurationSteps)
	}
	if a.DailyQuotaSteps < 0 {
		return fmt.Errorf("appliance %s: dailyQuotaSteps must not be negative, got %d", a.ID, a.DailyQuotaSteps)
	}
	if a.Window != nil {
		if err := a.Window.Validate(); err != nil {
			return fmt.Errorf("appliance %s: %w", a.ID, err)
		}
	}
	return nil
}

// ValidateCatalog checks every appliance and that IDs are unique.
func ValidateCatalog(appliances []Appliance) error {
	seen := make(map[string]bool, len(appliances))
	for _, a := range appliances {
		if err := a.Validate(); err != nil {
			return err
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate appliance id %q", a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}

// CatalogMax returns the per-category upper bound on requested power: every
// unit of every appliance drawing at once. Quota appliances can have all
// their daily slots pending simultaneously, so they contribute quota times
// unit power. Requested demand can never exceed this.
func CatalogMax(appliances []Appliance) CategoryPower {
	var max CategoryPower
	for _, a := range appliances {
		n := 1
		if a.Category == CategoryDeferrable && a.DailyQuotaSteps > 1 {
			n = a.DailyQuotaSteps
		}
		max.Add(a.Category, a.TotalPowerKW()*float64(n))
	}
	return max
}

// TaskInstance is a concrete per-day scheduling unit derived from an
// Appliance template. Tasks are regenerated at each simulated day boundary.
type TaskInstance struct {
	ID                string   `json:"id"`
	ApplianceID       string   `json:"applianceID"`
	Name              string   `json:"name"`
	Category          Category `json:"category"`
	PowerKW           float64  `json:"powerKW"`
	DurationSteps     int      `json:"durationSteps"`
	RemainingSteps    int      `json:"remainingSteps"`
	EarliestStartStep int      `json:"earliestStartStep"`
	LatestEndStep     int      `json:"latestEndStep"`
	MustComplete      bool     `json:"mustComplete"`
	Served            bool     `json:"served"`
}

// ActiveAt reports whether the task can draw power at the given day-step:
// inside its window and not yet fully served.
func (t TaskInstance) ActiveAt(step int) bool {
	return !t.Served && t.EarliestStartStep <= step && step < t.LatestEndStep
}

// Started reports whether a multi-step task has begun but not finished.
// Started tasks should keep running rather than stop mid-cycle.
func (t TaskInstance) Started() bool {
	return !t.Served && t.RemainingSteps > 0 && t.RemainingSteps < t.DurationSteps
}

// SlackSteps is how many steps the task could still be postponed from the
// given step and complete inside its window. Negative means it can no
// longer finish in time.
func (t TaskInstance) SlackSteps(step int) int {
	return (t.LatestEndStep - step) - t.RemainingSteps
}
