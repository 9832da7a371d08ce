package types

import (
	"fmt"
	"time"
)

// Defaults applied by SystemConfig.ApplyDefaults for zero-valued fields.
const (
	DefaultPVEfficiency        = 0.85
	DefaultSOCInit             = 0.7
	DefaultSOCMin              = 0.25
	DefaultSOCMax              = 0.95
	DefaultChargeEfficiency    = 0.95
	DefaultDischargeEfficiency = 0.95
	DefaultTimestepMinutes     = 15
	DefaultHorizonSteps        = 48
	DefaultReserveSOC          = 0.20
)

// SystemConfig describes one household system. It is immutable for the duration
// of a run and must be validated before any step executes.
type SystemConfig struct {
	LocationName string  `json:"locationName"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`

	// PVCapacityKW is the array's peak rating; PVEfficiency is the system
	// performance ratio applied on top of it (wiring, inverter, soiling).
	PVCapacityKW float64 `json:"pvCapacityKW"`
	PVEfficiency float64 `json:"pvEfficiency"`

	BatteryCapacityKWH float64 `json:"batteryCapacityKWH"`
	InverterMaxKW      float64 `json:"inverterMaxKW"`

	// State of charge bounds as fractions of capacity.
	SOCInit float64 `json:"socInit"`
	SOCMin  float64 `json:"socMin"`
	SOCMax  float64 `json:"socMax"`

	ChargeEfficiency    float64 `json:"chargeEfficiency"`
	DischargeEfficiency float64 `json:"dischargeEfficiency"`

	TimestepMinutes int `json:"timestepMinutes"`
	// HorizonSteps is how far ahead controllers may look into the PV forecast.
	HorizonSteps int `json:"horizonSteps"`

	// ReserveSOC is the fraction above SOCMin that reserve-aware policies
	// protect. The naive policy ignores it.
	ReserveSOC float64 `json:"reserveSOC"`
}

// ApplyDefaults fills zero-valued tunables with their defaults. Capacity fields
// are deliberately left alone: a missing capacity is a validation error, not a
// defaultable value.
func (c *SystemConfig) ApplyDefaults() {
	if c.PVEfficiency == 0 {
		c.PVEfficiency = DefaultPVEfficiency
	}
	if c.SOCInit == 0 {
		c.SOCInit = DefaultSOCInit
	}
	if c.SOCMin == 0 {
		c.SOCMin = DefaultSOCMin
	}
	if c.SOCMax == 0 {
		c.SOCMax = DefaultSOCMax
	}
	if c.ChargeEfficiency == 0 {
		c.ChargeEfficiency = DefaultChargeEfficiency
	}
	if c.DischargeEfficiency == 0 {
		c.DischargeEfficiency = DefaultDischargeEfficiency
	}
	if c.TimestepMinutes == 0 {
		c.TimestepMinutes = DefaultTimestepMinutes
	}
	if c.HorizonSteps == 0 {
		c.HorizonSteps = DefaultHorizonSteps
	}
	if c.ReserveSOC == 0 {
		c.ReserveSOC = DefaultReserveSOC
	}
}

// Validate ensures the configuration is physically coherent. It is called once
// at construction; a run never starts on an invalid config.
func (c *SystemConfig) Validate() error {
	if c.PVCapacityKW <= 0 {
		return fmt.Errorf("pvCapacityKW must be positive, got %v", c.PVCapacityKW)
	}
	if c.PVEfficiency <= 0 || c.PVEfficiency > 1 {
		return fmt.Errorf("pvEfficiency must be in (0,1], got %v", c.PVEfficiency)
	}
	if c.BatteryCapacityKWH <= 0 {
		return fmt.Errorf("batteryCapacityKWH must be positive, got %v", c.BatteryCapacityKWH)
	}
	if c.InverterMaxKW <= 0 {
		return fmt.Errorf("inverterMaxKW must be positive, got %v", c.InverterMaxKW)
	}
	if c.SOCMin < 0 || c.SOCMin > 1 || c.SOCMax < 0 || c.SOCMax > 1 {
		return fmt.Errorf("soc bounds must be within [0,1], got min=%v max=%v", c.SOCMin, c.SOCMax)
	}
	if c.SOCMin > c.SOCMax {
		return fmt.Errorf("socMin (%v) must not exceed socMax (%v)", c.SOCMin, c.SOCMax)
	}
	if c.SOCInit < c.SOCMin || c.SOCInit > c.SOCMax {
		return fmt.Errorf("socInit (%v) must be within [socMin, socMax]", c.SOCInit)
	}
	if c.ChargeEfficiency <= 0 || c.ChargeEfficiency > 1 {
		return fmt.Errorf("chargeEfficiency must be in (0,1], got %v", c.ChargeEfficiency)
	}
	if c.DischargeEfficiency <= 0 || c.DischargeEfficiency > 1 {
		return fmt.Errorf("dischargeEfficiency must be in (0,1], got %v", c.DischargeEfficiency)
	}
	if c.TimestepMinutes < 1 || c.TimestepMinutes > 60 {
		return fmt.Errorf("timestepMinutes must be within [1,60], got %d", c.TimestepMinutes)
	}
	if (24*60)%c.TimestepMinutes != 0 {
		return fmt.Errorf("timestepMinutes (%d) must divide a day evenly", c.TimestepMinutes)
	}
	if c.HorizonSteps < 1 {
		return fmt.Errorf("horizonSteps must be at least 1, got %d", c.HorizonSteps)
	}
	if c.ReserveSOC < 0 {
		return fmt.Errorf("reserveSOC must not be negative, got %v", c.ReserveSOC)
	}
	if c.SOCMin+c.ReserveSOC > c.SOCMax {
		return fmt.Errorf("socMin+reserveSOC (%v) must not exceed socMax (%v)", c.SOCMin+c.ReserveSOC, c.SOCMax)
	}
	return nil
}

// StepsPerDay returns how many simulation steps make up one day.
func (c *SystemConfig) StepsPerDay() int {
	return (24 * 60) / c.TimestepMinutes
}

// StepDuration returns the length of one simulation step.
func (c *SystemConfig) StepDuration() time.Duration {
	return time.Duration(c.TimestepMinutes) * time.Minute
}

// DTHours returns the step length in hours, the factor between kW and kWh.
func (c *SystemConfig) DTHours() float64 {
	return float64(c.TimestepMinutes) / 60.0
}
