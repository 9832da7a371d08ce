package types

import (
	"encoding/json"
	"fmt"
	"os"
)

// Scenario bundles the system config with its appliance catalog, the two
// inputs a run needs beyond a forecast. This is the on-disk format consumed
// by the simulate binary and the seed data for the service.
type Scenario struct {
	Config     SystemConfig `json:"config"`
	Appliances []Appliance  `json:"appliances"`
}

// ReadScenario loads, defaults and validates a scenario file.
func ReadScenario(path string) (Scenario, error) {
	var s Scenario
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read scenario file (%s): %w", path, err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse scenario file (%s): %w", path, err)
	}
	s.Config.ApplyDefaults()
	if err := s.Config.Validate(); err != nil {
		return s, fmt.Errorf("invalid config in %s: %w", path, err)
	}
	if err := ValidateCatalog(s.Appliances); err != nil {
		return s, fmt.Errorf("invalid catalog in %s: %w", path, err)
	}
	return s, nil
}
