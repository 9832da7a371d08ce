package types

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"config": {
			"locationName": "Test Site",
			"latitude": 0.1,
			"longitude": 36.9,
			"pvCapacityKW": 3,
			"batteryCapacityKWH": 5,
			"inverterMaxKW": 2.5
		},
		"appliances": [
			{"id": "fridge", "name": "Fridge", "category": "critical", "powerKW": 0.15},
			{"id": "washer", "name": "Washer", "category": "flexible", "powerKW": 0.5,
				"durationSteps": 4, "window": {"start": "09:00", "end": "17:00"}}
		]
	}`), 0o600))

	s, err := ReadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "Test Site", s.Config.LocationName)
	assert.InDelta(t, DefaultPVEfficiency, s.Config.PVEfficiency, 1e-9, "defaults applied")
	assert.InDelta(t, DefaultSOCInit, s.Config.SOCInit, 1e-9)
	assert.Equal(t, DefaultTimestepMinutes, s.Config.TimestepMinutes)
	require.Len(t, s.Appliances, 2)
	assert.Equal(t, CategoryFlexible, s.Appliances[1].Category)
}

func TestReadScenarioMissingFile(t *testing.T) {
	_, err := ReadScenario(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestReadScenarioInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"config": {"pvCapacityKW": -3, "batteryCapacityKWH": 5, "inverterMaxKW": 2.5},
		"appliances": []
	}`), 0o600))

	_, err := ReadScenario(path)
	require.Error(t, err)
}

func TestReadScenarioDuplicateAppliance(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"config": {"pvCapacityKW": 3, "batteryCapacityKWH": 5, "inverterMaxKW": 2.5},
		"appliances": [
			{"id": "fridge", "name": "A", "category": "critical", "powerKW": 0.15},
			{"id": "fridge", "name": "B", "category": "critical", "powerKW": 0.1}
		]
	}`), 0o600))

	_, err := ReadScenario(path)
	require.Error(t, err)
}
