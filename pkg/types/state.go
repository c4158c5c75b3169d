package types

import "fmt"

// UsageMode is how the household runs its appliances.
type UsageMode string

const (
	UsageModeOnDemand   UsageMode = "on-demand"
	UsageModeContinuous UsageMode = "24/7"
)

// Valid reports whether m is a known usage mode.
func (m UsageMode) Valid() bool {
	return m == UsageModeOnDemand || m == UsageModeContinuous
}

// DefaultBudget is the monthly bill target used until the user sets one.
const DefaultBudget = 100.0

// CurrentAppStateVersion is bumped whenever MigrateAppState learns a new step.
const CurrentAppStateVersion = 2

// AppState is the persisted household document.
type AppState struct {
	Appliances    []Appliance `json:"appliances"`
	SolarData     []float64   `json:"solarData"`
	UsageData     []float64   `json:"usageData"`
	UsageMode     UsageMode   `json:"usageMode"`
	TariffData    Tariff      `json:"tariffData"`
	IsAIGenerated bool        `json:"isAIGenerated"`
	Budget        float64     `json:"budget"`
	Version       int         `json:"version"`
}

// DefaultAppState is the state of a household that has never been saved.
func DefaultAppState() AppState {
	return AppState{
		Appliances: []Appliance{},
		UsageMode:  UsageModeOnDemand,
		TariffData: FlatTariff(FixedTariffRate),
		Budget:     DefaultBudget,
		Version:    CurrentAppStateVersion,
	}
}

// Clone returns a deep copy.
func (s AppState) Clone() AppState {
	s.Appliances = CloneAppliances(s.Appliances)
	s.SolarData = CloneValues(s.SolarData)
	s.UsageData = CloneValues(s.UsageData)
	s.TariffData = s.TariffData.Clone()
	return s
}

// MigrateAppState upgrades a document stored at currentVersion to
// CurrentAppStateVersion. It returns whether anything changed.
func MigrateAppState(s AppState, currentVersion int) (AppState, bool, error) {
	if currentVersion > CurrentAppStateVersion {
		return s, false, fmt.Errorf("app state version %d is newer than supported %d", currentVersion, CurrentAppStateVersion)
	}
	if currentVersion == CurrentAppStateVersion {
		return s, false, nil
	}

	migrated := false
	for version := currentVersion + 1; version <= CurrentAppStateVersion; version++ {
		switch version {
		case 1:
			// version 1: the tariff is a single fixed rate
			if s.TariffData.Kind != TariffFlat || s.TariffData.Rate != FixedTariffRate {
				s.TariffData = FlatTariff(FixedTariffRate)
				migrated = true
			}
		case 2:
			// version 2: usage mode and budget
			if !s.UsageMode.Valid() {
				s.UsageMode = UsageModeOnDemand
				migrated = true
			}
			if s.Budget <= 0 {
				s.Budget = DefaultBudget
				migrated = true
			}
		}
	}
	if s.Version != CurrentAppStateVersion {
		s.Version = CurrentAppStateVersion
		migrated = true
	}
	return s, migrated, nil
}
