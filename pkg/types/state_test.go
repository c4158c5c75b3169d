package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateAppState(t *testing.T) {
	t.Run("v0 to v2", func(t *testing.T) {
		old := AppState{
			TariffData: ScheduleTariff(0.2, 0.3),
		}
		s, changed, err := MigrateAppState(old, 0)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, FlatTariff(FixedTariffRate), s.TariffData)
		assert.Equal(t, UsageModeOnDemand, s.UsageMode)
		assert.Equal(t, DefaultBudget, s.Budget)
		assert.Equal(t, CurrentAppStateVersion, s.Version)
	})

	t.Run("v1 keeps existing choices", func(t *testing.T) {
		old := AppState{
			UsageMode:  UsageModeContinuous,
			Budget:     250,
			TariffData: FlatTariff(FixedTariffRate),
			Version:    1,
		}
		s, changed, err := MigrateAppState(old, 1)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, UsageModeContinuous, s.UsageMode)
		assert.Equal(t, 250.0, s.Budget)
	})

	t.Run("no change: current version", func(t *testing.T) {
		current := DefaultAppState()
		s, changed, err := MigrateAppState(current, CurrentAppStateVersion)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, current, s)
	})

	t.Run("future version", func(t *testing.T) {
		_, _, err := MigrateAppState(AppState{}, CurrentAppStateVersion+1)
		assert.Error(t, err)
	})
}

func TestAppStateClone(t *testing.T) {
	s := DefaultAppState()
	s.Appliances = []Appliance{{ID: "a", Name: "Fan", PowerWatts: 60, TypicalDailyHours: 8}}
	s.SolarData = []float64{1, 2}

	c := s.Clone()
	assert.Equal(t, s, c)
	c.Appliances[0].Name = "Oven"
	c.SolarData[0] = 9
	assert.Equal(t, "Fan", s.Appliances[0].Name)
	assert.Equal(t, 1.0, s.SolarData[0])
}

func TestAppStateJSON(t *testing.T) {
	doc := `{"appliances":[{"id":"appliance1","name":"Fan","powerWatts":60,"typicalDailyHours":8,"isContinuouslyOn":false,"isEssential":true}],
		"solarData":null,"usageData":[1,2],"usageMode":"24/7","tariffData":0.4562,"isAIGenerated":true}`
	var s AppState
	require.NoError(t, json.Unmarshal([]byte(doc), &s))
	assert.Len(t, s.Appliances, 1)
	assert.True(t, s.Appliances[0].IsEssential)
	assert.Nil(t, s.SolarData)
	assert.Equal(t, UsageModeContinuous, s.UsageMode)
	assert.Equal(t, 0.4562, s.TariffData.Normalize())
	assert.Equal(t, 0, s.Version)
}

func TestApplianceDailyKWH(t *testing.T) {
	a := Appliance{PowerWatts: 1000, TypicalDailyHours: 5}
	assert.Equal(t, 5.0, a.DailyKWH())
}
