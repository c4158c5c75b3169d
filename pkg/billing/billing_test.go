package billing

import (
	"math/rand/v2"
	"testing"

	"github.com/energiwatch/energiwatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func constSeries(n int, v float64) types.Series {
	values := make([]float64, n)
	for i := range values {
		values[i] = v
	}
	return types.SeriesFromValues(values)
}

func TestEstimateMonthlyBill(t *testing.T) {
	t.Run("empty appliances", func(t *testing.T) {
		assert.Equal(t, 0.0, EstimateMonthlyBill(nil, constSeries(30, 5), types.FlatTariff(types.FixedTariffRate)))
		assert.Equal(t, 0.0, EstimateMonthlyBill([]types.Appliance{}, types.Series{}, types.Tariff{}))
	})

	t.Run("single appliance at fixed rate", func(t *testing.T) {
		appliances := []types.Appliance{{ID: "a", PowerWatts: 1000, TypicalDailyHours: 5}}
		bill := EstimateMonthlyBill(appliances, types.Series{}, types.FlatTariff(types.FixedTariffRate))
		assert.InDelta(t, 68.43, bill, 1e-9)
	})

	t.Run("solar does not reduce the bill", func(t *testing.T) {
		appliances := []types.Appliance{{ID: "a", PowerWatts: 1000, TypicalDailyHours: 5}}
		withSolar := EstimateMonthlyBill(appliances, constSeries(30, 20), types.FlatTariff(types.FixedTariffRate))
		assert.InDelta(t, 68.43, withSolar, 1e-9)
	})

	t.Run("schedule of objects", func(t *testing.T) {
		appliances := []types.Appliance{{ID: "a", PowerWatts: 2000, TypicalDailyHours: 1}}
		tariff := types.ParseTariff([]byte(`[{"ratePerKWh":0.3},{"ratePerKWh":0.5}]`))
		assert.InDelta(t, 60*0.4, EstimateMonthlyBill(appliances, types.Series{}, tariff), 1e-9)
	})

	t.Run("unset tariff uses default", func(t *testing.T) {
		appliances := []types.Appliance{{ID: "a", PowerWatts: 1000, TypicalDailyHours: 1}}
		assert.InDelta(t, 30*types.DefaultTariffRate, EstimateMonthlyBill(appliances, types.Series{}, types.Tariff{}), 1e-9)
	})
}

func TestEnergyUsage(t *testing.T) {
	appliances := []types.Appliance{
		{ID: "a", PowerWatts: 1000, TypicalDailyHours: 5},
		{ID: "b", PowerWatts: 100, TypicalDailyHours: 24},
	}
	assert.InDelta(t, 150+72, EnergyUsage(appliances), 1e-9)
}

func TestOverview(t *testing.T) {
	appliances := []types.Appliance{{ID: "a", PowerWatts: 1000, TypicalDailyHours: 5}}
	tariff := types.FlatTariff(types.FixedTariffRate)

	t.Run("over budget", func(t *testing.T) {
		o := Overview(appliances, types.Series{}, tariff, 50)
		assert.InDelta(t, 68.43, o.CurrentBill, 1e-9)
		assert.Equal(t, 50.0, o.TargetBill)
		assert.InDelta(t, 36.86, o.PercentDiff, 1e-9)
		assert.Equal(t, 37.0, o.AbsPercentDiff)
		assert.True(t, o.IsOverBudget)
		assert.Equal(t, 0.0, o.SolarSavings)
		assert.InDelta(t, 68.43, o.BillAfterSolar, 1e-9)
		assert.True(t, o.IsOverBudgetAfterSolar)
	})

	t.Run("solar brings it under budget", func(t *testing.T) {
		// 2 kWh a day for a month at the fixed rate is 27.372
		o := Overview(appliances, constSeries(30, 2), tariff, 50)
		assert.InDelta(t, 27.372, o.SolarSavings, 1e-9)
		assert.InDelta(t, 68.43-27.372, o.BillAfterSolar, 1e-9)
		assert.False(t, o.IsOverBudgetAfterSolar)
		assert.Equal(t, 18.0, o.AbsPercentDiffAfterSolar)
		assert.Less(t, o.PercentDiffAfterSolar, 0.0)
	})

	t.Run("bill after solar never negative", func(t *testing.T) {
		o := Overview(appliances, constSeries(30, 100), tariff, 50)
		assert.Equal(t, 0.0, o.BillAfterSolar)
		assert.InDelta(t, -100, o.PercentDiffAfterSolar, 1e-9)
	})

	t.Run("zero budget", func(t *testing.T) {
		o := Overview(appliances, types.Series{}, tariff, 0)
		assert.Equal(t, 0.0, o.PercentDiff)
		assert.Equal(t, 0.0, o.AbsPercentDiff)
		assert.True(t, o.IsOverBudget)
	})

	t.Run("zero rate falls back for solar offset", func(t *testing.T) {
		o := Overview(appliances, constSeries(30, 1), types.FlatTariff(0), 50)
		assert.Equal(t, 0.0, o.CurrentBill)
		assert.InDelta(t, 30*types.FixedTariffRate, o.SolarSavings, 1e-9)
	})

	t.Run("solar granularity does not change the result", func(t *testing.T) {
		hourly := Overview(appliances, constSeries(24, 0.25), tariff, 50)
		weekly := Overview(appliances, constSeries(7, 6), tariff, 50)
		monthly := Overview(appliances, constSeries(30, 6), tariff, 50)
		assert.InDelta(t, monthly.BillAfterSolar, hourly.BillAfterSolar, 1e-9)
		assert.InDelta(t, monthly.BillAfterSolar, weekly.BillAfterSolar, 1e-9)
	})
}

func TestMonthlyEnergyUsage(t *testing.T) {
	appliances := []types.Appliance{
		{ID: "a", PowerWatts: 1500, TypicalDailyHours: 8},
		{ID: "b", PowerWatts: 120, TypicalDailyHours: 24},
		{ID: "c", PowerWatts: 60, TypicalDailyHours: 0.5},
	}
	usage := MonthlyEnergyUsage(appliances, testRand())
	assert.Len(t, usage, 30)

	var sum float64
	for _, v := range usage {
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	expected := EnergyUsage(appliances)
	assert.InEpsilon(t, expected, sum, 0.005)

	for _, a := range appliances {
		t.Run(a.ID, func(t *testing.T) {
			usage := MonthlyEnergyUsage([]types.Appliance{a}, testRand())
			require.Len(t, usage, 30)

			var sum float64
			for _, v := range usage {
				assert.GreaterOrEqual(t, v, 0.0)
				sum += v
			}
			assert.InEpsilon(t, a.DailyKWH()*30, sum, 0.005)
		})
	}

	t.Run("no appliances", func(t *testing.T) {
		usage := MonthlyEnergyUsage(nil, testRand())
		assert.Equal(t, make([]float64, 30), usage)
	})
}

func TestWeeklyEnergyUsage(t *testing.T) {
	appliances := []types.Appliance{{ID: "a", PowerWatts: 1000, TypicalDailyHours: 2}}
	usage := WeeklyEnergyUsage(appliances, testRand())
	assert.Len(t, usage, 7)
	var sum float64
	for _, v := range usage {
		sum += v
	}
	assert.InDelta(t, 14.0, sum, 1e-9)
}
