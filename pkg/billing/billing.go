// Package billing turns appliance profiles, solar generation and a tariff
// into monthly energy, cost and budget figures.
package billing

import (
	"math"

	"github.com/energiwatch/energiwatch/pkg/types"
)

// Rand is the randomness source used for distributing usage across days.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// EnergyUsage is the total monthly kWh of all appliances.
func EnergyUsage(appliances []types.Appliance) float64 {
	var total float64
	for _, a := range appliances {
		total += a.DailyKWH() * types.DaysPerMonth
	}
	return total
}

// EstimateMonthlyBill prices the monthly appliance usage at the tariff's
// effective rate. Solar generation does not reduce this figure; Overview
// reports the offset separately.
func EstimateMonthlyBill(appliances []types.Appliance, solar types.Series, tariff types.Tariff) float64 {
	if len(appliances) == 0 {
		return 0
	}
	return EnergyUsage(appliances) * tariff.Normalize()
}

// MonthlySolarKWh projects a solar series onto a month.
func MonthlySolarKWh(solar types.Series) float64 {
	return solar.MonthlyTotal()
}

// Overview computes the bill against the budget, before and after the solar
// offset.
func Overview(appliances []types.Appliance, solar types.Series, tariff types.Tariff, budget float64) types.BillOverview {
	current := EstimateMonthlyBill(appliances, solar, tariff)
	o := types.BillOverview{
		CurrentBill: current,
		TargetBill:  budget,
	}
	o.PercentDiff = percentDiff(current, budget)
	o.AbsPercentDiff = math.Round(math.Abs(o.PercentDiff))
	o.IsOverBudget = current > budget

	// a zero rate would hide the solar offset entirely
	rate := tariff.Normalize()
	if rate == 0 || math.IsNaN(rate) {
		rate = types.FixedTariffRate
	}
	o.SolarSavings = MonthlySolarKWh(solar) * rate
	o.BillAfterSolar = math.Max(0, current-o.SolarSavings)
	o.PercentDiffAfterSolar = percentDiff(o.BillAfterSolar, budget)
	o.AbsPercentDiffAfterSolar = math.Round(math.Abs(o.PercentDiffAfterSolar))
	o.IsOverBudgetAfterSolar = o.BillAfterSolar > budget
	return o
}

func percentDiff(bill, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return (bill - target) / target * 100
}

// MonthlyEnergyUsage spreads each appliance's monthly kWh across 30 days
// using random weights. The days sum to EnergyUsage.
func MonthlyEnergyUsage(appliances []types.Appliance, rng Rand) []float64 {
	return distribute(appliances, types.DaysPerMonth, rng)
}

// WeeklyEnergyUsage spreads each appliance's weekly kWh across 7 days.
func WeeklyEnergyUsage(appliances []types.Appliance, rng Rand) []float64 {
	return distribute(appliances, types.DaysPerWeek, rng)
}

func distribute(appliances []types.Appliance, days int, rng Rand) []float64 {
	usage := make([]float64, days)
	weights := make([]float64, days)
	for _, a := range appliances {
		total := a.DailyKWH() * float64(days)
		var sum float64
		for i := range weights {
			weights[i] = rng.Float64()
			sum += weights[i]
		}
		for i, w := range weights {
			if sum > 0 {
				usage[i] += total * w / sum
			} else {
				usage[i] += total / float64(days)
			}
		}
	}
	return usage
}
