package chart

import (
	"math"

	"github.com/energiwatch/energiwatch/pkg/billing"
	"github.com/energiwatch/energiwatch/pkg/types"
)

// Options tune Aggregate.
type Options struct {
	// IsSolar makes the day view synthesize an hourly solar curve from the
	// first daily total instead of slicing.
	IsSolar bool
}

// Aggregate shapes a stored series for a view. The result never aliases the
// input.
func Aggregate(series []float64, view View, opts Options, rng billing.Rand) []float64 {
	if len(series) == 0 {
		return []float64{}
	}
	if view == ViewDay && opts.IsSolar {
		return SynthesizeHourlyProfile(series[0], ProfileSolar, rng)
	}
	n := min(view.Len(), len(series))
	return types.CloneValues(series[:n])
}

// ExpandToMonth builds 30 daily values from a stored series of any length.
// Hourly series draw a random hour per day, weekly series repeat by weekday,
// and anything else cycles. Missing or zero values are replaced with a
// random 0.5-5.0 baseline, then every day is varied by up to 30% and
// rounded to 2 decimals.
func ExpandToMonth(series []float64, rng billing.Rand) []float64 {
	out := make([]float64, types.DaysPerMonth)
	for day := range out {
		var base float64
		switch {
		case len(series) == 0:
		case len(series) == types.HoursPerDay:
			base = series[int(rng.Float64()*types.HoursPerDay)%types.HoursPerDay]
		default:
			base = series[day%len(series)]
		}
		if base == 0 || math.IsNaN(base) || math.IsInf(base, 0) {
			base = 0.5 + rng.Float64()*4.5
		}
		variation := 0.7 + rng.Float64()*0.6
		out[day] = round2(base * variation)
	}
	return out
}

// CycleToMonth repeats series until it is 30 long, without randomness.
func CycleToMonth(series []float64) []float64 {
	if len(series) == 0 {
		return nil
	}
	out := make([]float64, types.DaysPerMonth)
	for i := range out {
		out[i] = series[i%len(series)]
	}
	return out
}
