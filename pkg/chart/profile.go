package chart

import (
	"cmp"
	"math"
	"slices"

	"github.com/energiwatch/energiwatch/pkg/billing"
)

// ProfileKind selects the shape of a synthesized hourly profile.
type ProfileKind int

const (
	ProfileUsage ProfileKind = iota
	ProfileSolar
)

// SynthesizeHourlyProfile splits a daily total into 24 hourly values. Solar
// follows a bell curve peaking at 13:00 and is zero before 06:00 and after
// 19:00. Usage has randomized morning and evening peaks. Values are rounded
// to 2 decimals such that they still sum to dailyTotal (to the cent).
func SynthesizeHourlyProfile(dailyTotal float64, kind ProfileKind, rng billing.Rand) []float64 {
	out := make([]float64, 24)
	if !(dailyTotal > 0) || math.IsInf(dailyTotal, 0) {
		return out
	}

	weights := make([]float64, 24)
	var sum float64
	for h := range weights {
		if kind == ProfileSolar {
			weights[h] = solarWeight(h)
		} else {
			weights[h] = usageWeight(h, rng.Float64())
		}
		sum += weights[h]
	}
	if sum <= 0 {
		return out
	}

	factor := dailyTotal / sum
	for h, w := range weights {
		out[h] = w * factor
	}
	return roundPreservingTotal(out, dailyTotal)
}

// roundPreservingTotal rounds values to cents using the largest remainder
// method. Zero values stay zero and no value moves by more than a cent.
func roundPreservingTotal(values []float64, total float64) []float64 {
	cents := make([]float64, len(values))
	var floorSum float64
	var idx []int
	for i, v := range values {
		c := v * 100
		cents[i] = math.Floor(c)
		floorSum += cents[i]
		if v > 0 {
			idx = append(idx, i)
		}
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		ra := values[a]*100 - cents[a]
		rb := values[b]*100 - cents[b]
		return cmp.Compare(rb, ra)
	})
	remaining := int(math.Round(total*100) - floorSum)
	for k := 0; k < remaining && k < len(idx); k++ {
		cents[idx[k]]++
	}
	out := make([]float64, len(values))
	for i, c := range cents {
		out[i] = c / 100
	}
	return out
}

func solarWeight(hour int) float64 {
	if hour < 6 || hour > 19 {
		return 0
	}
	d := float64(hour - 13)
	return math.Exp(-(d*d)/18) * 2
}

func usageWeight(hour int, u float64) float64 {
	switch {
	case hour < 6:
		// night
		return 0.5 + u*0.5
	case hour < 9:
		// morning peak
		return 1.5 + u
	case hour < 16:
		return 0.8 + u*0.8
	case hour < 22:
		// evening peak
		return 1.2 + u*1.2
	default:
		return 0.7 + u*0.6
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
