package types

import (
	"encoding/json"
	"math"
)

// Granularity describes the time resolution and span of a Series.
type Granularity string

const (
	// GranularityHourly is 24 hourly values covering one day.
	GranularityHourly Granularity = "hourly"
	// GranularityWeek is 7 daily values covering one week.
	GranularityWeek Granularity = "week"
	// GranularityMonth is 30 daily values covering one month.
	GranularityMonth Granularity = "month"
)

// Factors used to project a series total onto a 30 day month.
const (
	HourlyToMonthly  = 30.0
	WeeklyToMonthly  = 30.0 / 7.0
	MonthlyToMonthly = 1.0
)

// Standard series lengths.
const (
	HoursPerDay  = 24
	DaysPerWeek  = 7
	DaysPerMonth = 30
)

// Series is an energy series (solar generation or consumption) in kWh tagged
// with its granularity.
type Series struct {
	Granularity Granularity
	Values      []float64
}

// SeriesFromValues tags raw stored values with the granularity implied by
// their length. Lengths other than 24 or 7 are treated as a month of daily
// values.
func SeriesFromValues(values []float64) Series {
	g := GranularityMonth
	switch len(values) {
	case HoursPerDay:
		g = GranularityHourly
	case DaysPerWeek:
		g = GranularityWeek
	}
	return Series{Granularity: g, Values: CloneValues(values)}
}

// MonthlyFactor returns the multiplier that projects the series total onto a
// month.
func (s Series) MonthlyFactor() float64 {
	switch s.Granularity {
	case GranularityHourly:
		return HourlyToMonthly
	case GranularityWeek:
		return WeeklyToMonthly
	default:
		return MonthlyToMonthly
	}
}

// Total sums the series. Negative and non-finite entries count as zero.
func (s Series) Total() float64 {
	var sum float64
	for _, v := range s.Values {
		sum += SanitizeKWH(v)
	}
	return sum
}

// MonthlyTotal is Total projected onto a month.
func (s Series) MonthlyTotal() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return s.Total() * s.MonthlyFactor()
}

// MarshalJSON encodes the series as a bare array.
func (s Series) MarshalJSON() ([]byte, error) {
	if s.Values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.Values)
}

// UnmarshalJSON decodes a bare array and infers the granularity from its length.
func (s *Series) UnmarshalJSON(data []byte) error {
	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = SeriesFromValues(values)
	return nil
}

// SanitizeKWH coerces a value into a usable energy amount.
func SanitizeKWH(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
