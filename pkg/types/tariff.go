package types

import (
	"bytes"
	"encoding/json"
	"math"
)

const (
	// FixedTariffRate is the flat residential rate in currency per kWh.
	FixedTariffRate = 0.4562
	// DefaultTariffRate is used when a tariff carries no usable rate.
	DefaultTariffRate = 0.35
)

// TariffKind discriminates the shapes a tariff can take.
type TariffKind int

const (
	// TariffUnset means no rate was provided.
	TariffUnset TariffKind = iota
	// TariffFlat is a single rate.
	TariffFlat
	// TariffSchedule is a list of rates that are averaged.
	TariffSchedule
)

// Tariff is either a flat rate or a schedule of rates. On the wire it accepts
// a bare number, an array of numbers or an array of {"ratePerKWh": n}.
type Tariff struct {
	Kind  TariffKind
	Rate  float64
	Rates []float64
}

// FlatTariff returns a single-rate tariff.
func FlatTariff(rate float64) Tariff {
	return Tariff{Kind: TariffFlat, Rate: rate}
}

// ScheduleTariff returns a tariff whose effective rate is the mean of rates.
func ScheduleTariff(rates ...float64) Tariff {
	return Tariff{Kind: TariffSchedule, Rates: CloneValues(rates)}
}

// Normalize returns the effective per-kWh rate.
func (t Tariff) Normalize() float64 {
	switch t.Kind {
	case TariffFlat:
		if !finite(t.Rate) {
			return DefaultTariffRate
		}
		return t.Rate
	case TariffSchedule:
		if len(t.Rates) == 0 {
			return DefaultTariffRate
		}
		var sum float64
		for _, r := range t.Rates {
			if finite(r) {
				sum += r
			}
		}
		return sum / float64(len(t.Rates))
	default:
		return DefaultTariffRate
	}
}

// Clone returns a copy that shares no memory with t.
func (t Tariff) Clone() Tariff {
	t.Rates = CloneValues(t.Rates)
	return t
}

// MarshalJSON encodes a flat tariff as a number and a schedule as an array of
// numbers.
func (t Tariff) MarshalJSON() ([]byte, error) {
	switch t.Kind {
	case TariffFlat:
		return json.Marshal(t.Rate)
	case TariffSchedule:
		if t.Rates == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(t.Rates)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts any of the supported tariff shapes. Anything else
// leaves the tariff unset rather than failing.
func (t *Tariff) UnmarshalJSON(data []byte) error {
	*t = ParseTariff(data)
	return nil
}

// ParseTariff decodes raw JSON into a Tariff. Array entries that are neither a
// number nor an object with a numeric ratePerKWh contribute 0 to the sum.
func ParseTariff(data []byte) Tariff {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Tariff{}
	}
	switch data[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil || len(raw) == 0 {
			return Tariff{}
		}
		rates := make([]float64, len(raw))
		for i, entry := range raw {
			rates[i] = rateFromEntry(entry)
		}
		return Tariff{Kind: TariffSchedule, Rates: rates}
	case '{', 'n', 't', 'f', '"':
		return Tariff{}
	default:
		var rate float64
		if err := json.Unmarshal(data, &rate); err != nil {
			return Tariff{}
		}
		return FlatTariff(rate)
	}
}

// TariffFromAny converts a decoded JSON value (as produced by encoding/json
// into an interface{}) or a Go number/slice into a Tariff.
func TariffFromAny(v any) Tariff {
	switch tv := v.(type) {
	case Tariff:
		return tv.Clone()
	case float64:
		return FlatTariff(tv)
	case int:
		return FlatTariff(float64(tv))
	case []float64:
		if len(tv) == 0 {
			return Tariff{}
		}
		return ScheduleTariff(tv...)
	case nil:
		return Tariff{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Tariff{}
	}
	return ParseTariff(b)
}

func rateFromEntry(entry json.RawMessage) float64 {
	var n float64
	if err := json.Unmarshal(entry, &n); err == nil {
		return n
	}
	var obj struct {
		RatePerKWh *float64 `json:"ratePerKWh"`
	}
	if err := json.Unmarshal(entry, &obj); err == nil && obj.RatePerKWh != nil {
		return *obj.RatePerKWh
	}
	return 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
