package types

// Appliance is a single household device contributing to the monthly bill.
type Appliance struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	PowerWatts        float64 `json:"powerWatts"`
	TypicalDailyHours float64 `json:"typicalDailyHours"`
	IsContinuouslyOn  bool    `json:"isContinuouslyOn"`
	IsEssential       bool    `json:"isEssential"`
}

// DailyKWH is the energy the appliance uses on a typical day.
func (a Appliance) DailyKWH() float64 {
	return a.PowerWatts / 1000 * a.TypicalDailyHours
}

// CloneAppliances returns a copy of the list that shares no backing array with
// the input. A nil input stays nil.
func CloneAppliances(appliances []Appliance) []Appliance {
	if appliances == nil {
		return nil
	}
	out := make([]Appliance, len(appliances))
	copy(out, appliances)
	return out
}

// CloneValues copies a series of numbers.
func CloneValues(values []float64) []float64 {
	if values == nil {
		return nil
	}
	out := make([]float64, len(values))
	copy(out, values)
	return out
}
