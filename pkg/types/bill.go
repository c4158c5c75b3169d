package types

// BillOverview is derived from the state on every recompute and never
// persisted.
type BillOverview struct {
	CurrentBill              float64 `json:"currentBill"`
	TargetBill               float64 `json:"targetBill"`
	PercentDiff              float64 `json:"percentDiff"`
	AbsPercentDiff           float64 `json:"absPercentDiff"`
	IsOverBudget             bool    `json:"isOverBudget"`
	BillAfterSolar           float64 `json:"billAfterSolar"`
	SolarSavings             float64 `json:"solarSavings"`
	PercentDiffAfterSolar    float64 `json:"percentDiffAfterSolar"`
	AbsPercentDiffAfterSolar float64 `json:"absPercentDiffAfterSolar"`
	IsOverBudgetAfterSolar   bool    `json:"isOverBudgetAfterSolar"`
}

// HouseholdData is a full synthetic household, either from the AI gateway or
// the local generator.
type HouseholdData struct {
	Appliances    []Appliance `json:"appliances"`
	SolarData     []float64   `json:"solarData"`
	UsageData     []float64   `json:"usageData"`
	TariffData    Tariff      `json:"tariffData"`
	IsAIGenerated bool        `json:"isAIGenerated"`
}
