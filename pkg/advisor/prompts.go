package advisor

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/energiwatch/energiwatch/pkg/types"
)

const householdPrompt = `Generate a JSON object describing 30 days of data for a typical middle-income Malaysian household of 3 to 5 people. It must contain:
1. "appliances": an array of 5 to 8 common household appliances. Each appliance has:
   - "id": a unique string such as "appliance1".
   - "name": a descriptive name such as "Refrigerator" or "Air Conditioner 1.5HP".
   - "powerWatts": a realistic, non-zero power draw in watts (a refrigerator is 100-200W, a 1.5HP air conditioner 1200-1500W).
   - "typicalDailyHours": average hours of use per day (a refrigerator runs 24, an air conditioner 4-8).
   - "isContinuouslyOn": true if the appliance normally runs around the clock.
   - "isEssential": true if the household could not reasonably do without it.
2. "solarData": 30 numbers, the daily solar generation in kWh of a residential rooftop system in Malaysia. Values usually sit between 4 and 10 kWh, occasionally near 0 on overcast days and up to 15 kWh on very sunny days. Vary them from day to day and do not make them all zero or identical. These are daily totals of daylight generation only.
3. "usageData": 30 numbers, the total daily household consumption in kWh, usually between 10 and 30 kWh and generally above solar generation. Vary them from day to day.
Return ONLY the JSON object, without any introduction, explanation or markdown fences, so that it can be parsed directly.`

const advicePromptHeader = `IMPORTANT: follow these Markdown formatting rules strictly:
- Use Markdown.
- Leave a blank line between every heading, section and paragraph.
- Use # for the main title, ## for subheadings, ### and #### for deeper levels.

Here is a Malaysian household's energy data and bill overview as JSON:
`

const advicePromptBody = `
Analyse the data and give detailed, actionable and easy to understand recommendations that help the household lower its electricity bill.

## Solar analysis
- Analyse solarData and its effect on the bill, including high and low production days.
- State what share of the household's energy needs solar covers.
- Quote billOverview.solarSavings and billOverview.billAfterSolar to quantify the benefit.
- Recommend when to run high-consumption appliances to make the most of solar generation.
- If generation is far below consumption, discuss expanding the system.

## General analysis
- Compare "on-demand" and "24/7" usage and name the appliances that are always on.
- Separate essential from non-essential appliances and suggest how to reduce or shift non-essential and always-on usage.
- Recommend concrete actions such as scheduling, reducing standby power or switching devices off.
- Estimate savings where possible and explain the reasoning.
- If the household is over budget, focus on reducing usage. If it is under budget, say how much headroom remains.
- Base all advice on the data provided, not on generic tips.
- Use British English spelling, RM for Malaysian Ringgit and kWh for kilowatt-hours.
- Keep the whole answer under 500 words. This is IMPORTANT.

Example layout:

# Main Title

An introduction that says how much solar saved on the bill.

## Subheading

Text under the subheading.

### Sub-subheading

Text under the sub-subheading.

Output only the advice text.`

// AdviceInput is the household context sent with an advice request.
type AdviceInput struct {
	Appliances   []types.Appliance  `json:"appliances"`
	Budget       float64            `json:"budget"`
	SolarData    []float64          `json:"solarData"`
	UsageMode    types.UsageMode    `json:"usageMode"`
	BillOverview types.BillOverview `json:"billOverview"`
}

// advicePayload is what the model sees; the tariff is always the fixed rate.
type advicePayload struct {
	AdviceInput
	TariffData float64 `json:"tariffData"`
}

func buildAdvicePrompt(in AdviceInput) (string, error) {
	if !in.UsageMode.Valid() {
		in.UsageMode = types.UsageModeOnDemand
	}
	if in.Appliances == nil {
		in.Appliances = []types.Appliance{}
	}
	b, err := json.MarshalIndent(advicePayload{AdviceInput: in, TariffData: types.FixedTariffRate}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal advice input: %w", err)
	}
	return advicePromptHeader + string(b) + "\n" + advicePromptBody, nil
}

// fallbackAdvice is shown when no model could be reached.
func fallbackAdvice(currentBill, budget float64) string {
	return fmt.Sprintf("Unable to generate AI recommendations at this time. Please try again later.\n\n"+
		"Your current bill is estimated at RM%.2f with a target of RM%s.\n"+
		"Your fixed tariff rate is 45.62 sen per kilowatt hour.",
		currentBill, strconv.FormatFloat(budget, 'f', -1, 64))
}
