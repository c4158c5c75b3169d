package advisor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/energiwatch/energiwatch/pkg/types"
)

// flexFloat accepts a JSON number or a numeric string. Anything else decodes
// as NaN.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*f = flexFloat(n)
			return nil
		}
	}
	*f = flexFloat(math.NaN())
	return nil
}

// flexBool accepts a JSON bool or "true"/"false".
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexBool(strings.EqualFold(strings.TrimSpace(s), "true"))
	}
	return nil
}

type rawAppliance struct {
	ID                json.RawMessage `json:"id"`
	Name              string          `json:"name"`
	PowerWatts        flexFloat       `json:"powerWatts"`
	TypicalDailyHours flexFloat       `json:"typicalDailyHours"`
	IsContinuouslyOn  flexBool        `json:"isContinuouslyOn"`
	IsEssential       flexBool        `json:"isEssential"`
}

// parsedHousehold is a model's answer after unwrapping. A nil series means
// the member was absent or not an array. patched is set when any value had
// to be dropped, clamped or filled in.
type parsedHousehold struct {
	appliances []types.Appliance
	solar      []float64
	usage      []float64
	patched    bool
}

// extractJSONObject returns the text between the first '{' and the last '}'.
func extractJSONObject(text string) ([]byte, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrShape)
	}
	return []byte(text[start : end+1]), nil
}

// parseHousehold decodes a model answer. One level of wrapping is removed:
// a "household" member, or a lone member whose value looks like a household.
func parseHousehold(text string) (parsedHousehold, error) {
	raw, err := extractJSONObject(text)
	if err != nil {
		return parsedHousehold{}, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return parsedHousehold{}, fmt.Errorf("%w: %w", ErrShape, err)
	}
	obj = unwrapHousehold(obj)

	var h parsedHousehold
	var appliancesPatched, solarPatched, usagePatched bool
	h.appliances, appliancesPatched = sanitizeAppliances(obj["appliances"])
	h.solar, solarPatched = decodeSeries(obj["solarData"])
	h.usage, usagePatched = decodeSeries(obj["usageData"])
	h.patched = appliancesPatched || solarPatched || usagePatched
	return h, nil
}

func unwrapHousehold(obj map[string]json.RawMessage) map[string]json.RawMessage {
	if inner, ok := asObject(obj["household"]); ok {
		return inner
	}
	if len(obj) != 1 {
		return obj
	}
	for _, v := range obj {
		inner, ok := asObject(v)
		if !ok {
			break
		}
		if _, ok := inner["appliances"]; ok {
			return inner
		}
		if _, ok := inner["solarData"]; ok {
			return inner
		}
	}
	return obj
}

func asObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var inner map[string]json.RawMessage
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, false
	}
	return inner, true
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

// decodeSeries returns nil unless raw is an array. Entries that are not
// usable energy amounts become 0, which is reported as patched.
func decodeSeries(raw json.RawMessage) ([]float64, bool) {
	if !isArray(raw) {
		return nil, false
	}
	var values []flexFloat
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, false
	}
	out := make([]float64, len(values))
	patched := false
	for i, v := range values {
		out[i] = types.SanitizeKWH(float64(v))
		if out[i] != float64(v) {
			patched = true
		}
	}
	return out, patched
}

// sanitizeAppliances keeps appliances with a positive power draw, clamps
// hours into [0, 24] and assigns applianceN IDs where an ID is missing or
// repeated. It reports whether any of that was needed.
func sanitizeAppliances(raw json.RawMessage) ([]types.Appliance, bool) {
	if !isArray(raw) {
		return nil, false
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	patched := false
	seen := map[string]bool{}
	out := make([]types.Appliance, 0, len(entries))
	for _, entry := range entries {
		var ra rawAppliance
		if err := json.Unmarshal(entry, &ra); err != nil {
			patched = true
			continue
		}
		watts := float64(ra.PowerWatts)
		if math.IsNaN(watts) || math.IsInf(watts, 0) || watts <= 0 {
			patched = true
			continue
		}
		hours := float64(ra.TypicalDailyHours)
		if math.IsNaN(hours) || math.IsInf(hours, 0) {
			hours = 0
			patched = true
		}
		if clamped := math.Min(24, math.Max(0, hours)); clamped != hours {
			hours = clamped
			patched = true
		}

		n := len(out) + 1
		id := idString(ra.ID)
		if id == "" || seen[id] {
			patched = true
			id = fmt.Sprintf("appliance%d", n)
			for seen[id] {
				n++
				id = fmt.Sprintf("appliance%d", n)
			}
		}
		seen[id] = true

		name := strings.TrimSpace(ra.Name)
		if name == "" {
			patched = true
			name = fmt.Sprintf("Appliance %d", len(out)+1)
		}
		out = append(out, types.Appliance{
			ID:                id,
			Name:              name,
			PowerWatts:        watts,
			TypicalDailyHours: hours,
			IsContinuouslyOn:  bool(ra.IsContinuouslyOn),
			IsEssential:       bool(ra.IsEssential),
		})
	}
	return out, patched
}

// idString accepts string or numeric IDs.
func idString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
