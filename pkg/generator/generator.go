// Package generator produces plausible household data without calling out to
// a model.
package generator

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/energiwatch/energiwatch/pkg/billing"
	"github.com/energiwatch/energiwatch/pkg/types"
)

var applianceNames = []string{
	"Refrigerator",
	"Air Conditioner",
	"TV",
	"Washing Machine",
	"Microwave",
	"Fan",
	"Lights",
	"Water Heater",
	"Laptop",
	"Oven",
}

// Generator makes random households. The solar and usage series are drawn
// once and returned on every later call so repeated fallbacks stay
// consistent. It is safe for concurrent use.
type Generator struct {
	mu    sync.Mutex
	rng   billing.Rand
	solar []float64
	usage []float64
}

// New returns a Generator drawing from rng. A nil rng is seeded from the
// clock.
func New(rng billing.Rand) *Generator {
	if rng == nil {
		now := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(now, now>>17))
	}
	return &Generator{rng: rng}
}

// Float64 draws from the generator's source under its lock, so the
// Generator itself can be shared as a billing.Rand.
func (g *Generator) Float64() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64()
}

// Household returns 5-8 fresh appliances with the memoized series.
func (g *Generator) Household() types.HouseholdData {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.solar) != types.DaysPerMonth {
		g.solar = g.randomSeries(0.5, 7.5)
	}
	if len(g.usage) != types.DaysPerMonth {
		g.usage = g.randomSeries(8, 17)
	}
	return types.HouseholdData{
		Appliances:    g.appliances(),
		SolarData:     types.CloneValues(g.solar),
		UsageData:     types.CloneValues(g.usage),
		TariffData:    types.FlatTariff(types.FixedTariffRate),
		IsAIGenerated: false,
	}
}

// Appliances returns 5-8 fresh random appliances.
func (g *Generator) Appliances() []types.Appliance {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.appliances()
}

// RandomSolarSeries returns 30 new daily solar values in [0.5, 8.0).
func (g *Generator) RandomSolarSeries() []float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.randomSeries(0.5, 7.5)
}

// RandomUsageSeries returns 30 new daily usage values in [8, 25).
func (g *Generator) RandomUsageSeries() []float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.randomSeries(8, 17)
}

func (g *Generator) appliances() []types.Appliance {
	n := int(g.rng.Float64()*4) + 5
	out := make([]types.Appliance, n)
	for i := range out {
		out[i] = types.Appliance{
			ID:                fmt.Sprintf("appliance%d", i+1),
			Name:              applianceNames[int(g.rng.Float64()*float64(len(applianceNames)))],
			PowerWatts:        math.Floor(g.rng.Float64()*1800) + 50,
			TypicalDailyHours: math.Round((g.rng.Float64()*12+1)*10) / 10,
			IsContinuouslyOn:  g.rng.Float64() < 0.3,
			IsEssential:       g.rng.Float64() < 0.5,
		}
	}
	return out
}

func (g *Generator) randomSeries(base, spread float64) []float64 {
	out := make([]float64, types.DaysPerMonth)
	for i := range out {
		out[i] = math.Round((g.rng.Float64()*spread+base)*100) / 100
	}
	return out
}
