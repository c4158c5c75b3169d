package main

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/energiwatch/energiwatch/pkg/billing"
	"github.com/energiwatch/energiwatch/pkg/generator"
	"github.com/energiwatch/energiwatch/pkg/log"
	"github.com/energiwatch/energiwatch/pkg/state"
	"github.com/energiwatch/energiwatch/pkg/storage"
	"github.com/energiwatch/energiwatch/pkg/types"
)

func main() {
	// never seed a real firestore project by accident
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	}
	s := storage.Configured()
	reset := lflag.Bool("reset", false, "Clear the stored household before seeding")
	hourlySolar := lflag.Bool("hourly-solar", false, "Store a 24 hour solar curve instead of 30 daily totals")
	lflag.Configure()

	ctx := context.Background()
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", slog.Any("error", err))
		}
	}()

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	gen := generator.New(rng)
	st := state.New(ctx, storage.NewStore(s))
	if *reset {
		log.Ctx(ctx).InfoContext(ctx, "clearing stored household")
		st.Clear(ctx)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeding mock household")

	h := gen.Household()
	st.SetAppliances(ctx, h.Appliances)
	st.SetTariffData(ctx, types.FixedTariffRate)
	st.SetAIGenerated(ctx, false)

	solar := h.SolarData
	if *hourlySolar {
		solar = hourlySolarCurve(rng)
	}
	if err := st.SetSolarData(ctx, solar); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed solar data", slog.Any("error", err))
		os.Exit(1)
	}
	if err := st.SetUsageData(ctx, h.UsageData); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed usage data", slog.Any("error", err))
		os.Exit(1)
	}

	snap := st.Snapshot()
	overview := billing.Overview(snap.Appliances, types.SeriesFromValues(snap.SolarData), snap.TariffData, snap.Budget)
	log.Ctx(ctx).InfoContext(
		ctx,
		"seeded household",
		slog.Int("appliances", len(snap.Appliances)),
		slog.Int("solarPoints", len(snap.SolarData)),
		slog.Float64("currentBill", overview.CurrentBill),
		slog.Float64("billAfterSolar", overview.BillAfterSolar),
	)

	for _, key := range storage.NewStore(s).Keys(ctx) {
		log.Ctx(ctx).InfoContext(ctx, "stored key", slog.String("key", key))
	}
}

// hourlySolarCurve is a bell curve peaking at 13:00 with a little jitter.
func hourlySolarCurve(rng *rand.Rand) []float64 {
	const peakKW = 4.0
	out := make([]float64, types.HoursPerDay)
	for hour := range out {
		if hour <= 6 || hour >= 19 {
			continue
		}
		dist := math.Abs(float64(hour) - 13.0)
		kw := peakKW * math.Exp(-(dist*dist)/12.0) * (0.9 + rng.Float64()*0.2)
		out[hour] = math.Round(kw*100) / 100
	}
	return out
}
