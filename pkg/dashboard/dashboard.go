// Package dashboard runs the user-facing operations: every change to the
// household recomputes the bill overview, and model calls are applied only
// if nothing changed while they were running.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/energiwatch/energiwatch/pkg/advisor"
	"github.com/energiwatch/energiwatch/pkg/billing"
	"github.com/energiwatch/energiwatch/pkg/chart"
	"github.com/energiwatch/energiwatch/pkg/generator"
	"github.com/energiwatch/energiwatch/pkg/log"
	"github.com/energiwatch/energiwatch/pkg/state"
	"github.com/energiwatch/energiwatch/pkg/types"
)

// ErrSuperseded is returned when a model result arrived after the household
// changed, and was thrown away.
var ErrSuperseded = errors.New("result superseded by a newer change")

// Advisor is implemented by *advisor.Gateway.
type Advisor interface {
	FetchSyntheticHouseholdData(ctx context.Context) types.HouseholdData
	FetchAdvice(ctx context.Context, in advisor.AdviceInput) string
}

// Publisher is implemented by *publisher.Publisher.
type Publisher interface {
	PublishOverview(ctx context.Context, o types.BillOverview)
}

// Snapshot is what the UI renders.
type Snapshot struct {
	State               types.AppState     `json:"state"`
	BillOverview        types.BillOverview `json:"billOverview"`
	Chart               chart.Chart        `json:"chart"`
	Recommendation      string             `json:"recommendation"`
	RecommendationStale bool               `json:"recommendationStale"`
	IsAIGenerated       bool               `json:"isAIGenerated"`
}

type Dashboard struct {
	state     *state.Manager
	advisor   Advisor
	generator *generator.Generator
	publisher Publisher

	// Each cached value carries the state generation it was computed from
	// so a slow writer can't replace a newer result.
	mu             sync.RWMutex
	overview       types.BillOverview
	overviewGen    uint64
	recommendation string
	recGen         uint64
	// demoChart is the month chart built right after demo data was applied.
	// It is only shown while the state is still at demoGen.
	demoChart *chart.Chart
	demoGen   uint64

	pubMu        sync.Mutex
	publishedGen uint64
}

// New returns a Dashboard over st. pub may be nil.
func New(ctx context.Context, st *state.Manager, adv Advisor, gen *generator.Generator, pub Publisher) *Dashboard {
	d := &Dashboard{
		state:     st,
		advisor:   adv,
		generator: gen,
		publisher: pub,
	}
	d.recompute(ctx)
	return d
}

// recompute stores the overview of the current state. If another caller
// already stored one for a newer generation, that one is kept and returned.
func (d *Dashboard) recompute(ctx context.Context) types.BillOverview {
	s, gen := d.state.SnapshotGeneration()
	o := billing.Overview(s.Appliances, types.SeriesFromValues(s.SolarData), s.TariffData, s.Budget)

	d.mu.Lock()
	if gen < d.overviewGen {
		o = d.overview
		d.mu.Unlock()
		return o
	}
	d.overview = o
	d.overviewGen = gen
	d.mu.Unlock()

	d.publish(ctx, gen, o)
	return o
}

// publish sends o unless an overview of a newer generation went out first.
func (d *Dashboard) publish(ctx context.Context, gen uint64, o types.BillOverview) {
	if d.publisher == nil {
		return
	}
	d.pubMu.Lock()
	defer d.pubMu.Unlock()
	if gen < d.publishedGen {
		return
	}
	d.publishedGen = gen
	d.publisher.PublishOverview(ctx, o)
}

// Overview returns the last computed bill overview.
func (d *Dashboard) Overview() types.BillOverview {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.overview
}

// Recommendation returns the last advice text, if any.
func (d *Dashboard) Recommendation() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.recommendation
}

// Chart builds the chart for view from the stored series. The month view
// always has 30 days, cycling shorter series.
func (d *Dashboard) Chart(view chart.View) chart.Chart {
	if view == chart.ViewMonth {
		d.mu.RLock()
		demo := d.demoChart
		demoGen := d.demoGen
		d.mu.RUnlock()
		if demo != nil && d.state.IsCurrent(demoGen) {
			c := *demo
			c.Labels = append([]string(nil), demo.Labels...)
			c.Usage = types.CloneValues(demo.Usage)
			c.Solar = types.CloneValues(demo.Solar)
			return c
		}
	}

	usage := d.state.UsageData()
	solar := d.state.SolarData()
	if len(usage) == 0 {
		usage = d.applianceUsage(view)
	}
	if view == chart.ViewMonth {
		usage = monthly(usage)
		solar = monthly(solar)
	}
	return chart.Build(usage, solar, view, d.generator)
}

// applianceUsage estimates daily usage from the appliance list when no
// usage series is stored.
func (d *Dashboard) applianceUsage(view chart.View) []float64 {
	appliances := d.state.Appliances()
	if len(appliances) == 0 {
		return nil
	}
	switch view {
	case chart.ViewWeek:
		return billing.WeeklyEnergyUsage(appliances, d.generator)
	case chart.ViewMonth:
		return billing.MonthlyEnergyUsage(appliances, d.generator)
	default:
		return nil
	}
}

func monthly(series []float64) []float64 {
	if len(series) == 0 || len(series) == types.DaysPerMonth {
		return series
	}
	return chart.CycleToMonth(series)
}

// View returns everything the UI shows for view.
func (d *Dashboard) View(ctx context.Context, view chart.View) Snapshot {
	s := d.state.Snapshot()
	d.mu.RLock()
	overview := d.overview
	rec := d.recommendation
	d.mu.RUnlock()
	return Snapshot{
		State:               s,
		BillOverview:        overview,
		Chart:               d.Chart(view),
		Recommendation:      rec,
		RecommendationStale: d.state.NeedsRegeneration(),
		IsAIGenerated:       s.IsAIGenerated,
	}
}

func (d *Dashboard) findAppliance(id string) (types.Appliance, error) {
	for _, a := range d.state.Appliances() {
		if a.ID == id {
			return a, nil
		}
	}
	return types.Appliance{}, fmt.Errorf("%w: %s", state.ErrApplianceNotFound, id)
}

// ToggleEssential flips whether appliance id is essential.
func (d *Dashboard) ToggleEssential(ctx context.Context, id string) (types.BillOverview, error) {
	a, err := d.findAppliance(id)
	if err != nil {
		return types.BillOverview{}, err
	}
	if err := d.state.SetApplianceEssential(ctx, id, !a.IsEssential); err != nil {
		return types.BillOverview{}, err
	}
	return d.recompute(ctx), nil
}

// ToggleContinuous flips whether appliance id is always on.
func (d *Dashboard) ToggleContinuous(ctx context.Context, id string) (types.BillOverview, error) {
	a, err := d.findAppliance(id)
	if err != nil {
		return types.BillOverview{}, err
	}
	if err := d.state.SetApplianceContinuous(ctx, id, !a.IsContinuouslyOn); err != nil {
		return types.BillOverview{}, err
	}
	return d.recompute(ctx), nil
}

// SetAppliances replaces the appliance list.
func (d *Dashboard) SetAppliances(ctx context.Context, appliances []types.Appliance) types.BillOverview {
	d.state.SetAppliances(ctx, appliances)
	return d.recompute(ctx)
}

// SetBudget stores the monthly target, making sure there are series to
// chart against it.
func (d *Dashboard) SetBudget(ctx context.Context, budget float64) types.BillOverview {
	d.state.SetBudget(ctx, budget)
	d.EnsureSeries(ctx)
	return d.recompute(ctx)
}

func (d *Dashboard) SetUsageMode(ctx context.Context, mode types.UsageMode) (types.BillOverview, error) {
	if err := d.state.SetUsageMode(ctx, mode); err != nil {
		return types.BillOverview{}, err
	}
	return d.recompute(ctx), nil
}

// SetTariff accepts any tariff shape but the stored rate stays fixed.
func (d *Dashboard) SetTariff(ctx context.Context, tariff any) types.BillOverview {
	d.state.SetTariffData(ctx, tariff)
	return d.recompute(ctx)
}

// EnsureSeries fills missing usage or solar series from the local generator.
func (d *Dashboard) EnsureSeries(ctx context.Context) {
	if len(d.state.UsageData()) == 0 {
		log.Ctx(ctx).DebugContext(ctx, "filling missing usage data")
		if err := d.state.SetUsageData(ctx, d.generator.Household().UsageData); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to fill usage data", slog.Any("error", err))
		}
	}
	if len(d.state.SolarData()) == 0 {
		log.Ctx(ctx).DebugContext(ctx, "filling missing solar data")
		if err := d.state.SetSolarData(ctx, d.generator.Household().SolarData); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to fill solar data", slog.Any("error", err))
		}
	}
}

// GenerateDemoData replaces the household with a synthetic one. If anything
// else changed the household first, the result is discarded and
// ErrSuperseded returned.
func (d *Dashboard) GenerateDemoData(ctx context.Context) (Snapshot, error) {
	gen := d.state.BeginRequest()
	h := d.advisor.FetchSyntheticHouseholdData(ctx)
	applied, ok := d.state.ApplyHousehold(ctx, gen, h)
	if !ok {
		log.Ctx(ctx).InfoContext(ctx, "discarding superseded demo data")
		return Snapshot{}, ErrSuperseded
	}
	log.Ctx(ctx).InfoContext(
		ctx,
		"applied demo data",
		slog.Int("appliances", len(h.Appliances)),
		slog.Bool("isAIGenerated", h.IsAIGenerated),
	)

	d.recompute(ctx)

	// built from h, not from the state, which may have moved on already
	demo := chart.Chart{
		View:       chart.ViewMonth,
		Title:      chart.Title(chart.ViewMonth),
		XAxisTitle: chart.XAxisTitle(chart.ViewMonth),
		Labels:     chart.Labels(chart.ViewMonth),
		Usage:      billing.MonthlyEnergyUsage(h.Appliances, d.generator),
		Solar:      chart.ExpandToMonth(h.SolarData, d.generator),
	}
	d.mu.Lock()
	if d.recGen < applied {
		d.recommendation = ""
	}
	if applied > d.demoGen {
		d.demoChart = &demo
		d.demoGen = applied
	}
	d.mu.Unlock()

	return d.View(ctx, chart.ViewMonth), nil
}

// Recommend asks for savings advice. Advice for a household that changed
// while it was being written is discarded with ErrSuperseded.
func (d *Dashboard) Recommend(ctx context.Context) (string, error) {
	gen := d.state.Generation()
	s := d.state.Snapshot()
	in := advisor.AdviceInput{
		Appliances:   s.Appliances,
		Budget:       s.Budget,
		SolarData:    s.SolarData,
		UsageMode:    s.UsageMode,
		BillOverview: d.Overview(),
	}
	text := d.advisor.FetchAdvice(ctx, in)
	if !d.state.MarkRegenerated(gen) {
		log.Ctx(ctx).InfoContext(ctx, "discarding superseded advice")
		return "", ErrSuperseded
	}
	d.mu.Lock()
	if gen >= d.recGen {
		d.recommendation = text
		d.recGen = gen
	}
	d.mu.Unlock()
	return text, nil
}

// Reset forgets the household.
func (d *Dashboard) Reset(ctx context.Context) types.BillOverview {
	d.state.Clear(ctx)
	d.mu.Lock()
	d.recommendation = ""
	d.recGen = d.state.Generation()
	d.mu.Unlock()
	return d.recompute(ctx)
}
