// Package state holds the household document in memory and is its only
// mutator. Every write is persisted immediately.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/energiwatch/energiwatch/pkg/log"
	"github.com/energiwatch/energiwatch/pkg/storage"
	"github.com/energiwatch/energiwatch/pkg/types"
)

var (
	ErrInvalidSeries     = errors.New("series must be an array")
	ErrInvalidUsageMode  = errors.New("usage mode must be on-demand or 24/7")
	ErrApplianceNotFound = errors.New("appliance not found")
)

// Manager owns the household state. Reads return copies, so callers can
// never alias its internals, and writes replace whole values.
type Manager struct {
	store *storage.Store

	mu                sync.RWMutex
	state             types.AppState
	needsRegeneration bool
	generation        uint64
}

// New loads the state from store, or starts from defaults, and migrates it.
func New(ctx context.Context, store *storage.Store) *Manager {
	m := &Manager{store: store}

	s, ok := store.Load(ctx)
	if !ok {
		s = types.DefaultAppState()
		if solar, ok := store.LoadLegacySolar(ctx); ok {
			s.SolarData = solar
		}
		m.state = s
		return m
	}

	migrated, changed, err := types.MigrateAppState(s, s.Version)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to migrate app state, using defaults", slog.Any("error", err))
		m.state = types.DefaultAppState()
		return m
	}
	if changed {
		log.Ctx(ctx).InfoContext(
			ctx,
			"migrated app state",
			slog.Int("from", s.Version),
			slog.Int("to", migrated.Version),
		)
		store.Save(ctx, migrated)
	}
	// the tariff is pinned regardless of what was stored
	migrated.TariffData = types.FlatTariff(types.FixedTariffRate)
	if migrated.Appliances == nil {
		migrated.Appliances = []types.Appliance{}
	}
	m.state = migrated
	return m
}

// persist must be called with mu held.
func (m *Manager) persist(ctx context.Context) {
	m.store.Save(ctx, m.state)
}

// Snapshot returns a copy of the whole document.
func (m *Manager) Snapshot() types.AppState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// SnapshotGeneration returns a copy of the document together with the
// generation it belongs to.
func (m *Manager) SnapshotGeneration() (types.AppState, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone(), m.generation
}

func (m *Manager) Appliances() []types.Appliance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return types.CloneAppliances(m.state.Appliances)
}

func (m *Manager) SolarData() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return types.CloneValues(m.state.SolarData)
}

func (m *Manager) UsageData() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return types.CloneValues(m.state.UsageData)
}

// TariffData returns the effective rate.
func (m *Manager) TariffData() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.TariffData.Normalize()
}

// Tariff returns the stored tariff.
func (m *Manager) Tariff() types.Tariff {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.TariffData.Clone()
}

func (m *Manager) UsageMode() types.UsageMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.UsageMode
}

func (m *Manager) IsAIGenerated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.IsAIGenerated
}

func (m *Manager) Budget() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Budget
}

// NeedsRegeneration reports whether the recommendation is stale. It is not
// persisted.
func (m *Manager) NeedsRegeneration() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.needsRegeneration
}

// SetAppliances replaces the list and marks the recommendation stale.
func (m *Manager) SetAppliances(ctx context.Context, appliances []types.Appliance) {
	if appliances == nil {
		appliances = []types.Appliance{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Appliances = types.CloneAppliances(appliances)
	m.needsRegeneration = true
	m.generation++
	m.persist(ctx)
}

// SetSolarData replaces the solar series. A nil series is rejected.
func (m *Manager) SetSolarData(ctx context.Context, values []float64) error {
	if values == nil {
		log.Ctx(ctx).ErrorContext(ctx, "rejected solar data", slog.Any("error", ErrInvalidSeries))
		return ErrInvalidSeries
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.SolarData = types.CloneValues(values)
	m.generation++
	m.persist(ctx)
	return nil
}

// SetUsageData replaces the usage series. A nil series is rejected.
func (m *Manager) SetUsageData(ctx context.Context, values []float64) error {
	if values == nil {
		log.Ctx(ctx).ErrorContext(ctx, "rejected usage data", slog.Any("error", ErrInvalidSeries))
		return ErrInvalidSeries
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.UsageData = types.CloneValues(values)
	m.generation++
	m.persist(ctx)
	return nil
}

// SetTariffData stores the fixed rate whatever it is given. The argument is
// only logged when it disagrees.
func (m *Manager) SetTariffData(ctx context.Context, tariff any) {
	if t := types.TariffFromAny(tariff); t.Kind != types.TariffUnset && t.Normalize() != types.FixedTariffRate {
		log.Ctx(ctx).DebugContext(ctx, "ignoring requested tariff", slog.Float64("rate", t.Normalize()))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.TariffData = types.FlatTariff(types.FixedTariffRate)
	m.generation++
	m.persist(ctx)
}

func (m *Manager) SetUsageMode(ctx context.Context, mode types.UsageMode) error {
	if !mode.Valid() {
		log.Ctx(ctx).ErrorContext(ctx, "rejected usage mode", slog.String("mode", string(mode)))
		return fmt.Errorf("%w: %q", ErrInvalidUsageMode, mode)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.UsageMode = mode
	m.generation++
	m.persist(ctx)
	return nil
}

func (m *Manager) SetAIGenerated(ctx context.Context, v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.IsAIGenerated = v
	m.persist(ctx)
}

func (m *Manager) SetBudget(ctx context.Context, budget float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Budget = budget
	m.generation++
	m.persist(ctx)
}

func (m *Manager) SetNeedsRegeneration(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.needsRegeneration = v
}

// SetApplianceEssential flips one appliance's essential flag. Unlike
// SetAppliances it leaves the recommendation as is.
func (m *Manager) SetApplianceEssential(ctx context.Context, id string, essential bool) error {
	return m.updateAppliance(ctx, id, func(a *types.Appliance) { a.IsEssential = essential })
}

// SetApplianceContinuous flips one appliance's always-on flag. Unlike
// SetAppliances it leaves the recommendation as is.
func (m *Manager) SetApplianceContinuous(ctx context.Context, id string, continuous bool) error {
	return m.updateAppliance(ctx, id, func(a *types.Appliance) { a.IsContinuouslyOn = continuous })
}

func (m *Manager) updateAppliance(ctx context.Context, id string, fn func(*types.Appliance)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := -1
	for i, a := range m.state.Appliances {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrApplianceNotFound, id)
	}
	appliances := types.CloneAppliances(m.state.Appliances)
	fn(&appliances[idx])
	m.state.Appliances = appliances
	m.generation++
	m.persist(ctx)
	return nil
}

// ApplyHousehold replaces appliances, series, tariff and the AI flag in one
// write, but only if gen is still current. It returns the generation of the
// applied household and whether it applied.
func (m *Manager) ApplyHousehold(ctx context.Context, gen uint64, h types.HouseholdData) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return 0, false
	}
	appliances := types.CloneAppliances(h.Appliances)
	if appliances == nil {
		appliances = []types.Appliance{}
	}
	m.state.Appliances = appliances
	if h.SolarData != nil {
		m.state.SolarData = types.CloneValues(h.SolarData)
	}
	if h.UsageData != nil {
		m.state.UsageData = types.CloneValues(h.UsageData)
	}
	m.state.TariffData = types.FlatTariff(types.FixedTariffRate)
	m.state.IsAIGenerated = h.IsAIGenerated
	m.needsRegeneration = true
	m.generation++
	m.persist(ctx)
	return m.generation, true
}

// Clear forgets everything, in memory and in the store.
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = types.DefaultAppState()
	m.needsRegeneration = false
	m.generation++
	m.store.Clear(ctx)
}

// BeginRequest starts an async operation and returns its generation.
func (m *Manager) BeginRequest() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	return m.generation
}

// Generation returns the current generation without starting a request.
func (m *Manager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// MarkRegenerated clears NeedsRegeneration if gen is still current.
func (m *Manager) MarkRegenerated(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return false
	}
	m.needsRegeneration = false
	return true
}

// IsCurrent reports whether no mutation or newer request has happened since
// gen was handed out.
func (m *Manager) IsCurrent(gen uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return gen == m.generation
}
