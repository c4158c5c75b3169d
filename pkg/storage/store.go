package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/energiwatch/energiwatch/pkg/log"
	"github.com/energiwatch/energiwatch/pkg/types"
)

const (
	// AppStateKey holds the whole household document.
	AppStateKey = "energiwatch_app_state"
	// LegacySolarKey mirrors solarData for readers of the older layout.
	LegacySolarKey = "solarGenerationData"
)

// Store persists the household document on top of a Database. None of its
// methods fail: storage problems are logged and treated as missing data so
// that the dashboard keeps working from memory.
type Store struct {
	db Database
}

// NewStore wraps db.
func NewStore(db Database) *Store {
	return &Store{db: db}
}

// Load returns the stored document and true, or a zero state and false if
// nothing usable is stored.
func (s *Store) Load(ctx context.Context) (types.AppState, bool) {
	b, err := s.db.Get(ctx, AppStateKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Ctx(ctx).ErrorContext(ctx, "failed to load app state", slog.Any("error", err))
		}
		return types.AppState{}, false
	}
	var zero types.AppState
	state, ok := SafeJSONParse(b, zero)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "stored app state is corrupt, ignoring", slog.Int("bytes", len(b)))
		return types.AppState{}, false
	}
	return state, true
}

// Save writes the document and mirrors its solar data under LegacySolarKey.
func (s *Store) Save(ctx context.Context, state types.AppState) {
	b, err := json.Marshal(state)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to marshal app state", slog.Any("error", err))
		return
	}
	if err := s.db.Set(ctx, AppStateKey, b); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save app state", slog.Any("error", err))
		return
	}
	if state.SolarData != nil {
		s.SaveLegacySolar(ctx, state.SolarData)
	}
}

// SaveLegacySolar writes solar data under the legacy key.
func (s *Store) SaveLegacySolar(ctx context.Context, solar []float64) {
	b, err := json.Marshal(solar)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to marshal solar data", slog.Any("error", err))
		return
	}
	if err := s.db.Set(ctx, LegacySolarKey, b); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save solar data", slog.Any("error", err))
	}
}

// LoadLegacySolar reads solar data from the legacy key.
func (s *Store) LoadLegacySolar(ctx context.Context) ([]float64, bool) {
	b, err := s.db.Get(ctx, LegacySolarKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Ctx(ctx).ErrorContext(ctx, "failed to load solar data", slog.Any("error", err))
		}
		return nil, false
	}
	solar, ok := SafeJSONParse[[]float64](b, nil)
	if !ok || solar == nil {
		return nil, false
	}
	return solar, true
}

// Clear removes both keys.
func (s *Store) Clear(ctx context.Context) {
	for _, key := range []string{AppStateKey, LegacySolarKey} {
		if err := s.db.Delete(ctx, key); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to clear key", slog.String("key", key), slog.Any("error", err))
		}
	}
}

// Keys lists what is stored, or nil on error.
func (s *Store) Keys(ctx context.Context) []string {
	keys, err := s.db.Keys(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list keys", slog.Any("error", err))
		return nil
	}
	return keys
}

// SafeJSONParse decodes data into a T, returning def and false when data is
// empty or not valid JSON for T.
func SafeJSONParse[T any](data []byte, def T) (T, bool) {
	if len(data) == 0 {
		return def, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return def, false
	}
	return v, true
}
