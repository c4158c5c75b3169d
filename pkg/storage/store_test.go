package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/energiwatch/energiwatch/pkg/storage"
	"github.com/energiwatch/energiwatch/pkg/storage/storagemock"
	"github.com/energiwatch/energiwatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		s := storage.NewStore(storage.NewMemory())
		_, ok := s.Load(ctx)
		assert.False(t, ok)
		_, ok = s.LoadLegacySolar(ctx)
		assert.False(t, ok)
	})

	t.Run("save and load", func(t *testing.T) {
		db := storage.NewMemory()
		s := storage.NewStore(db)

		state := types.DefaultAppState()
		state.Appliances = []types.Appliance{{ID: "appliance1", Name: "Fan", PowerWatts: 60, TypicalDailyHours: 8}}
		state.SolarData = []float64{1.5, 2.5}
		state.UsageData = []float64{10}
		state.IsAIGenerated = true
		s.Save(ctx, state)

		got, ok := s.Load(ctx)
		require.True(t, ok)
		assert.Equal(t, state, got)

		solar, ok := s.LoadLegacySolar(ctx)
		require.True(t, ok)
		assert.Equal(t, []float64{1.5, 2.5}, solar)

		keys, err := db.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{storage.AppStateKey, storage.LegacySolarKey}, keys)
	})

	t.Run("no solar data leaves legacy key alone", func(t *testing.T) {
		db := storage.NewMemory()
		s := storage.NewStore(db)
		s.Save(ctx, types.DefaultAppState())
		assert.Equal(t, []string{storage.AppStateKey}, s.Keys(ctx))
	})

	t.Run("corrupt blob is no prior state", func(t *testing.T) {
		db := storage.NewMemory()
		require.NoError(t, db.Set(ctx, storage.AppStateKey, []byte("{not json")))
		require.NoError(t, db.Set(ctx, storage.LegacySolarKey, []byte("nope")))
		s := storage.NewStore(db)

		_, ok := s.Load(ctx)
		assert.False(t, ok)
		_, ok = s.LoadLegacySolar(ctx)
		assert.False(t, ok)
	})

	t.Run("clear", func(t *testing.T) {
		db := storage.NewMemory()
		s := storage.NewStore(db)
		state := types.DefaultAppState()
		state.SolarData = []float64{1}
		s.Save(ctx, state)
		s.Clear(ctx)
		assert.Empty(t, s.Keys(ctx))
	})
}

func TestStoreDatabaseErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	t.Run("get failure", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		db.On("Get", mock.Anything, storage.AppStateKey).Return(nil, boom)
		_, ok := storage.NewStore(db).Load(ctx)
		assert.False(t, ok)
		db.AssertExpectations(t)
	})

	t.Run("set failure skips legacy mirror", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		db.On("Set", mock.Anything, storage.AppStateKey, mock.Anything).Return(boom)
		state := types.DefaultAppState()
		state.SolarData = []float64{1}
		storage.NewStore(db).Save(ctx, state)
		db.AssertExpectations(t)
		db.AssertNotCalled(t, "Set", mock.Anything, storage.LegacySolarKey, mock.Anything)
	})

	t.Run("clear keeps going after a failure", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		db.On("Delete", mock.Anything, storage.AppStateKey).Return(boom)
		db.On("Delete", mock.Anything, storage.LegacySolarKey).Return(nil)
		storage.NewStore(db).Clear(ctx)
		db.AssertExpectations(t)
	})

	t.Run("keys failure", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		db.On("Keys", mock.Anything).Return(nil, boom)
		assert.Nil(t, storage.NewStore(db).Keys(ctx))
	})
}

func TestSafeJSONParse(t *testing.T) {
	v, ok := storage.SafeJSONParse([]byte(`[1,2]`), []float64{9})
	assert.True(t, ok)
	assert.Equal(t, []float64{1, 2}, v)

	v, ok = storage.SafeJSONParse([]byte(`{`), []float64{9})
	assert.False(t, ok)
	assert.Equal(t, []float64{9}, v)

	v, ok = storage.SafeJSONParse(nil, []float64{9})
	assert.False(t, ok)
	assert.Equal(t, []float64{9}, v)
}
