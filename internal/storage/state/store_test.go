package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SnapshotRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	macdAbove := true
	var snap Snapshot
	snap.Set("BTC", InstrumentState{
		LastPrice: decimal.NewFromInt(43000),
		MACDAbove: &macdAbove,
		LastFired: map[string]time.Time{"ALERT": time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)},
	})

	require.NoError(t, store.Save(snap))

	loaded := store.Load()
	st := loaded.Get("BTC")
	assert.True(t, st.LastPrice.Equal(decimal.NewFromInt(43000)))
	require.NotNil(t, st.MACDAbove)
	assert.True(t, *st.MACDAbove)
	assert.Equal(t, 12, st.LastFired["ALERT"].Hour())
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestStore_MissingSnapshotIsEmpty(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	snap := store.Load()
	assert.Empty(t, snap.Instruments)
	assert.Equal(t, InstrumentState{}, snap.Get("BTC"))
}

func TestStore_CorruptSnapshotIsEmpty(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapshot.json"), []byte("{not json"), 0o644))

	snap := store.Load()
	assert.Empty(t, snap.Instruments)
}

func TestStore_UpdateID(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, ok := store.LoadUpdateID()
	assert.False(t, ok)

	require.NoError(t, store.SaveUpdateID(123456))

	id, ok := store.LoadUpdateID()
	assert.True(t, ok)
	assert.Equal(t, 123456, id)
}

func TestStore_CorruptUpdateID(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "last_update_id.txt"), []byte("garbage"), 0o644))

	_, ok := store.LoadUpdateID()
	assert.False(t, ok)
}
