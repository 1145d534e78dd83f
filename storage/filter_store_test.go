package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/bloom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterStoreSaveLoadRoundTrip(t *testing.T) {
	store := NewFilterStore(filepath.Join(t.TempDir(), "filters", "dividendfilter"))

	filter := bloom.New(1024, 20)
	filter.AddString("AAPL|2020-01-02")
	filter.AddString("AAPL|2020-02-07")

	require.NoError(t, store.Save(filter))
	require.True(t, store.Exists())

	loaded, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, filter.Bits(), loaded.Bits())
	assert.Equal(t, filter.Hashes(), loaded.Hashes())
	assert.True(t, loaded.MayContainString("AAPL|2020-01-02"))
	assert.True(t, loaded.MayContainString("AAPL|2020-02-07"))
}

func TestFilterStoreLoadMissing(t *testing.T) {
	store := NewFilterStore(filepath.Join(t.TempDir(), "missing"))

	assert.False(t, store.Exists())
	_, err := store.Load()
	assert.Error(t, err)
}

func TestFilterStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dividendfilter")
	require.NoError(t, os.WriteFile(path, []byte("not a filter"), 0o644))

	_, err := NewFilterStore(path).Load()
	assert.Error(t, err)
}

func TestFilterStoreSaveOverwrites(t *testing.T) {
	store := NewFilterStore(filepath.Join(t.TempDir(), "dividendfilter"))

	first := bloom.New(1024, 20)
	first.AddString("AAPL|2020-01-02")
	require.NoError(t, store.Save(first))

	second := bloom.New(2048, 10)
	require.NoError(t, store.Save(second))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(2048), loaded.Bits())
	assert.Equal(t, uint32(10), loaded.Hashes())
}
