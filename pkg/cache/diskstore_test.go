package cache

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltDiskStoreRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	store, err := OpenBoltDiskStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put("grants", []byte("user:alice"), []byte(`{"name":"alice"}`)))

	v, found, err := store.Get("grants", []byte("user:alice"))
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"name":"alice"}`, string(v))

	_, found, err = store.Get("grants", []byte("user:bob"))
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Remove("grants", []byte("user:alice")))
	_, found, err = store.Get("grants", []byte("user:alice"))
	require.NoError(t, err)
	assert.False(t, found)
}

type diskValue struct {
	Name string
}

func TestCacheSurvivesEvictionViaDiskStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	store, err := OpenBoltDiskStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	c := New[string, diskValue]("persisted", Config{MaxInMemory: 1, Disk: store},
		func(k string) []byte { return []byte(k) },
		func(v diskValue) ([]byte, error) { return json.Marshal(v) },
		func(b []byte) (diskValue, error) {
			var v diskValue
			err := json.Unmarshal(b, &v)
			return v, err
		},
	)

	c.Put("a", diskValue{Name: "a"})
	c.Put("b", diskValue{Name: "b"}) // evicts "a" from memory, but persists it first

	v, ok := c.Get("a")
	require.True(t, ok, "evicted entry should be recoverable from the disk store")
	assert.Equal(t, "a", v.Name)
}
