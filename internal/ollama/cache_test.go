package ollama

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResponseCache(t *testing.T) {
	newCache := func(t *testing.T, ttl time.Duration) *ResponseCache {
		cache, err := NewResponseCache(t.TempDir(), ttl, zap.NewNop())
		require.NoError(t, err)
		return cache
	}

	t.Run("round trip", func(t *testing.T) {
		cache := newCache(t, time.Hour)
		key := Fingerprint("model", "prompt", "system", 0.3, 2000, nil)

		_, ok := cache.Get(key)
		assert.False(t, ok)

		require.NoError(t, cache.Put(key, `{"result":"ok"}`))
		got, ok := cache.Get(key)
		require.True(t, ok)
		assert.Equal(t, `{"result":"ok"}`, got)
	})

	t.Run("expired entries miss", func(t *testing.T) {
		cache := newCache(t, time.Hour)
		key := Fingerprint("model", "p", "", 0.1, 100, nil)
		require.NoError(t, cache.Put(key, "value"))

		// Age the entry past the TTL by rewriting its timestamp.
		raw, err := json.Marshal(cacheEntry{
			Timestamp: time.Now().Add(-2 * time.Hour).Unix(),
			Response:  "value",
		})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(cache.path(key), raw, 0o644))

		_, ok := cache.Get(key)
		assert.False(t, ok)
	})

	t.Run("corrupt entries miss and are removed", func(t *testing.T) {
		cache := newCache(t, time.Hour)
		key := Fingerprint("m", "p", "", 0, 0, nil)
		require.NoError(t, os.WriteFile(cache.path(key), []byte("{{not json"), 0o644))

		_, ok := cache.Get(key)
		assert.False(t, ok)
		_, err := os.Stat(cache.path(key))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("clear removes everything", func(t *testing.T) {
		cache := newCache(t, time.Hour)
		require.NoError(t, cache.Put("k1", "a"))
		require.NoError(t, cache.Put("k2", "b"))

		removed, err := cache.Clear()
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		matches, _ := filepath.Glob(filepath.Join(cache.dir, "*.json"))
		assert.Empty(t, matches)
	})
}

func TestFingerprint(t *testing.T) {
	schema := map[string]interface{}{"type": "object"}

	a := Fingerprint("m", "p", "s", 0.3, 100, schema)
	b := Fingerprint("m", "p", "s", 0.3, 100, schema)
	assert.Equal(t, a, b)

	// Every request field participates in the key.
	assert.NotEqual(t, a, Fingerprint("m2", "p", "s", 0.3, 100, schema))
	assert.NotEqual(t, a, Fingerprint("m", "p2", "s", 0.3, 100, schema))
	assert.NotEqual(t, a, Fingerprint("m", "p", "s2", 0.3, 100, schema))
	assert.NotEqual(t, a, Fingerprint("m", "p", "s", 0.4, 100, schema))
	assert.NotEqual(t, a, Fingerprint("m", "p", "s", 0.3, 200, schema))
	assert.NotEqual(t, a, Fingerprint("m", "p", "s", 0.3, 100, nil))
}
