package l1

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fhir-gateway/internal/config"
	"fhir-gateway/internal/models"
)

func newTestCache(t *testing.T) *BigCache {
	cfg := config.Default().BigCache
	cfg.Size = 10

	cache, err := NewBigCache(&cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestNewBigCache(t *testing.T) {
	logger := zap.NewNop()
	cfg := config.Default().BigCache

	cache, err := NewBigCache(&cfg, logger)

	assert.NoError(t, err)
	require.NotNil(t, cache)
	assert.NotNil(t, cache.cache)
	assert.Equal(t, logger, cache.logger)
	assert.NoError(t, cache.Close())
}

func TestBigCache_Set_And_Get(t *testing.T) {
	cache := newTestCache(t)

	created := time.Now().Truncate(time.Millisecond)
	cache.Set("test-key", &models.CacheEntry{
		Data:      json.RawMessage(`{"resourceType":"Bundle","total":1}`),
		CreatedAt: created,
		TTL:       time.Minute,
	})

	result, found := cache.Get("test-key")

	require.True(t, found)
	assert.JSONEq(t, `{"resourceType":"Bundle","total":1}`, string(result.Data))
	assert.True(t, created.Equal(result.CreatedAt))
	assert.Equal(t, time.Minute, result.TTL)
	assert.Equal(t, 1, cache.Len())
}

func TestBigCache_Get_NotFound(t *testing.T) {
	cache := newTestCache(t)

	result, found := cache.Get("non-existent-key")

	assert.False(t, found)
	assert.Nil(t, result)
}

func TestBigCache_Get_Corrupted(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.cache.Set("test-key", []byte("not-json")))

	result, found := cache.Get("test-key")

	assert.False(t, found)
	assert.Nil(t, result)
	assert.Equal(t, 0, cache.Len())
}

func TestBigCache_Purge(t *testing.T) {
	cache := newTestCache(t)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	cache.Set("expired", &models.CacheEntry{Data: json.RawMessage(`1`), CreatedAt: base, TTL: time.Minute})
	cache.Set("fresh", &models.CacheEntry{Data: json.RawMessage(`2`), CreatedAt: base, TTL: time.Hour})
	require.NoError(t, cache.cache.Set("corrupted", []byte("{")))

	removed := cache.Purge(base.Add(5 * time.Minute))

	assert.Equal(t, 2, removed)
	_, found := cache.Get("fresh")
	assert.True(t, found)
	_, found = cache.Get("expired")
	assert.False(t, found)
}

func TestBigCache_DeleteAndClear(t *testing.T) {
	cache := newTestCache(t)
	for i := 0; i < 3; i++ {
		cache.Set(fmt.Sprintf("k%d", i), &models.CacheEntry{Data: json.RawMessage(`{}`), CreatedAt: time.Now(), TTL: time.Minute})
	}

	cache.Delete("k0")
	_, found := cache.Get("k0")
	assert.False(t, found)
	assert.Equal(t, 2, cache.Len())

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}
