package l1

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/allegro/bigcache/v3"
	"go.uber.org/zap"

	"fhir-gateway/internal/config"
	"fhir-gateway/internal/interfaces"
	"fhir-gateway/internal/metrics"
	"fhir-gateway/internal/models"
)

// Ensure BigCache implements interfaces.Store
var _ interfaces.Store = (*BigCache)(nil)

// BigCache implements the L1 store using BigCache.
// BigCache's own life window must be at least the longest entry TTL.
type BigCache struct {
	cache  *bigcache.BigCache
	logger *zap.Logger
}

// NewBigCache creates a new BigCache instance
func NewBigCache(bigcacheCfg *config.BigCacheConfig, logger *zap.Logger) (*BigCache, error) {
	cfg := bigcache.DefaultConfig(bigcacheCfg.LifeWindow)
	cfg.HardMaxCacheSize = bigcacheCfg.Size // Size in MB
	cfg.MaxEntrySize = bigcacheCfg.MaxEntrySize
	if bigcacheCfg.Shards > 0 {
		cfg.Shards = bigcacheCfg.Shards
	}
	cfg.Verbose = false

	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	logger.Debug("Created L1 cache",
		zap.Int("size_mb", bigcacheCfg.Size),
		zap.Int("shards", cfg.Shards),
		zap.Duration("life_window", bigcacheCfg.LifeWindow))

	return &BigCache{
		cache:  cache,
		logger: logger,
	}, nil
}

// Get retrieves the stored entry
func (bc *BigCache) Get(key string) (*models.CacheEntry, bool) {
	data, err := bc.cache.Get(key)
	if err != nil {
		if !errors.Is(err, bigcache.ErrEntryNotFound) {
			bc.logger.Warn("L1 cache get error", zap.String("key", key), zap.Error(err))
			metrics.RecordCacheError("l1", "get")
		}
		return nil, false
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		bc.logger.Warn("Failed to unmarshal L1 cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l1", "decode")
		_ = bc.cache.Delete(key) // Remove corrupted entry
		return nil, false
	}

	return &entry, true
}

// Set stores the entry
func (bc *BigCache) Set(key string, entry *models.CacheEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		bc.logger.Error("Failed to marshal cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l1", "encode")
		return
	}

	if err := bc.cache.Set(key, data); err != nil {
		bc.logger.Error("Failed to set cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l1", "set")
	}
}

// Delete removes entry from cache
func (bc *BigCache) Delete(key string) {
	_ = bc.cache.Delete(key)
}

// Purge walks the cache and deletes entries expired at now.
// Keys are collected first; deleting while iterating is not safe.
func (bc *BigCache) Purge(now time.Time) int {
	var expired []string

	it := bc.cache.Iterator()
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			continue
		}
		var entry models.CacheEntry
		if err := json.Unmarshal(info.Value(), &entry); err != nil || entry.IsExpired(now) {
			expired = append(expired, info.Key())
		}
	}

	removed := 0
	for _, key := range expired {
		if err := bc.cache.Delete(key); err == nil {
			removed++
		}
	}
	return removed
}

// Clear drops every entry
func (bc *BigCache) Clear() {
	if err := bc.cache.Reset(); err != nil {
		bc.logger.Error("Failed to reset L1 cache", zap.Error(err))
	}
}

// Len returns the number of entries held by BigCache
func (bc *BigCache) Len() int {
	return bc.cache.Len()
}

// Close closes the cache
func (bc *BigCache) Close() error {
	return bc.cache.Close()
}
