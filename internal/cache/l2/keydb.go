package l2

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"fhir-gateway/internal/config"
	"fhir-gateway/internal/interfaces"
	"fhir-gateway/internal/metrics"
	"fhir-gateway/internal/models"
)

// Ensure KeyDBStore implements interfaces.Store
var _ interfaces.Store = (*KeyDBStore)(nil)

// KeyDBStore implements the L2 store using Redis/KeyDB.
// Keys carry the configured prefix and expire natively after the entry TTL.
type KeyDBStore struct {
	client interfaces.KeyDbClient
	config *config.KeyDBConfig
	logger *zap.Logger
}

// NewKeyDBStore creates a new KeyDBStore instance with provided client
func NewKeyDBStore(cfg *config.KeyDBConfig, client interfaces.KeyDbClient, logger *zap.Logger) *KeyDBStore {
	return &KeyDBStore{
		client: client,
		config: cfg,
		logger: logger,
	}
}

func (ks *KeyDBStore) key(key string) string {
	return ks.config.KeyPrefix + "cache:" + key
}

// Get retrieves the stored entry
func (ks *KeyDBStore) Get(key string) (*models.CacheEntry, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), ks.config.GetReadTimeout())
	defer cancel()

	data, err := ks.client.Get(ctx, ks.key(key)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			ks.logger.Error("L2 cache get error", zap.String("key", key), zap.Error(err))
			metrics.RecordCacheError("l2", "get")
		}
		return nil, false
	}

	var entry models.CacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		ks.logger.Error("Failed to unmarshal L2 cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l2", "decode")
		ks.Delete(key)
		return nil, false
	}

	return &entry, true
}

// Set stores the entry with its TTL as the key expiration
func (ks *KeyDBStore) Set(key string, entry *models.CacheEntry) {
	if entry.TTL <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ks.config.GetSendTimeout())
	defer cancel()

	data, err := json.Marshal(entry)
	if err != nil {
		ks.logger.Error("Failed to marshal L2 cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l2", "encode")
		return
	}

	if err := ks.client.Set(ctx, ks.key(key), data, entry.TTL).Err(); err != nil {
		ks.logger.Error("Failed to set L2 cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l2", "set")
	}
}

// Delete removes entry from KeyDB
func (ks *KeyDBStore) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), ks.config.GetSendTimeout())
	defer cancel()

	if err := ks.client.Del(ctx, ks.key(key)).Err(); err != nil {
		ks.logger.Error("Failed to delete L2 cache entry", zap.String("key", key), zap.Error(err))
	}
}

// Purge relies on KeyDB expiring keys itself and reports nothing removed
func (ks *KeyDBStore) Purge(now time.Time) int {
	return 0
}

// Clear deletes every key under the cache prefix
func (ks *KeyDBStore) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), ks.config.GetSendTimeout())
	defer cancel()

	keys, err := ks.client.Keys(ctx, ks.key("*")).Result()
	if err != nil {
		ks.logger.Error("Failed to list L2 cache keys", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := ks.client.Del(ctx, keys...).Err(); err != nil {
		ks.logger.Error("Failed to clear L2 cache", zap.Int("keys", len(keys)), zap.Error(err))
	}
}

// Len counts keys under the cache prefix
func (ks *KeyDBStore) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), ks.config.GetReadTimeout())
	defer cancel()

	keys, err := ks.client.Keys(ctx, ks.key("*")).Result()
	if err != nil {
		ks.logger.Error("Failed to list L2 cache keys", zap.Error(err))
		return 0
	}
	return len(keys)
}

// Close closes the KeyDB connection
func (ks *KeyDBStore) Close() error {
	return ks.client.Close()
}
