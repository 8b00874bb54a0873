package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"fhir-gateway/internal/interfaces"
)

// Ensure KeyDBKV implements interfaces.KeyValue
var _ interfaces.KeyValue = (*KeyDBKV)(nil)

// KeyDBKV stores session values in KeyDB without expiration
type KeyDBKV struct {
	client  interfaces.KeyDbClient
	prefix  string
	timeout time.Duration
}

// NewKeyDBKV creates a KeyDB backed key-value store. Keys are stored as prefix+"session:"+key.
func NewKeyDBKV(client interfaces.KeyDbClient, prefix string, timeout time.Duration) *KeyDBKV {
	return &KeyDBKV{
		client:  client,
		prefix:  prefix + "session:",
		timeout: timeout,
	}
}

// Get returns the stored bytes, or false when the key does not exist
func (k *KeyDBKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	data, err := k.client.Get(ctx, k.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s from KeyDB: %w", key, err)
	}
	return data, true, nil
}

// Put replaces the value of key
func (k *KeyDBKV) Put(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	if err := k.client.Set(ctx, k.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s to KeyDB: %w", key, err)
	}
	return nil
}

// Delete removes key
func (k *KeyDBKV) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	if err := k.client.Del(ctx, k.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from KeyDB: %w", key, err)
	}
	return nil
}
