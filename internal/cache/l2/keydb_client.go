package l2

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"fhir-gateway/internal/config"
	"fhir-gateway/internal/interfaces"
)

var _ interfaces.KeyDbClient = (*RedisKeyDbClient)(nil)

// RedisKeyDbClient is the go-redis client shared by the L2 cache and the session store
type RedisKeyDbClient struct {
	*redis.Client
	logger *zap.Logger
}

// ParseKeyDBURL accepts redis:// and rediss:// URLs; timeouts and pool size come from keydbCfg
func ParseKeyDBURL(keydbURL string, keydbCfg *config.KeyDBConfig) (*redis.Options, error) {
	opts, err := redis.ParseURL(keydbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse KeyDB URL: %w", err)
	}

	opts.DialTimeout = keydbCfg.Connection.ConnectTimeout
	opts.ReadTimeout = keydbCfg.Connection.ReadTimeout
	opts.WriteTimeout = keydbCfg.Connection.SendTimeout
	opts.PoolSize = keydbCfg.Keepalive.PoolSize
	opts.IdleTimeout = keydbCfg.Keepalive.MaxIdleTimeout
	return opts, nil
}

// NewRedisKeyDbClient dials KeyDB and fails unless the first ping succeeds
func NewRedisKeyDbClient(keydbCfg *config.KeyDBConfig, logger *zap.Logger) (*RedisKeyDbClient, error) {
	opts, err := ParseKeyDBURL(keydbCfg.URL, keydbCfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), keydbCfg.Connection.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("KeyDB at %s unreachable: %w", opts.Addr, err)
	}

	logger.Info("KeyDB connection ready",
		zap.String("address", opts.Addr),
		zap.Int("db", opts.DB),
		zap.Int("pool_size", opts.PoolSize))

	return &RedisKeyDbClient{Client: client, logger: logger}, nil
}

// Close releases the connection pool
func (r *RedisKeyDbClient) Close() error {
	r.logger.Debug("Closing KeyDB connection")
	return r.Client.Close()
}
