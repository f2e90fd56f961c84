// Package snapcache persists availability snapshots in Redis, keyed by the
// environment fingerprint. The cache is an optimization only: it is always
// safe to discard and recompute, and a fingerprint mismatch invalidates it.
// This package is internal and should not be imported by external projects.
package snapcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/crisslavik/xStage/probe"
)

// ErrMiss is returned when no snapshot is cached for the fingerprint.
var ErrMiss = errors.New("snapshot cache miss")

// Cache stores probe snapshots in Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// Config configures the cache connection.
type Config struct {
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// New connects to Redis and verifies the connection.
func New(cfg Config, logger *zap.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	logger.Info("snapshot cache connected", zap.String("addr", cfg.Addr))
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "snapcache")),
	}, nil
}

func key(fingerprint string) string {
	return "xstage:snapshot:" + fingerprint
}

// Load fetches the cached snapshot for an environment fingerprint.
func (c *Cache) Load(ctx context.Context, fingerprint string) (*probe.Snapshot, error) {
	data, err := c.client.Get(ctx, key(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot cache: %w", err)
	}

	var snap probe.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// A corrupt entry is treated as a miss; the prober recomputes.
		c.logger.Warn("discarding corrupt cached snapshot", zap.Error(err))
		return nil, ErrMiss
	}
	if snap.Fingerprint != fingerprint {
		return nil, ErrMiss
	}
	return &snap, nil
}

// Store caches a snapshot under its own fingerprint.
func (c *Cache) Store(ctx context.Context, snap *probe.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := c.client.Set(ctx, key(snap.Fingerprint), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("write snapshot cache: %w", err)
	}
	return nil
}

// Invalidate removes the cached snapshot for a fingerprint.
func (c *Cache) Invalidate(ctx context.Context, fingerprint string) error {
	return c.client.Del(ctx, key(fingerprint)).Err()
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
