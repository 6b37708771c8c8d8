// ABOUTME: Redis persister for session snapshots using go-redis v9.
// ABOUTME: Stores one JSON string per key under a configurable prefix.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces session keys.
const DefaultRedisPrefix = "menu-gateway:session:"

// RedisConfig holds connection settings for RedisPersister.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration // zero keeps snapshots forever
}

// RedisPersister stores snapshots in Redis.
type RedisPersister struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisPersister connects to Redis and verifies the connection.
func NewRedisPersister(ctx context.Context, cfg RedisConfig) (*RedisPersister, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisPersisterWithClient(client, cfg.Prefix, cfg.TTL), nil
}

// NewRedisPersisterWithClient wraps an existing client.
func NewRedisPersisterWithClient(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisPersister {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisPersister{client: client, prefix: prefix, ttl: ttl}
}

func (p *RedisPersister) redisKey(key string) string {
	return p.prefix + key
}

// Load reads the snapshot for key.
func (p *RedisPersister) Load(ctx context.Context, key string) (*Snapshot, error) {
	raw, err := p.client.Get(ctx, p.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session from redis: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("parsing session from redis: %w", err)
	}
	return &snap, nil
}

// Save writes the snapshot for key.
func (p *RedisPersister) Save(ctx context.Context, key string, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := p.client.Set(ctx, p.redisKey(key), data, p.ttl).Err(); err != nil {
		return fmt.Errorf("writing session to redis: %w", err)
	}
	return nil
}

// Delete removes the snapshot for key.
func (p *RedisPersister) Delete(ctx context.Context, key string) error {
	if err := p.client.Del(ctx, p.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("deleting session from redis: %w", err)
	}
	return nil
}

// Close closes the client.
func (p *RedisPersister) Close() error {
	return p.client.Close()
}
