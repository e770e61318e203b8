package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/starford/itemdesk/internal/apperr"
)

// Redis implements Provider with one Redis string per key.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps client. Keys are namespaced under prefix (e.g. "itemdesk:").
func NewRedis(client *redis.Client, prefix string) *Redis {
	if client == nil {
		panic("storage.NewRedis: client is nil")
	}
	return &Redis{client: client, prefix: prefix}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr, prefix string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("storage: redis ping %s: %w", addr, err)
	}
	return NewRedis(client, prefix), nil
}

// Get returns the value stored under key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("storage: get %s: %w", key, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	return data, nil
}

// Set stores value under key without expiry.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("storage: set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// Keys scans for keys under the prefix.
func (r *Redis) Keys(ctx context.Context) ([]string, error) {
	var out []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("storage: keys: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Provider = (*Redis)(nil)
