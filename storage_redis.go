package authvault

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultStoragePrefix = "av"

// RedisStorageClient is the default [StorageClient]. Each namespace is a
// single Redis hash under the configured prefix, so per-key writes and
// removals are atomic and a namespace scan is one HGETALL.
//
// Encryption at rest is the deployment's concern (TLS to Redis plus an
// encrypted Redis instance or an encrypting proxy); this client treats stored
// values as opaque strings either way.
type RedisStorageClient struct {
	redis  *redis.Client
	prefix string
}

// NewRedisStorageClient creates a storage client over an existing Redis
// client. An empty prefix falls back to the package default.
func NewRedisStorageClient(redisClient *redis.Client, prefix string) *RedisStorageClient {
	if prefix == "" {
		prefix = defaultStoragePrefix
	}
	return &RedisStorageClient{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisStorageClient) key(kind StoreKind) string {
	return s.prefix + ":" + kind.String()
}

// Get returns the serialized record stored under key, or [ErrNotFound].
func (s *RedisStorageClient) Get(ctx context.Context, kind StoreKind, key string) (string, error) {
	value, err := s.redis.HGet(ctx, s.key(kind), key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return value, nil
}

// Set stores the serialized record under key.
func (s *RedisStorageClient) Set(ctx context.Context, kind StoreKind, key, value string) error {
	if err := s.redis.HSet(ctx, s.key(kind), key, value).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Remove deletes the record under key. Removing an absent key is not an
// error.
func (s *RedisStorageClient) Remove(ctx context.Context, kind StoreKind, key string) error {
	if err := s.redis.HDel(ctx, s.key(kind), key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// GetAll returns every record in the namespace keyed by its storage key.
func (s *RedisStorageClient) GetAll(ctx context.Context, kind StoreKind) (map[string]string, error) {
	values, err := s.redis.HGetAll(ctx, s.key(kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return values, nil
}

// Clear removes the given namespaces in one round trip.
func (s *RedisStorageClient) Clear(ctx context.Context, kinds ...StoreKind) error {
	if len(kinds) == 0 {
		return nil
	}
	keys := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		keys = append(keys, s.key(kind))
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// IsEmpty reports whether the accounts, mechanisms, and notifications
// namespaces hold no records. Backups are excluded: a store that only carries
// a migration blob is still considered empty.
func (s *RedisStorageClient) IsEmpty(ctx context.Context) (bool, error) {
	for _, kind := range []StoreKind{StoreAccounts, StoreMechanisms, StoreNotifications} {
		n, err := s.redis.HLen(ctx, s.key(kind)).Result()
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		if n > 0 {
			return false, nil
		}
	}
	return true, nil
}
