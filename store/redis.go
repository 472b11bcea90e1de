// store/redis.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/mwiater/gollamachat/config"
	"go.uber.org/zap"
)

// RedisStore keeps the context as a JSON document under a single Redis key.
type RedisStore struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewRedisStore connects lazily to the server described by cfg.
func NewRedisStore(cfg config.RedisConfig, logger *zap.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStoreWithClient(client, cfg.Key, logger)
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, key string, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, key: key, logger: logger}
}

// Location returns the server address and key.
func (s *RedisStore) Location() string {
	return fmt.Sprintf("redis://%s/%s", s.client.Options().Addr, s.key)
}

// Save overwrites the key with the serialised state. The key never expires.
func (s *RedisStore) Save(ctx context.Context, history string) error {
	data, err := json.Marshal(State{Context: history})
	if err != nil {
		return &StorageError{Op: "save", Location: s.Location(), Err: err}
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return &StorageError{Op: "save", Location: s.Location(), Err: err}
	}
	s.logger.Debug("history saved", zap.String("key", s.key), zap.Int("bytes", len(data)))
	return nil
}

// Load reads the key; a missing key yields an empty context.
func (s *RedisStore) Load(ctx context.Context) (string, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", &StorageError{Op: "load", Location: s.Location(), Err: err}
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return "", &StorageError{Op: "load", Location: s.Location(), Err: fmt.Errorf("malformed history: %w", err)}
	}
	return st.Context, nil
}

// Clear deletes the key. Deleting a missing key succeeds.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return &StorageError{Op: "clear", Location: s.Location(), Err: err}
	}
	return nil
}

// Close closes the client connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
