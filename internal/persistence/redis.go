package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectrag/internal/vectorstore"
)

const defaultRedisKey = "projectrag:snapshot"

// RedisStore keeps the snapshot as a single value under one key.
//
// SET replaces the value atomically. Durability follows the server's
// persistence settings (AOF with appendfsync always for full durability).
type RedisStore struct {
	client   *redis.Client
	key      string
	compress bool
	logger   *zap.Logger
}

// NewRedisStore creates a Redis-backed snapshot store. An empty key uses
// "projectrag:snapshot".
func NewRedisStore(client *redis.Client, key string, compress bool, logger *zap.Logger) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis client required", ErrInvalidConfig)
	}
	if key == "" {
		key = defaultRedisKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, key: key, compress: compress, logger: logger}, nil
}

// SaveSnapshot replaces the stored value.
func (s *RedisStore) SaveSnapshot(ctx context.Context, snap vectorstore.Snapshot) error {
	if snap == nil {
		snap = vectorstore.Snapshot{}
	}

	var buf bytes.Buffer
	if s.compress {
		zw := gzip.NewWriter(&buf)
		if err := json.NewEncoder(zw).Encode(snap); err != nil {
			return fmt.Errorf("encoding snapshot: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compressing snapshot: %w", err)
		}
	} else if err := json.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	if err := s.client.Set(ctx, s.key, buf.Bytes(), 0).Err(); err != nil {
		return fmt.Errorf("writing snapshot to redis: %w", err)
	}

	s.logger.Debug("snapshot saved", zap.String("key", s.key), zap.Int("bytes", buf.Len()))
	return nil
}

// LoadSnapshot reads the stored value. A missing key is an empty snapshot.
func (s *RedisStore) LoadSnapshot(ctx context.Context) (vectorstore.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return vectorstore.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot from redis: %w", err)
	}

	var r io.Reader = bytes.NewReader(data)
	if bytes.HasPrefix(data, gzipMagic) {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
		defer zr.Close()
		r = zr
	}

	var snap vectorstore.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	if snap == nil {
		snap = vectorstore.Snapshot{}
	}
	return snap, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
