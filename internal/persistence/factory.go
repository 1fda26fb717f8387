package persistence

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectrag/internal/vectorstore"
)

// DriverType names a persistence backend.
type DriverType string

const (
	DriverFile   DriverType = "file"
	DriverSQLite DriverType = "sqlite"
	DriverRedis  DriverType = "redis"
)

// Driver is a Persistence that holds resources.
type Driver interface {
	vectorstore.Persistence
	Close() error
}

// Config selects and configures a driver.
type Config struct {
	Driver DriverType

	// Path is the snapshot file (file) or database file (sqlite).
	Path string

	// Compress gzips snapshots (file and redis).
	Compress bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

// New creates the configured driver. An empty driver means file.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Driver {
	case DriverFile, "":
		fs, err := NewFileStore(cfg.Path, cfg.Compress, logger)
		if err != nil {
			return nil, err
		}
		return fs, nil

	case DriverSQLite:
		ss, err := NewSQLiteStore(ctx, cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		return ss, nil

	case DriverRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("%w: redis address required", ErrInvalidConfig)
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		rs, err := NewRedisStore(client, cfg.RedisKey, cfg.Compress, logger)
		if err != nil {
			client.Close()
			return nil, err
		}
		return rs, nil

	default:
		return nil, fmt.Errorf("%w: unknown driver %q", ErrInvalidConfig, cfg.Driver)
	}
}
