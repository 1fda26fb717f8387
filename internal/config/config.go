// Package config provides configuration loading for projectrag.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then PROJECTRAG_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/projectrag/internal/chunker"
)

// ErrInvalidConfig indicates a configuration value that cannot be used.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete projectrag configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Store       StoreConfig       `koanf:"store"`
	Persistence PersistenceConfig `koanf:"persistence"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Ownership   OwnershipConfig   `koanf:"ownership"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	RequestTimeout  Duration `koanf:"request_timeout"`
	// RateLimit is requests per second per client IP. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	// StatsToken guards GET /api/v1/stats. Empty disables the route.
	StatsToken Secret `koanf:"stats_token"`
}

// StoreConfig holds vector store configuration.
type StoreConfig struct {
	Dimension        int `koanf:"dimension"`
	ChunkSize        int `koanf:"chunk_size"`
	ChunkOverlap     int `koanf:"chunk_overlap"`
	DefaultTopK      int `koanf:"default_top_k"`
	MaxTopK          int `koanf:"max_top_k"`
	EmbedBatchSize   int `koanf:"embed_batch_size"`
	EmbedConcurrency int `koanf:"embed_concurrency"`
}

// PersistenceConfig selects the snapshot driver.
type PersistenceConfig struct {
	// Driver is file, sqlite or redis.
	Driver   string `koanf:"driver"`
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword Secret `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	RedisKey      string `koanf:"redis_key"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	// Provider is hash, tei, openai or fastembed.
	Provider string   `koanf:"provider"`
	Model    string   `koanf:"model"`
	BaseURL  string   `koanf:"base_url"`
	APIKey   Secret   `koanf:"api_key"`
	CacheDir string   `koanf:"cache_dir"`
	Timeout  Duration `koanf:"timeout"`
	// CacheSize is the number of embeddings memoized in memory. Zero disables caching.
	CacheSize int `koanf:"cache_size"`
}

// OwnershipConfig configures the ownership guard.
type OwnershipConfig struct {
	// Mode is registry or allow_all.
	Mode string `koanf:"mode"`
	// Owners maps project IDs to owning user IDs (registry mode).
	Owners map[string]string `koanf:"owners"`
	// AutoRegister lets the first user to use an unknown project claim it.
	AutoRegister bool     `koanf:"auto_register"`
	CacheSize    int      `koanf:"cache_size"`
	CacheTTL     Duration `koanf:"cache_ttl"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
	// SamplingInitial and SamplingThereafter configure per-second sampling
	// for info and below. Zero disables sampling.
	SamplingInitial    int `koanf:"sampling_initial"`
	SamplingThereafter int `koanf:"sampling_thereafter"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled        bool    `koanf:"enabled"`
	Endpoint       string  `koanf:"endpoint"`
	Insecure       bool    `koanf:"insecure"`
	ServiceName    string  `koanf:"service_name"`
	ServiceVersion string  `koanf:"service_version"`
	SamplingRate   float64 `koanf:"sampling_rate"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit cannot be negative"))
	}

	if c.Store.Dimension <= 0 {
		errs = append(errs, errors.New("store.dimension must be positive"))
	}
	if err := chunker.Validate(c.Store.ChunkSize, c.Store.ChunkOverlap); err != nil {
		errs = append(errs, fmt.Errorf("store.chunk_size/chunk_overlap: %w", err))
	}
	if c.Store.MaxTopK <= 0 {
		errs = append(errs, errors.New("store.max_top_k must be positive"))
	}
	if c.Store.DefaultTopK < 1 || c.Store.DefaultTopK > c.Store.MaxTopK {
		errs = append(errs, fmt.Errorf("store.default_top_k must be between 1 and %d", c.Store.MaxTopK))
	}
	if c.Store.EmbedConcurrency <= 0 || c.Store.EmbedBatchSize <= 0 {
		errs = append(errs, errors.New("store.embed_concurrency and store.embed_batch_size must be positive"))
	}

	switch c.Persistence.Driver {
	case "file", "sqlite":
		if c.Persistence.Path == "" {
			errs = append(errs, fmt.Errorf("persistence.path required for %s driver", c.Persistence.Driver))
		}
	case "redis":
		if c.Persistence.RedisAddr == "" {
			errs = append(errs, errors.New("persistence.redis_addr required for redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("persistence.driver must be file, sqlite or redis, got %q", c.Persistence.Driver))
	}

	switch c.Embeddings.Provider {
	case "hash", "fastembed":
	case "tei", "openai":
		if c.Embeddings.Provider == "tei" && c.Embeddings.BaseURL == "" {
			errs = append(errs, errors.New("embeddings.base_url required for tei provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("embeddings.provider must be hash, tei, openai or fastembed, got %q", c.Embeddings.Provider))
	}

	switch c.Ownership.Mode {
	case "registry", "allow_all":
	default:
		errs = append(errs, fmt.Errorf("ownership.mode must be registry or allow_all, got %q", c.Ownership.Mode))
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint required when telemetry is enabled"))
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		errs = append(errs, errors.New("telemetry.sampling_rate must be between 0 and 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = Duration(60 * time.Second)
	}

	if cfg.Store.Dimension == 0 {
		cfg.Store.Dimension = 384 // bge-small-en-v1.5
	}
	if cfg.Store.ChunkSize == 0 {
		cfg.Store.ChunkSize = 1000
		if cfg.Store.ChunkOverlap == 0 {
			cfg.Store.ChunkOverlap = 200
		}
	}
	if cfg.Store.DefaultTopK == 0 {
		cfg.Store.DefaultTopK = 5
	}
	if cfg.Store.MaxTopK == 0 {
		cfg.Store.MaxTopK = 20
	}
	if cfg.Store.EmbedBatchSize == 0 {
		cfg.Store.EmbedBatchSize = 32
	}
	if cfg.Store.EmbedConcurrency == 0 {
		cfg.Store.EmbedConcurrency = 4
	}

	if cfg.Persistence.Driver == "" {
		cfg.Persistence.Driver = "file"
	}
	if cfg.Persistence.Path == "" {
		switch cfg.Persistence.Driver {
		case "file":
			cfg.Persistence.Path = "~/.local/share/projectrag/vectors.json"
		case "sqlite":
			cfg.Persistence.Path = "~/.local/share/projectrag/vectors.db"
		}
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "hash"
	}
	if cfg.Embeddings.Model == "" && cfg.Embeddings.Provider != "hash" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Embeddings.Timeout == 0 {
		cfg.Embeddings.Timeout = Duration(30 * time.Second)
	}

	if cfg.Ownership.Mode == "" {
		cfg.Ownership.Mode = "registry"
	}
	if cfg.Ownership.CacheTTL == 0 {
		cfg.Ownership.CacheTTL = Duration(time.Minute)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "projectrag"
	}
	if cfg.Telemetry.SamplingRate == 0 {
		cfg.Telemetry.SamplingRate = 1.0
	}
}
