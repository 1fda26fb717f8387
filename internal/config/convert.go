package config

import (
	"github.com/fyrsmithlabs/projectrag/internal/embeddings"
	"github.com/fyrsmithlabs/projectrag/internal/persistence"
	"github.com/fyrsmithlabs/projectrag/internal/vectorstore"
)

// VectorStore returns the store settings.
func (c *Config) VectorStore() vectorstore.Config {
	return vectorstore.Config{
		Dimension:        c.Store.Dimension,
		ChunkSize:        c.Store.ChunkSize,
		ChunkOverlap:     c.Store.ChunkOverlap,
		MaxTopK:          c.Store.MaxTopK,
		EmbedBatchSize:   c.Store.EmbedBatchSize,
		EmbedConcurrency: c.Store.EmbedConcurrency,
	}
}

// PersistenceDriver returns the snapshot driver settings.
func (c *Config) PersistenceDriver() persistence.Config {
	return persistence.Config{
		Driver:        persistence.DriverType(c.Persistence.Driver),
		Path:          c.Persistence.Path,
		Compress:      c.Persistence.Compress,
		RedisAddr:     c.Persistence.RedisAddr,
		RedisPassword: c.Persistence.RedisPassword.Value(),
		RedisDB:       c.Persistence.RedisDB,
		RedisKey:      c.Persistence.RedisKey,
	}
}

// EmbeddingProvider returns the provider settings. The store dimension is
// authoritative, so it always overrides model-based detection.
func (c *Config) EmbeddingProvider() embeddings.ProviderConfig {
	return embeddings.ProviderConfig{
		Provider:  c.Embeddings.Provider,
		Model:     c.Embeddings.Model,
		BaseURL:   c.Embeddings.BaseURL,
		APIKey:    c.Embeddings.APIKey.Value(),
		Dimension: c.Store.Dimension,
		CacheDir:  c.Embeddings.CacheDir,
		Timeout:   c.Embeddings.Timeout.Duration(),
	}
}
