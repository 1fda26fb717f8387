package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectrag/internal/config"
	"github.com/fyrsmithlabs/projectrag/internal/embeddings"
	"github.com/fyrsmithlabs/projectrag/internal/ownership"
	"github.com/fyrsmithlabs/projectrag/internal/persistence"
	"github.com/fyrsmithlabs/projectrag/internal/vectorstore"
)

// components are the store and the resources it was built from, closed in
// reverse order of construction.
type components struct {
	store    *vectorstore.Store
	driver   persistence.Driver
	embedder embeddings.Provider
}

func (c *components) Close() error {
	var errs []error
	if c.store != nil {
		errs = append(errs, c.store.Close())
	}
	if c.embedder != nil {
		errs = append(errs, c.embedder.Close())
	}
	if c.driver != nil {
		errs = append(errs, c.driver.Close())
	}
	return errors.Join(errs...)
}

// newGuard builds the ownership guard for cfg.
func newGuard(cfg config.OwnershipConfig) ownership.Guard {
	if cfg.Mode == "allow_all" {
		return ownership.AllowAll
	}
	return ownership.NewCachedGuard(
		ownership.NewRegistry(cfg.Owners, cfg.AutoRegister),
		cfg.CacheSize,
		cfg.CacheTTL.Duration(),
	)
}

// newEmbedder builds the embedding provider, memoized when a cache size is set.
func newEmbedder(cfg *config.Config, logger *zap.Logger) (embeddings.Provider, error) {
	p, err := embeddings.NewProvider(cfg.EmbeddingProvider(), logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	if p.Dimension() != cfg.Store.Dimension {
		_ = p.Close()
		return nil, fmt.Errorf("embedding provider dimension %d does not match store.dimension %d", p.Dimension(), cfg.Store.Dimension)
	}
	if cfg.Embeddings.CacheSize > 0 {
		cached, err := embeddings.NewCachedProvider(p, cfg.Embeddings.CacheSize)
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		return cached, nil
	}
	return p, nil
}

// newDriver opens the persistence driver, creating the data directory for
// file-backed drivers.
func newDriver(ctx context.Context, cfg *config.Config, logger *zap.Logger) (persistence.Driver, error) {
	switch cfg.Persistence.Driver {
	case "file", "sqlite":
		if err := config.EnsureDataDir(cfg.Persistence.Path); err != nil {
			return nil, err
		}
	}
	driver, err := persistence.New(ctx, cfg.PersistenceDriver(), logger)
	if err != nil {
		return nil, fmt.Errorf("opening %s persistence: %w", cfg.Persistence.Driver, err)
	}
	return driver, nil
}

// buildStore wires persistence, embeddings and ownership into a store whose
// snapshot has been loaded.
func buildStore(ctx context.Context, cfg *config.Config, guard ownership.Guard, logger *zap.Logger) (*components, error) {
	c := &components{}

	driver, err := newDriver(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.driver = driver

	embedder, err := newEmbedder(cfg, logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.embedder = embedder

	store, err := vectorstore.NewStore(ctx, cfg.VectorStore(), driver, embedder, guard, logger)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("loading vector store: %w", err)
	}
	c.store = store

	return c, nil
}
