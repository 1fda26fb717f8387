package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/projectrag/internal/chunker"
)

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// newID generates entry IDs. Replaced in tests that need predictable IDs.
var newID = uuid.NewString

const tracerName = "projectrag.vectorstore"

// tracer resolves the global provider per call so a provider installed after
// package init is honored.
func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

const maxIdentifierLen = 128

// Config holds vector store configuration.
type Config struct {
	// Dimension is the embedding dimension shared by every stored vector.
	// Must match the embedder's output dimension.
	// Default: 384 (bge-small-en-v1.5)
	Dimension int

	// ChunkSize is the maximum chunk length in runes.
	// Default: 1000
	ChunkSize int

	// ChunkOverlap is the number of runes shared by consecutive chunks.
	// Must be smaller than ChunkSize.
	// Default: 200
	ChunkOverlap int

	// MaxTopK is the largest topK Search accepts.
	// Default: 20
	MaxTopK int

	// EmbedBatchSize is the number of chunks sent per EmbedDocuments call.
	// Default: 32
	EmbedBatchSize int

	// EmbedConcurrency bounds concurrent EmbedDocuments calls during Ingest.
	// Default: 4
	EmbedConcurrency int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Dimension == 0 {
		c.Dimension = 384
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 1000
		if c.ChunkOverlap == 0 {
			c.ChunkOverlap = 200
		}
	}
	if c.MaxTopK == 0 {
		c.MaxTopK = 20
	}
	if c.EmbedBatchSize == 0 {
		c.EmbedBatchSize = 32
	}
	if c.EmbedConcurrency == 0 {
		c.EmbedConcurrency = 4
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	if err := chunker.Validate(c.ChunkSize, c.ChunkOverlap); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.MaxTopK <= 0 {
		return fmt.Errorf("%w: max topK must be positive", ErrInvalidConfig)
	}
	if c.EmbedBatchSize <= 0 {
		return fmt.Errorf("%w: embed batch size must be positive", ErrInvalidConfig)
	}
	if c.EmbedConcurrency <= 0 {
		return fmt.Errorf("%w: embed concurrency must be positive", ErrInvalidConfig)
	}
	return nil
}

// Store holds every project's index and enforces project isolation.
//
// A single RWMutex guards the whole store. Search and Stats take the read
// lock; Ingest and DeleteProjectVectors take the write lock for the index
// mutation plus the snapshot write. Embedding always happens before any
// lock is taken. If the snapshot write fails the mutation is undone, so the
// in-memory state always equals the last durable snapshot.
type Store struct {
	mu      sync.RWMutex
	indexes map[string]*ProjectIndex
	ids     map[string]struct{}
	closed  bool

	persistence Persistence
	embedder    Embedder
	guard       OwnershipChecker
	config      Config
	logger      *zap.Logger
}

// NewStore creates a Store and loads its state from persistence.
//
// It is meant to be called once by the hosting process at startup. A missing
// snapshot yields an empty store. A snapshot that violates store invariants
// (wrong dimension, duplicate IDs, entries filed under the wrong project) is
// rejected.
func NewStore(ctx context.Context, cfg Config, persistence Persistence, embedder Embedder, guard OwnershipChecker, logger *zap.Logger) (*Store, error) {
	if persistence == nil {
		return nil, fmt.Errorf("%w: persistence is required", ErrInvalidConfig)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if guard == nil {
		return nil, fmt.Errorf("%w: ownership guard is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	s := &Store{
		indexes:     make(map[string]*ProjectIndex),
		ids:         make(map[string]struct{}),
		persistence: persistence,
		embedder:    embedder,
		guard:       guard,
		config:      cfg,
		logger:      logger,
	}

	snap, err := persistence.LoadSnapshot(ctx)
	if err != nil {
		return nil, newError("NewStore", KindPersistence, fmt.Errorf("loading snapshot: %w", err))
	}
	if err := s.restore(snap); err != nil {
		return nil, newError("NewStore", KindPersistence, err)
	}
	if claimer, ok := guard.(ProjectClaimer); ok {
		s.claimRestoredProjects(ctx, claimer)
	}

	stats := s.Stats()
	updateSizeGauges(stats.TotalProjects, stats.TotalVectors)

	logger.Info("vector store initialized",
		zap.Int("projects", stats.TotalProjects),
		zap.Int("vectors", stats.TotalVectors),
		zap.Int("dimension", cfg.Dimension),
		zap.Int("chunk_size", cfg.ChunkSize),
		zap.Int("chunk_overlap", cfg.ChunkOverlap),
	)

	return s, nil
}

// restore rebuilds the indexes from a loaded snapshot after validating it.
func (s *Store) restore(snap Snapshot) error {
	for projectID, entries := range snap {
		if len(entries) == 0 {
			continue
		}
		if err := validateIdentifier("project id", projectID); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}

		idx := NewProjectIndex(projectID)
		for i := range entries {
			e := &entries[i]
			if e.ID == "" {
				return fmt.Errorf("%w: project %q entry %d has no id", ErrInvalidSnapshot, projectID, i)
			}
			if _, dup := s.ids[e.ID]; dup {
				return fmt.Errorf("%w: %w %q", ErrInvalidSnapshot, ErrDuplicateID, e.ID)
			}
			if len(e.Vector) != s.config.Dimension {
				return fmt.Errorf("%w: %w: entry %q has %d dimensions, store uses %d",
					ErrInvalidSnapshot, ErrDimensionMismatch, e.ID, len(e.Vector), s.config.Dimension)
			}
			s.ids[e.ID] = struct{}{}
		}
		if err := idx.Append(entries...); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}
		s.indexes[projectID] = idx
	}
	return nil
}

// claimRestoredProjects hands each restored project back to the user whose
// ingest created it. A conflicting claim keeps the guard's owner and is
// only logged.
func (s *Store) claimRestoredProjects(ctx context.Context, claimer ProjectClaimer) {
	for projectID, idx := range s.indexes {
		if idx.Len() == 0 {
			continue
		}
		owner := idx.entries[0].UserID
		if err := claimer.ClaimProject(ctx, projectID, owner); err != nil {
			s.logger.Warn("restored project claim rejected",
				zap.String("project_id", projectID),
				zap.String("user_id", owner),
				zap.Error(err),
			)
		}
	}
}

// Dimension returns the embedding dimension of the store.
func (s *Store) Dimension() int {
	return s.config.Dimension
}

// MaxTopK returns the largest topK Search accepts.
func (s *Store) MaxTopK() int {
	return s.config.MaxTopK
}

// Ingest splits content into chunks, embeds them and appends them to the
// project's index, then persists the whole store.
//
// Re-ingesting identical content creates new entries; nothing is deduplicated.
// If the snapshot write fails, the appended entries are removed again and a
// persistence error is returned.
func (s *Store) Ingest(ctx context.Context, projectID, userID, content, filename string) (result *IngestResult, err error) {
	const op = "Ingest"
	start := time.Now()
	defer func() { recordOperation("ingest", start, err) }()

	ctx, span := tracer().Start(ctx, "Store.Ingest")
	defer span.End()
	span.SetAttributes(attribute.String("project_id", projectID))
	defer func() { endSpan(span, err) }()

	if err := validateScope(projectID, userID); err != nil {
		return nil, newError(op, KindValidation, err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, newError(op, KindValidation, ErrEmptyContent)
	}
	if err := s.authorize(ctx, op, projectID, userID); err != nil {
		return nil, err
	}

	chunks, err := chunker.All(content, s.config.ChunkSize, s.config.ChunkOverlap)
	if err != nil {
		return nil, newError(op, KindInternal, err)
	}
	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	// Embed before taking the lock; providers may block on network I/O.
	vectors, err := s.embedChunks(ctx, texts)
	if err != nil {
		return nil, newError(op, KindProvider, err)
	}

	ingestedAt := timeNow().UTC()
	entries := make([]VectorEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = VectorEntry{
			ID:        newID(),
			ProjectID: projectID,
			UserID:    userID,
			Vector:    vectors[i],
			Content:   c.Text,
			Metadata: Metadata{
				Filename:    filename,
				ChunkIndex:  i,
				TotalChunks: len(chunks),
				Timestamp:   ingestedAt,
			},
		}
	}

	if err := s.appendAndPersist(ctx, projectID, entries); err != nil {
		return nil, err
	}

	ChunksIngested.Add(float64(len(entries)))
	s.logger.Info("ingest completed",
		zap.String("project_id", projectID),
		zap.String("user_id", userID),
		zap.String("filename", filename),
		zap.Int("chunks", len(entries)),
		zap.Duration("duration", time.Since(start)),
	)

	return &IngestResult{ChunksProcessed: len(entries)}, nil
}

// appendAndPersist appends entries under the write lock and writes the
// snapshot before releasing it, rolling the append back on failure.
func (s *Store) appendAndPersist(ctx context.Context, projectID string, entries []VectorEntry) error {
	const op = "Ingest"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return newError(op, KindInternal, ErrClosed)
	}

	batch := make(map[string]struct{}, len(entries))
	for i := range entries {
		id := entries[i].ID
		_, stored := s.ids[id]
		_, repeated := batch[id]
		if stored || repeated {
			return newError(op, KindInternal, fmt.Errorf("%w %q", ErrDuplicateID, id))
		}
		batch[id] = struct{}{}
	}

	idx, existed := s.indexes[projectID]
	if !existed {
		idx = NewProjectIndex(projectID)
		s.indexes[projectID] = idx
	}
	prevLen := idx.Len()

	if err := idx.Append(entries...); err != nil {
		if !existed {
			delete(s.indexes, projectID)
		}
		return newError(op, KindInternal, err)
	}
	for i := range entries {
		s.ids[entries[i].ID] = struct{}{}
	}

	if err := s.persistLocked(ctx); err != nil {
		idx.truncate(prevLen)
		if !existed {
			delete(s.indexes, projectID)
		}
		for i := range entries {
			delete(s.ids, entries[i].ID)
		}
		Rollbacks.Inc()
		s.logger.Error("persistence failed, ingest rolled back",
			zap.String("project_id", projectID),
			zap.Int("chunks", len(entries)),
			zap.Error(err),
		)
		return newError(op, KindPersistence, err)
	}

	s.updateGaugesLocked()
	return nil
}

// Search embeds query and returns the topK most similar entries of projectID.
//
// A project with no stored vectors yields an empty, successful result.
func (s *Store) Search(ctx context.Context, projectID, userID, query string, topK int) (results []SearchResult, err error) {
	const op = "Search"
	start := time.Now()
	defer func() { recordOperation("search", start, err) }()

	ctx, span := tracer().Start(ctx, "Store.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("project_id", projectID),
		attribute.Int("top_k", topK),
	)
	defer func() { endSpan(span, err) }()

	if err := validateScope(projectID, userID); err != nil {
		return nil, newError(op, KindValidation, err)
	}
	if topK < 1 || topK > s.config.MaxTopK {
		return nil, newError(op, KindValidation,
			fmt.Errorf("%w: must be between 1 and %d, got %d", ErrInvalidTopK, s.config.MaxTopK, topK))
	}
	if strings.TrimSpace(query) == "" {
		return nil, newError(op, KindValidation, ErrEmptyQuery)
	}
	if err := s.authorize(ctx, op, projectID, userID); err != nil {
		return nil, err
	}

	// Embed outside the lock.
	queryVector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, newError(op, KindProvider, err)
	}
	if len(queryVector) != s.config.Dimension {
		return nil, newError(op, KindProvider,
			fmt.Errorf("%w: query has %d dimensions, store uses %d", ErrDimensionMismatch, len(queryVector), s.config.Dimension))
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, newError(op, KindInternal, ErrClosed)
	}
	var scored []ScoredEntry
	if idx, ok := s.indexes[projectID]; ok {
		scored = idx.RankedSearch(queryVector, topK)
	}
	s.mu.RUnlock()

	results = make([]SearchResult, len(scored))
	for i, se := range scored {
		results[i] = SearchResult{
			ID:       se.Entry.ID,
			Content:  se.Entry.Content,
			Score:    se.Score,
			Metadata: se.Entry.Metadata,
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	s.logger.Debug("search completed",
		zap.String("project_id", projectID),
		zap.Int("top_k", topK),
		zap.Int("results", len(results)),
		zap.Duration("duration", time.Since(start)),
	)

	return results, nil
}

// DeleteProjectVectors removes every entry of projectID and persists the store.
//
// Deleting a project without stored vectors succeeds without writing a
// snapshot. If the snapshot write fails the index is restored.
func (s *Store) DeleteProjectVectors(ctx context.Context, projectID, userID string) (err error) {
	const op = "DeleteProjectVectors"
	start := time.Now()
	defer func() { recordOperation("delete", start, err) }()

	ctx, span := tracer().Start(ctx, "Store.DeleteProjectVectors")
	defer span.End()
	span.SetAttributes(attribute.String("project_id", projectID))
	defer func() { endSpan(span, err) }()

	if err := validateScope(projectID, userID); err != nil {
		return newError(op, KindValidation, err)
	}
	if err := s.authorize(ctx, op, projectID, userID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return newError(op, KindInternal, ErrClosed)
	}

	idx, ok := s.indexes[projectID]
	if !ok || idx.Len() == 0 {
		delete(s.indexes, projectID)
		return nil
	}

	delete(s.indexes, projectID)
	if err := s.persistLocked(ctx); err != nil {
		s.indexes[projectID] = idx
		Rollbacks.Inc()
		s.logger.Error("persistence failed, delete rolled back",
			zap.String("project_id", projectID),
			zap.Error(err),
		)
		return newError(op, KindPersistence, err)
	}

	removed := idx.Len()
	for _, e := range idx.entries {
		delete(s.ids, e.ID)
	}
	idx.RemoveAll()
	s.updateGaugesLocked()

	span.SetAttributes(attribute.Int("removed_count", removed))
	s.logger.Info("project vectors deleted",
		zap.String("project_id", projectID),
		zap.String("user_id", userID),
		zap.Int("removed", removed),
	)

	return nil
}

// Stats returns a diagnostic snapshot of the store. It performs no
// authorization; callers exposing it must gate access themselves.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		PerProjectCounts: make(map[string]int, len(s.indexes)),
		Dimension:        s.config.Dimension,
	}
	for projectID, idx := range s.indexes {
		if idx.Len() == 0 {
			continue
		}
		stats.TotalProjects++
		stats.TotalVectors += idx.Len()
		stats.PerProjectCounts[projectID] = idx.Len()
	}
	return stats
}

// Close stops the store from accepting new operations. Operations already
// holding the lock complete first.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("vector store closed")
	return nil
}

// authorize runs the ownership check and hides its reason from the caller.
func (s *Store) authorize(ctx context.Context, op, projectID, userID string) error {
	if err := s.guard.CheckOwnership(ctx, projectID, userID); err != nil {
		s.logger.Debug("ownership check denied",
			zap.String("op", op),
			zap.String("project_id", projectID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return newError(op, KindAuthorization, ErrAccessDenied)
	}
	return nil
}

// embedChunks embeds texts in batches with bounded concurrency.
func (s *Store) embedChunks(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.EmbedConcurrency)

	for lo := 0; lo < len(texts); lo += s.config.EmbedBatchSize {
		hi := min(lo+s.config.EmbedBatchSize, len(texts))
		g.Go(func() error {
			batch, err := s.embedder.EmbedDocuments(gctx, texts[lo:hi])
			if err != nil {
				return err
			}
			if len(batch) != hi-lo {
				return fmt.Errorf("embedder returned %d embeddings for %d texts", len(batch), hi-lo)
			}
			for i, v := range batch {
				if len(v) != s.config.Dimension {
					return fmt.Errorf("%w: chunk %d has %d dimensions, store uses %d",
						ErrDimensionMismatch, lo+i, len(v), s.config.Dimension)
				}
				vectors[lo+i] = slices.Clone(v)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// persistLocked writes the full snapshot. Caller must hold the write lock.
//
// Cancellation of the caller's context is ignored: once the in-memory
// mutation is applied, the write runs to completion or fails on its own.
func (s *Store) persistLocked(ctx context.Context) error {
	snap := make(Snapshot, len(s.indexes))
	for projectID, idx := range s.indexes {
		if idx.Len() == 0 {
			continue
		}
		snap[projectID] = idx.entries
	}

	start := time.Now()
	err := s.persistence.SaveSnapshot(context.WithoutCancel(ctx), snap)
	recordSnapshotWrite(start, err)
	return err
}

// updateGaugesLocked refreshes size gauges. Caller must hold the lock.
func (s *Store) updateGaugesLocked() {
	vectors := 0
	projects := 0
	for _, idx := range s.indexes {
		if idx.Len() == 0 {
			continue
		}
		projects++
		vectors += idx.Len()
	}
	updateSizeGauges(projects, vectors)
}

// validateScope checks both identifiers of an operation.
func validateScope(projectID, userID string) error {
	if err := validateIdentifier("project id", projectID); err != nil {
		return err
	}
	return validateIdentifier("user id", userID)
}

// validateIdentifier rejects empty, oversized or control-character identifiers.
func validateIdentifier(name, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrInvalidIdentifier, name)
	}
	if len(id) > maxIdentifierLen {
		return fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidIdentifier, name, maxIdentifierLen)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("%w: %s contains invalid UTF-8", ErrInvalidIdentifier, name)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %s contains control characters", ErrInvalidIdentifier, name)
		}
	}
	return nil
}

// endSpan sets the span status from the operation's error.
func endSpan(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "success")
		return
	}
	span.RecordError(err)
	var se *Error
	if errors.As(err, &se) {
		span.SetAttributes(attribute.String("error.kind", string(se.Kind)))
	}
	span.SetStatus(codes.Error, err.Error())
}
