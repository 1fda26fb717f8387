package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/projectrag/internal/ownership"
)

const testDim = 4

// tableEmbedder maps known texts to fixed vectors. Unknown texts embed to
// the last axis so they stay comparable but never outrank a known match.
type tableEmbedder struct {
	mu       sync.Mutex
	table    map[string][]float32
	dim      int
	err      error
	docCalls int
}

func newTableEmbedder() *tableEmbedder {
	return &tableEmbedder{
		dim: testDim,
		table: map[string][]float32{
			"alpha":      {1, 0, 0, 0},
			"beta":       {0, 1, 0, 0},
			"alpha beta": {1, 1, 0, 0},
			"gamma":      {0, 0, 1, 0},
		},
	}
}

func (e *tableEmbedder) vector(text string) []float32 {
	if v, ok := e.table[strings.TrimSpace(text)]; ok {
		return append([]float32(nil), v...)
	}
	v := make([]float32, e.dim)
	v[e.dim-1] = 1
	return v
}

func (e *tableEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docCalls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *tableEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return e.vector(text), nil
}

// memPersistence keeps the last saved snapshot in memory.
type memPersistence struct {
	mu      sync.Mutex
	snap    Snapshot
	saves   int
	saveErr error
	loadErr error
}

func (m *memPersistence) SaveSnapshot(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.snap = snap.Clone()
	return nil
}

func (m *memPersistence) LoadSnapshot(context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.snap.Clone(), nil
}

func (m *memPersistence) failSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

func (m *memPersistence) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// ownerGuard grants access when owners[projectID] == userID.
type ownerGuard map[string]string

func (g ownerGuard) CheckOwnership(_ context.Context, projectID, userID string) error {
	owner, ok := g[projectID]
	if !ok {
		return fmt.Errorf("project %s does not exist", projectID)
	}
	if owner != userID {
		return fmt.Errorf("project %s is owned by %s", projectID, owner)
	}
	return nil
}

type testStore struct {
	*Store
	embedder    *tableEmbedder
	persistence *memPersistence
}

func newTestStore(t *testing.T, guard ownerGuard) *testStore {
	t.Helper()

	embedder := newTableEmbedder()
	persistence := &memPersistence{}
	store, err := NewStore(context.Background(), Config{
		Dimension:    testDim,
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}, persistence, embedder, guard, zap.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return &testStore{Store: store, embedder: embedder, persistence: persistence}
}

func defaultGuard() ownerGuard {
	return ownerGuard{"p1": "u1", "p2": "u2", "empty": "u1"}
}

func TestConfig_ApplyDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 384, cfg.Dimension)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 20, cfg.MaxTopK)

	bad := Config{Dimension: 4, ChunkSize: 10, ChunkOverlap: 10, MaxTopK: 1, EmbedBatchSize: 1, EmbedConcurrency: 1}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}

func TestNewStore_RequiresDependencies(t *testing.T) {
	ctx := context.Background()
	_, err := NewStore(ctx, Config{}, nil, newTableEmbedder(), defaultGuard(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewStore(ctx, Config{}, &memPersistence{}, nil, defaultGuard(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewStore(ctx, Config{}, &memPersistence{}, newTableEmbedder(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestStore_IngestAndSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, defaultGuard())

	for _, doc := range []string{"beta", "alpha beta", "alpha"} {
		res, err := s.Ingest(ctx, "p1", "u1", doc, doc+".txt")
		require.NoError(t, err)
		assert.Equal(t, 1, res.ChunksProcessed)
	}
	assert.Equal(t, 3, s.persistence.saveCount())

	results, err := s.Search(ctx, "p1", "u1", "alpha", 5)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "alpha", results[0].Content)
	assert.Equal(t, "alpha beta", results[1].Content)
	assert.Equal(t, "beta", results[2].Content)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.InDelta(t, 0.7071, results[1].Score, 1e-3)
	assert.InDelta(t, 0.0, results[2].Score, 1e-6)

	assert.Equal(t, "alpha.txt", results[0].Metadata.Filename)
	assert.Equal(t, 0, results[0].Metadata.ChunkIndex)
	assert.Equal(t, 1, results[0].Metadata.TotalChunks)
	assert.NotEmpty(t, results[0].ID)

	top1, err := s.Search(ctx, "p1", "u1", "alpha", 1)
	require.NoError(t, err)
	require.Len(t, top1, 1)
	assert.Equal(t, results[0].ID, top1[0].ID)
}

func TestStore_IngestChunksLongContent(t *testing.T) {
	ctx := context.Background()
	embedder := newTableEmbedder()
	store, err := NewStore(ctx, Config{
		Dimension:      testDim,
		ChunkSize:      20,
		ChunkOverlap:   5,
		EmbedBatchSize: 1,
	}, &memPersistence{}, embedder, defaultGuard(), zap.NewNop())
	require.NoError(t, err)

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	timeNow = func() time.Time { return fixed }
	t.Cleanup(func() { timeNow = time.Now })

	res, err := store.Ingest(ctx, "p1", "u1", "The quick brown fox jumps over the lazy dog.", "")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ChunksProcessed)
	assert.Equal(t, 3, embedder.docCalls, "one provider call per batch")

	results, err := store.Search(ctx, "p1", "u1", "fox", 20)
	require.NoError(t, err)
	require.Len(t, results, 3)
	indexes := map[int]bool{}
	for _, r := range results {
		assert.Equal(t, 3, r.Metadata.TotalChunks)
		assert.Equal(t, fixed, r.Metadata.Timestamp)
		assert.Empty(t, r.Metadata.Filename)
		indexes[r.Metadata.ChunkIndex] = true
	}
	assert.Len(t, indexes, 3)
}

func TestStore_SearchTiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, defaultGuard())

	_, err := s.Ingest(ctx, "p1", "u1", "alpha", "a.txt")
	require.NoError(t, err)
	_, err = s.Ingest(ctx, "p1", "u1", "alpha", "b.txt")
	require.NoError(t, err)

	results, err := s.Search(ctx, "p1", "u1", "alpha", 5)
	require.NoError(t, err)
	require.Len(t, results, 2, "identical content is stored twice")
	assert.Equal(t, results[0].Score, results[1].Score)
	assert.Equal(t, "a.txt", results[0].Metadata.Filename)
	assert.Equal(t, "b.txt", results[1].Metadata.Filename)
	assert.NotEqual(t, results[0].ID, results[1].ID)
}

func TestStore_ProjectIsolation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, defaultGuard())

	_, err := s.Ingest(ctx, "p1", "u1", "alpha", "")
	require.NoError(t, err)
	_, err = s.Ingest(ctx, "p2", "u2", "alpha beta", "")
	require.NoError(t, err)

	results, err := s.Search(ctx, "p2", "u2", "alpha", 20)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alpha beta", results[0].Content)

	t.Run("other user is denied", func(t *testing.T) {
		_, err := s.Search(ctx, "p1", "u2", "alpha", 5)
		require.ErrorIs(t, err, ErrAuthorization)
		assert.Equal(t, KindAuthorization, KindOf(err))
		assert.NotContains(t, err.Error(), "owned by")

		var se *Error
		require.True(t, errors.As(err, &se))
		assert.Equal(t, ErrAccessDenied.Error(), se.Message())
	})

	t.Run("unknown project reports the same error", func(t *testing.T) {
		_, errUnknown := s.Search(ctx, "missing", "u1", "alpha", 5)
		_, errForeign := s.Search(ctx, "p2", "u1", "alpha", 5)
		require.ErrorIs(t, errUnknown, ErrAuthorization)
		require.ErrorIs(t, errForeign, ErrAuthorization)
		assert.Equal(t, errUnknown.Error(), errForeign.Error())
	})

	t.Run("denied ingest and delete leave state untouched", func(t *testing.T) {
		saves := s.persistence.saveCount()
		_, err := s.Ingest(ctx, "p1", "u2", "gamma", "")
		require.ErrorIs(t, err, ErrAuthorization)
		err = s.DeleteProjectVectors(ctx, "p1", "u2")
		require.ErrorIs(t, err, ErrAuthorization)
		assert.Equal(t, saves, s.persistence.saveCount())
		assert.Equal(t, 1, s.Stats().PerProjectCounts["p1"])
	})
}

func TestStore_ProjectIsolationSameUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, ownerGuard{"p1": "u1", "p2": "u1"})

	_, err := s.Ingest(ctx, "p1", "u1", "alpha", "a.txt")
	require.NoError(t, err)

	results, err := s.Search(ctx, "p2", "u1", "alpha", 20)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = s.Ingest(ctx, "p2", "u1", "alpha beta", "b.txt")
	require.NoError(t, err)

	results, err = s.Search(ctx, "p2", "u1", "alpha", 20)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alpha beta", results[0].Content)

	require.NoError(t, s.DeleteProjectVectors(ctx, "p2", "u1"))
	results, err = s.Search(ctx, "p1", "u1", "alpha", 20)
	require.NoError(t, err)
	require.Len(t, results, 1, "deleting p2 leaves p1 alone")
	assert.Equal(t, "a.txt", results[0].Metadata.Filename)
}

func TestStore_RestoredProjectsKeepTheirOwner(t *testing.T) {
	ctx := context.Background()
	persistence := &memPersistence{}
	embedder := newTableEmbedder()

	open := func(guard OwnershipChecker, logger *zap.Logger) *Store {
		s, err := NewStore(ctx, Config{Dimension: testDim}, persistence, embedder, guard, logger)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	}
	autoGuard := func(owners map[string]string) OwnershipChecker {
		return ownership.NewCachedGuard(ownership.NewRegistry(owners, true), 16, time.Minute)
	}

	first := open(autoGuard(nil), zap.NewNop())
	_, err := first.Ingest(ctx, "p1", "alice", "alpha roadmap", "")
	require.NoError(t, err)
	_, err = first.Search(ctx, "p1", "mallory", "alpha", 5)
	require.ErrorIs(t, err, ErrAuthorization)

	t.Run("claims survive a restart", func(t *testing.T) {
		restarted := open(autoGuard(nil), zap.NewNop())

		_, err := restarted.Search(ctx, "p1", "mallory", "alpha", 5)
		require.ErrorIs(t, err, ErrAuthorization)
		require.ErrorIs(t, restarted.DeleteProjectVectors(ctx, "p1", "mallory"), ErrAuthorization)
		_, err = restarted.Ingest(ctx, "p1", "mallory", "gamma", "")
		require.ErrorIs(t, err, ErrAuthorization)

		results, err := restarted.Search(ctx, "p1", "alice", "alpha", 5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "alpha roadmap", results[0].Content)
	})

	t.Run("configured owner wins over a restored claim", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		restarted := open(autoGuard(map[string]string{"p1": "bob"}), zap.New(core))

		_, err := restarted.Search(ctx, "p1", "alice", "alpha", 5)
		require.ErrorIs(t, err, ErrAuthorization)
		_, err = restarted.Search(ctx, "p1", "bob", "alpha", 5)
		require.NoError(t, err)

		warnings := logs.FilterMessage("restored project claim rejected").All()
		require.Len(t, warnings, 1)
		assert.Equal(t, "p1", warnings[0].ContextMap()["project_id"])
	})
}

func TestStore_Validation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, defaultGuard())

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{
			name: "empty content",
			run: func() error {
				_, err := s.Ingest(ctx, "p1", "u1", "", "")
				return err
			},
			wantErr: ErrEmptyContent,
		},
		{
			name: "whitespace content",
			run: func() error {
				_, err := s.Ingest(ctx, "p1", "u1", " \n\t ", "")
				return err
			},
			wantErr: ErrEmptyContent,
		},
		{
			name: "empty query",
			run: func() error {
				_, err := s.Search(ctx, "p1", "u1", "   ", 5)
				return err
			},
			wantErr: ErrEmptyQuery,
		},
		{
			name: "topK zero",
			run: func() error {
				_, err := s.Search(ctx, "p1", "u1", "alpha", 0)
				return err
			},
			wantErr: ErrInvalidTopK,
		},
		{
			name: "topK above max",
			run: func() error {
				_, err := s.Search(ctx, "p1", "u1", "alpha", 21)
				return err
			},
			wantErr: ErrInvalidTopK,
		},
		{
			name: "empty project id",
			run: func() error {
				_, err := s.Ingest(ctx, "", "u1", "alpha", "")
				return err
			},
			wantErr: ErrInvalidIdentifier,
		},
		{
			name: "control characters in user id",
			run: func() error {
				return s.DeleteProjectVectors(ctx, "p1", "u1\x00")
			},
			wantErr: ErrInvalidIdentifier,
		},
		{
			name: "oversized project id",
			run: func() error {
				_, err := s.Search(ctx, strings.Repeat("p", 129), "u1", "alpha", 5)
				return err
			},
			wantErr: ErrInvalidIdentifier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Zero(t, s.persistence.saveCount(), "validation failures never write a snapshot")
	assert.Zero(t, s.embedder.docCalls, "validation failures never reach the provider")
}

func TestStore_SearchEmptyProject(t *testing.T) {
	s := newTestStore(t, defaultGuard())

	results, err := s.Search(context.Background(), "empty", "u1", "alpha", 5)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestStore_DeleteProjectVectors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, defaultGuard())

	_, err := s.Ingest(ctx, "p1", "u1", "alpha", "")
	require.NoError(t, err)
	_, err = s.Ingest(ctx, "p2", "u2", "alpha", "")
	require.NoError(t, err)

	require.NoError(t, s.DeleteProjectVectors(ctx, "p1", "u1"))

	results, err := s.Search(ctx, "p1", "u1", "alpha", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	others, err := s.Search(ctx, "p2", "u2", "alpha", 5)
	require.NoError(t, err)
	assert.Len(t, others, 1)

	_, persisted := s.persistence.snap["p1"]
	assert.False(t, persisted)

	t.Run("idempotent without snapshot write", func(t *testing.T) {
		saves := s.persistence.saveCount()
		require.NoError(t, s.DeleteProjectVectors(ctx, "p1", "u1"))
		require.NoError(t, s.DeleteProjectVectors(ctx, "empty", "u1"))
		assert.Equal(t, saves, s.persistence.saveCount())
	})
}

func TestStore_IngestRollsBackOnPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, defaultGuard())

	_, err := s.Ingest(ctx, "p1", "u1", "alpha", "")
	require.NoError(t, err)

	s.persistence.failSaves(errors.New("disk full"))

	_, err = s.Ingest(ctx, "p1", "u1", "beta", "")
	require.ErrorIs(t, err, ErrPersistence)
	assert.Contains(t, err.Error(), "disk full")

	_, err = s.Ingest(ctx, "p2", "u2", "gamma", "")
	require.ErrorIs(t, err, ErrPersistence)

	stats := s.Stats()
	assert.Equal(t, 1, stats.TotalProjects)
	assert.Equal(t, 1, stats.TotalVectors)
	assert.NotContains(t, stats.PerProjectCounts, "p2")

	results, err := s.Search(ctx, "p1", "u1", "beta", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alpha", results[0].Content)

	s.persistence.failSaves(nil)
	_, err = s.Ingest(ctx, "p1", "u1", "beta", "")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Stats().TotalVectors)
}

func TestStore_DeleteRollsBackOnPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, defaultGuard())

	_, err := s.Ingest(ctx, "p1", "u1", "alpha", "")
	require.NoError(t, err)

	s.persistence.failSaves(errors.New("read-only filesystem"))
	err = s.DeleteProjectVectors(ctx, "p1", "u1")
	require.ErrorIs(t, err, ErrPersistence)

	results, err := s.Search(ctx, "p1", "u1", "alpha", 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestStore_ProviderFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("provider error", func(t *testing.T) {
		s := newTestStore(t, defaultGuard())
		s.embedder.err = errors.New("connection refused")

		_, err := s.Ingest(ctx, "p1", "u1", "alpha", "")
		require.ErrorIs(t, err, ErrProvider)
		_, err = s.Search(ctx, "p1", "u1", "alpha", 5)
		require.ErrorIs(t, err, ErrProvider)
		assert.Zero(t, s.persistence.saveCount())
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		s := newTestStore(t, defaultGuard())
		s.embedder.table["alpha"] = []float32{1, 0}

		_, err := s.Ingest(ctx, "p1", "u1", "alpha", "")
		require.ErrorIs(t, err, ErrProvider)
		assert.ErrorIs(t, err, ErrDimensionMismatch)

		_, err = s.Search(ctx, "p1", "u1", "alpha", 5)
		require.ErrorIs(t, err, ErrDimensionMismatch)
		assert.Zero(t, s.Stats().TotalVectors)
	})
}

func TestStore_Stats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, defaultGuard())

	stats := s.Stats()
	assert.Zero(t, stats.TotalProjects)
	assert.NotNil(t, stats.PerProjectCounts)
	assert.Equal(t, testDim, stats.Dimension)

	_, err := s.Ingest(ctx, "p1", "u1", "alpha", "")
	require.NoError(t, err)
	_, err = s.Ingest(ctx, "p1", "u1", "beta", "")
	require.NoError(t, err)
	_, err = s.Ingest(ctx, "p2", "u2", "gamma", "")
	require.NoError(t, err)

	stats = s.Stats()
	assert.Equal(t, 2, stats.TotalProjects)
	assert.Equal(t, 3, stats.TotalVectors)
	assert.Equal(t, map[string]int{"p1": 2, "p2": 1}, stats.PerProjectCounts)
}

func TestStore_ReloadsFromPersistence(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, defaultGuard())

	_, err := s.Ingest(ctx, "p1", "u1", "alpha", "")
	require.NoError(t, err)
	_, err = s.Ingest(ctx, "p1", "u1", "beta", "")
	require.NoError(t, err)
	before, err := s.Search(ctx, "p1", "u1", "alpha", 5)
	require.NoError(t, err)

	reopened, err := NewStore(ctx, Config{Dimension: testDim}, s.persistence, s.embedder, defaultGuard(), zap.NewNop())
	require.NoError(t, err)

	after, err := reopened.Search(ctx, "p1", "u1", "alpha", 5)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestNewStore_RejectsInvalidSnapshots(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		snap    Snapshot
		wantErr error
	}{
		{
			name:    "wrong dimension",
			snap:    Snapshot{"p1": {entry("a", "p1", 1, 0)}},
			wantErr: ErrDimensionMismatch,
		},
		{
			name:    "entry filed under another project",
			snap:    Snapshot{"p1": {entry("a", "p2", 1, 0, 0, 0)}},
			wantErr: ErrProjectMismatch,
		},
		{
			name: "duplicate ids",
			snap: Snapshot{
				"p1": {entry("a", "p1", 1, 0, 0, 0)},
				"p2": {entry("a", "p2", 1, 0, 0, 0)},
			},
			wantErr: ErrDuplicateID,
		},
		{
			name:    "missing id",
			snap:    Snapshot{"p1": {entry("", "p1", 1, 0, 0, 0)}},
			wantErr: ErrInvalidSnapshot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStore(ctx, Config{Dimension: testDim}, &memPersistence{snap: tt.snap},
				newTableEmbedder(), defaultGuard(), nil)
			require.ErrorIs(t, err, ErrPersistence)
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("load failure", func(t *testing.T) {
		_, err := NewStore(ctx, Config{Dimension: testDim}, &memPersistence{loadErr: errors.New("corrupt")},
			newTableEmbedder(), defaultGuard(), nil)
		require.ErrorIs(t, err, ErrPersistence)
	})
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, defaultGuard())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Ingest(ctx, "p1", "u1", "alpha", "")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Search(ctx, "p1", "u1", "alpha", 5)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.DeleteProjectVectors(ctx, "p1", "u1"), ErrClosed)
}

func TestStore_DuplicateGeneratedIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, defaultGuard())

	orig := newID
	newID = func() string { return "fixed" }
	t.Cleanup(func() { newID = orig })

	_, err := s.Ingest(ctx, "p1", "u1", "alpha", "")
	require.NoError(t, err)
	_, err = s.Ingest(ctx, "p1", "u1", "beta", "")
	require.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, s.Stats().TotalVectors)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	guard := ownerGuard{}
	for i := range 8 {
		guard[fmt.Sprintf("proj-%d", i)] = fmt.Sprintf("user-%d", i)
	}
	s := newTestStore(t, guard)

	const perProject = 10
	var wg sync.WaitGroup
	for i := range 8 {
		projectID := fmt.Sprintf("proj-%d", i)
		userID := fmt.Sprintf("user-%d", i)

		wg.Add(2)
		go func() {
			defer wg.Done()
			for range perProject {
				_, err := s.Ingest(ctx, projectID, userID, "alpha", "")
				assert.NoError(t, err)
			}
		}()
		go func() {
			defer wg.Done()
			for range perProject {
				results, err := s.Search(ctx, projectID, userID, "alpha", 20)
				assert.NoError(t, err)
				for _, r := range results {
					assert.Equal(t, "alpha", r.Content)
				}
				_ = s.Stats()
			}
		}()
	}
	wg.Wait()

	stats := s.Stats()
	assert.Equal(t, 8, stats.TotalProjects)
	assert.Equal(t, 8*perProject, stats.TotalVectors)
	assert.Equal(t, 8*perProject, s.persistence.snap.Count())
}
