package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/projectrag/internal/embeddings"
	"github.com/fyrsmithlabs/projectrag/internal/engine"
	"github.com/fyrsmithlabs/projectrag/internal/logging"
	"github.com/fyrsmithlabs/projectrag/internal/ownership"
	"github.com/fyrsmithlabs/projectrag/internal/persistence"
	"github.com/fyrsmithlabs/projectrag/internal/telemetry"
	"github.com/fyrsmithlabs/projectrag/internal/vectorstore"
)

type testServer struct {
	*Server
	logs *logging.TestLogger
}

// setupTestServer wires a real store on a temp snapshot file, the hash
// embedder and a registry where alice owns proj-a and bob owns proj-b.
func setupTestServer(t *testing.T, cfg *Config) *testServer {
	t.Helper()

	fs, err := persistence.NewFileStore(filepath.Join(t.TempDir(), "vectors.json"), false, nil)
	require.NoError(t, err)
	embedder, err := embeddings.NewHashProvider(64)
	require.NoError(t, err)
	guard := ownership.NewRegistry(map[string]string{"proj-a": "alice", "proj-b": "bob"}, false)

	store, err := vectorstore.NewStore(context.Background(), vectorstore.Config{Dimension: 64, ChunkSize: 200, ChunkOverlap: 20}, fs, embedder, guard, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logs := logging.NewTestLogger()
	srv, err := NewServer(engine.New(store), logs.Logger, cfg)
	require.NoError(t, err)
	return &testServer{Server: srv, logs: logs}
}

func (s *testServer) do(t *testing.T, method, path, userID, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNewServer(t *testing.T) {
	eng := engine.New(&stubStore{})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		srv, err := NewServer(eng, logging.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost:9090", srv.Addr())
		assert.Equal(t, "10M", srv.config.BodyLimit)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(eng, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when engine is nil", func(t *testing.T) {
		_, err := NewServer(nil, logging.NewNop(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "engine cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	srv := setupTestServer(t, nil)

	rec := srv.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthResponse](t, rec).Status)
}

func TestIngestSearchDelete(t *testing.T) {
	srv := setupTestServer(t, nil)

	rec := srv.do(t, http.MethodPost, "/api/v1/projects/proj-a/documents", "alice",
		`{"content":"The quarterly revenue report shows growth in cloud services.","filename":"report.txt"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ingest := decode[engine.IngestResponse](t, rec)
	assert.True(t, ingest.Success)
	assert.Equal(t, 1, ingest.ChunksProcessed)

	rec = srv.do(t, http.MethodPost, "/api/v1/projects/proj-a/search", "alice", `{"query":"cloud revenue","top_k":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	search := decode[engine.SearchResponse](t, rec)
	require.True(t, search.Success)
	require.Len(t, search.Results, 1)
	assert.Contains(t, search.Results[0].Content, "quarterly revenue")
	assert.Equal(t, "report.txt", search.Results[0].Metadata.Filename)

	rec = srv.do(t, http.MethodDelete, "/api/v1/projects/proj-a/vectors", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[engine.DeleteResponse](t, rec).Success)

	rec = srv.do(t, http.MethodPost, "/api/v1/projects/proj-a/search", "alice", `{"query":"cloud revenue"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[engine.SearchResponse](t, rec).Results)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
}

func TestProjectIsolation(t *testing.T) {
	srv := setupTestServer(t, nil)

	rec := srv.do(t, http.MethodPost, "/api/v1/projects/proj-a/documents", "alice", `{"content":"alice private notes"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	for _, tc := range []struct {
		name, method, path, user, body string
	}{
		{"other user searches", http.MethodPost, "/api/v1/projects/proj-a/search", "bob", `{"query":"notes"}`},
		{"other user ingests", http.MethodPost, "/api/v1/projects/proj-a/documents", "bob", `{"content":"x"}`},
		{"other user deletes", http.MethodDelete, "/api/v1/projects/proj-a/vectors", "bob", ""},
		{"unknown project", http.MethodPost, "/api/v1/projects/proj-zzz/search", "alice", `{"query":"notes"}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := srv.do(t, tc.method, tc.path, tc.user, tc.body)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, "project not found or access denied", resp.Error)
			assert.Equal(t, "authorization", resp.Code)
		})
	}

	rec = srv.do(t, http.MethodPost, "/api/v1/projects/proj-a/search", "alice", `{"query":"notes"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[engine.SearchResponse](t, rec).Results, 1, "rejected delete must not remove data")
}

func TestValidationErrors(t *testing.T) {
	srv := setupTestServer(t, nil)

	tests := []struct {
		name, path, user, body string
	}{
		{"malformed body", "/api/v1/projects/proj-a/documents", "alice", `{"content":`},
		{"empty content", "/api/v1/projects/proj-a/documents", "alice", `{"content":"   "}`},
		{"missing user", "/api/v1/projects/proj-a/documents", "", `{"content":"hello"}`},
		{"empty query", "/api/v1/projects/proj-a/search", "alice", `{"query":" "}`},
		{"top_k too large", "/api/v1/projects/proj-a/search", "alice", `{"query":"hello","top_k":500}`},
		{"negative top_k", "/api/v1/projects/proj-a/search", "alice", `{"query":"hello","top_k":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodPost, tt.path, tt.user, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := decode[ErrorResponse](t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, "validation", resp.Code)
		})
	}
}

func TestHandleStats(t *testing.T) {
	t.Run("hidden without token", func(t *testing.T) {
		srv := setupTestServer(t, nil)
		rec := srv.do(t, http.MethodGet, "/api/v1/stats", "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("requires bearer token", func(t *testing.T) {
		srv := setupTestServer(t, &Config{Host: "localhost", Port: 9090, StatsToken: "ops-token"})

		rec := srv.do(t, http.MethodGet, "/api/v1/stats", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = srv.do(t, http.MethodGet, "/api/v1/stats", "", "", "Authorization", "Bearer wrong")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		ingest := srv.do(t, http.MethodPost, "/api/v1/projects/proj-b/documents", "bob", `{"content":"bob data"}`)
		require.Equal(t, http.StatusCreated, ingest.Code)

		rec = srv.do(t, http.MethodGet, "/api/v1/stats", "", "", "Authorization", "Bearer ops-token")
		require.Equal(t, http.StatusOK, rec.Code)
		stats := decode[vectorstore.Stats](t, rec)
		assert.Equal(t, 1, stats.TotalProjects)
		assert.Equal(t, 1, stats.TotalVectors)
		assert.Equal(t, map[string]int{"proj-b": 1}, stats.PerProjectCounts)
		assert.Equal(t, 64, stats.Dimension)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv := setupTestServer(t, nil)

	rec := srv.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRequestLogging(t *testing.T) {
	srv := setupTestServer(t, nil)

	rec := srv.do(t, http.MethodPost, "/api/v1/projects/proj-a/search", "alice", `{"query":"anything"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	srv.logs.AssertLogged(t, zapcore.InfoLevel, "http request")
	srv.logs.AssertField(t, "http request", "route", "/api/v1/projects/:project_id/search")
	srv.logs.AssertField(t, "http request", "project.id", "proj-a")
	srv.logs.AssertField(t, "http request", "request.id", rec.Header().Get("X-Request-ID"))
	srv.logs.AssertNeverLogged(t, "anything")
}

func TestRequestTracing(t *testing.T) {
	rec := telemetry.NewRecorder(t)
	srv := setupTestServer(t, nil)

	resp := srv.do(t, http.MethodPost, "/api/v1/projects/proj-a/documents", "alice", `{"content":"alice private notes"}`)
	require.Equal(t, http.StatusCreated, resp.Code)

	server := rec.Span(t, "POST /api/v1/projects/:project_id/documents")
	ingest := rec.Span(t, "Store.Ingest")
	traceID := server.SpanContext().TraceID()
	assert.Equal(t, traceID, ingest.SpanContext().TraceID())
	assert.Equal(t, server.SpanContext().SpanID(), ingest.Parent().SpanID())
	rec.AssertSpanAttributes(t, "POST /api/v1/projects/:project_id/documents", map[string]any{
		"http.route":                "/api/v1/projects/:project_id/documents",
		"http.response.status_code": http.StatusCreated,
	})

	srv.logs.AssertTraceCorrelation(t, "http request", traceID.String())
	srv.logs.AssertNeverLogged(t, "alice private notes")
	assert.Equal(t, int64(1), rec.Sum(t, "projectrag.http.requests_total"))
}

func TestRateLimit(t *testing.T) {
	srv, err := NewServer(engine.New(&stubStore{}), logging.NewNop(), &Config{Host: "localhost", Port: 9090, RateLimit: 1})
	require.NoError(t, err)

	send := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"query":"q"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderUserID, "alice")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("/api/v1/projects/p/search"))
	assert.Equal(t, http.StatusTooManyRequests, send("/api/v1/projects/p/search"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "health is exempt")

	t.Run("unidentifiable client is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/p/search", strings.NewReader(`{"query":"q"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderUserID, "alice")
		req.RemoteAddr = ""
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "validation", body.Code)
		assert.Equal(t, "unable to identify client", body.Error)
	})
}

func TestStatusForCode(t *testing.T) {
	tests := map[string]int{
		"validation":    http.StatusBadRequest,
		"authorization": http.StatusNotFound,
		"persistence":   http.StatusInternalServerError,
		"provider":      http.StatusBadGateway,
		"internal":      http.StatusInternalServerError,
		"":              http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, statusForCode(code), code)
	}
}

func TestProviderFailureIs502(t *testing.T) {
	store := &stubStore{searchErr: &vectorstore.Error{Op: "search", Kind: vectorstore.KindProvider, Err: vectorstore.ErrDimensionMismatch}}
	srv, err := NewServer(engine.New(store), logging.NewNop(), nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/p/search", strings.NewReader(`{"query":"q"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "provider", decode[ErrorResponse](t, rec).Code)
}

// stubStore satisfies engine.VectorStore without embedding anything.
type stubStore struct {
	searchErr error
}

func (s *stubStore) Ingest(context.Context, string, string, string, string) (*vectorstore.IngestResult, error) {
	return &vectorstore.IngestResult{ChunksProcessed: 1}, nil
}

func (s *stubStore) Search(context.Context, string, string, string, int) ([]vectorstore.SearchResult, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return []vectorstore.SearchResult{}, nil
}

func (s *stubStore) DeleteProjectVectors(context.Context, string, string) error { return nil }

func (s *stubStore) Stats() vectorstore.Stats { return vectorstore.Stats{} }
