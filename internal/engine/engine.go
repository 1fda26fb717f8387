// Package engine is the structured-result boundary around the vector store.
//
// Every call returns a response value with Success set; failures carry a
// caller-safe Error message and a Code naming the error kind. No error or
// panic escapes to the caller.
package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectrag/internal/vectorstore"
)

// DefaultTopK is used when Search is called with topK == 0.
const DefaultTopK = 5

// VectorStore is the store surface the engine drives. *vectorstore.Store
// implements it.
type VectorStore interface {
	Ingest(ctx context.Context, projectID, userID, content, filename string) (*vectorstore.IngestResult, error)
	Search(ctx context.Context, projectID, userID, query string, topK int) ([]vectorstore.SearchResult, error)
	DeleteProjectVectors(ctx context.Context, projectID, userID string) error
	Stats() vectorstore.Stats
}

// IngestResponse is the result of Ingest.
type IngestResponse struct {
	Success         bool   `json:"success"`
	ChunksProcessed int    `json:"chunksProcessed"`
	Error           string `json:"error,omitempty"`
	Code            string `json:"code,omitempty"`
}

// SearchResponse is the result of Search. Results is never nil on success.
type SearchResponse struct {
	Success bool                       `json:"success"`
	Results []vectorstore.SearchResult `json:"results"`
	Error   string                     `json:"error,omitempty"`
	Code    string                     `json:"code,omitempty"`
}

// DeleteResponse is the result of DeleteProjectVectors.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Engine converts store errors into structured responses.
type Engine struct {
	store       VectorStore
	defaultTopK int
	logger      *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDefaultTopK sets the topK used when a search does not specify one.
func WithDefaultTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.defaultTopK = k
		}
	}
}

// WithLogger sets the logger used for internal failures.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine over store.
func New(store VectorStore, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		defaultTopK: DefaultTopK,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ingest chunks, embeds and stores content under projectID.
func (e *Engine) Ingest(ctx context.Context, projectID, userID, content, filename string) (resp IngestResponse) {
	defer e.recoverInto("Ingest", func(msg, code string) {
		resp = IngestResponse{Error: msg, Code: code}
	})

	res, err := e.store.Ingest(ctx, projectID, userID, content, filename)
	if err != nil {
		msg, code := e.describe("Ingest", err)
		return IngestResponse{Error: msg, Code: code}
	}
	return IngestResponse{Success: true, ChunksProcessed: res.ChunksProcessed}
}

// Search ranks projectID's entries against query. topK == 0 selects the
// default; any other value outside the store's range is a validation failure.
func (e *Engine) Search(ctx context.Context, projectID, userID, query string, topK int) (resp SearchResponse) {
	defer e.recoverInto("Search", func(msg, code string) {
		resp = SearchResponse{Error: msg, Code: code}
	})

	if topK == 0 {
		topK = e.defaultTopK
	}
	results, err := e.store.Search(ctx, projectID, userID, query, topK)
	if err != nil {
		msg, code := e.describe("Search", err)
		return SearchResponse{Error: msg, Code: code}
	}
	if results == nil {
		results = []vectorstore.SearchResult{}
	}
	return SearchResponse{Success: true, Results: results}
}

// DeleteProjectVectors removes every entry of projectID.
func (e *Engine) DeleteProjectVectors(ctx context.Context, projectID, userID string) (resp DeleteResponse) {
	defer e.recoverInto("DeleteProjectVectors", func(msg, code string) {
		resp = DeleteResponse{Error: msg, Code: code}
	})

	if err := e.store.DeleteProjectVectors(ctx, projectID, userID); err != nil {
		msg, code := e.describe("DeleteProjectVectors", err)
		return DeleteResponse{Error: msg, Code: code}
	}
	return DeleteResponse{Success: true}
}

// Stats returns store diagnostics. It performs no authorization.
func (e *Engine) Stats() vectorstore.Stats {
	return e.store.Stats()
}

// describe turns err into a caller-safe message and a kind code.
func (e *Engine) describe(op string, err error) (string, string) {
	var se *vectorstore.Error
	if !errors.As(err, &se) {
		e.logger.Error("unclassified store error", zap.String("op", op), zap.Error(err))
		return "internal error", string(vectorstore.KindInternal)
	}

	switch se.Kind {
	case vectorstore.KindPersistence, vectorstore.KindInternal:
		e.logger.Error("store operation failed",
			zap.String("op", op),
			zap.String("kind", string(se.Kind)),
			zap.Error(err),
		)
	case vectorstore.KindProvider:
		e.logger.Warn("embedding provider failed", zap.String("op", op), zap.Error(err))
	}
	return se.Message(), string(se.Kind)
}

func (e *Engine) recoverInto(op string, set func(msg, code string)) {
	r := recover()
	if r == nil {
		return
	}
	e.logger.Error("recovered panic in engine",
		zap.String("op", op),
		zap.String("panic", fmt.Sprint(r)),
		zap.Stack("stack"),
	)
	set("internal error", string(vectorstore.KindInternal))
}
