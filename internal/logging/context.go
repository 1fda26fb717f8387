package logging

import (
	"context"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if scope, ok := ScopeFromContext(ctx); ok {
		fields = append(fields, zap.String("project.id", scope.ProjectID))
		if scope.UserID != "" {
			fields = append(fields, zap.String("user.id", scope.UserID))
		}
	}

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

type scopeCtxKey struct{}
type requestCtxKey struct{}

// Scope is the project and user a request acts for.
type Scope struct {
	ProjectID string
	UserID    string
}

const maxIDLen = 128

// loggable reports whether id is safe to attach as a log field.
func loggable(id string) bool {
	return id != "" && len(id) <= maxIDLen && utf8.ValidString(id)
}

// WithScope adds the project and user to context. An empty or oversized
// project ID leaves ctx unchanged; an unusable user ID is dropped.
func WithScope(ctx context.Context, projectID, userID string) context.Context {
	if !loggable(projectID) {
		return ctx
	}
	if !loggable(userID) {
		userID = ""
	}
	return context.WithValue(ctx, scopeCtxKey{}, Scope{ProjectID: projectID, UserID: userID})
}

// ScopeFromContext extracts the scope from context.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeCtxKey{}).(Scope)
	return s, ok
}

// WithRequestID adds request ID to context. Unusable IDs are ignored.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if !loggable(requestID) {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
