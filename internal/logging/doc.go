// Package logging provides structured zap logging for projectrag.
//
// Logger wraps a zap.Logger with context-aware methods that attach trace,
// project, user and request IDs taken from the context:
//
//	ctx = logging.WithScope(ctx, projectID, userID)
//	logger.Info(ctx, "documents ingested", zap.Int("chunks", n))
//
// Packages that take a plain *zap.Logger receive Logger.Underlying().
//
// Output is JSON or console, redacted by field name and by value pattern.
// Sampling is optional and never drops error-level entries. TraceLevel sits
// below Debug.
//
// TestLogger records entries through zaptest/observer for assertions.
package logging
