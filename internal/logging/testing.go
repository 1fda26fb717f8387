package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger that keeps every entry in memory, down to
// TraceLevel, for assertions in tests.
type TestLogger struct {
	*Logger
	logs *observer.ObservedLogs
}

// NewTestLogger creates a TestLogger.
func NewTestLogger() *TestLogger {
	core, logs := observer.New(TraceLevel)
	return &TestLogger{
		Logger: &Logger{zap: zap.New(core), config: NewDefaultConfig()},
		logs:   logs,
	}
}

// Entries returns the entries whose message is exactly msg.
func (t *TestLogger) Entries(msg string) []observer.LoggedEntry {
	var out []observer.LoggedEntry
	for _, e := range t.logs.All() {
		if e.Message == msg {
			out = append(out, e)
		}
	}
	return out
}

// AssertLogged fails tb unless msg was logged at level.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	for _, e := range t.Entries(msg) {
		if e.Level == level {
			return
		}
	}
	tb.Errorf("no %v entry %q", level, msg)
}

// AssertField fails tb unless some entry msg has key == want. Integer
// fields compare as int64.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	if i, ok := want.(int); ok {
		want = int64(i)
	}
	var seen []any
	for _, e := range t.Entries(msg) {
		got, ok := e.ContextMap()[key]
		if ok && got == want {
			return
		}
		if ok {
			seen = append(seen, got)
		}
	}
	tb.Errorf("entry %q: field %q = %v, want %v", msg, key, seen, want)
}

// AssertTraceCorrelation fails tb unless an entry msg carries traceID, tying
// the log line to the spans of the same request.
func (t *TestLogger) AssertTraceCorrelation(tb testing.TB, msg, traceID string) {
	tb.Helper()
	t.AssertField(tb, msg, "trace_id", traceID)
}

// AssertNeverLogged fails tb if text appears in any message or string field.
// Use it for document content, queries and secrets.
func (t *TestLogger) AssertNeverLogged(tb testing.TB, text string) {
	tb.Helper()
	for _, e := range t.logs.All() {
		if strings.Contains(e.Message, text) {
			tb.Errorf("%q logged in message %q", text, e.Message)
		}
		for key, v := range e.ContextMap() {
			if s, ok := v.(string); ok && strings.Contains(s, text) {
				tb.Errorf("%q logged in field %q of %q", text, key, e.Message)
			}
		}
	}
}
