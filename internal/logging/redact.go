package logging

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/projectrag/internal/config"
)

const (
	redactedKey     = "[REDACTED]"
	redactedPattern = "[REDACTED:pattern]"
	maxPatternLen   = 200
)

// markerRe matches values that were redacted at the call site.
var markerRe = regexp.MustCompile(`^\[REDACTED(:\d+)?\]$`)

// Secret logs a config.Secret as its length only.
func Secret(key string, val config.Secret) zap.Field {
	return RedactedString(key, val.Value())
}

// RedactedString logs val as its length only.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, fmt.Sprintf("[REDACTED:%d]", len(val)))
}

// redactor scrubs sensitive keys and value patterns out of log fields.
type redactor struct {
	keys     []string
	patterns []*regexp.Regexp
}

// newRedactor compiles cfg. It returns nil when redaction is disabled.
func newRedactor(cfg RedactionConfig) (*redactor, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	r := &redactor{}
	for _, k := range cfg.Fields {
		r.keys = append(r.keys, strings.ToLower(k))
	}
	for _, p := range cfg.Patterns {
		if len(p) > maxPatternLen {
			return nil, fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLen, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// sensitive reports whether key is a configured key or ends with one after
// a separator, so both openai.api_key and stats_token match.
func (r *redactor) sensitive(key string) bool {
	key = strings.ToLower(key)
	for _, k := range r.keys {
		if key == k {
			return true
		}
		if len(key) > len(k) && strings.HasSuffix(key, k) {
			switch key[len(key)-len(k)-1] {
			case '_', '.', '-':
				return true
			}
		}
	}
	return false
}

func (r *redactor) scrub(s string) string {
	for _, re := range r.patterns {
		s = re.ReplaceAllString(s, redactedPattern)
	}
	return s
}

func (r *redactor) field(f zapcore.Field) zapcore.Field {
	if f.Type == zapcore.StringType && markerRe.MatchString(f.String) {
		return f
	}
	if r.sensitive(f.Key) {
		return zap.String(f.Key, redactedKey)
	}
	switch f.Type {
	case zapcore.StringType:
		f.String = r.scrub(f.String)
	case zapcore.ByteStringType:
		if b, ok := f.Interface.([]byte); ok {
			return zap.String(f.Key, r.scrub(string(b)))
		}
	case zapcore.ErrorType:
		if err, ok := f.Interface.(error); ok {
			return zap.String(f.Key, r.scrub(err.Error()))
		}
	}
	return f
}

func (r *redactor) fields(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		out[i] = r.field(f)
	}
	return out
}

// redactingCore scrubs messages, per-call fields and fields bound with With
// before they reach the wrapped core.
type redactingCore struct {
	zapcore.Core
	r *redactor
}

// newRedactingCore wraps core with the rules in cfg. A disabled config
// returns core unchanged.
func newRedactingCore(core zapcore.Core, cfg RedactionConfig) (zapcore.Core, error) {
	r, err := newRedactor(cfg)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return core, nil
	}
	return &redactingCore{Core: core, r: r}, nil
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(c.r.fields(fields)), r: c.r}
}

func (c *redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = c.r.scrub(ent.Message)
	return c.Core.Write(ent, c.r.fields(fields))
}
