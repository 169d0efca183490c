// Package gomindlog provides the engine's layered logger: console output
// that always works, optional JSON formatting for aggregation, and a
// component-aware wrapper so subsystems can be filtered independently.
package gomindlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger is the minimal logging interface used across the engine.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})

	InfoWithContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, fields map[string]interface{})
	DebugWithContext(ctx context.Context, msg string, fields map[string]interface{})
}

// ComponentAwareLogger lets a subsystem tag its log lines with a stable
// component identifier (e.g. "engine/generator", "helper/indexer").
type ComponentAwareLogger interface {
	Logger
	WithComponent(component string) Logger
}

// NoOpLogger discards everything. Used as the zero-value default.
type NoOpLogger struct{}

func (NoOpLogger) Info(string, map[string]interface{})                              {}
func (NoOpLogger) Error(string, map[string]interface{})                             {}
func (NoOpLogger) Warn(string, map[string]interface{})                              {}
func (NoOpLogger) Debug(string, map[string]interface{})                             {}
func (NoOpLogger) InfoWithContext(context.Context, string, map[string]interface{})  {}
func (NoOpLogger) ErrorWithContext(context.Context, string, map[string]interface{}) {}
func (NoOpLogger) WarnWithContext(context.Context, string, map[string]interface{})  {}
func (NoOpLogger) DebugWithContext(context.Context, string, map[string]interface{}) {}

// RateLimiter caps how often a repeating event (e.g. error logs during an
// outage) may fire, one token per interval.
type RateLimiter struct {
	interval time.Duration
	mu       sync.Mutex
	last     time.Time
}

func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{interval: interval}
}

func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if now.Sub(r.last) < r.interval {
		return false
	}
	r.last = now
	return true
}

// ProductionLogger is the engine's default Logger implementation: text
// locally, JSON under Kubernetes or when explicitly requested, with
// error-log rate limiting to avoid flooding during incidents.
type ProductionLogger struct {
	component    string
	format       string
	debug        bool
	output       *os.File
	errorLimiter *RateLimiter
	mu           sync.Mutex
}

// NewProductionLogger builds a logger using environment-driven
// configuration, following the precedence explicit > env > default.
func NewProductionLogger(component string) *ProductionLogger {
	format := "text"
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		format = "json"
	}
	if v := os.Getenv("CONSENSUS_LOG_FORMAT"); v != "" {
		format = v
	}
	debug := strings.EqualFold(os.Getenv("CONSENSUS_LOG_LEVEL"), "DEBUG") ||
		os.Getenv("CONSENSUS_DEBUG") == "true"

	return &ProductionLogger{
		component:    component,
		format:       format,
		debug:        debug,
		output:       os.Stdout,
		errorLimiter: NewRateLimiter(time.Second),
	}
}

func (l *ProductionLogger) WithComponent(component string) Logger {
	return &ProductionLogger{
		component:    component,
		format:       l.format,
		debug:        l.debug,
		output:       l.output,
		errorLimiter: l.errorLimiter,
	}
}

func (l *ProductionLogger) log(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == "json" {
		rec := map[string]interface{}{
			"ts":        time.Now().UTC().Format(time.RFC3339Nano),
			"level":     level,
			"component": l.component,
			"msg":       msg,
		}
		for k, v := range fields {
			rec[k] = v
		}
		enc, err := json.Marshal(rec)
		if err != nil {
			fmt.Fprintf(l.output, "%s [%s] %s (marshal error: %v)\n", level, l.component, msg, err)
			return
		}
		fmt.Fprintln(l.output, string(enc))
		return
	}

	fmt.Fprintf(l.output, "%s %-5s [%s] %s %v\n", time.Now().UTC().Format(time.RFC3339), level, l.component, msg, fields)
}

func (l *ProductionLogger) Info(msg string, fields map[string]interface{}) { l.log("INFO", msg, fields) }
func (l *ProductionLogger) Warn(msg string, fields map[string]interface{}) { l.log("WARN", msg, fields) }

func (l *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	if l.errorLimiter != nil && !l.errorLimiter.Allow() {
		return
	}
	l.log("ERROR", msg, fields)
}

func (l *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if !l.debug {
		return
	}
	l.log("DEBUG", msg, fields)
}

func (l *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.Info(msg, withTrace(ctx, fields))
}
func (l *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.Error(msg, withTrace(ctx, fields))
}
func (l *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.Warn(msg, withTrace(ctx, fields))
}
func (l *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.Debug(msg, withTrace(ctx, fields))
}

func withTrace(ctx context.Context, fields map[string]interface{}) map[string]interface{} {
	if ctx == nil {
		return fields
	}
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	if rid, ok := ctx.Value(requestIDKey{}).(string); ok && rid != "" {
		out["request_id"] = rid
	}
	return out
}

type requestIDKey struct{}

// WithRequestID tags a context with a correlation id that *WithContext
// log calls will surface automatically.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}
