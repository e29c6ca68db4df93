// Package reconcile applies component property and collection mutations to a
// live scene through a Host and verifies them by reading the scene back.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/slighter12/cocos-mcp-go/logger"
)

// SceneDomain is the host message domain every engine request targets.
const SceneDomain = "scene"

// Host sends one scene-addressed RPC and returns its JSON result. A nil error
// does not imply the scene changed.
type Host interface {
	Request(ctx context.Context, domain, method string, payload map[string]any) (json.RawMessage, error)
}

// HostFunc adapts a function to Host.
type HostFunc func(ctx context.Context, domain, method string, payload map[string]any) (json.RawMessage, error)

func (f HostFunc) Request(ctx context.Context, domain, method string, payload map[string]any) (json.RawMessage, error) {
	return f(ctx, domain, method, payload)
}

// Timing holds the settle waits inserted between a write and the read that
// checks it. They are heuristics; the host gives no completion signal.
type Timing struct {
	WriteSettle   time.Duration
	RemovalSettle time.Duration
}

// DefaultTiming returns the settle waits used against a live editor.
func DefaultTiming() Timing {
	return Timing{
		WriteSettle:   200 * time.Millisecond,
		RemovalSettle: 100 * time.Millisecond,
	}
}

// Result is what every public engine operation returns.
type Result struct {
	Success     bool           `json:"success"`
	Message     string         `json:"message,omitempty"`
	Error       string         `json:"error,omitempty"`
	Instruction string         `json:"instruction,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Kind        Class          `json:"errorKind,omitempty"`
}

// Engine is stateless between calls; every operation re-reads the scene.
type Engine struct {
	host   Host
	timing Timing
	log    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTiming overrides the settle waits.
func WithTiming(t Timing) Option {
	return func(e *Engine) { e.timing = t }
}

// WithLogger sets the logger operation records are written to.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine returns an engine that talks to host.
func NewEngine(host Host, opts ...Option) *Engine {
	e := &Engine{
		host:   host,
		timing: DefaultTiming(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Timing returns the engine's settle configuration.
func (e *Engine) Timing() Timing {
	return e.timing
}

func (e *Engine) logger() *slog.Logger {
	if e.log != nil {
		return e.log
	}
	return logger.Default()
}

// operation returns a logger scoped to one engine call.
func (e *Engine) operation(name string, attrs ...any) *slog.Logger {
	args := append([]any{"op", name, "op_id", uuid.NewString()}, attrs...)
	return e.logger().With(args...)
}

// guard turns a panic inside fn into a failed Result.
func (e *Engine) guard(log *slog.Logger, fn func() Result) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Engine operation panicked", "panic", r, "stack", string(debug.Stack()))
			res = Result{
				Success: false,
				Error:   fmt.Sprintf("internal error: %v", r),
				Kind:    ClassInternal,
			}
		}
	}()
	return fn()
}

// settle waits d or until ctx is done.
func (e *Engine) settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Engine) request(ctx context.Context, method string, payload map[string]any) (json.RawMessage, error) {
	if e.host == nil {
		return nil, &Error{Class: ClassHost, Message: "scene host is not configured"}
	}
	return e.host.Request(ctx, SceneDomain, method, payload)
}
