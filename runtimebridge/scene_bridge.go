package runtimebridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/slighter12/cocos-mcp-go/logger"
)

// SceneRequestCommand is the command name the plugin executes as
// Editor.Message.request(domain, method, payload).
const SceneRequestCommand = "scene-request"

// HostError is a scene request the bridge could not complete.
type HostError struct {
	Method  string
	Reason  string
	Message string
}

func (e *HostError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("scene request %s failed (%s): %s", e.Method, e.Reason, e.Message)
	}
	return fmt.Sprintf("scene request %s failed (%s)", e.Method, e.Reason)
}

// SceneBridge forwards scene RPCs to the freshest registered editor plugin.
type SceneBridge struct {
	store   *Store
	broker  *CommandBroker
	limiter *rate.Limiter
	timeout time.Duration
	log     *slog.Logger
}

// BridgeOption configures a SceneBridge.
type BridgeOption func(*SceneBridge)

// WithRateLimit paces outgoing requests. rps <= 0 disables pacing.
func WithRateLimit(rps float64, burst int) BridgeOption {
	return func(b *SceneBridge) {
		if burst < 1 {
			burst = 1
		}
		limit := rate.Limit(rps)
		if rps <= 0 {
			limit = rate.Inf
		}
		b.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithCommandTimeout bounds how long one request waits for the plugin ack.
func WithCommandTimeout(d time.Duration) BridgeOption {
	return func(b *SceneBridge) { b.timeout = d }
}

// WithBridgeLogger sets the bridge logger.
func WithBridgeLogger(l *slog.Logger) BridgeOption {
	return func(b *SceneBridge) {
		if l != nil {
			b.log = l
		}
	}
}

// NewSceneBridge builds a bridge over store and broker. Nil arguments fall
// back to the package singletons.
func NewSceneBridge(store *Store, broker *CommandBroker, opts ...BridgeOption) *SceneBridge {
	b := &SceneBridge{
		store:   store,
		broker:  broker,
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *SceneBridge) currentStore() *Store {
	if b.store != nil {
		return b.store
	}
	return DefaultStore()
}

func (b *SceneBridge) currentBroker() *CommandBroker {
	if b.broker != nil {
		return b.broker
	}
	return DefaultCommandBroker()
}

func (b *SceneBridge) logger() *slog.Logger {
	if b.log != nil {
		return b.log
	}
	return logger.Default()
}

// Request sends one scene RPC and returns the JSON value the editor
// resolved it with.
func (b *SceneBridge) Request(ctx context.Context, domain, method string, payload map[string]any) (json.RawMessage, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, &HostError{Method: method, Reason: "rate_limited", Message: err.Error()}
	}

	reg, ok, reason := b.currentStore().LatestFresh(time.Now())
	if !ok {
		return nil, &HostError{Method: method, Reason: reason}
	}

	started := time.Now()
	ack, ok, reason := b.currentBroker().DispatchAndWait(ctx, reg.SessionID, SceneRequestCommand, map[string]any{
		"domain":  domain,
		"method":  method,
		"payload": payload,
	}, b.timeout)
	log := b.logger().With("method", method, "session_id", reg.SessionID, "elapsed", time.Since(started))
	if !ok {
		log.Warn("Scene request not delivered", "reason", reason)
		return nil, &HostError{Method: method, Reason: reason}
	}
	if !ack.Success {
		log.Warn("Scene request rejected by editor", "error", ack.Error)
		return nil, &HostError{Method: method, Reason: "editor_rejected", Message: ack.Error}
	}
	log.Debug("Scene request completed")

	raw, err := json.Marshal(ack.Result["value"])
	if err != nil {
		return nil, &HostError{Method: method, Reason: "result_unreadable", Message: err.Error()}
	}
	return raw, nil
}
