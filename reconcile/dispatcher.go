package reconcile

import (
	"context"
	"errors"
	"log/slog"
)

// Attempt is one candidate RPC of a fallback chain.
type Attempt struct {
	Name string
	Run  func(ctx context.Context) error
}

// ErrChainExhausted is returned by RunChain when every attempt rejected.
var ErrChainExhausted = errors.New("all attempts rejected")

// RunChain executes attempts in order and stops at the first that does not
// reject. It returns the name of that attempt. A successful attempt only
// means the host accepted the call.
func RunChain(ctx context.Context, log *slog.Logger, attempts []Attempt) (string, error) {
	var errs []error
	for i, attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		err := attempt.Run(ctx)
		if err == nil {
			log.Info("Attempt accepted", "attempt", attempt.Name, "position", i+1)
			return attempt.Name, nil
		}
		log.Warn("Attempt rejected", "attempt", attempt.Name, "position", i+1, "error", err)
		errs = append(errs, err)
	}
	return "", errors.Join(append([]error{ErrChainExhausted}, errs...)...)
}

// apply writes one typed dump to path on nodeID.
func (e *Engine) apply(ctx context.Context, log *slog.Logger, nodeID, path string, dump map[string]any) error {
	log.Debug("Dispatching set-property", "path", path, "dump", dump)
	_, err := e.request(ctx, "set-property", map[string]any{
		"uuid": nodeID,
		"path": path,
		"dump": dump,
	})
	if err != nil {
		log.Warn("set-property rejected", "path", path, "error", err)
		return hostError(err, "set-property %s on node %s failed", path, nodeID)
	}
	return nil
}

// attempt builds an Attempt that sends method with payload.
func (e *Engine) attempt(name, method string, payload map[string]any) Attempt {
	return Attempt{
		Name: name,
		Run: func(ctx context.Context) error {
			_, err := e.request(ctx, method, payload)
			return err
		},
	}
}
