package reconcile

import (
	"context"

	"github.com/slighter12/cocos-mcp-go/property"
)

// Verification is the outcome of reading a written field back.
type Verification struct {
	Verified      bool `json:"verified"`
	ActualValue   any  `json:"actualValue"`
	OriginalValue any  `json:"originalValue"`
}

// Verify re-queries nodeID and compares the current value of field on the
// component of kind against expected using property.Equal.
func (e *Engine) Verify(ctx context.Context, nodeID, kind, field string, expected, original any) (Verification, error) {
	v := Verification{OriginalValue: original}

	_, component, err := e.locate(ctx, nodeID, kind)
	if err != nil {
		return v, err
	}
	inf := property.Infer(component, field)
	if !inf.Exists {
		return v, nil
	}
	v.ActualValue = inf.RawValue
	v.Verified = property.Equal(expected, inf.RawValue)
	return v, nil
}
