package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slighter12/cocos-mcp-go/property"
)

// resolveComponentReference turns a target node id into the wire reference of
// the component the slot accepts. The slot type comes from the field's
// descriptor; the component id is read from the target node's dump.
func (e *Engine) resolveComponentReference(ctx context.Context, log *slog.Logger, field string, inf property.Inference, value any) (any, string, error) {
	expectedType, ok := property.ExpectedComponentType(inf.Meta)
	if !ok {
		return nil, "", &Error{
			Class:   ClassAmbiguousReference,
			Message: fmt.Sprintf("cannot derive the component type accepted by %s", field),
		}
	}

	targetID, err := referenceTarget(value)
	if err != nil {
		return nil, "", err
	}
	if targetID == "" {
		log.Info("Clearing component reference", "expected_type", expectedType)
		return nil, expectedType, nil
	}

	target, err := e.queryNode(ctx, targetID)
	if err != nil {
		return nil, "", err
	}
	component, ok := target.Find(expectedType)
	if !ok {
		available := target.ComponentKinds()
		return nil, "", &Error{
			Class:     ClassAmbiguousReference,
			Message:   fmt.Sprintf("node %s has no %s component for %s (available: %s)", targetID, expectedType, field, listOrNone(available)),
			Available: available,
			Expected:  expectedType,
		}
	}
	if component.Identity == "" {
		return nil, "", &Error{
			Class:     ClassAmbiguousReference,
			Message:   fmt.Sprintf("%s on node %s reports no scene id", expectedType, targetID),
			Available: target.ComponentKinds(),
			Expected:  expectedType,
		}
	}
	log.Debug("Resolved component reference", "target", targetID, "expected_type", expectedType, "component_id", component.Identity)
	return property.Wrap(component.Identity), expectedType, nil
}

// referenceTarget accepts a node id as a string or a {uuid} object.
func referenceTarget(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	case map[string]any:
		if id, ok := property.Unwrap(v); ok {
			return strings.TrimSpace(id), nil
		}
	}
	return "", &Error{
		Class:    ClassShapeMismatch,
		Message:  fmt.Sprintf("component reference must name the target node, got %T", value),
		Expected: `"<node uuid>" or {uuid: "<node uuid>"}`,
	}
}
