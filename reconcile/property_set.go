package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slighter12/cocos-mcp-go/property"
)

// SetPropertyRequest is the argument object of SetComponentProperty.
type SetPropertyRequest struct {
	NodeUUID      string `json:"nodeUuid"`
	ComponentType string `json:"componentType"`
	Property      string `json:"property"`
	PropertyType  string `json:"propertyType"`
	Value         any    `json:"value"`
}

var nodeTransformFields = map[string]bool{
	"position":    true,
	"rotation":    true,
	"scale":       true,
	"eulerAngles": true,
	"angle":       true,
}

var nodeBasicFields = map[string]bool{
	"name":     true,
	"active":   true,
	"layer":    true,
	"mobility": true,
	"parent":   true,
	"children": true,
}

// uiTransformPairs lists UITransform properties the host only accepts as two
// scalar writes.
var uiTransformPairs = map[string]struct {
	kind   property.Kind
	fields [2]string
	keys   [2]string
}{
	"contentSize": {property.Kind{Tag: property.Size}, [2]string{"width", "height"}, [2]string{"width", "height"}},
	"anchorPoint": {property.Kind{Tag: property.Vec2}, [2]string{"anchorX", "anchorY"}, [2]string{"x", "y"}},
}

// SetComponentProperty converts req.Value to the host wire form for
// req.PropertyType, writes it to the component field and reads it back.
func (e *Engine) SetComponentProperty(ctx context.Context, req SetPropertyRequest) Result {
	log := e.operation("set_component_property",
		"node", req.NodeUUID,
		"component", req.ComponentType,
		"property", req.Property,
		"property_type", req.PropertyType,
	)
	return e.guard(log, func() Result {
		return e.setComponentProperty(ctx, log, req)
	})
}

func (e *Engine) setComponentProperty(ctx context.Context, log *slog.Logger, req SetPropertyRequest) Result {
	if err := validateSetProperty(req); err != nil {
		return failure(err, nil)
	}
	if redirect, ok := nodeFieldRedirect(req); ok {
		log.Info("Redirecting node field write", "instruction", redirect.Instruction)
		return failure(redirect, nil)
	}

	kind, err := property.ParseKind(req.PropertyType)
	if err != nil {
		bad := invalidArgument("%v", err)
		bad.Available = property.CallerTypeNames()
		return failure(bad, nil)
	}

	_, component, err := e.locate(ctx, req.NodeUUID, req.ComponentType)
	if err != nil {
		return failure(suggestAdd(err, req.NodeUUID, req.ComponentType), nil)
	}

	inf := property.Infer(component, req.Property)
	if !inf.Exists {
		return failure(notFound(inf.AvailableFields,
			"property %s not found on %s (available: %s)",
			req.Property, req.ComponentType, listOrNone(inf.AvailableFields)), nil)
	}

	var warnings []string
	if inf.Kind.Tag != property.Unknown && !kind.Compatible(inf.Kind) {
		log.Warn("Declared type differs from the inferred type", "declared", kind.String(), "inferred", inf.Kind.String())
		warnings = append(warnings, fmt.Sprintf("declared type %s differs from inferred type %s", kind, inf.Kind))
	}

	if pair, ok := uiTransformPairs[req.Property]; ok && component.Kind == "cc.UITransform" {
		return e.setUITransformPair(ctx, log, req, pair.kind, pair.fields, pair.keys, inf, warnings)
	}

	var wire any
	if kind.Tag == property.Component {
		var expectedType string
		wire, expectedType, err = e.resolveComponentReference(ctx, log, req.Property, inf, req.Value)
		kind.Type = expectedType
	} else {
		wire, err = property.Encode(req.Value, kind)
	}
	if err != nil {
		return failure(err, nil)
	}

	// The component index may have moved since the first read.
	_, component, err = e.locate(ctx, req.NodeUUID, req.ComponentType)
	if err != nil {
		return failure(err, nil)
	}
	path := PropertyPath(component.Index, req.Property)
	log.Info("Writing property", "path", path, "before", property.Describe(inf.RawValue), "after", property.Describe(wire))
	if err := e.apply(ctx, log, req.NodeUUID, path, property.Dump(wire, kind)); err != nil {
		return failure(err, map[string]any{"path": path})
	}

	data := map[string]any{
		"nodeUuid":      req.NodeUUID,
		"componentType": req.ComponentType,
		"property":      req.Property,
		"propertyType":  kind.String(),
		"path":          path,
		"wireValue":     wire,
	}
	if len(warnings) > 0 {
		data["warnings"] = warnings
	}
	return e.finishWrite(ctx, log, req, wire, inf.RawValue, data)
}

// finishWrite settles, reads the field back and builds the result of a write
// the host already accepted.
func (e *Engine) finishWrite(ctx context.Context, log *slog.Logger, req SetPropertyRequest, expected, original any, data map[string]any) Result {
	if err := e.settle(ctx, e.timing.WriteSettle); err != nil {
		return failure(err, data)
	}
	verification, err := e.Verify(ctx, req.NodeUUID, req.ComponentType, req.Property, expected, original)
	data["originalValue"] = verification.OriginalValue
	data["actualValue"] = verification.ActualValue
	data["verified"] = verification.Verified
	if err != nil {
		data["verifyError"] = err.Error()
	}

	target := fmt.Sprintf("%s.%s on node %s", req.ComponentType, req.Property, req.NodeUUID)
	if !verification.Verified {
		log.Warn("Write not verified", "expected", property.Describe(expected), "actual", property.Describe(verification.ActualValue))
		return Result{
			Success: true,
			Message: fmt.Sprintf("Set %s, but the value read back does not match", target),
			Data:    data,
			Kind:    ClassUnverified,
		}
	}
	log.Info("Write verified", "actual", property.Describe(verification.ActualValue))
	return Result{
		Success: true,
		Message: fmt.Sprintf("Set %s", target),
		Data:    data,
	}
}

// setUITransformPair writes a size or anchor as two scalar sub-writes. There
// is no rollback: a failed second write leaves the first applied.
func (e *Engine) setUITransformPair(ctx context.Context, log *slog.Logger, req SetPropertyRequest, kind property.Kind, fields, keys [2]string, inf property.Inference, warnings []string) Result {
	wire, err := property.Encode(req.Value, kind)
	if err != nil {
		return failure(err, nil)
	}
	values := wire.(map[string]any)

	var applied []string
	for i, field := range fields {
		_, component, err := e.locate(ctx, req.NodeUUID, req.ComponentType)
		if err == nil {
			path := PropertyPath(component.Index, field)
			err = e.apply(ctx, log, req.NodeUUID, path, map[string]any{"value": values[keys[i]]})
		}
		if err != nil {
			data := map[string]any{"applied": applied}
			if len(applied) > 0 {
				data["partiallyApplied"] = true
				log.Warn("Composite write partially applied", "applied", applied, "failed", field)
			}
			return failure(err, data)
		}
		applied = append(applied, field)
	}

	data := map[string]any{
		"nodeUuid":      req.NodeUUID,
		"componentType": req.ComponentType,
		"property":      req.Property,
		"propertyType":  kind.String(),
		"subWrites":     applied,
		"wireValue":     wire,
	}
	if len(warnings) > 0 {
		data["warnings"] = warnings
	}
	return e.finishWrite(ctx, log, req, wire, inf.RawValue, data)
}

func validateSetProperty(req SetPropertyRequest) error {
	var missing []string
	if strings.TrimSpace(req.NodeUUID) == "" {
		missing = append(missing, "nodeUuid")
	}
	if strings.TrimSpace(req.ComponentType) == "" {
		missing = append(missing, "componentType")
	}
	if strings.TrimSpace(req.Property) == "" {
		missing = append(missing, "property")
	}
	if strings.TrimSpace(req.PropertyType) == "" {
		missing = append(missing, "propertyType")
	}
	if len(missing) > 0 {
		return invalidArgument("missing required argument(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

// nodeFieldRedirect rejects node fields sent through the component entry
// point and names the tool that owns them.
func nodeFieldRedirect(req SetPropertyRequest) (*Error, bool) {
	if req.ComponentType != "cc.Node" && req.ComponentType != "Node" {
		return nil, false
	}
	redirect := invalidArgument("%s is a node property, not a component property", req.Property)
	switch {
	case nodeTransformFields[req.Property]:
		redirect.Instruction = fmt.Sprintf("Use set_node_transform to set %s on node %s.", req.Property, req.NodeUUID)
	case nodeBasicFields[req.Property]:
		redirect.Instruction = fmt.Sprintf("Use set_node_property to set %s on node %s.", req.Property, req.NodeUUID)
	default:
		redirect.Instruction = fmt.Sprintf("cc.Node is not a component; use set_node_property or set_node_transform for node %s.", req.NodeUUID)
	}
	return redirect, true
}
