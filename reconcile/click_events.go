package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/slighter12/cocos-mcp-go/property"
)

const (
	buttonType      = "cc.Button"
	clickEventsKey  = "clickEvents"
	clickEventType  = "cc.ClickEvent"
	handlerQueryRPC = "query-component-function-of-node"
)

// Click event operations.
const (
	ClickAdd    = "add"
	ClickModify = "modify"
	ClickRemove = "remove"
	ClickClear  = "clear"
)

// ClickEventRequest is the argument object of ManageClickEvents. Optional
// fields left nil are not changed by modify.
type ClickEventRequest struct {
	NodeUUID        string  `json:"nodeUuid"`
	Operation       string  `json:"operation"`
	Index           *int    `json:"index,omitempty"`
	TargetNodeUUID  string  `json:"targetNodeUuid,omitempty"`
	ComponentName   string  `json:"componentName,omitempty"`
	Handler         string  `json:"handler,omitempty"`
	CustomEventData *string `json:"customEventData,omitempty"`
}

// clickEventFields are the record fields written into each event.
var clickEventFields = []string{"target", "component", "_componentId", "handler", "customEventData"}

// ManageClickEvents edits the clickEvents list of the node's cc.Button. The
// whole list is written back in one set-property and verified by length and,
// for modify, by the changed fields.
func (e *Engine) ManageClickEvents(ctx context.Context, req ClickEventRequest) Result {
	log := e.operation("manage_click_events", "node", req.NodeUUID, "operation", req.Operation)
	return e.guard(log, func() Result {
		return e.manageClickEvents(ctx, log, req)
	})
}

func (e *Engine) manageClickEvents(ctx context.Context, log *slog.Logger, req ClickEventRequest) Result {
	if strings.TrimSpace(req.NodeUUID) == "" {
		return failure(invalidArgument("missing required argument(s): nodeUuid"), nil)
	}
	switch req.Operation {
	case ClickAdd, ClickModify, ClickRemove, ClickClear:
	default:
		bad := invalidArgument("unknown click event operation %q", req.Operation)
		bad.Available = []string{ClickAdd, ClickModify, ClickRemove, ClickClear}
		return failure(bad, nil)
	}

	_, button, err := e.locate(ctx, req.NodeUUID, buttonType)
	if err != nil {
		return failure(suggestAdd(err, req.NodeUUID, buttonType), nil)
	}
	inf := property.Infer(button, clickEventsKey)
	if !inf.Exists {
		return failure(notFound(inf.AvailableFields, "%s has no %s property (available: %s)", buttonType, clickEventsKey, listOrNone(inf.AvailableFields)), nil)
	}
	current, _ := inf.RawValue.([]any)
	previous := len(current)

	var (
		next     []any
		expected int
		changed  map[string]any
		warnings []string
	)
	switch req.Operation {
	case ClickAdd:
		if err := requireArgs(map[string]string{"targetNodeUuid": req.TargetNodeUUID, "componentName": req.ComponentName, "handler": req.Handler}); err != nil {
			return failure(err, nil)
		}
		componentID, warning, err := e.checkClickTarget(ctx, log, req.TargetNodeUUID, req.ComponentName, req.Handler)
		if err != nil {
			return failure(err, nil)
		}
		warnings = appendWarning(warnings, warning)
		customData := ""
		if req.CustomEventData != nil {
			customData = *req.CustomEventData
		}
		record := newClickEvent(previous, req.TargetNodeUUID, req.ComponentName, componentID, req.Handler, customData)
		next = append(slices.Clone(current), record)
		expected = previous + 1

	case ClickModify:
		index, err := clickIndex(req.Index, previous)
		if err != nil {
			return failure(err, nil)
		}
		record, ok := deepCopy(current[index]).(map[string]any)
		if !ok {
			record = map[string]any{}
		}
		changed = map[string]any{}
		target := req.TargetNodeUUID
		componentName := req.ComponentName
		if target != "" || componentName != "" {
			if target == "" {
				target, _ = property.Unwrap(eventField(record, "target"))
			}
			if componentName == "" {
				componentName, _ = eventField(record, "component").(string)
			}
			handler := req.Handler
			if handler == "" {
				handler, _ = eventField(record, "handler").(string)
			}
			componentID, warning, err := e.checkClickTarget(ctx, log, target, componentName, handler)
			if err != nil {
				return failure(err, nil)
			}
			warnings = appendWarning(warnings, warning)
			if req.TargetNodeUUID != "" {
				changed["target"] = property.Wrap(target)
			}
			if req.ComponentName != "" {
				changed["component"] = componentName
				changed["_componentId"] = componentID
			}
		}
		if req.Handler != "" {
			changed["handler"] = req.Handler
		}
		if req.CustomEventData != nil {
			changed["customEventData"] = *req.CustomEventData
		}
		if len(changed) == 0 {
			return failure(invalidArgument("modify needs at least one of targetNodeUuid, componentName, handler or customEventData"), nil)
		}
		for field, value := range changed {
			setEventField(record, field, value)
		}
		next = slices.Clone(current)
		next[index] = record
		expected = previous

	case ClickRemove:
		index, err := clickIndex(req.Index, previous)
		if err != nil {
			return failure(err, nil)
		}
		next = slices.Delete(slices.Clone(current), index, index+1)
		expected = previous - 1

	case ClickClear:
		next = []any{}
		expected = 0
	}
	if next == nil {
		next = []any{}
	}

	// Re-resolve the button right before the write.
	_, button, err = e.locate(ctx, req.NodeUUID, buttonType)
	if err != nil {
		return failure(err, nil)
	}
	path := PropertyPath(button.Index, clickEventsKey)
	log.Info("Writing click events", "path", path, "before", previous, "after", len(next))
	dump := map[string]any{"value": next, "type": clickEventType, "isArray": true}
	if err := e.apply(ctx, log, req.NodeUUID, path, dump); err != nil {
		return failure(err, map[string]any{"previousEventCount": previous})
	}
	if err := e.settle(ctx, e.timing.WriteSettle); err != nil {
		return failure(err, nil)
	}

	_, button, err = e.locate(ctx, req.NodeUUID, buttonType)
	if err != nil {
		return failure(err, map[string]any{"previousEventCount": previous, "expectedEventCount": expected})
	}
	after, _ := property.Infer(button, clickEventsKey).RawValue.([]any)

	verified := len(after) == expected
	var mismatched []string
	if verified && req.Operation == ClickModify {
		index := *req.Index
		for field, want := range changed {
			if !property.Equal(want, eventField(after[index], field)) {
				mismatched = append(mismatched, field)
			}
		}
		slices.Sort(mismatched)
		verified = len(mismatched) == 0
	}

	data := map[string]any{
		"nodeUuid":           req.NodeUUID,
		"operation":          req.Operation,
		"previousEventCount": previous,
		"expectedEventCount": expected,
		"newEventCount":      len(after),
		"verified":           verified,
		"events":             summarizeEvents(after),
	}
	if len(warnings) > 0 {
		data["warnings"] = warnings
	}
	if len(mismatched) > 0 {
		data["mismatchedFields"] = mismatched
	}
	if !verified {
		log.Warn("Click events not verified", "expected", expected, "actual", len(after), "mismatched", mismatched)
		return failure(&Error{
			Class:   ClassUnverified,
			Message: fmt.Sprintf("click event %s not verified: expected %d event(s), found %d", req.Operation, expected, len(after)),
		}, data)
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("Click event %s applied to node %s (%d event(s))", req.Operation, req.NodeUUID, len(after)),
		Data:    data,
	}
}

// checkClickTarget confirms the target node carries componentName and returns
// the id written into _componentId. An unconfirmed handler only produces a
// warning.
func (e *Engine) checkClickTarget(ctx context.Context, log *slog.Logger, targetID, componentName, handler string) (string, string, error) {
	target, err := e.queryNode(ctx, targetID)
	if err != nil {
		return "", "", err
	}
	component, ok := findComponentByName(target, componentName)
	if !ok {
		available := target.ComponentKinds()
		return "", "", notFound(available, "component %s not found on target node %s (available: %s)", componentName, targetID, listOrNone(available))
	}
	componentID := component.Kind
	if cid, ok := component.Raw["cid"].(string); ok && cid != "" {
		componentID = cid
	}
	if handler == "" {
		return componentID, "", nil
	}

	raw, err := e.request(ctx, handlerQueryRPC, map[string]any{"uuid": targetID})
	if err != nil {
		log.Warn("Handler check failed", "target", targetID, "error", err)
		return componentID, fmt.Sprintf("could not confirm handler %s on %s: %v", handler, componentName, err), nil
	}
	var functions map[string][]string
	if err := json.Unmarshal(raw, &functions); err != nil {
		return componentID, fmt.Sprintf("could not confirm handler %s on %s", handler, componentName), nil
	}
	if names, ok := functions[componentName]; ok && slices.Contains(names, handler) {
		return componentID, "", nil
	}
	log.Warn("Handler not listed on target component", "target", targetID, "component", componentName, "handler", handler)
	return componentID, fmt.Sprintf("handler %s was not found on %s; it may be defined at runtime", handler, componentName), nil
}

func findComponentByName(node property.NodeDump, name string) (property.ComponentSnapshot, bool) {
	for _, c := range node.Components {
		if c.Kind == name {
			return c, true
		}
		for _, key := range []string{"type", "cid", "name"} {
			if s, ok := c.Raw[key].(string); ok && s == name {
				return c, true
			}
		}
	}
	return property.ComponentSnapshot{}, false
}

// clickIndex bounds-checks a caller index against a list of length n.
func clickIndex(index *int, n int) (int, error) {
	valid := make([]string, n)
	for i := range valid {
		valid[i] = strconv.Itoa(i)
	}
	if index == nil {
		bad := invalidArgument("index is required")
		bad.Available = valid
		return 0, bad
	}
	if *index < 0 || *index >= n {
		return 0, notFound(valid, "click event index %d out of range (valid: %s)", *index, validRange(n))
	}
	return *index, nil
}

func validRange(n int) string {
	if n == 0 {
		return "none, the list is empty"
	}
	return fmt.Sprintf("0..%d", n-1)
}

func newClickEvent(position int, targetID, componentName, componentID, handler, customData string) map[string]any {
	fields := map[string]any{
		"target":          descriptor("target", property.Wrap(targetID), property.TypeNode),
		"component":       descriptor("component", componentName, "String"),
		"_componentId":    descriptor("_componentId", componentID, "String"),
		"handler":         descriptor("handler", handler, "String"),
		"customEventData": descriptor("customEventData", customData, "String"),
	}
	return map[string]any{
		"name":     strconv.Itoa(position),
		"value":    fields,
		"default":  map[string]any{"value": deepCopy(fields)},
		"type":     clickEventType,
		"readonly": false,
	}
}

func descriptor(name string, value any, typ string) map[string]any {
	return map[string]any{
		"name":     name,
		"value":    value,
		"type":     typ,
		"readonly": false,
	}
}

// eventField reads a field of a click event in either descriptor or bare
// form.
func eventField(record any, field string) any {
	m, ok := record.(map[string]any)
	if !ok {
		return nil
	}
	if fields, ok := m["value"].(map[string]any); ok {
		if d, ok := fields[field].(map[string]any); ok {
			if v, ok := d["value"]; ok {
				return v
			}
			return d
		}
		return fields[field]
	}
	return m[field]
}

func setEventField(record map[string]any, field string, value any) {
	fields, ok := record["value"].(map[string]any)
	if !ok {
		record[field] = value
		return
	}
	if d, ok := fields[field].(map[string]any); ok {
		if _, hasValue := d["value"]; hasValue {
			d["value"] = value
			return
		}
	}
	typ := "String"
	if field == "target" {
		typ = property.TypeNode
	}
	fields[field] = descriptor(field, value, typ)
}

func summarizeEvents(events []any) []map[string]any {
	out := make([]map[string]any, 0, len(events))
	for i, ev := range events {
		summary := map[string]any{"index": i}
		for _, field := range clickEventFields {
			if field == "_componentId" {
				continue
			}
			value := eventField(ev, field)
			if field == "target" {
				if id, ok := property.Unwrap(value); ok {
					value = id
				}
			}
			summary[field] = value
		}
		out = append(out, summary)
	}
	return out
}

func appendWarning(warnings []string, warning string) []string {
	if warning == "" {
		return warnings
	}
	return append(warnings, warning)
}

// deepCopy copies decoded JSON values so patches never alias the snapshot.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}
