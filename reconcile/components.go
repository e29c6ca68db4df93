package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/slighter12/cocos-mcp-go/property"
)

func componentSummary(c property.ComponentSnapshot) map[string]any {
	return map[string]any{
		"type":       c.Kind,
		"uuid":       c.Identity,
		"enabled":    c.Enabled,
		"index":      c.Index,
		"properties": c.Values(),
	}
}

// GetComponents lists every component on a node.
func (e *Engine) GetComponents(ctx context.Context, nodeUUID string) Result {
	log := e.operation("get_components", "node", nodeUUID)
	return e.guard(log, func() Result {
		if strings.TrimSpace(nodeUUID) == "" {
			return failure(invalidArgument("missing required argument(s): nodeUuid"), nil)
		}
		node, err := e.queryNode(ctx, nodeUUID)
		if err != nil {
			return failure(err, nil)
		}
		components := make([]map[string]any, 0, len(node.Components))
		for _, c := range node.Components {
			components = append(components, componentSummary(c))
		}
		return Result{
			Success: true,
			Message: fmt.Sprintf("Node %s has %d component(s)", nodeUUID, len(components)),
			Data: map[string]any{
				"nodeUuid":   nodeUUID,
				"components": components,
				"count":      len(components),
			},
		}
	})
}

// GetComponentInfo describes one component of a node.
func (e *Engine) GetComponentInfo(ctx context.Context, nodeUUID, componentType string) Result {
	log := e.operation("get_component_info", "node", nodeUUID, "component", componentType)
	return e.guard(log, func() Result {
		if err := requireArgs(map[string]string{"nodeUuid": nodeUUID, "componentType": componentType}); err != nil {
			return failure(err, nil)
		}
		_, component, err := e.locate(ctx, nodeUUID, componentType)
		if err != nil {
			return failure(err, nil)
		}
		return Result{
			Success: true,
			Message: fmt.Sprintf("Found %s on node %s", componentType, nodeUUID),
			Data: map[string]any{
				"nodeUuid":      nodeUUID,
				"componentType": componentType,
				"info":          componentSummary(component),
			},
		}
	})
}

// AddComponent creates a component and confirms it appears on the node. A
// component that is already present is reported without a write.
func (e *Engine) AddComponent(ctx context.Context, nodeUUID, componentType string) Result {
	log := e.operation("add_component", "node", nodeUUID, "component", componentType)
	return e.guard(log, func() Result {
		if err := requireArgs(map[string]string{"nodeUuid": nodeUUID, "componentType": componentType}); err != nil {
			return failure(err, nil)
		}
		node, err := e.queryNode(ctx, nodeUUID)
		if err != nil {
			return failure(err, nil)
		}
		if existing, ok := node.Find(componentType); ok {
			return Result{
				Success: true,
				Message: fmt.Sprintf("%s already exists on node %s", componentType, nodeUUID),
				Data: map[string]any{
					"nodeUuid":      nodeUUID,
					"componentType": componentType,
					"index":         existing.Index,
					"existing":      true,
				},
			}
		}

		log.Info("Creating component")
		if _, err := e.request(ctx, "create-component", map[string]any{"uuid": nodeUUID, "component": componentType}); err != nil {
			return failure(hostError(err, "create-component %s on node %s failed", componentType, nodeUUID), nil)
		}
		if err := e.settle(ctx, e.timing.WriteSettle); err != nil {
			return failure(err, nil)
		}

		after, err := e.queryNode(ctx, nodeUUID)
		if err != nil {
			return failure(err, nil)
		}
		added, ok := after.Find(componentType)
		if !ok {
			available := after.ComponentKinds()
			log.Warn("Component not present after create", "available", available)
			return failure(&Error{
				Class:     ClassUnverified,
				Message:   fmt.Sprintf("create-component was accepted but %s is not on node %s", componentType, nodeUUID),
				Available: available,
			}, nil)
		}
		return Result{
			Success: true,
			Message: fmt.Sprintf("Added %s to node %s", componentType, nodeUUID),
			Data: map[string]any{
				"nodeUuid":      nodeUUID,
				"componentType": componentType,
				"index":         added.Index,
				"verified":      true,
			},
		}
	})
}

// RemoveComponent tries each known removal RPC until the host accepts one,
// then re-reads the node to confirm the component count dropped.
func (e *Engine) RemoveComponent(ctx context.Context, nodeUUID, componentType string) Result {
	log := e.operation("remove_component", "node", nodeUUID, "component", componentType)
	return e.guard(log, func() Result {
		if err := requireArgs(map[string]string{"nodeUuid": nodeUUID, "componentType": componentType}); err != nil {
			return failure(err, nil)
		}
		return e.removeComponent(ctx, log, nodeUUID, componentType)
	})
}

func (e *Engine) removeComponent(ctx context.Context, log *slog.Logger, nodeUUID, componentType string) Result {
	node, component, err := e.locate(ctx, nodeUUID, componentType)
	if err != nil {
		return failure(err, nil)
	}
	before := node.Count(componentType)
	index := component.Index

	attempts := e.removalAttempts(nodeUUID, componentType, index)
	accepted, chainErr := RunChain(ctx, log.With("index", index), attempts)
	if err := e.settle(ctx, e.timing.RemovalSettle); err != nil {
		return failure(err, nil)
	}

	after, err := e.queryNode(ctx, nodeUUID)
	if err != nil {
		return failure(err, nil)
	}
	remaining := after.Count(componentType)
	if remaining < before {
		log.Info("Component removed", "attempt", accepted, "remaining", remaining)
		return Result{
			Success: true,
			Message: fmt.Sprintf("Removed %s from node %s", componentType, nodeUUID),
			Data: map[string]any{
				"nodeUuid":      nodeUUID,
				"componentType": componentType,
				"removedIndex":  index,
				"attempt":       accepted,
				"components":    after.ComponentKinds(),
			},
		}
	}

	names := make([]string, 0, len(attempts))
	for _, a := range attempts {
		names = append(names, a.Name)
	}
	data := map[string]any{
		"nodeUuid":       nodeUUID,
		"componentType":  componentType,
		"attemptedIndex": index,
		"attempts":       names,
	}
	if accepted != "" {
		data["acceptedAttempt"] = accepted
	}
	if chainErr != nil {
		data["lastError"] = chainErr.Error()
	}
	log.Warn("Component still present after removal attempts", "accepted", accepted, "count", remaining)
	return failure(&Error{
		Class:   ClassDispatchExhausted,
		Message: fmt.Sprintf("could not remove %s at index %d from node %s", componentType, index, nodeUUID),
	}, data)
}

// removalAttempts is the fixed order in which removal RPCs are tried.
func (e *Engine) removalAttempts(nodeUUID, componentType string, index int) []Attempt {
	return []Attempt{
		e.attempt("remove-array-element", "remove-array-element", map[string]any{"uuid": nodeUUID, "path": compsKey, "index": index}),
		e.attempt("delete-component", "delete-component", map[string]any{"uuid": nodeUUID, "component": componentType}),
		e.attempt("remove-component-by-index", "remove-component", map[string]any{"uuid": nodeUUID, "index": index}),
		e.attempt("remove-component-by-type", "remove-component", map[string]any{"uuid": nodeUUID, "component": componentType}),
	}
}

func requireArgs(args map[string]string) error {
	var missing []string
	for name, value := range args {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return invalidArgument("missing required argument(s): %s", strings.Join(missing, ", "))
}
