package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/slighter12/cocos-mcp-go/logger"
	"github.com/slighter12/cocos-mcp-go/mcp"
	"github.com/slighter12/cocos-mcp-go/reconcile"
	"github.com/slighter12/cocos-mcp-go/tools/types"
)

var ErrToolNotFound = errors.New("tool not found")

func IsToolNotFound(err error) bool {
	return errors.Is(err, ErrToolNotFound)
}

type registeredTool struct {
	tool   types.Tool
	schema *jsonschema.Schema
}

// Manager implements ToolRegistry interface
type Manager struct {
	tools map[string]registeredTool
	mutex sync.RWMutex
}

// NewManager creates a new tool manager
func NewManager() *Manager {
	return &Manager{
		tools: make(map[string]registeredTool),
	}
}

// RegisterTool registers a new tool and compiles its input schema.
func (m *Manager) RegisterTool(tool types.Tool) error {
	if tool == nil {
		return errors.New("tool cannot be nil")
	}

	name := tool.Name()
	if name == "" {
		return errors.New("tool name cannot be empty")
	}

	schema, err := compileInputSchema(name, tool.InputSchema())
	if err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.tools[name] = registeredTool{tool: tool, schema: schema}
	logger.Debug("Tool registered", "name", name)
	return nil
}

func compileInputSchema(name string, input mcp.InputSchema) (*jsonschema.Schema, error) {
	if input.Type == "" {
		input.Type = "object"
	}
	if input.Properties == nil {
		input.Properties = map[string]any{}
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("tool %s schema encode failed: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://cocos-mcp.local/tools/%s.schema.json", name)
	if err := c.AddResource(schemaURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("tool %s schema load failed: %w", name, err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("tool %s schema compile failed: %w", name, err)
	}
	return compiled, nil
}

// GetTool retrieves a tool by name
func (m *Manager) GetTool(name string) (types.Tool, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	entry, exists := m.tools[name]
	return entry.tool, exists
}

// ListTools returns all registered tools sorted by name
func (m *Manager) ListTools() []types.Tool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	tools := make([]types.Tool, 0, len(m.tools))
	for _, entry := range m.tools {
		tools = append(tools, entry.tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// ExecuteTool validates args against the tool schema and runs it.
func (m *Manager) ExecuteTool(ctx context.Context, name string, args json.RawMessage) ([]byte, error) {
	m.mutex.RLock()
	entry, exists := m.tools[name]
	m.mutex.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if err := validateArgs(entry.schema, args); err != nil {
		logger.Debug("Tool arguments rejected", "name", name, "error", err)
		return nil, err
	}

	logger.Debug("Executing tool", "name", name, "args", string(args))
	return entry.tool.Execute(ctx, args)
}

func validateArgs(schema *jsonschema.Schema, args json.RawMessage) error {
	if schema == nil {
		return nil
	}
	var decoded map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &decoded); err != nil {
			return types.NewInvalidParamsError("arguments must be a JSON object", nil)
		}
	}
	if err := schema.Validate(types.StripMCPContext(decoded)); err != nil {
		return types.NewInvalidParamsError(validationMessage(err), nil)
	}
	return nil
}

func validationMessage(err error) string {
	var verr *jsonschema.ValidationError
	if errors.As(err, &verr) {
		leaf := verr
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		if leaf.InstanceLocation != "" {
			return fmt.Sprintf("invalid arguments at %s: %s", leaf.InstanceLocation, leaf.Message)
		}
		return "invalid arguments: " + leaf.Message
	}
	return "invalid arguments: " + err.Error()
}

// RegisterDefaultTools registers every tool backed by engine.
func (m *Manager) RegisterDefaultTools(engine *reconcile.Engine) {
	allTools := GetAllTools(engine)
	for _, tool := range allTools {
		if err := m.RegisterTool(tool); err != nil {
			logger.Error("Failed to register tool", "name", tool.Name(), "error", err)
		}
	}
	logger.Info("Default tools registered", "count", len(allTools))
}

// GetTools returns the registered tools as tools/list entries.
func (m *Manager) GetTools() []mcp.Tool {
	tools := m.ListTools()
	mcpTools := make([]mcp.Tool, 0, len(tools))

	for _, tool := range tools {
		mcpTools = append(mcpTools, mcp.Tool{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.InputSchema(),
		})
	}

	return mcpTools
}

// CallTool runs a tool with decoded arguments and decodes its result.
func (m *Manager) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}

	resultJSON, err := m.ExecuteTool(ctx, name, argsJSON)
	if err != nil {
		return nil, err
	}

	var result any
	if err := json.Unmarshal(resultJSON, &result); err != nil {
		return nil, err
	}

	return result, nil
}
