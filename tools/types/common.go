package types

import (
	"context"
	"encoding/json"

	"github.com/slighter12/cocos-mcp-go/mcp"
)

// Tool interface defines the contract for all tools
type Tool interface {
	Name() string
	Description() string
	InputSchema() mcp.InputSchema
	Execute(ctx context.Context, args json.RawMessage) ([]byte, error)
}

// ToolRegistry interface defines the contract for tool registries
type ToolRegistry interface {
	RegisterTool(tool Tool) error
	GetTool(name string) (Tool, bool)
	ListTools() []Tool
	ExecuteTool(ctx context.Context, name string, args json.RawMessage) ([]byte, error)
}

// DecodeArgs unmarshals tool arguments into dst, treating empty input as {}.
func DecodeArgs(args json.RawMessage, dst any) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, dst); err != nil {
		return NewInvalidParamsError("invalid arguments: "+err.Error(), nil)
	}
	return nil
}
