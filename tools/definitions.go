package tools

import (
	"github.com/slighter12/cocos-mcp-go/reconcile"
	"github.com/slighter12/cocos-mcp-go/tools/component"
	"github.com/slighter12/cocos-mcp-go/tools/types"
	"github.com/slighter12/cocos-mcp-go/tools/utility"
)

// GetAllTools returns all available tools from all categories
func GetAllTools(engine *reconcile.Engine) []types.Tool {
	var all []types.Tool
	all = append(all, component.GetAllTools(engine)...)
	all = append(all, utility.GetAllTools()...)
	return all
}
