package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"strconv"
	"strings"

	"github.com/slighter12/cocos-mcp-go/logger"
	"github.com/slighter12/cocos-mcp-go/mcp"
	"github.com/slighter12/cocos-mcp-go/mcp/jsonrpc"
	"github.com/slighter12/cocos-mcp-go/tools"
	tooltypes "github.com/slighter12/cocos-mcp-go/tools/types"
)

const pageSize = 50

// ServerName and ServerVersion identify the server in initialize results.
const (
	ServerName    = "cocos-mcp-go"
	ServerVersion = "0.1.0"
)

const serverInstructions = "Component tools edit the scene open in the connected Cocos Creator editor. " +
	"Read bridge-status or cocos://bridge/status first when a tool reports editor_not_registered."

func BuildToolsListResponse(msg jsonrpc.Request, tools []mcp.Tool) *jsonrpc.Response {
	sortedTools := append([]mcp.Tool(nil), tools...)
	sort.Slice(sortedTools, func(i, j int) bool {
		return sortedTools[i].Name < sortedTools[j].Name
	})

	start, err := ParseCursor(msg.Params, len(sortedTools))
	if err != nil {
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrInvalidParams, err.Error(), nil)
	}
	end := min(start+pageSize, len(sortedTools))

	result := map[string]any{
		"tools": sortedTools[start:end],
	}
	if end < len(sortedTools) {
		result["nextCursor"] = strconv.Itoa(end)
	}
	return jsonrpc.NewResponse(msg.ID, result)
}

func BuildResourcesListResponse(msg jsonrpc.Request) *jsonrpc.Response {
	resources := Resources()
	start, err := ParseCursor(msg.Params, len(resources))
	if err != nil {
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrInvalidParams, err.Error(), nil)
	}
	end := min(start+pageSize, len(resources))

	result := map[string]any{
		"resources": resources[start:end],
	}
	if end < len(resources) {
		result["nextCursor"] = strconv.Itoa(end)
	}
	return jsonrpc.NewResponse(msg.ID, result)
}

func BuildResourcesReadResponse(msg jsonrpc.Request, readResource func(string) (any, error)) *jsonrpc.Response {
	var params struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrInvalidParams, "Invalid resources/read payload", nil)
	}
	if params.URI == "" {
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrInvalidParams, "Resource URI is required", nil)
	}
	if readResource == nil {
		readResource = ReadResource
	}

	result, err := readResource(params.URI)
	if err != nil {
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrInvalidParams, err.Error(), nil)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrInternalError, "Failed to encode resource result", nil)
	}

	return jsonrpc.NewResponse(msg.ID, map[string]any{
		"contents": []map[string]any{
			{
				"uri":      params.URI,
				"mimeType": "application/json",
				"text":     string(resultJSON),
			},
		},
	})
}

func BuildPingResponse(msg jsonrpc.Request) *jsonrpc.Response {
	return jsonrpc.NewResponse(msg.ID, map[string]any{})
}

// BuildInitializeResult answers initialize with the negotiated protocol
// revision.
func BuildInitializeResult(paramsRaw json.RawMessage) mcp.InitializeResult {
	return mcp.InitializeResult{
		ProtocolVersion: NegotiateProtocolVersion(paramsRaw),
		Capabilities:    ServerCapabilities(),
		ServerInfo:      mcp.Implementation{Name: ServerName, Version: ServerVersion},
		Instructions:    serverInstructions,
	}
}

// NegotiateProtocolVersion echoes the client revision when supported and
// otherwise offers the newest one.
func NegotiateProtocolVersion(paramsRaw json.RawMessage) string {
	var params struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	preferred := mcp.ProtocolVersion
	if err := json.Unmarshal(paramsRaw, &params); err != nil {
		return preferred
	}

	if mcp.IsSupportedProtocolVersion(params.ProtocolVersion) {
		return params.ProtocolVersion
	}
	return preferred
}

// DispatchStandardMethod handles shared non-initialize JSON-RPC methods for all transports.
func DispatchStandardMethod(ctx context.Context, msg jsonrpc.Request, toolManager *tools.Manager, readResource func(string) (any, error)) any {
	switch msg.Method {
	case mcp.MethodToolsList:
		return BuildToolsListResponse(msg, toolManager.GetTools())
	case mcp.MethodResourcesList:
		return BuildResourcesListResponse(msg)
	case mcp.MethodResourcesRead:
		return BuildResourcesReadResponse(msg, readResource)
	case mcp.MethodToolsCall:
		return BuildToolCallResponse(ctx, msg, toolManager)
	case mcp.MethodPing:
		return BuildPingResponse(msg)
	default:
		if !msg.IsNotification() {
			return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrMethodNotFound, "Method not found", map[string]any{
				"method": msg.Method,
			})
		}
		return nil
	}
}

type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// WithMCPContext returns msg with the transport session injected as the
// _mcp argument of a tools/call. Other methods are returned unchanged.
func WithMCPContext(msg jsonrpc.Request, sessionID string, initialized bool) jsonrpc.Request {
	if msg.Method != mcp.MethodToolsCall || len(msg.Params) == 0 {
		return msg
	}
	var params map[string]any
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return msg
	}
	arguments, _ := params["arguments"].(map[string]any)
	if arguments == nil {
		arguments = map[string]any{}
	}
	arguments[tooltypes.MCPContextKey] = tooltypes.MCPContext{
		SessionID:          sessionID,
		SessionInitialized: initialized,
	}.Argument()
	params["arguments"] = arguments
	raw, err := json.Marshal(params)
	if err != nil {
		return msg
	}
	msg.Params = raw
	return msg
}

func BuildToolCallResponse(ctx context.Context, msg jsonrpc.Request, toolManager *tools.Manager) *jsonrpc.Response {
	var toolCall toolCallParams
	if err := json.Unmarshal(msg.Params, &toolCall); err != nil {
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrInvalidParams, "Invalid tool call payload", nil)
	}

	toolName := strings.TrimSpace(toolCall.Name)
	if toolName == "" {
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrInvalidParams, "Tool name is required", nil)
	}

	result, err := toolManager.CallTool(ctx, toolName, toolCall.Arguments)
	if err != nil {
		if tools.IsToolNotFound(err) {
			return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrInvalidParams, err.Error(), nil)
		}
		logger.Debug("Tool call failed", "tool", toolName, "error", err)
		return jsonrpc.NewResponse(msg.ID, BuildToolErrorResult(err))
	}

	return jsonrpc.NewResponse(msg.ID, BuildToolSuccessResult(result))
}

func BuildToolSuccessResult(result any) mcp.CallToolResult {
	out := mcp.CallToolResult{
		Content: ToolContentFromResult(result),
		IsError: false,
	}
	if _, ok := result.(map[string]any); ok {
		out.StructuredContent = result
	}
	return out
}

// BuildToolErrorResult reports a failed tool call in-band. Semantic errors
// keep their kind and data in structuredContent.
func BuildToolErrorResult(err error) mcp.CallToolResult {
	semanticErr, ok := tooltypes.AsSemanticError(err)
	if !ok {
		return mcp.CallToolResult{
			Content: []mcp.Content{{Type: "text", Text: err.Error()}},
			IsError: true,
		}
	}

	structured := map[string]any{}
	maps.Copy(structured, semanticErr.Data)
	if _, exists := structured["errorKind"]; !exists {
		structured["errorKind"] = semanticErr.Kind
	}
	if _, exists := structured["error"]; !exists {
		structured["error"] = semanticErr.Error()
	}
	return mcp.CallToolResult{
		Content:           ToolContentFromResult(structured),
		StructuredContent: structured,
		IsError:           true,
	}
}

func ToolContentFromResult(result any) []mcp.Content {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return []mcp.Content{{Type: "text", Text: "tool call completed"}}
	}
	return []mcp.Content{{Type: "text", Text: string(resultJSON)}}
}

func ServerCapabilities() map[string]any {
	return map[string]any{
		"tools":     map[string]any{"listChanged": false},
		"resources": map[string]any{},
	}
}

func ParseCursor(paramsRaw json.RawMessage, total int) (int, error) {
	if len(paramsRaw) == 0 {
		return 0, nil
	}

	var params struct {
		Cursor string `json:"cursor"`
	}
	if err := json.Unmarshal(paramsRaw, &params); err != nil {
		return 0, fmt.Errorf("invalid params payload")
	}
	if strings.TrimSpace(params.Cursor) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(params.Cursor)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor value")
	}
	if offset < 0 || offset > total {
		return 0, fmt.Errorf("invalid cursor value")
	}
	return offset, nil
}

// ParseJSONRPCFrame validates and parses one JSON-RPC message frame.
// Both stdio and streamable HTTP currently require a single message per frame.
func ParseJSONRPCFrame(frame []byte) ([]jsonrpc.Request, []any, bool, error) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 {
		return nil, nil, false, fmt.Errorf("empty message")
	}

	if trimmed[0] == '[' {
		return nil, []any{jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Invalid request", nil)}, false, nil
	}

	rawMessages := []json.RawMessage{json.RawMessage(trimmed)}
	requests := make([]jsonrpc.Request, 0, len(rawMessages))
	prebuiltResponses := make([]any, 0)
	acceptedOneWay := false

	for _, rawMsg := range rawMessages {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(rawMsg, &envelope); err != nil {
			prebuiltResponses = append(prebuiltResponses, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrParseError, "Parse error", nil))
			continue
		}

		requestID, hasID, validID := parseIDFromEnvelope(envelope)
		if !validID {
			prebuiltResponses = append(prebuiltResponses, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Invalid request", nil))
			continue
		}

		var msg jsonrpc.Request
		if err := json.Unmarshal(rawMsg, &msg); err != nil {
			prebuiltResponses = append(prebuiltResponses, jsonrpc.NewErrorResponse(requestID, jsonrpc.ErrInvalidRequest, "Invalid request", nil))
			continue
		}

		if msg.Method == "" {
			_, hasResult := envelope["result"]
			_, hasErr := envelope["error"]
			if hasResult || hasErr {
				if msg.JSONRPC != jsonrpc.Version || !hasID || (hasResult && hasErr) {
					prebuiltResponses = append(prebuiltResponses, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Invalid request", nil))
				} else {
					acceptedOneWay = true
				}
				continue
			}
			prebuiltResponses = append(prebuiltResponses, jsonrpc.NewErrorResponse(requestID, jsonrpc.ErrInvalidRequest, "Invalid request", nil))
			continue
		}

		if msg.JSONRPC != jsonrpc.Version {
			prebuiltResponses = append(prebuiltResponses, jsonrpc.NewErrorResponse(requestID, jsonrpc.ErrInvalidRequest, "Invalid request", nil))
			continue
		}

		if rawParams, ok := envelope["params"]; ok && !isValidParamsValue(rawParams) {
			prebuiltResponses = append(prebuiltResponses, jsonrpc.NewErrorResponse(requestID, jsonrpc.ErrInvalidRequest, "Invalid request", nil))
			continue
		}

		if msg.Method == mcp.MethodInitialize && msg.IsNotification() {
			prebuiltResponses = append(prebuiltResponses, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Invalid request", nil))
			continue
		}

		requests = append(requests, msg)
	}

	return requests, prebuiltResponses, acceptedOneWay, nil
}

func parseIDFromEnvelope(envelope map[string]json.RawMessage) (any, bool, bool) {
	rawID, exists := envelope["id"]
	if !exists {
		return nil, false, true
	}
	trimmed := bytes.TrimSpace(rawID)
	if len(trimmed) == 0 {
		return nil, true, false
	}

	var id any
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&id); err != nil {
		return nil, true, false
	}
	if !isValidJSONRPCID(id) {
		return nil, true, false
	}
	return id, true, true
}

func isValidJSONRPCID(id any) bool {
	switch v := id.(type) {
	case string:
		return true
	case json.Number:
		return isJSONInteger(v.String())
	default:
		return false
	}
}

func isValidParamsValue(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	return trimmed[0] == '{'
}

func isJSONInteger(value string) bool {
	if value == "" || strings.ContainsAny(value, ".eE") {
		return false
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return true
	}
	if strings.HasPrefix(value, "-") {
		return false
	}
	_, err := strconv.ParseUint(value, 10, 64)
	return err == nil
}
