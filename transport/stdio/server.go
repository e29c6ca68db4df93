package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/slighter12/cocos-mcp-go/logger"
	"github.com/slighter12/cocos-mcp-go/mcp"
	"github.com/slighter12/cocos-mcp-go/mcp/jsonrpc"
	"github.com/slighter12/cocos-mcp-go/tools"
	"github.com/slighter12/cocos-mcp-go/transport/shared"
)

const maxFrameBytes = 1 << 20

// StdioServer handles MCP communication over stdio
type StdioServer struct {
	toolManager *tools.Manager
}

// NewStdioServer creates a new stdio server
func NewStdioServer(toolManager *tools.Manager) *StdioServer {
	return &StdioServer{
		toolManager: toolManager,
	}
}

// Start serves newline-delimited JSON-RPC on stdin/stdout.
func (s *StdioServer) Start(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC message per line from r and writes responses to w
// until r reaches EOF or ctx ends.
func (s *StdioServer) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	encoder := json.NewEncoder(w)

	logger.Debug("Stdio server started and waiting for messages")

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		requests, prebuilt, _, err := shared.ParseJSONRPCFrame(line)
		if err != nil {
			logger.Error("Error decoding message", "error", err)
			continue
		}
		responses := append([]any(nil), prebuilt...)
		for _, msg := range requests {
			logger.Debug("Stdio message received", "method", msg.Method)
			if response := s.handleMessage(ctx, msg); response != nil && !msg.IsNotification() {
				responses = append(responses, response)
			}
		}

		for _, response := range responses {
			if err := encoder.Encode(response); err != nil {
				logger.Error("Error encoding response", "error", err)
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	logger.Debug("Stdio EOF received, terminating server")
	return nil
}

func (s *StdioServer) handleMessage(ctx context.Context, msg jsonrpc.Request) any {
	switch msg.Method {
	case mcp.MethodInitialize:
		logger.Debug("Handling init message")
		return jsonrpc.NewResponse(msg.ID, shared.BuildInitializeResult(msg.Params))
	case "initialized", mcp.MethodInitialized:
		return nil
	default:
		return shared.DispatchStandardMethod(ctx, msg, s.toolManager, shared.ReadResource)
	}
}
