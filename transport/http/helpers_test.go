package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slighter12/cocos-mcp-go/config"
	"github.com/slighter12/cocos-mcp-go/logger"
	"github.com/slighter12/cocos-mcp-go/mcp"
	"github.com/slighter12/cocos-mcp-go/mcp/jsonrpc"
	"github.com/slighter12/cocos-mcp-go/reconcile"
	"github.com/slighter12/cocos-mcp-go/runtimebridge"
	"github.com/slighter12/cocos-mcp-go/tools"
)

var initHTTPTestLogger sync.Once

func newTestHTTPServer(t *testing.T) *Server {
	t.Helper()
	initHTTPTestLogger.Do(func() {
		if err := logger.Init(logger.GetLevelFromString("error"), logger.FormatJSON); err != nil {
			t.Fatalf("init logger: %v", err)
		}
	})
	runtimebridge.ResetDefaultStoreForTests(10 * time.Second)
	runtimebridge.ResetDefaultCommandBrokerForTests(2 * time.Second)

	engine := reconcile.NewEngine(
		runtimebridge.NewSceneBridge(nil, nil, runtimebridge.WithCommandTimeout(2*time.Second)),
		reconcile.WithTiming(reconcile.Timing{}),
		reconcile.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	toolManager := tools.NewManager()
	toolManager.RegisterDefaultTools(engine)

	server := NewServer(config.NewConfig(), toolManager)
	runtimebridge.SetNotificationSender(server.sessionManager.Send)
	t.Cleanup(func() { runtimebridge.SetNotificationSender(nil) })
	return server
}

func postMCP(t *testing.T, server *Server, body map[string]any, sessionID string, protocolVersion string) (map[string]any, string, int) {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(raw))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if sessionID != "" {
		req.Header.Set(headerSessionID, sessionID)
	}
	if protocolVersion != "" {
		req.Header.Set(headerProtocolVersion, protocolVersion)
	}

	rec := httptest.NewRecorder()
	ctx := echo.New().NewContext(req, rec)
	if err := server.handleStreamableHTTPPost(ctx); err != nil {
		t.Fatalf("handleStreamableHTTPPost: %v", err)
	}

	var parsed map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
	}
	return parsed, rec.Header().Get(headerSessionID), rec.Code
}

// initSession runs initialize + notifications/initialized and returns the session id.
func initSession(t *testing.T, server *Server, client string) string {
	t.Helper()
	_, sessionID, status := postMCP(t, server, map[string]any{
		"jsonrpc": jsonrpc.Version,
		"id":      "init-" + client,
		"method":  mcp.MethodInitialize,
		"params": map[string]any{
			"protocolVersion": mcp.ProtocolVersion,
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]any{"name": client, "version": "0.1.0"},
		},
	}, "", mcp.ProtocolVersion)
	if status != http.StatusOK || sessionID == "" {
		t.Fatalf("initialize %s failed, status=%d session=%q", client, status, sessionID)
	}

	_, _, status = postMCP(t, server, map[string]any{
		"jsonrpc": jsonrpc.Version,
		"method":  mcp.MethodInitialized,
	}, sessionID, mcp.ProtocolVersion)
	if status != http.StatusAccepted {
		t.Fatalf("initialized notify for %s failed, status=%d", client, status)
	}
	return sessionID
}

func callTool(t *testing.T, server *Server, sessionID, name string, args map[string]any) map[string]any {
	t.Helper()
	resp, _, status := postMCP(t, server, map[string]any{
		"jsonrpc": jsonrpc.Version,
		"id":      "call-" + name,
		"method":  mcp.MethodToolsCall,
		"params":  map[string]any{"name": name, "arguments": args},
	}, sessionID, mcp.ProtocolVersion)
	if status != http.StatusOK {
		t.Fatalf("tools/call %s failed, status=%d", name, status)
	}
	return mustMap(t, resp["result"])
}

func mustMap(t *testing.T, value any) map[string]any {
	t.Helper()
	out, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("expected map[string]any, got %T", value)
	}
	return out
}

// streamWriter is an SSE sink that hands each data frame to a channel.
type streamWriter struct {
	header http.Header
	frames chan map[string]any
}

func newStreamWriter() *streamWriter {
	return &streamWriter{header: http.Header{}, frames: make(chan map[string]any, 8)}
}

func (w *streamWriter) Header() http.Header { return w.header }
func (w *streamWriter) WriteHeader(int)     {}
func (w *streamWriter) Flush()              {}
func (w *streamWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(p, []byte("\n")) {
		data, ok := bytes.CutPrefix(line, []byte("data: "))
		if !ok {
			continue
		}
		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err == nil {
			w.frames <- frame
		}
	}
	return len(p), nil
}

func (w *streamWriter) next(t *testing.T, ctx context.Context) map[string]any {
	t.Helper()
	select {
	case frame := <-w.frames:
		return frame
	case <-ctx.Done():
		t.Fatal("timed out waiting for SSE frame")
		return nil
	}
}
