package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/slighter12/cocos-mcp-go/logger"
	"github.com/slighter12/cocos-mcp-go/mcp"
	"github.com/slighter12/cocos-mcp-go/mcp/jsonrpc"
	"github.com/slighter12/cocos-mcp-go/runtimebridge"
	"github.com/slighter12/cocos-mcp-go/transport/shared"
)

const (
	maxJSONRPCBodyBytes = 1 << 20
	sseKeepAlive        = 20 * time.Second
)

const (
	headerSessionID       = "MCP-Session-Id"
	headerProtocolVersion = "MCP-Protocol-Version"
)

// routeError is a transport-level rejection answered with a bare JSON-RPC
// error body and an HTTP status.
type routeError struct {
	status  int
	code    jsonrpc.ErrorCode
	message string
}

func reject(status int, message string) *routeError {
	return &routeError{status: status, code: jsonrpc.ErrInvalidRequest, message: message}
}

func (e *routeError) send(c echo.Context) error {
	return c.JSON(e.status, jsonrpc.NewErrorResponse(nil, e.code, e.message, nil))
}

var (
	errMissingSession  = reject(http.StatusBadRequest, "Missing MCP-Session-Id header")
	errUnknownSession  = reject(http.StatusNotFound, "Unknown MCP session")
	errMissingProtocol = reject(http.StatusBadRequest, "Missing MCP-Protocol-Version header")
	errInvalidProtocol = reject(http.StatusBadRequest, "Invalid MCP-Protocol-Version header")
)

func RegisterRoutes(e *echo.Echo, s *Server) {
	e.GET("/", s.handleHTTPInfo)
	e.POST("/mcp", s.handleStreamableHTTPPost)
	e.GET("/mcp", s.handleStreamableHTTPGet)
	e.DELETE("/mcp", s.handleStreamableHTTPDelete)
	e.OPTIONS("/mcp", s.handleOptions)
}

func (s *Server) handleHTTPInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"name":    shared.ServerName,
		"version": shared.ServerVersion,
		"type":    "cocos-mcp",
		"capabilities": map[string]any{
			"stdio":           true,
			"streamable_http": true,
		},
		"streamable_http_endpoint": "/mcp",
		"editor_notification":      runtimebridge.CommandNotificationMethod,
		"protocol_versions":        mcp.SupportedProtocolVersions,
	})
}

func (s *Server) handleOptions(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleStreamableHTTPPost(c echo.Context) error {
	body, rerr := readBody(c)
	if rerr != nil {
		return rerr.send(c)
	}

	requests, prebuilt, acceptedOneWay, err := shared.ParseJSONRPCFrame(body)
	if err != nil {
		logger.Warn("Failed to parse JSON-RPC request", "error", err, "remote_addr", c.RealIP())
		return (&routeError{status: http.StatusBadRequest, code: jsonrpc.ErrParseError, message: "Parse error"}).send(c)
	}
	if len(requests) == 0 && len(prebuilt) == 0 && !acceptedOneWay {
		return reject(http.StatusBadRequest, "Invalid request").send(c)
	}

	requested := strings.TrimSpace(c.Request().Header.Get(headerProtocolVersion))
	if requested != "" && !mcp.IsSupportedProtocolVersion(requested) {
		return reject(http.StatusBadRequest, "Unsupported MCP-Protocol-Version header").send(c)
	}

	hasInitialize, hasOther := false, false
	for _, req := range requests {
		if req.Method == mcp.MethodInitialize {
			hasInitialize = true
		} else {
			hasOther = true
		}
	}

	sessionID, rerr := s.admitPost(c.Request().Header.Get(headerSessionID), len(requests) > 0, hasInitialize, hasOther, acceptedOneWay)
	if rerr != nil {
		return rerr.send(c)
	}
	if rerr := s.checkProtocolHeader(sessionID, requested, hasOther || acceptedOneWay); rerr != nil {
		return rerr.send(c)
	}

	responses := append(make([]any, 0, len(requests)+len(prebuilt)), prebuilt...)
	for _, request := range requests {
		logger.Debug("MCP request", "method", request.Method, "id", request.ID, "session_id", sessionID)
		response, handleErr := s.handleMessage(c.Request().Context(), request, sessionID)
		switch {
		case handleErr != nil:
			logger.Error("Error handling message", "error", handleErr, "method", request.Method)
			if !request.IsNotification() {
				responses = append(responses, jsonrpc.NewErrorResponse(request.ID, jsonrpc.ErrInternalError, "Internal error", nil))
			}
		case request.IsNotification() || response == nil:
		default:
			responses = append(responses, response)
		}
	}

	if sessionID != "" {
		c.Response().Header().Set(headerSessionID, sessionID)
	}
	switch {
	case len(requests) == 0 && len(prebuilt) > 0:
		return c.JSON(http.StatusBadRequest, prebuilt[0])
	case len(responses) == 0:
		return c.NoContent(http.StatusAccepted)
	default:
		return c.JSON(http.StatusOK, responses[0])
	}
}

func readBody(c echo.Context) ([]byte, *routeError) {
	limited := http.MaxBytesReader(c.Response(), c.Request().Body, maxJSONRPCBodyBytes)
	defer limited.Close()

	body, err := io.ReadAll(limited)
	if err == nil {
		return body, nil
	}
	if _, ok := errors.AsType[*http.MaxBytesError](err); ok {
		logger.Warn("Request body too large", "limit_bytes", maxJSONRPCBodyBytes, "remote_addr", c.RealIP())
		return nil, reject(http.StatusRequestEntityTooLarge, "Request body too large")
	}
	logger.Error("Failed to read request body", "error", err)
	return nil, &routeError{status: http.StatusBadRequest, code: jsonrpc.ErrParseError, message: "Parse error"}
}

// admitPost resolves the session a POST runs in. initialize may open a new
// session; everything else must name a live one.
func (s *Server) admitPost(sessionID string, hasRequests, hasInitialize, hasOther, oneWay bool) (string, *routeError) {
	if hasRequests && hasInitialize {
		if sessionID == "" {
			sessionID = "session_" + uuid.NewString()
			s.sessionManager.CreateSession(sessionID)
			logger.Debug("Opened MCP session", "session_id", sessionID)
		} else if !s.sessionManager.TouchSession(sessionID) {
			return "", errUnknownSession
		}
	}
	if (hasRequests && (!hasInitialize || hasOther)) || oneWay {
		if sessionID == "" {
			return "", errMissingSession
		}
		if !s.sessionManager.TouchSession(sessionID) {
			return "", errUnknownSession
		}
	}
	if sessionID != "" && !hasRequests && !s.sessionManager.TouchSession(sessionID) {
		return "", errUnknownSession
	}
	return sessionID, nil
}

// checkProtocolHeader enforces MCP-Protocol-Version once a session has
// negotiated one. requireIfUnnegotiated makes the header mandatory for
// sessions that never completed initialize.
func (s *Server) checkProtocolHeader(sessionID, requested string, requireIfUnnegotiated bool) *routeError {
	negotiated := ""
	if sessionID != "" {
		negotiated, _ = s.sessionManager.GetProtocolVersion(sessionID)
	}
	if requested == "" {
		if requireIfUnnegotiated && strings.TrimSpace(negotiated) == "" {
			return errMissingProtocol
		}
		return nil
	}
	if !mcp.IsSupportedProtocolVersion(requested) || (negotiated != "" && negotiated != requested) {
		return errInvalidProtocol
	}
	return nil
}

// existingSession validates the headers GET and DELETE share.
func (s *Server) existingSession(c echo.Context) (string, *routeError) {
	sessionID := c.Request().Header.Get(headerSessionID)
	if sessionID == "" {
		return "", errMissingSession
	}
	if !s.sessionManager.HasSession(sessionID) {
		return "", errUnknownSession
	}
	requested := strings.TrimSpace(c.Request().Header.Get(headerProtocolVersion))
	if rerr := s.checkProtocolHeader(sessionID, requested, true); rerr != nil {
		return "", rerr
	}
	return sessionID, nil
}

// handleStreamableHTTPGet holds the SSE stream that carries scene commands
// to the editor plugin until the client disconnects or the session ends.
func (s *Server) handleStreamableHTTPGet(c echo.Context) error {
	sessionID, rerr := s.existingSession(c)
	if rerr != nil {
		return rerr.send(c)
	}
	if !acceptsEventStream(c.Request().Header.Get(echo.HeaderAccept)) {
		return reject(http.StatusBadRequest, "Accept header must include text/event-stream").send(c)
	}
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return reject(http.StatusMethodNotAllowed, "SSE stream is not available").send(c)
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set(headerSessionID, sessionID)
	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	streamCtx, stopStream := context.WithCancel(c.Request().Context())
	defer stopStream()

	transport := NewStreamableHTTPTransport(c.Response().Writer, flusher, stopStream)
	if err := transport.SendComment("stream opened"); err != nil {
		logger.Warn("Failed to write initial SSE comment", "session_id", sessionID, "error", err)
		return nil
	}
	// Bind only after the first frame so notifications never race the headers.
	if !s.sessionManager.SetTransport(sessionID, transport) {
		transport.Close()
		logger.Warn("SSE session disappeared before stream binding", "session_id", sessionID)
		return nil
	}
	defer s.sessionManager.ClearTransportIfMatch(sessionID, transport)
	logger.Info("SSE stream opened", "session_id", sessionID, "remote_addr", c.RealIP())

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-streamCtx.Done():
			logger.Info("SSE stream closed", "session_id", sessionID)
			return nil
		case <-ticker.C:
			if err := transport.SendComment("keep-alive"); err != nil {
				logger.Debug("SSE keep-alive failed", "session_id", sessionID, "error", err)
				return nil
			}
		}
	}
}

func (s *Server) handleStreamableHTTPDelete(c echo.Context) error {
	sessionID, rerr := s.existingSession(c)
	if rerr != nil {
		return rerr.send(c)
	}
	s.sessionManager.RemoveSession(sessionID)
	logger.Info("MCP session deleted", "session_id", sessionID)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleMessage(ctx context.Context, msg jsonrpc.Request, sessionID string) (any, error) {
	switch msg.Method {
	case mcp.MethodInitialize:
		return s.handleInit(msg, sessionID), nil
	case "initialized", mcp.MethodInitialized:
		if !msg.IsNotification() {
			return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrInvalidRequest, "Invalid request", nil), nil
		}
		if sessionID != "" {
			s.sessionManager.MarkInitialized(sessionID)
		}
		return nil, nil
	default:
		msg = shared.WithMCPContext(msg, sessionID, s.sessionManager.IsInitialized(sessionID))
		return shared.DispatchStandardMethod(ctx, msg, s.toolManager, shared.ReadResource), nil
	}
}

func (s *Server) handleInit(msg jsonrpc.Request, sessionID string) *jsonrpc.Response {
	result := shared.BuildInitializeResult(msg.Params)
	if sessionID != "" {
		s.sessionManager.CreateSession(sessionID)
		s.sessionManager.SetProtocolVersion(sessionID, result.ProtocolVersion)
	}
	logger.Debug("Session initialized", "session_id", sessionID, "protocol_version", result.ProtocolVersion)
	return jsonrpc.NewResponse(msg.ID, result)
}

func acceptsEventStream(acceptHeader string) bool {
	for part := range strings.SplitSeq(acceptHeader, ",") {
		mime, _, _ := strings.Cut(part, ";")
		if strings.EqualFold(strings.TrimSpace(mime), "text/event-stream") {
			return true
		}
	}
	return false
}
