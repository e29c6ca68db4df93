package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/slighter12/cocos-mcp-go/config"
	"github.com/slighter12/cocos-mcp-go/logger"
	"github.com/slighter12/cocos-mcp-go/runtimebridge"
	"github.com/slighter12/cocos-mcp-go/tools"
)

const (
	sessionCleanupInterval = 5 * time.Minute
	sessionIdleTimeout     = 10 * time.Minute
)

type Server struct {
	toolManager    *tools.Manager
	sessionManager *SessionManager
	config         *config.Config
	echo           *echo.Echo
}

// NewServer builds the Streamable HTTP server around toolManager. Editor
// sessions that go away are dropped from the runtime bridge.
func NewServer(cfg *config.Config, toolManager *tools.Manager) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	return &Server{
		toolManager:    toolManager,
		sessionManager: NewSessionManager(releaseBridgeSession),
		config:         cfg,
		echo:           e,
	}
}

func releaseBridgeSession(sessionID string) {
	runtimebridge.DefaultStore().RemoveSession(sessionID)
	if dropped := runtimebridge.DefaultCommandBroker().DropSession(sessionID); dropped > 0 {
		logger.Warn("Dropped pending editor commands for closed session", "session_id", sessionID, "count", dropped)
	}
}

// Start serves until ctx ends or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	runtimebridge.SetNotificationSender(s.sessionManager.Send)
	defer runtimebridge.SetNotificationSender(nil)

	go s.startCleanupGoroutine(ctx)
	s.setupEcho()

	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
	logger.Info("Streamable HTTP server starting to listen", "address", addr)

	errCh := make(chan error, 1)
	go func() { errCh <- s.echo.Start(addr) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

func (s *Server) setupEcho() {
	// Access logs go through slog; stdout belongs to the stdio transport.
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "remote_ip", v.RemoteIP}
			if v.Error != nil {
				logger.Warn("HTTP request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Debug("HTTP request", attrs...)
			return nil
		},
	}))
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, headerSessionID, headerProtocolVersion, "Last-Event-ID"},
		ExposeHeaders: []string{headerSessionID},
	}))
	RegisterRoutes(s.echo, s)
}

func (s *Server) startCleanupGoroutine(ctx context.Context) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.sessionManager.CleanupSessions(sessionIdleTimeout); removed > 0 {
				logger.Debug("Expired idle MCP sessions", "count", removed)
			}
		}
	}
}

func (s *Server) GetToolManager() *tools.Manager {
	return s.toolManager
}
func (s *Server) GetSessionManager() *SessionManager {
	return s.sessionManager
}
func (s *Server) GetConfig() *config.Config {
	return s.config
}
