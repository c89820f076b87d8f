package httpserver

import (
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	apperrors "github.com/Amani-Ishimwe/RFID/internal/platform/errors"
)

// Viewers only send pongs and the odd keepalive; anything bigger is abuse.
const maxViewerMessageSize = 4096

// handleRoot serves the dashboard, or accepts a viewer connection when the
// request asks for a WebSocket upgrade.
func (s *Server) handleRoot(c echo.Context) error {
	if websocket.IsWebSocketUpgrade(c.Request()) {
		return s.handleWebSocket(c)
	}
	return c.File(filepath.Join(s.config.StaticDir, "index.html"))
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()
	ctx := c.Request().Context()

	if ok, reason := s.limits.Acquire(ip); !ok {
		s.metrics.WebSocket.RejectedConnections.WithLabelValues(string(reason)).Inc()
		slog.WarnContext(ctx, "Viewer connection rejected", "ip", ip, "reason", reason)
		if statusForLimit(reason) == http.StatusTooManyRequests {
			return apperrors.RateLimitedError("too many connection attempts").WithField("ip", ip)
		}
		return apperrors.UnavailableError("connection limit reached", nil).WithField("reason", string(reason))
	}
	defer s.limits.Release(ip)

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the error response.
		s.metrics.WebSocket.RejectedConnections.WithLabelValues("upgrade_failed").Inc()
		slog.DebugContext(ctx, "WebSocket upgrade failed", "ip", ip, "error", err)
		return nil
	}

	handle, err := s.registry.Register(conn)
	if err != nil {
		slog.WarnContext(ctx, "Failed to register viewer", "ip", ip, "error", err)
		_ = conn.Close()
		return nil
	}
	slog.InfoContext(ctx, "Viewer connected", "ip", ip, "handle", handle.String())

	conn.SetReadLimit(maxViewerMessageSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.registry.Unregister(handle)
	slog.InfoContext(ctx, "Viewer disconnected", "ip", ip, "handle", handle.String())

	return nil
}
