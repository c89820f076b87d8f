// Package httpserver is the bridge's HTTP surface: the viewer WebSocket
// endpoint, the top-up command endpoint, static assets, health probes and
// metrics, all on one Echo instance.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/singleflight"

	"github.com/Amani-Ishimwe/RFID/internal/app"
	"github.com/Amani-Ishimwe/RFID/internal/broadcast"
	"github.com/Amani-Ishimwe/RFID/internal/domain"
	"github.com/Amani-Ishimwe/RFID/internal/metrics"
	"github.com/Amani-Ishimwe/RFID/internal/platform/config"
)

type topUpService interface {
	TopUp(ctx context.Context, raw domain.RawTopUp) (app.Ack, error)
}

type viewerRegistry interface {
	Register(conn *websocket.Conn) (broadcast.Handle, error)
	Unregister(handle broadcast.Handle)
	ClientCount() int
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	topUps   topUpService
	registry viewerRegistry

	metrics        *metrics.Set
	metricsHandler http.Handler

	upgrader     websocket.Upgrader
	limits       *ConnectionLimits
	healthChecks []HealthCheck
	probes       singleflight.Group
	startTime    time.Time
}

func NewServer(cfg *config.Config, topUps topUpService, registry viewerRegistry, m *metrics.Set, metricsHandler http.Handler, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:           e,
		config:         cfg,
		topUps:         topUps,
		registry:       registry,
		metrics:        m,
		metricsHandler: metricsHandler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     NewCheckOrigin(cfg.Origins(), cfg.AppEnv == "development"),
		},
		limits: NewConnectionLimits(
			int64(cfg.MaxWebSocketConnections),
			cfg.MaxConnectionsPerIP,
			cfg.ConnectionRatePerIP,
			burstFor(cfg.ConnectionRatePerIP),
		),
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP lets the server be mounted on any http.Server or test server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// burstFor allows roughly one second's worth of requests at once.
func burstFor(ratePerSecond float64) int {
	return max(1, int(ratePerSecond))
}
