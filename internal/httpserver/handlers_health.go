package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Amani-Ishimwe/RFID/internal/platform/version"
)

const readinessProbeTimeout = 5 * time.Second

// HealthCheck is a named health check function.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type failedCheck struct {
	name string
	err  error
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status":  "ok",
		"uptime":  time.Since(s.startTime).Seconds(),
		"viewers": s.registry.ClientCount(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

func (s *Server) handleReadiness(c echo.Context) error {
	// Concurrent probes share one round of checks.
	res, _, _ := s.probes.Do("ready", func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), readinessProbeTimeout)
		defer cancel()
		return s.runHealthChecks(ctx), nil
	})

	if failed, _ := res.(*failedCheck); failed != nil {
		response := map[string]any{
			"status":       "unhealthy",
			"failed_check": failed.name,
			"error":        failed.err.Error(),
		}
		if err := c.JSON(http.StatusServiceUnavailable, response); err != nil {
			return fmt.Errorf("failed to send JSON response: %w", err)
		}
		return nil
	}

	if err := c.JSON(http.StatusOK, map[string]string{"status": "ready"}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) runHealthChecks(ctx context.Context) *failedCheck {
	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			return &failedCheck{name: hc.Name, err: err}
		}
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
