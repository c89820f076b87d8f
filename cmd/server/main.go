package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Amani-Ishimwe/RFID/internal/app"
	"github.com/Amani-Ishimwe/RFID/internal/broadcast"
	"github.com/Amani-Ishimwe/RFID/internal/broker"
	"github.com/Amani-Ishimwe/RFID/internal/httpserver"
	"github.com/Amani-Ishimwe/RFID/internal/metrics"
	"github.com/Amani-Ishimwe/RFID/internal/platform/config"
	"github.com/Amani-Ishimwe/RFID/internal/platform/logging"
	"github.com/Amani-Ishimwe/RFID/internal/platform/version"
)

const (
	shutdownTimeout  = 10 * time.Second
	subscribeTimeout = 10 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupBroker(ctx context.Context, cfg *config.Config, m *metrics.BrokerMetrics) *broker.CircuitBreakerLink {
	link, err := broker.Connect(ctx, broker.Options{
		URL:             cfg.BrokerURL,
		ClientID:        cfg.BrokerClientID,
		Username:        cfg.BrokerUsername,
		Password:        cfg.BrokerPassword,
		QoS:             byte(cfg.BrokerQoS),
		ConnectTimeout:  cfg.BrokerConnectTimeout,
		ConnectAttempts: cfg.BrokerConnectAttempts,
		Metrics:         m,
		Logger:          logging.WithComponent("broker"),
	})
	if err != nil {
		slog.Error("Failed to connect to broker", "url", cfg.BrokerURL, "error", err)
		os.Exit(1)
	}

	return broker.NewCircuitBreakerLink(link, broker.BreakerOptions{
		Metrics: m,
		Logger:  logging.WithComponent("broker"),
	})
}

func runGracefulShutdown(ctx context.Context, srv *httpserver.Server, registry *broadcast.Registry, link broker.Link) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		registry.Stop()

		if err := link.Close(); err != nil {
			slog.Error("Broker close error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	set := metrics.NewSet(reg)

	topics := cfg.Topics()
	link := setupBroker(ctx, cfg, set.Broker)

	registry := broadcast.NewRegistry(clock, set.WebSocket, cfg.MaxWebSocketConnections)

	relay := app.NewRelay(registry, set.Broker, nil)
	link.OnMessage(relay.HandleMessage)

	subCtx, cancel := context.WithTimeout(ctx, subscribeTimeout)
	err := link.Subscribe(subCtx, topics.Inbound()...)
	cancel()
	if err != nil {
		slog.Error("Failed to subscribe to card topics", "error", err)
		os.Exit(1)
	}
	for _, topic := range topics.Inbound() {
		slog.Info("Subscribed", "topic", topic.String())
	}

	topUps := app.NewTopUpService(link, topics.TopUp, cfg.PublishTimeout, set.Commands)

	healthChecks := []httpserver.HealthCheck{
		{
			Name: "broker",
			Check: func(context.Context) error {
				if !link.IsConnected() {
					return errors.New("broker not connected")
				}
				return nil
			},
		},
	}

	srv := httpserver.NewServer(cfg, topUps, registry, set, metrics.Handler(reg), healthChecks)

	done := runGracefulShutdown(ctx, srv, registry, link)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
