package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/Amani-Ishimwe/RFID/internal/domain"
	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv string `env:"APP_ENV" default:"development"`
	Port   string `env:"PORT" default:"3000"`

	BrokerURL             string        `env:"BROKER_URL" default:"mqtt://broker.benax.rw:1883"`
	GroupID               string        `env:"GROUP_ID" default:"team07"`
	BrokerClientID        string        `env:"BROKER_CLIENT_ID"`
	BrokerUsername        string        `env:"BROKER_USERNAME"`
	BrokerPassword        string        `env:"BROKER_PASSWORD"`
	BrokerQoS             int           `env:"BROKER_QOS" default:"0"`
	BrokerConnectTimeout  time.Duration `env:"BROKER_CONNECT_TIMEOUT" default:"10s"`
	BrokerConnectAttempts int           `env:"BROKER_CONNECT_ATTEMPTS" default:"3"`
	PublishTimeout        time.Duration `env:"PUBLISH_TIMEOUT" default:"5s"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	StaticDir      string `env:"STATIC_DIR" default:"public"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int     `env:"MAX_CONNECTIONS_PER_IP" default:"50"`
	ConnectionRatePerIP     float64 `env:"CONNECTION_RATE_PER_IP" default:"10"`
	TopUpRatePerIP          float64 `env:"TOPUP_RATE_PER_IP" default:"5"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Topics derives every broker topic from the configured group.
func (c *Config) Topics() domain.Topics {
	return domain.NewTopics(c.GroupID)
}

// Origins returns the allowed WebSocket/CORS origins. Empty means any origin.
func (c *Config) Origins() []string {
	if strings.TrimSpace(c.AllowedOrigins) == "" {
		return nil
	}
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func validate(cfg *Config) error {
	required := map[string]string{
		"BROKER_URL": cfg.BrokerURL,
		"GROUP_ID":   cfg.GroupID,
		"PORT":       cfg.Port,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if strings.Contains(cfg.GroupID, "/") || strings.ContainsAny(cfg.GroupID, "+#") {
		return errors.New("GROUP_ID must not contain '/', '+' or '#'")
	}

	u, err := url.Parse(cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("BROKER_URL must be a valid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BROKER_URL must include scheme and host, got %q", cfg.BrokerURL)
	}

	if cfg.BrokerQoS < 0 || cfg.BrokerQoS > 2 {
		return fmt.Errorf("BROKER_QOS must be 0, 1 or 2, got %d", cfg.BrokerQoS)
	}
	if cfg.BrokerConnectAttempts < 1 {
		return errors.New("BROKER_CONNECT_ATTEMPTS must be at least 1")
	}
	if cfg.MaxWebSocketConnections < 1 {
		return errors.New("MAX_WEBSOCKET_CONNECTIONS must be at least 1")
	}
	if cfg.MaxConnectionsPerIP < 1 {
		return errors.New("MAX_CONNECTIONS_PER_IP must be at least 1")
	}

	return nil
}
