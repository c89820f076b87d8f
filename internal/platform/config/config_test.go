package config

import (
	"testing"
	"time"

	"github.com/Amani-Ishimwe/RFID/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "mqtt://broker.benax.rw:1883", cfg.BrokerURL)
	assert.Equal(t, "team07", cfg.GroupID)
	assert.Equal(t, 0, cfg.BrokerQoS)
	assert.Equal(t, 3, cfg.BrokerConnectAttempts)
	assert.Equal(t, 10*time.Second, cfg.BrokerConnectTimeout)
	assert.Equal(t, 5*time.Second, cfg.PublishTimeout)
	assert.Equal(t, "public", cfg.StaticDir)
	assert.Nil(t, cfg.Origins())
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("BROKER_URL", "redis://localhost:6379")
	t.Setenv("GROUP_ID", "team42")
	t.Setenv("BROKER_QOS", "1")
	t.Setenv("PUBLISH_TIMEOUT", "750ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "redis://localhost:6379", cfg.BrokerURL)
	assert.Equal(t, "team42", cfg.GroupID)
	assert.Equal(t, 1, cfg.BrokerQoS)
	assert.Equal(t, 750*time.Millisecond, cfg.PublishTimeout)
}

func TestConfig_Topics(t *testing.T) {
	t.Setenv("GROUP_ID", "team42")

	cfg, err := Load()
	require.NoError(t, err)

	topics := cfg.Topics()
	assert.Equal(t, domain.Topic("rfid/team42/card/status"), topics.Status)
	assert.Equal(t, domain.Topic("rfid/team42/card/balance"), topics.Balance)
	assert.Equal(t, domain.Topic("rfid/team42/card/topup"), topics.TopUp)
}

func TestConfig_Origins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://dash.example.com, http://localhost:3000,,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://dash.example.com", "http://localhost:3000"}, cfg.Origins())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"group with slash", "GROUP_ID", "a/b", "GROUP_ID must not contain"},
		{"group with wildcard", "GROUP_ID", "team#", "GROUP_ID must not contain"},
		{"broker url without host", "BROKER_URL", "mqtt://", "BROKER_URL must include scheme and host"},
		{"qos out of range", "BROKER_QOS", "3", "BROKER_QOS must be 0, 1 or 2"},
		{"zero connect attempts", "BROKER_CONNECT_ATTEMPTS", "0", "BROKER_CONNECT_ATTEMPTS must be at least 1"},
		{"zero max connections", "MAX_WEBSOCKET_CONNECTIONS", "0", "MAX_WEBSOCKET_CONNECTIONS must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
