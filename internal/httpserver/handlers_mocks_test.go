package httpserver

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/Amani-Ishimwe/RFID/internal/app"
	"github.com/Amani-Ishimwe/RFID/internal/broadcast"
	"github.com/Amani-Ishimwe/RFID/internal/domain"
	"github.com/Amani-Ishimwe/RFID/internal/metrics"
	"github.com/Amani-Ishimwe/RFID/internal/platform/config"
)

type mockTopUpService struct {
	mu      sync.Mutex
	topUpFn func(ctx context.Context, raw domain.RawTopUp) (app.Ack, error)
	calls   []domain.RawTopUp
}

func (m *mockTopUpService) TopUp(ctx context.Context, raw domain.RawTopUp) (app.Ack, error) {
	m.mu.Lock()
	m.calls = append(m.calls, raw)
	m.mu.Unlock()
	if m.topUpFn != nil {
		return m.topUpFn(ctx, raw)
	}
	return app.Ack{Success: true, Message: app.AckMessage}, nil
}

func (m *mockTopUpService) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type testServer struct {
	*Server
	registry *broadcast.Registry
	set      *metrics.Set
}

type testOptions struct {
	cfg          *config.Config
	healthChecks []HealthCheck
}

func withConfig(fn func(*config.Config)) func(*testOptions) {
	return func(o *testOptions) { fn(o.cfg) }
}

func withHealthChecks(checks ...HealthCheck) func(*testOptions) {
	return func(o *testOptions) { o.healthChecks = checks }
}

func newTestServer(t *testing.T, topUps topUpService, opts ...func(*testOptions)) *testServer {
	t.Helper()

	o := &testOptions{cfg: &config.Config{
		AppEnv:                  "test",
		Port:                    "0",
		StaticDir:               t.TempDir(),
		MaxWebSocketConnections: 100,
		MaxConnectionsPerIP:     50,
		ConnectionRatePerIP:     100,
		TopUpRatePerIP:          100,
	}}
	for _, opt := range opts {
		opt(o)
	}

	reg := metrics.NewRegistry()
	set := metrics.NewSet(reg)
	registry := broadcast.NewRegistry(clockwork.NewRealClock(), set.WebSocket, o.cfg.MaxWebSocketConnections)
	t.Cleanup(registry.Stop)

	if topUps == nil {
		topUps = &mockTopUpService{}
	}

	srv := NewServer(o.cfg, topUps, registry, set, metrics.Handler(reg), o.healthChecks)
	return &testServer{Server: srv, registry: registry, set: set}
}

// dialViewer starts srv on a test listener and opens a viewer connection on path.
func dialViewer(t *testing.T, srv *testServer, path string, header map[string][]string) (*ws.Conn, error) {
	t.Helper()

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := ws.DefaultDialer.Dial(url, header)
	if err != nil {
		return nil, err
	}
	t.Cleanup(func() { conn.Close() })
	return conn, nil
}

func waitForViewers(t *testing.T, registry *broadcast.Registry, expected int) {
	t.Helper()
	require.Eventually(t, func() bool { return registry.ClientCount() == expected }, 2*time.Second, 5*time.Millisecond)
}
