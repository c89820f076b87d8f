package broker

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	tcwait "github.com/testcontainers/testcontainers-go/wait"

	"github.com/Amani-Ishimwe/RFID/internal/domain"
	"github.com/Amani-Ishimwe/RFID/internal/metrics"
)

var (
	testRedisURL string
	testMQTTURL  string
)

func TestMain(m *testing.M) {
	flag.Parse()

	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start redis container: %v\n", err)
		os.Exit(1)
	}
	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get redis endpoint: %v\n", err)
		os.Exit(1)
	}
	testRedisURL = "redis://" + endpoint

	mqttContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "eclipse-mosquitto:1.6",
			ExposedPorts: []string{"1883/tcp"},
			WaitingFor:   tcwait.ForListeningPort("1883/tcp"),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start mosquitto container: %v\n", err)
		os.Exit(1)
	}
	host, err := mqttContainer.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get mosquitto host: %v\n", err)
		os.Exit(1)
	}
	port, err := mqttContainer.MappedPort(ctx, "1883/tcp")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get mosquitto port: %v\n", err)
		os.Exit(1)
	}
	testMQTTURL = fmt.Sprintf("mqtt://%s:%s", host, port.Port())

	code := m.Run()

	for _, c := range []testcontainers.Container{redisContainer, mqttContainer} {
		if err := c.Terminate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to terminate container: %v\n", err)
		}
	}
	os.Exit(code)
}

type received struct {
	topic   domain.Topic
	payload string
}

func connectForTest(t *testing.T, url string) (Link, *metrics.BrokerMetrics, <-chan received) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	m := metrics.NewBrokerMetrics(prometheus.NewRegistry())
	link, err := Connect(context.Background(), Options{
		URL:             url,
		ConnectTimeout:  5 * time.Second,
		ConnectAttempts: 3,
		Metrics:         m,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = link.Close() })

	ch := make(chan received, 64)
	link.OnMessage(func(event domain.InboundEvent) {
		ch <- received{topic: event.Topic, payload: string(event.Payload)}
	})
	return link, m, ch
}

func testRoundTripInOrder(t *testing.T, url, group string) {
	link, m, ch := connectForTest(t, url)
	topics := domain.NewTopics(group)
	ctx := context.Background()

	require.True(t, link.IsConnected())
	require.NoError(t, link.Subscribe(ctx, topics.Inbound()...))

	// Give the broker a moment to register the subscription.
	time.Sleep(100 * time.Millisecond)

	const n = 20
	for i := range n {
		topic := topics.Status
		if i%2 == 1 {
			topic = topics.Balance
		}
		require.NoError(t, link.Publish(ctx, topic, fmt.Appendf(nil, `{"seq":%d}`, i)))
	}
	// Not subscribed: must not arrive.
	require.NoError(t, link.Publish(ctx, topics.TopUp, []byte(`{"uid":"A1","amount":1}`)))

	for i := range n {
		select {
		case msg := <-ch:
			require.Equal(t, fmt.Sprintf(`{"seq":%d}`, i), msg.payload)
			if i%2 == 1 {
				require.Equal(t, topics.Balance, msg.topic)
			} else {
				require.Equal(t, topics.Status, msg.topic)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}

	select {
	case msg := <-ch:
		t.Fatalf("unexpected message on %s", msg.topic)
	case <-time.After(200 * time.Millisecond):
	}

	require.Equal(t, float64(n/2), counterValue(m.MessagesReceived.WithLabelValues("status")))
}

func TestRedisLink_RoundTripInOrder(t *testing.T) {
	testRoundTripInOrder(t, testRedisURL, "redis-order")
}

func TestMQTTLink_RoundTripInOrder(t *testing.T) {
	testRoundTripInOrder(t, testMQTTURL, "mqtt-order")
}

func TestRedisLink_PublishAfterClose(t *testing.T) {
	link, _, _ := connectForTest(t, testRedisURL)
	topic := domain.NewTopics("redis-closed").TopUp

	require.NoError(t, link.Close())

	err := link.Publish(context.Background(), topic, []byte(`{}`))
	require.ErrorIs(t, err, domain.ErrNotConnected)
	require.False(t, link.IsConnected())
}

func TestMQTTLink_PublishAfterClose(t *testing.T) {
	link, _, _ := connectForTest(t, testMQTTURL)
	topic := domain.NewTopics("mqtt-closed").TopUp

	require.NoError(t, link.Close())

	err := link.Publish(context.Background(), topic, []byte(`{}`))
	require.ErrorIs(t, err, domain.ErrNotConnected)
	require.False(t, link.IsConnected())
}

func TestRedisLink_MetricsHookCountsCommands(t *testing.T) {
	link, m, _ := connectForTest(t, testRedisURL)
	topic := domain.NewTopics("redis-metrics").TopUp

	require.NoError(t, link.Publish(context.Background(), topic, []byte(`{}`)))

	require.Equal(t, 1.0, counterValue(m.RedisOps.WithLabelValues("publish", "success")))
	require.GreaterOrEqual(t, counterValue(m.RedisOps.WithLabelValues("ping", "success")), 1.0)
}
