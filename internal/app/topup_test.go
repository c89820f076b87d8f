package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amani-Ishimwe/RFID/internal/domain"
	"github.com/Amani-Ishimwe/RFID/internal/metrics"
)

func newTestTopUpService(pub *mockPublisher, timeout time.Duration) (*TopUpService, *metrics.CommandMetrics) {
	m := metrics.NewCommandMetrics(prometheus.NewRegistry())
	return NewTopUpService(pub, domain.NewTopics("team07").TopUp, timeout, m), m
}

func rawTopUp(t *testing.T, body string) domain.RawTopUp {
	t.Helper()
	var raw domain.RawTopUp
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return raw
}

func TestTopUp_PublishesCommand(t *testing.T) {
	pub := &mockPublisher{}
	svc, m := newTestTopUpService(pub, time.Second)

	ack, err := svc.TopUp(context.Background(), rawTopUp(t, `{"uid":"A1","amount":50}`))

	require.NoError(t, err)
	assert.Equal(t, Ack{Success: true, Message: "Top-up command sent"}, ack)
	require.Len(t, pub.published(), 1)
	assert.Equal(t, domain.Topic("rfid/team07/card/topup"), pub.published()[0].topic)
	assert.JSONEq(t, `{"uid":"A1","amount":50}`, pub.published()[0].payload)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TopUps.WithLabelValues(metrics.OutcomeAccepted)))
}

func TestTopUp_TruncatesFractionalAmount(t *testing.T) {
	pub := &mockPublisher{}
	svc, _ := newTestTopUpService(pub, time.Second)

	_, err := svc.TopUp(context.Background(), rawTopUp(t, `{"uid":"A1","amount":"20.9"}`))

	require.NoError(t, err)
	require.Len(t, pub.published(), 1)
	assert.JSONEq(t, `{"uid":"A1","amount":20}`, pub.published()[0].payload)
}

func TestTopUp_InvalidRequestNotPublished(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing uid", `{"amount":50}`},
		{"missing amount", `{"uid":"A1"}`},
		{"empty uid", `{"uid":"","amount":50}`},
		{"non-numeric amount", `{"uid":"A1","amount":"abc"}`},
		{"empty body", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			svc, m := newTestTopUpService(pub, time.Second)

			_, err := svc.TopUp(context.Background(), rawTopUp(t, tt.body))

			var validationErr *domain.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.ErrorIs(t, err, domain.ErrMissingField)
			assert.Empty(t, pub.published())
			assert.Equal(t, 1.0, testutil.ToFloat64(m.TopUps.WithLabelValues(metrics.OutcomeRejected)))
		})
	}
}

func TestTopUp_PublishFailure(t *testing.T) {
	brokerErr := &domain.BrokerError{Op: domain.OpPublish, Err: domain.ErrNotConnected}
	pub := &mockPublisher{publishFn: func(context.Context, domain.Topic, []byte) error { return brokerErr }}
	svc, m := newTestTopUpService(pub, time.Second)

	ack, err := svc.TopUp(context.Background(), rawTopUp(t, `{"uid":"A1","amount":50}`))

	assert.ErrorIs(t, err, domain.ErrNotConnected)
	assert.Equal(t, Ack{}, ack)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TopUps.WithLabelValues(metrics.OutcomeFailed)))
}

func TestTopUp_AppliesPublishTimeout(t *testing.T) {
	pub := &mockPublisher{publishFn: func(ctx context.Context, _ domain.Topic, _ []byte) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 40*time.Millisecond)
		<-ctx.Done()
		return ctx.Err()
	}}
	svc, _ := newTestTopUpService(pub, 50*time.Millisecond)

	_, err := svc.TopUp(context.Background(), rawTopUp(t, `{"uid":"A1","amount":1}`))

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestTopUp_EveryCallPublishes(t *testing.T) {
	pub := &mockPublisher{}
	svc, _ := newTestTopUpService(pub, 0)

	for range 3 {
		_, err := svc.TopUp(context.Background(), rawTopUp(t, `{"uid":"A1","amount":50}`))
		require.NoError(t, err)
	}

	assert.Len(t, pub.published(), 3)
}
