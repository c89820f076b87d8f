package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTopics(t *testing.T) {
	topics := NewTopics("team07")

	assert.Equal(t, Topic("rfid/team07/card/status"), topics.Status)
	assert.Equal(t, Topic("rfid/team07/card/balance"), topics.Balance)
	assert.Equal(t, Topic("rfid/team07/card/topup"), topics.TopUp)
}

func TestTopics_Inbound(t *testing.T) {
	topics := NewTopics("g1")

	assert.Equal(t, []Topic{"rfid/g1/card/status", "rfid/g1/card/balance"}, topics.Inbound())
	assert.NotContains(t, topics.Inbound(), topics.TopUp)
}

func TestTopic_Kind(t *testing.T) {
	tests := []struct {
		topic Topic
		want  string
	}{
		{"rfid/team07/card/status", "status"},
		{"rfid/team07/card/topup", "topup"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		t.Run(string(tt.topic), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.topic.Kind())
		})
	}
}
