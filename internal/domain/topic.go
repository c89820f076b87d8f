package domain

import "strings"

const (
	topicNamespace = "rfid"
	topicCategory  = "card"
)

// Topic is a broker topic of the form <namespace>/<group-id>/<category>/<kind>.
type Topic string

func (t Topic) String() string {
	return string(t)
}

// Kind returns the last path segment of the topic ("status", "balance", ...).
func (t Topic) Kind() string {
	s := string(t)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Topics holds every topic the bridge talks to. It is derived once from the
// configured group identifier and injected wherever a topic is needed.
type Topics struct {
	Status  Topic
	Balance Topic
	TopUp   Topic
}

// NewTopics derives the bridge topics for a group.
func NewTopics(groupID string) Topics {
	return Topics{
		Status:  newTopic(groupID, "status"),
		Balance: newTopic(groupID, "balance"),
		TopUp:   newTopic(groupID, "topup"),
	}
}

// Inbound returns the topics the bridge subscribes to.
func (t Topics) Inbound() []Topic {
	return []Topic{t.Status, t.Balance}
}

func newTopic(groupID, kind string) Topic {
	return Topic(topicNamespace + "/" + groupID + "/" + topicCategory + "/" + kind)
}
