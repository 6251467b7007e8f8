package amqp

import (
	"encoding/json"
	"time"
)

// RefreshMessage tells the dashboard server that fresher upstream data is
// available and it should pull a new snapshot.
type RefreshMessage struct {
	Reason    string    `json:"reason"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRefreshMessage(reason, source string) *RefreshMessage {
	return &RefreshMessage{
		Reason:    reason,
		Source:    source,
		Timestamp: time.Now(),
	}
}

func (m *RefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RefreshMessageFromJSON(data []byte) (*RefreshMessage, error) {
	var m RefreshMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
