package amqp

import (
	"encoding/json"
	"time"
)

// NotificationMessage tells the delivery worker that a notification row is
// ready. It only carries the ID; the worker loads the row itself so a stale
// message can never deliver outdated content.
type NotificationMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewNotificationMessage(id int64) *NotificationMessage {
	return &NotificationMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
