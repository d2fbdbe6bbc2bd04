package amqp

import (
	"encoding/json"
	"time"
)

// ClosingCommittedMessage notifies the mirror worker that a closing
// record was committed. It carries only the record id; the worker
// loads the full record from the database.
type ClosingCommittedMessage struct {
	ClosingID int64     `json:"closing_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewClosingCommittedMessage creates a notification for one closing.
func NewClosingCommittedMessage(closingID int64) *ClosingCommittedMessage {
	return &ClosingCommittedMessage{
		ClosingID: closingID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ClosingCommittedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ClosingCommittedMessageFromJSON creates a message from JSON bytes
func ClosingCommittedMessageFromJSON(data []byte) (*ClosingCommittedMessage, error) {
	var msg ClosingCommittedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
