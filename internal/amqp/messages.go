package amqp

import (
	"encoding/json"
	"time"

	"defter/internal/storage"
)

// ChangeMessage carries a single data change to other running sessions.
// Receivers reload from the database; the message only says what moved.
type ChangeMessage struct {
	Table     string    `json:"table"`
	Op        string    `json:"op"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeMessage(c storage.Change) *ChangeMessage {
	return &ChangeMessage{
		Table:     c.Table,
		Op:        c.Op,
		ID:        c.ID,
		Timestamp: time.Now(),
	}
}

// Change converts the wire message back into a storage change. The sequence
// number is assigned by the receiving side's notifier.
func (m *ChangeMessage) Change() storage.Change {
	return storage.Change{Table: m.Table, Op: m.Op, ID: m.ID}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
