// Package broadcast fans order changes out to every connected live session.
package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType names the kind of change carried by a Message
type MessageType string

// Message types. Receivers ignore types they do not know.
const (
	TypeNewOrder     MessageType = "new_order"
	TypeOrderUpdated MessageType = "order_updated"
)

// Message is the envelope written to live sessions as a JSON text frame
type Message struct {
	Type           MessageType `json:"type"`
	OrderID        uuid.UUID   `json:"orderId"`
	OrderNumber    string      `json:"orderNumber,omitempty"`
	NotificationID *uuid.UUID  `json:"notificationId,omitempty"`
	Message        string      `json:"message,omitempty"`
	Status         string      `json:"status,omitempty"`
	ProductID      *int64      `json:"productId,omitempty"`
	OccurredAt     time.Time   `json:"occurredAt"`
}

// Encode serializes the message for the wire
func (m Message) Encode() ([]byte, error) {
	if m.OrderID == uuid.Nil {
		return nil, fmt.Errorf("broadcast message %q without order id", m.Type)
	}
	return json.Marshal(m)
}

// DecodeMessage parses a wire payload
func DecodeMessage(payload []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, fmt.Errorf("decode broadcast message: %w", err)
	}
	return m, nil
}
