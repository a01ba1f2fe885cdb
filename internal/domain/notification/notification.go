package notification

import (
	"fmt"
	"time"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/shared"
	"github.com/google/uuid"
)

// Type is the kind of change a notification announces
type Type string

const (
	TypeNewOrder     Type = "new_order"
	TypeOrderUpdated Type = "order_updated"
)

// IsValid checks if the type is a known notification type
func (t Type) IsValid() bool {
	return t == TypeNewOrder || t == TypeOrderUpdated
}

// Notification is a staff-wide message about an order change.
// Notifications are never deleted, only marked read.
type Notification struct {
	shared.BaseEntity
	Type        Type
	Message     string
	OrderID     uuid.UUID
	OrderNumber string
	IsRead      bool
	ReadAt      *time.Time
}

// NewNotification creates an unread notification for an order
func NewNotification(t Type, orderID uuid.UUID, orderNumber, message string) (*Notification, error) {
	if !t.IsValid() {
		return nil, shared.NewDomainError("INVALID_NOTIFICATION_TYPE", fmt.Sprintf("Unknown notification type %q", t))
	}
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER", "Order ID cannot be empty")
	}
	if message == "" {
		return nil, shared.NewDomainError("INVALID_MESSAGE", "Message cannot be empty")
	}

	return &Notification{
		BaseEntity:  shared.NewBaseEntity(),
		Type:        t,
		Message:     message,
		OrderID:     orderID,
		OrderNumber: orderNumber,
	}, nil
}

// MarkRead flags the notification read, reporting whether it changed
func (n *Notification) MarkRead() bool {
	if n.IsRead {
		return false
	}
	now := time.Now()
	n.IsRead = true
	n.ReadAt = &now
	n.Touch(now)
	return true
}
