package models

import (
	"time"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/notification"
	"github.com/google/uuid"
)

// NotificationModel is the persistence model for staff notifications.
type NotificationModel struct {
	BaseModel
	Type        notification.Type `gorm:"type:varchar(30);not null"`
	Message     string            `gorm:"type:text;not null"`
	OrderID     uuid.UUID         `gorm:"type:uuid;not null;index"`
	OrderNumber string            `gorm:"type:varchar(50)"`
	IsRead      bool              `gorm:"not null;default:false;index"`
	ReadAt      *time.Time
}

// TableName returns the table name for GORM
func (NotificationModel) TableName() string {
	return "notifications"
}

// ToDomain converts the persistence model to a domain Notification.
func (m *NotificationModel) ToDomain() *notification.Notification {
	return &notification.Notification{
		BaseEntity:  m.entity(),
		Type:        m.Type,
		Message:     m.Message,
		OrderID:     m.OrderID,
		OrderNumber: m.OrderNumber,
		IsRead:      m.IsRead,
		ReadAt:      m.ReadAt,
	}
}

// NotificationModelFromDomain creates a new persistence model from a domain Notification.
func NotificationModelFromDomain(n *notification.Notification) *NotificationModel {
	m := &NotificationModel{
		Type:        n.Type,
		Message:     n.Message,
		OrderID:     n.OrderID,
		OrderNumber: n.OrderNumber,
		IsRead:      n.IsRead,
		ReadAt:      n.ReadAt,
	}
	m.setEntity(n.BaseEntity)
	return m
}
