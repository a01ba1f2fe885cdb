package notification

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows a notification listing
type ListFilter struct {
	UnreadOnly bool
	Limit      int
}

// Repository defines the interface for notification persistence
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	// FindAll returns notifications newest first
	FindAll(ctx context.Context, filter ListFilter) ([]Notification, error)
	Save(ctx context.Context, n *Notification) error
	// MarkAllRead flags every unread notification and returns how many changed
	MarkAllRead(ctx context.Context) (int64, error)
}
