package notification

import (
	"context"
	"time"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/notification"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultListLimit = 50

// ListFilter is bound from the notification list query string
type ListFilter struct {
	Unread bool `form:"unread"`
	Limit  int  `form:"limit" binding:"omitempty,min=1,max=200"`
}

// Response represents a notification in API responses
type Response struct {
	ID          uuid.UUID  `json:"id"`
	Type        string     `json:"type"`
	Message     string     `json:"message"`
	OrderID     uuid.UUID  `json:"orderId"`
	OrderNumber string     `json:"orderNumber,omitempty"`
	IsRead      bool       `json:"isRead"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ToResponse converts a domain notification to its response
func ToResponse(n *notification.Notification) Response {
	return Response{
		ID:          n.ID,
		Type:        string(n.Type),
		Message:     n.Message,
		OrderID:     n.OrderID,
		OrderNumber: n.OrderNumber,
		IsRead:      n.IsRead,
		ReadAt:      n.ReadAt,
		CreatedAt:   n.CreatedAt,
	}
}

// Service reads and acknowledges staff notifications
type Service struct {
	repo   notification.Repository
	logger *zap.Logger
}

// NewService creates a new notification Service
func NewService(repo notification.Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// List returns notifications newest first
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Response, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	items, err := s.repo.FindAll(ctx, notification.ListFilter{UnreadOnly: filter.Unread, Limit: limit})
	if err != nil {
		return nil, err
	}

	responses := make([]Response, len(items))
	for i := range items {
		responses[i] = ToResponse(&items[i])
	}
	return responses, nil
}

// MarkRead flags one notification read. Marking a read notification again is a no-op.
func (s *Service) MarkRead(ctx context.Context, id uuid.UUID) (*Response, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if n.MarkRead() {
		if err := s.repo.Save(ctx, n); err != nil {
			return nil, err
		}
	}

	response := ToResponse(n)
	return &response, nil
}

// MarkAllRead flags every unread notification and returns how many changed
func (s *Service) MarkAllRead(ctx context.Context) (int64, error) {
	count, err := s.repo.MarkAllRead(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("notifications marked read", zap.Int64("count", count))
	return count, nil
}
