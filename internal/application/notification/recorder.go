package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/notification"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/order"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/shared"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/broadcast"
	"go.uber.org/zap"
)

// Broadcaster fans a message out to every live session
type Broadcaster interface {
	Broadcast(ctx context.Context, msg broadcast.Message) error
}

// Recorder turns order events into persisted notifications and live messages.
// The notification is stored first; the broadcast goes out even if storing
// failed, just without a notification id.
type Recorder struct {
	repo        notification.Repository
	broadcaster Broadcaster
	logger      *zap.Logger
}

// NewRecorder creates a Recorder
func NewRecorder(repo notification.Repository, broadcaster Broadcaster, logger *zap.Logger) *Recorder {
	return &Recorder{
		repo:        repo,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// EventTypes returns the order events that produce notifications
func (r *Recorder) EventTypes() []string {
	return []string{
		order.EventTypeOrderCreated,
		order.EventTypeOrderStatusChanged,
		order.EventTypeOrderItemPacked,
	}
}

// Handle records and broadcasts one order event
func (r *Recorder) Handle(ctx context.Context, event shared.DomainEvent) error {
	msg, err := messageFor(event)
	if err != nil {
		r.logger.Error("unexpected event type", zap.String("actual", event.EventType()))
		return err
	}

	var errs []error

	n, err := notification.NewNotification(notification.Type(msg.Type), msg.OrderID, msg.OrderNumber, msg.Message)
	if err == nil {
		err = r.repo.Save(ctx, n)
	}
	if err != nil {
		r.logger.Error("failed to record notification",
			zap.String("order_id", msg.OrderID.String()),
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
		errs = append(errs, fmt.Errorf("record notification: %w", err))
	} else {
		id := n.ID
		msg.NotificationID = &id
	}

	if r.broadcaster != nil {
		if err := r.broadcaster.Broadcast(ctx, msg); err != nil {
			r.logger.Warn("failed to broadcast order change",
				zap.String("order_id", msg.OrderID.String()),
				zap.String("type", string(msg.Type)),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("broadcast: %w", err))
		}
	}

	return errors.Join(errs...)
}

func messageFor(event shared.DomainEvent) (broadcast.Message, error) {
	switch e := event.(type) {
	case *order.OrderCreatedEvent:
		return broadcast.Message{
			Type:        broadcast.TypeNewOrder,
			OrderID:     e.OrderID,
			OrderNumber: e.OrderNumber,
			Message:     fmt.Sprintf("New order %s from %s", e.OrderNumber, e.CustomerName),
			Status:      string(order.StatusPending),
			OccurredAt:  e.OccurredAt(),
		}, nil
	case *order.OrderStatusChangedEvent:
		return broadcast.Message{
			Type:        broadcast.TypeOrderUpdated,
			OrderID:     e.OrderID,
			OrderNumber: e.OrderNumber,
			Message:     fmt.Sprintf("Order %s moved from %s to %s", e.OrderNumber, e.PreviousStatus, e.Status),
			Status:      string(e.Status),
			OccurredAt:  e.OccurredAt(),
		}, nil
	case *order.OrderItemPackedEvent:
		productID := e.ProductID
		return broadcast.Message{
			Type:        broadcast.TypeOrderUpdated,
			OrderID:     e.OrderID,
			OrderNumber: e.OrderNumber,
			Message:     fmt.Sprintf("Order %s: %s (%s) packed", e.OrderNumber, e.ProductName, e.SKU),
			Status:      string(e.Status),
			ProductID:   &productID,
			OccurredAt:  e.OccurredAt(),
		}, nil
	default:
		return broadcast.Message{}, fmt.Errorf("unexpected event type: %s", event.EventType())
	}
}

var _ shared.EventHandler = (*Recorder)(nil)
