// Package fulfillment owns the only write path for an item's fulfilled flag.
package fulfillment

import (
	"context"
	"time"

	orderapp "github.com/ResonantCEO/Doobie-Division-sub002/internal/application/order"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/order"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/shared"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/ResonantCEO/Doobie-Division-sub002/internal/application/fulfillment"

// PackItemRequest is the body of the pack-item call
type PackItemRequest struct {
	ProductID int64 `json:"productId" binding:"required,min=1"`
}

// PackResult is the outcome of MarkPacked. Changed is false when the item
// was already packed.
type PackResult struct {
	Order   orderapp.Response `json:"order"`
	Changed bool              `json:"changed"`
}

// Service moves order items from pending to packed
type Service struct {
	orderRepo      order.Repository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	tracer         trace.Tracer
	now            func() time.Time
}

// NewService creates a new fulfillment Service
func NewService(orderRepo order.Repository, eventPublisher shared.EventPublisher, logger *zap.Logger) *Service {
	return &Service{
		orderRepo:      orderRepo,
		eventPublisher: eventPublisher,
		logger:         logger,
		tracer:         otel.Tracer(tracerName),
		now:            time.Now,
	}
}

// MarkPacked sets fulfilled on the item for productID. Calling it again for a
// packed item returns the current order with Changed=false and emits nothing.
// Among concurrent callers exactly one sees Changed=true.
func (s *Service) MarkPacked(ctx context.Context, orderID uuid.UUID, productID int64) (*PackResult, error) {
	ctx, span := s.tracer.Start(ctx, "fulfillment.MarkPacked",
		trace.WithAttributes(
			attribute.String("order.id", orderID.String()),
			attribute.Int64("product.id", productID),
		))
	defer span.End()

	cl := logger.Enrich(ctx, s.logger).With(zap.String("order_id", orderID.String()))

	result, err := s.markPacked(ctx, orderID, productID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		cl.Info("pack item rejected", zap.Int64("product_id", productID), zap.Error(err))
		return nil, err
	}

	span.SetAttributes(attribute.Bool("fulfillment.changed", result.Changed))
	cl.Info("pack item processed",
		zap.Int64("product_id", productID),
		zap.Bool("changed", result.Changed),
		zap.Int("packed", result.Order.PackedCount),
		zap.Int("items", len(result.Order.Items)),
	)
	return result, nil
}

func (s *Service) markPacked(ctx context.Context, orderID uuid.UUID, productID int64) (*PackResult, error) {
	o, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	changed, err := o.MarkPacked(productID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return &PackResult{Order: orderapp.ToResponse(o), Changed: false}, nil
	}

	at := s.now()
	if item := o.ItemByProduct(productID); item != nil && item.FulfilledAt != nil {
		at = *item.FulfilledAt
	}

	flipped, err := s.orderRepo.MarkItemFulfilled(ctx, orderID, productID, at)
	if err != nil {
		return nil, err
	}

	o.ClearDomainEvents()

	current, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !flipped {
		// another caller packed it between our read and write
		return &PackResult{Order: orderapp.ToResponse(current), Changed: false}, nil
	}

	// the event carries the stored state, not the pre-write snapshot
	if item := current.ItemByProduct(productID); item != nil {
		current.AddDomainEvent(order.NewOrderItemPackedEvent(current, item))
	}
	orderapp.PublishPending(ctx, s.eventPublisher, current, s.logger)

	return &PackResult{Order: orderapp.ToResponse(current), Changed: true}, nil
}
