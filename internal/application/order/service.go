package order

import (
	"context"
	"time"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/order"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service handles order business operations outside of fulfillment
type Service struct {
	orderRepo      order.Repository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewService creates a new order Service
func NewService(orderRepo order.Repository, eventPublisher shared.EventPublisher, logger *zap.Logger) *Service {
	return &Service{
		orderRepo:      orderRepo,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Create places a new pending order and announces it
func (s *Service) Create(ctx context.Context, req CreateOrderRequest) (*Response, error) {
	o, err := order.NewOrder(
		order.NewOrderNumber(time.Now()),
		order.Customer{Name: req.CustomerName, Email: req.CustomerEmail, Phone: req.CustomerPhone},
		req.ShippingAddress,
		req.Notes,
	)
	if err != nil {
		return nil, err
	}

	for _, item := range req.Items {
		if _, err := o.AddItem(item.ProductID, item.ProductName, item.SKU, item.Quantity, item.UnitPrice); err != nil {
			return nil, err
		}
	}

	if err := s.orderRepo.Create(ctx, o); err != nil {
		return nil, err
	}

	PublishPending(ctx, s.eventPublisher, o, s.logger)

	response := ToResponse(o)
	return &response, nil
}

// GetByID retrieves an order with its items
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Response, error) {
	o, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToResponse(o)
	return &response, nil
}

// List retrieves orders with filtering and pagination
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Response, int64, error) {
	domainFilter := shared.DefaultFilter()
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		domainFilter.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		domainFilter.OrderDir = filter.OrderDir
	}
	if filter.Status != "" {
		status, err := order.ParseStatus(filter.Status)
		if err != nil {
			return nil, 0, err
		}
		domainFilter.Filters["status"] = status
	}

	orders, err := s.orderRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.orderRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]Response, len(orders))
	for i := range orders {
		responses[i] = ToResponse(&orders[i])
	}
	return responses, total, nil
}

// UpdateStatus moves the order through its lifecycle
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, req UpdateStatusRequest) (*Response, error) {
	target, err := order.ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}

	o, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := o.UpdateStatus(target); err != nil {
		return nil, err
	}
	if len(o.GetDomainEvents()) == 0 {
		response := ToResponse(o)
		return &response, nil
	}

	if err := s.orderRepo.SaveWithLock(ctx, o); err != nil {
		return nil, err
	}

	PublishPending(ctx, s.eventPublisher, o, s.logger)

	response := ToResponse(o)
	return &response, nil
}

// PublishPending hands the aggregate's stored events to the publisher and
// clears them. Publish errors are logged only.
func PublishPending(ctx context.Context, publisher shared.EventPublisher, agg shared.AggregateRoot, logger *zap.Logger) {
	events := agg.GetDomainEvents()
	agg.ClearDomainEvents()
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.Warn("failed to publish domain events",
			zap.String("aggregate_id", agg.GetID().String()),
			zap.Int("event_count", len(events)),
			zap.Error(err),
		)
	}
}
