package order_test

import (
	"context"
	"testing"
	"time"

	orderapp "github.com/ResonantCEO/Doobie-Division-sub002/internal/application/order"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/order"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	args := m.Called(ctx, orderNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]order.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) SaveWithLock(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) MarkItemFulfilled(ctx context.Context, orderID uuid.UUID, productID int64, at time.Time) (bool, error) {
	args := m.Called(ctx, orderID, productID, at)
	return args.Bool(0), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// =============================================================================
// Helpers
// =============================================================================

func newPendingOrder(t *testing.T) *order.Order {
	t.Helper()
	o, err := order.NewOrder("ORD-20240501-AAAAAA", order.Customer{Name: "Dana"}, "1 Main St", "")
	require.NoError(t, err)
	_, err = o.AddItem(1, "Widget", "SKU-1", 1, decimal.NewFromInt(10))
	require.NoError(t, err)
	o.ClearDomainEvents()
	return o
}

func eventTypes(events []shared.DomainEvent) []string {
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.EventType()
	}
	return types
}

// =============================================================================
// Tests
// =============================================================================

func TestService_Create(t *testing.T) {
	repo := new(MockOrderRepository)
	publisher := new(MockEventPublisher)
	svc := orderapp.NewService(repo, publisher, zap.NewNop())

	repo.On("Create", mock.Anything, mock.AnythingOfType("*order.Order")).Return(nil)
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(events []shared.DomainEvent) bool {
		return assert.ObjectsAreEqual([]string{order.EventTypeOrderCreated}, eventTypes(events))
	})).Return(nil)

	resp, err := svc.Create(context.Background(), orderapp.CreateOrderRequest{
		CustomerName: "Dana",
		Items: []orderapp.CreateOrderItemInput{
			{ProductID: 1, ProductName: "Widget", SKU: "SKU-1", Quantity: 2, UnitPrice: decimal.NewFromFloat(2.5)},
			{ProductID: 2, ProductName: "Gadget", SKU: "SKU-2", Quantity: 1, UnitPrice: decimal.NewFromInt(3)},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "pending", resp.Status)
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{6}$`, resp.OrderNumber)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "SKU-1", resp.Items[0].SKU)
	assert.True(t, decimal.NewFromInt(8).Equal(resp.Total))
	assert.Equal(t, 0, resp.PackedCount)
	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestService_Create_InvalidItem(t *testing.T) {
	repo := new(MockOrderRepository)
	svc := orderapp.NewService(repo, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), orderapp.CreateOrderRequest{
		CustomerName: "Dana",
		Items: []orderapp.CreateOrderItemInput{
			{ProductID: 1, ProductName: "Widget", SKU: "SKU-1", Quantity: 1},
			{ProductID: 1, ProductName: "Widget", SKU: "SKU-1", Quantity: 1},
		},
	})

	require.Error(t, err)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_Create_RepositoryError(t *testing.T) {
	repo := new(MockOrderRepository)
	publisher := new(MockEventPublisher)
	svc := orderapp.NewService(repo, publisher, zap.NewNop())

	repo.On("Create", mock.Anything, mock.Anything).Return(shared.ErrAlreadyExists)

	_, err := svc.Create(context.Background(), orderapp.CreateOrderRequest{
		CustomerName: "Dana",
		Items:        []orderapp.CreateOrderItemInput{{ProductID: 1, ProductName: "Widget", SKU: "SKU-1", Quantity: 1}},
	})

	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestService_List(t *testing.T) {
	repo := new(MockOrderRepository)
	svc := orderapp.NewService(repo, nil, zap.NewNop())
	o := newPendingOrder(t)

	matchFilter := mock.MatchedBy(func(f shared.Filter) bool {
		return f.Page == 2 && f.PageSize == 5 && f.Filters["status"] == order.StatusShipped
	})
	repo.On("FindAll", mock.Anything, matchFilter).Return([]order.Order{*o}, nil)
	repo.On("Count", mock.Anything, matchFilter).Return(int64(6), nil)

	items, total, err := svc.List(context.Background(), orderapp.ListFilter{Status: "out for delivery", Page: 2, PageSize: 5})

	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
	require.Len(t, items, 1)
	assert.Equal(t, o.ID, items[0].ID)
}

func TestService_List_UnknownStatus(t *testing.T) {
	repo := new(MockOrderRepository)
	svc := orderapp.NewService(repo, nil, zap.NewNop())

	_, _, err := svc.List(context.Background(), orderapp.ListFilter{Status: "lost"})

	require.Error(t, err)
	repo.AssertNotCalled(t, "FindAll", mock.Anything, mock.Anything)
}

func TestService_UpdateStatus(t *testing.T) {
	repo := new(MockOrderRepository)
	publisher := new(MockEventPublisher)
	svc := orderapp.NewService(repo, publisher, zap.NewNop())
	o := newPendingOrder(t)

	repo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
	repo.On("SaveWithLock", mock.Anything, o).Return(nil)
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(events []shared.DomainEvent) bool {
		if len(events) != 1 {
			return false
		}
		changed, ok := events[0].(*order.OrderStatusChangedEvent)
		return ok && changed.PreviousStatus == order.StatusPending && changed.Status == order.StatusProcessing
	})).Return(nil)

	resp, err := svc.UpdateStatus(context.Background(), o.ID, orderapp.UpdateStatusRequest{Status: "processing"})

	require.NoError(t, err)
	assert.Equal(t, "processing", resp.Status)
	assert.Empty(t, o.GetDomainEvents())
	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestService_UpdateStatus_SameStatusIsNoop(t *testing.T) {
	repo := new(MockOrderRepository)
	publisher := new(MockEventPublisher)
	svc := orderapp.NewService(repo, publisher, zap.NewNop())
	o := newPendingOrder(t)

	repo.On("FindByID", mock.Anything, o.ID).Return(o, nil)

	resp, err := svc.UpdateStatus(context.Background(), o.ID, orderapp.UpdateStatusRequest{Status: "pending"})

	require.NoError(t, err)
	assert.Equal(t, "pending", resp.Status)
	repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestService_UpdateStatus_InvalidTransition(t *testing.T) {
	repo := new(MockOrderRepository)
	svc := orderapp.NewService(repo, nil, zap.NewNop())
	o := newPendingOrder(t)

	repo.On("FindByID", mock.Anything, o.ID).Return(o, nil)

	_, err := svc.UpdateStatus(context.Background(), o.ID, orderapp.UpdateStatusRequest{Status: "delivered"})

	assert.ErrorIs(t, err, shared.ErrInvalidState)
	repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestService_UpdateStatus_Conflict(t *testing.T) {
	repo := new(MockOrderRepository)
	publisher := new(MockEventPublisher)
	svc := orderapp.NewService(repo, publisher, zap.NewNop())
	o := newPendingOrder(t)

	repo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
	repo.On("SaveWithLock", mock.Anything, o).Return(shared.ErrConcurrencyConflict)

	_, err := svc.UpdateStatus(context.Background(), o.ID, orderapp.UpdateStatusRequest{Status: "cancelled"})

	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestService_GetByID_NotFound(t *testing.T) {
	repo := new(MockOrderRepository)
	svc := orderapp.NewService(repo, nil, zap.NewNop())
	id := uuid.New()

	repo.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

	_, err := svc.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
