package order

import (
	"context"
	"time"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/shared"
	"github.com/google/uuid"
)

// Repository defines the interface for order persistence
type Repository interface {
	// FindByID finds an order with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByOrderNumber finds an order by its human readable number
	FindByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)

	// FindAll lists orders. Filters supports "status".
	FindAll(ctx context.Context, filter shared.Filter) ([]Order, error)

	// Count counts orders matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// Create inserts a new order with its items
	Create(ctx context.Context, o *Order) error

	// SaveWithLock updates the order header with an optimistic version check.
	// Item rows are left untouched.
	SaveWithLock(ctx context.Context, o *Order) error

	// MarkItemFulfilled sets fulfilled on a pending item. It reports false
	// when the item was already fulfilled, so concurrent callers flip it once.
	MarkItemFulfilled(ctx context.Context, orderID uuid.UUID, productID int64, at time.Time) (bool, error)
}
