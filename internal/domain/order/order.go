package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle status of an order
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Order domain errors
var (
	ErrItemNotFound = shared.NewDomainError("ORDER_ITEM_NOT_FOUND", "Item not found in order")
	ErrNotEligible  = shared.NewDomainError("ORDER_NOT_ELIGIBLE", "Order is not eligible for fulfillment")
)

// ParseStatus parses a user supplied status. "out for delivery" and its
// separator variants are accepted as shipped.
func ParseStatus(s string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	if normalized == "out_for_delivery" {
		return StatusShipped, nil
	}
	status := Status(normalized)
	if !status.IsValid() {
		return "", shared.NewDomainError("INVALID_STATUS", fmt.Sprintf("Unknown order status %q", s))
	}
	return status, nil
}

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusProcessing || target == StatusCancelled
	case StatusProcessing:
		return target == StatusShipped || target == StatusCancelled
	case StatusShipped:
		return target == StatusDelivered
	case StatusDelivered, StatusCancelled:
		return false // Terminal states
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Customer holds the contact fields captured at checkout
type Customer struct {
	Name  string
	Email string
	Phone string
}

// Item is a line of an order with a product snapshot taken at checkout
type Item struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   int64
	ProductName string
	SKU         string
	UnitPrice   decimal.Decimal
	Quantity    int
	Subtotal    decimal.Decimal
	Fulfilled   bool
	FulfilledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewItem creates a new order item
func NewItem(orderID uuid.UUID, productID int64, productName, sku string, quantity int, unitPrice decimal.Decimal) (*Item, error) {
	if productID <= 0 {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID must be positive")
	}
	if productName == "" {
		return nil, shared.NewDomainError("INVALID_PRODUCT_NAME", "Product name cannot be empty")
	}
	if sku == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "SKU cannot be empty")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}

	now := time.Now()
	return &Item{
		ID:          uuid.New(),
		OrderID:     orderID,
		ProductID:   productID,
		ProductName: productName,
		SKU:         sku,
		UnitPrice:   unitPrice,
		Quantity:    quantity,
		Subtotal:    unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsPacked reports whether the item reached the terminal packed state
func (i *Item) IsPacked() bool {
	return i.Fulfilled
}

// Order is the aggregate root for a customer order and its items
type Order struct {
	shared.BaseAggregateRoot
	OrderNumber     string
	Status          Status
	Customer        Customer
	ShippingAddress string
	Total           decimal.Decimal
	Notes           string
	Items           []Item
}

// NewOrderNumber builds a human readable order number for the given day
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}

// NewOrder creates a new pending order
func NewOrder(orderNumber string, customer Customer, shippingAddress, notes string) (*Order, error) {
	if orderNumber == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	if len(orderNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot exceed 50 characters")
	}
	if customer.Name == "" {
		return nil, shared.NewDomainError("INVALID_CUSTOMER_NAME", "Customer name cannot be empty")
	}

	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderNumber:       orderNumber,
		Status:            StatusPending,
		Customer:          customer,
		ShippingAddress:   shippingAddress,
		Notes:             notes,
		Total:             decimal.Zero,
		Items:             make([]Item, 0),
	}

	o.AddDomainEvent(NewOrderCreatedEvent(o))

	return o, nil
}

// AddItem adds a line item. Only allowed while the order is pending.
func (o *Order) AddItem(productID int64, productName, sku string, quantity int, unitPrice decimal.Decimal) (*Item, error) {
	if o.Status != StatusPending {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot add items to a non-pending order")
	}
	if o.ItemByProduct(productID) != nil {
		return nil, shared.NewDomainError("DUPLICATE_PRODUCT", "Product already exists in order")
	}

	item, err := NewItem(o.ID, productID, productName, sku, quantity, unitPrice)
	if err != nil {
		return nil, err
	}

	o.Items = append(o.Items, *item)
	o.recalculateTotal()
	o.Touch(time.Now())

	return item, nil
}

// ItemByProduct returns the item for a product, or nil
func (o *Order) ItemByProduct(productID int64) *Item {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return &o.Items[i]
		}
	}
	return nil
}

// CanFulfill reports whether items of this order may still be packed
func (o *Order) CanFulfill() bool {
	return !o.Status.IsTerminal()
}

// MarkPacked moves the item for productID from pending to packed.
// It returns false without error when the item is already packed.
func (o *Order) MarkPacked(productID int64) (bool, error) {
	item := o.ItemByProduct(productID)
	if item == nil {
		return false, ErrItemNotFound
	}
	if item.Fulfilled {
		return false, nil
	}
	if !o.CanFulfill() {
		return false, shared.NewDomainError(ErrNotEligible.Code,
			fmt.Sprintf("Cannot pack items of an order in %s status", o.Status))
	}

	now := time.Now()
	item.Fulfilled = true
	item.FulfilledAt = &now
	item.UpdatedAt = now
	o.Touch(now)

	o.AddDomainEvent(NewOrderItemPackedEvent(o, item))

	return true, nil
}

// UpdateStatus transitions the order to target. Setting the current status
// again is a no-op.
func (o *Order) UpdateStatus(target Status) error {
	if !target.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", fmt.Sprintf("Unknown order status %q", target))
	}
	if o.Status == target {
		return nil
	}
	if !o.Status.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot change order from %s to %s", o.Status, target))
	}

	previous := o.Status
	o.Status = target
	o.Touch(time.Now())

	o.AddDomainEvent(NewOrderStatusChangedEvent(o, previous))

	return nil
}

// PackedCount returns how many items are packed
func (o *Order) PackedCount() int {
	n := 0
	for _, item := range o.Items {
		if item.Fulfilled {
			n++
		}
	}
	return n
}

// IsFullyPacked reports whether every item is packed
func (o *Order) IsFullyPacked() bool {
	return len(o.Items) > 0 && o.PackedCount() == len(o.Items)
}

func (o *Order) recalculateTotal() {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal)
	}
	o.Total = total
}
