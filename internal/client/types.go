package client

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order as served by GET /api/orders/{id}
type Order struct {
	ID              uuid.UUID       `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	Status          string          `json:"status"`
	CustomerName    string          `json:"customerName"`
	CustomerEmail   string          `json:"customerEmail,omitempty"`
	CustomerPhone   string          `json:"customerPhone,omitempty"`
	ShippingAddress string          `json:"shippingAddress,omitempty"`
	Total           decimal.Decimal `json:"total"`
	Notes           string          `json:"notes,omitempty"`
	Items           []OrderItem     `json:"items"`
	PackedCount     int             `json:"packedCount"`
	FullyPacked     bool            `json:"fullyPacked"`
	Version         int             `json:"version"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Item returns the line for productID
func (o *Order) Item(productID int64) (OrderItem, bool) {
	for _, item := range o.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return OrderItem{}, false
}

// OrderItem is one line of an Order
type OrderItem struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	SKU         string          `json:"sku"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Fulfilled   bool            `json:"fulfilled"`
	FulfilledAt *time.Time      `json:"fulfilledAt,omitempty"`
}

// PackResult is the answer to a pack-item call
type PackResult struct {
	Order   Order `json:"order"`
	Changed bool  `json:"changed"`
}

// Notification is one entry of the staff feed
type Notification struct {
	ID          uuid.UUID  `json:"id"`
	Type        string     `json:"type"`
	Message     string     `json:"message"`
	OrderID     uuid.UUID  `json:"orderId"`
	OrderNumber string     `json:"orderNumber,omitempty"`
	IsRead      bool       `json:"isRead"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ListOrdersOptions filters ListOrders
type ListOrdersOptions struct {
	Status   string
	Page     int
	PageSize int
}
