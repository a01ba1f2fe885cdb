package order

import (
	"time"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/order"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateOrderRequest is the checkout hand-off that creates an order
type CreateOrderRequest struct {
	CustomerName    string                 `json:"customerName" binding:"required,min=1,max=200"`
	CustomerEmail   string                 `json:"customerEmail" binding:"omitempty,email,max=200"`
	CustomerPhone   string                 `json:"customerPhone" binding:"max=50"`
	ShippingAddress string                 `json:"shippingAddress"`
	Notes           string                 `json:"notes"`
	Items           []CreateOrderItemInput `json:"items" binding:"required,min=1,dive"`
}

// CreateOrderItemInput is one line of a CreateOrderRequest
type CreateOrderItemInput struct {
	ProductID   int64           `json:"productId" binding:"required,min=1"`
	ProductName string          `json:"productName" binding:"required,min=1,max=200"`
	SKU         string          `json:"sku" binding:"required,min=1,max=100"`
	Quantity    int             `json:"quantity" binding:"required,min=1"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// UpdateStatusRequest changes the lifecycle status of an order
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ListFilter represents filter options for the order list
type ListFilter struct {
	Status   string `form:"status"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"pageSize" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"orderBy"`
	OrderDir string `form:"orderDir" binding:"omitempty,oneof=asc desc"`
}

// Response represents an order in API responses
type Response struct {
	ID              uuid.UUID       `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	Status          string          `json:"status"`
	CustomerName    string          `json:"customerName"`
	CustomerEmail   string          `json:"customerEmail,omitempty"`
	CustomerPhone   string          `json:"customerPhone,omitempty"`
	ShippingAddress string          `json:"shippingAddress,omitempty"`
	Total           decimal.Decimal `json:"total"`
	Notes           string          `json:"notes,omitempty"`
	Items           []ItemResponse  `json:"items"`
	PackedCount     int             `json:"packedCount"`
	FullyPacked     bool            `json:"fullyPacked"`
	Version         int             `json:"version"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ItemResponse represents an order item in API responses
type ItemResponse struct {
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

// ToResponse converts a domain order to its API representation
func ToResponse(o *order.Order) Response {
	items := make([]ItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = ItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			SKU:         item.SKU,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			Subtotal:    item.Subtotal,
			Fulfilled:   item.Fulfilled,
			FulfilledAt: item.FulfilledAt,
		}
	}
	return Response{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          string(o.Status),
		CustomerName:    o.Customer.Name,
		CustomerEmail:   o.Customer.Email,
		CustomerPhone:   o.Customer.Phone,
		ShippingAddress: o.ShippingAddress,
		Total:           o.Total,
		Notes:           o.Notes,
		Items:           items,
		PackedCount:     o.PackedCount(),
		FullyPacked:     o.IsFullyPacked(),
		Version:         o.Version,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
