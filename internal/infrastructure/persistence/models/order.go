package models

import (
	"time"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/order"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for the Order aggregate root.
type OrderModel struct {
	AggregateModel
	OrderNumber     string           `gorm:"type:varchar(50);not null;uniqueIndex"`
	Status          order.Status     `gorm:"type:varchar(20);not null;default:'pending';index"`
	CustomerName    string           `gorm:"type:varchar(200);not null"`
	CustomerEmail   string           `gorm:"type:varchar(200)"`
	CustomerPhone   string           `gorm:"type:varchar(50)"`
	ShippingAddress string           `gorm:"type:text"`
	Total           decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0"`
	Notes           string           `gorm:"type:text"`
	Items           []OrderItemModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order.
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		BaseAggregateRoot: m.aggregate(),
		OrderNumber:       m.OrderNumber,
		Status:            m.Status,
		Customer: order.Customer{
			Name:  m.CustomerName,
			Email: m.CustomerEmail,
			Phone: m.CustomerPhone,
		},
		ShippingAddress: m.ShippingAddress,
		Total:           m.Total,
		Notes:           m.Notes,
		Items:           make([]order.Item, len(m.Items)),
	}
	for i := range m.Items {
		o.Items[i] = *m.Items[i].ToDomain()
	}
	return o
}

// FromDomain populates the persistence model from a domain Order.
func (m *OrderModel) FromDomain(o *order.Order) {
	m.setAggregate(o.BaseAggregateRoot)
	m.OrderNumber = o.OrderNumber
	m.Status = o.Status
	m.CustomerName = o.Customer.Name
	m.CustomerEmail = o.Customer.Email
	m.CustomerPhone = o.Customer.Phone
	m.ShippingAddress = o.ShippingAddress
	m.Total = o.Total
	m.Notes = o.Notes
	m.Items = make([]OrderItemModel, len(o.Items))
	for i := range o.Items {
		m.Items[i] = *OrderItemModelFromDomain(&o.Items[i], i)
	}
}

// OrderModelFromDomain creates a new persistence model from a domain Order.
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// OrderItemModel is the persistence model for an order line.
type OrderItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_order_items_order_product,priority:1"`
	ProductID   int64           `gorm:"not null;uniqueIndex:idx_order_items_order_product,priority:2"`
	Position    int             `gorm:"not null;default:0"`
	ProductName string          `gorm:"type:varchar(200);not null"`
	SKU         string          `gorm:"column:sku;type:varchar(100);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Quantity    int             `gorm:"not null"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Fulfilled   bool            `gorm:"not null;default:false"`
	FulfilledAt *time.Time
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the persistence model to a domain Item.
func (m *OrderItemModel) ToDomain() *order.Item {
	return &order.Item{
		ID:          m.ID,
		OrderID:     m.OrderID,
		ProductID:   m.ProductID,
		ProductName: m.ProductName,
		SKU:         m.SKU,
		UnitPrice:   m.UnitPrice,
		Quantity:    m.Quantity,
		Subtotal:    m.Subtotal,
		Fulfilled:   m.Fulfilled,
		FulfilledAt: m.FulfilledAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// OrderItemModelFromDomain creates a persistence model for the item at position.
func OrderItemModelFromDomain(i *order.Item, position int) *OrderItemModel {
	return &OrderItemModel{
		ID:          i.ID,
		OrderID:     i.OrderID,
		ProductID:   i.ProductID,
		Position:    position,
		ProductName: i.ProductName,
		SKU:         i.SKU,
		UnitPrice:   i.UnitPrice,
		Quantity:    i.Quantity,
		Subtotal:    i.Subtotal,
		Fulfilled:   i.Fulfilled,
		FulfilledAt: i.FulfilledAt,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}
