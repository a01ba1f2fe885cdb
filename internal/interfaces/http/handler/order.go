package handler

import (
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/application/fulfillment"
	orderapp "github.com/ResonantCEO/Doobie-Division-sub002/internal/application/order"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// OrderHandler serves order reads, lifecycle changes and item packing
type OrderHandler struct {
	BaseHandler
	orderService       *orderapp.Service
	fulfillmentService *fulfillment.Service
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService *orderapp.Service, fulfillmentService *fulfillment.Service) *OrderHandler {
	return &OrderHandler{
		orderService:       orderService,
		fulfillmentService: fulfillmentService,
	}
}

// Create places a new order
// POST /api/orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req orderapp.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	order, err := h.orderService.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, order)
}

// Get returns one order with its items
// GET /api/orders/:orderId
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "orderId")
	if !ok {
		return
	}

	order, err := h.orderService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, order)
}

// List returns a page of orders, newest first by default
// GET /api/orders
func (h *OrderHandler) List(c *gin.Context) {
	var filter orderapp.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = 20
	}

	orders, total, err := h.orderService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, orders, total, filter.Page, filter.PageSize)
}

// UpdateStatus moves an order through its lifecycle
// PUT /api/orders/:orderId/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "orderId")
	if !ok {
		return
	}

	var req orderapp.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, order)
}

// PackItem marks the item for a product packed. Packing an already packed
// item answers 200 with changed=false.
// POST /api/orders/:orderId/pack-item
func (h *OrderHandler) PackItem(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "orderId")
	if !ok {
		return
	}

	var req fulfillment.PackItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.fulfillmentService.MarkPacked(c.Request.Context(), id, req.ProductID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
