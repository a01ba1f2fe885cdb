package router

import (
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/interfaces/http/handler"
)

// OrderRoutes maps the order endpoints, including the packing call the
// scanner station uses
func OrderRoutes(h *handler.OrderHandler) *DomainGroup {
	g := NewDomainGroup("orders", "/orders")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:orderId", h.Get)
	g.PUT("/:orderId/status", h.UpdateStatus)
	g.POST("/:orderId/pack-item", h.PackItem)
	return g
}

// NotificationRoutes maps the staff notification feed
func NotificationRoutes(h *handler.NotificationHandler) *DomainGroup {
	g := NewDomainGroup("notifications", "/notifications")
	g.GET("", h.List)
	g.PUT("/read-all", h.MarkAllRead)
	g.PUT("/:id/read", h.MarkRead)
	return g
}
