package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/cloud-wave-best-zizon/checkout-service/pkg/middleware"
)

type Handlers struct {
	Cart      *CartHandler
	Orders    *OrderHandler
	Payments  *PaymentHandler
	Inventory *InventoryHandler
	Wishlist  *WishlistHandler
}

// Register mounts the authenticated API on rg. auth must set the caller
// identity the way middleware.Auth does.
func Register(rg *gin.RouterGroup, h Handlers, auth gin.HandlerFunc) {
	api := rg.Group("", auth)
	staff := api.Group("", middleware.RequireStaff())

	api.GET("/cart", h.Cart.ListItems)
	api.DELETE("/cart", h.Cart.Clear)
	api.POST("/cart/items", h.Cart.AddItem)
	api.PUT("/cart/items", h.Cart.SetItem)
	api.DELETE("/cart/items", h.Cart.RemoveItem)

	api.POST("/checkout", h.Orders.Checkout)
	api.GET("/orders", h.Orders.ListOrders)
	api.GET("/orders/:id", h.Orders.GetOrder)
	staff.POST("/orders/:id/status", h.Orders.UpdateStatus)

	api.POST("/orders/:id/payment", h.Payments.RecordPayment)
	api.GET("/orders/:id/payment", h.Payments.GetPayment)
	staff.PATCH("/orders/:id/payment", h.Payments.UpdateStatus)

	api.GET("/wishlist", h.Wishlist.List)
	api.POST("/wishlist", h.Wishlist.Add)
	api.DELETE("/wishlist/:product_id", h.Wishlist.Remove)

	staff.GET("/inventory/low-stock", h.Inventory.ListLowStock)
	staff.GET("/inventory/:kind/:id", h.Inventory.Get)
	staff.GET("/inventory/:kind/:id/logs", h.Inventory.ListLogs)
	staff.POST("/inventory/:kind/:id/restock", h.Inventory.Restock)
	staff.POST("/inventory/:kind/:id/adjust", h.Inventory.Adjust)
}
