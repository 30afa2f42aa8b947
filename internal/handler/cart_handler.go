package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/service"
)

type CartHandler struct {
	carts  *service.CartService
	logger *zap.Logger
}

func NewCartHandler(carts *service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, logger: logger}
}

func (h *CartHandler) ListItems(c *gin.Context) {
	userID, _ := caller(c)
	items, err := h.carts.ListItems(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, domain.CartResponse{UserID: userID, Items: items})
}

// AddItem adds quantity (which may be negative) to the line.
func (h *CartHandler) AddItem(c *gin.Context) {
	h.writeItem(c, h.carts.AddOrUpdateItem)
}

// SetItem replaces the line quantity.
func (h *CartHandler) SetItem(c *gin.Context) {
	h.writeItem(c, h.carts.SetItem)
}

func (h *CartHandler) writeItem(c *gin.Context, op func(ctx context.Context, userID string, t domain.LineTarget, qty int) (*domain.CartItem, error)) {
	var req domain.CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	target, err := req.Target()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	userID, _ := caller(c)
	item, err := op(c.Request.Context(), userID, target, req.Quantity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if item == nil {
		c.JSON(http.StatusOK, gin.H{"target": target, "quantity": 0, "message": "Item removed from cart"})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	var ref domain.TargetRef
	if err := c.ShouldBindQuery(&ref); err != nil {
		badRequest(c, err)
		return
	}
	target, err := ref.Target()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	userID, _ := caller(c)
	if err := h.carts.RemoveItem(c.Request.Context(), userID, target); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CartHandler) Clear(c *gin.Context) {
	userID, _ := caller(c)
	if err := h.carts.Clear(c.Request.Context(), userID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
