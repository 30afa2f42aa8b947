package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/service"
)

type WishlistHandler struct {
	wishlist *service.WishlistService
	logger   *zap.Logger
}

func NewWishlistHandler(wishlist *service.WishlistService, logger *zap.Logger) *WishlistHandler {
	return &WishlistHandler{wishlist: wishlist, logger: logger}
}

func (h *WishlistHandler) List(c *gin.Context) {
	userID, _ := caller(c)
	items, err := h.wishlist.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *WishlistHandler) Add(c *gin.Context) {
	var req domain.WishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID, _ := caller(c)
	if err := h.wishlist.Add(c.Request.Context(), userID, req.ProductID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product_id": req.ProductID})
}

func (h *WishlistHandler) Remove(c *gin.Context) {
	productID, ok := idParam(c, "product_id")
	if !ok {
		return
	}

	userID, _ := caller(c)
	if err := h.wishlist.Remove(c.Request.Context(), userID, productID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
