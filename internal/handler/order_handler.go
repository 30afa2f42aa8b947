package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/service"
)

type OrderHandler struct {
	checkout *service.CheckoutService
	orders   *service.OrderService
	logger   *zap.Logger
}

func NewOrderHandler(checkout *service.CheckoutService, orders *service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		checkout: checkout,
		orders:   orders,
		logger:   logger,
	}
}

func (h *OrderHandler) Checkout(c *gin.Context) {
	var req domain.CheckoutRequest

	// An empty body checks out without coupon or addresses.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("Invalid checkout request", zap.Error(err))
			badRequest(c, err)
			return
		}
	}

	requestID := c.GetString("request_id")
	userID, _ := caller(c)

	order, err := h.checkout.Checkout(c.Request.Context(), userID, req, requestID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, domain.CheckoutResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Message:     "Order created successfully",
	})
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID, _ := caller(c)
	orders, err := h.orders.ListOrders(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	userID, staff := caller(c)
	order, err := h.orders.GetOrder(c.Request.Context(), userID, staff, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req domain.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	actor, _ := caller(c)
	order, err := h.orders.UpdateStatus(c.Request.Context(), id, req.Status, actor, req.Notes)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
