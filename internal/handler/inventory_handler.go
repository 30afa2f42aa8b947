package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/service"
)

// InventoryHandler exposes the stock ledger to staff. Targets are addressed
// as /inventory/:kind/:id with kind "variant" or "product".
type InventoryHandler struct {
	inventory *service.InventoryService
	logger    *zap.Logger
}

func NewInventoryHandler(inventory *service.InventoryService, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{inventory: inventory, logger: logger}
}

func (h *InventoryHandler) target(c *gin.Context) (domain.LineTarget, bool) {
	t, err := domain.ParseTarget(c.Param("kind"), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return domain.LineTarget{}, false
	}
	return t, true
}

func (h *InventoryHandler) Get(c *gin.Context) {
	t, ok := h.target(c)
	if !ok {
		return
	}
	rec, err := h.inventory.Get(c.Request.Context(), t)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *InventoryHandler) ListLogs(c *gin.Context) {
	t, ok := h.target(c)
	if !ok {
		return
	}
	logs, err := h.inventory.ListLogs(c.Request.Context(), t)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"target": t, "logs": logs})
}

func (h *InventoryHandler) ListLowStock(c *gin.Context) {
	records, err := h.inventory.ListLowStock(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *InventoryHandler) Restock(c *gin.Context) {
	t, ok := h.target(c)
	if !ok {
		return
	}
	var req domain.RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	actor, _ := caller(c)
	rec, err := h.inventory.Restock(c.Request.Context(), t, req.Quantity, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *InventoryHandler) Adjust(c *gin.Context) {
	t, ok := h.target(c)
	if !ok {
		return
	}
	var req domain.AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	actor, _ := caller(c)
	rec, err := h.inventory.Adjust(c.Request.Context(), t, req, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
