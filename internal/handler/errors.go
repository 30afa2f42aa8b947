package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
	"github.com/cloud-wave-best-zizon/checkout-service/pkg/middleware"
)

// respondError maps a service error to its HTTP status. Anything that is not
// a known domain error is logged and answered with an opaque 500.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	requestID := c.GetString("request_id")
	body := gin.H{"error": err.Error(), "request_id": requestID}
	status := http.StatusInternalServerError

	var (
		validation   *domain.ValidationError
		insufficient *domain.InsufficientStockError
		exceeded     *domain.StockExceededError
		unavailable  *domain.ProductUnavailableError
		coupon       *domain.InvalidCouponError
		transition   *domain.InvalidTransitionError
		reconcile    *domain.ReconciliationError
	)
	switch {
	case errors.As(err, &reconcile):
		logger.Error("Order requires reconciliation",
			zap.String("request_id", requestID),
			zap.String("order_number", reconcile.OrderNumber),
			zap.Strings("pending_tokens", reconcile.Pending),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "order could not be completed, support has been notified",
			"request_id": requestID,
		})
		return
	case errors.As(err, &validation):
		status = http.StatusBadRequest
		if validation.Field != "" {
			body["field"] = validation.Field
		}
	case errors.As(err, &insufficient):
		status = http.StatusConflict
		body["target"] = insufficient.Target
		body["available"] = insufficient.Available
	case errors.As(err, &exceeded):
		status = http.StatusConflict
		body["target"] = exceeded.Target
		body["available"] = exceeded.Available
	case errors.As(err, &unavailable):
		status = http.StatusConflict
		body["target"] = unavailable.Target
	case errors.As(err, &coupon), errors.As(err, &transition):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrAmountMismatch),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrReservationNotActive):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	default:
		logger.Error("Request failed",
			zap.String("request_id", requestID),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "internal server error",
			"request_id": requestID,
		})
		return
	}

	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request format",
		"details": err.Error(),
	})
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func caller(c *gin.Context) (userID string, staff bool) {
	return c.GetString(middleware.UserIDKey), c.GetBool(middleware.StaffKey)
}
