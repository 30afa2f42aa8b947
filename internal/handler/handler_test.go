package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/events"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/repository"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/service"
	"github.com/cloud-wave-best-zizon/checkout-service/pkg/middleware"
)

var secret = []byte("handler-test-secret")

type api struct {
	t         *testing.T
	router    *gin.Engine
	store     *repository.SQLStore
	inventory *service.InventoryService
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := filepath.Join(t.TempDir(), "api.db") + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := repository.OpenDSN(repository.DriverSQLite, dsn, 1)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.Migrate(context.Background(), db))

	logger := zap.NewNop()
	store := repository.NewSQLStore(db)
	publisher := events.NopProducer{}
	inventory := service.NewInventoryService(store, publisher, 15*time.Minute, logger)
	pricing := service.Pricing{
		Pricer:   service.NewCatalogPricer(store),
		Coupons:  service.NewCouponService(store),
		Shipping: service.FlatShipping{},
		Tax:      service.FlatTax{},
		Currency: "INR",
	}
	checkout := service.NewCheckoutService(store, inventory, pricing, publisher, repository.NopOrderArchive{}, logger)

	router := gin.New()
	router.Use(middleware.RequestID())
	Register(router.Group("/api/v1"), Handlers{
		Cart:      NewCartHandler(service.NewCartService(store, logger), logger),
		Orders:    NewOrderHandler(checkout, service.NewOrderService(store, inventory, logger), logger),
		Payments:  NewPaymentHandler(service.NewPaymentService(store, logger), logger),
		Inventory: NewInventoryHandler(inventory, logger),
		Wishlist:  NewWishlistHandler(service.NewWishlistService(store), logger),
	}, middleware.Auth(secret))

	return &api{t: t, router: router, store: store, inventory: inventory}
}

func (a *api) token(userID string, staff bool) string {
	tok, err := middleware.IssueToken(secret, userID, staff, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(a.t, err)
	return tok
}

func (a *api) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *api) seedVariant(price string, stock int) int64 {
	a.t.Helper()
	ctx := context.Background()
	var id int64
	err := a.store.WithinTx(ctx, func(st repository.Stores) error {
		p := &domain.Product{Name: "Kurta", BasePrice: decimal.RequireFromString(price), IsActive: true}
		if err := st.Catalog().CreateProduct(ctx, p); err != nil {
			return err
		}
		v := &domain.ProductVariant{
			ProductID: p.ID, Color: "red", Size: "L",
			Price: decimal.RequireFromString(price), SKU: fmt.Sprintf("K-%d", p.ID), IsActive: true,
		}
		if err := st.Catalog().CreateVariant(ctx, v); err != nil {
			return err
		}
		id = v.ID
		return nil
	})
	require.NoError(a.t, err)
	_, err = a.inventory.Restock(ctx, domain.Variant(id), stock, "seed")
	require.NoError(a.t, err)
	return id
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestRequiresAuthentication(t *testing.T) {
	a := newAPI(t)
	w := a.do(http.MethodGet, "/cart", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCartEndpoints(t *testing.T) {
	a := newAPI(t)
	variant := a.seedVariant("99.50", 5)
	alice := a.token("alice", false)

	w := a.do(http.MethodPost, "/cart/items", gin.H{"variant_id": variant, "quantity": 3}, alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 3, decode(t, w)["quantity"])

	w = a.do(http.MethodPut, "/cart/items", gin.H{"variant_id": variant, "quantity": 10}, alice)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.EqualValues(t, 5, decode(t, w)["available"])

	w = a.do(http.MethodPost, "/cart/items", gin.H{"quantity": 1}, alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodGet, "/cart", nil, alice)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["items"].([]interface{})
	require.Len(t, items, 1)
	assert.EqualValues(t, 3, items[0].(map[string]interface{})["quantity"])

	path := fmt.Sprintf("/cart/items?variant_id=%d", variant)
	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, path, nil, alice).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, path, nil, alice).Code)
}

func TestCheckoutOrderAndPaymentEndpoints(t *testing.T) {
	a := newAPI(t)
	variant := a.seedVariant("10.50", 5)
	alice := a.token("alice", false)
	bob := a.token("bob", false)
	staff := a.token("ops", true)

	w := a.do(http.MethodPost, "/checkout", nil, alice)
	assert.Equal(t, http.StatusConflict, w.Code, "empty cart")

	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/cart/items", gin.H{"variant_id": variant, "quantity": 2}, alice).Code)
	w = a.do(http.MethodPost, "/checkout", gin.H{}, alice)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	placed := decode(t, w)
	assert.True(t, decimal.RequireFromString(placed["total_amount"].(string)).Equal(decimal.NewFromInt(21)))
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{12}$`, placed["order_number"])
	orderPath := fmt.Sprintf("/orders/%v", placed["order_id"])

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, orderPath, nil, alice).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, orderPath, nil, bob).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, orderPath, nil, staff).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/orders/abc", nil, alice).Code)

	w = a.do(http.MethodGet, "/orders", nil, alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["orders"], 1)

	w = a.do(http.MethodPost, orderPath+"/payment", gin.H{"method": "upi", "amount": "20"}, alice)
	assert.Equal(t, http.StatusConflict, w.Code, "amount mismatch")
	w = a.do(http.MethodPost, orderPath+"/payment", gin.H{"method": "upi", "amount": "21.00"}, alice)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Equal(t, http.StatusForbidden,
		a.do(http.MethodPatch, orderPath+"/payment", gin.H{"status": "processing"}, alice).Code)
	w = a.do(http.MethodPatch, orderPath+"/payment", gin.H{"status": "processing", "transaction_id": "txn-9"}, staff)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	payment := decode(t, w)
	assert.Equal(t, "processing", payment["status"])
	assert.Equal(t, "txn-9", payment["transaction_id"])

	assert.Equal(t, http.StatusForbidden,
		a.do(http.MethodPost, orderPath+"/status", gin.H{"status": "processing"}, alice).Code)
	w = a.do(http.MethodPost, orderPath+"/status", gin.H{"status": "delivered"}, staff)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = a.do(http.MethodPost, orderPath+"/status", gin.H{"status": "cancelled", "notes": "fraud check"}, staff)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rec, err := a.inventory.Get(context.Background(), domain.Variant(variant))
	require.NoError(t, err)
	assert.Equal(t, 5, rec.AvailableStock)
}

func TestInventoryEndpoints(t *testing.T) {
	a := newAPI(t)
	variant := a.seedVariant("5", 12)
	staff := a.token("ops", true)
	path := fmt.Sprintf("/inventory/variant/%d", variant)

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, path, nil, a.token("alice", false)).Code)

	w := a.do(http.MethodGet, path, nil, staff)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 12, decode(t, w)["available_stock"])

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/inventory/bundle/1", nil, staff).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/inventory/variant/999", nil, staff).Code)

	w = a.do(http.MethodPost, path+"/adjust", gin.H{"change_type": "damage", "quantity": 3, "reason": "water"}, staff)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 9, decode(t, w)["available_stock"])

	w = a.do(http.MethodGet, "/inventory/low-stock", nil, staff)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["records"], 1)

	w = a.do(http.MethodPost, path+"/restock", gin.H{"quantity": 0}, staff)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = a.do(http.MethodPost, path+"/restock", gin.H{"quantity": 10}, staff)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 19, decode(t, w)["available_stock"])

	w = a.do(http.MethodGet, path+"/logs", nil, staff)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["logs"], 3)
}

func TestWishlistEndpoints(t *testing.T) {
	a := newAPI(t)
	variant := a.seedVariant("5", 1)
	alice := a.token("alice", false)

	var productID int64
	ctx := context.Background()
	require.NoError(t, a.store.WithinTx(ctx, func(st repository.Stores) error {
		v, err := st.Catalog().GetVariant(ctx, variant)
		if err != nil {
			return err
		}
		productID = v.ProductID
		return nil
	}))

	assert.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/wishlist", gin.H{"product_id": productID}, alice).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPost, "/wishlist", gin.H{"product_id": 999}, alice).Code)

	w := a.do(http.MethodGet, "/wishlist", nil, alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 1)

	path := fmt.Sprintf("/wishlist/%d", productID)
	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, path, nil, alice).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, path, nil, alice).Code)
}

func TestRespondErrorStatuses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	target := domain.Variant(7)
	tests := []struct {
		err    error
		status int
	}{
		{domain.NewValidationError("quantity", "must not be zero"), http.StatusBadRequest},
		{&domain.InsufficientStockError{Target: target, Requested: 3, Available: 2}, http.StatusConflict},
		{&domain.StockExceededError{Target: target, Requested: 9, Available: 5}, http.StatusConflict},
		{&domain.ProductUnavailableError{Target: target}, http.StatusConflict},
		{&domain.InvalidCouponError{Code: "X", Reason: "expired"}, http.StatusConflict},
		{&domain.InvalidTransitionError{Entity: "order", From: "pending", To: "delivered"}, http.StatusConflict},
		{fmt.Errorf("payment: %w", domain.ErrAmountMismatch), http.StatusConflict},
		{domain.ErrEmptyCart, http.StatusConflict},
		{fmt.Errorf("order 4: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondError(c, zap.NewNop(), tt.err)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestReconciliationIsOpaque(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, zap.NewNop(), &domain.ReconciliationError{
		OrderNumber: "ORD-20260101-ABCDEF012345",
		Pending:     []string{"tok-1"},
		Err:         fmt.Errorf("commit: %w", domain.ErrNotFound),
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "tok-1")
	assert.NotContains(t, w.Body.String(), "ORD-")
}
