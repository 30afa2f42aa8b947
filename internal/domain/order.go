package domain

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusReturned   OrderStatus = "returned"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusReturned},
	OrderStatusDelivered:  {OrderStatusReturned},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	}
	return false
}

type Order struct {
	ID                int64           `json:"id" db:"id"`
	UserID            string          `json:"user_id" db:"user_id"`
	OrderNumber       string          `json:"order_number" db:"order_number"`
	ShippingAddressID sql.NullInt64   `json:"-" db:"shipping_address_id"`
	BillingAddressID  sql.NullInt64   `json:"-" db:"billing_address_id"`
	Subtotal          decimal.Decimal `json:"subtotal" db:"subtotal"`
	DiscountAmount    decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	ShippingCost      decimal.Decimal `json:"shipping_cost" db:"shipping_cost"`
	TaxAmount         decimal.Decimal `json:"tax_amount" db:"tax_amount"`
	TotalAmount       decimal.Decimal `json:"total_amount" db:"total_amount"`
	CouponID          sql.NullInt64   `json:"-" db:"coupon_id"`
	Status            OrderStatus     `json:"status" db:"status"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`

	Items         []OrderItem          `json:"items,omitempty" db:"-"`
	StatusHistory []OrderStatusHistory `json:"status_history,omitempty" db:"-"`
}

// MarshalJSON writes the nullable references as numbers or null.
func (o Order) MarshalJSON() ([]byte, error) {
	type plain Order
	return json.Marshal(struct {
		plain
		ShippingAddressID *int64 `json:"shipping_address_id"`
		BillingAddressID  *int64 `json:"billing_address_id"`
		CouponID          *int64 `json:"coupon_id"`
	}{
		plain:             plain(o),
		ShippingAddressID: int64Ptr(o.ShippingAddressID),
		BillingAddressID:  int64Ptr(o.BillingAddressID),
		CouponID:          int64Ptr(o.CouponID),
	})
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

// ComputeTotal applies total = subtotal - discount + shipping + tax.
func (o *Order) ComputeTotal() {
	o.TotalAmount = o.Subtotal.Sub(o.DiscountAmount).Add(o.ShippingCost).Add(o.TaxAmount)
}

type OrderItem struct {
	LineTarget `json:"target"`

	ID              int64           `json:"id" db:"id"`
	OrderID         int64           `json:"order_id" db:"order_id"`
	Quantity        int             `json:"quantity" db:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price" db:"unit_price"`
	TotalPrice      decimal.Decimal `json:"total_price" db:"total_price"`
	DiscountApplied decimal.Decimal `json:"discount_applied" db:"discount_applied"`
}

type OrderStatusHistory struct {
	ID        int64       `json:"id" db:"id"`
	OrderID   int64       `json:"order_id" db:"order_id"`
	Status    OrderStatus `json:"status" db:"status"`
	Notes     string      `json:"notes,omitempty" db:"notes"`
	Actor     string      `json:"actor" db:"actor"`
	ChangedAt time.Time   `json:"changed_at" db:"changed_at"`
}

type CheckoutRequest struct {
	ShippingAddressID *int64 `json:"shipping_address_id"`
	BillingAddressID  *int64 `json:"billing_address_id"`
	CouponCode        string `json:"coupon_code"`
}

type CheckoutResponse struct {
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Status      OrderStatus     `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Message     string          `json:"message"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
	Notes  string      `json:"notes"`
}
