package domain

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Coupon struct {
	ID            int64           `json:"id" db:"id"`
	Code          string          `json:"code" db:"code"`
	DiscountType  DiscountType    `json:"discount_type" db:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value" db:"discount_value"`
	StartDate     time.Time       `json:"start_date" db:"start_date"`
	ExpiryDate    time.Time       `json:"expiry_date" db:"expiry_date"`
	MaxUses       sql.NullInt64   `json:"-" db:"max_uses"`
	UsedCount     int             `json:"used_count" db:"used_count"`
	IsActive      bool            `json:"is_active" db:"is_active"`
}

// Check reports why the coupon cannot be used at now, or "" if it can.
func (c *Coupon) Check(now time.Time) string {
	switch {
	case !c.IsActive:
		return "coupon is not active"
	case now.Before(c.StartDate):
		return "coupon is not yet valid"
	case now.After(c.ExpiryDate):
		return "coupon has expired"
	case c.MaxUses.Valid && int64(c.UsedCount) >= c.MaxUses.Int64:
		return "coupon usage limit reached"
	}
	return ""
}

// Discount computes the discount on subtotal, never exceeding it.
func (c *Coupon) Discount(subtotal decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		d = subtotal.Mul(c.DiscountValue).Div(decimal.NewFromInt(100)).Round(2)
	case DiscountFixed:
		d = c.DiscountValue
	}
	if d.GreaterThan(subtotal) {
		d = subtotal
	}
	if d.IsNegative() {
		d = decimal.Zero
	}
	return d
}
