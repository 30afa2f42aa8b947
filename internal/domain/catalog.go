package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        int64           `json:"id" db:"id"`
	SellerID  int64           `json:"seller_id" db:"seller_id"`
	Name      string          `json:"name" db:"name"`
	BasePrice decimal.Decimal `json:"base_price" db:"base_price"`
	SKU       string          `json:"sku" db:"sku"`
	IsActive  bool            `json:"is_active" db:"is_active"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// ProductVariant carries no stock column of its own; StockQty is filled
// from the variant's inventory record when read.
type ProductVariant struct {
	ID        int64           `json:"id" db:"id"`
	ProductID int64           `json:"product_id" db:"product_id"`
	Color     string          `json:"color" db:"color"`
	Size      string          `json:"size" db:"size"`
	Price     decimal.Decimal `json:"price" db:"price"`
	SKU       string          `json:"sku" db:"sku"`
	IsActive  bool            `json:"is_active" db:"is_active"`
	StockQty  int             `json:"stock_qty" db:"stock_qty"`
}

// Quote is the catalog's answer for one line target at a point in time.
type Quote struct {
	Target    LineTarget
	Name      string
	UnitPrice decimal.Decimal
	Active    bool
}
