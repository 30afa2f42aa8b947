package domain

import (
	"database/sql"
	"time"
)

type ChangeType string

const (
	ChangeRestock    ChangeType = "restock"
	ChangeSale       ChangeType = "sale"
	ChangeReturn     ChangeType = "return"
	ChangeDamage     ChangeType = "damage"
	ChangeAdjustment ChangeType = "adjustment"
	ChangeReserved   ChangeType = "reserved"
	ChangeReleased   ChangeType = "released"
)

const DefaultLowStockThreshold = 10

type InventoryRecord struct {
	LineTarget `json:"target"`

	AvailableStock    int          `json:"available_stock" db:"available_stock"`
	ReservedStock     int          `json:"reserved_stock" db:"reserved_stock"`
	LowStockThreshold int          `json:"low_stock_threshold" db:"low_stock_threshold"`
	WarehouseLocation string       `json:"warehouse_location,omitempty" db:"warehouse_location"`
	LastRestocked     sql.NullTime `json:"-" db:"last_restocked"`
	UpdatedAt         time.Time    `json:"updated_at" db:"updated_at"`
}

func (r *InventoryRecord) TotalStock() int {
	return r.AvailableStock + r.ReservedStock
}

func (r *InventoryRecord) IsLowStock() bool {
	return r.AvailableStock <= r.LowStockThreshold
}

// InventoryLogEntry is one immutable ledger row. Quantities are measured on
// total stock (available + reserved); ReservedChange is the movement into or
// out of the reserved bucket.
type InventoryLogEntry struct {
	LineTarget `json:"target"`

	ID               int64      `json:"id" db:"id"`
	ChangeType       ChangeType `json:"change_type" db:"change_type"`
	QuantityChange   int        `json:"quantity_change" db:"quantity_change"`
	PreviousQuantity int        `json:"previous_quantity" db:"previous_quantity"`
	NewQuantity      int        `json:"new_quantity" db:"new_quantity"`
	ReservedChange   int        `json:"reserved_change" db:"reserved_change"`
	Reason           string     `json:"reason,omitempty" db:"reason"`
	ReferenceID      string     `json:"reference_id,omitempty" db:"reference_id"`
	Actor            string     `json:"actor" db:"actor"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCommitted ReservationStatus = "committed"
	ReservationReleased  ReservationStatus = "released"
	ReservationExpired   ReservationStatus = "expired"
)

// Reservation is the token handed out by a successful reserve call.
type Reservation struct {
	LineTarget `json:"target"`

	Token     string            `json:"token" db:"token"`
	Quantity  int               `json:"quantity" db:"quantity"`
	Status    ReservationStatus `json:"status" db:"status"`
	Reference string            `json:"reference" db:"reference"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	ExpiresAt time.Time         `json:"expires_at" db:"expires_at"`
}

type RestockRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

type AdjustRequest struct {
	ChangeType ChangeType `json:"change_type" binding:"required,oneof=damage return adjustment"`
	Quantity   int        `json:"quantity" binding:"required"`
	Reason     string     `json:"reason"`
}
