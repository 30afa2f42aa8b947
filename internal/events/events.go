package events

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	Target     string          `json:"target"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type OrderCreatedEvent struct {
	EventID     string          `json:"event_id"`
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      string          `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	Summary     string          `json:"summary"`
	Items       []OrderItem     `json:"items"`
	Status      string          `json:"status"`
	Timestamp   time.Time       `json:"timestamp"`
	RequestID   string          `json:"request_id,omitempty"`
}

// LowStockEvent is raised when available stock drops to or below the
// record's threshold.
type LowStockEvent struct {
	EventID   string    `json:"event_id"`
	Target    string    `json:"target"`
	Available int       `json:"available"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// ReconciliationEvent reports an order whose reservations were not all
// committed. An operator has to settle the pending tokens by hand.
type ReconciliationEvent struct {
	EventID       string    `json:"event_id"`
	OrderID       int64     `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	PendingTokens []string  `json:"pending_tokens"`
	Reason        string    `json:"reason"`
	Timestamp     time.Time `json:"timestamp"`
}
