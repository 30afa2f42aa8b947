package domain

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash          PaymentMethod = "cash"
	PaymentOnlineBanking PaymentMethod = "online_banking"
	PaymentCreditCard    PaymentMethod = "credit_card"
	PaymentDebitCard     PaymentMethod = "debit_card"
	PaymentUPI           PaymentMethod = "upi"
	PaymentWallet        PaymentMethod = "wallet"
	PaymentGiftCard      PaymentMethod = "gift_card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentOnlineBanking, PaymentCreditCard, PaymentDebitCard,
		PaymentUPI, PaymentWallet, PaymentGiftCard:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusFailed},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted:  {PaymentStatusRefunded},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Payment struct {
	ID             int64           `json:"id" db:"id"`
	OrderID        int64           `json:"order_id" db:"order_id"`
	Method         PaymentMethod   `json:"method" db:"method"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Status         PaymentStatus   `json:"status" db:"status"`
	TransactionID  sql.NullString  `json:"-" db:"transaction_id"`
	PaymentGateway string          `json:"payment_gateway,omitempty" db:"payment_gateway"`
	PaymentDate    sql.NullTime    `json:"-" db:"payment_date"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

func (p Payment) MarshalJSON() ([]byte, error) {
	type plain Payment
	out := struct {
		plain
		TransactionID *string    `json:"transaction_id"`
		PaymentDate   *time.Time `json:"payment_date"`
	}{plain: plain(p)}
	if p.TransactionID.Valid {
		out.TransactionID = &p.TransactionID.String
	}
	if p.PaymentDate.Valid {
		out.PaymentDate = &p.PaymentDate.Time
	}
	return json.Marshal(out)
}

type RecordPaymentRequest struct {
	Method PaymentMethod   `json:"method" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type UpdatePaymentStatusRequest struct {
	Status         PaymentStatus `json:"status" binding:"required"`
	TransactionID  string        `json:"transaction_id"`
	PaymentGateway string        `json:"payment_gateway"`
}
