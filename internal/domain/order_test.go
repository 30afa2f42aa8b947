package domain

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderJSONIncludesReferences(t *testing.T) {
	o := Order{
		ID:                7,
		OrderNumber:       "ORD-20260101-ABCDEF012345",
		ShippingAddressID: sql.NullInt64{Int64: 11, Valid: true},
		CouponID:          sql.NullInt64{Int64: 3, Valid: true},
		TotalAmount:       decimal.RequireFromString("10.50"),
		Status:            OrderStatusPending,
	}

	raw, err := json.Marshal(&o)
	require.NoError(t, err)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &got))

	assert.EqualValues(t, 11, got["shipping_address_id"])
	assert.Nil(t, got["billing_address_id"])
	assert.EqualValues(t, 3, got["coupon_id"])
	assert.Equal(t, "ORD-20260101-ABCDEF012345", got["order_number"])
	assert.Equal(t, "pending", got["status"])
}

func TestPaymentJSONIncludesTransaction(t *testing.T) {
	paid := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := Payment{
		OrderID:       7,
		Method:        PaymentUPI,
		Status:        PaymentStatusCompleted,
		TransactionID: sql.NullString{String: "txn-1", Valid: true},
		PaymentDate:   sql.NullTime{Time: paid, Valid: true},
	}

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "txn-1", got["transaction_id"])
	assert.Equal(t, "2026-03-01T10:00:00Z", got["payment_date"])

	raw, err = json.Marshal(Payment{Status: PaymentStatusPending})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Nil(t, got["transaction_id"])
	assert.Nil(t, got["payment_date"])
}
