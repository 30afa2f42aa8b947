package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
)

type paymentRepo struct {
	q sqlx.ExtContext
}

func (r paymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	ts := now()
	p.CreatedAt, p.UpdatedAt = ts, ts
	id, err := insertID(ctx, r.q, `
		INSERT INTO payments (order_id, method, amount, status, transaction_id, payment_gateway, payment_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.OrderID, p.Method, p.Amount, p.Status, p.TransactionID, p.PaymentGateway, p.PaymentDate, ts, ts)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("payment for order %d: %w", p.OrderID, domain.ErrConflict)
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	p.ID = id
	return nil
}

func (r paymentRepo) GetByOrder(ctx context.Context, orderID int64) (*domain.Payment, error) {
	var p domain.Payment
	err := sqlx.GetContext(ctx, r.q, &p, `
		SELECT id, order_id, method, amount, status, transaction_id, payment_gateway, payment_date, created_at, updated_at
		FROM payments WHERE order_id = ?`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment for order %d: %w", orderID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment for order %d: %w", orderID, err)
	}
	return &p, nil
}

// UpdateStatus writes p's status, transaction id, gateway and payment date
// if the stored status still equals from.
func (r paymentRepo) UpdateStatus(ctx context.Context, p *domain.Payment, from domain.PaymentStatus) (bool, error) {
	p.UpdatedAt = now()
	ok, err := affected(ctx, r.q, `
		UPDATE payments
		SET status = ?, transaction_id = ?, payment_gateway = ?, payment_date = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		p.Status, p.TransactionID, p.PaymentGateway, p.PaymentDate, p.UpdatedAt, p.ID, from)
	if err != nil {
		if isUniqueViolation(err) {
			return false, fmt.Errorf("transaction id %s: %w", p.TransactionID.String, domain.ErrConflict)
		}
		return false, fmt.Errorf("failed to update payment %d: %w", p.ID, err)
	}
	return ok, nil
}
