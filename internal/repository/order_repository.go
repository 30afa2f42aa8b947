package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
)

const orderColumns = `id, user_id, order_number, shipping_address_id, billing_address_id, subtotal,
	discount_amount, shipping_cost, tax_amount, total_amount, coupon_id, status, created_at, updated_at`

type orderRepo struct {
	q sqlx.ExtContext
}

func (r orderRepo) Create(ctx context.Context, o *domain.Order) error {
	ts := now()
	o.CreatedAt, o.UpdatedAt = ts, ts
	id, err := insertID(ctx, r.q, `
		INSERT INTO orders (user_id, order_number, shipping_address_id, billing_address_id, subtotal,
			discount_amount, shipping_cost, tax_amount, total_amount, coupon_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.UserID, o.OrderNumber, o.ShippingAddressID, o.BillingAddressID, o.Subtotal,
		o.DiscountAmount, o.ShippingCost, o.TaxAmount, o.TotalAmount, o.CouponID, o.Status, ts, ts)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("order number %s: %w", o.OrderNumber, domain.ErrConflict)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	o.ID = id
	return nil
}

func (r orderRepo) AddItems(ctx context.Context, orderID int64, items []domain.OrderItem) error {
	for i := range items {
		it := &items[i]
		it.OrderID = orderID
		id, err := insertID(ctx, r.q, `
			INSERT INTO order_items (order_id, target_kind, target_id, quantity, unit_price, total_price, discount_applied)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			orderID, it.Kind, it.LineTarget.ID, it.Quantity, it.UnitPrice, it.TotalPrice, it.DiscountApplied)
		if err != nil {
			return fmt.Errorf("failed to add order item %s: %w", it.LineTarget, err)
		}
		it.ID = id
	}
	return nil
}

func (r orderRepo) AppendHistory(ctx context.Context, h *domain.OrderStatusHistory) error {
	if h.ChangedAt.IsZero() {
		h.ChangedAt = now()
	}
	id, err := insertID(ctx, r.q, `
		INSERT INTO order_status_history (order_id, status, notes, actor, changed_at)
		VALUES (?, ?, ?, ?, ?)`,
		h.OrderID, h.Status, h.Notes, h.Actor, h.ChangedAt)
	if err != nil {
		return fmt.Errorf("failed to append status history for order %d: %w", h.OrderID, err)
	}
	h.ID = id
	return nil
}

func (r orderRepo) Get(ctx context.Context, id int64) (*domain.Order, error) {
	var o domain.Order
	err := sqlx.GetContext(ctx, r.q, &o, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %d: %w", id, err)
	}
	return &o, nil
}

func (r orderRepo) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	var o domain.Order
	err := sqlx.GetContext(ctx, r.q, &o, `SELECT `+orderColumns+` FROM orders WHERE order_number = ?`, number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", number, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", number, err)
	}
	return &o, nil
}

func (r orderRepo) Items(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	items := []domain.OrderItem{}
	err := sqlx.SelectContext(ctx, r.q, &items, `
		SELECT id, order_id, target_kind, target_id, quantity, unit_price, total_price, discount_applied
		FROM order_items WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items of order %d: %w", orderID, err)
	}
	return items, nil
}

func (r orderRepo) History(ctx context.Context, orderID int64) ([]domain.OrderStatusHistory, error) {
	history := []domain.OrderStatusHistory{}
	err := sqlx.SelectContext(ctx, r.q, &history, `
		SELECT id, order_id, status, notes, actor, changed_at
		FROM order_status_history WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history of order %d: %w", orderID, err)
	}
	return history, nil
}

func (r orderRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	orders := []domain.Order{}
	err := sqlx.SelectContext(ctx, r.q, &orders,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders of %s: %w", userID, err)
	}
	return orders, nil
}

func (r orderRepo) UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus) (bool, error) {
	ok, err := affected(ctx, r.q,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`, to, now(), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update status of order %d: %w", id, err)
	}
	return ok, nil
}
