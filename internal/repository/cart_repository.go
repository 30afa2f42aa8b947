package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
)

type cartRepo struct {
	q sqlx.ExtContext
}

func (r cartRepo) Find(ctx context.Context, userID string) (*domain.Cart, error) {
	var c domain.Cart
	err := sqlx.GetContext(ctx, r.q, &c,
		`SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cart of %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart of %s: %w", userID, err)
	}
	return &c, nil
}

func (r cartRepo) GetOrCreate(ctx context.Context, userID string) (*domain.Cart, error) {
	c, err := r.Find(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	ts := now()
	id, err := insertID(ctx, r.q,
		`INSERT INTO carts (user_id, created_at, updated_at) VALUES (?, ?, ?)`, userID, ts, ts)
	if err != nil {
		// Another session of the same user created it first.
		if isUniqueViolation(err) {
			return r.Find(ctx, userID)
		}
		return nil, fmt.Errorf("failed to create cart for %s: %w", userID, err)
	}
	return &domain.Cart{ID: id, UserID: userID, CreatedAt: ts, UpdatedAt: ts}, nil
}

func (r cartRepo) GetItem(ctx context.Context, cartID int64, t domain.LineTarget) (*domain.CartItem, error) {
	var it domain.CartItem
	err := sqlx.GetContext(ctx, r.q, &it, `
		SELECT id, cart_id, target_kind, target_id, quantity, added_at
		FROM cart_items WHERE cart_id = ? AND target_kind = ? AND target_id = ?`,
		cartID, t.Kind, t.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cart item %s: %w", t, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart item %s: %w", t, err)
	}
	return &it, nil
}

func (r cartRepo) ListItems(ctx context.Context, cartID int64) ([]domain.CartItem, error) {
	items := []domain.CartItem{}
	err := sqlx.SelectContext(ctx, r.q, &items, `
		SELECT id, cart_id, target_kind, target_id, quantity, added_at
		FROM cart_items WHERE cart_id = ? ORDER BY id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	return items, nil
}

func (r cartRepo) InsertItem(ctx context.Context, it *domain.CartItem) error {
	if it.AddedAt.IsZero() {
		it.AddedAt = now()
	}
	id, err := insertID(ctx, r.q, `
		INSERT INTO cart_items (cart_id, target_kind, target_id, quantity, added_at)
		VALUES (?, ?, ?, ?, ?)`,
		it.CartID, it.Kind, it.LineTarget.ID, it.Quantity, it.AddedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("cart item %s: %w", it.LineTarget, domain.ErrConflict)
		}
		return fmt.Errorf("failed to insert cart item %s: %w", it.LineTarget, err)
	}
	it.ID = id
	return nil
}

func (r cartRepo) UpdateItemQuantity(ctx context.Context, itemID int64, qty int) error {
	if _, err := r.q.ExecContext(ctx,
		`UPDATE cart_items SET quantity = ? WHERE id = ?`, qty, itemID); err != nil {
		return fmt.Errorf("failed to update cart item %d: %w", itemID, err)
	}
	return nil
}

func (r cartRepo) DeleteItem(ctx context.Context, itemID int64) (bool, error) {
	ok, err := affected(ctx, r.q, `DELETE FROM cart_items WHERE id = ?`, itemID)
	if err != nil {
		return false, fmt.Errorf("failed to delete cart item %d: %w", itemID, err)
	}
	return ok, nil
}

func (r cartRepo) DeleteItems(ctx context.Context, cartID int64, itemIDs []int64) error {
	if len(itemIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM cart_items WHERE cart_id = ? AND id IN (?)`, cartID, itemIDs)
	if err != nil {
		return err
	}
	if _, err := r.q.ExecContext(ctx, r.q.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to empty cart %d: %w", cartID, err)
	}
	return nil
}

func (r cartRepo) DeleteCheckedOut(ctx context.Context, cartID int64, items []domain.CartItem) (int, error) {
	deleted := 0
	for _, it := range items {
		ok, err := affected(ctx, r.q,
			`DELETE FROM cart_items WHERE cart_id = ? AND id = ? AND quantity = ?`, cartID, it.ID, it.Quantity)
		if err != nil {
			return deleted, fmt.Errorf("failed to remove item %d from cart %d: %w", it.ID, cartID, err)
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}

func (r cartRepo) Touch(ctx context.Context, cartID int64) error {
	if _, err := r.q.ExecContext(ctx,
		`UPDATE carts SET updated_at = ? WHERE id = ?`, now(), cartID); err != nil {
		return fmt.Errorf("failed to touch cart %d: %w", cartID, err)
	}
	return nil
}
