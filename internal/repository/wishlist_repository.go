package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
)

type wishlistRepo struct {
	q sqlx.ExtContext
}

func (r wishlistRepo) Add(ctx context.Context, item *domain.WishlistItem) error {
	item.CreatedAt = now()
	id, err := insertID(ctx, r.q,
		`INSERT INTO wishlist_items (user_id, product_id, created_at) VALUES (?, ?, ?)`,
		item.UserID, item.ProductID, item.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("product %d already wishlisted: %w", item.ProductID, domain.ErrConflict)
		}
		return fmt.Errorf("failed to add product %d to wishlist: %w", item.ProductID, err)
	}
	item.ID = id
	return nil
}

func (r wishlistRepo) Remove(ctx context.Context, userID string, productID int64) (bool, error) {
	ok, err := affected(ctx, r.q,
		`DELETE FROM wishlist_items WHERE user_id = ? AND product_id = ?`, userID, productID)
	if err != nil {
		return false, fmt.Errorf("failed to remove product %d from wishlist: %w", productID, err)
	}
	return ok, nil
}

func (r wishlistRepo) List(ctx context.Context, userID string) ([]domain.WishlistItem, error) {
	items := []domain.WishlistItem{}
	err := sqlx.SelectContext(ctx, r.q, &items, `
		SELECT id, user_id, product_id, created_at
		FROM wishlist_items WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist of %s: %w", userID, err)
	}
	return items, nil
}
