package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
)

type couponRepo struct {
	q sqlx.ExtContext
}

func (r couponRepo) Create(ctx context.Context, c *domain.Coupon) error {
	id, err := insertID(ctx, r.q, `
		INSERT INTO coupons (code, discount_type, discount_value, start_date, expiry_date, max_uses, used_count, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Code, c.DiscountType, c.DiscountValue, c.StartDate.UTC(), c.ExpiryDate.UTC(), c.MaxUses, c.UsedCount, c.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("coupon %s: %w", c.Code, domain.ErrConflict)
		}
		return fmt.Errorf("failed to create coupon %s: %w", c.Code, err)
	}
	c.ID = id
	return nil
}

func (r couponRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var c domain.Coupon
	err := sqlx.GetContext(ctx, r.q, &c, `
		SELECT id, code, discount_type, discount_value, start_date, expiry_date, max_uses, used_count, is_active
		FROM coupons WHERE code = ?`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("coupon %s: %w", code, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon %s: %w", code, err)
	}
	return &c, nil
}

func (r couponRepo) Claim(ctx context.Context, id int64) (bool, error) {
	ok, err := affected(ctx, r.q, `
		UPDATE coupons SET used_count = used_count + 1
		WHERE id = ? AND is_active = ? AND (max_uses IS NULL OR used_count < max_uses)`, id, true)
	if err != nil {
		return false, fmt.Errorf("failed to claim coupon %d: %w", id, err)
	}
	return ok, nil
}
