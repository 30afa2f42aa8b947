package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
)

type catalogRepo struct {
	q sqlx.ExtContext
}

func (r catalogRepo) CreateProduct(ctx context.Context, p *domain.Product) error {
	p.CreatedAt = now()
	var sku sql.NullString
	if p.SKU != "" {
		sku = sql.NullString{String: p.SKU, Valid: true}
	}
	id, err := insertID(ctx, r.q, `
		INSERT INTO products (seller_id, name, base_price, sku, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.SellerID, p.Name, p.BasePrice, sku, p.IsActive, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("product sku %s: %w", p.SKU, domain.ErrConflict)
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	p.ID = id
	return nil
}

func (r catalogRepo) CreateVariant(ctx context.Context, v *domain.ProductVariant) error {
	id, err := insertID(ctx, r.q, `
		INSERT INTO product_variants (product_id, color, size, price, sku, is_active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.ProductID, v.Color, v.Size, v.Price, v.SKU, v.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("variant sku %s: %w", v.SKU, domain.ErrConflict)
		}
		return fmt.Errorf("failed to create variant: %w", err)
	}
	v.ID = id
	return nil
}

func (r catalogRepo) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, r.q, &p, `
		SELECT id, seller_id, name, base_price, COALESCE(sku, '') AS sku, is_active, created_at
		FROM products WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return &p, nil
}

func (r catalogRepo) GetVariant(ctx context.Context, id int64) (*domain.ProductVariant, error) {
	var v domain.ProductVariant
	err := sqlx.GetContext(ctx, r.q, &v, `
		SELECT v.id, v.product_id, v.color, v.size, v.price, v.sku, v.is_active,
			COALESCE(i.available_stock, 0) AS stock_qty
		FROM product_variants v
		LEFT JOIN inventory i ON i.target_kind = ? AND i.target_id = v.id
		WHERE v.id = ?`, domain.TargetVariant, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("variant %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get variant %d: %w", id, err)
	}
	return &v, nil
}
