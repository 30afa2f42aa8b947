package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
)

const inventoryColumns = `target_kind, target_id, available_stock, reserved_stock, low_stock_threshold,
	warehouse_location, last_restocked, updated_at`

type inventoryRepo struct {
	q sqlx.ExtContext
}

func (r inventoryRepo) Get(ctx context.Context, t domain.LineTarget) (*domain.InventoryRecord, error) {
	var rec domain.InventoryRecord
	err := sqlx.GetContext(ctx, r.q, &rec,
		`SELECT `+inventoryColumns+` FROM inventory WHERE target_kind = ? AND target_id = ?`,
		t.Kind, t.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("inventory for %s: %w", t, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory for %s: %w", t, err)
	}
	return &rec, nil
}

func (r inventoryRepo) Create(ctx context.Context, rec *domain.InventoryRecord) error {
	if rec.LowStockThreshold == 0 {
		rec.LowStockThreshold = domain.DefaultLowStockThreshold
	}
	rec.UpdatedAt = now()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO inventory (`+inventoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Kind, rec.ID, rec.AvailableStock, rec.ReservedStock, rec.LowStockThreshold,
		rec.WarehouseLocation, rec.LastRestocked, rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("inventory for %s already exists: %w", rec.LineTarget, domain.ErrConflict)
		}
		return fmt.Errorf("failed to create inventory for %s: %w", rec.LineTarget, err)
	}
	return nil
}

// The updates below are single conditional statements. The WHERE clause is
// evaluated under the row lock the UPDATE takes, so concurrent callers on the
// same row serialize and a zero row count means the guard failed.

func (r inventoryRepo) TryReserve(ctx context.Context, t domain.LineTarget, qty int) (bool, error) {
	ok, err := affected(ctx, r.q, `
		UPDATE inventory
		SET available_stock = available_stock - ?, reserved_stock = reserved_stock + ?, updated_at = ?
		WHERE target_kind = ? AND target_id = ? AND available_stock >= ?`,
		qty, qty, now(), t.Kind, t.ID, qty)
	if err != nil {
		return false, fmt.Errorf("failed to reserve %d of %s: %w", qty, t, err)
	}
	return ok, nil
}

func (r inventoryRepo) Unreserve(ctx context.Context, t domain.LineTarget, qty int) (bool, error) {
	ok, err := affected(ctx, r.q, `
		UPDATE inventory
		SET available_stock = available_stock + ?, reserved_stock = reserved_stock - ?, updated_at = ?
		WHERE target_kind = ? AND target_id = ? AND reserved_stock >= ?`,
		qty, qty, now(), t.Kind, t.ID, qty)
	if err != nil {
		return false, fmt.Errorf("failed to release %d of %s: %w", qty, t, err)
	}
	return ok, nil
}

func (r inventoryRepo) CommitReserved(ctx context.Context, t domain.LineTarget, qty int) (bool, error) {
	ok, err := affected(ctx, r.q, `
		UPDATE inventory
		SET reserved_stock = reserved_stock - ?, updated_at = ?
		WHERE target_kind = ? AND target_id = ? AND reserved_stock >= ?`,
		qty, now(), t.Kind, t.ID, qty)
	if err != nil {
		return false, fmt.Errorf("failed to commit %d of %s: %w", qty, t, err)
	}
	return ok, nil
}

func (r inventoryRepo) AddAvailable(ctx context.Context, t domain.LineTarget, delta int, restocked bool) (bool, error) {
	ts := now()
	query := `
		UPDATE inventory
		SET available_stock = available_stock + ?, updated_at = ?
		WHERE target_kind = ? AND target_id = ? AND available_stock + ? >= 0`
	args := []interface{}{delta, ts, t.Kind, t.ID, delta}
	if restocked {
		query = `
		UPDATE inventory
		SET available_stock = available_stock + ?, updated_at = ?, last_restocked = ?
		WHERE target_kind = ? AND target_id = ? AND available_stock + ? >= 0`
		args = []interface{}{delta, ts, ts, t.Kind, t.ID, delta}
	}
	ok, err := affected(ctx, r.q, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to adjust %s by %d: %w", t, delta, err)
	}
	return ok, nil
}

func (r inventoryRepo) AppendLog(ctx context.Context, e *domain.InventoryLogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	id, err := insertID(ctx, r.q, `
		INSERT INTO inventory_logs (target_kind, target_id, change_type, quantity_change, previous_quantity,
			new_quantity, reserved_change, reason, reference_id, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Kind, e.LineTarget.ID, e.ChangeType, e.QuantityChange, e.PreviousQuantity,
		e.NewQuantity, e.ReservedChange, e.Reason, e.ReferenceID, e.Actor, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append inventory log for %s: %w", e.LineTarget, err)
	}
	e.ID = id
	return nil
}

func (r inventoryRepo) ListLogs(ctx context.Context, t domain.LineTarget) ([]domain.InventoryLogEntry, error) {
	var logs []domain.InventoryLogEntry
	err := sqlx.SelectContext(ctx, r.q, &logs, `
		SELECT id, target_kind, target_id, change_type, quantity_change, previous_quantity, new_quantity,
			reserved_change, reason, reference_id, actor, created_at
		FROM inventory_logs
		WHERE target_kind = ? AND target_id = ?
		ORDER BY id`, t.Kind, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory logs for %s: %w", t, err)
	}
	return logs, nil
}

func (r inventoryRepo) ListLowStock(ctx context.Context) ([]domain.InventoryRecord, error) {
	var recs []domain.InventoryRecord
	err := sqlx.SelectContext(ctx, r.q, &recs, `
		SELECT `+inventoryColumns+` FROM inventory
		WHERE available_stock <= low_stock_threshold
		ORDER BY available_stock, target_kind, target_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock: %w", err)
	}
	return recs, nil
}
