package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
)

type reservationRepo struct {
	q sqlx.ExtContext
}

func (r reservationRepo) Create(ctx context.Context, res *domain.Reservation) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO reservations (token, target_kind, target_id, quantity, status, reference, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.Token, res.Kind, res.ID, res.Quantity, res.Status, res.Reference, res.CreatedAt, res.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create reservation %s: %w", res.Token, err)
	}
	return nil
}

func (r reservationRepo) Get(ctx context.Context, token string) (*domain.Reservation, error) {
	var res domain.Reservation
	err := sqlx.GetContext(ctx, r.q, &res, `
		SELECT token, target_kind, target_id, quantity, status, reference, created_at, expires_at
		FROM reservations WHERE token = ?`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation %s: %w", token, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation %s: %w", token, err)
	}
	return &res, nil
}

func (r reservationRepo) Transition(ctx context.Context, token string, from, to domain.ReservationStatus) (bool, error) {
	ok, err := affected(ctx, r.q,
		`UPDATE reservations SET status = ? WHERE token = ? AND status = ?`, to, token, from)
	if err != nil {
		return false, fmt.Errorf("failed to move reservation %s to %s: %w", token, to, err)
	}
	return ok, nil
}

func (r reservationRepo) ListExpired(ctx context.Context, at time.Time, limit int) ([]domain.Reservation, error) {
	var out []domain.Reservation
	err := sqlx.SelectContext(ctx, r.q, &out, `
		SELECT token, target_kind, target_id, quantity, status, reference, created_at, expires_at
		FROM reservations
		WHERE status = ? AND expires_at <= ?
		ORDER BY expires_at
		LIMIT ?`, domain.ReservationActive, at, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired reservations: %w", err)
	}
	return out, nil
}

// ListActiveByReference returns the active reservations taken for reference,
// in target order.
func (r reservationRepo) ListActiveByReference(ctx context.Context, reference string) ([]domain.Reservation, error) {
	out := []domain.Reservation{}
	err := sqlx.SelectContext(ctx, r.q, &out, `
		SELECT token, target_kind, target_id, quantity, status, reference, created_at, expires_at
		FROM reservations
		WHERE reference = ? AND status = ?
		ORDER BY target_kind, target_id`, reference, domain.ReservationActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations of %s: %w", reference, err)
	}
	return out, nil
}
