package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/events"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/repository"
)

// InventoryService is the stock ledger. Every mutation runs in one
// transaction together with its log entry.
type InventoryService struct {
	store     repository.Transactor
	publisher EventPublisher
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewInventoryService(store repository.Transactor, publisher EventPublisher, ttl time.Duration, logger *zap.Logger) *InventoryService {
	return &InventoryService{
		store:     store,
		publisher: publisher,
		ttl:       ttl,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Reserve moves qty of t from available to reserved and returns the
// reservation token. Nothing is mutated when stock is short.
func (s *InventoryService) Reserve(ctx context.Context, t domain.LineTarget, qty int, reference, actor string) (*domain.Reservation, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, domain.NewValidationError("quantity", "must be positive")
	}

	var (
		res   *domain.Reservation
		after *domain.InventoryRecord
	)
	err := s.store.WithinTx(ctx, func(st repository.Stores) error {
		ok, err := st.Inventory().TryReserve(ctx, t, qty)
		if err != nil {
			return err
		}
		if !ok {
			return insufficient(ctx, st, t, qty)
		}

		after, err = st.Inventory().Get(ctx, t)
		if err != nil {
			return err
		}

		ts := s.now()
		res = &domain.Reservation{
			LineTarget: t,
			Token:      uuid.NewString(),
			Quantity:   qty,
			Status:     domain.ReservationActive,
			Reference:  reference,
			CreatedAt:  ts,
			ExpiresAt:  ts.Add(s.ttl),
		}
		if err := st.Reservations().Create(ctx, res); err != nil {
			return err
		}

		total := after.TotalStock()
		return st.Inventory().AppendLog(ctx, &domain.InventoryLogEntry{
			LineTarget:       t,
			ChangeType:       domain.ChangeReserved,
			PreviousQuantity: total,
			NewQuantity:      total,
			ReservedChange:   qty,
			ReferenceID:      reference,
			Actor:            actor,
			CreatedAt:        ts,
		})
	})
	if err != nil {
		return nil, err
	}

	s.checkLowStock(ctx, after, after.AvailableStock+qty)
	return res, nil
}

// Release returns an active reservation's quantity to available stock.
func (s *InventoryService) Release(ctx context.Context, token, actor, reason string) error {
	return s.store.WithinTx(ctx, func(st repository.Stores) error {
		return s.release(ctx, st, token, domain.ReservationReleased, actor, reason)
	})
}

// CommitSale turns an active reservation into a permanent decrement.
func (s *InventoryService) CommitSale(ctx context.Context, token, actor string) error {
	return s.store.WithinTx(ctx, func(st repository.Stores) error {
		return s.commitSale(ctx, st, token, actor)
	})
}

func (s *InventoryService) release(ctx context.Context, st repository.Stores, token string, to domain.ReservationStatus, actor, reason string) error {
	res, err := st.Reservations().Get(ctx, token)
	if err != nil {
		return err
	}
	ok, err := st.Reservations().Transition(ctx, token, domain.ReservationActive, to)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("release %s: %w", token, domain.ErrReservationNotActive)
	}

	ok, err = st.Inventory().Unreserve(ctx, res.LineTarget, res.Quantity)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("reserved stock of %s is below reservation %s", res.LineTarget, token)
	}

	rec, err := st.Inventory().Get(ctx, res.LineTarget)
	if err != nil {
		return err
	}
	total := rec.TotalStock()
	return st.Inventory().AppendLog(ctx, &domain.InventoryLogEntry{
		LineTarget:       res.LineTarget,
		ChangeType:       domain.ChangeReleased,
		PreviousQuantity: total,
		NewQuantity:      total,
		ReservedChange:   -res.Quantity,
		Reason:           reason,
		ReferenceID:      res.Reference,
		Actor:            actor,
		CreatedAt:        s.now(),
	})
}

func (s *InventoryService) commitSale(ctx context.Context, st repository.Stores, token, actor string) error {
	res, err := st.Reservations().Get(ctx, token)
	if err != nil {
		return err
	}
	ok, err := st.Reservations().Transition(ctx, token, domain.ReservationActive, domain.ReservationCommitted)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("commit %s: %w", token, domain.ErrReservationNotActive)
	}

	ok, err = st.Inventory().CommitReserved(ctx, res.LineTarget, res.Quantity)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("reserved stock of %s is below reservation %s", res.LineTarget, token)
	}

	rec, err := st.Inventory().Get(ctx, res.LineTarget)
	if err != nil {
		return err
	}
	total := rec.TotalStock()
	return st.Inventory().AppendLog(ctx, &domain.InventoryLogEntry{
		LineTarget:       res.LineTarget,
		ChangeType:       domain.ChangeSale,
		QuantityChange:   -res.Quantity,
		PreviousQuantity: total + res.Quantity,
		NewQuantity:      total,
		ReservedChange:   -res.Quantity,
		ReferenceID:      res.Reference,
		Actor:            actor,
		CreatedAt:        s.now(),
	})
}

// Restock adds qty to available stock, creating the record on first use.
func (s *InventoryService) Restock(ctx context.Context, t domain.LineTarget, qty int, actor string) (*domain.InventoryRecord, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, domain.NewValidationError("quantity", "must be positive")
	}

	var rec *domain.InventoryRecord
	err := s.store.WithinTx(ctx, func(st repository.Stores) error {
		if _, err := quote(ctx, st.Catalog(), t); err != nil {
			return err
		}
		if err := ensureRecord(ctx, st, t); err != nil {
			return err
		}
		var err error
		rec, err = s.apply(ctx, st, t, qty, domain.ChangeRestock, "", "", actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Stock restocked",
		zap.String("target", t.String()),
		zap.Int("quantity", qty),
		zap.Int("available", rec.AvailableStock),
		zap.String("actor", actor))
	return rec, nil
}

// Adjust records a damage, return or manual adjustment. Damage and
// negative adjustments fail with InsufficientStockError if they would take
// available stock below zero.
func (s *InventoryService) Adjust(ctx context.Context, t domain.LineTarget, req domain.AdjustRequest, actor string) (*domain.InventoryRecord, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	var delta int
	switch req.ChangeType {
	case domain.ChangeDamage:
		if req.Quantity <= 0 {
			return nil, domain.NewValidationError("quantity", "damage quantity must be positive")
		}
		delta = -req.Quantity
	case domain.ChangeReturn:
		if req.Quantity <= 0 {
			return nil, domain.NewValidationError("quantity", "return quantity must be positive")
		}
		delta = req.Quantity
	case domain.ChangeAdjustment:
		if req.Quantity == 0 {
			return nil, domain.NewValidationError("quantity", "adjustment must be non-zero")
		}
		delta = req.Quantity
	default:
		return nil, domain.NewValidationError("change_type", "must be damage, return or adjustment")
	}

	var rec *domain.InventoryRecord
	err := s.store.WithinTx(ctx, func(st repository.Stores) error {
		if _, err := st.Inventory().Get(ctx, t); err != nil {
			return err
		}
		var err error
		rec, err = s.apply(ctx, st, t, delta, req.ChangeType, req.Reason, "", actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	if delta < 0 {
		s.checkLowStock(ctx, rec, rec.AvailableStock-delta)
	}
	return rec, nil
}

// apply adds delta to available stock and logs it as change.
func (s *InventoryService) apply(ctx context.Context, st repository.Stores, t domain.LineTarget, delta int, change domain.ChangeType, reason, reference, actor string) (*domain.InventoryRecord, error) {
	ok, err := st.Inventory().AddAvailable(ctx, t, delta, change == domain.ChangeRestock)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, insufficient(ctx, st, t, -delta)
	}

	rec, err := st.Inventory().Get(ctx, t)
	if err != nil {
		return nil, err
	}
	total := rec.TotalStock()
	err = st.Inventory().AppendLog(ctx, &domain.InventoryLogEntry{
		LineTarget:       t,
		ChangeType:       change,
		QuantityChange:   delta,
		PreviousQuantity: total - delta,
		NewQuantity:      total,
		Reason:           reason,
		ReferenceID:      reference,
		Actor:            actor,
		CreatedAt:        s.now(),
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *InventoryService) Get(ctx context.Context, t domain.LineTarget) (*domain.InventoryRecord, error) {
	var rec *domain.InventoryRecord
	err := s.store.WithinTx(ctx, func(st repository.Stores) error {
		var err error
		rec, err = st.Inventory().Get(ctx, t)
		return err
	})
	return rec, err
}

// ListLogs returns the ledger of t, oldest first.
func (s *InventoryService) ListLogs(ctx context.Context, t domain.LineTarget) ([]domain.InventoryLogEntry, error) {
	var logs []domain.InventoryLogEntry
	err := s.store.WithinTx(ctx, func(st repository.Stores) error {
		if _, err := st.Inventory().Get(ctx, t); err != nil {
			return err
		}
		var err error
		logs, err = st.Inventory().ListLogs(ctx, t)
		return err
	})
	if logs == nil {
		logs = []domain.InventoryLogEntry{}
	}
	return logs, err
}

func (s *InventoryService) ListLowStock(ctx context.Context) ([]domain.InventoryRecord, error) {
	var recs []domain.InventoryRecord
	err := s.store.WithinTx(ctx, func(st repository.Stores) error {
		var err error
		recs, err = st.Inventory().ListLowStock(ctx)
		return err
	})
	if recs == nil {
		recs = []domain.InventoryRecord{}
	}
	return recs, err
}

// ExpireReservations releases up to limit active reservations whose expiry
// is at or before now. Reservations that belong to a placed order are left
// alone and reported, since their stock is already sold.
func (s *InventoryService) ExpireReservations(ctx context.Context, now time.Time, limit int) (int, error) {
	var expired []domain.Reservation
	err := s.store.WithinTx(ctx, func(st repository.Stores) error {
		var err error
		expired, err = st.Reservations().ListExpired(ctx, now.UTC(), limit)
		return err
	})
	if err != nil {
		return 0, err
	}

	released := 0
	for _, res := range expired {
		err := s.store.WithinTx(ctx, func(st repository.Stores) error {
			if res.Reference != "" {
				o, err := st.Orders().GetByNumber(ctx, res.Reference)
				if err == nil {
					return &domain.ReconciliationError{OrderNumber: o.OrderNumber, Pending: []string{res.Token}, Err: errors.New("reservation expired after order was placed")}
				}
				if !errors.Is(err, domain.ErrNotFound) {
					return err
				}
			}
			return s.release(ctx, st, res.Token, domain.ReservationExpired, "system", "expired")
		})

		var recErr *domain.ReconciliationError
		switch {
		case err == nil:
			released++
		case errors.Is(err, domain.ErrReservationNotActive):
			// Committed or released between listing and now.
		case errors.As(err, &recErr):
			s.logger.Error("Expired reservation belongs to a placed order",
				zap.String("order_number", recErr.OrderNumber),
				zap.String("token", res.Token),
				zap.String("target", res.LineTarget.String()),
				zap.Int("quantity", res.Quantity))
		default:
			return released, err
		}
	}
	return released, nil
}

func (s *InventoryService) checkLowStock(ctx context.Context, rec *domain.InventoryRecord, before int) {
	if rec == nil || !rec.IsLowStock() || before <= rec.LowStockThreshold {
		return
	}
	event := events.LowStockEvent{
		EventID:   uuid.NewString(),
		Target:    rec.LineTarget.String(),
		Available: rec.AvailableStock,
		Threshold: rec.LowStockThreshold,
		Timestamp: s.now(),
	}
	if err := s.publisher.PublishLowStock(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("Failed to publish low stock alert",
			zap.String("target", event.Target),
			zap.Error(err))
	}
}

func ensureRecord(ctx context.Context, st repository.Stores, t domain.LineTarget) error {
	_, err := st.Inventory().Get(ctx, t)
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	err = st.Inventory().Create(ctx, &domain.InventoryRecord{LineTarget: t})
	if errors.Is(err, domain.ErrConflict) {
		return nil
	}
	return err
}

// insufficient builds the error for a failed conditional update on t.
func insufficient(ctx context.Context, st repository.Stores, t domain.LineTarget, requested int) error {
	rec, err := st.Inventory().Get(ctx, t)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.InsufficientStockError{Target: t, Requested: requested, Available: 0}
	}
	if err != nil {
		return err
	}
	return &domain.InsufficientStockError{Target: t, Requested: requested, Available: rec.AvailableStock}
}
