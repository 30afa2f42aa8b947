package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/repository"
)

type OrderService struct {
	store     repository.Transactor
	inventory *InventoryService
	logger    *zap.Logger
}

func NewOrderService(store repository.Transactor, inventory *InventoryService, logger *zap.Logger) *OrderService {
	return &OrderService{
		store:     store,
		inventory: inventory,
		logger:    logger,
	}
}

// GetOrder returns the order with its items and status history. Only the
// owner or staff may read it.
func (s *OrderService) GetOrder(ctx context.Context, userID string, staff bool, id int64) (*domain.Order, error) {
	var order *domain.Order
	err := s.store.WithinTx(ctx, func(st repository.Stores) error {
		var err error
		order, err = st.Orders().Get(ctx, id)
		if err != nil {
			return err
		}
		if !staff && order.UserID != userID {
			return domain.ErrForbidden
		}
		return loadDetails(ctx, st, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders returns the user's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	var orders []domain.Order
	err := s.store.WithinTx(ctx, func(st repository.Stores) error {
		var err error
		orders, err = st.Orders().ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus moves the order along its state machine and appends the
// history row. Cancelling puts the ordered quantities back on the shelf.
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, to domain.OrderStatus, actor, notes string) (*domain.Order, error) {
	if !to.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", to))
	}

	var order *domain.Order
	err := s.store.WithinTx(ctx, func(st repository.Stores) error {
		var err error
		order, err = st.Orders().Get(ctx, id)
		if err != nil {
			return err
		}
		from := order.Status
		if !from.CanTransitionTo(to) {
			return &domain.InvalidTransitionError{Entity: "order", From: string(from), To: string(to)}
		}

		ok, err := st.Orders().UpdateStatus(ctx, id, from, to)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("order %d changed concurrently: %w", id, domain.ErrConflict)
		}
		order.Status = to

		if err := st.Orders().AppendHistory(ctx, &domain.OrderStatusHistory{
			OrderID: id,
			Status:  to,
			Notes:   notes,
			Actor:   actor,
		}); err != nil {
			return err
		}

		if to == domain.OrderStatusCancelled {
			if err := s.restock(ctx, st, order, actor); err != nil {
				return err
			}
		}
		return loadDetails(ctx, st, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order status updated",
		zap.Int64("order_id", id),
		zap.String("order_number", order.OrderNumber),
		zap.String("status", string(to)),
		zap.String("actor", actor))
	return order, nil
}

// restock returns the stock of a cancelled order. Lines whose sale was never
// committed still hold an active reservation; those are released instead, so
// the units go back exactly once.
func (s *OrderService) restock(ctx context.Context, st repository.Stores, order *domain.Order, actor string) error {
	pending, err := st.Reservations().ListActiveByReference(ctx, order.OrderNumber)
	if err != nil {
		return err
	}
	held := make(map[domain.LineTarget][]domain.Reservation, len(pending))
	for _, res := range pending {
		held[res.LineTarget] = append(held[res.LineTarget], res)
	}

	items, err := st.Orders().Items(ctx, order.ID)
	if err != nil {
		return err
	}
	for _, it := range items {
		qty := it.Quantity
		for _, res := range held[it.LineTarget] {
			if err := s.inventory.release(ctx, st, res.Token, domain.ReservationReleased, actor, "order cancelled"); err != nil {
				return err
			}
			qty -= res.Quantity
		}
		delete(held, it.LineTarget)
		if qty <= 0 {
			continue
		}
		if err := ensureRecord(ctx, st, it.LineTarget); err != nil {
			return err
		}
		if _, err := s.inventory.apply(ctx, st, it.LineTarget, qty, domain.ChangeReturn,
			"order cancelled", order.OrderNumber, actor); err != nil {
			return err
		}
	}
	if len(pending) > 0 {
		s.logger.Warn("Released uncommitted reservations of cancelled order",
			zap.String("order_number", order.OrderNumber),
			zap.Int("reservations", len(pending)))
	}
	return nil
}

func loadDetails(ctx context.Context, st repository.Stores, order *domain.Order) error {
	var err error
	if order.Items, err = st.Orders().Items(ctx, order.ID); err != nil {
		return err
	}
	order.StatusHistory, err = st.Orders().History(ctx, order.ID)
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
