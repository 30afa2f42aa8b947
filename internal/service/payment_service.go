package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/repository"
)

type PaymentService struct {
	store  repository.Transactor
	logger *zap.Logger
	now    func() time.Time
}

func NewPaymentService(store repository.Transactor, logger *zap.Logger) *PaymentService {
	return &PaymentService{store: store, logger: logger, now: time.Now}
}

// RecordPayment creates the single pending payment of an order. The amount
// must equal the order total exactly.
func (s *PaymentService) RecordPayment(ctx context.Context, userID string, orderID int64, req domain.RecordPaymentRequest) (*domain.Payment, error) {
	if !req.Method.Valid() {
		return nil, domain.NewValidationError("method", fmt.Sprintf("unsupported payment method %q", req.Method))
	}

	var p *domain.Payment
	err := s.store.WithinTx(ctx, func(st repository.Stores) error {
		order, err := st.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return domain.ErrForbidden
		}
		if order.Status == domain.OrderStatusCancelled {
			return &domain.InvalidTransitionError{Entity: "order", From: string(order.Status), To: "paid"}
		}
		if !req.Amount.Equal(order.TotalAmount) {
			return fmt.Errorf("expected %s, got %s: %w",
				order.TotalAmount.StringFixed(2), req.Amount.StringFixed(2), domain.ErrAmountMismatch)
		}

		p = &domain.Payment{
			OrderID: orderID,
			Method:  req.Method,
			Amount:  order.TotalAmount,
			Status:  domain.PaymentStatusPending,
		}
		return st.Payments().Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment recorded",
		zap.Int64("order_id", orderID),
		zap.String("method", string(p.Method)),
		zap.String("amount", p.Amount.StringFixed(2)))
	return p, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, userID string, staff bool, orderID int64) (*domain.Payment, error) {
	var p *domain.Payment
	err := s.store.WithinTx(ctx, func(st repository.Stores) error {
		order, err := st.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if !staff && order.UserID != userID {
			return domain.ErrForbidden
		}
		p, err = st.Payments().GetByOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateStatus advances the payment of orderID. Completion stamps the
// payment date; a transaction id, once set, is kept.
func (s *PaymentService) UpdateStatus(ctx context.Context, orderID int64, req domain.UpdatePaymentStatusRequest) (*domain.Payment, error) {
	var p *domain.Payment
	err := s.store.WithinTx(ctx, func(st repository.Stores) error {
		var err error
		p, err = st.Payments().GetByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		from := p.Status
		if !from.CanTransitionTo(req.Status) {
			return &domain.InvalidTransitionError{Entity: "payment", From: string(from), To: string(req.Status)}
		}

		p.Status = req.Status
		if txID := strings.TrimSpace(req.TransactionID); txID != "" {
			if p.TransactionID.Valid && p.TransactionID.String != txID {
				return domain.NewValidationError("transaction_id", "already set")
			}
			p.TransactionID = sql.NullString{String: txID, Valid: true}
		}
		if req.PaymentGateway != "" {
			p.PaymentGateway = req.PaymentGateway
		}
		if req.Status == domain.PaymentStatusCompleted {
			p.PaymentDate = sql.NullTime{Time: s.now().UTC().Truncate(time.Microsecond), Valid: true}
		}

		ok, err := st.Payments().UpdateStatus(ctx, p, from)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("payment of order %d changed concurrently: %w", orderID, domain.ErrConflict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment status updated",
		zap.Int64("order_id", orderID),
		zap.String("status", string(p.Status)))
	return p, nil
}
