package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/events"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/repository"
)

// CheckoutService converts a cart into an order. Stock for every line is
// reserved first, in ascending target order; any failure before the order
// is written releases what was reserved.
type CheckoutService struct {
	store     repository.Transactor
	inventory *InventoryService
	pricing   Pricing
	publisher EventPublisher
	archive   repository.OrderArchive
	logger    *zap.Logger
	now       func() time.Time
}

func NewCheckoutService(
	store repository.Transactor,
	inventory *InventoryService,
	pricing Pricing,
	publisher EventPublisher,
	archive repository.OrderArchive,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		store:     store,
		inventory: inventory,
		pricing:   pricing,
		publisher: publisher,
		archive:   archive,
		logger:    logger,
		now:       time.Now,
	}
}

type checkoutLine struct {
	item  domain.CartItem
	quote *domain.Quote
	token string
}

func (s *CheckoutService) Checkout(ctx context.Context, userID string, req domain.CheckoutRequest, requestID string) (*domain.Order, error) {
	cartID, lines, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	for i := range lines {
		q, err := sellable(ctx, s.pricing.Pricer.Quote, lines[i].item.LineTarget)
		if err != nil {
			return nil, err
		}
		lines[i].quote = q
	}

	orderNumber := newOrderNumber(s.now())
	logger := s.logger.With(
		zap.String("user_id", userID),
		zap.String("order_number", orderNumber),
		zap.String("request_id", requestID))

	if err := s.reserveAll(ctx, lines, orderNumber, userID); err != nil {
		logger.Info("Checkout rejected", zap.Error(err))
		return nil, err
	}

	order, coupon, err := s.price(ctx, userID, orderNumber, req, lines)
	if err != nil {
		s.releaseAll(ctx, lines, userID, "checkout aborted", logger)
		return nil, err
	}

	// The order, its items and the emptied cart become visible together.
	err = s.store.WithinTx(ctx, func(st repository.Stores) error {
		if coupon != nil {
			ok, err := st.Coupons().Claim(ctx, coupon.ID)
			if err != nil {
				return err
			}
			if !ok {
				return &domain.InvalidCouponError{Code: coupon.Code, Reason: "coupon usage limit reached"}
			}
		}
		if err := st.Orders().Create(ctx, order); err != nil {
			return err
		}
		if err := st.Orders().AddItems(ctx, order.ID, order.Items); err != nil {
			return err
		}
		h := domain.OrderStatusHistory{OrderID: order.ID, Status: order.Status, Notes: "Order placed", Actor: userID}
		if err := st.Orders().AppendHistory(ctx, &h); err != nil {
			return err
		}
		order.StatusHistory = []domain.OrderStatusHistory{h}

		// Lines removed or resized since the cart was loaded mean another
		// checkout or cart edit got there first.
		items := make([]domain.CartItem, 0, len(lines))
		for _, l := range lines {
			items = append(items, l.item)
		}
		deleted, err := st.Carts().DeleteCheckedOut(ctx, cartID, items)
		if err != nil {
			return err
		}
		if deleted != len(items) {
			return fmt.Errorf("cart %d changed during checkout: %w", cartID, domain.ErrConflict)
		}
		return st.Carts().Touch(ctx, cartID)
	})
	if err != nil {
		s.releaseAll(ctx, lines, userID, "order not created", logger)
		logger.Warn("Failed to create order", zap.Error(err))
		return nil, err
	}

	// From here on the order exists and is never rolled back.
	commitCtx := context.WithoutCancel(ctx)
	err = s.store.WithinTx(commitCtx, func(st repository.Stores) error {
		for _, l := range lines {
			if err := s.inventory.commitSale(commitCtx, st, l.token, userID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.reconcile(commitCtx, order, lines, err, logger)
	}

	s.notify(commitCtx, order, requestID, logger)

	logger.Info("Order created successfully",
		zap.Int64("order_id", order.ID),
		zap.Int("items", len(order.Items)),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)))
	return order, nil
}

func (s *CheckoutService) loadCart(ctx context.Context, userID string) (int64, []checkoutLine, error) {
	var (
		cartID int64
		items  []domain.CartItem
	)
	err := s.store.WithinTx(ctx, func(st repository.Stores) error {
		cart, err := st.Carts().Find(ctx, userID)
		if err != nil {
			return err
		}
		cartID = cart.ID
		items, err = st.Carts().ListItems(ctx, cart.ID)
		return err
	})
	if err != nil && !isNotFound(err) {
		return 0, nil, err
	}
	if len(items) == 0 {
		return 0, nil, domain.ErrEmptyCart
	}

	lines := make([]checkoutLine, len(items))
	for i, it := range items {
		lines[i] = checkoutLine{item: it}
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].item.LineTarget.Less(lines[j].item.LineTarget)
	})
	return cartID, lines, nil
}

func (s *CheckoutService) reserveAll(ctx context.Context, lines []checkoutLine, orderNumber, userID string) error {
	for i := range lines {
		res, err := s.inventory.Reserve(ctx, lines[i].item.LineTarget, lines[i].item.Quantity, orderNumber, userID)
		if err != nil {
			s.releaseAll(ctx, lines[:i], userID, "checkout aborted", s.logger)
			return err
		}
		lines[i].token = res.Token
	}
	return nil
}

// releaseAll undoes reservations in reverse order. It keeps going after a
// client disconnect; whatever it cannot release the janitor expires.
func (s *CheckoutService) releaseAll(ctx context.Context, lines []checkoutLine, actor, reason string, logger *zap.Logger) {
	ctx = context.WithoutCancel(ctx)
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i].token == "" {
			continue
		}
		if err := s.inventory.Release(ctx, lines[i].token, actor, reason); err != nil {
			logger.Error("Failed to release reservation",
				zap.String("token", lines[i].token),
				zap.String("target", lines[i].item.LineTarget.String()),
				zap.Error(err))
		}
	}
}

func (s *CheckoutService) price(ctx context.Context, userID, orderNumber string, req domain.CheckoutRequest, lines []checkoutLine) (*domain.Order, *domain.Coupon, error) {
	order := &domain.Order{
		UserID:            userID,
		OrderNumber:       orderNumber,
		ShippingAddressID: nullInt(req.ShippingAddressID),
		BillingAddressID:  nullInt(req.BillingAddressID),
		Status:            domain.OrderStatusPending,
		Items:             make([]domain.OrderItem, 0, len(lines)),
	}

	lineTotals := make([]decimal.Decimal, len(lines))
	subtotal := decimal.Zero
	for i, l := range lines {
		lineTotals[i] = l.quote.UnitPrice.Mul(decimal.NewFromInt(int64(l.item.Quantity))).Round(2)
		subtotal = subtotal.Add(lineTotals[i])
	}
	order.Subtotal = subtotal

	var coupon *domain.Coupon
	order.DiscountAmount = decimal.Zero
	if code := strings.TrimSpace(req.CouponCode); code != "" {
		c, discount, err := s.pricing.Coupons.Validate(ctx, code, subtotal)
		if err != nil {
			return nil, nil, err
		}
		coupon = c
		order.CouponID = sql.NullInt64{Int64: c.ID, Valid: true}
		order.DiscountAmount = discount
	}

	shares := allocateDiscount(lineTotals, order.DiscountAmount)
	for i, l := range lines {
		order.Items = append(order.Items, domain.OrderItem{
			LineTarget:      l.item.LineTarget,
			Quantity:        l.item.Quantity,
			UnitPrice:       l.quote.UnitPrice,
			TotalPrice:      lineTotals[i],
			DiscountApplied: shares[i],
		})
	}

	taxable := subtotal.Sub(order.DiscountAmount)
	shipping, err := s.pricing.Shipping.Shipping(ctx, userID, taxable)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compute shipping: %w", err)
	}
	tax, err := s.pricing.Tax.Tax(ctx, taxable)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compute tax: %w", err)
	}
	order.ShippingCost = shipping
	order.TaxAmount = tax
	order.ComputeTotal()
	return order, coupon, nil
}

// reconcile reports an order whose sales could not be committed. The
// transaction that failed rolled back every commit, so all tokens are
// still pending.
func (s *CheckoutService) reconcile(ctx context.Context, order *domain.Order, lines []checkoutLine, cause error, logger *zap.Logger) error {
	pending := make([]string, 0, len(lines))
	for _, l := range lines {
		pending = append(pending, l.token)
	}
	recErr := &domain.ReconciliationError{OrderNumber: order.OrderNumber, Pending: pending, Err: cause}

	logger.Error("Order requires reconciliation",
		zap.Int64("order_id", order.ID),
		zap.Strings("pending_tokens", pending),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
		zap.Error(cause))

	event := events.ReconciliationEvent{
		EventID:       uuid.NewString(),
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		PendingTokens: pending,
		Reason:        cause.Error(),
		Timestamp:     s.now().UTC(),
	}
	if err := s.publisher.PublishReconciliation(ctx, event); err != nil {
		logger.Error("Failed to publish reconciliation event", zap.Error(err))
	}
	return recErr
}

func (s *CheckoutService) notify(ctx context.Context, order *domain.Order, requestID string, logger *zap.Logger) {
	items := make([]events.OrderItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, events.OrderItem{
			Target:     it.LineTarget.String(),
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.TotalPrice,
		})
	}
	event := events.OrderCreatedEvent{
		EventID:     uuid.NewString(),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Currency:    s.pricing.Currency,
		Summary:     events.OrderSummary(order.OrderNumber, len(order.Items), order.TotalAmount, s.pricing.Currency),
		Items:       items,
		Status:      string(order.Status),
		Timestamp:   s.now().UTC(),
		RequestID:   requestID,
	}

	// Best effort: the order is already durable.
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		logger.Error("Failed to publish event", zap.Error(err))
	}
	if err := s.archive.Put(ctx, order); err != nil {
		logger.Error("Failed to archive order", zap.Error(err))
	}
}

func newOrderNumber(now time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), id[:12])
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
