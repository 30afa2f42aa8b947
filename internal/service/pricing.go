package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/events"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/repository"
)

// Pricer supplies the current unit price and sellability of a line target.
// Unknown targets fail with domain.ErrNotFound.
type Pricer interface {
	Quote(ctx context.Context, t domain.LineTarget) (*domain.Quote, error)
}

type ShippingCalculator interface {
	Shipping(ctx context.Context, userID string, subtotal decimal.Decimal) (decimal.Decimal, error)
}

type TaxCalculator interface {
	Tax(ctx context.Context, taxable decimal.Decimal) (decimal.Decimal, error)
}

// EventPublisher is the fire-and-forget notification channel.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event events.OrderCreatedEvent) error
	PublishLowStock(ctx context.Context, event events.LowStockEvent) error
	PublishReconciliation(ctx context.Context, event events.ReconciliationEvent) error
}

// CatalogPricer quotes from the product and variant tables.
type CatalogPricer struct {
	store repository.Transactor
}

func NewCatalogPricer(store repository.Transactor) *CatalogPricer {
	return &CatalogPricer{store: store}
}

func (p *CatalogPricer) Quote(ctx context.Context, t domain.LineTarget) (*domain.Quote, error) {
	var q *domain.Quote
	err := p.store.WithinTx(ctx, func(st repository.Stores) error {
		var err error
		q, err = quote(ctx, st.Catalog(), t)
		return err
	})
	return q, err
}

// sellable quotes t and fails with ProductUnavailableError when t is
// missing from the catalog or inactive.
func sellable(ctx context.Context, pricer func(context.Context, domain.LineTarget) (*domain.Quote, error), t domain.LineTarget) (*domain.Quote, error) {
	q, err := pricer(ctx, t)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.ProductUnavailableError{Target: t}
	}
	if err != nil {
		return nil, err
	}
	if !q.Active {
		return nil, &domain.ProductUnavailableError{Target: t}
	}
	return q, nil
}

// quote resolves t against the catalog. A variant is sellable only while
// both it and its product are active.
func quote(ctx context.Context, catalog repository.CatalogStore, t domain.LineTarget) (*domain.Quote, error) {
	if t.IsVariant() {
		v, err := catalog.GetVariant(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		p, err := catalog.GetProduct(ctx, v.ProductID)
		if err != nil {
			return nil, err
		}
		return &domain.Quote{
			Target:    t,
			Name:      fmt.Sprintf("%s (%s/%s)", p.Name, v.Color, v.Size),
			UnitPrice: v.Price,
			Active:    v.IsActive && p.IsActive,
		}, nil
	}

	p, err := catalog.GetProduct(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	return &domain.Quote{Target: t, Name: p.Name, UnitPrice: p.BasePrice, Active: p.IsActive}, nil
}

type CouponService struct {
	store repository.Transactor
	now   func() time.Time
}

func NewCouponService(store repository.Transactor) *CouponService {
	return &CouponService{store: store, now: time.Now}
}

// Validate checks code against its validity window and usage limit and
// returns the coupon together with the discount it grants on subtotal.
// The usage slot itself is claimed later, inside the order transaction.
func (s *CouponService) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*domain.Coupon, decimal.Decimal, error) {
	var c *domain.Coupon
	err := s.store.WithinTx(ctx, func(st repository.Stores) error {
		var err error
		c, err = st.Coupons().GetByCode(ctx, code)
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, decimal.Zero, &domain.InvalidCouponError{Code: code, Reason: "unknown code"}
	}
	if err != nil {
		return nil, decimal.Zero, err
	}
	if reason := c.Check(s.now()); reason != "" {
		return nil, decimal.Zero, &domain.InvalidCouponError{Code: code, Reason: reason}
	}
	return c, c.Discount(subtotal), nil
}

// FlatShipping charges Fee unless the subtotal reaches FreeThreshold. A
// zero threshold disables free shipping.
type FlatShipping struct {
	Fee           decimal.Decimal
	FreeThreshold decimal.Decimal
}

func (f FlatShipping) Shipping(_ context.Context, _ string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if f.FreeThreshold.IsPositive() && subtotal.GreaterThanOrEqual(f.FreeThreshold) {
		return decimal.Zero, nil
	}
	return f.Fee, nil
}

type FlatTax struct {
	Rate decimal.Decimal
}

func (f FlatTax) Tax(_ context.Context, taxable decimal.Decimal) (decimal.Decimal, error) {
	if !taxable.IsPositive() {
		return decimal.Zero, nil
	}
	return taxable.Mul(f.Rate).Round(2), nil
}

// Pricing bundles the collaborators checkout prices an order with.
type Pricing struct {
	Pricer   Pricer
	Coupons  *CouponService
	Shipping ShippingCalculator
	Tax      TaxCalculator
	Currency string
}

// allocateDiscount spreads discount over lines in proportion to their
// totals. Rounding is absorbed by the last line so the parts sum exactly.
func allocateDiscount(lineTotals []decimal.Decimal, discount decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(lineTotals))
	if len(lineTotals) == 0 || !discount.IsPositive() {
		for i := range out {
			out[i] = decimal.Zero
		}
		return out
	}

	sum := decimal.Zero
	for _, lt := range lineTotals {
		sum = sum.Add(lt)
	}

	remaining := discount
	for i, lt := range lineTotals {
		if i == len(lineTotals)-1 {
			out[i] = remaining
			break
		}
		share := decimal.Zero
		if sum.IsPositive() {
			share = discount.Mul(lt).Div(sum).Round(2)
		}
		if share.GreaterThan(remaining) {
			share = remaining
		}
		out[i] = share
		remaining = remaining.Sub(share)
	}
	return out
}
