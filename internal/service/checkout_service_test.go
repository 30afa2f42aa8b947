package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
)

func orderCount(t *testing.T, env *testEnv, userID string) int {
	t.Helper()
	orders, err := env.orders.ListOrders(context.Background(), userID)
	require.NoError(t, err)
	return len(orders)
}

func TestCheckoutHappyPath(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	target := env.seedVariant(t, "199.99", 5)

	_, err := env.carts.AddOrUpdateItem(ctx, "u1", target, 3)
	require.NoError(t, err)

	_, err = env.carts.SetItem(ctx, "u1", target, 10)
	var exceeded *domain.StockExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 5, exceeded.Available)

	order, err := env.checkout.Checkout(ctx, "u1", domain.CheckoutRequest{}, "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("599.97")), order.TotalAmount.String())
	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.True(t, order.Items[0].UnitPrice.Equal(decimal.RequireFromString("199.99")))
	require.Len(t, order.StatusHistory, 1)

	rec := env.record(t, target)
	assert.Equal(t, 2, rec.AvailableStock)
	assert.Equal(t, 0, rec.ReservedStock)
	env.requireLedgerReplays(t, target)

	items, err := env.carts.ListItems(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, items)

	require.Len(t, env.publisher.orders, 1)
	assert.Equal(t, order.OrderNumber, env.publisher.orders[0].OrderNumber)
	assert.Equal(t, "req-1", env.publisher.orders[0].RequestID)
	assert.Contains(t, env.publisher.orders[0].Summary, "599.97")
	assert.Equal(t, []string{order.OrderNumber}, env.archive.orders)

	stored, err := env.orders.GetOrder(ctx, "u1", false, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(order.TotalAmount))
	require.Len(t, stored.Items, 1)
}

func TestCheckoutPriceSnapshotSurvivesPriceChange(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	target := env.seedVariant(t, "10", 5)

	_, err := env.carts.AddOrUpdateItem(ctx, "u1", target, 1)
	require.NoError(t, err)
	order, err := env.checkout.Checkout(ctx, "u1", domain.CheckoutRequest{}, "")
	require.NoError(t, err)

	_, err = env.sql.DB().Exec(`UPDATE product_variants SET price = 99 WHERE id = ?`, target.ID)
	require.NoError(t, err)

	stored, err := env.orders.GetOrder(ctx, "u1", false, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Items[0].UnitPrice.Equal(decimal.NewFromInt(10)))
}

func TestCheckoutChargesShippingAndTax(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withCharges("40", "500", "0.18"))
	target := env.seedVariant(t, "100", 10)

	_, err := env.carts.AddOrUpdateItem(ctx, "u1", target, 2)
	require.NoError(t, err)
	order, err := env.checkout.Checkout(ctx, "u1", domain.CheckoutRequest{}, "")
	require.NoError(t, err)

	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(200)))
	assert.True(t, order.ShippingCost.Equal(decimal.NewFromInt(40)))
	assert.True(t, order.TaxAmount.Equal(decimal.NewFromInt(36)))
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(276)))

	_, err = env.carts.AddOrUpdateItem(ctx, "u2", target, 5)
	require.NoError(t, err)
	order, err = env.checkout.Checkout(ctx, "u2", domain.CheckoutRequest{}, "")
	require.NoError(t, err)
	assert.True(t, order.ShippingCost.IsZero(), "free over the threshold")
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(590)))
}

func TestCheckoutWithCoupon(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.seedVariant(t, "100", 5)
	b := env.seedVariant(t, "50", 5)
	env.seedCoupon(t, &domain.Coupon{
		Code:          "SAVE10",
		DiscountType:  domain.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		MaxUses:       sql.NullInt64{Int64: 1, Valid: true},
		IsActive:      true,
	})

	for _, user := range []string{"u1", "u2"} {
		_, err := env.carts.AddOrUpdateItem(ctx, user, a, 1)
		require.NoError(t, err)
		_, err = env.carts.AddOrUpdateItem(ctx, user, b, 1)
		require.NoError(t, err)
	}

	order, err := env.checkout.Checkout(ctx, "u1", domain.CheckoutRequest{CouponCode: "SAVE10"}, "")
	require.NoError(t, err)
	assert.True(t, order.DiscountAmount.Equal(decimal.NewFromInt(15)))
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(135)))
	assert.True(t, order.CouponID.Valid)

	sum := decimal.Zero
	for _, it := range order.Items {
		sum = sum.Add(it.DiscountApplied)
	}
	assert.True(t, sum.Equal(order.DiscountAmount))

	_, err = env.checkout.Checkout(ctx, "u2", domain.CheckoutRequest{CouponCode: "SAVE10"}, "")
	var couponErr *domain.InvalidCouponError
	require.ErrorAs(t, err, &couponErr)

	assert.Equal(t, 4, env.record(t, a).AvailableStock, "u2's reservation was released")
	assert.Equal(t, 0, env.record(t, a).ReservedStock)
	items, err := env.carts.ListItems(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestCheckoutUnknownCoupon(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	target := env.seedVariant(t, "100", 5)
	_, err := env.carts.AddOrUpdateItem(ctx, "u1", target, 1)
	require.NoError(t, err)

	_, err = env.checkout.Checkout(ctx, "u1", domain.CheckoutRequest{CouponCode: "NOPE"}, "")
	var couponErr *domain.InvalidCouponError
	require.ErrorAs(t, err, &couponErr)
	assert.Equal(t, 5, env.record(t, target).AvailableStock)
	assert.Equal(t, 0, orderCount(t, env, "u1"))
}

func TestCheckoutReleasesEverythingOnShortage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	plenty := env.seedVariant(t, "10", 10)
	scarce := env.seedVariant(t, "20", 3)

	_, err := env.carts.AddOrUpdateItem(ctx, "u1", plenty, 4)
	require.NoError(t, err)
	_, err = env.carts.AddOrUpdateItem(ctx, "u1", scarce, 3)
	require.NoError(t, err)

	_, err = env.inventory.Adjust(ctx, scarce, domain.AdjustRequest{ChangeType: domain.ChangeDamage, Quantity: 2}, "staff")
	require.NoError(t, err)

	_, err = env.checkout.Checkout(ctx, "u1", domain.CheckoutRequest{}, "")
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, scarce, stockErr.Target)
	assert.Equal(t, 1, stockErr.Available)

	assert.Equal(t, 10, env.record(t, plenty).AvailableStock)
	assert.Equal(t, 0, env.record(t, plenty).ReservedStock)
	assert.Equal(t, 0, orderCount(t, env, "u1"))
	env.requireLedgerReplays(t, plenty)

	items, err := env.carts.ListItems(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestCheckoutRejectsInactiveLine(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	target := env.seedVariant(t, "10", 10)
	_, err := env.carts.AddOrUpdateItem(ctx, "u1", target, 1)
	require.NoError(t, err)

	_, err = env.sql.DB().Exec(`UPDATE product_variants SET is_active = ? WHERE id = ?`, false, target.ID)
	require.NoError(t, err)

	_, err = env.checkout.Checkout(ctx, "u1", domain.CheckoutRequest{}, "")
	var unavailable *domain.ProductUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 10, env.record(t, target).AvailableStock)
}

func TestCheckoutSurvivesNotificationFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.publisher.failOrders = true
	target := env.seedVariant(t, "10", 10)
	_, err := env.carts.AddOrUpdateItem(ctx, "u1", target, 1)
	require.NoError(t, err)

	order, err := env.checkout.Checkout(ctx, "u1", domain.CheckoutRequest{}, "")
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.Equal(t, 1, orderCount(t, env, "u1"))
}

func TestCheckoutCommitFailureRequiresReconciliation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	target := env.seedVariant(t, "10", 10)
	_, err := env.carts.AddOrUpdateItem(ctx, "u1", target, 2)
	require.NoError(t, err)

	env.store.setFailCommit(true)
	_, err = env.checkout.Checkout(ctx, "u1", domain.CheckoutRequest{}, "")
	env.store.setFailCommit(false)

	var recErr *domain.ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.Len(t, recErr.Pending, 1)

	assert.Equal(t, 1, orderCount(t, env, "u1"), "the order is kept")
	rec := env.record(t, target)
	assert.Equal(t, 8, rec.AvailableStock)
	assert.Equal(t, 2, rec.ReservedStock)

	require.Len(t, env.publisher.reconciliation, 1)
	assert.Equal(t, recErr.OrderNumber, env.publisher.reconciliation[0].OrderNumber)
	assert.Empty(t, env.publisher.orders)
}

func TestConcurrentCheckoutsForTheLastUnits(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	target := env.seedVariant(t, "25", 5)

	for _, user := range []string{"alice", "bob"} {
		_, err := env.carts.AddOrUpdateItem(ctx, user, target, 3)
		require.NoError(t, err)
	}

	errs := make([]error, 2)
	var g errgroup.Group
	for i, user := range []string{"alice", "bob"} {
		i, user := i, user
		g.Go(func() error {
			_, errs[i] = env.checkout.Checkout(ctx, user, domain.CheckoutRequest{}, "")
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok, short int
	for _, err := range errs {
		var stockErr *domain.InsufficientStockError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &stockErr):
			short++
			assert.Equal(t, 2, stockErr.Available)
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)

	rec := env.record(t, target)
	assert.Equal(t, 2, rec.AvailableStock)
	assert.Equal(t, 0, rec.ReservedStock)

	loser := "alice"
	if errs[1] != nil {
		loser = "bob"
	}
	items, err := env.carts.ListItems(ctx, loser)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	const (
		buyers = 12
		stock  = 5
	)
	ctx := context.Background()
	env := newTestEnv(t)
	target := env.seedVariant(t, "10", stock)

	for i := 0; i < buyers; i++ {
		_, err := env.carts.AddOrUpdateItem(ctx, fmt.Sprintf("user-%d", i), target, 1)
		require.NoError(t, err)
	}

	errs := make([]error, buyers)
	var g errgroup.Group
	for i := 0; i < buyers; i++ {
		i := i
		g.Go(func() error {
			_, errs[i] = env.checkout.Checkout(ctx, fmt.Sprintf("user-%d", i), domain.CheckoutRequest{}, "")
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok, short int
	for _, err := range errs {
		var stockErr *domain.InsufficientStockError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &stockErr):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, stock, ok)
	assert.Equal(t, buyers-stock, short)

	rec := env.record(t, target)
	assert.Equal(t, 0, rec.AvailableStock)
	assert.Equal(t, 0, rec.ReservedStock)
	env.requireLedgerReplays(t, target)
}

func TestCheckoutReservesInTargetOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	first := env.seedVariant(t, "10", 5)
	second := env.seedVariant(t, "10", 5)
	base := env.seedProduct(t, "10", true)
	_, err := env.inventory.Restock(ctx, base, 5, "seed")
	require.NoError(t, err)

	for _, target := range []domain.LineTarget{second, base, first} {
		_, err := env.carts.AddOrUpdateItem(ctx, "u1", target, 1)
		require.NoError(t, err)
	}
	order, err := env.checkout.Checkout(ctx, "u1", domain.CheckoutRequest{}, "")
	require.NoError(t, err)

	res := []domain.Reservation{}
	require.NoError(t, env.sql.DB().SelectContext(ctx, &res, `
		SELECT token, target_kind, target_id, quantity, status, reference, created_at, expires_at
		FROM reservations WHERE reference = ? ORDER BY rowid`, order.OrderNumber))
	require.Len(t, res, 3)
	assert.Equal(t, base, res[0].LineTarget)
	assert.Equal(t, first, res[1].LineTarget)
	assert.Equal(t, second, res[2].LineTarget)
}

func TestAllocateDiscount(t *testing.T) {
	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }

	shares := allocateDiscount([]decimal.Decimal{d("10"), d("10"), d("10")}, d("10"))
	sum := decimal.Zero
	for _, s := range shares {
		sum = sum.Add(s)
	}
	assert.True(t, sum.Equal(d("10")))
	assert.True(t, shares[0].Equal(d("3.33")))
	assert.True(t, shares[2].Equal(d("3.34")))

	for _, s := range allocateDiscount([]decimal.Decimal{d("5")}, decimal.Zero) {
		assert.True(t, s.IsZero())
	}
}

func TestFlatCharges(t *testing.T) {
	ctx := context.Background()
	ship := FlatShipping{Fee: decimal.NewFromInt(40), FreeThreshold: decimal.NewFromInt(500)}

	fee, err := ship.Shipping(ctx, "u1", decimal.NewFromInt(499))
	require.NoError(t, err)
	assert.True(t, fee.Equal(decimal.NewFromInt(40)))
	fee, err = ship.Shipping(ctx, "u1", decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.True(t, fee.IsZero())

	tax, err := FlatTax{Rate: decimal.RequireFromString("0.18")}.Tax(ctx, decimal.RequireFromString("99.99"))
	require.NoError(t, err)
	assert.True(t, tax.Equal(decimal.RequireFromString("18")), tax.String())
	tax, err = FlatTax{Rate: decimal.RequireFromString("0.18")}.Tax(ctx, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, tax.IsZero())
}

func TestDoubleSubmittedCheckoutPlacesOneOrder(t *testing.T) {
	ctx := context.Background()
	var loaded sync.WaitGroup
	loaded.Add(2)
	// Both checkouts have read the cart before either writes its order.
	env := newTestEnv(t, withQuoteHook(func(call int) {
		if call <= 2 {
			loaded.Done()
			loaded.Wait()
		}
	}))
	target := env.seedVariant(t, "10", 10)
	_, err := env.carts.AddOrUpdateItem(ctx, "u1", target, 1)
	require.NoError(t, err)

	errs := make([]error, 2)
	var g errgroup.Group
	for i := range errs {
		i := i
		g.Go(func() error {
			_, errs[i] = env.checkout.Checkout(ctx, "u1", domain.CheckoutRequest{}, "")
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, orderCount(t, env, "u1"))

	rec := env.record(t, target)
	assert.Equal(t, 9, rec.AvailableStock)
	assert.Equal(t, 0, rec.ReservedStock)
	env.requireLedgerReplays(t, target)
}

func TestCheckoutFailsWhenCartChangesMidway(t *testing.T) {
	ctx := context.Background()
	var (
		env    *testEnv
		target domain.LineTarget
	)
	env = newTestEnv(t, withQuoteHook(func(call int) {
		if call == 1 {
			_, err := env.carts.SetItem(ctx, "u1", target, 3)
			require.NoError(t, err)
		}
	}))
	target = env.seedVariant(t, "10", 10)
	_, err := env.carts.AddOrUpdateItem(ctx, "u1", target, 1)
	require.NoError(t, err)

	_, err = env.checkout.Checkout(ctx, "u1", domain.CheckoutRequest{}, "")
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 0, orderCount(t, env, "u1"))

	items, err := env.carts.ListItems(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity, "the newer quantity is kept")

	rec := env.record(t, target)
	assert.Equal(t, 10, rec.AvailableStock)
	assert.Equal(t, 0, rec.ReservedStock)
	env.requireLedgerReplays(t, target)
}
