package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/events"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/repository"
)

type recordingPublisher struct {
	mu             sync.Mutex
	orders         []events.OrderCreatedEvent
	lowStock       []events.LowStockEvent
	reconciliation []events.ReconciliationEvent
	failOrders     bool
}

func (p *recordingPublisher) PublishOrderCreated(_ context.Context, e events.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOrders {
		return errors.New("broker down")
	}
	p.orders = append(p.orders, e)
	return nil
}

func (p *recordingPublisher) PublishLowStock(_ context.Context, e events.LowStockEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lowStock = append(p.lowStock, e)
	return nil
}

func (p *recordingPublisher) PublishReconciliation(_ context.Context, e events.ReconciliationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reconciliation = append(p.reconciliation, e)
	return nil
}

type recordingArchive struct {
	mu     sync.Mutex
	orders []string
}

func (a *recordingArchive) Put(_ context.Context, o *domain.Order) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.orders = append(a.orders, o.OrderNumber)
	return nil
}

// faultyStore fails every CommitReserved while failCommit is set.
type faultyStore struct {
	repository.Transactor
	mu         sync.Mutex
	failCommit bool
}

func (f *faultyStore) setFailCommit(v bool) {
	f.mu.Lock()
	f.failCommit = v
	f.mu.Unlock()
}

func (f *faultyStore) WithinTx(ctx context.Context, fn func(repository.Stores) error) error {
	f.mu.Lock()
	fail := f.failCommit
	f.mu.Unlock()
	return f.Transactor.WithinTx(ctx, func(st repository.Stores) error {
		if fail {
			return fn(faultyStores{Stores: st})
		}
		return fn(st)
	})
}

type faultyStores struct {
	repository.Stores
}

func (s faultyStores) Inventory() repository.InventoryStore {
	return faultyInventory{InventoryStore: s.Stores.Inventory()}
}

type faultyInventory struct {
	repository.InventoryStore
}

func (faultyInventory) CommitReserved(context.Context, domain.LineTarget, int) (bool, error) {
	return false, errors.New("disk I/O error")
}

type testEnv struct {
	sql       *repository.SQLStore
	store     *faultyStore
	publisher *recordingPublisher
	archive   *recordingArchive
	inventory *InventoryService
	carts     *CartService
	checkout  *CheckoutService
	orders    *OrderService
	payments  *PaymentService
	wishlist  *WishlistService
	coupons   *CouponService
}

type envOption func(*Pricing)

// hookedPricer runs before ahead of every quote, passing the 1-based call number.
type hookedPricer struct {
	Pricer
	mu     sync.Mutex
	calls  int
	before func(call int)
}

func (p *hookedPricer) Quote(ctx context.Context, t domain.LineTarget) (*domain.Quote, error) {
	p.mu.Lock()
	p.calls++
	n := p.calls
	p.mu.Unlock()
	p.before(n)
	return p.Pricer.Quote(ctx, t)
}

func withQuoteHook(before func(call int)) envOption {
	return func(p *Pricing) {
		p.Pricer = &hookedPricer{Pricer: p.Pricer, before: before}
	}
}

func withCharges(shippingFee, freeOver, taxRate string) envOption {
	return func(p *Pricing) {
		p.Shipping = FlatShipping{Fee: decimal.RequireFromString(shippingFee), FreeThreshold: decimal.RequireFromString(freeOver)}
		p.Tax = FlatTax{Rate: decimal.RequireFromString(taxRate)}
	}
}

func newTestEnv(t testing.TB, opts ...envOption) *testEnv {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "checkout.db") + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := repository.OpenDSN(repository.DriverSQLite, dsn, 1)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.Migrate(context.Background(), db))

	logger := zap.NewNop()
	sqlStore := repository.NewSQLStore(db)
	store := &faultyStore{Transactor: sqlStore}
	env := &testEnv{
		sql:       sqlStore,
		store:     store,
		publisher: &recordingPublisher{},
		archive:   &recordingArchive{},
	}

	env.coupons = NewCouponService(store)
	pricing := Pricing{
		Pricer:   NewCatalogPricer(store),
		Coupons:  env.coupons,
		Shipping: FlatShipping{},
		Tax:      FlatTax{},
		Currency: "INR",
	}
	for _, opt := range opts {
		opt(&pricing)
	}

	env.inventory = NewInventoryService(store, env.publisher, 15*time.Minute, logger)
	env.carts = NewCartService(store, logger)
	env.checkout = NewCheckoutService(store, env.inventory, pricing, env.publisher, env.archive, logger)
	env.orders = NewOrderService(store, env.inventory, logger)
	env.payments = NewPaymentService(store, logger)
	env.wishlist = NewWishlistService(store)
	return env
}

// seedVariant creates an active product with one variant priced at price
// and stocked with stock units.
func (e *testEnv) seedVariant(t testing.TB, price string, stock int) domain.LineTarget {
	t.Helper()
	ctx := context.Background()
	var target domain.LineTarget
	err := e.sql.WithinTx(ctx, func(st repository.Stores) error {
		p := &domain.Product{Name: "Shirt", BasePrice: decimal.RequireFromString(price), IsActive: true}
		if err := st.Catalog().CreateProduct(ctx, p); err != nil {
			return err
		}
		v := &domain.ProductVariant{
			ProductID: p.ID,
			Color:     "blue",
			Size:      "M",
			Price:     decimal.RequireFromString(price),
			SKU:       fmt.Sprintf("SKU-%d", p.ID),
			IsActive:  true,
		}
		if err := st.Catalog().CreateVariant(ctx, v); err != nil {
			return err
		}
		target = domain.Variant(v.ID)
		return nil
	})
	require.NoError(t, err)
	if stock > 0 {
		_, err := e.inventory.Restock(ctx, target, stock, "seed")
		require.NoError(t, err)
	}
	return target
}

func (e *testEnv) seedProduct(t testing.TB, price string, active bool) domain.LineTarget {
	t.Helper()
	ctx := context.Background()
	p := &domain.Product{Name: "Mug", BasePrice: decimal.RequireFromString(price), IsActive: active}
	err := e.sql.WithinTx(ctx, func(st repository.Stores) error {
		return st.Catalog().CreateProduct(ctx, p)
	})
	require.NoError(t, err)
	return domain.BaseProduct(p.ID)
}

func (e *testEnv) seedCoupon(t testing.TB, c *domain.Coupon) {
	t.Helper()
	ctx := context.Background()
	if c.StartDate.IsZero() {
		c.StartDate = time.Now().Add(-time.Hour)
	}
	if c.ExpiryDate.IsZero() {
		c.ExpiryDate = time.Now().Add(time.Hour)
	}
	err := e.sql.WithinTx(ctx, func(st repository.Stores) error {
		return st.Coupons().Create(ctx, c)
	})
	require.NoError(t, err)
}

func (e *testEnv) record(t testing.TB, target domain.LineTarget) *domain.InventoryRecord {
	t.Helper()
	rec, err := e.inventory.Get(context.Background(), target)
	require.NoError(t, err)
	return rec
}

func (e *testEnv) reservation(t testing.TB, token string) *domain.Reservation {
	t.Helper()
	ctx := context.Background()
	var res *domain.Reservation
	err := e.sql.WithinTx(ctx, func(st repository.Stores) error {
		var err error
		res, err = st.Reservations().Get(ctx, token)
		return err
	})
	require.NoError(t, err)
	return res
}

// requireLedgerReplays checks that the log of target reproduces its
// current totals.
func (e *testEnv) requireLedgerReplays(t testing.TB, target domain.LineTarget) {
	t.Helper()
	rec := e.record(t, target)
	logs, err := e.inventory.ListLogs(context.Background(), target)
	require.NoError(t, err)

	total, reserved := 0, 0
	for _, entry := range logs {
		require.Equal(t, entry.PreviousQuantity+entry.QuantityChange, entry.NewQuantity, "entry %d", entry.ID)
		require.Equal(t, total, entry.PreviousQuantity, "entry %d starts where the previous ended", entry.ID)
		total += entry.QuantityChange
		reserved += entry.ReservedChange
	}
	require.Equal(t, rec.TotalStock(), total)
	require.Equal(t, rec.ReservedStock, reserved)
}
