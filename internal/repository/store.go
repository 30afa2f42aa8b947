package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
)

type InventoryStore interface {
	Get(ctx context.Context, t domain.LineTarget) (*domain.InventoryRecord, error)
	Create(ctx context.Context, rec *domain.InventoryRecord) error
	// TryReserve moves qty from available to reserved if enough is available.
	TryReserve(ctx context.Context, t domain.LineTarget, qty int) (bool, error)
	// Unreserve moves qty from reserved back to available.
	Unreserve(ctx context.Context, t domain.LineTarget, qty int) (bool, error)
	// CommitReserved removes qty from reserved permanently.
	CommitReserved(ctx context.Context, t domain.LineTarget, qty int) (bool, error)
	// AddAvailable applies delta to available unless the result would be negative.
	AddAvailable(ctx context.Context, t domain.LineTarget, delta int, restocked bool) (bool, error)
	AppendLog(ctx context.Context, entry *domain.InventoryLogEntry) error
	ListLogs(ctx context.Context, t domain.LineTarget) ([]domain.InventoryLogEntry, error)
	ListLowStock(ctx context.Context) ([]domain.InventoryRecord, error)
}

type ReservationStore interface {
	Create(ctx context.Context, r *domain.Reservation) error
	Get(ctx context.Context, token string) (*domain.Reservation, error)
	Transition(ctx context.Context, token string, from, to domain.ReservationStatus) (bool, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error)
	ListActiveByReference(ctx context.Context, reference string) ([]domain.Reservation, error)
}

type CartStore interface {
	Find(ctx context.Context, userID string) (*domain.Cart, error)
	GetOrCreate(ctx context.Context, userID string) (*domain.Cart, error)
	GetItem(ctx context.Context, cartID int64, t domain.LineTarget) (*domain.CartItem, error)
	ListItems(ctx context.Context, cartID int64) ([]domain.CartItem, error)
	InsertItem(ctx context.Context, item *domain.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID int64, qty int) error
	DeleteItem(ctx context.Context, itemID int64) (bool, error)
	DeleteItems(ctx context.Context, cartID int64, itemIDs []int64) error
	// DeleteCheckedOut removes each item only if its quantity is unchanged
	// and reports how many rows went.
	DeleteCheckedOut(ctx context.Context, cartID int64, items []domain.CartItem) (int, error)
	Touch(ctx context.Context, cartID int64) error
}

type OrderStore interface {
	Create(ctx context.Context, o *domain.Order) error
	AddItems(ctx context.Context, orderID int64, items []domain.OrderItem) error
	AppendHistory(ctx context.Context, h *domain.OrderStatusHistory) error
	Get(ctx context.Context, id int64) (*domain.Order, error)
	GetByNumber(ctx context.Context, number string) (*domain.Order, error)
	Items(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
	History(ctx context.Context, orderID int64) ([]domain.OrderStatusHistory, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus) (bool, error)
}

type PaymentStore interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetByOrder(ctx context.Context, orderID int64) (*domain.Payment, error)
	UpdateStatus(ctx context.Context, p *domain.Payment, from domain.PaymentStatus) (bool, error)
}

type CatalogStore interface {
	CreateProduct(ctx context.Context, p *domain.Product) error
	CreateVariant(ctx context.Context, v *domain.ProductVariant) error
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetVariant(ctx context.Context, id int64) (*domain.ProductVariant, error)
}

type CouponStore interface {
	Create(ctx context.Context, c *domain.Coupon) error
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	// Claim increments used_count if the coupon still has uses left.
	Claim(ctx context.Context, id int64) (bool, error)
}

type WishlistStore interface {
	Add(ctx context.Context, item *domain.WishlistItem) error
	Remove(ctx context.Context, userID string, productID int64) (bool, error)
	List(ctx context.Context, userID string) ([]domain.WishlistItem, error)
}

// Stores groups every store bound to one connection or transaction.
type Stores interface {
	Inventory() InventoryStore
	Reservations() ReservationStore
	Carts() CartStore
	Orders() OrderStore
	Payments() PaymentStore
	Catalog() CatalogStore
	Coupons() CouponStore
	Wishlist() WishlistStore
}

// Transactor runs fn against stores bound to a single transaction. The
// transaction commits only if fn returns nil.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(Stores) error) error
}

type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) WithinTx(ctx context.Context, fn func(Stores) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(bind(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DB exposes the pool for callers outside the service layer, such as
// health checks.
func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

type boundStores struct {
	q sqlx.ExtContext
}

func bind(q sqlx.ExtContext) Stores {
	return boundStores{q: q}
}

func (b boundStores) Inventory() InventoryStore       { return inventoryRepo{q: b.q} }
func (b boundStores) Reservations() ReservationStore { return reservationRepo{q: b.q} }
func (b boundStores) Carts() CartStore               { return cartRepo{q: b.q} }
func (b boundStores) Orders() OrderStore             { return orderRepo{q: b.q} }
func (b boundStores) Payments() PaymentStore         { return paymentRepo{q: b.q} }
func (b boundStores) Catalog() CatalogStore          { return catalogRepo{q: b.q} }
func (b boundStores) Coupons() CouponStore           { return couponRepo{q: b.q} }
func (b boundStores) Wishlist() WishlistStore        { return wishlistRepo{q: b.q} }

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// insertID runs an INSERT and returns the generated id.
func insertID(ctx context.Context, q sqlx.ExtContext, query string, args ...interface{}) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func affected(ctx context.Context, q sqlx.ExtContext, query string, args ...interface{}) (bool, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
