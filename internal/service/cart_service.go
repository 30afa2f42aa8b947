package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/repository"
)

// CartService manages each user's single cart. Quantities are checked
// against the target's stock when they change but nothing is reserved;
// checkout re-validates.
type CartService struct {
	store  repository.Transactor
	logger *zap.Logger
}

func NewCartService(store repository.Transactor, logger *zap.Logger) *CartService {
	return &CartService{store: store, logger: logger}
}

// AddOrUpdateItem adds delta to the line for t. A resulting quantity of
// zero or less deletes the line and returns a nil item.
func (s *CartService) AddOrUpdateItem(ctx context.Context, userID string, t domain.LineTarget, delta int) (*domain.CartItem, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, domain.NewValidationError("quantity", "must be non-zero")
	}

	var item *domain.CartItem
	err := s.store.WithinTx(ctx, func(st repository.Stores) error {
		cart, err := st.Carts().GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		existing, err := findItem(ctx, st, cart.ID, t)
		if err != nil {
			return err
		}

		qty := delta
		if existing != nil {
			qty += existing.Quantity
		}
		if qty <= 0 {
			return deleteItem(ctx, st, cart.ID, existing)
		}
		if delta > 0 {
			if err := checkCeiling(ctx, st, t, qty); err != nil {
				return err
			}
		}

		item, err = saveItem(ctx, st, cart.ID, existing, t, qty)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// SetItem replaces the line quantity for t. A quantity of zero or less
// deletes the line.
func (s *CartService) SetItem(ctx context.Context, userID string, t domain.LineTarget, qty int) (*domain.CartItem, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	var item *domain.CartItem
	err := s.store.WithinTx(ctx, func(st repository.Stores) error {
		cart, err := st.Carts().GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		existing, err := findItem(ctx, st, cart.ID, t)
		if err != nil {
			return err
		}
		if qty <= 0 {
			return deleteItem(ctx, st, cart.ID, existing)
		}
		if existing == nil || qty > existing.Quantity {
			if err := checkCeiling(ctx, st, t, qty); err != nil {
				return err
			}
		}

		item, err = saveItem(ctx, st, cart.ID, existing, t, qty)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// RemoveItem deletes the line for t, or fails with ErrNotFound and changes
// nothing when there is none.
func (s *CartService) RemoveItem(ctx context.Context, userID string, t domain.LineTarget) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return s.store.WithinTx(ctx, func(st repository.Stores) error {
		cart, err := st.Carts().Find(ctx, userID)
		if err != nil {
			return err
		}
		item, err := st.Carts().GetItem(ctx, cart.ID, t)
		if err != nil {
			return err
		}
		ok, err := st.Carts().DeleteItem(ctx, item.ID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotFound
		}
		return st.Carts().Touch(ctx, cart.ID)
	})
}

// ListItems returns the user's lines in insertion order. Reading does not
// create a cart.
func (s *CartService) ListItems(ctx context.Context, userID string) ([]domain.CartItem, error) {
	items := []domain.CartItem{}
	err := s.store.WithinTx(ctx, func(st repository.Stores) error {
		cart, err := st.Carts().Find(ctx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		items, err = st.Carts().ListItems(ctx, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *CartService) Clear(ctx context.Context, userID string) error {
	return s.store.WithinTx(ctx, func(st repository.Stores) error {
		cart, err := st.Carts().Find(ctx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		items, err := st.Carts().ListItems(ctx, cart.ID)
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.ID)
		}
		if err := st.Carts().DeleteItems(ctx, cart.ID, ids); err != nil {
			return err
		}
		return st.Carts().Touch(ctx, cart.ID)
	})
}

func findItem(ctx context.Context, st repository.Stores, cartID int64, t domain.LineTarget) (*domain.CartItem, error) {
	item, err := st.Carts().GetItem(ctx, cartID, t)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return item, err
}

func deleteItem(ctx context.Context, st repository.Stores, cartID int64, existing *domain.CartItem) error {
	if existing == nil {
		return nil
	}
	if _, err := st.Carts().DeleteItem(ctx, existing.ID); err != nil {
		return err
	}
	return st.Carts().Touch(ctx, cartID)
}

func saveItem(ctx context.Context, st repository.Stores, cartID int64, existing *domain.CartItem, t domain.LineTarget, qty int) (*domain.CartItem, error) {
	if existing != nil {
		if err := st.Carts().UpdateItemQuantity(ctx, existing.ID, qty); err != nil {
			return nil, err
		}
		existing.Quantity = qty
		return existing, st.Carts().Touch(ctx, cartID)
	}

	item := &domain.CartItem{LineTarget: t, CartID: cartID, Quantity: qty}
	if err := st.Carts().InsertItem(ctx, item); err != nil {
		return nil, err
	}
	return item, st.Carts().Touch(ctx, cartID)
}

// checkCeiling fails unless t is sellable and qty fits within its total
// stock. A target without an inventory record has no stock.
func checkCeiling(ctx context.Context, st repository.Stores, t domain.LineTarget, qty int) error {
	catalog := func(ctx context.Context, t domain.LineTarget) (*domain.Quote, error) {
		return quote(ctx, st.Catalog(), t)
	}
	if _, err := sellable(ctx, catalog, t); err != nil {
		return err
	}

	ceiling := 0
	rec, err := st.Inventory().Get(ctx, t)
	switch {
	case err == nil:
		ceiling = rec.TotalStock()
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}
	if qty > ceiling {
		return &domain.StockExceededError{Target: t, Requested: qty, Available: ceiling}
	}
	return nil
}
