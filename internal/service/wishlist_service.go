package service

import (
	"context"
	"errors"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/domain"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/repository"
)

type WishlistService struct {
	store repository.Transactor
}

func NewWishlistService(store repository.Transactor) *WishlistService {
	return &WishlistService{store: store}
}

// Add wishlists a product. Adding it again is not an error.
func (s *WishlistService) Add(ctx context.Context, userID string, productID int64) error {
	if productID <= 0 {
		return domain.NewValidationError("product_id", "must be positive")
	}
	return s.store.WithinTx(ctx, func(st repository.Stores) error {
		if _, err := st.Catalog().GetProduct(ctx, productID); err != nil {
			return err
		}
		err := st.Wishlist().Add(ctx, &domain.WishlistItem{UserID: userID, ProductID: productID})
		if errors.Is(err, domain.ErrConflict) {
			return nil
		}
		return err
	})
}

func (s *WishlistService) Remove(ctx context.Context, userID string, productID int64) error {
	return s.store.WithinTx(ctx, func(st repository.Stores) error {
		ok, err := st.Wishlist().Remove(ctx, userID, productID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (s *WishlistService) List(ctx context.Context, userID string) ([]domain.WishlistItem, error) {
	var items []domain.WishlistItem
	err := s.store.WithinTx(ctx, func(st repository.Stores) error {
		var err error
		items, err = st.Wishlist().List(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
