package domain

import "time"

type WishlistItem struct {
	ID        int64     `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	ProductID int64     `json:"product_id" db:"product_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type WishlistRequest struct {
	ProductID int64 `json:"product_id" binding:"required,min=1"`
}
