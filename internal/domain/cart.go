package domain

import "time"

type Cart struct {
	ID        int64     `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CartItem struct {
	LineTarget `json:"target"`

	ID       int64     `json:"id" db:"id"`
	CartID   int64     `json:"cart_id" db:"cart_id"`
	Quantity int       `json:"quantity" db:"quantity"`
	AddedAt  time.Time `json:"added_at" db:"added_at"`
}

type CartItemRequest struct {
	TargetRef
	Quantity int `json:"quantity"`
}

type CartResponse struct {
	UserID string     `json:"user_id"`
	Items  []CartItem `json:"items"`
}
