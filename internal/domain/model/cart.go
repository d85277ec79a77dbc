package model

import (
	"errors"
	"strconv"
	"time"
)

// CartEntry is a persisted user-cart row in the relational store, the
// source of truth for authenticated carts. The session store only holds
// a denormalized copy.
type CartEntry struct {
	UserID      int64     `db:"user_id"      json:"user_id"`
	ProductID   int64     `db:"product_id"   json:"product_id"`
	VariationID *int64    `db:"variation_id" json:"variation_id,omitempty"`
	Quantity    int       `db:"quantity"     json:"quantity"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updated_at"`
}

// Key returns the composite cart key matching the session cart keying.
func (e CartEntry) Key() string {
	if e.VariationID != nil {
		return strconv.FormatInt(e.ProductID, 10) + "_" + strconv.FormatInt(*e.VariationID, 10)
	}
	return strconv.FormatInt(e.ProductID, 10)
}

// Validate checks the entry before persistence.
func (e *CartEntry) Validate() error {
	if e.UserID <= 0 {
		return errors.New("user_id is required")
	}
	if e.ProductID <= 0 {
		return errors.New("product_id is required")
	}
	if e.Quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	return nil
}
