package ports

import (
	"context"

	"github.com/leafcart/storefront-api/internal/domain/model"
)

// ProductReader exposes the catalog fields the cart migrator needs:
// sellability, stock, and the per-order cap.
type ProductReader interface {
	// GetByID returns the product or an error satisfying errors.IsNotFound.
	GetByID(ctx context.Context, id int64) (*model.Product, error)
}

// CartRepository persists the authenticated user's cart rows in the
// relational store, the source of truth for user carts.
type CartRepository interface {
	// GetEntry returns the user's entry for the (product, variation) key,
	// or an error satisfying errors.IsNotFound.
	GetEntry(ctx context.Context, userID, productID int64, variationID *int64) (*model.CartEntry, error)

	// Upsert inserts the entry or replaces the quantity of an existing one.
	Upsert(ctx context.Context, entry *model.CartEntry) error

	// ListByUser returns all cart rows for the user.
	ListByUser(ctx context.Context, userID int64) ([]*model.CartEntry, error)

	// DeleteByUser removes all cart rows for the user and reports how many
	// were deleted.
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
}
