package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/leafcart/storefront-api/internal/data/pgxutil"
	"github.com/leafcart/storefront-api/internal/domain/model"
	apperrors "github.com/leafcart/storefront-api/internal/errors"
	"github.com/leafcart/storefront-api/internal/ports"
)

// ErrCartEntryNotFound is returned when a user has no cart row for a key.
var ErrCartEntryNotFound = errors.New("cart entry not found")

// CartRepo provides database operations for persisted user carts.
// Variations are stored as 0 when absent so the (user, product, variation)
// key can be a primary key; the mapping layer converts 0 back to nil.
type CartRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewCartRepo creates a new CartRepo with the real time provider.
func NewCartRepo(db *sql.DB) *CartRepo {
	return &CartRepo{DB: db, timeProvider: RealTimeProvider{}}
}

// NewCartRepoWithTimeProvider creates a CartRepo with a custom time provider (useful for tests).
func NewCartRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *CartRepo {
	return &CartRepo{DB: db, timeProvider: tp}
}

var _ ports.CartRepository = (*CartRepo)(nil)

// GetEntry retrieves the user's cart row for a (product, variation) key.
func (r *CartRepo) GetEntry(ctx context.Context, userID, productID int64, variationID *int64) (*model.CartEntry, error) {
	var out model.CartEntry
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT user_id, product_id, NULLIF(variation_id, 0) AS variation_id, quantity, updated_at
			FROM user_cart_items
			WHERE user_id = $1 AND product_id = $2 AND variation_id = COALESCE($3, 0)
		`, userID, productID, variationID)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.CartEntry])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(ErrCartEntryNotFound, apperrors.ErrCodeNotFound, "cart entry not found")
		}
		return nil, fmt.Errorf("get cart entry: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}

// Upsert inserts the entry or replaces the quantity of an existing row.
func (r *CartRepo) Upsert(ctx context.Context, entry *model.CartEntry) error {
	if entry == nil {
		return errors.New("cart entry is required")
	}
	if err := entry.Validate(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid cart entry")
	}

	now := r.timeProvider.Now().UTC()
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO user_cart_items (user_id, product_id, variation_id, quantity, updated_at)
		VALUES ($1, $2, COALESCE($3, 0), $4, $5)
		ON CONFLICT (user_id, product_id, variation_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
	`, entry.UserID, entry.ProductID, entry.VariationID, entry.Quantity, now)
	if err != nil {
		return fmt.Errorf("upsert cart entry: %w", apperrors.MapDBError(err))
	}
	return nil
}

// ListByUser returns all cart rows for the user, oldest update first.
func (r *CartRepo) ListByUser(ctx context.Context, userID int64) ([]*model.CartEntry, error) {
	var entries []model.CartEntry
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT user_id, product_id, NULLIF(variation_id, 0) AS variation_id, quantity, updated_at
			FROM user_cart_items
			WHERE user_id = $1
			ORDER BY updated_at, product_id, variation_id
		`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		entries, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.CartEntry])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list cart entries: %w", apperrors.MapDBError(err))
	}

	out := make([]*model.CartEntry, len(entries))
	for i := range entries {
		out[i] = &entries[i]
	}
	return out, nil
}

// DeleteByUser removes all cart rows for the user.
func (r *CartRepo) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM user_cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete cart entries: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete cart entries rows affected: %w", err)
	}
	return n, nil
}
