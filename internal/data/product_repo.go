package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/leafcart/storefront-api/internal/data/pgxutil"
	"github.com/leafcart/storefront-api/internal/domain/model"
	apperrors "github.com/leafcart/storefront-api/internal/errors"
	"github.com/leafcart/storefront-api/internal/ports"
)

// ErrProductNotFound is returned when a product does not exist.
var ErrProductNotFound = errors.New("product not found")

// ProductRepo provides database operations for catalog products.
// The cart migrator only reads; writes exist to support seeding and tests.
type ProductRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewProductRepo creates a new ProductRepo with the real time provider.
func NewProductRepo(db *sql.DB) *ProductRepo {
	return &ProductRepo{DB: db, timeProvider: RealTimeProvider{}}
}

var _ ports.ProductReader = (*ProductRepo)(nil)

// GetByID retrieves a product by ID.
func (r *ProductRepo) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	var out model.Product
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT id, sku, name, active, track_stock, stock, max_per_order, created_at, updated_at
			FROM products
			WHERE id = $1
		`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Product])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(ErrProductNotFound, apperrors.ErrCodeNotFound, "product not found")
		}
		return nil, fmt.Errorf("get product by id: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}

// Create inserts a product row. Used by seeding and tests.
func (r *ProductRepo) Create(ctx context.Context, p *model.Product) (*model.Product, error) {
	if p == nil {
		return nil, errors.New("product is required")
	}
	if strings.TrimSpace(p.SKU) == "" {
		return nil, apperrors.ValidationField("sku", "sku is required")
	}

	now := r.timeProvider.Now().UTC()
	var out model.Product
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO products (sku, name, active, track_stock, stock, max_per_order, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			RETURNING id, sku, name, active, track_stock, stock, max_per_order, created_at, updated_at
		`, strings.TrimSpace(p.SKU), p.Name, p.Active, p.TrackStock, p.Stock, p.MaxPerOrder, now)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Product])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create product: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}

// SetStock updates a product's stock level.
func (r *ProductRepo) SetStock(ctx context.Context, id int64, stock int) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE products SET stock = $2, updated_at = now() WHERE id = $1
	`, id, stock)
	if err != nil {
		return fmt.Errorf("set product stock: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set product stock rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.Wrap(ErrProductNotFound, apperrors.ErrCodeNotFound, "product not found")
	}
	return nil
}
