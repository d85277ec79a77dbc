package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/leafcart/storefront-api/internal/domain/model"
	"github.com/leafcart/storefront-api/internal/domain/session"
	apperrors "github.com/leafcart/storefront-api/internal/errors"
	"github.com/leafcart/storefront-api/internal/ports"
)

// CartMigratorOptions groups dependencies for CartMigrator.
type CartMigratorOptions struct {
	Products ports.ProductReader  // Required: catalog lookups
	Carts    ports.CartRepository // Required: user cart persistence
	Sessions ports.SessionStore   // Required: guest session discovery
	Logger   *slog.Logger         // Optional: structured logger
}

// CartMigrator moves a guest session's cart into the authenticated user's
// persistent cart at login.
//
// Items are validated one by one against the catalog; an item that no
// longer exists or is no longer sellable is skipped, never the whole
// migration. Where guest and user carts both hold a key, the quantities
// are added together, capped by the per-product order limit.
type CartMigrator struct {
	products ports.ProductReader
	carts    ports.CartRepository
	sessions ports.SessionStore
	logger   *slog.Logger

	lookups []guestLookup
	now     func() time.Time
}

// guestLookup is one strategy for discovering the shopper's guest session
// at login time. Strategies run in declaration order; the first hit wins.
type guestLookup struct {
	name string
	find func(ctx context.Context, m *CartMigrator, in GuestLookupInput) (*session.Record, error)
}

// NewCartMigrator constructs a new CartMigrator.
func NewCartMigrator(opts CartMigratorOptions) (*CartMigrator, error) {
	if opts.Products == nil {
		return nil, apperrors.Internal("ProductReader is required")
	}
	if opts.Carts == nil {
		return nil, apperrors.Internal("CartRepository is required")
	}
	if opts.Sessions == nil {
		return nil, apperrors.Internal("SessionStore is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "cart_migrator")
	}

	m := &CartMigrator{
		products: opts.Products,
		carts:    opts.Carts,
		sessions: opts.Sessions,
		logger:   logger,
		now:      time.Now,
	}
	m.lookups = []guestLookup{
		{name: "session_id", find: findBySessionID},
		{name: "fingerprint", find: findByFingerprint},
		{name: "guest_cookie", find: findByGuestCookie},
	}
	return m, nil
}

// GuestLookupInput carries the request attributes available at login for
// locating a guest session.
type GuestLookupInput struct {
	SessionID string
	GuestID   string
	IP        string
	UserAgent string
}

// FindGuestSession locates the shopper's guest session by trying, in
// order: the presented session ID, the request fingerprint, then the
// long-lived guest cookie. Returns a not-found error when no strategy
// yields a live guest session.
func (m *CartMigrator) FindGuestSession(ctx context.Context, in GuestLookupInput) (*session.Record, error) {
	for _, l := range m.lookups {
		rec, err := l.find(ctx, m, in)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			if m.logger != nil {
				m.logger.DebugContext(ctx, "guest session located",
					"strategy", l.name, "session_id", rec.ID)
			}
			return rec, nil
		}
	}
	return nil, apperrors.NotFound("guest session not found")
}

func findBySessionID(ctx context.Context, m *CartMigrator, in GuestLookupInput) (*session.Record, error) {
	if session.ValidateID(in.SessionID) != nil {
		return nil, nil
	}
	return m.guestOrNil(m.sessions.Get(ctx, in.SessionID))
}

func findByFingerprint(ctx context.Context, m *CartMigrator, in GuestLookupInput) (*session.Record, error) {
	fp := session.Fingerprint(in.UserAgent, session.NormalizeIP(in.IP))
	if fp == "" {
		return nil, nil
	}
	return m.guestOrNil(m.sessions.FindByFingerprint(ctx, fp))
}

func findByGuestCookie(ctx context.Context, m *CartMigrator, in GuestLookupInput) (*session.Record, error) {
	if in.GuestID == "" {
		return nil, nil
	}
	return m.guestOrNil(m.sessions.FindByGuestID(ctx, in.GuestID))
}

// guestOrNil normalizes a store lookup for the strategy chain: misses and
// non-guest hits become nil so the next strategy runs.
func (m *CartMigrator) guestOrNil(rec *session.Record, err error) (*session.Record, error) {
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "guest session lookup")
	}
	if rec == nil || !rec.IsGuest() {
		return nil, nil
	}
	return rec, nil
}

// MigrationResult summarizes a cart migration pass.
type MigrationResult struct {
	Migrated int
	Skipped  int
}

// Migrate moves the guest record's cart items into the user's persistent
// cart and clears the guest cart afterwards so a re-run migrates nothing
// twice. Per-item failures are skipped and counted; only a failure that
// prevents the pass as a whole is returned as an error.
func (m *CartMigrator) Migrate(ctx context.Context, guest *session.Record, userID int64) (MigrationResult, error) {
	var res MigrationResult
	if guest == nil || !guest.IsGuest() || userID <= 0 {
		return res, apperrors.Validation("migration needs a guest session and a user id")
	}
	if len(guest.CartItems) == 0 {
		return res, nil
	}

	for key, item := range guest.CartItems {
		if m.migrateItem(ctx, userID, key, item) {
			res.Migrated++
		} else {
			res.Skipped++
		}
	}

	guest.CartItems = session.CartItems{}
	if err := m.sessions.Save(ctx, guest); err != nil {
		// The guest record expires on its own; a stale copy of the cart is
		// tolerable, double-migration is not, so log loudly.
		if m.logger != nil {
			m.logger.ErrorContext(ctx, "guest cart not cleared after migration",
				"session_id", guest.ID, "error", err)
		}
	}

	if m.logger != nil {
		m.logger.InfoContext(ctx, "guest cart migrated",
			"user_id", userID, "migrated", res.Migrated, "skipped", res.Skipped)
	}
	return res, nil
}

// migrateItem validates and writes a single cart item, reporting whether
// it made it into the user's cart. The guest quantity is clamped to the
// available stock, added to any existing row for the same key, and the
// sum capped by the per-product order limit.
func (m *CartMigrator) migrateItem(ctx context.Context, userID int64, key string, item session.CartItem) bool {
	product, err := m.products.GetByID(ctx, item.ProductID)
	if err != nil {
		m.skip(ctx, key, "product lookup failed", err)
		return false
	}
	if !product.Sellable() {
		m.skip(ctx, key, "product not sellable", nil)
		return false
	}

	available := item.Quantity
	if product.TrackStock && available > product.Stock {
		available = product.Stock
	}
	if available <= 0 {
		m.skip(ctx, key, "no stock available", nil)
		return false
	}

	existing := 0
	current, err := m.carts.GetEntry(ctx, userID, item.ProductID, item.VariationID)
	if err != nil && !apperrors.IsNotFound(err) {
		m.skip(ctx, key, "cart entry lookup failed", err)
		return false
	}
	if current != nil {
		existing = current.Quantity
	}

	qty := existing + available
	if product.MaxPerOrder > 0 && qty > product.MaxPerOrder {
		qty = product.MaxPerOrder
	}

	entry := &model.CartEntry{
		UserID:      userID,
		ProductID:   item.ProductID,
		VariationID: item.VariationID,
		Quantity:    qty,
		UpdatedAt:   m.now().UTC(),
	}
	if err := m.carts.Upsert(ctx, entry); err != nil {
		m.skip(ctx, key, "cart upsert failed", err)
		return false
	}
	return true
}

func (m *CartMigrator) skip(ctx context.Context, key, reason string, err error) {
	if m.logger == nil {
		return
	}
	args := []any{"cart_key", key, "reason", reason}
	if err != nil {
		args = append(args, "error", err)
	}
	m.logger.WarnContext(ctx, "cart item skipped during migration", args...)
}
