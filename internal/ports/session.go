package ports

// Package ports defines interfaces (hexagonal ports) for the session core.
// Implementations live in internal/adapters and internal/data;
// orchestration in internal/service.

import (
	"context"
	"errors"
	"time"

	"github.com/leafcart/storefront-api/internal/domain/session"
)

// ErrNotFound is returned by stores when a record does not exist.
// Expired records are reported the same way.
var ErrNotFound = errors.New("session not found")

// SessionStore persists session records in the shared key-value store
// with per-record expiry, and maintains the secondary lookup indexes
// (by user, by guest, by fingerprint) used for reuse and migration.
type SessionStore interface {
	// Save persists the record with TTL derived from its ExpiresAt and
	// updates the secondary indexes.
	Save(ctx context.Context, rec *session.Record) error

	// Get returns the record for the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*session.Record, error)

	// Delete removes the record and its index entries. Deleting a missing
	// record is not an error.
	Delete(ctx context.Context, id string) error

	// TouchTTL extends the store expiry of an existing record without
	// rewriting it.
	TouchTTL(ctx context.Context, id string, ttl time.Duration) error

	// FindByUserID returns the most recently created session for the user,
	// or ErrNotFound.
	FindByUserID(ctx context.Context, userID int64) (*session.Record, error)

	// FindByGuestID returns the guest session registered under the given
	// guest identifier, or ErrNotFound.
	FindByGuestID(ctx context.Context, guestID string) (*session.Record, error)

	// FindByFingerprint returns the guest session registered under the given
	// request fingerprint, or ErrNotFound.
	FindByFingerprint(ctx context.Context, fingerprint string) (*session.Record, error)

	// CountByUserID returns how many sessions the user currently has.
	CountByUserID(ctx context.Context, userID int64) (int64, error)

	// OldestByUserID returns up to n session IDs for the user, oldest
	// creation time first.
	OldestByUserID(ctx context.Context, userID int64, n int64) ([]string, error)

	// SweepUserIndexes removes index members whose session key has already
	// expired. Returns the number of members removed.
	SweepUserIndexes(ctx context.Context, batchSize int) (int64, error)
}

// RateLimitStore is the atomic counter backend for the sliding-window
// rate limiter.
type RateLimitStore interface {
	// Increment atomically increments the counter for the key and, on the
	// first increment, applies the window TTL. Returns the new count.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)

	// SweepMissingTTL finds counter keys that lost their TTL (for example a
	// crash between INCR and EXPIRE) and applies the window TTL. Returns
	// the number of keys repaired.
	SweepMissingTTL(ctx context.Context, window time.Duration, batchSize int) (int64, error)
}
