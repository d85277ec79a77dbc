package session

// Package session contains domain-level types for the session core.
// It is pure and free of framework/adapter concerns.

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Type represents the kind of session record.
// Keep string form for easy persistence and logging.
type Type string

const (
	// TypeGuest is an anonymous visitor session, identified by a guest ID.
	TypeGuest Type = "guest"
	// TypeUser is a session bound to an authenticated user ID.
	TypeUser Type = "user"
)

// UnknownIP is the sentinel recorded when the client address could not be
// determined. Records carrying it are exempt from IP-binding checks.
const UnknownIP = "unknown"

// ID length bounds for a session identifier.
const (
	MinIDLength = 32
	MaxIDLength = 64
)

var (
	// ErrInvalidID is returned when a session identifier fails the charset
	// or length check.
	ErrInvalidID = errors.New("invalid session id")
	// ErrTypeMismatch is returned when the record's type does not agree
	// with which of UserID/GuestID is set.
	ErrTypeMismatch = errors.New("session type does not match identity fields")
)

// CartItem is a single entry in a session's denormalized cart.
type CartItem struct {
	ProductID   int64  `json:"product_id"`
	VariationID *int64 `json:"variation_id,omitempty"`
	Quantity    int    `json:"quantity"`
}

// Key returns the composite cart key for the item: the product ID, with
// the variation ID appended when present.
func (i CartItem) Key() string {
	if i.VariationID != nil {
		return strconv.FormatInt(i.ProductID, 10) + "_" + strconv.FormatInt(*i.VariationID, 10)
	}
	return strconv.FormatInt(i.ProductID, 10)
}

// CartItems maps composite cart keys to items. It is never nil on a valid
// record; NewRecord and the deserialization path both guarantee a map.
type CartItems map[string]CartItem

// Clone returns a deep copy so callers can mutate without aliasing the
// stored record.
func (c CartItems) Clone() CartItems {
	out := make(CartItems, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// TotalQuantity sums the quantities of all entries.
func (c CartItems) TotalQuantity() int {
	total := 0
	for _, item := range c {
		total += item.Quantity
	}
	return total
}

// Record is the server-side session record persisted in the shared store.
// ID is an opaque high-entropy identifier; SecurityToken proves the record
// was minted server-side; Fingerprint supports soft anomaly detection.
type Record struct {
	ID           string    `json:"id"`
	Type         Type      `json:"type"`
	UserID       int64     `json:"user_id,omitempty"`
	GuestID      string    `json:"guest_id,omitempty"`
	CartItems    CartItems `json:"cart_items"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`

	SecurityToken string `json:"security_token,omitempty"`
	CSRFToken     string `json:"csrf_token"`
	Fingerprint   string `json:"fingerprint,omitempty"`
}

// IsGuest returns true if the record is an anonymous session.
func (r *Record) IsGuest() bool { return r.Type == TypeGuest }

// IsUser returns true if the record belongs to an authenticated user.
func (r *Record) IsUser() bool { return r.Type == TypeUser }

// IsExpired reports whether the record's expiry has passed at the given time.
func (r *Record) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Age returns how long ago the record was created.
func (r *Record) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}

// Touch refreshes the activity timestamp and pushes the expiry out by the
// given duration.
func (r *Record) Touch(now time.Time, ttl time.Duration) {
	r.LastActivity = now
	r.ExpiresAt = now.Add(ttl)
}

// Validate checks the structural invariants of the record: identifier
// shape, type/identity agreement, timestamp ordering, and IP syntax.
func (r *Record) Validate() error {
	if err := ValidateID(r.ID); err != nil {
		return err
	}

	switch r.Type {
	case TypeUser:
		if r.UserID <= 0 || r.GuestID != "" {
			return ErrTypeMismatch
		}
	case TypeGuest:
		if r.GuestID == "" || r.UserID != 0 {
			return ErrTypeMismatch
		}
	default:
		return fmt.Errorf("unknown session type %q", r.Type)
	}

	if r.LastActivity.Before(r.CreatedAt) || r.ExpiresAt.Before(r.LastActivity) {
		return errors.New("session timestamps out of order")
	}

	if r.IPAddress != UnknownIP && net.ParseIP(r.IPAddress) == nil {
		return fmt.Errorf("invalid ip address %q", r.IPAddress)
	}

	return nil
}

// ValidateID checks that an identifier has session-ID shape: 32-64
// characters drawn from [A-Za-z0-9_-].
func ValidateID(id string) error {
	if len(id) < MinIDLength || len(id) > MaxIDLength {
		return ErrInvalidID
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return ErrInvalidID
		}
	}
	return nil
}

// NormalizeIP returns the given address if it parses as an IP, otherwise
// the UnknownIP sentinel. Store this rather than raw caller input.
func NormalizeIP(addr string) string {
	if net.ParseIP(addr) != nil {
		return addr
	}
	return UnknownIP
}

// Update is the closed set of session fields mutable through the update
// path. Anything not representable here cannot be changed after creation,
// which protects the identity and security fields by construction.
type Update struct {
	CartItems *CartItems
	UserAgent *string
}

// IsZero reports whether the update carries no changes.
func (u Update) IsZero() bool {
	return u.CartItems == nil && u.UserAgent == nil
}

// Apply writes the populated fields onto the record.
func (u Update) Apply(r *Record) {
	if u.CartItems != nil {
		r.CartItems = u.CartItems.Clone()
	}
	if u.UserAgent != nil {
		r.UserAgent = *u.UserAgent
	}
}
