package config

import "time"

// SessionConfig contains the session core configuration: type-specific
// lifetimes, the per-user session cap, rotation, and the security checks
// applied on lookup.
type SessionConfig struct {
	// GuestDuration is the lifetime of an anonymous (guest) session.
	GuestDuration time.Duration `env:"GUEST_DURATION" envDefault:"24h"`

	// UserDuration is the lifetime of an authenticated user session.
	UserDuration time.Duration `env:"USER_DURATION" envDefault:"720h"`

	// RotationInterval is the maximum age of a session identifier before
	// lookup replaces it with a fresh one (anti-fixation).
	RotationInterval time.Duration `env:"ROTATION_INTERVAL" envDefault:"30m"`

	// MaxSessionsPerUser caps concurrent sessions per authenticated user.
	// The oldest sessions beyond the cap are evicted at creation time.
	MaxSessionsPerUser int `env:"MAX_PER_USER" envDefault:"5"`

	// ValidateIP enables the hard IP-binding check: a session created from
	// one client IP is rejected when presented from another.
	ValidateIP bool `env:"VALIDATE_IP" envDefault:"false"`

	// RequireToken enables security-token verification on lookup when the
	// caller supplies one.
	RequireToken bool `env:"REQUIRE_TOKEN" envDefault:"true"`

	// Secret is the HMAC key for session security tokens. It is independent
	// of the bearer-token signing key on purpose.
	Secret string `env:"SECRET"`
}

// Duration returns the configured lifetime for the given session kind.
func (s *SessionConfig) Duration(user bool) time.Duration {
	if user {
		return s.UserDuration
	}
	return s.GuestDuration
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	if s.GuestDuration <= 0 {
		s.GuestDuration = 24 * time.Hour
	}
	if s.UserDuration <= 0 {
		s.UserDuration = 720 * time.Hour
	}
	if s.RotationInterval <= 0 {
		s.RotationInterval = 30 * time.Minute
	}
	if s.MaxSessionsPerUser < 1 {
		s.MaxSessionsPerUser = 5
	}
}

// RateLimitConfig contains the per-operation sliding-window limits.
// Session creation is deliberately not limited; see the rate limiter
// service for the policy.
type RateLimitConfig struct {
	// Window is the width of a rate-limit bucket.
	Window time.Duration `env:"WINDOW" envDefault:"60s"`

	// AccessLimit caps session lookups per identifier per window.
	AccessLimit int `env:"ACCESS_LIMIT" envDefault:"120"`

	// UpdateLimit caps session data updates per identifier per window.
	UpdateLimit int `env:"UPDATE_LIMIT" envDefault:"60"`

	// DeleteLimit caps session deletions per identifier per window.
	DeleteLimit int `env:"DELETE_LIMIT" envDefault:"30"`
}

// Sanitize applies guardrails to rate-limit configuration values.
func (r *RateLimitConfig) Sanitize() {
	if r.Window < time.Second {
		r.Window = time.Minute
	}
	if r.AccessLimit < 1 {
		r.AccessLimit = 120
	}
	if r.UpdateLimit < 1 {
		r.UpdateLimit = 60
	}
	if r.DeleteLimit < 1 {
		r.DeleteLimit = 30
	}
}

// CleanupConfig contains the background sweep configuration.
type CleanupConfig struct {
	// Interval is how often the cleanup loop sweeps expired session index
	// entries and stale rate-limit keys.
	Interval time.Duration `env:"INTERVAL" envDefault:"1h"`

	// BatchSize bounds how many keys a single sweep inspects.
	BatchSize int `env:"BATCH_SIZE" envDefault:"500"`
}

// Sanitize applies guardrails to cleanup configuration values.
func (c *CleanupConfig) Sanitize() {
	if c.Interval < time.Minute {
		c.Interval = time.Hour
	}
	if c.BatchSize < 1 {
		c.BatchSize = 500
	}
}
