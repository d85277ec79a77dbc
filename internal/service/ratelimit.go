package service

// Package service contains the session core business logic. Services
// depend on port interfaces only; adapters and repositories are wired in
// at bootstrap.

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/leafcart/storefront-api/config"
	apperrors "github.com/leafcart/storefront-api/internal/errors"
	"github.com/leafcart/storefront-api/internal/ports"
)

// Op names a rate-limited session operation.
type Op string

const (
	// OpCreate is session creation. It is exempt from rate limiting so a
	// storefront page load always gets a session.
	OpCreate Op = "create"
	// OpAccess is session lookup/validation.
	OpAccess Op = "access"
	// OpUpdate is a session data update.
	OpUpdate Op = "update"
	// OpDelete is session deletion.
	OpDelete Op = "delete"
)

// RateLimiterOptions groups dependencies for RateLimiter.
type RateLimiterOptions struct {
	Store    ports.RateLimitStore   // Required: counter backend
	Config   config.RateLimitConfig // Required: per-operation limits
	Provider *config.Provider       // Optional: live config source; overrides Config when set
	Logger   *slog.Logger           // Optional: structured logger
}

// RateLimiter enforces fixed-window per-identifier limits on session
// operations. A backend failure never blocks the caller: the limiter
// fails open and logs, because an unavailable counter store must not
// take the storefront down with it.
type RateLimiter struct {
	store    ports.RateLimitStore
	config   config.RateLimitConfig
	provider *config.Provider
	logger   *slog.Logger

	now func() time.Time
}

// NewRateLimiter constructs a new RateLimiter.
func NewRateLimiter(opts RateLimiterOptions) (*RateLimiter, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("RateLimitStore is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "rate_limiter")
	}

	return &RateLimiter{
		store:    opts.Store,
		config:   opts.Config,
		provider: opts.Provider,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// cfg returns the limits in effect for this check. With a provider
// attached every call sees the latest reloaded snapshot.
func (l *RateLimiter) cfg() config.RateLimitConfig {
	if l.provider != nil {
		return l.provider.Snapshot().RateLimit
	}
	return l.config
}

// Allow checks the counter for the identifier and operation and returns a
// rate-limited error when the window's limit is exceeded. The identifier
// is typically the client IP.
func (l *RateLimiter) Allow(ctx context.Context, identifier string, op Op) error {
	cfg := l.cfg()
	limit := limitFor(cfg, op)
	if limit <= 0 {
		// Unlimited operation (creation, or an unknown op).
		return nil
	}
	if identifier == "" {
		return nil
	}

	key := l.bucketKey(identifier, op, cfg.Window)
	count, err := l.store.Increment(ctx, key, cfg.Window)
	if err != nil {
		if l.logger != nil {
			l.logger.WarnContext(ctx, "rate limit backend unavailable, allowing request",
				"op", string(op), "error", err)
		}
		return nil
	}

	if count > int64(limit) {
		if l.logger != nil {
			l.logger.InfoContext(ctx, "rate limit exceeded",
				"op", string(op), "identifier", identifier, "count", count, "limit", limit)
		}
		return apperrors.RateLimited("too many requests")
	}
	return nil
}

// limitFor returns the window limit for the operation. Zero means the
// operation is not limited.
func limitFor(cfg config.RateLimitConfig, op Op) int {
	switch op {
	case OpAccess:
		return cfg.AccessLimit
	case OpUpdate:
		return cfg.UpdateLimit
	case OpDelete:
		return cfg.DeleteLimit
	default:
		return 0
	}
}

// bucketKey builds the fixed-window counter key. The bucket number is the
// Unix time divided by the window so all instances agree on bucket
// boundaries without coordination.
func (l *RateLimiter) bucketKey(identifier string, op Op, window time.Duration) string {
	windowSeconds := int64(window / time.Second)
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	bucket := l.now().Unix() / windowSeconds
	return identifier + ":" + string(op) + ":" + strconv.FormatInt(bucket, 10)
}
