package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"github.com/leafcart/storefront-api/config"
	"github.com/leafcart/storefront-api/internal/ports"
)

// CleanupServiceOptions groups dependencies for CleanupService.
type CleanupServiceOptions struct {
	Sessions   ports.SessionStore   // Required: session index sweeping
	RateLimits ports.RateLimitStore // Required: counter TTL repair
	Config     config.CleanupConfig // Required: interval and batch size
	Window     time.Duration        // Required: rate-limit window for TTL repair
	Logger     *slog.Logger         // Optional: structured logger
}

// CleanupService is the background sweep for state the store's own TTLs
// do not reclaim: per-user index members whose session key has expired,
// and rate-limit counters that lost their TTL.
type CleanupService struct {
	sessions   ports.SessionStore
	rateLimits ports.RateLimitStore
	config     config.CleanupConfig
	window     time.Duration
	logger     *slog.Logger
}

// NewCleanupService constructs a new CleanupService.
func NewCleanupService(opts CleanupServiceOptions) (*CleanupService, error) {
	if opts.Sessions == nil {
		return nil, errors.New("SessionStore is required")
	}
	if opts.RateLimits == nil {
		return nil, errors.New("RateLimitStore is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "cleanup_service")
	}

	return &CleanupService{
		sessions:   opts.Sessions,
		rateLimits: opts.RateLimits,
		config:     opts.Config,
		window:     opts.Window,
		logger:     logger,
	}, nil
}

// CleanupStats reports what a single sweep reclaimed.
type CleanupStats struct {
	IndexMembersRemoved int64
	CountersRepaired    int64
}

// Run starts the cleanup loop and runs until the context is cancelled.
// Returns nil on graceful shutdown.
func (s *CleanupService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting cleanup service", "interval", s.config.Interval)
	}

	// Jitter so multiple instances do not sweep in lockstep.
	s.waitWithJitter(ctx)
	if ctx.Err() != nil {
		return s.shutdownErr(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "cleanup service stopping", "reason", ctx.Err())
			}
			return s.shutdownErr(ctx)
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *CleanupService) shutdownErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// waitWithJitter delays up to 10% of the interval.
func (s *CleanupService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// Skip jitter rather than failing startup.
		return
	}
	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

func (s *CleanupService) sweep(ctx context.Context) {
	stats, err := s.RunOnce(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "cleanup sweep failed", "error", err)
		}
		return
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "cleanup sweep complete",
			"index_members_removed", stats.IndexMembersRemoved,
			"counters_repaired", stats.CountersRepaired)
	}
}

// RunOnce performs a single sweep and returns what it reclaimed. Each
// phase runs even when the previous one errored; the first error is
// returned alongside whatever the sweep managed to do.
func (s *CleanupService) RunOnce(ctx context.Context) (CleanupStats, error) {
	var stats CleanupStats
	var firstErr error

	removed, err := s.sessions.SweepUserIndexes(ctx, s.config.BatchSize)
	stats.IndexMembersRemoved = removed
	if err != nil {
		firstErr = err
	}

	repaired, err := s.rateLimits.SweepMissingTTL(ctx, s.window, s.config.BatchSize)
	stats.CountersRepaired = repaired
	if err != nil && firstErr == nil {
		firstErr = err
	}

	return stats, firstErr
}
