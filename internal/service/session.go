package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/leafcart/storefront-api/config"
	"github.com/leafcart/storefront-api/internal/domain/session"
	apperrors "github.com/leafcart/storefront-api/internal/errors"
	"github.com/leafcart/storefront-api/internal/ports"
)

// SessionServiceOptions groups dependencies for SessionService.
type SessionServiceOptions struct {
	Store    ports.SessionStore   // Required: session persistence
	Limiter  *RateLimiter         // Required: per-operation rate limiting
	Config   config.SessionConfig // Required: lifetimes and security policy
	Provider *config.Provider     // Optional: live config source; overrides Config when set
	Logger   *slog.Logger         // Optional: structured logger
}

// SessionService implements the session lifecycle: creation with the
// per-user cap, validated lookup with rotation and sliding expiry,
// updates through the closed field set, and deletion.
//
// Every lookup failure surfaces as the same not-found error regardless of
// which check failed; the failing check is logged internally only.
type SessionService struct {
	store    ports.SessionStore
	limiter  *RateLimiter
	config   config.SessionConfig
	provider *config.Provider
	logger   *slog.Logger

	now func() time.Time
}

// NewSessionService constructs a new SessionService.
func NewSessionService(opts SessionServiceOptions) (*SessionService, error) {
	if opts.Store == nil {
		return nil, errors.New("SessionStore is required")
	}
	if opts.Limiter == nil {
		return nil, errors.New("RateLimiter is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "session_service")
	}

	return &SessionService{
		store:    opts.Store,
		limiter:  opts.Limiter,
		config:   opts.Config,
		provider: opts.Provider,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// cfg returns the session policy in effect for this operation. With a
// provider attached every call sees the latest reloaded snapshot, so a
// SIGHUP takes effect without a restart.
func (s *SessionService) cfg() config.SessionConfig {
	if s.provider != nil {
		return s.provider.Snapshot().Session
	}
	return s.config
}

// RequestContext carries the per-request client attributes the service
// validates sessions against.
type RequestContext struct {
	IP            string
	UserAgent     string
	SecurityToken string
}

// CreateInput groups parameters for creating a session. A zero UserID
// creates a guest session; GuestID is generated when empty.
type CreateInput struct {
	UserID    int64
	GuestID   string
	IP        string
	UserAgent string
}

// Create mints a new session record and persists it. Creation is exempt
// from rate limiting, and a store failure does not fail the caller: the
// record is returned un-persisted so the storefront keeps serving, at the
// cost of the session not surviving to the next request.
func (s *SessionService) Create(ctx context.Context, in CreateInput) (*session.Record, error) {
	rec, err := s.mint(in)
	if err != nil {
		return nil, err
	}

	if rec.IsUser() {
		if err := s.enforceUserCap(ctx, rec.UserID); err != nil {
			// Eviction is best effort; an over-cap user is preferable to a
			// failed login.
			if s.logger != nil {
				s.logger.WarnContext(ctx, "session cap enforcement failed",
					"user_id", rec.UserID, "error", err)
			}
		}
	}

	if err := s.store.Save(ctx, rec); err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "session not persisted, serving degraded session",
				"session_id", rec.ID, "error", err)
		}
	}
	return rec, nil
}

// mint builds a fully populated record without touching the store.
func (s *SessionService) mint(in CreateInput) (*session.Record, error) {
	id, err := session.NewID()
	if err != nil {
		return nil, err
	}
	csrf, err := session.NewCSRFToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ip := session.NormalizeIP(in.IP)

	rec := &session.Record{
		ID:           id,
		CartItems:    session.CartItems{},
		CreatedAt:    now,
		LastActivity: now,
		IPAddress:    ip,
		UserAgent:    in.UserAgent,
		CSRFToken:    csrf,
	}

	// Advisory fingerprint for both session types; empty when the client
	// attributes are unknown.
	rec.Fingerprint = session.Fingerprint(in.UserAgent, ip)

	if in.UserID > 0 {
		rec.Type = session.TypeUser
		rec.UserID = in.UserID
	} else {
		rec.Type = session.TypeGuest
		rec.GuestID = in.GuestID
		if rec.GuestID == "" {
			rec.GuestID = uuid.NewString()
		}
	}

	cfg := s.cfg()
	rec.ExpiresAt = now.Add(cfg.Duration(rec.IsUser()))
	rec.SecurityToken = session.SecurityToken(cfg.Secret, rec.ID, ip, rec.CreatedAt)
	return rec, nil
}

// enforceUserCap evicts the oldest sessions so the user ends up at most
// one below the cap, making room for the session about to be saved.
func (s *SessionService) enforceUserCap(ctx context.Context, userID int64) error {
	limit := int64(s.cfg().MaxSessionsPerUser)
	if limit <= 0 {
		return nil
	}

	count, err := s.store.CountByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("count sessions: %w", err)
	}
	excess := count - limit + 1
	if excess <= 0 {
		return nil
	}

	ids, err := s.store.OldestByUserID(ctx, userID, excess)
	if err != nil {
		return fmt.Errorf("list oldest sessions: %w", err)
	}
	for _, id := range ids {
		if err := s.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("evict session: %w", err)
		}
		if s.logger != nil {
			s.logger.InfoContext(ctx, "evicted session over per-user cap",
				"user_id", userID, "session_id", id)
		}
	}
	return nil
}

// Get loads and validates the session, refreshes its sliding expiry, and
// rotates the identifier when it is older than the rotation interval. The
// returned record carries the current (possibly new) ID.
func (s *SessionService) Get(ctx context.Context, id string, req RequestContext) (*session.Record, error) {
	if err := s.limiter.Allow(ctx, req.IP, OpAccess); err != nil {
		return nil, err
	}

	rec, err := s.load(ctx, id, req)
	if err != nil {
		return nil, err
	}

	cfg := s.cfg()
	now := s.now().UTC()
	if rec.Age(now) >= cfg.RotationInterval {
		rotated, err := s.Rotate(ctx, rec)
		if err != nil {
			// Serve the old record; rotation retries on the next lookup.
			if s.logger != nil {
				s.logger.WarnContext(ctx, "session rotation failed",
					"session_id", rec.ID, "error", err)
			}
		} else {
			rec = rotated
		}
	}

	rec.Touch(now, cfg.Duration(rec.IsUser()))
	if err := s.store.Save(ctx, rec); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "session activity refresh failed",
				"session_id", rec.ID, "error", err)
		}
	}
	return rec, nil
}

// load fetches the record and runs the security checks. All failures
// collapse into the same not-found error.
func (s *SessionService) load(ctx context.Context, id string, req RequestContext) (*session.Record, error) {
	if err := session.ValidateID(id); err != nil {
		return nil, s.absent(ctx, id, "malformed id")
	}

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, s.absent(ctx, id, "not in store")
		}
		// Infra failures collapse into the uniform absence too, so callers
		// fall back to a fresh session instead of erroring the request.
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "session store lookup failed",
				"session_id", id, "error", err)
		}
		return nil, s.absent(ctx, id, "store failure")
	}

	cfg := s.cfg()
	result := session.Validate(rec, session.ValidationInput{
		RequestIP:        session.NormalizeIP(req.IP),
		RequestUserAgent: req.UserAgent,
		SuppliedToken:    req.SecurityToken,
		Now:              s.now(),
		RequireToken:     cfg.RequireToken,
		ValidateIP:       cfg.ValidateIP,
		Secret:           cfg.Secret,
	})
	if !result.OK {
		return nil, s.absent(ctx, id, result.Reason)
	}
	if result.FingerprintMismatch && s.logger != nil {
		s.logger.WarnContext(ctx, "session fingerprint mismatch",
			"session_id", rec.ID, "ip", req.IP)
	}
	return rec, nil
}

// absent logs the real failure reason and returns the uniform not-found
// error, so a caller probing session IDs learns nothing from responses.
func (s *SessionService) absent(ctx context.Context, id, reason string) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "session rejected", "session_id", id, "reason", reason)
	}
	return apperrors.NotFound("session not found")
}

// Rotate replaces the session identifier with a fresh one, re-deriving
// the tokens bound to it, and removes the old record. Cart contents and
// identity carry over unchanged.
func (s *SessionService) Rotate(ctx context.Context, rec *session.Record) (*session.Record, error) {
	id, err := session.NewID()
	if err != nil {
		return nil, err
	}
	csrf, err := session.NewCSRFToken()
	if err != nil {
		return nil, err
	}

	cfg := s.cfg()
	now := s.now().UTC()
	rotated := *rec
	rotated.ID = id
	rotated.CSRFToken = csrf
	rotated.CreatedAt = now
	rotated.LastActivity = now
	rotated.ExpiresAt = now.Add(cfg.Duration(rec.IsUser()))
	rotated.SecurityToken = session.SecurityToken(cfg.Secret, id, rec.IPAddress, now)
	rotated.CartItems = rec.CartItems.Clone()

	if err := s.store.Save(ctx, &rotated); err != nil {
		return nil, fmt.Errorf("save rotated session: %w", err)
	}
	if err := s.store.Delete(ctx, rec.ID); err != nil {
		// The old record still expires on its own TTL.
		if s.logger != nil {
			s.logger.WarnContext(ctx, "old session not removed after rotation",
				"session_id", rec.ID, "error", err)
		}
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "session rotated", "old_id", rec.ID, "new_id", id)
	}
	return &rotated, nil
}

// Update applies the closed update set to the session. Identity and
// security fields are not reachable from here by construction.
func (s *SessionService) Update(ctx context.Context, id string, req RequestContext, upd session.Update) (*session.Record, error) {
	if err := s.limiter.Allow(ctx, req.IP, OpUpdate); err != nil {
		return nil, err
	}
	if upd.IsZero() {
		return nil, apperrors.Validation("update carries no changes")
	}

	rec, err := s.load(ctx, id, req)
	if err != nil {
		return nil, err
	}

	upd.Apply(rec)
	cfg := s.cfg()
	rec.Touch(s.now().UTC(), cfg.Duration(rec.IsUser()))
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "save session")
	}
	return rec, nil
}

// Delete removes the session. Deleting a missing or malformed session is
// not an error so logout stays idempotent.
func (s *SessionService) Delete(ctx context.Context, id string, req RequestContext) error {
	if err := s.limiter.Allow(ctx, req.IP, OpDelete); err != nil {
		return err
	}
	if session.ValidateID(id) != nil {
		return nil
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "delete session")
	}
	return nil
}

// Discard removes a session without rate limiting. For internal
// lifecycle transitions, such as retiring a guest session at login.
func (s *SessionService) Discard(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// FindForUser returns the user's most recent live session, or the uniform
// not-found error. Used at login to reuse an existing session instead of
// piling up new ones.
func (s *SessionService) FindForUser(ctx context.Context, userID int64) (*session.Record, error) {
	rec, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, apperrors.NotFound("session not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "find session by user")
	}
	return rec, nil
}
