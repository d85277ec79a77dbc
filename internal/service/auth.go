package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/leafcart/storefront-api/internal/domain/session"
	apperrors "github.com/leafcart/storefront-api/internal/errors"
	"github.com/leafcart/storefront-api/internal/ports"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Verifier  ports.CredentialVerifier // Required: credential check
	Registrar ports.UserRegistrar      // Optional: account creation
	Sessions  *SessionService          // Required: session lifecycle
	Migrator  *CartMigrator            // Required: guest cart migration
	Logger    *slog.Logger             // Optional: structured logger
}

// AuthService orchestrates login, registration, and logout: verifying
// credentials with the auth collaborator, establishing the user session,
// and folding the shopper's guest cart into their account.
type AuthService struct {
	verifier  ports.CredentialVerifier
	registrar ports.UserRegistrar
	sessions  *SessionService
	migrator  *CartMigrator
	logger    *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.Verifier == nil {
		return nil, apperrors.Internal("CredentialVerifier is required")
	}
	if opts.Sessions == nil {
		return nil, apperrors.Internal("SessionService is required")
	}
	if opts.Migrator == nil {
		return nil, apperrors.Internal("CartMigrator is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "auth_service")
	}

	return &AuthService{
		verifier:  opts.Verifier,
		registrar: opts.Registrar,
		sessions:  opts.Sessions,
		migrator:  opts.Migrator,
		logger:    logger,
	}, nil
}

// LoginInput groups parameters for a login attempt. The session and guest
// fields describe whatever anonymous state the request carried.
type LoginInput struct {
	Email    string
	Password string

	SessionID string
	GuestID   string
	IP        string
	UserAgent string
}

// Login verifies the credentials, establishes a user session, and
// migrates any guest cart found for the request. Credential failures are
// reported uniformly without distinguishing unknown email from wrong
// password.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*session.Record, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || in.Password == "" {
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	userID, err := s.verifier.Verify(ctx, email, in.Password)
	if err != nil {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "login rejected", "email", email)
		}
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	// Locate the guest session before the user session replaces it.
	guest, lookupErr := s.migrator.FindGuestSession(ctx, GuestLookupInput{
		SessionID: in.SessionID,
		GuestID:   in.GuestID,
		IP:        in.IP,
		UserAgent: in.UserAgent,
	})
	if lookupErr != nil && !apperrors.IsNotFound(lookupErr) {
		// Login proceeds without migration; the guest cart stays behind
		// under its own TTL.
		if s.logger != nil {
			s.logger.WarnContext(ctx, "guest session lookup failed", "error", lookupErr)
		}
		guest = nil
	}

	rec, err := s.establishUserSession(ctx, userID, in)
	if err != nil {
		return nil, err
	}

	if guest != nil {
		if _, err := s.migrator.Migrate(ctx, guest, userID); err != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "cart migration failed",
					"user_id", userID, "error", err)
			}
		}
		if err := s.sessions.Discard(ctx, guest.ID); err != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "guest session not removed after login",
					"session_id", guest.ID, "error", err)
			}
		}
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "login succeeded", "user_id", userID)
	}
	return rec, nil
}

// establishUserSession reuses the user's most recent live session when
// one exists, otherwise creates a fresh one.
func (s *AuthService) establishUserSession(ctx context.Context, userID int64, in LoginInput) (*session.Record, error) {
	if rec, err := s.sessions.FindForUser(ctx, userID); err == nil {
		return rec, nil
	} else if !apperrors.IsNotFound(err) {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "session reuse lookup failed",
				"user_id", userID, "error", err)
		}
	}
	return s.sessions.Create(ctx, CreateInput{
		UserID:    userID,
		IP:        in.IP,
		UserAgent: in.UserAgent,
	})
}

// RegisterInput groups parameters for account creation plus the login
// context used to establish the first session.
type RegisterInput struct {
	Name  string
	Login LoginInput
}

// Register creates the account and logs the new user in, migrating any
// guest cart the same way Login does.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*session.Record, error) {
	if s.registrar == nil {
		return nil, apperrors.Validation("registration is not supported by the configured auth provider")
	}

	email := strings.TrimSpace(strings.ToLower(in.Login.Email))
	if email == "" {
		return nil, apperrors.ValidationField("email", "email is required")
	}
	if in.Login.Password == "" {
		return nil, apperrors.ValidationField("password", "password is required")
	}

	if _, err := s.registrar.Register(ctx, ports.RegisterInput{
		Email:    email,
		Password: in.Login.Password,
		Name:     in.Name,
	}); err != nil {
		return nil, err
	}

	return s.Login(ctx, in.Login)
}

// Logout deletes the presented session. Missing or malformed sessions
// log out successfully.
func (s *AuthService) Logout(ctx context.Context, sessionID string, req RequestContext) error {
	return s.sessions.Delete(ctx, sessionID, req)
}
