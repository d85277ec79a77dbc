package devauth

// Package devauth provides a static credential verifier and registrar for
// local development. Never wire it in production; bootstrap refuses the
// mock auth mode outside dev.

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"sync"

	"github.com/leafcart/storefront-api/config"
	"github.com/leafcart/storefront-api/internal/ports"
)

// Static verifies one fixed identity and hands out incrementing user IDs
// for registrations.
type Static struct {
	mu       sync.Mutex
	accounts map[string]account
	nextID   int64
}

type account struct {
	id       int64
	password string
}

var (
	_ ports.CredentialVerifier = (*Static)(nil)
	_ ports.UserRegistrar      = (*Static)(nil)
)

// New creates a static verifier seeded with the configured dev identity.
func New(cfg config.DevAuthConfig) *Static {
	s := &Static{
		accounts: make(map[string]account),
		nextID:   cfg.UserID + 1,
	}
	s.accounts[strings.ToLower(cfg.Email)] = account{id: cfg.UserID, password: cfg.Password}
	return s
}

// Verify checks the credentials against the seeded and registered accounts.
func (s *Static) Verify(_ context.Context, email, password string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[strings.ToLower(email)]
	if !ok {
		return 0, errors.New("unknown account")
	}
	if subtle.ConstantTimeCompare([]byte(acct.password), []byte(password)) != 1 {
		return 0, errors.New("wrong password")
	}
	return acct.id, nil
}

// Register creates an in-memory account with the next free user ID.
func (s *Static) Register(_ context.Context, in ports.RegisterInput) (int64, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return 0, errors.New("email and password are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[email]; exists {
		return 0, errors.New("account already exists")
	}
	id := s.nextID
	s.nextID++
	s.accounts[email] = account{id: id, password: in.Password}
	return id, nil
}
