package store

// Package store contains hand-written in-memory doubles for the session
// and rate-limit store ports. They are lightweight, deterministic, and
// support failure injection for exercising the fail-open paths.

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/leafcart/storefront-api/internal/domain/session"
	"github.com/leafcart/storefront-api/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.SessionStore   = (*MemorySessionStore)(nil)
	_ ports.RateLimitStore = (*MemoryRateLimitStore)(nil)
)

// MemorySessionStore is an in-memory ports.SessionStore. Safe for
// concurrent use. A non-nil Fail* error is returned by the matching
// method instead of touching state.
type MemorySessionStore struct {
	mu      sync.Mutex
	records map[string]*session.Record

	FailSave   error
	FailGet    error
	FailDelete error
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{records: make(map[string]*session.Record)}
}

// Len reports how many records are currently stored.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *MemorySessionStore) Save(_ context.Context, rec *session.Record) error {
	if s.FailSave != nil {
		return s.FailSave
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *rec
	clone.CartItems = rec.CartItems.Clone()
	s.records[rec.ID] = &clone
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (*session.Record, error) {
	if s.FailGet != nil {
		return nil, s.FailGet
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.IsExpired(time.Now()) {
		return nil, ports.ErrNotFound
	}
	clone := *rec
	clone.CartItems = rec.CartItems.Clone()
	return &clone, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	if s.FailDelete != nil {
		return s.FailDelete
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *MemorySessionStore) TouchTTL(_ context.Context, id string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return ports.ErrNotFound
	}
	rec.ExpiresAt = time.Now().Add(ttl)
	return nil
}

func (s *MemorySessionStore) FindByUserID(ctx context.Context, userID int64) (*session.Record, error) {
	s.mu.Lock()
	var newest *session.Record
	for _, rec := range s.records {
		if rec.IsUser() && rec.UserID == userID {
			if newest == nil || rec.CreatedAt.After(newest.CreatedAt) {
				newest = rec
			}
		}
	}
	s.mu.Unlock()
	if newest == nil {
		return nil, ports.ErrNotFound
	}
	return s.Get(ctx, newest.ID)
}

func (s *MemorySessionStore) FindByGuestID(ctx context.Context, guestID string) (*session.Record, error) {
	return s.findGuest(ctx, func(rec *session.Record) bool {
		return rec.GuestID == guestID && guestID != ""
	})
}

func (s *MemorySessionStore) FindByFingerprint(ctx context.Context, fingerprint string) (*session.Record, error) {
	return s.findGuest(ctx, func(rec *session.Record) bool {
		return rec.Fingerprint == fingerprint && fingerprint != ""
	})
}

func (s *MemorySessionStore) findGuest(ctx context.Context, match func(*session.Record) bool) (*session.Record, error) {
	s.mu.Lock()
	var found *session.Record
	for _, rec := range s.records {
		if rec.IsGuest() && match(rec) {
			found = rec
			break
		}
	}
	s.mu.Unlock()
	if found == nil {
		return nil, ports.ErrNotFound
	}
	return s.Get(ctx, found.ID)
}

func (s *MemorySessionStore) CountByUserID(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, rec := range s.records {
		if rec.IsUser() && rec.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *MemorySessionStore) OldestByUserID(_ context.Context, userID int64, n int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var recs []*session.Record
	for _, rec := range s.records {
		if rec.IsUser() && rec.UserID == userID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
	ids := make([]string, 0, n)
	for _, rec := range recs {
		if int64(len(ids)) >= n {
			break
		}
		ids = append(ids, rec.ID)
	}
	return ids, nil
}

func (s *MemorySessionStore) SweepUserIndexes(_ context.Context, _ int) (int64, error) {
	// The map has no separate index to desynchronize.
	return 0, nil
}

// MemoryRateLimitStore is an in-memory ports.RateLimitStore. Safe for
// concurrent use.
type MemoryRateLimitStore struct {
	mu     sync.Mutex
	counts map[string]int64

	FailIncrement error
}

// NewMemoryRateLimitStore creates an empty in-memory counter store.
func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{counts: make(map[string]int64)}
}

func (s *MemoryRateLimitStore) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	if s.FailIncrement != nil {
		return 0, s.FailIncrement
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[key]++
	return s.counts[key], nil
}

func (s *MemoryRateLimitStore) SweepMissingTTL(_ context.Context, _ time.Duration, _ int) (int64, error) {
	return 0, nil
}

// Count returns the current counter for a key, for assertions.
func (s *MemoryRateLimitStore) Count(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key]
}
