package redis

// Package redis provides Redis-based adapters for the storefront session core.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leafcart/storefront-api/internal/domain/session"
	"github.com/leafcart/storefront-api/internal/ports"
)

const (
	sessionKeyPrefix     = "session:"
	userIndexKeyPrefix   = "session_user:"
	guestIndexKeyPrefix  = "session_guest:"
	fingerprintKeyPrefix = "session_fp:"
)

// SessionStore is a Redis-based session store for production use.
// TTL semantics follow the record's ExpiresAt. Beside the primary
// session:{id} key it maintains a per-user sorted set scored by creation
// time (for the per-user cap and login reuse) and guest/fingerprint
// pointer keys (for cart-migration discovery).
type SessionStore struct {
	client redis.UniversalClient
}

// NewSessionStore creates a new Redis-based session store.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return &SessionStore{client: client}
}

var _ ports.SessionStore = (*SessionStore)(nil)

func (s *SessionStore) Save(ctx context.Context, rec *session.Record) error {
	if rec == nil || rec.ID == "" {
		return errors.New("session record with ID is required")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		// Session is already expired, don't save it
		return errors.New("session is expired")
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+rec.ID, data, ttl)

	switch {
	case rec.IsUser():
		userKey := userIndexKeyPrefix + formatUserID(rec.UserID)
		pipe.ZAdd(ctx, userKey, redis.Z{
			Score:  float64(rec.CreatedAt.Unix()),
			Member: rec.ID,
		})
		// The index outlives individual members; sweep removes orphans.
		pipe.Expire(ctx, userKey, ttl)
	case rec.GuestID != "":
		pipe.Set(ctx, guestIndexKeyPrefix+rec.GuestID, rec.ID, ttl)
	}

	if rec.IsGuest() && rec.Fingerprint != "" {
		pipe.Set(ctx, fingerprintKeyPrefix+rec.Fingerprint, rec.ID, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*session.Record, error) {
	if id == "" {
		return nil, ports.ErrNotFound
	}

	data, err := s.client.Get(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec session.Record
	if unmarshalErr := json.Unmarshal([]byte(data), &rec); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}
	if rec.CartItems == nil {
		rec.CartItems = session.CartItems{}
	}

	// Double-check expiration (Redis TTL should handle this, but be defensive)
	if rec.IsExpired(time.Now()) {
		if deleteErr := s.Delete(ctx, id); deleteErr != nil {
			return nil, fmt.Errorf("cleanup expired session: %w", deleteErr)
		}
		return nil, ports.ErrNotFound
	}

	return &rec, nil
}

// delPointerIfOwned removes a guest/fingerprint pointer key only when it
// still points at the session being deleted. Rotation re-points these
// keys at the successor before the old record is removed; an
// unconditional DEL here would sever them.
var delPointerIfOwned = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil // Nothing to delete
	}

	// Load first so index entries can be removed alongside the record.
	rec, err := s.rawGet(ctx, id)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKeyPrefix+id)
	if rec != nil && rec.IsUser() {
		pipe.ZRem(ctx, userIndexKeyPrefix+formatUserID(rec.UserID), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}

	if rec != nil {
		if rec.GuestID != "" {
			if err := s.dropPointer(ctx, guestIndexKeyPrefix+rec.GuestID, id); err != nil {
				return err
			}
		}
		if rec.Fingerprint != "" && rec.IsGuest() {
			if err := s.dropPointer(ctx, fingerprintKeyPrefix+rec.Fingerprint, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SessionStore) dropPointer(ctx context.Context, key, id string) error {
	if err := delPointerIfOwned.Run(ctx, s.client, []string{key}, id).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis delete pointer %s: %w", key, err)
	}
	return nil
}

func (s *SessionStore) TouchTTL(ctx context.Context, id string, ttl time.Duration) error {
	if id == "" {
		return ports.ErrNotFound
	}
	ok, err := s.client.Expire(ctx, sessionKeyPrefix+id, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis expire: %w", err)
	}
	if !ok {
		return ports.ErrNotFound
	}
	return nil
}

func (s *SessionStore) FindByUserID(ctx context.Context, userID int64) (*session.Record, error) {
	key := userIndexKeyPrefix + formatUserID(userID)

	// Newest first; skip index members whose session key already expired.
	ids, err := s.client.ZRevRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange: %w", err)
	}

	for _, id := range ids {
		rec, getErr := s.Get(ctx, id)
		if getErr == nil {
			return rec, nil
		}
		if errors.Is(getErr, ports.ErrNotFound) {
			// Orphaned index member; drop it and keep looking.
			_ = s.client.ZRem(ctx, key, id).Err()
			continue
		}
		return nil, getErr
	}
	return nil, ports.ErrNotFound
}

func (s *SessionStore) FindByGuestID(ctx context.Context, guestID string) (*session.Record, error) {
	if guestID == "" {
		return nil, ports.ErrNotFound
	}
	return s.resolvePointer(ctx, guestIndexKeyPrefix+guestID)
}

func (s *SessionStore) FindByFingerprint(ctx context.Context, fingerprint string) (*session.Record, error) {
	if fingerprint == "" {
		return nil, ports.ErrNotFound
	}
	return s.resolvePointer(ctx, fingerprintKeyPrefix+fingerprint)
}

func (s *SessionStore) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	count, err := s.client.ZCard(ctx, userIndexKeyPrefix+formatUserID(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcard: %w", err)
	}
	return count, nil
}

func (s *SessionStore) OldestByUserID(ctx context.Context, userID int64, n int64) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	ids, err := s.client.ZRange(ctx, userIndexKeyPrefix+formatUserID(userID), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange: %w", err)
	}
	return ids, nil
}

// SweepUserIndexes scans the per-user indexes and removes members whose
// session key has expired. It is called by the cleanup task; regular
// operation also self-heals lazily in FindByUserID.
func (s *SessionStore) SweepUserIndexes(ctx context.Context, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	var removed int64
	iter := s.client.Scan(ctx, 0, userIndexKeyPrefix+"*", int64(batchSize)).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ids, err := s.client.ZRange(ctx, key, 0, -1).Result()
		if err != nil {
			return removed, fmt.Errorf("redis zrange %s: %w", key, err)
		}
		for _, id := range ids {
			exists, err := s.client.Exists(ctx, sessionKeyPrefix+id).Result()
			if err != nil {
				return removed, fmt.Errorf("redis exists: %w", err)
			}
			if exists == 0 {
				n, err := s.client.ZRem(ctx, key, id).Result()
				if err != nil {
					return removed, fmt.Errorf("redis zrem: %w", err)
				}
				removed += n
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan: %w", err)
	}
	return removed, nil
}

// rawGet fetches and decodes without the defensive expiry cleanup,
// for internal bookkeeping paths.
func (s *SessionStore) rawGet(ctx context.Context, id string) (*session.Record, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var rec session.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &rec, nil
}

// resolvePointer follows a guest/fingerprint pointer key to its session,
// dropping the pointer when it dangles.
func (s *SessionStore) resolvePointer(ctx context.Context, key string) (*session.Record, error) {
	id, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("redis get pointer: %w", err)
	}

	rec, err := s.Get(ctx, id)
	if errors.Is(err, ports.ErrNotFound) {
		_ = s.client.Del(ctx, key).Err()
		return nil, ports.ErrNotFound
	}
	return rec, err
}

func formatUserID(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
