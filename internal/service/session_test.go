package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafcart/storefront-api/config"
	"github.com/leafcart/storefront-api/internal/domain/session"
	apperrors "github.com/leafcart/storefront-api/internal/errors"
	"github.com/leafcart/storefront-api/internal/mocks/store"
)

const testSecret = "test-session-secret"

func testSessionConfig() config.SessionConfig {
	cfg := config.SessionConfig{
		GuestDuration:      time.Hour,
		UserDuration:       24 * time.Hour,
		RotationInterval:   30 * time.Minute,
		MaxSessionsPerUser: 2,
		RequireToken:       true,
		Secret:             testSecret,
	}
	cfg.Sanitize()
	return cfg
}

func newTestSessionService(t *testing.T, backend *store.MemorySessionStore) *SessionService {
	t.Helper()
	return newTestSessionServiceWithConfig(t, backend, testSessionConfig())
}

func newTestSessionServiceWithConfig(t *testing.T, backend *store.MemorySessionStore, cfg config.SessionConfig) *SessionService {
	t.Helper()
	limiter := newTestLimiter(t, store.NewMemoryRateLimitStore())

	svc, err := NewSessionService(SessionServiceOptions{
		Store:   backend,
		Limiter: limiter,
		Config:  cfg,
		Logger:  testLogger(),
	})
	require.NoError(t, err)
	return svc
}

func guestRequest(rec *session.Record) RequestContext {
	return RequestContext{
		IP:        rec.IPAddress,
		UserAgent: rec.UserAgent,
	}
}

func TestSessionService_CreateGuest(t *testing.T) {
	backend := store.NewMemorySessionStore()
	svc := newTestSessionService(t, backend)

	rec, err := svc.Create(context.Background(), CreateInput{
		IP:        "203.0.113.9",
		UserAgent: "shop-web/1.0",
	})
	require.NoError(t, err)

	assert.NoError(t, session.ValidateID(rec.ID))
	assert.True(t, rec.IsGuest())
	assert.NotEmpty(t, rec.GuestID)
	assert.NotEmpty(t, rec.CSRFToken)
	assert.NotEmpty(t, rec.SecurityToken)
	assert.NotEmpty(t, rec.Fingerprint)
	assert.Empty(t, rec.CartItems)
	assert.NoError(t, rec.Validate())
	assert.Equal(t, 1, backend.Len())
}

func TestSessionService_CreateUser(t *testing.T) {
	backend := store.NewMemorySessionStore()
	svc := newTestSessionService(t, backend)

	rec, err := svc.Create(context.Background(), CreateInput{
		UserID:    7,
		IP:        "203.0.113.9",
		UserAgent: "shop-web/1.0",
	})
	require.NoError(t, err)

	assert.True(t, rec.IsUser())
	assert.Equal(t, int64(7), rec.UserID)
	assert.Empty(t, rec.GuestID)
	// User sessions carry the advisory fingerprint too.
	assert.NotEmpty(t, rec.Fingerprint)
	// User lifetime, not guest lifetime.
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), rec.ExpiresAt, time.Minute)
}

func TestSessionService_CreateUnknownIP(t *testing.T) {
	svc := newTestSessionService(t, store.NewMemorySessionStore())

	rec, err := svc.Create(context.Background(), CreateInput{UserAgent: "shop-web/1.0"})
	require.NoError(t, err)

	assert.Equal(t, session.UnknownIP, rec.IPAddress)
	// No token or fingerprint can be bound to an unknown address.
	assert.Empty(t, rec.SecurityToken)
	assert.Empty(t, rec.Fingerprint)
}

func TestSessionService_CreateDegradedOnStoreFailure(t *testing.T) {
	backend := store.NewMemorySessionStore()
	backend.FailSave = errors.New("connection refused")
	svc := newTestSessionService(t, backend)

	rec, err := svc.Create(context.Background(), CreateInput{IP: "203.0.113.9"})
	require.NoError(t, err)
	assert.NotNil(t, rec)
	assert.Zero(t, backend.Len())
}

func TestSessionService_UserCapEvictsOldest(t *testing.T) {
	backend := store.NewMemorySessionStore()
	svc := newTestSessionService(t, backend)

	base := time.Now().UTC()
	var ids []string
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return at }
		rec, err := svc.Create(context.Background(), CreateInput{
			UserID: 7,
			IP:     "203.0.113.9",
		})
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	count, err := backend.CountByUserID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// The first session was evicted; the later two survive.
	_, err = backend.Get(context.Background(), ids[0])
	assert.Error(t, err)
	_, err = backend.Get(context.Background(), ids[2])
	assert.NoError(t, err)
}

func TestSessionService_GetRoundTrip(t *testing.T) {
	svc := newTestSessionService(t, store.NewMemorySessionStore())
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{IP: "203.0.113.9", UserAgent: "shop-web/1.0"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.ID, guestRequest(created))
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.GuestID, got.GuestID)
}

func TestSessionService_GetRefreshesExpiry(t *testing.T) {
	backend := store.NewMemorySessionStore()
	svc := newTestSessionService(t, backend)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{IP: "203.0.113.9"})
	require.NoError(t, err)

	later := time.Now().Add(20 * time.Minute)
	svc.now = func() time.Time { return later }

	got, err := svc.Get(ctx, created.ID, guestRequest(created))
	require.NoError(t, err)
	assert.WithinDuration(t, later.Add(time.Hour), got.ExpiresAt, time.Second)
}

func TestSessionService_GetUnknownID(t *testing.T) {
	svc := newTestSessionService(t, store.NewMemorySessionStore())

	id, err := session.NewID()
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), id, RequestContext{IP: "203.0.113.9"})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSessionService_GetMalformedID(t *testing.T) {
	svc := newTestSessionService(t, store.NewMemorySessionStore())

	for _, id := range []string{"", "short", "has spaces in the identifier aaaaaaaa"} {
		_, err := svc.Get(context.Background(), id, RequestContext{IP: "203.0.113.9"})
		assert.True(t, apperrors.IsNotFound(err), "id %q", id)
	}
}

func TestSessionService_GetStoreFailureLooksAbsent(t *testing.T) {
	backend := store.NewMemorySessionStore()
	svc := newTestSessionService(t, backend)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{IP: "203.0.113.9", UserAgent: "shop-web/1.0"})
	require.NoError(t, err)

	// A broken store reads the same as no session at all, so the caller
	// falls back to minting a fresh one.
	backend.FailGet = errors.New("connection refused")
	_, err = svc.Get(ctx, created.ID, guestRequest(created))
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSessionService_GetWrongSecurityToken(t *testing.T) {
	svc := newTestSessionService(t, store.NewMemorySessionStore())
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{IP: "203.0.113.9", UserAgent: "shop-web/1.0"})
	require.NoError(t, err)

	req := guestRequest(created)
	req.SecurityToken = "0000000000000000000000000000000000000000000000000000000000000000"
	_, err = svc.Get(ctx, created.ID, req)
	// Indistinguishable from a session that never existed.
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSessionService_GetCorrectSecurityToken(t *testing.T) {
	svc := newTestSessionService(t, store.NewMemorySessionStore())
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{IP: "203.0.113.9", UserAgent: "shop-web/1.0"})
	require.NoError(t, err)

	req := guestRequest(created)
	req.SecurityToken = created.SecurityToken
	_, err = svc.Get(ctx, created.ID, req)
	assert.NoError(t, err)
}

func TestSessionService_GetIPBinding(t *testing.T) {
	cfg := testSessionConfig()
	cfg.ValidateIP = true
	svc := newTestSessionServiceWithConfig(t, store.NewMemorySessionStore(), cfg)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{IP: "203.0.113.9", UserAgent: "shop-web/1.0"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, created.ID, RequestContext{IP: "203.0.113.10", UserAgent: "shop-web/1.0"})
	assert.True(t, apperrors.IsNotFound(err))

	_, err = svc.Get(ctx, created.ID, RequestContext{IP: "203.0.113.9", UserAgent: "shop-web/1.0"})
	assert.NoError(t, err)
}

func TestSessionService_GetRotatesOldSession(t *testing.T) {
	backend := store.NewMemorySessionStore()
	svc := newTestSessionService(t, backend)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{IP: "203.0.113.9", UserAgent: "shop-web/1.0"})
	require.NoError(t, err)

	cart := session.CartItems{
		"5": {ProductID: 5, Quantity: 2},
		"9": {ProductID: 9, Quantity: 1},
	}
	_, err = svc.Update(ctx, created.ID, guestRequest(created), session.Update{CartItems: &cart})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(31 * time.Minute) }

	got, err := svc.Get(ctx, created.ID, guestRequest(created))
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, got.ID)
	assert.Equal(t, created.GuestID, got.GuestID)
	assert.NotEqual(t, created.CSRFToken, got.CSRFToken)
	// The cart survives the identifier swap untouched.
	assert.Equal(t, cart, got.CartItems)

	// The old identifier no longer resolves.
	_, err = svc.Get(ctx, created.ID, guestRequest(created))
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSessionService_GetKeepsYoungSessionID(t *testing.T) {
	svc := newTestSessionService(t, store.NewMemorySessionStore())
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{IP: "203.0.113.9"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.ID, guestRequest(created))
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestSessionService_UpdateCart(t *testing.T) {
	svc := newTestSessionService(t, store.NewMemorySessionStore())
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{IP: "203.0.113.9", UserAgent: "shop-web/1.0"})
	require.NoError(t, err)

	cart := session.CartItems{"5": {ProductID: 5, Quantity: 2}}
	got, err := svc.Update(ctx, created.ID, guestRequest(created), session.Update{CartItems: &cart})
	require.NoError(t, err)
	assert.Equal(t, cart, got.CartItems)

	// The change persisted.
	reloaded, err := svc.Get(ctx, created.ID, guestRequest(created))
	require.NoError(t, err)
	assert.Equal(t, cart, reloaded.CartItems)
}

func TestSessionService_UpdateEmpty(t *testing.T) {
	svc := newTestSessionService(t, store.NewMemorySessionStore())
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{IP: "203.0.113.9"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, guestRequest(created), session.Update{})
	assert.True(t, apperrors.IsValidation(err))
}

func TestSessionService_UpdateUnknownSession(t *testing.T) {
	svc := newTestSessionService(t, store.NewMemorySessionStore())

	id, err := session.NewID()
	require.NoError(t, err)

	ua := "shop-web/2.0"
	_, err = svc.Update(context.Background(), id, RequestContext{IP: "203.0.113.9"}, session.Update{UserAgent: &ua})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSessionService_DeleteIdempotent(t *testing.T) {
	backend := store.NewMemorySessionStore()
	svc := newTestSessionService(t, backend)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{IP: "203.0.113.9"})
	require.NoError(t, err)

	req := guestRequest(created)
	require.NoError(t, svc.Delete(ctx, created.ID, req))
	assert.Zero(t, backend.Len())

	// Again, and with garbage input.
	assert.NoError(t, svc.Delete(ctx, created.ID, req))
	assert.NoError(t, svc.Delete(ctx, "not-a-session-id", req))
}

func TestSessionService_AccessRateLimited(t *testing.T) {
	svc := newTestSessionService(t, store.NewMemorySessionStore())
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{IP: "203.0.113.9"})
	require.NoError(t, err)

	req := guestRequest(created)
	for i := 0; i < 3; i++ {
		_, err := svc.Get(ctx, created.ID, req)
		require.NoError(t, err)
	}

	_, err = svc.Get(ctx, created.ID, req)
	assert.True(t, apperrors.IsRateLimited(err))
}

func TestSessionService_FindForUser(t *testing.T) {
	svc := newTestSessionService(t, store.NewMemorySessionStore())
	ctx := context.Background()

	_, err := svc.FindForUser(ctx, 7)
	assert.True(t, apperrors.IsNotFound(err))

	created, err := svc.Create(ctx, CreateInput{UserID: 7, IP: "203.0.113.9"})
	require.NoError(t, err)

	found, err := svc.FindForUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestSessionService_ReloadedConfigApplies(t *testing.T) {
	provider := config.NewProvider(config.AppConfig{
		Session:   testSessionConfig(),
		RateLimit: testRateLimitConfig(),
	})

	svc, err := NewSessionService(SessionServiceOptions{
		Store:    store.NewMemorySessionStore(),
		Limiter:  newTestLimiter(t, store.NewMemoryRateLimitStore()),
		Provider: provider,
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	ctx := context.Background()

	before, err := svc.Create(ctx, CreateInput{IP: "203.0.113.9"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), before.ExpiresAt, time.Minute)

	t.Setenv("SESSION_GUEST_DURATION", "2h")
	t.Setenv("SESSION_SECRET", testSecret)
	require.NoError(t, provider.Reload())

	// The new lifetime applies on the next operation, no rebuild needed.
	after, err := svc.Create(ctx, CreateInput{IP: "203.0.113.9"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), after.ExpiresAt, time.Minute)
}
