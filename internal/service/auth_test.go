package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/leafcart/storefront-api/internal/domain/session"
	apperrors "github.com/leafcart/storefront-api/internal/errors"
	"github.com/leafcart/storefront-api/internal/mocks"
	"github.com/leafcart/storefront-api/internal/mocks/store"
	"github.com/leafcart/storefront-api/internal/ports"
)

type staticRegistrar struct {
	userID int64
	err    error
}

func (r *staticRegistrar) Register(_ context.Context, _ ports.RegisterInput) (int64, error) {
	return r.userID, r.err
}

type authFixture struct {
	auth     *AuthService
	verifier *mocks.MockCredentialVerifier
	products *mocks.MockProductReader
	carts    *mocks.MockCartRepository
	backend  *store.MemorySessionStore
}

func newAuthFixture(t *testing.T, ctrl *gomock.Controller, registrar ports.UserRegistrar) *authFixture {
	t.Helper()

	backend := store.NewMemorySessionStore()
	sessions := newTestSessionService(t, backend)
	migrator, products, carts := newTestMigrator(t, ctrl, backend)
	verifier := mocks.NewMockCredentialVerifier(ctrl)

	auth, err := NewAuthService(AuthServiceOptions{
		Verifier:  verifier,
		Registrar: registrar,
		Sessions:  sessions,
		Migrator:  migrator,
		Logger:    testLogger(),
	})
	require.NoError(t, err)

	return &authFixture{
		auth:     auth,
		verifier: verifier,
		products: products,
		carts:    carts,
		backend:  backend,
	}
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthFixture(t, ctrl, nil)

	f.verifier.EXPECT().Verify(gomock.Any(), "shopper@example.com", "pw").Return(int64(42), nil)

	rec, err := f.auth.Login(context.Background(), LoginInput{
		Email:     "Shopper@Example.com",
		Password:  "pw",
		IP:        "203.0.113.9",
		UserAgent: "shop-web/1.0",
	})
	require.NoError(t, err)
	assert.True(t, rec.IsUser())
	assert.Equal(t, int64(42), rec.UserID)
}

func TestAuthService_LoginBadCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthFixture(t, ctrl, nil)

	f.verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(int64(0), errors.New("bad password"))

	_, err := f.auth.Login(context.Background(), LoginInput{
		Email:    "shopper@example.com",
		Password: "wrong",
	})
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestAuthService_LoginEmptyCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthFixture(t, ctrl, nil)

	_, err := f.auth.Login(context.Background(), LoginInput{})
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestAuthService_LoginMigratesGuestCart(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthFixture(t, ctrl, nil)
	ctx := context.Background()

	guest := storedGuestSession(t, f.backend, session.CartItems{
		"5": {ProductID: 5, Quantity: 2},
	})

	f.verifier.EXPECT().Verify(gomock.Any(), "shopper@example.com", "pw").Return(int64(42), nil)
	f.products.EXPECT().GetByID(gomock.Any(), int64(5)).Return(sellableProduct(5), nil)
	f.carts.EXPECT().GetEntry(gomock.Any(), int64(42), int64(5), gomock.Any()).
		Return(nil, apperrors.NotFound("cart entry not found"))
	f.carts.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)

	rec, err := f.auth.Login(ctx, LoginInput{
		Email:     "shopper@example.com",
		Password:  "pw",
		SessionID: guest.ID,
		IP:        guest.IPAddress,
		UserAgent: guest.UserAgent,
	})
	require.NoError(t, err)
	assert.True(t, rec.IsUser())

	// The guest session is retired once its cart has moved.
	_, err = f.backend.Get(ctx, guest.ID)
	assert.Error(t, err)
}

func TestAuthService_LoginWithoutGuestSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthFixture(t, ctrl, nil)

	f.verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(42), nil)

	rec, err := f.auth.Login(context.Background(), LoginInput{
		Email:    "shopper@example.com",
		Password: "pw",
		IP:       "203.0.113.9",
	})
	require.NoError(t, err)
	assert.True(t, rec.IsUser())
}

func TestAuthService_LoginReusesExistingSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthFixture(t, ctrl, nil)
	ctx := context.Background()

	f.verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(42), nil).Times(2)

	first, err := f.auth.Login(ctx, LoginInput{Email: "shopper@example.com", Password: "pw", IP: "203.0.113.9"})
	require.NoError(t, err)

	second, err := f.auth.Login(ctx, LoginInput{Email: "shopper@example.com", Password: "pw", IP: "203.0.113.9"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthFixture(t, ctrl, &staticRegistrar{userID: 77})

	f.verifier.EXPECT().Verify(gomock.Any(), "new@example.com", "pw").Return(int64(77), nil)

	rec, err := f.auth.Register(context.Background(), RegisterInput{
		Name: "New Shopper",
		Login: LoginInput{
			Email:    "new@example.com",
			Password: "pw",
			IP:       "203.0.113.9",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(77), rec.UserID)
}

func TestAuthService_RegisterUnsupported(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthFixture(t, ctrl, nil)

	_, err := f.auth.Register(context.Background(), RegisterInput{
		Login: LoginInput{Email: "new@example.com", Password: "pw"},
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestAuthService_RegisterMissingFields(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthFixture(t, ctrl, &staticRegistrar{userID: 77})

	_, err := f.auth.Register(context.Background(), RegisterInput{
		Login: LoginInput{Password: "pw"},
	})
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.auth.Register(context.Background(), RegisterInput{
		Login: LoginInput{Email: "new@example.com"},
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestAuthService_Logout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newAuthFixture(t, ctrl, nil)
	ctx := context.Background()

	f.verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(42), nil)

	rec, err := f.auth.Login(ctx, LoginInput{Email: "shopper@example.com", Password: "pw", IP: "203.0.113.9"})
	require.NoError(t, err)

	req := RequestContext{IP: rec.IPAddress, UserAgent: rec.UserAgent}
	require.NoError(t, f.auth.Logout(ctx, rec.ID, req))
	assert.Zero(t, f.backend.Len())

	// Logging out again is fine.
	assert.NoError(t, f.auth.Logout(ctx, rec.ID, req))
}
