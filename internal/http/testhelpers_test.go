package httpx

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/leafcart/storefront-api/config"
	"github.com/leafcart/storefront-api/internal/mocks"
	"github.com/leafcart/storefront-api/internal/mocks/store"
	"github.com/leafcart/storefront-api/internal/service"
)

type routerFixture struct {
	handler  http.Handler
	backend  *store.MemorySessionStore
	verifier *mocks.MockCredentialVerifier
	products *mocks.MockProductReader
	carts    *mocks.MockCartRepository
}

func newRouterFixture(t *testing.T, ctrl *gomock.Controller) *routerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	backend := store.NewMemorySessionStore()

	limiter, err := service.NewRateLimiter(service.RateLimiterOptions{
		Store: store.NewMemoryRateLimitStore(),
		Config: config.RateLimitConfig{
			Window:      time.Minute,
			AccessLimit: 1000,
			UpdateLimit: 1000,
			DeleteLimit: 1000,
		},
		Logger: logger,
	})
	require.NoError(t, err)

	sessions, err := service.NewSessionService(service.SessionServiceOptions{
		Store:   backend,
		Limiter: limiter,
		Config: config.SessionConfig{
			GuestDuration:      time.Hour,
			UserDuration:       24 * time.Hour,
			RotationInterval:   30 * time.Minute,
			MaxSessionsPerUser: 5,
			RequireToken:       true,
			Secret:             "router-test-secret",
		},
		Logger: logger,
	})
	require.NoError(t, err)

	products := mocks.NewMockProductReader(ctrl)
	carts := mocks.NewMockCartRepository(ctrl)
	migrator, err := service.NewCartMigrator(service.CartMigratorOptions{
		Products: products,
		Carts:    carts,
		Sessions: backend,
		Logger:   logger,
	})
	require.NoError(t, err)

	verifier := mocks.NewMockCredentialVerifier(ctrl)
	auth, err := service.NewAuthService(service.AuthServiceOptions{
		Verifier: verifier,
		Sessions: sessions,
		Migrator: migrator,
		Logger:   logger,
	})
	require.NoError(t, err)

	handler := NewRouter(RouterServices{
		Sessions: sessions,
		Auth:     auth,
		Config: config.HTTPConfig{
			SessionCookieName: "session_id",
			GuestCookieName:   "guest_id",
		},
		Logger: logger,
	})

	return &routerFixture{
		handler:  handler,
		backend:  backend,
		verifier: verifier,
		products: products,
		carts:    carts,
	}
}

// bootstrapSession performs the initial GET that mints a guest session,
// returning the parsed session view and the cookies to carry forward.
func (f *routerFixture) bootstrapSession(t *testing.T) (sessionView, []*http.Cookie) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("User-Agent", "shop-web/1.0")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var view sessionView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	return view, rr.Result().Cookies()
}

func attachCookies(req *http.Request, cookies []*http.Cookie) {
	for _, c := range cookies {
		if c.MaxAge >= 0 {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
}

func cookieValue(cookies []*http.Cookie, name string) string {
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
