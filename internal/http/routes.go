package httpx

import (
	"log/slog"
	"net/http"

	"github.com/leafcart/storefront-api/config"
	"github.com/leafcart/storefront-api/internal/service"
)

// RouterServices holds the services needed by the HTTP router.
type RouterServices struct {
	Sessions *service.SessionService
	Auth     *service.AuthService
	Config   config.HTTPConfig
	Logger   *slog.Logger // Logger for request and panic logging (optional)
}

// NewRouter creates and configures the storefront session API router.
// Every route behind the session middleware is guaranteed a session;
// state-changing routes additionally require the CSRF token.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cookies := NewCookieWriter(services.Config)
	sessionMW := NewSessionMiddleware(SessionMiddlewareOptions{
		Sessions: services.Sessions,
		Cookies:  cookies,
		Logger:   logger,
	})

	sessionHandlers := &SessionHandlers{Sessions: services.Sessions, Cookies: cookies, Logger: logger}
	authHandlers := &AuthHandlers{Auth: services.Auth, Cookies: cookies, Logger: logger}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	api := http.NewServeMux()
	api.HandleFunc("GET /api/session", sessionHandlers.Current)
	api.HandleFunc("PUT /api/session/cart", sessionHandlers.UpdateCart)
	api.HandleFunc("DELETE /api/session", sessionHandlers.Delete)
	api.HandleFunc("POST /api/auth/login", authHandlers.Login)
	api.HandleFunc("POST /api/auth/register", authHandlers.Register)
	api.HandleFunc("POST /api/auth/logout", authHandlers.Logout)

	mux.Handle("/api/", sessionMW.Handler(RequireCSRF(api)))

	var handler http.Handler = mux
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}
