package config

// HTTPConfig contains HTTP server and cookie configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of the application (e.g., "https://shop.example.com").
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// CookieDomain is the domain for session cookies.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// SessionCookieName is the name of the session identifier cookie.
	SessionCookieName string `env:"SESSION_COOKIE_NAME" envDefault:"session_id"`

	// GuestCookieName is the name of the long-lived guest identifier cookie
	// used as the last-resort lookup for guest-cart migration.
	GuestCookieName string `env:"GUEST_COOKIE_NAME" envDefault:"guest_id"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.SessionCookieName == "" {
		h.SessionCookieName = "session_id"
	}
	if h.GuestCookieName == "" {
		h.GuestCookieName = "guest_id"
	}
}
