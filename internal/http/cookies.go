package httpx

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/leafcart/storefront-api/config"
	"github.com/leafcart/storefront-api/internal/domain/session"
)

// guestCookieMaxAge keeps the guest identifier around well past the
// session itself, so a returning shopper's cart can still be found.
const guestCookieMaxAge = 90 * 24 * time.Hour

// CookieWriter sets and clears the session and guest cookies with
// consistent attributes.
type CookieWriter struct {
	config config.HTTPConfig
	domain string
}

// NewCookieWriter creates a cookie writer for the configured cookie
// domain. A configured domain that is a bare public suffix (such as
// "co.uk") is ignored, since browsers reject such cookies anyway.
func NewCookieWriter(cfg config.HTTPConfig) *CookieWriter {
	return &CookieWriter{config: cfg, domain: safeCookieDomain(cfg.CookieDomain)}
}

func safeCookieDomain(domain string) string {
	d := strings.TrimPrefix(strings.TrimSpace(domain), ".")
	if d == "" {
		return ""
	}
	if suffix, _ := publicsuffix.PublicSuffix(d); suffix == d {
		return ""
	}
	return d
}

// SetSession writes the session identifier cookie with the record's
// remaining lifetime.
func (c *CookieWriter) SetSession(w http.ResponseWriter, r *http.Request, rec *session.Record) {
	c.set(w, r, c.config.SessionCookieName, rec.ID, time.Until(rec.ExpiresAt))
}

// SetGuest writes the long-lived guest identifier cookie.
func (c *CookieWriter) SetGuest(w http.ResponseWriter, r *http.Request, guestID string) {
	c.set(w, r, c.config.GuestCookieName, guestID, guestCookieMaxAge)
}

// ClearSession expires the session cookie.
func (c *CookieWriter) ClearSession(w http.ResponseWriter, r *http.Request) {
	c.clear(w, r, c.config.SessionCookieName)
}

func (c *CookieWriter) set(w http.ResponseWriter, r *http.Request, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

func (c *CookieWriter) clear(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   c.domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
