package httpx

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/leafcart/storefront-api/internal/domain/session"
	apperrors "github.com/leafcart/storefront-api/internal/errors"
	"github.com/leafcart/storefront-api/internal/service"
)

// SessionMiddlewareOptions groups dependencies for SessionMiddleware.
type SessionMiddlewareOptions struct {
	Sessions *service.SessionService
	Cookies  *CookieWriter
	Logger   *slog.Logger
}

// SessionMiddleware resolves the request's session and guarantees every
// storefront request has one: a presented identifier is validated and
// refreshed, anything else gets a fresh guest session. The current record
// is placed in the request context.
type SessionMiddleware struct {
	sessions *service.SessionService
	cookies  *CookieWriter
	logger   *slog.Logger
}

// NewSessionMiddleware constructs a SessionMiddleware.
func NewSessionMiddleware(opts SessionMiddlewareOptions) *SessionMiddleware {
	return &SessionMiddleware{
		sessions: opts.Sessions,
		cookies:  opts.Cookies,
		logger:   opts.Logger,
	}
}

// Handler wraps next with session resolution.
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := m.resolveSessionID(r)

		rec, handled := m.lookup(w, r, presented)
		if handled {
			return
		}

		if rec == nil {
			created, err := m.sessions.Create(r.Context(), service.CreateInput{
				GuestID:   m.guestID(r),
				IP:        ClientIP(r),
				UserAgent: r.UserAgent(),
			})
			if err != nil {
				WriteAppError(w, apperrors.Wrap(err, apperrors.ErrCodeInternal, "create session"))
				return
			}
			rec = created
		}

		if rec.ID != presented {
			m.cookies.SetSession(w, r, rec)
		}
		if rec.IsGuest() && m.guestID(r) != rec.GuestID {
			m.cookies.SetGuest(w, r, rec.GuestID)
		}

		next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), rec)))
	})
}

// lookup validates a presented identifier. A nil record with handled
// false means the caller should mint a guest session; handled true means
// a response (rate-limit rejection) was already written.
func (m *SessionMiddleware) lookup(w http.ResponseWriter, r *http.Request, id string) (*session.Record, bool) {
	if id == "" {
		return nil, false
	}

	rec, err := m.sessions.Get(r.Context(), id, requestContext(r))
	if err != nil {
		if apperrors.IsRateLimited(err) {
			WriteAppError(w, err)
			return nil, true
		}
		// Absent or invalid; a fresh guest session replaces it.
		return nil, false
	}
	return rec, false
}

// resolveSessionID reads the session identifier from the cookie, falling
// back to an "Authorization: Session <id>" header for cookie-less API
// clients.
func (m *SessionMiddleware) resolveSessionID(r *http.Request) string {
	if c, err := r.Cookie(m.cookies.config.SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if scheme, id, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Session") {
		return strings.TrimSpace(id)
	}
	return ""
}

func (m *SessionMiddleware) guestID(r *http.Request) string {
	if c, err := r.Cookie(m.cookies.config.GuestCookieName); err == nil {
		return c.Value
	}
	return ""
}
