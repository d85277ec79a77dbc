package httpx

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/leafcart/storefront-api/internal/domain/session"
	"github.com/leafcart/storefront-api/internal/service"
)

type contextKey string

const sessionContextKey contextKey = "session_record"

// Header carrying the session security token, set by clients that hold
// one. The session identifier itself travels in the cookie or the
// Authorization header.
const SecurityTokenHeader = "X-Session-Token"

// SetSessionInContext stores the session record in the request context.
func SetSessionInContext(ctx context.Context, rec *session.Record) context.Context {
	return context.WithValue(ctx, sessionContextKey, rec)
}

// SessionFromContext retrieves the session record from the request
// context, or nil when the request carries none.
func SessionFromContext(ctx context.Context) *session.Record {
	rec, _ := ctx.Value(sessionContextKey).(*session.Record)
	return rec
}

// ClientIP extracts the client address: the X-Real-Ip header, the first
// hop of X-Forwarded-For, then the connection's remote address.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-Ip")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// requestContext builds the service-layer request context from request
// attributes.
func requestContext(r *http.Request) service.RequestContext {
	return service.RequestContext{
		IP:            ClientIP(r),
		UserAgent:     r.UserAgent(),
		SecurityToken: r.Header.Get(SecurityTokenHeader),
	}
}
