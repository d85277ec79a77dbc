package httpx

import (
	"crypto/subtle"
	"errors"
	"net/http"
)

// CSRFHeaderName is the request header checked on state-changing methods.
const CSRFHeaderName = "X-Csrf-Token"

// RequireCSRF validates the per-session CSRF token on state-changing
// requests. The expected token lives in the session record placed in the
// context by SessionMiddleware; clients read it from the session payload
// and echo it in the header. GET, HEAD, and OPTIONS are exempt.
func RequireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requiresCSRFValidation(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		rec := SessionFromContext(r.Context())
		if rec == nil || rec.CSRFToken == "" {
			writeCSRFFailure(w)
			return
		}

		supplied := r.Header.Get(CSRFHeaderName)
		if supplied == "" {
			supplied = r.PostFormValue("csrf_token")
		}
		if subtle.ConstantTimeCompare([]byte(rec.CSRFToken), []byte(supplied)) != 1 {
			writeCSRFFailure(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requiresCSRFValidation(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

func writeCSRFFailure(w http.ResponseWriter) {
	WriteError(w, ErrorParams{
		Code:    http.StatusForbidden,
		ErrCode: "csrf_validation_failed",
		Err:     errors.New("missing or invalid CSRF token"),
	})
}
