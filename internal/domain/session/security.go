package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// idRandomBytes yields a 64-character URL-safe identifier after encoding.
const idRandomBytes = 48

// NewID generates a cryptographically random session identifier.
func NewID() (string, error) {
	var buf [idRandomBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}

// NewCSRFToken generates a random per-session CSRF token.
func NewCSRFToken() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}

// SecurityToken computes the HMAC binding a session ID to the client IP
// and creation time. An empty secret or unknown IP yields no token.
func SecurityToken(secret, id, ip string, createdAt time.Time) string {
	if secret == "" || ip == "" || ip == UnknownIP {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(id))
	mac.Write([]byte(":"))
	mac.Write([]byte(ip))
	mac.Write([]byte(":"))
	mac.Write([]byte(strconv.FormatInt(createdAt.Unix(), 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySecurityToken recomputes the token for the request IP and compares
// in constant time.
func VerifySecurityToken(secret, id, requestIP string, createdAt time.Time, supplied string) bool {
	expected := SecurityToken(secret, id, requestIP, createdAt)
	if expected == "" || supplied == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) == 1
}

// Fingerprint hashes the user agent and IP into a short request
// fingerprint. It is a soft signal only; see Validate.
func Fingerprint(userAgent, ip string) string {
	if userAgent == "" || ip == "" || ip == UnknownIP {
		return ""
	}
	sum := xxhash.Sum64String(userAgent + "|" + ip)
	return strconv.FormatUint(sum, 16)
}

// ValidationInput carries the per-request context checked against a record.
type ValidationInput struct {
	RequestIP        string
	RequestUserAgent string
	SuppliedToken    string
	Now              time.Time

	// Policy flags, supplied from configuration.
	RequireToken bool
	ValidateIP   bool
	Secret       string
}

// ValidationResult reports the outcome of validating a record.
// Reason is for internal logging only; callers surface all failures
// uniformly as "session absent" so the failing check is not leaked.
type ValidationResult struct {
	OK     bool
	Reason string

	// FingerprintMismatch flags a possible hijack indicator. It never
	// fails validation on its own.
	FingerprintMismatch bool
}

// Validate runs the security checks against a record in order: expiry,
// security token, IP binding, then the advisory fingerprint comparison.
func Validate(r *Record, in ValidationInput) ValidationResult {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	if r.IsExpired(now) {
		return ValidationResult{Reason: "expired"}
	}

	if in.RequireToken && in.SuppliedToken != "" {
		if !VerifySecurityToken(in.Secret, r.ID, in.RequestIP, r.CreatedAt, in.SuppliedToken) {
			return ValidationResult{Reason: "security token mismatch"}
		}
	}

	if in.ValidateIP && bindableIP(r.IPAddress) && bindableIP(in.RequestIP) {
		if r.IPAddress != in.RequestIP {
			return ValidationResult{Reason: "ip address mismatch"}
		}
	}

	result := ValidationResult{OK: true}
	if r.Fingerprint != "" {
		if fp := Fingerprint(in.RequestUserAgent, in.RequestIP); fp != "" && fp != r.Fingerprint {
			result.FingerprintMismatch = true
		}
	}
	return result
}

// bindableIP reports whether the address participates in the hard
// IP-binding check.
func bindableIP(addr string) bool {
	return addr != "" && addr != UnknownIP && NormalizeIP(addr) == addr
}
