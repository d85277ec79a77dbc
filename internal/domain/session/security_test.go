package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-session-secret"

func TestSecurityToken(t *testing.T) {
	created := time.Unix(1700000000, 0)

	token := SecurityToken(testSecret, "session-1", "203.0.113.7", created)
	require.NotEmpty(t, token)

	// Deterministic for the same inputs.
	assert.Equal(t, token, SecurityToken(testSecret, "session-1", "203.0.113.7", created))

	// Sensitive to every input.
	assert.NotEqual(t, token, SecurityToken(testSecret, "session-2", "203.0.113.7", created))
	assert.NotEqual(t, token, SecurityToken(testSecret, "session-1", "203.0.113.8", created))
	assert.NotEqual(t, token, SecurityToken(testSecret, "session-1", "203.0.113.7", created.Add(time.Second)))
	assert.NotEqual(t, token, SecurityToken("other-secret", "session-1", "203.0.113.7", created))

	// No token without a secret or a usable IP.
	assert.Empty(t, SecurityToken("", "session-1", "203.0.113.7", created))
	assert.Empty(t, SecurityToken(testSecret, "session-1", UnknownIP, created))
}

func TestVerifySecurityToken(t *testing.T) {
	created := time.Unix(1700000000, 0)
	token := SecurityToken(testSecret, "session-1", "203.0.113.7", created)

	assert.True(t, VerifySecurityToken(testSecret, "session-1", "203.0.113.7", created, token))
	assert.False(t, VerifySecurityToken(testSecret, "session-1", "198.51.100.1", created, token))
	assert.False(t, VerifySecurityToken(testSecret, "session-1", "203.0.113.7", created, "forged"))
	assert.False(t, VerifySecurityToken(testSecret, "session-1", "203.0.113.7", created, ""))
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("agent-a", "203.0.113.7")
	require.NotEmpty(t, fp)

	assert.Equal(t, fp, Fingerprint("agent-a", "203.0.113.7"))
	assert.NotEqual(t, fp, Fingerprint("agent-b", "203.0.113.7"))
	assert.NotEqual(t, fp, Fingerprint("agent-a", "203.0.113.8"))

	assert.Empty(t, Fingerprint("", "203.0.113.7"))
	assert.Empty(t, Fingerprint("agent-a", UnknownIP))
}

func TestValidate_Expiry(t *testing.T) {
	rec := validRecord(t)
	rec.ExpiresAt = time.Now().Add(-time.Minute)

	result := Validate(rec, ValidationInput{RequestIP: rec.IPAddress})
	assert.False(t, result.OK)
	assert.Equal(t, "expired", result.Reason)
}

func TestValidate_SecurityToken(t *testing.T) {
	rec := validRecord(t)
	rec.SecurityToken = SecurityToken(testSecret, rec.ID, rec.IPAddress, rec.CreatedAt)

	t.Run("valid token passes", func(t *testing.T) {
		result := Validate(rec, ValidationInput{
			RequestIP:     rec.IPAddress,
			SuppliedToken: rec.SecurityToken,
			RequireToken:  true,
			Secret:        testSecret,
		})
		assert.True(t, result.OK)
	})

	t.Run("token recomputed from different ip fails", func(t *testing.T) {
		result := Validate(rec, ValidationInput{
			RequestIP:     "198.51.100.1",
			SuppliedToken: rec.SecurityToken,
			RequireToken:  true,
			Secret:        testSecret,
		})
		assert.False(t, result.OK)
	})

	t.Run("no supplied token skips the check", func(t *testing.T) {
		result := Validate(rec, ValidationInput{
			RequestIP:    rec.IPAddress,
			RequireToken: true,
			Secret:       testSecret,
		})
		assert.True(t, result.OK)
	})
}

func TestValidate_IPBinding(t *testing.T) {
	rec := validRecord(t)

	t.Run("mismatch fails when enabled", func(t *testing.T) {
		result := Validate(rec, ValidationInput{RequestIP: "198.51.100.1", ValidateIP: true})
		assert.False(t, result.OK)
	})

	t.Run("mismatch passes when disabled", func(t *testing.T) {
		result := Validate(rec, ValidationInput{RequestIP: "198.51.100.1", ValidateIP: false})
		assert.True(t, result.OK)
	})

	t.Run("unknown record ip is exempt", func(t *testing.T) {
		unknown := validRecord(t)
		unknown.IPAddress = UnknownIP
		result := Validate(unknown, ValidationInput{RequestIP: "198.51.100.1", ValidateIP: true})
		assert.True(t, result.OK)
	})

	t.Run("unparseable request ip is exempt", func(t *testing.T) {
		result := Validate(rec, ValidationInput{RequestIP: "garbage", ValidateIP: true})
		assert.True(t, result.OK)
	})
}

func TestValidate_FingerprintAdvisory(t *testing.T) {
	rec := validRecord(t)
	rec.Fingerprint = Fingerprint(rec.UserAgent, rec.IPAddress)

	// A changed user agent flags the mismatch but still validates.
	result := Validate(rec, ValidationInput{
		RequestIP:        rec.IPAddress,
		RequestUserAgent: "different-agent",
	})
	assert.True(t, result.OK)
	assert.True(t, result.FingerprintMismatch)

	// Matching context raises no flag.
	result = Validate(rec, ValidationInput{
		RequestIP:        rec.IPAddress,
		RequestUserAgent: rec.UserAgent,
	})
	assert.True(t, result.OK)
	assert.False(t, result.FingerprintMismatch)
}
