package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[ServiceMode]bool
		wantErr bool
	}{
		{
			name:  "single service",
			input: "http",
			want:  map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:  "multiple services",
			input: "http,cleanup",
			want:  map[ServiceMode]bool{ServiceModeHTTP: true, ServiceModeCleanup: true},
		},
		{
			name:  "whitespace tolerated",
			input: " http , cleanup ",
			want:  map[ServiceMode]bool{ServiceModeHTTP: true, ServiceModeCleanup: true},
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "unknown service",
			input:   "http,notifications",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseServices(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSessionConfig_Sanitize(t *testing.T) {
	cfg := SessionConfig{}
	cfg.Sanitize()

	assert.Equal(t, 24*time.Hour, cfg.GuestDuration)
	assert.Equal(t, 720*time.Hour, cfg.UserDuration)
	assert.Equal(t, 30*time.Minute, cfg.RotationInterval)
	assert.Equal(t, 5, cfg.MaxSessionsPerUser)
}

func TestSessionConfig_Duration(t *testing.T) {
	cfg := SessionConfig{
		GuestDuration: time.Hour,
		UserDuration:  48 * time.Hour,
	}

	assert.Equal(t, 48*time.Hour, cfg.Duration(true))
	assert.Equal(t, time.Hour, cfg.Duration(false))
}

func TestRateLimitConfig_Sanitize(t *testing.T) {
	cfg := RateLimitConfig{Window: time.Millisecond, AccessLimit: -1}
	cfg.Sanitize()

	assert.Equal(t, time.Minute, cfg.Window)
	assert.Equal(t, 120, cfg.AccessLimit)
	assert.Equal(t, 60, cfg.UpdateLimit)
	assert.Equal(t, 30, cfg.DeleteLimit)
}

func TestCleanupConfig_Sanitize(t *testing.T) {
	cfg := CleanupConfig{Interval: time.Second}
	cfg.Sanitize()

	assert.Equal(t, time.Hour, cfg.Interval)
	assert.Equal(t, 500, cfg.BatchSize)
}

func TestAuthMode_UnmarshalText(t *testing.T) {
	var m AuthMode
	require.NoError(t, m.UnmarshalText([]byte("OIDC")))
	assert.Equal(t, AuthModeOIDC, m)

	require.NoError(t, m.UnmarshalText([]byte("mock")))
	assert.Equal(t, AuthModeMock, m)

	assert.Error(t, m.UnmarshalText([]byte("saml")))
}

func TestProvider_SnapshotAndReload(t *testing.T) {
	cfg := AppConfig{Services: "http"}
	cfg.Sanitize()

	p := NewProvider(cfg)
	snap := p.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "http", snap.Services)

	t.Setenv("SESSION_MAX_PER_USER", "3")
	require.NoError(t, p.Reload())
	assert.Equal(t, 3, p.Snapshot().Session.MaxSessionsPerUser)
}
