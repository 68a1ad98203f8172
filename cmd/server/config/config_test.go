package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:8080", cfg.Address)
	assert.True(t, cfg.Cache.Enabled)
	assert.Empty(t, cfg.Database.Path, "persistence is off by default")
}

func TestValidate_FillsDefaults(t *testing.T) {
	cfg := &Config{Address: ":8080"}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, int64(256*1024*1024), cfg.Cache.MaxBytes)
	assert.Equal(t, 30*time.Second, cfg.Loader.HTTPTimeout)
}

func TestValidate_RequiresAddress(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate())
}

func TestValidate_Auth(t *testing.T) {
	tests := []struct {
		name    string
		auth    AuthConfig
		wantErr bool
	}{
		{"disabled", AuthConfig{}, false},
		{"bearer with tokens", AuthConfig{Enabled: true, Type: "bearer", Tokens: map[string]string{"t": "u"}}, false},
		{"bearer without tokens", AuthConfig{Enabled: true, Type: "bearer"}, true},
		{"jwt with secret", AuthConfig{Enabled: true, Type: "jwt", JWT: JWTConfig{Secret: "s"}}, false},
		{"jwt without secret", AuthConfig{Enabled: true, Type: "jwt"}, true},
		{"unknown type", AuthConfig{Enabled: true, Type: "oauth2"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Address: ":8080", Auth: tt.auth}
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
