// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validViper() *viper.Viper {
	v := viper.New()
	v.Set("endpoints.allowed_options", "https://admin.example.com/api/allowed-options/")
	v.Set("endpoints.assigned_roles", "https://admin.example.com/api/assigned-roles/")
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(validViper())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "formsync", cfg.Logger.ServiceName)
	assert.Equal(t, 10*time.Second, cfg.Endpoints.RequestTimeout)
	assert.Equal(t, 10, cfg.Poller.DiscoveryAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Poller.DiscoveryInterval)
	assert.Equal(t, 25, cfg.Poller.FieldAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Poller.FieldInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.Watcher.Debounce)
	assert.NotEmpty(t, cfg.Selectors.Owner)
	assert.NotEmpty(t, cfg.Selectors.OptionInputs)
}

func TestLoad_MissingEndpoint(t *testing.T) {
	v := viper.New()
	v.Set("endpoints.allowed_options", "https://admin.example.com/api/allowed-options/")
	// assigned_roles intentionally absent.
	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoints.assigned_roles")
}

func TestLoad_RelativeEndpointRejected(t *testing.T) {
	v := validViper()
	v.Set("endpoints.allowed_options", "/api/allowed-options/")
	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absolute URL")
}

func TestLoad_OverridesApplied(t *testing.T) {
	v := validViper()
	v.Set("poller.discovery_attempts", 3)
	v.Set("selectors.owner", "#id_utilisateur")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Poller.DiscoveryAttempts)
	assert.Equal(t, "#id_utilisateur", cfg.Selectors.Owner)
}

func TestValidate_BadPollerAttempts(t *testing.T) {
	cfg, err := Load(validViper())
	require.NoError(t, err)

	cfg.Poller.FieldAttempts = 0
	assert.Error(t, cfg.Validate())
}

func TestNewDefault_PanicsNever(t *testing.T) {
	cfg := NewDefault()
	require.NotNil(t, cfg)
	// Endpoint URLs are intentionally unset in the pure-default config.
	assert.Empty(t, cfg.Endpoints.AllowedOptions)
}
