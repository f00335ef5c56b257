// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "pilot-cli", cfg.Logger.ServiceName)

	assert.Equal(t, "computer-use-preview", cfg.Model.Name)
	assert.Equal(t, 3, cfg.Model.MaxRetries)
	assert.Equal(t, 60.0, cfg.Model.RequestsPerMinute)

	assert.Equal(t, ComputerBrowser, cfg.Computer.Kind)
	assert.Equal(t, 1024, cfg.Computer.DisplayWidth)
	assert.Equal(t, 768, cfg.Computer.DisplayHeight)
	assert.True(t, cfg.Computer.Browser.Headless)
	assert.Equal(t, "https://bing.com", cfg.Computer.Browser.StartURL)
	assert.Equal(t, 90*time.Second, cfg.Computer.Browser.NavigationTimeout)

	assert.Equal(t, ":3333", cfg.Server.Addr)
	assert.Equal(t, int64(4194304), cfg.Server.MaxMessageSize)
	assert.Equal(t, 10*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.PongTimeout)

	assert.Empty(t, cfg.Safety.BlockedDomains)
	assert.False(t, cfg.Safety.AutoAcknowledge)
}

func TestGetFallsBackToDefaults(t *testing.T) {
	globalConfig.Store(nil)
	cfg := Get()
	require.NotNil(t, cfg)
	assert.Equal(t, ComputerBrowser, cfg.Computer.Kind)

	// Set replaces the process-wide configuration.
	custom := NewDefaultConfig()
	custom.Computer.Kind = ComputerSandbox
	Set(custom)
	assert.Equal(t, ComputerSandbox, Get().Computer.Kind)
}
