package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadFrom("does-not-exist.yaml")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2190, cfg.Compliance.AuditRetentionDays)
	assert.Equal(t, 72*time.Hour, cfg.Compliance.BreachNotificationWindow)
	assert.Equal(t, 30, cfg.Compliance.DSARResponseDays)
	assert.Equal(t, 60, cfg.Compliance.DSARExtensionDays)
	assert.Equal(t, "https://transaction-engine.tax.service.gov.uk", cfg.HMRC.BaseURL)
	assert.Equal(t, 24*time.Hour, cfg.Sweeper.Interval)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("PCB_SERVER_PORT", "9090")
	t.Setenv("PCB_LOG_LEVEL", "debug")
	t.Setenv("PCB_HMRC_TIMEOUT", "90s")

	cfg, err := LoadFrom("does-not-exist.yaml")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 90*time.Second, cfg.HMRC.Timeout)
}
