package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	require.Equal(t, 3, cfg.MaxQueueDepth)
	require.Equal(t, 5*time.Minute, cfg.NotifyTimeout)
	require.Equal(t, 30*time.Second, cfg.SweepInterval)
	require.Equal(t, time.Hour, cfg.StateTTL)
	require.Equal(t, ":8082", cfg.Port)
}

func TestNewConfigEnvOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "test-token")
	t.Setenv("DRIVERS_GROUP_ID", "-1001234567890")
	t.Setenv("MAX_QUEUE_DEPTH", "5")
	t.Setenv("NOTIFY_TIMEOUT", "2m")
	t.Setenv("PORT", "9090")

	cfg, err := NewConfig()
	require.NoError(t, err)

	require.Equal(t, "test-token", cfg.Token)
	require.Equal(t, int64(-1001234567890), cfg.DriversGroupID)
	require.Equal(t, 5, cfg.MaxQueueDepth)
	require.Equal(t, 2*time.Minute, cfg.NotifyTimeout)
	require.Equal(t, ":9090", cfg.Port)
}

func TestValidateConfig(t *testing.T) {
	cfg := &Config{
		Token:          "token",
		DriversGroupID: -100,
		DBName:         "yolda.db",
		MaxQueueDepth:  3,
	}
	require.NoError(t, cfg.ValidateConfig())

	require.Error(t, (&Config{DriversGroupID: -100, DBName: "x", MaxQueueDepth: 3}).ValidateConfig())
	require.Error(t, (&Config{Token: "t", DBName: "x", MaxQueueDepth: 3}).ValidateConfig())
	require.Error(t, (&Config{Token: "t", DriversGroupID: -100, DBName: "x"}).ValidateConfig())
}
