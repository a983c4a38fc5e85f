package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		DBDriver:         "sqlite",
		SQLitePath:       "data/stride.db",
		CheckInHour:      9,
		ReviewHour:       20,
		DeadlineWarnDays: []int{3, 1},
		InactivityAfter:  48 * time.Hour,
	}
}

func TestResolveDefaultsDerivesDriver(t *testing.T) {
	cfg := validConfig()
	cfg.DBDriver = "auto"
	require.NoError(t, cfg.ResolveDefaults())
	require.Equal(t, "sqlite", cfg.DBDriver, "no DSN should fall back to sqlite")

	cfg.DBDriver = "auto"
	cfg.PostgresDSN = "postgres://localhost/stride"
	require.NoError(t, cfg.ResolveDefaults())
	require.Equal(t, "postgres", cfg.DBDriver)
}

func TestResolveDefaultsRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.DBDriver = "oracle" }},
		{"postgres without dsn", func(c *Config) { c.DBDriver = "postgres"; c.PostgresDSN = "" }},
		{"checkin hour out of range", func(c *Config) { c.CheckInHour = 24 }},
		{"review weekday out of range", func(c *Config) { c.ReviewWeekday = 7 }},
		{"empty thresholds", func(c *Config) { c.DeadlineWarnDays = nil }},
		{"negative threshold", func(c *Config) { c.DeadlineWarnDays = []int{3, -1} }},
		{"non-positive inactivity window", func(c *Config) { c.InactivityAfter = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			require.Error(t, cfg.ResolveDefaults())
		})
	}
}
