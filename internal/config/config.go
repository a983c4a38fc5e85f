package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the configuration for the stride service.
// Environment variables are parsed from the STRIDE_ prefix,
// e.g. STRIDE_HTTP_PORT, STRIDE_POSTGRES_DSN.
type Config struct {
	// DBDriver selects the store backend: postgres, sqlite, or auto
	// (postgres when a DSN is set, sqlite otherwise).
	DBDriver    string `envconfig:"DB_DRIVER" default:"auto"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"data/stride.db"`

	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Auth
	JWTSecret string        `envconfig:"JWT_SECRET" default:""`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"168h"`

	// Text-generation capability (OpenAI-compatible chat completions API).
	GenBaseURL     string        `envconfig:"GEN_BASE_URL" default:"https://api.openai.com"`
	GenAPIKey      string        `envconfig:"GEN_API_KEY" default:""`
	GenModel       string        `envconfig:"GEN_MODEL" default:"gpt-4-turbo-preview"`
	GenMaxTokens   int           `envconfig:"GEN_MAX_TOKENS" default:"1024"`
	GenTemperature float64       `envconfig:"GEN_TEMPERATURE" default:"0.7"`
	GenTimeout     time.Duration `envconfig:"GEN_TIMEOUT" default:"30s"`

	// Push transport. When PushGatewayURL is empty, dispatch degrades to a
	// logged no-op rather than failing pipelines.
	PushGatewayURL string        `envconfig:"PUSH_GATEWAY_URL" default:""`
	PushAPIKey     string        `envconfig:"PUSH_API_KEY" default:""`
	PushTimeout    time.Duration `envconfig:"PUSH_TIMEOUT" default:"10s"`

	// Scheduler cadences. Hours are in the server's local time.
	CheckInHour   int           `envconfig:"CHECKIN_HOUR" default:"9"`
	ReviewWeekday int           `envconfig:"REVIEW_WEEKDAY" default:"0"`
	ReviewHour    int           `envconfig:"REVIEW_HOUR" default:"20"`
	ScanInterval  time.Duration `envconfig:"SCAN_INTERVAL" default:"1h"`

	// Trigger policy.
	DeadlineWarnDays  []int         `envconfig:"DEADLINE_WARN_DAYS" default:"3,1"`
	InactivityAfter   time.Duration `envconfig:"INACTIVITY_AFTER" default:"48h"`
	SchedulerDisabled bool          `envconfig:"SCHEDULER_DISABLED" default:"false"`
}

// ResolveDefaults validates the configuration and derives DBDriver when set
// to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	if c.DBDriver == "" || c.DBDriver == "auto" {
		if c.PostgresDSN != "" {
			c.DBDriver = "postgres"
		} else {
			c.DBDriver = "sqlite"
		}
	}
	switch c.DBDriver {
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("DB_DRIVER=postgres requires STRIDE_POSTGRES_DSN")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("DB_DRIVER=sqlite requires STRIDE_SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	if c.CheckInHour < 0 || c.CheckInHour > 23 {
		return fmt.Errorf("invalid CHECKIN_HOUR: %d", c.CheckInHour)
	}
	if c.ReviewHour < 0 || c.ReviewHour > 23 {
		return fmt.Errorf("invalid REVIEW_HOUR: %d", c.ReviewHour)
	}
	if c.ReviewWeekday < 0 || c.ReviewWeekday > 6 {
		return fmt.Errorf("invalid REVIEW_WEEKDAY: %d", c.ReviewWeekday)
	}
	if len(c.DeadlineWarnDays) == 0 {
		return fmt.Errorf("DEADLINE_WARN_DAYS must not be empty")
	}
	for _, d := range c.DeadlineWarnDays {
		if d < 0 {
			return fmt.Errorf("invalid deadline warning threshold: %d", d)
		}
	}
	if c.InactivityAfter <= 0 {
		return fmt.Errorf("INACTIVITY_AFTER must be positive")
	}
	return nil
}

// New creates a Config by parsing STRIDE_-prefixed environment variables.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("STRIDE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
