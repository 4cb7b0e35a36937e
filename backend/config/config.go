package config

import (
	"fmt"
	"log"
	"strings"
	"time"
	_ "time/tzdata" // STATS_TIMEZONE must resolve in minimal containers

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	IdentityDriverSupabase = "supabase"
	IdentityDriverMemory   = "memory"
)

type Config struct {
	ServerPort       string        `mapstructure:"PORT"`
	CORSAllowOrigins string        `mapstructure:"CORS_ALLOW_ORIGINS"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	SupabaseURL            string        `mapstructure:"SUPABASE_URL"`
	SupabaseAnonKey        string        `mapstructure:"SUPABASE_ANON_KEY"`
	SupabaseServiceRoleKey string        `mapstructure:"SUPABASE_SERVICE_ROLE_KEY"`
	IdentityDriver         string        `mapstructure:"IDENTITY_DRIVER"`
	IdentityTimeout        time.Duration `mapstructure:"IDENTITY_TIMEOUT"`

	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`

	StatsTimezone string `mapstructure:"STATS_TIMEZONE"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	LogFormat     string `mapstructure:"LOG_FORMAT"`

	// StatsLocation is resolved from StatsTimezone by LoadConfig.
	StatsLocation *time.Location `mapstructure:"-"`
}

var defaults = map[string]interface{}{
	"PORT":                 "4000",
	"CORS_ALLOW_ORIGINS":   "*",
	"REQUEST_TIMEOUT":      "15s",
	"IDENTITY_DRIVER":      IdentityDriverSupabase,
	"IDENTITY_TIMEOUT":     "10s",
	"DB_MAX_OPEN_CONNS":    20,
	"DB_MAX_IDLE_CONNS":    10,
	"DB_CONN_MAX_LIFETIME": "10m",
	"STATS_TIMEZONE":       "UTC",
	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "json",
}

var keys = []string{
	"PORT", "CORS_ALLOW_ORIGINS", "REQUEST_TIMEOUT",
	"SUPABASE_URL", "SUPABASE_ANON_KEY", "SUPABASE_SERVICE_ROLE_KEY",
	"IDENTITY_DRIVER", "IDENTITY_TIMEOUT",
	"DATABASE_URL", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME",
	"STATS_TIMEZONE", "LOG_LEVEL", "LOG_FORMAT",
}

// LoadConfig reads .env (if any) and the process environment. Missing provider
// credentials are reported together in a single error.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.StatsTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_TIMEZONE %q: %w", cfg.StatsTimezone, err)
	}
	cfg.StatsLocation = loc

	return &cfg, nil
}

func (c *Config) validate() error {
	var missing []string

	switch c.IdentityDriver {
	case IdentityDriverSupabase:
		if c.SupabaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if c.SupabaseAnonKey == "" {
			missing = append(missing, "SUPABASE_ANON_KEY")
		}
		if c.SupabaseServiceRoleKey == "" {
			missing = append(missing, "SUPABASE_SERVICE_ROLE_KEY")
		}
	case IdentityDriverMemory:
	default:
		return fmt.Errorf("unknown IDENTITY_DRIVER %q", c.IdentityDriver)
	}

	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment: %s", strings.Join(missing, ", "))
	}
	return nil
}
