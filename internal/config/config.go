package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/robfig/cron"

	"budgetcal/internal/log"
)

// FileEnvVar names the environment variable holding the optional TOML file.
const FileEnvVar = "BUDGETCAL_CONFIG"

// MaxHorizonDays caps how far ahead a forecast may look.
const MaxHorizonDays = 3660

type Config struct {
	// HTTP Server
	Port          string `toml:"port" env:"PORT"`
	DefaultUserID int64  `toml:"default_user_id" env:"DEFAULT_USER_ID"`

	// Logging
	LogLevel  string `toml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `toml:"log_format" env:"LOG_FORMAT"`

	// Backend selection: sqlite, postgres or memory
	DataBackend  string `toml:"data_backend" env:"DATA_BACKEND"`
	SQLiteDBPath string `toml:"sqlite_db_path" env:"SQLITE_DB_PATH"`
	PostgresDSN  string `toml:"postgres_dsn" env:"POSTGRES_DSN"`

	// AMQP; an empty URL disables recalculation events
	AMQPURL      string `toml:"amqp_url" env:"AMQP_URL"`
	AMQPExchange string `toml:"amqp_exchange" env:"AMQP_EXCHANGE"`
	AMQPQueue    string `toml:"amqp_queue" env:"AMQP_QUEUE"`

	// Google Sheets export; an empty spreadsheet id disables it
	GoogleSpreadsheetID   string `toml:"google_spreadsheet_id" env:"GOOGLE_SPREADSHEET_ID"`
	GoogleSheetName       string `toml:"google_sheet_name" env:"GOOGLE_SHEET_NAME"`
	GoogleCredentialsFile string `toml:"google_credentials_file" env:"GOOGLE_CREDENTIALS_FILE"`
	GoogleCredentialsJSON string `toml:"google_credentials_json" env:"GOOGLE_CREDENTIALS_JSON"`

	// Forecasting and workers
	ForecastMaxHorizonDays int           `toml:"forecast_max_horizon_days" env:"FORECAST_MAX_HORIZON_DAYS"`
	ForecastCron           string        `toml:"forecast_cron" env:"FORECAST_CRON"`
	RecurringCron          string        `toml:"recurring_cron" env:"RECURRING_CRON"`
	WorkerConcurrency      int           `toml:"worker_concurrency" env:"WORKER_CONCURRENCY"`
	RateLimitPerMinute     int           `toml:"rate_limit_per_minute" env:"RATE_LIMIT_PER_MINUTE"`
	CacheTTL               time.Duration `toml:"cache_ttl" env:"CACHE_TTL"`
	ShutdownTimeout        time.Duration `toml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Port:                   "8081",
		DefaultUserID:          1,
		LogLevel:               "info",
		LogFormat:              "text",
		DataBackend:            "sqlite",
		SQLiteDBPath:           "./data/budgetcal.db",
		AMQPExchange:           "budgetcal",
		AMQPQueue:              "forecast_recalc",
		GoogleSheetName:        "Forecasts",
		ForecastMaxHorizonDays: MaxHorizonDays,
		ForecastCron:           "0 30 0 * * *",
		RecurringCron:          "0 5 0 * * *",
		WorkerConcurrency:      4,
		RateLimitPerMinute:     60,
		CacheTTL:               5 * time.Minute,
		ShutdownTimeout:        30 * time.Second,
	}
}

// Load builds the configuration from defaults, the TOML file named by
// BUDGETCAL_CONFIG (if any) and finally the environment.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(FileEnvVar))
}

// LoadFile is Load with an explicit file path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Config{}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s does not exist", path)
			}
			return nil, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}
	if err := mergo.Merge(&cfg, Default()); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DefaultUserID < 1 {
		errs = append(errs, fmt.Sprintf("invalid default user id %d: must be positive", c.DefaultUserID))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	switch c.DataBackend {
	case "memory":
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errs = append(errs, "PostgreSQL DSN cannot be empty when using postgres backend")
		} else if u, err := url.Parse(c.PostgresDSN); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errs = append(errs, "invalid PostgreSQL DSN: must be a postgres:// URL")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of [memory sqlite postgres]", c.DataBackend))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" && c.GoogleCredentialsFile != "" {
		if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
		}
	}

	if c.ForecastMaxHorizonDays < 1 || c.ForecastMaxHorizonDays > MaxHorizonDays {
		errs = append(errs, fmt.Sprintf("invalid forecast horizon %d: must be between 1 and %d days", c.ForecastMaxHorizonDays, MaxHorizonDays))
	}
	for name, spec := range map[string]string{"forecast": c.ForecastCron, "recurring": c.RecurringCron} {
		if _, err := cron.Parse(spec); err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s cron spec '%s': %v", name, spec, err))
		}
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 64 {
		errs = append(errs, fmt.Sprintf("invalid worker concurrency %d: must be between 1 and 64", c.WorkerConcurrency))
	}
	if c.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if c.CacheTTL < time.Second || c.CacheTTL > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid cache ttl %v: must be between 1 second and 24 hours", c.CacheTTL))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// LoggerConfig maps the logging settings onto log.Config.
func (c *Config) LoggerConfig(component string) log.Config {
	lc := log.DefaultConfig()
	if level, err := log.ParseLevel(c.LogLevel); err == nil {
		lc.Level = level
	}
	lc.Format = c.LogFormat
	lc.Component = component
	return lc
}
