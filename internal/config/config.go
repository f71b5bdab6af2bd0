// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Cache backends
const (
	CacheBackendDatabase = "database"
	CacheBackendMemory   = "memory"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	Currency    string   `mapstructure:"currency"`

	// File paths
	DatabasePath string `mapstructure:"storagepath"`
	DatabaseName string `mapstructure:"-"` // Derived from other settings

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseMaxOpenConns int `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int `mapstructure:"dbmaxidleconns"`

	// Metrics settings
	PushdownThresholdDays int `mapstructure:"pushdownthresholddays"`
	PushdownWorkers       int `mapstructure:"pushdownworkers"`
	TopLimit              int `mapstructure:"toplimit"`
	RecentOrdersLimit     int `mapstructure:"recentorderslimit"`

	// Cache settings
	CacheBackend    string `mapstructure:"cachebackend"`
	CacheTTLSeconds int    `mapstructure:"cachettlseconds"`

	// Job scheduling settings
	WarmerIntervalSeconds int `mapstructure:"warmerintervalseconds"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "salesboard")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("currency", "GBP")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("pushdownthresholddays", 365)
		v.SetDefault("pushdownworkers", 4)
		v.SetDefault("toplimit", 6)
		v.SetDefault("recentorderslimit", 10)
		v.SetDefault("cachebackend", CacheBackendDatabase)
		v.SetDefault("cachettlseconds", 900)
		v.SetDefault("warmerintervalseconds", 300)

		v.BindEnv("appname", "SALESBOARD_APP_NAME")
		v.BindEnv("appport", "SALESBOARD_APP_PORT")
		v.BindEnv("environment", "SALESBOARD_ENV")
		v.BindEnv("loglevel", "SALESBOARD_LOG_LEVEL")
		v.BindEnv("currency", "SALESBOARD_CURRENCY")
		v.BindEnv("storagepath", "SALESBOARD_STORAGE_PATH")
		v.BindEnv("logsdir", "SALESBOARD_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "SALESBOARD_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "SALESBOARD_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "SALESBOARD_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbmaxopenconns", "SALESBOARD_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "SALESBOARD_DB_MAX_IDLE_CONNS")
		v.BindEnv("pushdownthresholddays", "SALESBOARD_PUSHDOWN_THRESHOLD_DAYS")
		v.BindEnv("pushdownworkers", "SALESBOARD_PUSHDOWN_WORKERS")
		v.BindEnv("toplimit", "SALESBOARD_TOP_LIMIT")
		v.BindEnv("recentorderslimit", "SALESBOARD_RECENT_ORDERS_LIMIT")
		v.BindEnv("cachebackend", "SALESBOARD_CACHE_BACKEND")
		v.BindEnv("cachettlseconds", "SALESBOARD_CACHE_TTL_SECONDS")
		v.BindEnv("warmerintervalseconds", "SALESBOARD_WARMER_INTERVAL_SECONDS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validBackends := map[string]bool{
		CacheBackendDatabase: true,
		CacheBackendMemory:   true,
	}
	if !validBackends[c.CacheBackend] {
		return fmt.Errorf("invalid cache backend: %s", c.CacheBackend)
	}

	if c.PushdownThresholdDays < 1 {
		return fmt.Errorf("pushdown threshold must be at least one day, got %d", c.PushdownThresholdDays)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1
// - Development/Production: 10 (allows concurrent reads for parallel pushdown queries)
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// CacheTTL returns the metric cache time-to-live.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// WarmerInterval returns how often the cache warmer job runs.
func (c *Config) WarmerInterval() time.Duration {
	return time.Duration(c.WarmerIntervalSeconds) * time.Second
}

// GetLogLevel returns the log level as a string
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
