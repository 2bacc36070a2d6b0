package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all tasklock configuration
type Config struct {
	Lock    LockConfig    `mapstructure:"lock"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LockConfig controls the lock itself and where its record is stored
type LockConfig struct {
	// Backend selects the record store: "file" or "redis" (default: "file")
	Backend string `mapstructure:"backend"`
	// File is the record path for the file backend (default: ".github/.task-lock.json")
	File string `mapstructure:"file"`
	// Timeout is how long a holder may keep the lock before it is considered stale.
	// Zero disables staleness recovery. (default: 1h)
	Timeout time.Duration `mapstructure:"timeout"`
	// PollInterval is how often a waiting acquire re-checks the record (default: 10s)
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// MaxWait is the default wait for acquire and run when --wait is not given (default: 5m)
	MaxWait time.Duration `mapstructure:"max_wait"`
	// Watch wakes waiters early on record changes where the backend supports it (default: true)
	Watch bool `mapstructure:"watch"`
	// GuardTimeout bounds how long a file-backend update waits for another process's
	// guard before it counts as a storage failure (default: 5s)
	GuardTimeout time.Duration `mapstructure:"guard_timeout"`
	// FailClosed denies the lock when storage is unreachable instead of granting it (default: false)
	FailClosed bool `mapstructure:"fail_closed"`
}

// RedisConfig configures the redis backend
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// Key holds the record; the update guard lives at Key + ":guard"
	Key string `mapstructure:"key"`
	// GuardTTL bounds how long a crashed process can block updates (default: 5s)
	GuardTTL time.Duration `mapstructure:"guard_ttl"`
}

// LoggingConfig controls lock event logging
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the directory for tasklock.log. Empty logs to stderr.
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated log files (default: false)
	Compress bool `mapstructure:"compress"`
}

// MetricsConfig controls metrics export
type MetricsConfig struct {
	// Textfile, when set, receives the prometheus metrics in text format on exit,
	// for node_exporter's textfile collector.
	Textfile string `mapstructure:"textfile"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Lock: LockConfig{
			Backend:      "file",
			File:         ".github/.task-lock.json",
			Timeout:      time.Hour,
			PollInterval: 10 * time.Second,
			MaxWait:      5 * time.Minute,
			Watch:        true,
			GuardTimeout: 5 * time.Second,
			FailClosed:   false,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			DB:       0,
			Key:      "tasklock:record",
			GuardTTL: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Lock defaults
	viper.SetDefault("lock.backend", defaults.Lock.Backend)
	viper.SetDefault("lock.file", defaults.Lock.File)
	viper.SetDefault("lock.timeout", defaults.Lock.Timeout)
	viper.SetDefault("lock.poll_interval", defaults.Lock.PollInterval)
	viper.SetDefault("lock.max_wait", defaults.Lock.MaxWait)
	viper.SetDefault("lock.watch", defaults.Lock.Watch)
	viper.SetDefault("lock.guard_timeout", defaults.Lock.GuardTimeout)
	viper.SetDefault("lock.fail_closed", defaults.Lock.FailClosed)

	// Redis defaults
	viper.SetDefault("redis.addr", defaults.Redis.Addr)
	viper.SetDefault("redis.password", defaults.Redis.Password)
	viper.SetDefault("redis.db", defaults.Redis.DB)
	viper.SetDefault("redis.key", defaults.Redis.Key)
	viper.SetDefault("redis.guard_ttl", defaults.Redis.GuardTTL)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Metrics defaults
	viper.SetDefault("metrics.textfile", defaults.Metrics.Textfile)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tasklock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tasklock"
	}
	return filepath.Join(home, ".config", "tasklock")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidBackends returns the list of valid lock backends
func ValidBackends() []string {
	return []string{"file", "redis"}
}
