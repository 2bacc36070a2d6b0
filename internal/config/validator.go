package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "lock.poll_interval")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateLock()...)

	// Redis settings only matter when redis is selected
	if c.Lock.Backend == "redis" {
		errors = append(errors, c.validateRedis()...)
	}

	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateLock validates the LockConfig
func (c *Config) validateLock() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidBackends(), c.Lock.Backend) {
		errors = append(errors, ValidationError{
			Field:   "lock.backend",
			Value:   c.Lock.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackends(), ", ")),
		})
	}

	if c.Lock.Backend == "file" && strings.TrimSpace(c.Lock.File) == "" {
		errors = append(errors, ValidationError{
			Field:   "lock.file",
			Value:   c.Lock.File,
			Message: "must not be empty for the file backend",
		})
	}

	// Zero disables staleness; negative is a mistake
	if c.Lock.Timeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "lock.timeout",
			Value:   c.Lock.Timeout,
			Message: "must be non-negative",
		})
	}

	if c.Lock.PollInterval <= 0 {
		errors = append(errors, ValidationError{
			Field:   "lock.poll_interval",
			Value:   c.Lock.PollInterval,
			Message: "must be positive",
		})
	}

	if c.Lock.GuardTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "lock.guard_timeout",
			Value:   c.Lock.GuardTimeout,
			Message: "must be positive",
		})
	}

	if c.Lock.MaxWait < 0 {
		errors = append(errors, ValidationError{
			Field:   "lock.max_wait",
			Value:   c.Lock.MaxWait,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateRedis validates the RedisConfig
func (c *Config) validateRedis() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Redis.Addr) == "" {
		errors = append(errors, ValidationError{
			Field:   "redis.addr",
			Value:   c.Redis.Addr,
			Message: "must not be empty",
		})
	}

	if strings.TrimSpace(c.Redis.Key) == "" {
		errors = append(errors, ValidationError{
			Field:   "redis.key",
			Value:   c.Redis.Key,
			Message: "must not be empty",
		})
	}

	if c.Redis.DB < 0 {
		errors = append(errors, ValidationError{
			Field:   "redis.db",
			Value:   c.Redis.DB,
			Message: "must be non-negative",
		})
	}

	if c.Redis.GuardTTL <= 0 {
		errors = append(errors, ValidationError{
			Field:   "redis.guard_ttl",
			Value:   c.Redis.GuardTTL,
			Message: "must be positive",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
