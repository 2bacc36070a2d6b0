package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	errs := cfg.Validate()
	if len(errs) != 0 {
		t.Errorf("Default config should be valid, got errors: %v", errs)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantField string
	}{
		{"unknown backend", func(c *Config) { c.Lock.Backend = "etcd" }, "lock.backend"},
		{"empty file", func(c *Config) { c.Lock.File = "  " }, "lock.file"},
		{"negative timeout", func(c *Config) { c.Lock.Timeout = -time.Second }, "lock.timeout"},
		{"zero poll interval", func(c *Config) { c.Lock.PollInterval = 0 }, "lock.poll_interval"},
		{"zero guard timeout", func(c *Config) { c.Lock.GuardTimeout = 0 }, "lock.guard_timeout"},
		{"negative max wait", func(c *Config) { c.Lock.MaxWait = -time.Second }, "lock.max_wait"},
		{"empty redis addr", func(c *Config) { c.Lock.Backend = "redis"; c.Redis.Addr = "" }, "redis.addr"},
		{"empty redis key", func(c *Config) { c.Lock.Backend = "redis"; c.Redis.Key = "" }, "redis.key"},
		{"negative redis db", func(c *Config) { c.Lock.Backend = "redis"; c.Redis.DB = -1 }, "redis.db"},
		{"zero guard ttl", func(c *Config) { c.Lock.Backend = "redis"; c.Redis.GuardTTL = 0 }, "redis.guard_ttl"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"zero log size", func(c *Config) { c.Logging.MaxSizeMB = 0 }, "logging.max_size_mb"},
		{"huge log size", func(c *Config) { c.Logging.MaxSizeMB = 5000 }, "logging.max_size_mb"},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.max_backups"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.wantField)
			}
		})
	}
}

func TestConfig_Validate_ValidEdgeCases(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero timeout disables staleness", func(c *Config) { c.Lock.Timeout = 0 }},
		{"zero max wait", func(c *Config) { c.Lock.MaxWait = 0 }},
		{"uppercase log level", func(c *Config) { c.Logging.Level = "DEBUG" }},
		{"empty log level", func(c *Config) { c.Logging.Level = "" }},
		{"redis settings ignored for file backend", func(c *Config) { c.Redis.Addr = "" }},
		{"file path ignored for redis backend", func(c *Config) { c.Lock.Backend = "redis"; c.Lock.File = "" }},
		{"zero backups", func(c *Config) { c.Logging.MaxBackups = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if errs := cfg.Validate(); len(errs) != 0 {
				t.Errorf("expected valid config, got: %v", errs)
			}
		})
	}
}

func TestValidLogLevels(t *testing.T) {
	levels := ValidLogLevels()
	expected := []string{"debug", "info", "warn", "error"}
	if len(levels) != len(expected) {
		t.Fatalf("ValidLogLevels() = %v, want %v", levels, expected)
	}
	for i, l := range expected {
		if levels[i] != l {
			t.Errorf("ValidLogLevels()[%d] = %q, want %q", i, levels[i], l)
		}
	}
}
