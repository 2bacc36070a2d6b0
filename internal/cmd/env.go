package cmd

import (
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"

	"github.com/Iron-Ham/tasklock/internal/config"
	"github.com/Iron-Ham/tasklock/internal/errors"
	"github.com/Iron-Ham/tasklock/internal/lock"
	"github.com/Iron-Ham/tasklock/internal/logging"
	"github.com/Iron-Ham/tasklock/internal/store"
)

// lockEnv bundles everything a lock command needs for one invocation.
type lockEnv struct {
	cfg      *config.Config
	logger   *logging.Logger
	registry *prometheus.Registry
	store    store.Store
	manager  *lock.Manager
}

// openLockEnv loads configuration and wires the store, logger, metrics and manager.
// Callers must Close the result.
func openLockEnv() (*lockEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLoggerWithRotation(cfg.Logging.Dir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return nil, err
	}

	st, err := newStore(cfg)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	manager := lock.NewManager(st,
		lock.WithTimeout(cfg.Lock.Timeout),
		lock.WithPollInterval(cfg.Lock.PollInterval),
		lock.WithWatch(cfg.Lock.Watch),
		lock.WithFailClosed(cfg.Lock.FailClosed),
		lock.WithLogger(logger),
		lock.WithMetrics(lock.NewMetrics(registry)),
	)

	return &lockEnv{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		store:    st,
		manager:  manager,
	}, nil
}

func newStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Lock.Backend {
	case store.BackendFile:
		fs, err := store.NewFileStore(cfg.Lock.File, store.WithGuardTimeout(cfg.Lock.GuardTimeout))
		if err != nil {
			return nil, err
		}
		return fs, nil
	case store.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return store.NewRedisStore(client, cfg.Redis.Key,
			store.WithGuardTTL(cfg.Redis.GuardTTL),
			store.WithOwnedClient(),
		), nil
	default:
		return nil, errors.NewValidationError("unknown lock backend").
			WithField("lock.backend").
			WithValue(cfg.Lock.Backend)
	}
}

// Close flushes metrics to the configured textfile and releases the store and logger.
func (e *lockEnv) Close() error {
	var errs []error
	if path := e.cfg.Metrics.Textfile; path != "" {
		if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics textfile: %w", err))
		}
	}
	if err := e.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.logger.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// defaultHolder names this process's user and host, used when --by is omitted.
func defaultHolder() string {
	name := "unknown"
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return name
	}
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}
	return name + "@" + host
}
