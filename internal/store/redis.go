package store

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"

	"github.com/Iron-Ham/tasklock/internal/errors"
)

// DefaultRedisKey is the key holding the record when none is configured.
const DefaultRedisKey = "tasklock:record"

// DefaultGuardTTL bounds how long a crashed process can hold the Redis guard.
const DefaultGuardTTL = 5 * time.Second

// RedisStore keeps the lock record as a JSON string under a single Redis key, for
// competing processes on different machines.
type RedisStore struct {
	client   *redis.Client
	locker   *redislock.Client
	key      string
	guardTTL time.Duration
	owned    bool
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithGuardTTL sets the expiry of the guard lock taken around Update.
func WithGuardTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.guardTTL = ttl
		}
	}
}

// WithOwnedClient makes Close also close the Redis client.
func WithOwnedClient() RedisOption {
	return func(s *RedisStore) {
		s.owned = true
	}
}

// NewRedisStore creates a RedisStore using client. key defaults to DefaultRedisKey.
func NewRedisStore(client *redis.Client, key string, opts ...RedisOption) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	s := &RedisStore{
		client:   client,
		locker:   redislock.New(client),
		key:      key,
		guardTTL: DefaultGuardTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the Redis address and key.
func (s *RedisStore) Location() string {
	return s.client.Options().Addr + "/" + s.key
}

// Backend returns BackendRedis.
func (s *RedisStore) Backend() string {
	return BackendRedis
}

// Load reads and decodes the record.
func (s *RedisStore) Load(ctx context.Context) (Record, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Unlocked(), errors.ErrRecordNotFound
		}
		return Unlocked(), s.storageError("failed to read lock record", err)
	}
	return Decode(data)
}

// Save overwrites the record while holding the guard.
func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	guard, err := s.obtainGuard(ctx)
	if err != nil {
		return err
	}
	defer s.releaseGuard(guard)

	return s.write(ctx, rec)
}

// Update runs fn against the current record while holding a Redis lock on the guard
// key, so no other RedisStore on the same key can interleave.
func (s *RedisStore) Update(ctx context.Context, fn UpdateFunc) (Record, error) {
	guard, err := s.obtainGuard(ctx)
	if err != nil {
		return Unlocked(), err
	}
	defer s.releaseGuard(guard)

	current, readErr := s.Load(ctx)
	next, write := fn(current, readErr)
	if !write {
		return current, nil
	}
	if err := s.write(ctx, next); err != nil {
		return current, err
	}
	return next, nil
}

// Close closes the client when the store owns it.
func (s *RedisStore) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}

func (s *RedisStore) guardKey() string {
	return s.key + ":guard"
}

// obtainGuard retries linearly for up to one guard TTL; a holder that crashed
// mid-update is expired by Redis within that window.
func (s *RedisStore) obtainGuard(ctx context.Context) (*redislock.Lock, error) {
	attempts := int(s.guardTTL / guardRetryDelay)
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(guardRetryDelay), attempts),
	}
	guard, err := s.locker.Obtain(ctx, s.guardKey(), s.guardTTL, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, s.storageError("failed to obtain guard lock", err)
	}
	return guard, nil
}

// releaseGuard ignores ErrLockNotHeld: the guard may have expired under a slow update.
func (s *RedisStore) releaseGuard(guard *redislock.Lock) {
	_ = guard.Release(context.Background())
}

func (s *RedisStore) write(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	data, err := Encode(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return s.storageError("failed to write lock record", err)
	}
	return nil
}

func (s *RedisStore) storageError(msg string, err error) error {
	return errors.NewStorageError(msg, err).WithBackend(BackendRedis).WithLocation(s.Location())
}
