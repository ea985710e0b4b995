package kv

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"

	"github.com/dvloznov/expense-bot/internal/logger"
)

// RedisConfig holds connection settings for RedisStore.
type RedisConfig struct {
	Addr      string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
	// LockRetry is the polling interval while waiting on a held lock.
	LockRetry time.Duration
}

// RedisStore is a Store backed by Redis through rueidis.
type RedisStore struct {
	client    rueidis.Client
	prefix    string
	lockRetry time.Duration
}

// releaseScript deletes a lock only if the caller still owns it.
var releaseScript = rueidis.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// incrScript increments a counter and sets its expiry whenever none is set,
// so a counter can never outlive its window.
var incrScript = rueidis.NewLuaScript(`
local n = redis.call("INCR", KEYS[1])
local ttl = tonumber(ARGV[1])
if ttl > 0 and redis.call("PTTL", KEYS[1]) == -1 then
	redis.call("PEXPIRE", KEYS[1], ttl)
end
return n
`)

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{cfg.Addr},
		Username:    cfg.Username,
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("NewRedisStore: create client: %w", err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("NewRedisStore: ping %s: %w", cfg.Addr, err)
	}

	retry := cfg.LockRetry
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	return &RedisStore{client: client, prefix: cfg.KeyPrefix, lockRetry: retry}, nil
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	resp := s.client.Do(ctx, s.client.B().Get().Key(s.key(key)).Build())
	data, err := resp.AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("Get %q: %w", key, err)
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = s.client.B().Set().Key(s.key(key)).Value(rueidis.BinaryString(value)).Ex(ttl).Build()
	} else {
		cmd = s.client.B().Set().Key(s.key(key)).Value(rueidis.BinaryString(value)).Build()
	}
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("Set %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.key(key)).Build()).Error(); err != nil {
		return fmt.Errorf("Delete %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ttlMillis := strconv.FormatInt(ttl.Milliseconds(), 10)
	n, err := incrScript.Exec(ctx, s.client, []string{s.key(key)}, []string{ttlMillis}).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("Incr %q: %w", key, err)
	}
	return n, nil
}

// Lock uses SET NX with an owner token and polls until acquired.
func (s *RedisStore) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	lockKey := s.key("lock:" + key)
	token := uuid.NewString()

	for {
		cmd := s.client.B().Set().Key(lockKey).Value(token).Nx().Ex(ttl).Build()
		err := s.client.Do(ctx, cmd).Error()
		if err == nil {
			break
		}
		if !rueidis.IsRedisNil(err) {
			return nil, fmt.Errorf("Lock %q: %w", key, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("Lock %q: %w: %v", key, ErrLockTimeout, ctx.Err())
		case <-time.After(s.lockRetry):
		}
	}

	log := logger.FromContext(ctx)
	return func() {
		if err := releaseScript.Exec(context.Background(), s.client, []string{lockKey}, []string{token}).Error(); err != nil {
			log.Warn().Err(err).Str("lock", key).Msg("Failed to release lock")
		}
	}, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	s.client.Close()
	return nil
}
