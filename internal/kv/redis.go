package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const redisSetAttempts = 16

// RedisStore keeps versioned values as plain strings under an optional namespace
type RedisStore struct {
	rdb       *goredis.Client
	namespace string
}

// NewRedisClient dials redis and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// NewRedisStore creates a store on top of an existing client
func NewRedisStore(rdb *goredis.Client, namespace string) *RedisStore {
	return &RedisStore{rdb: rdb, namespace: namespace}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	raw, err := s.rdb.Get(ctx, s.k(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	version, value, err := decodeVersioned(raw)
	if err != nil {
		return nil, err
	}
	return &Entry{Key: key, Value: value, Version: version}, nil
}

func (s *RedisStore) MGet(ctx context.Context, keys []string) ([]*Entry, error) {
	out := make([]*Entry, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.k(k)
	}
	vals, err := s.rdb.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		version, value, err := decodeVersioned([]byte(str))
		if err != nil {
			return nil, err
		}
		out[i] = &Entry{Key: keys[i], Value: value, Version: version}
	}
	return out, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	for i := 0; i < redisSetAttempts; i++ {
		_, err := s.swap(ctx, key, value, -1)
		if errors.Is(err, ErrConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis set %s: too much contention", key)
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, key string, value []byte, expected int64) (int64, error) {
	return s.swap(ctx, key, value, expected)
}

// swap runs an optimistic WATCH/MULTI write. expected < 0 skips the version check.
func (s *RedisStore) swap(ctx context.Context, key string, value []byte, expected int64) (int64, error) {
	full := s.k(key)
	var next int64
	err := s.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		var current int64
		raw, err := tx.Get(ctx, full).Bytes()
		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return err
		default:
			current, _, err = decodeVersioned(raw)
			if err != nil {
				return err
			}
		}
		if expected >= 0 && current != expected {
			return ErrConflict
		}
		next = current + 1
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, full, encodeVersioned(next, value), 0)
			return nil
		})
		return err
	}, full)
	if errors.Is(err, goredis.TxFailedErr) || errors.Is(err, ErrConflict) {
		return 0, ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("redis write %s: %w", key, err)
	}
	return next, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.k(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Scan(ctx context.Context, prefix string) ([]*Entry, error) {
	match := escapeGlob(s.k(prefix)) + "*"

	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, match, 200).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan %s: %w", prefix, err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, s.namespace))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	// SCAN may return a key more than once.
	sort.Strings(keys)
	keys = compactSorted(keys)

	entries, err := s.MGet(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		if e != nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) k(key string) string {
	return s.namespace + key
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

func compactSorted(keys []string) []string {
	if len(keys) < 2 {
		return keys
	}
	out := keys[:1]
	for _, k := range keys[1:] {
		if k != out[len(out)-1] {
			out = append(out, k)
		}
	}
	return out
}
