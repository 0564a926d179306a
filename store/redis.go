package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/castellan/castellan/core"
)

const (
	stateHashKey   = "castellan:states"
	ignoredSetKey  = "castellan:ignored"
	redisOpTimeout = 5 * time.Second
)

// RedisStore persists states in a Redis hash, for deployments where several
// processes coordinate around the same module fleet. Transient failures are
// retried with capped exponential backoff.
type RedisStore struct {
	client  redis.UniversalClient
	timeout time.Duration
}

// NewRedisStore wraps an existing client. The caller owns the client's
// lifecycle.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, timeout: redisOpTimeout}
}

// NewRedisStoreAddr dials a single Redis node.
func NewRedisStoreAddr(addr string) *RedisStore {
	return NewRedisStore(redis.NewClient(&redis.Options{Addr: addr}))
}

func (s *RedisStore) retry(ctx context.Context, op func(ctx context.Context) error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(func() error {
		opCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		err := op(opCtx)
		if err == redis.Nil {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func (s *RedisStore) SaveState(name string, state core.State) error {
	return s.retry(context.Background(), func(ctx context.Context) error {
		return s.client.HSet(ctx, stateHashKey, name, string(state)).Err()
	})
}

func (s *RedisStore) LoadState(name string) (core.State, bool, error) {
	var raw string
	err := s.retry(context.Background(), func(ctx context.Context) error {
		var err error
		raw, err = s.client.HGet(ctx, stateHashKey, name).Result()
		return err
	})
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	state, ok := core.ParseState(raw)
	return state, ok, nil
}

func (s *RedisStore) DeleteState(name string) error {
	return s.retry(context.Background(), func(ctx context.Context) error {
		return s.client.HDel(ctx, stateHashKey, name).Err()
	})
}

func (s *RedisStore) ListStates() (map[string]core.State, error) {
	var raw map[string]string
	err := s.retry(context.Background(), func(ctx context.Context) error {
		var err error
		raw, err = s.client.HGetAll(ctx, stateHashKey).Result()
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]core.State, len(raw))
	for name, value := range raw {
		if state, ok := core.ParseState(value); ok {
			out[name] = state
		}
	}
	return out, nil
}

func (s *RedisStore) SaveIgnored(names map[string]struct{}) error {
	members := make([]any, 0, len(names))
	for n := range names {
		members = append(members, n)
	}
	return s.retry(context.Background(), func(ctx context.Context) error {
		pipe := s.client.TxPipeline()
		pipe.Del(ctx, ignoredSetKey)
		if len(members) > 0 {
			pipe.SAdd(ctx, ignoredSetKey, members...)
		}
		_, err := pipe.Exec(ctx)
		return err
	})
}

func (s *RedisStore) LoadIgnored() (map[string]struct{}, error) {
	var members []string
	err := s.retry(context.Background(), func(ctx context.Context) error {
		var err error
		members, err = s.client.SMembers(ctx, ignoredSetKey).Result()
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]struct{}, len(members))
	for _, n := range members {
		out[n] = struct{}{}
	}
	return out, nil
}
