package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Locker serializes load-modify-write cycles on the backing store.
type Locker interface {
	// Lock blocks until the lock is held or ctx is done. The returned
	// function releases it.
	Lock(ctx context.Context) (unlock func(), err error)
}

// localLocker is an in-process mutex usable with a context.
type localLocker struct {
	ch chan struct{}
}

func newLocalLocker() *localLocker {
	return &localLocker{ch: make(chan struct{}, 1)}
}

func (l *localLocker) Lock(ctx context.Context) (func(), error) {
	select {
	case l.ch <- struct{}{}:
		return func() { <-l.ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// releaseScript deletes the lock key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// redisLocker holds a Redis key for the duration of a write so that several
// processes sharing one data directory do not interleave their rewrites.
type redisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// NewRedisLocker creates a Locker on key. ttl bounds how long a crashed
// holder can block others; wait bounds how long Lock retries.
func NewRedisLocker(client *redis.Client, key string, ttl, wait time.Duration) Locker {
	return &redisLocker{client: client, key: key, ttl: ttl, wait: wait, retry: 25 * time.Millisecond}
}

func (l *redisLocker) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()
	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, ErrConflict
			}
			return nil, fmt.Errorf("acquire redis lock %s: %w", l.key, err)
		}
		if ok {
			return func() {
				rctx, rcancel := context.WithTimeout(context.Background(), time.Second)
				defer rcancel()
				_ = releaseScript.Run(rctx, l.client, []string{l.key}, token).Err()
			}, nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrConflict
			}
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

// multiLocker acquires each locker in order and releases in reverse.
type multiLocker []Locker

func (m multiLocker) Lock(ctx context.Context) (func(), error) {
	unlocks := make([]func(), 0, len(m))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, l := range m {
		u, err := l.Lock(ctx)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, u)
	}
	return release, nil
}
