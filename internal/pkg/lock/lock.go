// Package lock provides short-lived Redis locks used to funnel concurrent webhook
// deliveries for the same reference. The database row lock and status guard remain the
// source of truth; this lock only keeps redundant deliveries from piling onto one row.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrLocked is returned when the key stays held past the wait budget.
var ErrLocked = errors.New("resource is locked, retry later")

const keyPrefix = "quizbirr:lock:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker acquires named locks. A nil Redis client makes every Acquire succeed immediately.
type Locker struct {
	rdb          *redis.Client
	ttl          time.Duration
	pollInterval time.Duration
}

// New creates a Locker. ttl bounds how long a crashed holder can block others.
func New(rdb *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{rdb: rdb, ttl: ttl, pollInterval: 50 * time.Millisecond}
}

// Acquire takes key, waiting up to wait for a current holder to release it.
// The returned release func is safe to call once the protected work is done.
func (l *Locker) Acquire(ctx context.Context, key string, wait time.Duration) (func(), error) {
	if l == nil || l.rdb == nil {
		return func() {}, nil
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}
	fullKey := keyPrefix + key
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.rdb.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			// Redis trouble must not block settlement; the database still serialises it.
			log.Warn().Err(err).Str("key", key).Msg("lock unavailable, continuing without it")
			return func() {}, nil
		}
		if ok {
			return func() {
				if err := releaseScript.Run(context.Background(), l.rdb, []string{fullKey}, token).Err(); err != nil {
					log.Warn().Err(err).Str("key", key).Msg("lock release failed")
				}
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrLocked
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
