package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mohassil-migrator/pkg/id"

	"github.com/redis/go-redis/v9"
)

const lockPrefix = "lock:migrator:"

// Operator is the lock name shared by every run, cleanup and settlement.
const Operator = "operator"

// ErrLocked means another operator holds the run lock.
var ErrLocked = errors.New("another run is in progress")

// release only when the token still matches
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RunLock serialises operator runs across processes. A nil client makes
// every lock a no-op, for setups without redis.
type RunLock struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRunLock(rdb *redis.Client, ttl time.Duration) *RunLock {
	return &RunLock{rdb: rdb, ttl: ttl}
}

// Acquire takes the lock named name and returns its release func.
func (l *RunLock) Acquire(ctx context.Context, name string) (func(), error) {
	if l == nil || l.rdb == nil {
		return func() {}, nil
	}
	key := lockPrefix + name
	token := id.NewToken()
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock %s: %w", name, err)
	}
	if !ok {
		holder, _ := l.rdb.Get(ctx, key).Result()
		return nil, fmt.Errorf("%w: %s held by %s", ErrLocked, name, holder)
	}
	return func() {
		// parent ctx may already be done
		_ = unlockScript.Run(context.Background(), l.rdb, []string{key}, token).Err()
	}, nil
}
