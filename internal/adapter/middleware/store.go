package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idemp:migrator:"

const (
	stateRunning = "running"
	stateDone    = "done"
)

// record is one request's replay entry, stored as a redis hash.
type record struct {
	State    string
	BodySum  string
	Operator string
	Code     int
	Body     []byte
}

// replayKey scopes a request id to one operator and one route.
func replayKey(operator, method, route, id string) string {
	return keyPrefix + strings.ToLower(operator) + ":" + strings.ToLower(method) + ":" + route + ":" + id
}

// claim creates the running record only when key is free.
var claimScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], "state", ARGV[1], "body_sum", ARGV[2], "operator", ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return 1`)

type replayStore struct {
	rdb *redis.Client
}

// claim reports whether the caller now owns key.
func (s replayStore) claim(ctx context.Context, key, bodySum, operator string, hold time.Duration) (bool, error) {
	n, err := claimScript.Run(ctx, s.rdb, []string{key},
		stateRunning, bodySum, operator, hold.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return n == 1, nil
}

// load returns the record at key; a missing key gives an empty record.
func (s replayStore) load(ctx context.Context, key string) (record, error) {
	f, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return record{}, fmt.Errorf("load %s: %w", key, err)
	}
	r := record{State: f["state"], BodySum: f["body_sum"], Operator: f["operator"], Body: []byte(f["body"])}
	if c := f["code"]; c != "" {
		if r.Code, err = strconv.Atoi(c); err != nil {
			return r, fmt.Errorf("load %s: bad code %q", key, c)
		}
	}
	return r, nil
}

// finish stores the response and extends the record to ttl.
func (s replayStore) finish(ctx context.Context, key string, code int, body []byte, ttl time.Duration) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, "state", stateDone, "code", code, "body", body)
		p.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("finish %s: %w", key, err)
	}
	return nil
}

// release drops a claim so the same request id can be retried.
func (s replayStore) release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
