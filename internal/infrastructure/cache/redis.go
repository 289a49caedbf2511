// Package cache holds the redis client and the cross-process run lock.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrUnavailable wraps every failure to reach redis at startup.
var ErrUnavailable = errors.New("redis unavailable")

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// total time spent retrying the first ping
	Wait time.Duration
	Log  *zap.Logger
}

const defaultWait = 5 * time.Second

// OpenRedis returns a client once addr answers PING. The client is closed
// when the budget runs out.
func OpenRedis(ctx context.Context, o RedisOptions) (*redis.Client, error) {
	if o.Wait <= 0 {
		o.Wait = defaultWait
	}
	log := o.Log
	if log == nil {
		log = zap.NewNop()
	}
	rdb := redis.NewClient(&redis.Options{Addr: o.Addr, Password: o.Password, DB: o.DB})

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = o.Wait
	ping := func() error {
		pctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		err := rdb.Ping(pctx).Err()
		if err != nil {
			log.Warn("redis not reachable, retrying", zap.String("addr", o.Addr), zap.Error(err))
		}
		return err
	}
	if err := backoff.Retry(ping, backoff.WithContext(bo, ctx)); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, o.Addr, err)
	}
	log.Info("redis: connected", zap.String("addr", o.Addr), zap.Int("db", o.DB))
	return rdb, nil
}
