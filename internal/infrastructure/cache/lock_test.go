package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
)

func TestRunLock_AcquireRelease(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	l := NewRunLock(rdb, time.Minute)
	release, err := l.Acquire(ctx, "loans")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !s.Exists(lockPrefix + "loans") {
		t.Fatalf("lock key not set")
	}
	if ttl := s.TTL(lockPrefix + "loans"); ttl != time.Minute {
		t.Fatalf("lock ttl = %s, want 1m", ttl)
	}

	if _, err := l.Acquire(ctx, "loans"); !errors.Is(err, ErrLocked) {
		t.Fatalf("second Acquire: want ErrLocked, got %v", err)
	}
	// other names are independent
	other, err := l.Acquire(ctx, "clients")
	if err != nil {
		t.Fatalf("Acquire clients: %v", err)
	}
	other()

	release()
	if s.Exists(lockPrefix + "loans") {
		t.Fatalf("lock key still present after release")
	}
	if _, err := l.Acquire(ctx, "loans"); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
}

func TestRunLock_ReleaseKeepsForeignToken(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	release, err := NewRunLock(rdb, time.Minute).Acquire(context.Background(), "settle")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	// lock expired and was taken by someone else
	_ = s.Set(lockPrefix+"settle", "someone-else")
	release()
	if v, _ := s.Get(lockPrefix + "settle"); v != "someone-else" {
		t.Fatalf("release removed a lock it did not own, value=%q", v)
	}
}

func TestRunLock_NilClientIsNoop(t *testing.T) {
	release, err := NewRunLock(nil, time.Minute).Acquire(context.Background(), "x")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()

	var l *RunLock
	if _, err := l.Acquire(context.Background(), "x"); err != nil {
		t.Fatalf("nil RunLock Acquire: %v", err)
	}
}

func TestRunLock_RedisError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.Regexp().ExpectSetNX(lockPrefix+"loans", `.+`, time.Minute).SetErr(errors.New("READONLY"))

	_, err := NewRunLock(rdb, time.Minute).Acquire(context.Background(), "loans")
	if err == nil || errors.Is(err, ErrLocked) {
		t.Fatalf("want redis error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
