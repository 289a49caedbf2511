package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mohassil-migrator/internal/domain/store"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrConnect wraps every failure to reach a database.
var ErrConnect = errors.New("database connection failed")

// retry budget for opening a connection
const connectTimeout = 30 * time.Second

type Options struct {
	// LogLevel is silent, error, warn or info.
	LogLevel string
	Log      *zap.Logger
}

func logLevel(s string) logger.LogLevel {
	switch strings.ToLower(s) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Dialector picks the gorm driver for dialect d.
func Dialector(d store.Dialect, dsn string) (gorm.Dialector, error) {
	switch d {
	case store.MySQL:
		return mysql.Open(dsn), nil
	case store.SQLServer:
		return sqlserver.Open(dsn), nil
	case store.SQLite:
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported dialect %q", d)
}

// Open connects to dsn, retrying with exponential backoff until the budget
// runs out or ctx is done.
func Open(ctx context.Context, d store.Dialect, dsn string, opts Options) (*gorm.DB, error) {
	dial, err := Dialector(d, dsn)
	if err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = connectTimeout
	var gdb *gorm.DB
	op := func() error {
		var err error
		gdb, err = openGorm(dial, logLevel(opts.LogLevel))
		if err != nil {
			log.Warn("database not reachable, retrying", zap.String("dialect", string(d)), zap.Error(err))
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, d, err)
	}
	log.Info("gorm: connected", zap.String("dialect", string(d)))
	return gdb, nil
}

func openGorm(dial gorm.Dialector, level logger.LogLevel) (*gorm.DB, error) {
	// pinged below, after the pool is sized
	cfg := &gorm.Config{
		Logger:               logger.Default.LogMode(level),
		DisableAutomaticPing: true,
	}
	db, err := gorm.Open(dial, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// runs are sequential: one statement in flight per side
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the pool behind gdb.
func Close(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that gdb still reaches its database.
func Ping(ctx context.Context, gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
