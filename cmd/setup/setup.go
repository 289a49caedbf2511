// Package setup wires configuration, connections and use cases shared by the
// migrator CLI and the admin API.
package setup

import (
	"context"
	"fmt"
	"time"

	"mohassil-migrator/internal/adapter/repository/gormstore"
	"mohassil-migrator/internal/config"
	"mohassil-migrator/internal/domain/mapping"
	"mohassil-migrator/internal/domain/store"
	"mohassil-migrator/internal/infrastructure/cache"
	"mohassil-migrator/internal/infrastructure/db"
	"mohassil-migrator/internal/infrastructure/metrics"
	"mohassil-migrator/internal/infrastructure/tunnel"
	"mohassil-migrator/internal/usecase/bulkload"
	"mohassil-migrator/internal/usecase/earlysettle"
	"mohassil-migrator/internal/usecase/migrate"
	"mohassil-migrator/internal/usecase/settlement"
	"mohassil-migrator/internal/usecase/transform"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Setup struct {
	Config   *config.Config
	Log      *zap.Logger
	Mappings *mapping.Config
	Metrics  *metrics.Metrics
	Redis    *redis.Client
	Lock     *cache.RunLock

	SourceDB *gorm.DB
	TargetDB *gorm.DB
	Source   store.Store
	Target   *gormstore.GormUoW

	Settlement  *settlement.Engine
	EarlySettle *earlysettle.Engine
	Loader      *bulkload.Loader

	closers []func()
}

// Init opens both databases (through SSH when configured), redis when
// REDIS_ADDR is set, and builds the use cases. Close releases everything Init
// opened, also after a failed Init.
func Init(ctx context.Context, cfg *config.Config, log *zap.Logger, reg prometheus.Registerer) (*Setup, error) {
	s := &Setup{Config: cfg, Log: log, Metrics: metrics.New(reg)}
	if err := s.init(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Setup) init(ctx context.Context) error {
	cfg, log := s.Config, s.Log
	var err error

	if s.Mappings, err = mapping.LoadFile(cfg.MappingFile); err != nil {
		return err
	}
	log.Info("mappings loaded", zap.String("file", cfg.MappingFile), zap.Strings("migrations", s.Mappings.Names()))

	srcDialect, err := store.ParseDialect(cfg.Source.Type)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	dstDialect, err := store.ParseDialect(cfg.Dest.Type)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}

	if s.SourceDB, err = s.connect(ctx, "source", srcDialect, cfg.Source); err != nil {
		return err
	}
	if s.TargetDB, err = s.connect(ctx, "target", dstDialect, cfg.Dest); err != nil {
		return err
	}
	s.Source = gormstore.NewStore(s.SourceDB, srcDialect)
	s.Target = gormstore.NewGormUoW(s.TargetDB, dstDialect)

	if cfg.RedisAddr != "" {
		if s.Redis, err = cache.OpenRedis(ctx, cache.RedisOptions{
			Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB, Log: s.Log,
		}); err != nil {
			return err
		}
		rdb := s.Redis
		s.closers = append(s.closers, func() { _ = rdb.Close() })
	}
	s.Lock = cache.NewRunLock(s.Redis, cfg.RunLockTTL)

	s.Settlement = settlement.NewEngine(s.Target, log, settlement.WithObserver(s.Metrics.Settlement()))
	s.EarlySettle = earlysettle.NewEngine(s.Source, s.Target, cfg.LegacySchema, log,
		earlysettle.WithObserver(s.Metrics.EarlySettlement()))
	s.Loader = bulkload.NewLoader(s.Target, bulkload.Defaults{
		OfficerID: cfg.BillsOfficerID,
		ProductID: cfg.BillsProductID,
		BranchID:  cfg.BillsBranchID,
	}, cfg.EmailDomain, log, bulkload.WithObserver(s.Metrics))
	return nil
}

// Driver builds a migration driver logging to log, so each run can write
// its own log file.
func (s *Setup) Driver(log *zap.Logger) *migrate.Driver {
	return migrate.NewDriver(s.Source, s.Target, s.Mappings, transform.Options{
		LegacySchema: s.Config.LegacySchema,
		EmailDomain:  s.Config.EmailDomain,
	}, log, migrate.WithObserver(s.Metrics))
}

// Checks returns one health check per connected dependency.
func (s *Setup) Checks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"source": func(ctx context.Context) error { return db.Ping(ctx, s.SourceDB) },
		"target": func(ctx context.Context) error { return db.Ping(ctx, s.TargetDB) },
	}
	if s.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return s.Redis.Ping(ctx).Err() }
	}
	return checks
}

func (s *Setup) connect(ctx context.Context, side string, d store.Dialect, c config.DB) (*gorm.DB, error) {
	if c.UseSSH && d != store.SQLite {
		t, err := tunnel.Open(ctx, tunnel.Config{
			SSHAddr:  c.SSHAddr(),
			User:     c.SSHUser,
			Password: c.SSHPassword,
			Remote:   c.Addr(),
			Timeout:  30 * time.Second,
		}, s.Log.With(zap.String("side", side)))
		if err != nil {
			return nil, fmt.Errorf("%s tunnel: %w", side, err)
		}
		s.closers = append(s.closers, func() { _ = t.Close() })
		c = c.WithAddr(t.LocalAddr())
	}

	gdb, err := db.Open(ctx, d, c.DSN(), db.Options{LogLevel: s.Config.DBLogLevel, Log: s.Log.With(zap.String("side", side))})
	if err != nil {
		return nil, fmt.Errorf("%s database: %w", side, err)
	}
	s.closers = append(s.closers, func() { _ = db.Close(gdb) })
	s.Log.Info("connected", zap.String("side", side), zap.String("dialect", string(d)), zap.String("database", c.Database))
	return gdb, nil
}

// Close releases connections, then tunnels, in reverse opening order.
func (s *Setup) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
