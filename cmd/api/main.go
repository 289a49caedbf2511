package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"mohassil-migrator/cmd/setup"
	httpadp "mohassil-migrator/internal/adapter/http"
	mw "mohassil-migrator/internal/adapter/middleware"
	"mohassil-migrator/internal/config"
	"mohassil-migrator/internal/infrastructure/logging"
)

func main() {
	cfg := config.Load()
	log, closeLog, err := logging.New(logging.Options{
		Level: cfg.LogLevel,
		File:  logging.FileFor(cfg.LogDir, "api", time.Now()),
	})
	if err != nil {
		panic(err)
	}
	defer closeLog()
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := setup.Init(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal("setup failed", zap.Error(err))
	}
	defer s.Close()

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(middleware.Logger(), middleware.Recover())
	e.Use(echoprometheus.NewMiddleware("mohassil_migrator"))

	var idem echo.MiddlewareFunc
	if s.Redis != nil {
		idem = mw.NewIdempotency(s.Redis, time.Duration(cfg.IdempTTLSecs)*time.Second, log).Middleware()
	} else {
		log.Warn("REDIS_ADDR not set: no idempotency and no run lock")
	}

	// routes
	httpadp.Routes(e,
		httpadp.NewHandler(s.Checks()),
		httpadp.NewMigrationHandler(s.Driver(log), s.Lock, s.Metrics, log),
		httpadp.NewSettlementHandler(s.Settlement, s.EarlySettle, s.Lock, s.Metrics, log),
		idem,
	)

	go func() {
		addr := ":" + cfg.AppPort
		log.Info("listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}
