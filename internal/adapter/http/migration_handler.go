package http

import (
	"context"
	"net/http"

	"mohassil-migrator/internal/domain/migration"
	"mohassil-migrator/internal/infrastructure/cache"
	"mohassil-migrator/internal/usecase/migrate"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Migrator is the part of migrate.Driver the admin API drives.
type Migrator interface {
	Migrations() []migrate.Info
	Run(ctx context.Context, name string, opts migrate.RunOptions) (*migration.Result, error)
	Cleanup(ctx context.Context, name string) ([]migrate.Deleted, error)
}

type MigrationHandler struct {
	m    Migrator
	lock Locker
	runs RunObserver
	log  *zap.Logger
}

// NewMigrationHandler wires the driver; lock and runs may be nil.
func NewMigrationHandler(m Migrator, lock Locker, runs RunObserver, log *zap.Logger) *MigrationHandler {
	if lock == nil {
		lock = noLock{}
	}
	if runs == nil {
		runs = noRuns{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MigrationHandler{m: m, lock: lock, runs: runs, log: log}
}

type nameParam struct {
	Name string `json:"name" validate:"required,migration"`
}

type runReq struct {
	Limit     int  `json:"limit"      validate:"gte=0,lte=10000000"`
	DisableFK bool `json:"disable_fk"`
}

type runResp struct {
	*migration.Result
	SkipReasons []string `json:"skip_reasons,omitempty"`
	Errors      []string `json:"errors,omitempty"`
}

type cleanupResp struct {
	Migration string            `json:"migration"`
	Deleted   []migrate.Deleted `json:"deleted"`
}

func (h *MigrationHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"migrations": h.m.Migrations()})
}

func (h *MigrationHandler) Run(c echo.Context) error {
	p := nameParam{Name: c.Param("name")}
	if err := c.Validate(&p); err != nil {
		return invalidName(c, err)
	}
	name := p.Name
	var req runReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}

	ctx := c.Request().Context()
	release, err := h.lock.Acquire(ctx, cache.Operator)
	if err != nil {
		return c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
	}
	defer release()

	res, err := h.m.Run(ctx, name, migrate.RunOptions{Limit: uint64(req.Limit), DisableFK: req.DisableFK})
	h.runs.ObserveRun("run", err)
	if res == nil {
		h.log.Error("migration failed", zap.String("migration", name), zap.Error(err))
		return c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
	}
	out := runResp{Result: res, SkipReasons: migrate.SkipReasons(res), Errors: errorList(res.Err())}
	if err != nil {
		out.Errors = append(out.Errors, err.Error())
		return c.JSON(statusFor(err), out)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *MigrationHandler) Cleanup(c echo.Context) error {
	p := nameParam{Name: c.Param("name")}
	if err := c.Validate(&p); err != nil {
		return invalidName(c, err)
	}
	name := p.Name
	ctx := c.Request().Context()
	release, err := h.lock.Acquire(ctx, cache.Operator)
	if err != nil {
		return c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
	}
	defer release()

	deleted, err := h.m.Cleanup(ctx, name)
	h.runs.ObserveRun("cleanup", err)
	if err != nil {
		h.log.Error("cleanup failed", zap.String("migration", name), zap.Error(err))
		return c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, cleanupResp{Migration: name, Deleted: deleted})
}

func invalidName(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid migration name",
		Details: ToFieldErrors(err),
	})
}
