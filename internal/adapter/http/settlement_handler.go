package http

import (
	"context"
	"net/http"

	"mohassil-migrator/internal/infrastructure/cache"
	"mohassil-migrator/internal/usecase/earlysettle"
	"mohassil-migrator/internal/usecase/settlement"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type Settler interface {
	Run(ctx context.Context) (*settlement.Summary, error)
}

type EarlySettler interface {
	Run(ctx context.Context) (*earlysettle.Summary, error)
}

type SettlementHandler struct {
	txns  Settler
	early EarlySettler
	lock  Locker
	runs  RunObserver
	log   *zap.Logger
}

func NewSettlementHandler(txns Settler, early EarlySettler, lock Locker, runs RunObserver, log *zap.Logger) *SettlementHandler {
	if lock == nil {
		lock = noLock{}
	}
	if runs == nil {
		runs = noRuns{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SettlementHandler{txns: txns, early: early, lock: lock, runs: runs, log: log}
}

type settleResp struct {
	Summary any      `json:"summary,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// Transactions replays every loan ledger.
func (h *SettlementHandler) Transactions(c echo.Context) error {
	return h.settle(c, "settle_transactions", func(ctx context.Context) (any, error) {
		sum, err := h.txns.Run(ctx)
		if sum == nil {
			return nil, err
		}
		return sum, err
	})
}

// Installments early-settles the loans flagged in the legacy source.
func (h *SettlementHandler) Installments(c echo.Context) error {
	return h.settle(c, "settle_installments", func(ctx context.Context) (any, error) {
		sum, err := h.early.Run(ctx)
		if sum == nil {
			return nil, err
		}
		return sum, err
	})
}

func (h *SettlementHandler) settle(c echo.Context, action string, run func(context.Context) (any, error)) error {
	ctx := c.Request().Context()
	release, err := h.lock.Acquire(ctx, cache.Operator)
	if err != nil {
		return c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
	}
	defer release()

	sum, err := run(ctx)
	h.runs.ObserveRun(action, err)
	if err != nil {
		h.log.Error("settlement failed", zap.String("action", action), zap.Error(err))
		return c.JSON(statusFor(err), settleResp{Summary: sum, Errors: errorList(err)})
	}
	return c.JSON(http.StatusOK, settleResp{Summary: sum})
}
