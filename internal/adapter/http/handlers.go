package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Locker serialises mutating operator actions.
type Locker interface {
	Acquire(ctx context.Context, name string) (func(), error)
}

// RunObserver counts finished operator actions.
type RunObserver interface {
	ObserveRun(action string, err error)
}

const checkTimeout = 2 * time.Second

// Handler serves the health endpoint. Each check pings one dependency.
type Handler struct {
	checks map[string]func(context.Context) error
	now    func() time.Time
}

func NewHandler(checks map[string]func(context.Context) error) *Handler {
	return &Handler{checks: checks, now: time.Now}
}

type healthResp struct {
	Status string            `json:"status"`
	Time   string            `json:"time"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health answers 503 when any dependency fails its ping.
func (h *Handler) Health(c echo.Context) error {
	resp := healthResp{Status: "ok", Time: h.now().UTC().Format(time.RFC3339Nano)}
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request().Context(), checkTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}
	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}

type noLock struct{}

func (noLock) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

type noRuns struct{}

func (noRuns) ObserveRun(string, error) {}
