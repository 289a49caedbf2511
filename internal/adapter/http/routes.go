package http

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
)

// Routes registers the admin API. idem guards every mutating route and may
// be nil when redis is not configured.
func Routes(e *echo.Echo, h *Handler, m *MigrationHandler, s *SettlementHandler, idem echo.MiddlewareFunc) {
	var mw []echo.MiddlewareFunc
	if idem != nil {
		mw = append(mw, idem)
	}

	e.GET("/health", h.Health)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/migrations", m.List)

	e.POST("/migrations/:name/run", m.Run, mw...)
	e.POST("/migrations/:name/cleanup", m.Cleanup, mw...)
	e.POST("/settlements/transactions", s.Transactions, mw...)
	e.POST("/settlements/installments", s.Installments, mw...)
}
