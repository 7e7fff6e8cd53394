package router

import (
	"github.com/labstack/echo/v4"

	"github.com/gearguard/gearguard/internal/handler"
	"github.com/gearguard/gearguard/internal/middleware"
	"github.com/gearguard/gearguard/internal/policy"
)

// RegisterPayments registers /v1/payments.  Any authenticated user may
// create and verify orders and read their own payments; listings across
// users, statistics and refunds are MANAGER-only.
func RegisterPayments(e *echo.Echo, h *handler.PaymentHandler, jwtSecret string) {
	g := e.Group("/v1/payments", middleware.JWTAuth(jwtSecret))

	g.POST("/create-order", h.CreateOrder, middleware.Authorize(policy.PaymentCreate))
	g.POST("/verify", h.Verify, middleware.Authorize(policy.PaymentVerify))
	g.GET("/my-payments", h.Mine, middleware.Authorize(policy.PaymentRead))

	admin := middleware.Authorize(policy.PaymentAdmin)
	g.GET("", h.List, admin)
	g.GET("/stats/overview", h.Stats, admin)

	g.GET("/:id", h.Get, middleware.Authorize(policy.PaymentRead))
	g.POST("/:id/refund", h.Refund, middleware.Authorize(policy.PaymentRefund))
}
