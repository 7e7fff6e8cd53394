package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/gearguard/gearguard/internal/handler"    // import the handlers that implement each endpoint
	"github.com/gearguard/gearguard/internal/middleware" // import middleware for JWT authentication and policy checks
	"github.com/gearguard/gearguard/internal/policy"     // actions guarded per route
)

// RegisterRoutes registers routes that do not require authentication:
// the health check for load balancers and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
	e.GET("/metrics", middleware.PrometheusHandler())
}

// RegisterAuth registers the session endpoints.  Register, login and refresh
// live under /v1/auth without a session; logout needs a valid access token
// so that the right refresh session is revoked.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token; the old one stops working.
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout, middleware.JWTAuth(jwtSecret))
}

// RegisterUsers registers the profile endpoints of the caller and the user
// listings.  The technician list is cached because team editors poll it.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/users", middleware.JWTAuth(jwtSecret))
	g.GET("/me", u.Me)
	g.PATCH("/me", u.UpdateMe)
	g.POST("/me/password", u.ChangePassword)
	g.GET("/technicians", u.Technicians, cache)
	g.GET("", u.List, middleware.Authorize(policy.UserList))
}
