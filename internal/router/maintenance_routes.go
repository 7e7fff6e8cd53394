package router

import (
	"github.com/labstack/echo/v4"

	"github.com/gearguard/gearguard/internal/handler"
	"github.com/gearguard/gearguard/internal/middleware"
	"github.com/gearguard/gearguard/internal/policy"
)

// RegisterEquipment registers /v1/equipment.  Reads are open to every
// authenticated role; writes require equipment.write (MANAGER).
func RegisterEquipment(e *echo.Echo, h *handler.EquipmentHandler, jwtSecret string) {
	g := e.Group("/v1/equipment", middleware.JWTAuth(jwtSecret))
	read := middleware.Authorize(policy.EquipmentRead)
	write := middleware.Authorize(policy.EquipmentWrite)

	g.GET("", h.List, read)
	g.GET("/:id", h.Get, read)
	g.GET("/:id/requests", h.Requests, read)

	g.POST("", h.Create, write)
	g.PATCH("/:id", h.Update, write)
	g.PATCH("/:id/scrap", h.Scrap, write)
	g.DELETE("/:id", h.Delete, write)
}

// RegisterTeams registers /v1/teams.  The team list is served through the
// response cache.
func RegisterTeams(e *echo.Echo, h *handler.TeamHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/teams", middleware.JWTAuth(jwtSecret))
	read := middleware.Authorize(policy.TeamRead)
	write := middleware.Authorize(policy.TeamWrite)

	g.GET("", h.List, read, cache)
	g.GET("/:id", h.Get, read)

	g.POST("", h.Create, write)
	g.PATCH("/:id", h.Rename, write)
	g.DELETE("/:id", h.Delete, write)
	g.POST("/:id/technicians", h.AddTechnician, write)
	g.DELETE("/:id/technicians", h.RemoveTechnician, write)
}

// RegisterRequests registers /v1/requests.  Update, delete and status are
// ownership-scoped for some roles; the workflow checks the owner after
// loading the request.
func RegisterRequests(e *echo.Echo, h *handler.RequestHandler, jwtSecret string) {
	g := e.Group("/v1/requests", middleware.JWTAuth(jwtSecret))
	read := middleware.Authorize(policy.RequestRead)

	g.POST("", h.Create, middleware.Authorize(policy.RequestCreate))
	g.GET("", h.List, read)
	// static segments are matched before /:id
	g.GET("/kanban", h.Kanban, read)
	g.GET("/preventive", h.Preventive, read)
	g.GET("/:id", h.Get, read)

	g.PATCH("/:id", h.Update, middleware.Authorize(policy.RequestUpdate))
	g.PATCH("/:id/status", h.UpdateStatus, middleware.Authorize(policy.RequestStatus))
	g.DELETE("/:id", h.Delete, middleware.Authorize(policy.RequestDelete))
}
