package middleware // middleware provides shared request processing for handlers

import (
    "github.com/labstack/echo/v4" // echo provides middleware chaining and context

    "github.com/gearguard/gearguard/internal/apperr"
    "github.com/gearguard/gearguard/internal/policy"
)

// Authorize returns a middleware that lets the request through only when
// the caller's role has some scope for action in the policy table.  It must
// run after JWTAuth.  Ownership-scoped actions (ScopeOwn) pass here; the
// service compares the owner once it has loaded the resource.
func Authorize(action policy.Action) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            actor, ok := ActorFrom(c)
            if !ok {
                return apperr.Unauthorized("unauthorized request")
            }
            if !policy.Allowed(action, actor.Role) {
                return apperr.Forbidden("you do not have permission to perform this action")
            }
            return next(c)
        }
    }
}
