package middleware

// identity.go holds the context keys written by JWTAuth and Identify and the
// helpers that read them back: ActorFrom for handlers, userID for rate-limit
// keys and log fields.

import (
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/gearguard/gearguard/internal/policy"
)

const (
    ctxUserID = "user_id" // uint64
    ctxRole   = "role"    // policy.Role
)

// ActorFrom returns the authenticated caller.  ok is false on routes that
// are not behind JWTAuth.
func ActorFrom(c echo.Context) (actor policy.Actor, ok bool) {
    id, ok := c.Get(ctxUserID).(uint64)
    if !ok || id == 0 {
        return policy.Actor{}, false
    }
    role, ok := c.Get(ctxRole).(policy.Role)
    if !ok {
        return policy.Actor{}, false
    }
    return policy.Actor{ID: id, Role: role}, true
}

func setActor(c echo.Context, a policy.Actor) {
    c.Set(ctxUserID, a.ID)
    c.Set(ctxRole, a.Role)
}

// userID returns the caller id as a string, or "anon" for unauthenticated
// requests.
func userID(c echo.Context) string {
    if a, ok := ActorFrom(c); ok {
        return strconv.FormatUint(a.ID, 10)
    }
    return "anon"
}
