package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "strings" // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/gearguard/gearguard/internal/apperr" // error taxonomy rendered by the central error handler
    "github.com/gearguard/gearguard/internal/policy" // role parsing
    "github.com/gearguard/gearguard/internal/utils"  // access token verification
)

// Cookie names shared by the auth handlers and JWTAuth.
const (
    AccessCookie  = "accessToken"
    RefreshCookie = "refreshToken"
)

// JWTAuth returns an Echo middleware that validates an access token and
// stores the caller's id and role in the request context.  The token is read
// from a "Bearer" Authorization header first and from the accessToken cookie
// otherwise.  Handlers obtain the caller through ActorFrom.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if _, ok := ActorFrom(c); ok {
                return next(c) // already resolved by Identify
            }
            a, err := authenticate(c, secret)
            if err != nil {
                return err
            }
            setActor(c, a)
            return next(c)
        }
    }
}

// Identify resolves the caller from a valid access token when one is sent
// and never rejects the request.  It runs globally ahead of the rate limiter
// and request logger so their keys and fields carry the user id; JWTAuth
// still guards the protected groups.
func Identify(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if a, err := authenticate(c, secret); err == nil {
                setActor(c, a)
            }
            return next(c)
        }
    }
}

func authenticate(c echo.Context, secret string) (policy.Actor, error) {
    raw := accessToken(c)
    if raw == "" {
        return policy.Actor{}, apperr.Unauthorized("unauthorized request")
    }
    // ParseAccess pins HS256, requires exp and a numeric subject.
    claims, err := utils.ParseAccess(secret, raw)
    if err != nil {
        return policy.Actor{}, apperr.Unauthorized("invalid access token")
    }
    role, ok := policy.ParseRole(claims.Role)
    if !ok {
        return policy.Actor{}, apperr.Unauthorized("invalid access token")
    }
    id, err := claims.UserID()
    if err != nil || id == 0 {
        return policy.Actor{}, apperr.Unauthorized("invalid access token")
    }
    return policy.Actor{ID: id, Role: role}, nil
}

// accessToken extracts the raw token from the header or the cookie.
func accessToken(c echo.Context) string {
    if auth := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
        return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
    }
    if ck, err := c.Cookie(AccessCookie); err == nil {
        return strings.TrimSpace(ck.Value)
    }
    return ""
}
