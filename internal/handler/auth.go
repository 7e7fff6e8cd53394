package handler

import (
    "net/http" // HTTP status codes and cookies
    "strings"  // string manipulation utilities
    "time"     // cookie expiry

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing

    "github.com/gearguard/gearguard/internal/middleware" // cookie names
    "github.com/gearguard/gearguard/internal/service"    // account operations
)

// AuthHandler serves registration and the session endpoints.  Tokens are
// returned in the body and set as HttpOnly, SameSite=Strict cookies; the
// Secure flag is set in production.
type AuthHandler struct {
    Accounts *service.Accounts
    Secure   bool
}

func NewAuthHandler(accounts *service.Accounts, secure bool) *AuthHandler {
    return &AuthHandler{Accounts: accounts, Secure: secure}
}

// ----- DTOs -----

type registerReq struct {
    Username string `json:"username"`
    Email    string `json:"email"`
    FullName string `json:"fullName"`
    Password string `json:"password"`
    Role     string `json:"role"` // USER | TECHNICIAN | MANAGER, default USER
}
type loginReq struct {
    Email    string `json:"email"`
    Password string `json:"password"`
}
type refreshReq struct {
    RefreshToken string `json:"refreshToken"`
}

// Register: create the user; no tokens are issued.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if err := bind(c, &req); err != nil {
        return err
    }
    u, err := h.Accounts.Register(c.Request().Context(), service.RegisterInput{
        Username: req.Username,
        Email:    req.Email,
        FullName: req.FullName,
        Password: req.Password,
        Role:     req.Role,
    })
    if err != nil {
        return err
    }
    return respond(c, http.StatusCreated, u, "User registered successfully!")
}

// Login: verify credentials and start a session.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := bind(c, &req); err != nil {
        return err
    }
    s, err := h.Accounts.Login(c.Request().Context(), req.Email, req.Password)
    if err != nil {
        return err
    }
    h.setCookies(c, s)
    return respond(c, http.StatusOK, echo.Map{
        "user":         s.User,
        "accessToken":  s.AccessToken,
        "refreshToken": s.RefreshToken,
    }, "User logged in successfully!")
}

// Refresh: rotate the session.  The refresh token comes from the cookie or,
// failing that, the body.
func (h *AuthHandler) Refresh(c echo.Context) error {
    raw := ""
    if ck, err := c.Cookie(middleware.RefreshCookie); err == nil {
        raw = strings.TrimSpace(ck.Value)
    }
    if raw == "" {
        var req refreshReq
        _ = c.Bind(&req) // an empty or malformed body leaves raw empty
        raw = strings.TrimSpace(req.RefreshToken)
    }
    s, err := h.Accounts.Refresh(c.Request().Context(), raw)
    if err != nil {
        return err
    }
    h.setCookies(c, s)
    return respond(c, http.StatusOK, echo.Map{
        "accessToken":  s.AccessToken,
        "refreshToken": s.RefreshToken,
    }, "Access token refreshed")
}

// Logout: drop the stored refresh token and clear both cookies (protected).
func (h *AuthHandler) Logout(c echo.Context) error {
    a, err := actor(c)
    if err != nil {
        return err
    }
    if err := h.Accounts.Logout(c.Request().Context(), a.ID); err != nil {
        return err
    }
    h.clearCookies(c)
    return respond(c, http.StatusOK, echo.Map{}, "User logged out successfully!")
}

func (h *AuthHandler) setCookies(c echo.Context, s service.Session) {
    c.SetCookie(h.cookie(middleware.AccessCookie, s.AccessToken, s.AccessExpiresAt))
    c.SetCookie(h.cookie(middleware.RefreshCookie, s.RefreshToken, s.RefreshExpiresAt))
}

func (h *AuthHandler) clearCookies(c echo.Context) {
    for _, name := range []string{middleware.AccessCookie, middleware.RefreshCookie} {
        ck := h.cookie(name, "", time.Unix(0, 0))
        ck.MaxAge = -1
        c.SetCookie(ck)
    }
}

func (h *AuthHandler) cookie(name, value string, exp time.Time) *http.Cookie {
    return &http.Cookie{
        Name:     name,
        Value:    value,
        Path:     "/",
        Expires:  exp,
        HttpOnly: true,
        Secure:   h.Secure,
        SameSite: http.SameSiteStrictMode,
    }
}
