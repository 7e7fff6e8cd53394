package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/gearguard/gearguard/internal/service"
)

// UserHandler serves the profile of the caller and the user listings.
type UserHandler struct {
    Accounts *service.Accounts
}

func NewUserHandler(accounts *service.Accounts) *UserHandler {
    return &UserHandler{Accounts: accounts}
}

// Me handles GET /v1/users/me.
func (h *UserHandler) Me(c echo.Context) error {
    a, err := actor(c)
    if err != nil {
        return err
    }
    u, err := h.Accounts.Me(c.Request().Context(), a.ID)
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, u, "Current user fetched successfully")
}

// UpdateMe handles PATCH /v1/users/me.
func (h *UserHandler) UpdateMe(c echo.Context) error {
    a, err := actor(c)
    if err != nil {
        return err
    }
    var body struct {
        FullName *string `json:"fullName"`
        Email    *string `json:"email"`
    }
    if err := bind(c, &body); err != nil {
        return err
    }
    u, err := h.Accounts.UpdateAccount(c.Request().Context(), a.ID, body.FullName, body.Email)
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, u, "Account details updated successfully")
}

// ChangePassword handles POST /v1/users/me/password.
func (h *UserHandler) ChangePassword(c echo.Context) error {
    a, err := actor(c)
    if err != nil {
        return err
    }
    var body struct {
        OldPassword string `json:"oldPassword"`
        NewPassword string `json:"newPassword"`
    }
    if err := bind(c, &body); err != nil {
        return err
    }
    if err := h.Accounts.ChangePassword(c.Request().Context(), a.ID, body.OldPassword, body.NewPassword); err != nil {
        return err
    }
    return respond(c, http.StatusOK, echo.Map{}, "Password changed successfully")
}

// Technicians handles GET /v1/users/technicians.
func (h *UserHandler) Technicians(c echo.Context) error {
    out, err := h.Accounts.Technicians(c.Request().Context())
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, out, "Technicians fetched successfully")
}

// List handles GET /v1/users?role=.
func (h *UserHandler) List(c echo.Context) error {
    out, err := h.Accounts.Users(c.Request().Context(), c.QueryParam("role"))
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, out, "Users fetched successfully")
}
