package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/gearguard/gearguard/internal/apperr"
    "github.com/gearguard/gearguard/internal/service"
)

// TeamHandler serves /v1/teams.
type TeamHandler struct {
    Teams *service.Teams
}

func NewTeamHandler(teams *service.Teams) *TeamHandler { return &TeamHandler{Teams: teams} }

func (h *TeamHandler) Create(c echo.Context) error {
    var body struct {
        Name        string   `json:"name"`
        Technicians []uint64 `json:"technicians"`
    }
    if err := bind(c, &body); err != nil {
        return err
    }
    t, err := h.Teams.Create(c.Request().Context(), body.Name, body.Technicians)
    if err != nil {
        return err
    }
    return respond(c, http.StatusCreated, t, "Team created successfully")
}

func (h *TeamHandler) List(c echo.Context) error {
    out, err := h.Teams.List(c.Request().Context())
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, out, "Teams fetched successfully")
}

func (h *TeamHandler) Get(c echo.Context) error {
    id, err := idParam(c, "id")
    if err != nil {
        return err
    }
    t, err := h.Teams.Get(c.Request().Context(), id)
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, t, "Team fetched successfully")
}

func (h *TeamHandler) Rename(c echo.Context) error {
    id, err := idParam(c, "id")
    if err != nil {
        return err
    }
    var body struct {
        Name string `json:"name"`
    }
    if err := bind(c, &body); err != nil {
        return err
    }
    t, err := h.Teams.Rename(c.Request().Context(), id, body.Name)
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, t, "Team updated successfully")
}

func (h *TeamHandler) Delete(c echo.Context) error {
    id, err := idParam(c, "id")
    if err != nil {
        return err
    }
    if err := h.Teams.Delete(c.Request().Context(), id); err != nil {
        return err
    }
    return respond(c, http.StatusOK, nil, "Team deleted successfully")
}

// membership binds the team id and the technicianId body field shared by
// AddTechnician and RemoveTechnician.
func membership(c echo.Context) (teamID, userID uint64, err error) {
    if teamID, err = idParam(c, "id"); err != nil {
        return 0, 0, err
    }
    var body struct {
        TechnicianID uint64 `json:"technicianId"`
    }
    if err := bind(c, &body); err != nil {
        return 0, 0, err
    }
    if body.TechnicianID == 0 {
        return 0, 0, apperr.Validation("technicianId is required")
    }
    return teamID, body.TechnicianID, nil
}

func (h *TeamHandler) AddTechnician(c echo.Context) error {
    teamID, userID, err := membership(c)
    if err != nil {
        return err
    }
    t, err := h.Teams.AddTechnician(c.Request().Context(), teamID, userID)
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, t, "Technician added to team successfully")
}

func (h *TeamHandler) RemoveTechnician(c echo.Context) error {
    teamID, userID, err := membership(c)
    if err != nil {
        return err
    }
    t, err := h.Teams.RemoveTechnician(c.Request().Context(), teamID, userID)
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, t, "Technician removed from team successfully")
}
