package handler // maintenance request endpoints

import (
    "net/http" // http defines status code constants
    "strings"  // strings normalizes query filters

    "github.com/labstack/echo/v4" // echo framework supplies request context

    "github.com/gearguard/gearguard/internal/model"   // filter types
    "github.com/gearguard/gearguard/internal/service" // request workflow
)

// RequestHandler serves /v1/requests.  Ownership checks for edit, delete
// and status changes happen in the workflow after the request is loaded.
type RequestHandler struct {
    Workflow *service.Workflow
}

func NewRequestHandler(workflow *service.Workflow) *RequestHandler {
    return &RequestHandler{Workflow: workflow}
}

// Create handles POST /v1/requests.
func (h *RequestHandler) Create(c echo.Context) error {
    a, err := actor(c) // retrieve the authenticated caller
    if err != nil {
        return err
    }
    var body struct {
        Title         string  `json:"title"`
        Description   string  `json:"description"`
        Type          string  `json:"type"`          // CORRECTIVE | PREVENTIVE
        Priority      string  `json:"priority"`      // LOW | MEDIUM | HIGH, default MEDIUM
        EquipmentID   uint64  `json:"equipmentId"`   // required
        ScheduledDate *string `json:"scheduledDate"` // required for PREVENTIVE
    }
    if err := bind(c, &body); err != nil {
        return err
    }
    scheduled, err := parseDate(body.ScheduledDate)
    if err != nil {
        return err
    }
    req, err := h.Workflow.Create(c.Request().Context(), a, service.CreateRequestInput{
        Title:         body.Title,
        Description:   body.Description,
        Type:          body.Type,
        Priority:      body.Priority,
        EquipmentID:   body.EquipmentID,
        ScheduledDate: scheduled,
    })
    if err != nil {
        return err
    }
    return respond(c, http.StatusCreated, req, "Request created successfully")
}

// List handles GET /v1/requests?status=&priority=&type=&assignedTeam=&equipment=.
func (h *RequestHandler) List(c echo.Context) error {
    team, err := queryID(c, "assignedTeam")
    if err != nil {
        return err
    }
    equipment, err := queryID(c, "equipment")
    if err != nil {
        return err
    }
    f := model.RequestFilter{
        Status:      model.RequestStatus(upperQuery(c, "status")),
        Priority:    model.Priority(upperQuery(c, "priority")),
        Type:        model.RequestType(upperQuery(c, "type")),
        TeamID:      team,
        EquipmentID: equipment,
    }
    out, err := h.Workflow.List(c.Request().Context(), f)
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, out, "Requests fetched successfully")
}

// Kanban handles GET /v1/requests/kanban.
func (h *RequestHandler) Kanban(c echo.Context) error {
    out, err := h.Workflow.Kanban(c.Request().Context())
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, out, "Kanban data fetched successfully")
}

// Preventive handles GET /v1/requests/preventive?month=&year=.
func (h *RequestHandler) Preventive(c echo.Context) error {
    month, err := queryInt(c, "month")
    if err != nil {
        return err
    }
    year, err := queryInt(c, "year")
    if err != nil {
        return err
    }
    out, err := h.Workflow.Preventive(c.Request().Context(), month, year)
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, out, "Preventive requests fetched successfully")
}

// Get handles GET /v1/requests/:id.
func (h *RequestHandler) Get(c echo.Context) error {
    id, err := idParam(c, "id")
    if err != nil {
        return err
    }
    req, err := h.Workflow.Get(c.Request().Context(), id)
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, req, "Request fetched successfully")
}

// Update handles PATCH /v1/requests/:id.
func (h *RequestHandler) Update(c echo.Context) error {
    a, err := actor(c)
    if err != nil {
        return err
    }
    id, err := idParam(c, "id")
    if err != nil {
        return err
    }
    var body struct {
        Title         *string `json:"title"`
        Description   *string `json:"description"`
        Priority      *string `json:"priority"`
        ScheduledDate *string `json:"scheduledDate"`
    }
    if err := bind(c, &body); err != nil {
        return err
    }
    scheduled, err := parseDate(body.ScheduledDate)
    if err != nil {
        return err
    }
    req, err := h.Workflow.Update(c.Request().Context(), a, id, service.UpdateRequestInput{
        Title:         body.Title,
        Description:   body.Description,
        Priority:      body.Priority,
        ScheduledDate: scheduled,
    })
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, req, "Request updated successfully")
}

// UpdateStatus handles PATCH /v1/requests/:id/status.  duration (hours) is
// required when the new status is REPAIRED.
func (h *RequestHandler) UpdateStatus(c echo.Context) error {
    a, err := actor(c)
    if err != nil {
        return err
    }
    id, err := idParam(c, "id")
    if err != nil {
        return err
    }
    var body struct {
        Status   string   `json:"status"`
        Duration *float64 `json:"duration"`
    }
    if err := bind(c, &body); err != nil {
        return err
    }
    req, err := h.Workflow.UpdateStatus(c.Request().Context(), a, id, body.Status, body.Duration)
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, req, "Status updated successfully")
}

// Delete handles DELETE /v1/requests/:id.
func (h *RequestHandler) Delete(c echo.Context) error {
    a, err := actor(c)
    if err != nil {
        return err
    }
    id, err := idParam(c, "id")
    if err != nil {
        return err
    }
    if err := h.Workflow.Delete(c.Request().Context(), a, id); err != nil {
        return err
    }
    return respond(c, http.StatusOK, nil, "Request deleted successfully")
}

func upperQuery(c echo.Context, name string) string {
    return strings.ToUpper(strings.TrimSpace(c.QueryParam(name)))
}
