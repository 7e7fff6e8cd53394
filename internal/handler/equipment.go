package handler // equipment registry endpoints

import (
    "net/http" // http defines status code constants
    "strings"  // strings normalizes query filters

    "github.com/labstack/echo/v4" // echo framework supplies request context

    "github.com/gearguard/gearguard/internal/model"   // filter and patch types
    "github.com/gearguard/gearguard/internal/service" // equipment and workflow services
)

// EquipmentHandler serves /v1/equipment.  Writes are MANAGER-only; the
// router enforces that with Authorize(policy.EquipmentWrite).
type EquipmentHandler struct {
    Equipment *service.Equipment
    Workflow  *service.Workflow
}

func NewEquipmentHandler(equipment *service.Equipment, workflow *service.Workflow) *EquipmentHandler {
    return &EquipmentHandler{Equipment: equipment, Workflow: workflow}
}

// Create handles POST /v1/equipment.
func (h *EquipmentHandler) Create(c echo.Context) error {
    var body struct { // anonymous struct to bind JSON payload
        Name         string  `json:"name"`
        SerialNumber string  `json:"serialNumber"`
        Location     string  `json:"location"`
        TeamID       *uint64 `json:"teamId"` // optional maintenance team
    }
    if err := bind(c, &body); err != nil {
        return err
    }
    eq, err := h.Equipment.Create(c.Request().Context(), service.CreateEquipmentInput{
        Name:         body.Name,
        SerialNumber: body.SerialNumber,
        Location:     body.Location,
        TeamID:       body.TeamID,
    })
    if err != nil {
        return err
    }
    return respond(c, http.StatusCreated, eq, "Equipment created successfully")
}

// List handles GET /v1/equipment?status=&location=.
func (h *EquipmentHandler) List(c echo.Context) error {
    f := model.EquipmentFilter{
        Status:   model.EquipmentStatus(strings.TrimSpace(c.QueryParam("status"))),
        Location: strings.TrimSpace(c.QueryParam("location")),
    }
    out, err := h.Equipment.List(c.Request().Context(), f)
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, out, "Equipment fetched successfully")
}

// Get handles GET /v1/equipment/:id.
func (h *EquipmentHandler) Get(c echo.Context) error {
    id, err := idParam(c, "id")
    if err != nil {
        return err
    }
    eq, err := h.Equipment.Get(c.Request().Context(), id)
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, eq, "Equipment fetched successfully")
}

// Update handles PATCH /v1/equipment/:id.  Omitted or blank fields keep
// their value.
func (h *EquipmentHandler) Update(c echo.Context) error {
    id, err := idParam(c, "id")
    if err != nil {
        return err
    }
    var body struct {
        Name         *string `json:"name"`
        SerialNumber *string `json:"serialNumber"`
        Location     *string `json:"location"`
        TeamID       *uint64 `json:"teamId"`
    }
    if err := bind(c, &body); err != nil {
        return err
    }
    eq, err := h.Equipment.Update(c.Request().Context(), id, model.EquipmentPatch{
        Name:         body.Name,
        SerialNumber: body.SerialNumber,
        Location:     body.Location,
        TeamID:       body.TeamID,
    })
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, eq, "Equipment updated successfully")
}

// Scrap handles PATCH /v1/equipment/:id/scrap.
func (h *EquipmentHandler) Scrap(c echo.Context) error {
    id, err := idParam(c, "id")
    if err != nil {
        return err
    }
    eq, err := h.Equipment.Scrap(c.Request().Context(), id)
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, eq, "Equipment scrapped successfully")
}

// Delete handles DELETE /v1/equipment/:id.  Equipment with requests or
// payments cannot be deleted.
func (h *EquipmentHandler) Delete(c echo.Context) error {
    id, err := idParam(c, "id")
    if err != nil {
        return err
    }
    if err := h.Equipment.Delete(c.Request().Context(), id); err != nil {
        return err
    }
    return respond(c, http.StatusOK, nil, "Equipment deleted successfully")
}

// Requests handles GET /v1/equipment/:id/requests: the equipment, its
// request history and the pending / total counts.
func (h *EquipmentHandler) Requests(c echo.Context) error {
    id, err := idParam(c, "id")
    if err != nil {
        return err
    }
    out, err := h.Workflow.ByEquipment(c.Request().Context(), id)
    if err != nil {
        return err
    }
    return respond(c, http.StatusOK, out, "Requests fetched successfully")
}
