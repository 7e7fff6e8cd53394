package model

import "time"

// EquipmentStatus is the lifecycle flag of a piece of equipment.  SCRAPPED
// is terminal.
type EquipmentStatus string

const (
    EquipmentActive   EquipmentStatus = "ACTIVE"
    EquipmentScrapped EquipmentStatus = "SCRAPPED"
)

// Equipment mirrors a row of the `equipment` table joined with the name of
// its assigned team.
type Equipment struct {
    ID           uint64          `json:"id"`
    Name         string          `json:"name"`
    SerialNumber string          `json:"serialNumber"`
    Location     string          `json:"location"`
    TeamID       *uint64         `json:"teamId"`
    TeamName     *string         `json:"teamName,omitempty"`
    Status       EquipmentStatus `json:"status"`
    CreatedAt    time.Time       `json:"createdAt"`
    UpdatedAt    time.Time       `json:"updatedAt"`
}

// Scrapped reports whether the equipment has been retired.
func (e Equipment) Scrapped() bool { return e.Status == EquipmentScrapped }

// EquipmentFilter narrows equipment listings.  Empty fields match everything.
type EquipmentFilter struct {
    Status   EquipmentStatus
    Location string
}

// EquipmentPatch carries optional updates; nil fields keep their stored value.
type EquipmentPatch struct {
    Name         *string
    SerialNumber *string
    Location     *string
    TeamID       *uint64
}
