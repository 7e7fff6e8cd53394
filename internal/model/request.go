package model

import "time"

// RequestType distinguishes reactive repairs from scheduled upkeep.
type RequestType string

const (
    RequestCorrective RequestType = "CORRECTIVE"
    RequestPreventive RequestType = "PREVENTIVE"
)

// Valid reports whether t is a known request type.
func (t RequestType) Valid() bool { return t == RequestCorrective || t == RequestPreventive }

// Priority of a maintenance request.
type Priority string

const (
    PriorityLow    Priority = "LOW"
    PriorityMedium Priority = "MEDIUM"
    PriorityHigh   Priority = "HIGH"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
    return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// RequestStatus is a state of the request workflow.
type RequestStatus string

const (
    StatusNew        RequestStatus = "NEW"
    StatusInProgress RequestStatus = "IN_PROGRESS"
    StatusRepaired   RequestStatus = "REPAIRED"
    StatusScrap      RequestStatus = "SCRAP"
)

// RequestStatuses lists the workflow states in kanban column order.
var RequestStatuses = []RequestStatus{StatusNew, StatusInProgress, StatusRepaired, StatusScrap}

// Valid reports whether s is one of the four workflow states.
func (s RequestStatus) Valid() bool {
    for _, known := range RequestStatuses {
        if s == known {
            return true
        }
    }
    return false
}

// Pending reports whether work on the request is still outstanding.
func (s RequestStatus) Pending() bool { return s == StatusNew || s == StatusInProgress }

// Request is a maintenance work item joined with the display names of its
// equipment, team and requester.
//
// Fields:
//  TeamID        – copied from the equipment at creation and never changed.
//  ScheduledDate – set only for PREVENTIVE requests.
//  Duration      – hours spent, attached when the request enters REPAIRED.
//  PaymentStatus – COMPLETED once a linked SERVICE payment is verified.
type Request struct {
    ID            uint64        `json:"id"`
    Title         string        `json:"title"`
    Description   string        `json:"description"`
    Type          RequestType   `json:"type"`
    Priority      Priority      `json:"priority"`
    Status        RequestStatus `json:"status"`
    EquipmentID   uint64        `json:"equipmentId"`
    EquipmentName *string       `json:"equipmentName,omitempty"`
    SerialNumber  *string       `json:"serialNumber,omitempty"`
    TeamID        *uint64       `json:"assignedTeamId"`
    TeamName      *string       `json:"teamName,omitempty"`
    RequestedBy   uint64        `json:"requestedBy"`
    RequesterName *string       `json:"requestedByName,omitempty"`
    ScheduledDate *time.Time    `json:"scheduledDate"`
    Duration      *float64      `json:"duration"`
    PaymentStatus *string       `json:"paymentStatus,omitempty"`
    CreatedAt     time.Time     `json:"createdAt"`
    UpdatedAt     time.Time     `json:"updatedAt"`
}

// NewRequest carries the validated fields of a request to be inserted.
type NewRequest struct {
    Title         string
    Description   string
    Type          RequestType
    Priority      Priority
    EquipmentID   uint64
    RequestedBy   uint64
    ScheduledDate *time.Time
}

// RequestPatch carries optional edits; nil fields keep their stored value.
type RequestPatch struct {
    Title         *string
    Description   *string
    Priority      *Priority
    ScheduledDate *time.Time
}

// RequestFilter narrows request listings.  Zero fields match everything.
type RequestFilter struct {
    Status      RequestStatus
    Priority    Priority
    Type        RequestType
    TeamID      uint64
    EquipmentID uint64
}

// Kanban groups requests into one column per workflow state.
type Kanban map[RequestStatus][]Request

// EquipmentRequests is the per-equipment history view.
type EquipmentRequests struct {
    Equipment    Equipment `json:"equipment"`
    Requests     []Request `json:"requests"`
    PendingCount int       `json:"pendingCount"`
    TotalCount   int       `json:"totalCount"`
}
