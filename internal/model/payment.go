package model

import "time"

// PaymentType names what a payment is for.
type PaymentType string

const (
    PaymentRental       PaymentType = "RENTAL"
    PaymentService      PaymentType = "SERVICE"
    PaymentSubscription PaymentType = "SUBSCRIPTION"
)

// Valid reports whether t is a known payment type.
func (t PaymentType) Valid() bool {
    return t == PaymentRental || t == PaymentService || t == PaymentSubscription
}

// PaymentStatus moves PENDING → COMPLETED | FAILED, and COMPLETED → REFUNDED.
type PaymentStatus string

const (
    PaymentPending   PaymentStatus = "PENDING"
    PaymentCompleted PaymentStatus = "COMPLETED"
    PaymentFailed    PaymentStatus = "FAILED"
    PaymentRefunded  PaymentStatus = "REFUNDED"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
    switch s {
    case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
        return true
    }
    return false
}

// Payment mirrors the `payments` table.  Amount is in major currency units;
// the gateway works in minor units (see gateway.MinorUnits).
type Payment struct {
    ID               uint64        `json:"id"`
    UserID           uint64        `json:"userId"`
    EquipmentID      *uint64       `json:"equipmentId"`
    RequestID        *uint64       `json:"requestId"`
    OrderID          string        `json:"orderId"`
    GatewayPaymentID *string       `json:"gatewayPaymentId"`
    Signature        *string       `json:"-"`
    RefundID         *string       `json:"refundId,omitempty"`
    Amount           float64       `json:"amount"`
    Currency         string        `json:"currency"`
    Status           PaymentStatus `json:"status"`
    Type             PaymentType   `json:"paymentType"`
    Description      string        `json:"description"`
    UserEmail        *string       `json:"userEmail,omitempty"`
    EquipmentName    *string       `json:"equipmentName,omitempty"`
    RequestTitle     *string       `json:"requestTitle,omitempty"`
    CreatedAt        time.Time     `json:"createdAt"`
    UpdatedAt        time.Time     `json:"updatedAt"`
}

// PaymentFilter narrows payment listings.  Zero fields match everything.
type PaymentFilter struct {
    Status PaymentStatus
    Type   PaymentType
    UserID uint64
}

// PaymentStats aggregates amounts and counts by status.
type PaymentStats struct {
    TotalTransactions int64   `json:"totalTransactions"`
    TotalCompleted    float64 `json:"totalCompleted"`
    TotalPending      float64 `json:"totalPending"`
    TotalFailed       float64 `json:"totalFailed"`
    TotalRefunded     float64 `json:"totalRefunded"`
    CompletedCount    int64   `json:"completedCount"`
    PendingCount      int64   `json:"pendingCount"`
    FailedCount       int64   `json:"failedCount"`
    RefundedCount     int64   `json:"refundedCount"`
}
