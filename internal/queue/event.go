// Package queue defines the activity events exchanged over RabbitMQ together
// with the publisher used by services and the consumer that appends them to
// the activity log.
package queue

import (
    "encoding/json"
    "fmt"
    "strings"
    "time"

    "github.com/google/uuid"
)

// ActivityQueue is the durable queue every activity event is routed to.
const ActivityQueue = "gearguard.activity"

// Event types.
const (
    TypeRequestStatusChanged = "request.status_changed"
    TypePaymentSettled       = "payment.settled"
)

// Event is the envelope written to the broker.  Data holds one of the typed
// payloads below, selected by Type.
type Event struct {
    ID         string          `json:"id"`
    Type       string          `json:"type"`
    OccurredAt string          `json:"occurred_at"`
    Data       json.RawMessage `json:"data"`
}

// RequestStatusChangedEvent is published after a maintenance request moves
// between workflow states.
type RequestStatusChangedEvent struct {
    RequestID   uint64   `json:"request_id"`
    EquipmentID uint64   `json:"equipment_id"`
    Title       string   `json:"title"`
    From        string   `json:"from"`
    To          string   `json:"to"`
    Duration    *float64 `json:"duration,omitempty"`
    ActorID     uint64   `json:"actor_id"`
    ActorRole   string   `json:"actor_role"`
}

// PaymentSettledEvent is published when a verification attempt finalizes a
// payment as COMPLETED or FAILED, and when a payment is refunded.
type PaymentSettledEvent struct {
    PaymentID        uint64  `json:"payment_id"`
    UserID           uint64  `json:"user_id"`
    OrderID          string  `json:"order_id"`
    GatewayPaymentID string  `json:"gateway_payment_id,omitempty"`
    Status           string  `json:"status"`
    Type             string  `json:"payment_type"`
    Amount           float64 `json:"amount"`
    Currency         string  `json:"currency"`
    RequestID        *uint64 `json:"request_id,omitempty"`
}

// NewEvent wraps data in an envelope with a fresh ID and the current time.
func NewEvent(typ string, data any) (Event, error) {
    raw, err := json.Marshal(data)
    if err != nil {
        return Event{}, err
    }
    return Event{
        ID:         uuid.NewString(),
        Type:       typ,
        OccurredAt: time.Now().UTC().Format(time.RFC3339),
        Data:       raw,
    }, nil
}

// Line renders the event as a single human-readable activity log line.
func (e Event) Line() (string, error) {
    var b strings.Builder
    fmt.Fprintf(&b, "[%s] ", e.OccurredAt)
    switch e.Type {
    case TypeRequestStatusChanged:
        var ev RequestStatusChangedEvent
        if err := json.Unmarshal(e.Data, &ev); err != nil {
            return "", fmt.Errorf("unmarshal %s: %w", e.Type, err)
        }
        fmt.Fprintf(&b, "Request status changed | request_id=%d | equipment_id=%d | title=%q | %s -> %s | actor=%d (%s)",
            ev.RequestID, ev.EquipmentID, ev.Title, ev.From, ev.To, ev.ActorID, ev.ActorRole)
        if ev.Duration != nil {
            fmt.Fprintf(&b, " | duration=%.2fh", *ev.Duration)
        }
    case TypePaymentSettled:
        var ev PaymentSettledEvent
        if err := json.Unmarshal(e.Data, &ev); err != nil {
            return "", fmt.Errorf("unmarshal %s: %w", e.Type, err)
        }
        fmt.Fprintf(&b, "Payment %s | payment_id=%d | user_id=%d | order=%s | type=%s | amount=%.2f %s",
            strings.ToLower(ev.Status), ev.PaymentID, ev.UserID, ev.OrderID, ev.Type, ev.Amount, ev.Currency)
        if ev.RequestID != nil {
            fmt.Fprintf(&b, " | request_id=%d", *ev.RequestID)
        }
    default:
        fmt.Fprintf(&b, "%s | %s", e.Type, string(e.Data))
    }
    b.WriteString(" | event_id=" + e.ID + "\n")
    return b.String(), nil
}
