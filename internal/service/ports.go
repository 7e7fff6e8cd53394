// Package service holds the domain logic of GearGuard. Services depend on
// the narrow store interfaces below rather than on concrete repositories so
// they can be exercised with in-memory fakes.
package service

import (
	"context"

	"github.com/gearguard/gearguard/internal/gateway"
	"github.com/gearguard/gearguard/internal/model"
	"github.com/gearguard/gearguard/internal/policy"
	"github.com/gearguard/gearguard/internal/queue"
	"github.com/gearguard/gearguard/internal/repository"
)

type UserStore interface {
	Create(ctx context.Context, in repository.NewUser, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	List(ctx context.Context, role policy.Role) ([]model.UserSummary, error)
	UpdateAccount(ctx context.Context, id uint64, fullName, email *string) error
	UpdatePassword(ctx context.Context, id uint64, plain string, cost int) error
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string) error
	ValidateRefresh(ctx context.Context, userID uint64, tokenHash string) error
	Revoke(ctx context.Context, userID uint64) error
}

type EquipmentStore interface {
	Create(ctx context.Context, name, serial, location string, teamID *uint64) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.Equipment, error)
	List(ctx context.Context, f model.EquipmentFilter) ([]model.Equipment, error)
	Update(ctx context.Context, id uint64, p model.EquipmentPatch) error
	Scrap(ctx context.Context, id uint64) error
	Delete(ctx context.Context, id uint64) error
}

type TeamStore interface {
	Create(ctx context.Context, name string, technicianIDs []uint64) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.Team, error)
	Exists(ctx context.Context, id uint64) (bool, error)
	List(ctx context.Context) ([]model.Team, error)
	Rename(ctx context.Context, id uint64, name string) error
	Delete(ctx context.Context, id uint64) error
	AddTechnician(ctx context.Context, teamID, userID uint64) error
	RemoveTechnician(ctx context.Context, teamID, userID uint64) error
}

type RequestStore interface {
	Create(ctx context.Context, in model.NewRequest) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.Request, error)
	List(ctx context.Context, f model.RequestFilter) ([]model.Request, error)
	ListPreventive(ctx context.Context, month, year int) ([]model.Request, error)
	Update(ctx context.Context, id uint64, p model.RequestPatch) error
	UpdateStatus(ctx context.Context, id uint64, status model.RequestStatus, duration *float64) error
	Delete(ctx context.Context, id uint64) error
}

type PaymentStore interface {
	Create(ctx context.Context, in repository.NewPayment) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (model.Payment, error)
	MarkFailed(ctx context.Context, id uint64) error
	Complete(ctx context.Context, id uint64, gatewayPaymentID, signature string, settleRequestID *uint64) error
	Refund(ctx context.Context, id uint64, refundID string) error
	List(ctx context.Context, f model.PaymentFilter) ([]model.Payment, error)
	Stats(ctx context.Context) (model.PaymentStats, error)
}

// PaymentGateway is the subset of *gateway.Client the payment service uses.
type PaymentGateway interface {
	KeyID() string
	VerifySignature(orderID, paymentID, signature string) bool
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (gateway.Order, error)
	FetchPayment(ctx context.Context, paymentID string) (gateway.Payment, error)
	Refund(ctx context.Context, paymentID string, amount int64, notes map[string]string) (gateway.Refund, error)
}

// EventPublisher delivers activity events. Failures are logged by the caller
// and never fail the operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// Recorder receives domain counters.
type Recorder interface {
	PaymentProcessed(status string)
	RequestTransition(from, to string)
}

type nopRecorder struct{}

func (nopRecorder) PaymentProcessed(string)          {}
func (nopRecorder) RequestTransition(string, string) {}
