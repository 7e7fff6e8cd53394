package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gearguard/gearguard/internal/apperr"
	"github.com/gearguard/gearguard/internal/gateway"
	"github.com/gearguard/gearguard/internal/model"
	"github.com/gearguard/gearguard/internal/policy"
	"github.com/gearguard/gearguard/internal/queue"
	"github.com/gearguard/gearguard/internal/repository"
)

// Payments reconciles local payment rows with the payment gateway.
//
//	PENDING --verify ok--> COMPLETED --refund--> REFUNDED
//	PENDING --bad signature / not captured / gateway error--> FAILED
//
// Every move is a conditional write on the source status, so FAILED never
// becomes COMPLETED and a payment is refunded at most once.
type Payments struct {
	payments  PaymentStore
	equipment EquipmentStore
	requests  RequestStore
	gateway   PaymentGateway
	events    EventPublisher
	metrics   Recorder
	currency  string
	log       *zap.Logger
	now       func() time.Time
}

func NewPayments(payments PaymentStore, equipment EquipmentStore, requests RequestStore, gw PaymentGateway,
	events EventPublisher, metrics Recorder, currency string, log *zap.Logger) *Payments {
	if currency == "" {
		currency = "INR"
	}
	return &Payments{
		payments:  payments,
		equipment: equipment,
		requests:  requests,
		gateway:   gw,
		events:    events,
		metrics:   orNopRecorder(metrics),
		currency:  strings.ToUpper(currency),
		log:       orNop(log).Named("payments"),
		now:       time.Now,
	}
}

// CreateOrderInput is the checkout request. Amount is in major units.
type CreateOrderInput struct {
	Amount      float64
	Description string
	PaymentType string
	EquipmentID *uint64
	RequestID   *uint64
}

// Order is what the checkout widget needs to collect the payment.
type Order struct {
	OrderID   string `json:"orderId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	PaymentID uint64 `json:"paymentId"`
	KeyID     string `json:"keyId"`
}

// CreateOrder validates the purchase, opens a gateway order and records a
// PENDING payment. Nothing is stored when the gateway call fails.
func (s *Payments) CreateOrder(ctx context.Context, actor policy.Actor, in CreateOrderInput) (Order, error) {
	desc := strings.TrimSpace(in.Description)
	if in.Amount == 0 || desc == "" || in.PaymentType == "" {
		return Order{}, apperr.Validation("amount, description and paymentType are required")
	}
	if in.Amount < 0 {
		return Order{}, apperr.Validation("amount must be greater than zero")
	}
	typ := model.PaymentType(strings.ToUpper(in.PaymentType))
	if !typ.Valid() {
		return Order{}, apperr.Validation("paymentType must be RENTAL, SERVICE or SUBSCRIPTION")
	}
	minor := gateway.MinorUnits(in.Amount)
	if minor <= 0 {
		return Order{}, apperr.Validation("amount must be greater than zero")
	}

	if typ == model.PaymentRental && in.EquipmentID != nil {
		eq, err := s.equipment.GetByID(ctx, *in.EquipmentID)
		if err != nil {
			return Order{}, storeErr("load equipment", err, "equipment not found", "")
		}
		if eq.Scrapped() {
			return Order{}, apperr.Conflict("cannot rent scrapped equipment")
		}
	}
	if typ == model.PaymentService && in.RequestID != nil {
		if _, err := s.requests.GetByID(ctx, *in.RequestID); err != nil {
			return Order{}, storeErr("load request", err, "request not found", "")
		}
	}

	order, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   minor,
		Currency: s.currency,
		Receipt:  fmt.Sprintf("receipt_%d", s.now().UnixNano()),
		Notes: map[string]string{
			"description": desc,
			"paymentType": string(typ),
			"userId":      strconv.FormatUint(actor.ID, 10),
		},
	})
	if err != nil {
		s.log.Error("gateway order failed", zap.Uint64("user_id", actor.ID), zap.Error(err))
		return Order{}, apperr.Upstream("failed to create payment order", err)
	}

	id, err := s.payments.Create(ctx, repository.NewPayment{
		UserID:      actor.ID,
		EquipmentID: in.EquipmentID,
		RequestID:   in.RequestID,
		OrderID:     order.ID,
		Amount:      float64(minor) / 100,
		Currency:    s.currency,
		Type:        typ,
		Description: desc,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return Order{}, apperr.Conflict("cannot rent scrapped equipment")
		}
		return Order{}, storeErr("record payment", err, "equipment or request not found", "payment order already recorded")
	}
	s.log.Info("payment order created",
		zap.Uint64("payment_id", id),
		zap.String("order_id", order.ID),
		zap.Int64("amount_minor", minor),
		zap.String("type", string(typ)))

	currency := order.Currency
	if currency == "" {
		currency = s.currency
	}
	amount := order.Amount
	if amount == 0 {
		amount = minor
	}
	return Order{OrderID: order.ID, Amount: amount, Currency: currency, PaymentID: id, KeyID: s.gateway.KeyID()}, nil
}

// Verify checks the checkout signature and the gateway capture state, then
// completes the payment. Any failed check durably marks the payment FAILED
// before the error is returned.
func (s *Payments) Verify(ctx context.Context, actor policy.Actor, orderID, gatewayPaymentID, signature string) (model.Payment, error) {
	orderID = strings.TrimSpace(orderID)
	gatewayPaymentID = strings.TrimSpace(gatewayPaymentID)
	signature = strings.TrimSpace(signature)
	if orderID == "" || gatewayPaymentID == "" || signature == "" {
		return model.Payment{}, apperr.Validation("orderId, paymentId and signature are required")
	}
	p, err := s.payments.GetByOrderID(ctx, orderID)
	if err != nil {
		return model.Payment{}, storeErr("load payment", err, "payment record not found", "")
	}
	if !actor.Can(policy.PaymentRead, p.UserID) {
		return model.Payment{}, apperr.Forbidden("you are not authorized to verify this payment")
	}

	if !s.gateway.VerifySignature(orderID, gatewayPaymentID, signature) {
		if p.Status == model.PaymentPending {
			if err := s.markFailed(ctx, p, gatewayPaymentID, "invalid signature"); err != nil {
				return model.Payment{}, err
			}
		}
		return model.Payment{}, apperr.Validation("payment verification failed: invalid signature")
	}
	if p.Status != model.PaymentPending {
		return model.Payment{}, apperr.Conflict("payment is already " + strings.ToLower(string(p.Status)))
	}

	gp, err := s.gateway.FetchPayment(ctx, gatewayPaymentID)
	if err != nil {
		if ferr := s.markFailed(ctx, p, gatewayPaymentID, "gateway lookup failed"); ferr != nil {
			return model.Payment{}, ferr
		}
		return model.Payment{}, apperr.Upstream("payment verification failed", err)
	}
	if gp.Status != gateway.StatusCaptured {
		if err := s.markFailed(ctx, p, gatewayPaymentID, "not captured: "+gp.Status); err != nil {
			return model.Payment{}, err
		}
		return model.Payment{}, apperr.Conflict("payment not captured by gateway")
	}

	var settle *uint64
	if p.Type == model.PaymentService && p.RequestID != nil {
		settle = p.RequestID
	}
	if err := s.payments.Complete(ctx, p.ID, gatewayPaymentID, signature, settle); err != nil {
		return model.Payment{}, storeErr("complete payment", err, "payment record not found", "payment is no longer pending")
	}
	p.Status = model.PaymentCompleted
	s.settled(ctx, p, gatewayPaymentID)
	s.log.Info("payment completed", zap.Uint64("payment_id", p.ID), zap.String("order_id", orderID))
	return s.load(ctx, p.ID)
}

// markFailed moves p from PENDING to FAILED. Losing the race to another
// verification is not an error.
func (s *Payments) markFailed(ctx context.Context, p model.Payment, gatewayPaymentID, reason string) error {
	err := s.payments.MarkFailed(ctx, p.ID)
	if errors.Is(err, repository.ErrConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	s.log.Warn("payment failed", zap.Uint64("payment_id", p.ID), zap.String("order_id", p.OrderID), zap.String("reason", reason))
	p.Status = model.PaymentFailed
	s.settled(ctx, p, gatewayPaymentID)
	return nil
}

func (s *Payments) settled(ctx context.Context, p model.Payment, gatewayPaymentID string) {
	s.metrics.PaymentProcessed(string(p.Status))
	emit(ctx, s.events, s.log, queue.TypePaymentSettled, queue.PaymentSettledEvent{
		PaymentID:        p.ID,
		UserID:           p.UserID,
		OrderID:          p.OrderID,
		GatewayPaymentID: gatewayPaymentID,
		Status:           string(p.Status),
		Type:             string(p.Type),
		Amount:           p.Amount,
		Currency:         p.Currency,
		RequestID:        p.RequestID,
	})
}

// Refund returns the full amount of a COMPLETED payment through the gateway
// and marks it REFUNDED. A gateway failure leaves it COMPLETED.
func (s *Payments) Refund(ctx context.Context, id uint64, reason string) (model.Payment, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return model.Payment{}, err
	}
	if p.Status != model.PaymentCompleted {
		return model.Payment{}, apperr.Conflict("only completed payments can be refunded")
	}
	if p.GatewayPaymentID == nil || *p.GatewayPaymentID == "" {
		return model.Payment{}, fmt.Errorf("refund payment %d: completed payment has no gateway payment id", p.ID)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Admin refund"
	}

	rf, err := s.gateway.Refund(ctx, *p.GatewayPaymentID, gateway.MinorUnits(p.Amount), map[string]string{"reason": reason})
	if err != nil {
		s.log.Error("gateway refund failed", zap.Uint64("payment_id", p.ID), zap.Error(err))
		return model.Payment{}, apperr.Upstream("failed to process refund", err)
	}
	if err := s.payments.Refund(ctx, p.ID, rf.ID); err != nil {
		return model.Payment{}, storeErr("record refund", err, "payment not found", "payment was already refunded")
	}
	p.Status = model.PaymentRefunded
	s.settled(ctx, p, *p.GatewayPaymentID)
	s.log.Info("payment refunded", zap.Uint64("payment_id", p.ID), zap.String("refund_id", rf.ID))
	return s.load(ctx, p.ID)
}

// Get returns a payment to its owner or a manager.
func (s *Payments) Get(ctx context.Context, actor policy.Actor, id uint64) (model.Payment, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return model.Payment{}, err
	}
	if !actor.Can(policy.PaymentRead, p.UserID) {
		return model.Payment{}, apperr.Forbidden("you are not authorized to view this payment")
	}
	return p, nil
}

// ListMine returns the actor's payments, newest first.
func (s *Payments) ListMine(ctx context.Context, actor policy.Actor, status, paymentType string) ([]model.Payment, error) {
	f, err := paymentFilter(status, paymentType)
	if err != nil {
		return nil, err
	}
	f.UserID = actor.ID
	return s.list(ctx, f)
}

// ListAll returns every payment, optionally narrowed to one user.
func (s *Payments) ListAll(ctx context.Context, status, paymentType string, userID uint64) ([]model.Payment, error) {
	f, err := paymentFilter(status, paymentType)
	if err != nil {
		return nil, err
	}
	f.UserID = userID
	return s.list(ctx, f)
}

// Stats aggregates payment amounts and counts by status.
func (s *Payments) Stats(ctx context.Context) (model.PaymentStats, error) {
	st, err := s.payments.Stats(ctx)
	if err != nil {
		return model.PaymentStats{}, storeErr("payment stats", err, "", "")
	}
	return st, nil
}

func (s *Payments) list(ctx context.Context, f model.PaymentFilter) ([]model.Payment, error) {
	out, err := s.payments.List(ctx, f)
	if err != nil {
		return nil, storeErr("list payments", err, "", "")
	}
	return out, nil
}

func (s *Payments) load(ctx context.Context, id uint64) (model.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return model.Payment{}, storeErr("load payment", err, "payment not found", "")
	}
	return p, nil
}

func paymentFilter(status, paymentType string) (model.PaymentFilter, error) {
	var f model.PaymentFilter
	if status != "" {
		f.Status = model.PaymentStatus(strings.ToUpper(status))
		if !f.Status.Valid() {
			return f, apperr.Validation("invalid status filter")
		}
	}
	if paymentType != "" {
		f.Type = model.PaymentType(strings.ToUpper(paymentType))
		if !f.Type.Valid() {
			return f, apperr.Validation("invalid paymentType filter")
		}
	}
	return f, nil
}
