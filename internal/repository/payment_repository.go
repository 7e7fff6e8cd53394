package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/gearguard/gearguard/internal/model"
)

// PaymentRepo persists gateway payments. Every status move is a single
// conditional UPDATE on the expected source status, so two concurrent
// verifications or refunds of the same payment cannot both succeed.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// NewPayment is the input for creating a PENDING payment record once the
// gateway order exists.
type NewPayment struct {
	UserID      uint64
	EquipmentID *uint64
	RequestID   *uint64
	OrderID     string
	Amount      float64
	Currency    string
	Type        model.PaymentType
	Description string
}

const paymentSelect = `SELECT p.id, p.user_id, p.equipment_id, p.request_id,
       p.gateway_order_id, p.gateway_payment_id, p.gateway_signature, p.gateway_refund_id,
       p.amount, p.currency, p.status, p.payment_type, p.description,
       u.email, e.name, r.title,
       p.created_at, p.updated_at
FROM payments p
LEFT JOIN users u ON u.id = p.user_id
LEFT JOIN equipment e ON e.id = p.equipment_id
LEFT JOIN requests r ON r.id = p.request_id`

func scanPayment(s scanner) (model.Payment, error) {
	var (
		p                                model.Payment
		equipmentID, requestID           sql.NullInt64
		gwPaymentID, signature, refundID sql.NullString
		email, equipmentName, title      sql.NullString
		status, typ                      string
	)
	err := s.Scan(&p.ID, &p.UserID, &equipmentID, &requestID,
		&p.OrderID, &gwPaymentID, &signature, &refundID,
		&p.Amount, &p.Currency, &status, &typ, &p.Description,
		&email, &equipmentName, &title,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.Payment{}, err
	}
	p.Status = model.PaymentStatus(status)
	p.Type = model.PaymentType(typ)
	p.EquipmentID = nullID(equipmentID)
	p.RequestID = nullID(requestID)
	p.GatewayPaymentID = nullString(gwPaymentID)
	p.Signature = nullString(signature)
	p.RefundID = nullString(refundID)
	p.UserEmail = nullString(email)
	p.EquipmentName = nullString(equipmentName)
	p.RequestTitle = nullString(title)
	return p, nil
}

func nullID(n sql.NullInt64) *uint64 {
	if !n.Valid {
		return nil
	}
	id := uint64(n.Int64)
	return &id
}

// Create stores a PENDING payment. A reused gateway order ID yields
// ErrDuplicate; an unknown equipment or request yields ErrNotFound. For
// RENTAL payments against equipment the insert only matches ACTIVE
// equipment, so a scrap that lands after the caller's check still blocks the
// payment with ErrConflict.
func (r *PaymentRepo) Create(ctx context.Context, in NewPayment) (uint64, error) {
	var (
		res sql.Result
		err error
	)
	if in.Type == model.PaymentRental && in.EquipmentID != nil {
		res, err = r.db.ExecContext(ctx,
			`INSERT INTO payments (user_id, equipment_id, request_id, gateway_order_id, amount, currency, status, payment_type, description)
             SELECT ?, e.id, ?, ?, ?, ?, 'PENDING', ?, ?
             FROM equipment e
             WHERE e.id = ? AND e.status = 'ACTIVE'`,
			in.UserID, in.RequestID, in.OrderID, in.Amount, in.Currency, string(in.Type), in.Description, *in.EquipmentID)
	} else {
		res, err = r.db.ExecContext(ctx,
			`INSERT INTO payments (user_id, equipment_id, request_id, gateway_order_id, amount, currency, status, payment_type, description)
             VALUES (?, ?, ?, ?, ?, ?, 'PENDING', ?, ?)`,
			in.UserID, in.EquipmentID, in.RequestID, in.OrderID, in.Amount, in.Currency, string(in.Type), in.Description)
	}
	if err != nil {
		return 0, translate(err)
	}
	if err := requireTransition(res); err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID loads a payment with its display joins.
func (r *PaymentRepo) GetByID(ctx context.Context, id uint64) (model.Payment, error) {
	return r.one(ctx, " WHERE p.id = ?", id)
}

// GetByOrderID loads a payment by its gateway order ID.
func (r *PaymentRepo) GetByOrderID(ctx context.Context, orderID string) (model.Payment, error) {
	return r.one(ctx, " WHERE p.gateway_order_id = ?", orderID)
}

func (r *PaymentRepo) one(ctx context.Context, where string, arg any) (model.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, paymentSelect+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Payment{}, ErrNotFound
	}
	return p, err
}

// MarkFailed moves a PENDING payment to FAILED. Any other current status
// yields ErrConflict.
func (r *PaymentRepo) MarkFailed(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = 'FAILED' WHERE id = ? AND status = 'PENDING'`, id)
	if err != nil {
		return err
	}
	return requireTransition(res)
}

// Complete records the gateway payment ID and signature and moves a PENDING
// payment to COMPLETED. When settleRequestID is set the linked request's
// payment_status is marked COMPLETED in the same transaction.
func (r *PaymentRepo) Complete(ctx context.Context, id uint64, gatewayPaymentID, signature string, settleRequestID *uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = 'COMPLETED', gateway_payment_id = ?, gateway_signature = ?
         WHERE id = ? AND status = 'PENDING'`,
		gatewayPaymentID, signature, id)
	if err != nil {
		return err
	}
	if err := requireTransition(res); err != nil {
		return err
	}
	if settleRequestID != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE requests SET payment_status = 'COMPLETED' WHERE id = ?`, *settleRequestID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Refund moves a COMPLETED payment to REFUNDED and stores the gateway refund
// ID. Any other current status yields ErrConflict.
func (r *PaymentRepo) Refund(ctx context.Context, id uint64, refundID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = 'REFUNDED', gateway_refund_id = ? WHERE id = ? AND status = 'COMPLETED'`,
		refundID, id)
	if err != nil {
		return err
	}
	return requireTransition(res)
}

// requireTransition reports ErrConflict when a status-guarded write matched
// nothing.
func requireTransition(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// List returns payments matching the filter, newest first.
func (r *PaymentRepo) List(ctx context.Context, f model.PaymentFilter) ([]model.Payment, error) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		conds = append(conds, "p.status = ?")
		args = append(args, string(f.Status))
	}
	if f.Type != "" {
		conds = append(conds, "p.payment_type = ?")
		args = append(args, string(f.Type))
	}
	if f.UserID != 0 {
		conds = append(conds, "p.user_id = ?")
		args = append(args, f.UserID)
	}
	q := paymentSelect
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY p.created_at DESC, p.id DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Stats aggregates amounts and counts per status over all payments.
func (r *PaymentRepo) Stats(ctx context.Context) (model.PaymentStats, error) {
	var s model.PaymentStats
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
            COALESCE(SUM(CASE WHEN status = 'COMPLETED' THEN amount END), 0),
            COALESCE(SUM(CASE WHEN status = 'PENDING' THEN amount END), 0),
            COALESCE(SUM(CASE WHEN status = 'FAILED' THEN amount END), 0),
            COALESCE(SUM(CASE WHEN status = 'REFUNDED' THEN amount END), 0),
            COUNT(CASE WHEN status = 'COMPLETED' THEN 1 END),
            COUNT(CASE WHEN status = 'PENDING' THEN 1 END),
            COUNT(CASE WHEN status = 'FAILED' THEN 1 END),
            COUNT(CASE WHEN status = 'REFUNDED' THEN 1 END)
         FROM payments`).
		Scan(&s.TotalTransactions,
			&s.TotalCompleted, &s.TotalPending, &s.TotalFailed, &s.TotalRefunded,
			&s.CompletedCount, &s.PendingCount, &s.FailedCount, &s.RefundedCount)
	return s, err
}
