package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/gearguard/gearguard/internal/model"
)

// RequestRepo provides persistence for maintenance requests. Reads join the
// equipment, team and requester so handlers can render display names
// without further queries.
type RequestRepo struct {
	db *sql.DB
}

// NewRequestRepo returns a new RequestRepo bound to the given database.
func NewRequestRepo(db *sql.DB) *RequestRepo { return &RequestRepo{db: db} }

const requestSelect = `SELECT r.id, r.title, r.description, r.type, r.priority, r.status,
       r.equipment_id, e.name, e.serial_number,
       r.assigned_team_id, mt.name,
       r.requested_by, u.full_name,
       r.scheduled_date, r.duration, r.payment_status,
       r.created_at, r.updated_at
FROM requests r
LEFT JOIN equipment e ON e.id = r.equipment_id
LEFT JOIN maintenance_teams mt ON mt.id = r.assigned_team_id
LEFT JOIN users u ON u.id = r.requested_by`

func scanRequest(s scanner) (model.Request, error) {
	var (
		req                             model.Request
		typ, priority, status           string
		equipmentName, serial, teamName sql.NullString
		requesterName, paymentStatus    sql.NullString
		teamID                          sql.NullInt64
		scheduled                       sql.NullTime
		duration                        sql.NullFloat64
	)
	err := s.Scan(&req.ID, &req.Title, &req.Description, &typ, &priority, &status,
		&req.EquipmentID, &equipmentName, &serial,
		&teamID, &teamName,
		&req.RequestedBy, &requesterName,
		&scheduled, &duration, &paymentStatus,
		&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return model.Request{}, err
	}
	req.Type = model.RequestType(typ)
	req.Priority = model.Priority(priority)
	req.Status = model.RequestStatus(status)
	req.EquipmentName = nullString(equipmentName)
	req.SerialNumber = nullString(serial)
	req.TeamName = nullString(teamName)
	req.RequesterName = nullString(requesterName)
	req.PaymentStatus = nullString(paymentStatus)
	if teamID.Valid {
		id := uint64(teamID.Int64)
		req.TeamID = &id
	}
	if scheduled.Valid {
		t := scheduled.Time.UTC()
		req.ScheduledDate = &t
	}
	if duration.Valid {
		d := duration.Float64
		req.Duration = &d
	}
	return req, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// Create inserts a NEW request whose team is copied from the equipment row in
// the same statement. The INSERT … SELECT only matches ACTIVE equipment, so a
// request can never be created against scrapped (or missing) equipment even
// when a scrap races with the create; in that case ErrConflict is returned.
func (r *RequestRepo) Create(ctx context.Context, in model.NewRequest) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO requests (title, description, type, priority, status, equipment_id, assigned_team_id, requested_by, scheduled_date)
         SELECT ?, ?, ?, ?, 'NEW', e.id, e.assigned_team_id, ?, ?
         FROM equipment e
         WHERE e.id = ? AND e.status = 'ACTIVE'`,
		in.Title, in.Description, string(in.Type), string(in.Priority), in.RequestedBy, in.ScheduledDate, in.EquipmentID)
	if err != nil {
		return 0, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrConflict
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID loads one request.
func (r *RequestRepo) GetByID(ctx context.Context, id uint64) (model.Request, error) {
	req, err := scanRequest(r.db.QueryRowContext(ctx, requestSelect+" WHERE r.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Request{}, ErrNotFound
	}
	return req, err
}

// List returns requests matching the filter, newest first.
func (r *RequestRepo) List(ctx context.Context, f model.RequestFilter) ([]model.Request, error) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		conds = append(conds, "r.status = ?")
		args = append(args, string(f.Status))
	}
	if f.Priority != "" {
		conds = append(conds, "r.priority = ?")
		args = append(args, string(f.Priority))
	}
	if f.Type != "" {
		conds = append(conds, "r.type = ?")
		args = append(args, string(f.Type))
	}
	if f.TeamID != 0 {
		conds = append(conds, "r.assigned_team_id = ?")
		args = append(args, f.TeamID)
	}
	if f.EquipmentID != 0 {
		conds = append(conds, "r.equipment_id = ?")
		args = append(args, f.EquipmentID)
	}
	q := requestSelect
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY r.created_at DESC, r.id DESC"
	return r.query(ctx, q, args...)
}

// ListPreventive returns PREVENTIVE requests ordered by scheduled date. When
// month and year are both non-zero only that calendar month is returned.
func (r *RequestRepo) ListPreventive(ctx context.Context, month, year int) ([]model.Request, error) {
	q := requestSelect + " WHERE r.type = 'PREVENTIVE'"
	var args []any
	if month != 0 && year != 0 {
		q += " AND YEAR(r.scheduled_date) = ? AND MONTH(r.scheduled_date) = ?"
		args = append(args, year, month)
	}
	q += " ORDER BY r.scheduled_date ASC, r.id ASC"
	return r.query(ctx, q, args...)
}

func (r *RequestRepo) query(ctx context.Context, q string, args ...any) ([]model.Request, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Update applies the non-nil fields of p; omitted fields keep their value.
func (r *RequestRepo) Update(ctx context.Context, id uint64, p model.RequestPatch) error {
	var priority *string
	if p.Priority != nil {
		s := string(*p.Priority)
		priority = &s
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE requests SET
            title = COALESCE(?, title),
            description = COALESCE(?, description),
            priority = COALESCE(?, priority),
            scheduled_date = COALESCE(?, scheduled_date)
         WHERE id = ?`,
		p.Title, p.Description, priority, p.ScheduledDate, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateStatus moves a request to status. A nil duration keeps the stored one.
func (r *RequestRepo) UpdateStatus(ctx context.Context, id uint64, status model.RequestStatus, duration *float64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE requests SET status = ?, duration = COALESCE(?, duration) WHERE id = ?`,
		string(status), duration, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Delete hard-deletes a request.
func (r *RequestRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, id)
	if err != nil {
		return translate(err)
	}
	return requireRow(res)
}
