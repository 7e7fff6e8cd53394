package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/gearguard/gearguard/internal/model"
)

// EquipmentRepo provides CRUD for the equipment table. Serial number
// uniqueness is enforced by the uq_equipment_serial key and surfaces as
// ErrDuplicate; deletes blocked by dependent requests or payments surface
// as ErrConflict.
type EquipmentRepo struct {
	db *sql.DB
}

// NewEquipmentRepo returns a new EquipmentRepo bound to the given database.
func NewEquipmentRepo(db *sql.DB) *EquipmentRepo { return &EquipmentRepo{db: db} }

const equipmentSelect = `SELECT e.id, e.name, e.serial_number, e.location, e.assigned_team_id, mt.name,
       e.status, e.created_at, e.updated_at
FROM equipment e
LEFT JOIN maintenance_teams mt ON mt.id = e.assigned_team_id`

func scanEquipment(s scanner) (model.Equipment, error) {
	var (
		e        model.Equipment
		teamID   sql.NullInt64
		teamName sql.NullString
		status   string
	)
	if err := s.Scan(&e.ID, &e.Name, &e.SerialNumber, &e.Location, &teamID, &teamName,
		&status, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return model.Equipment{}, err
	}
	e.Status = model.EquipmentStatus(status)
	if teamID.Valid {
		id := uint64(teamID.Int64)
		e.TeamID = &id
	}
	if teamName.Valid {
		n := teamName.String
		e.TeamName = &n
	}
	return e, nil
}

// Create inserts an ACTIVE equipment row and returns its ID.
func (r *EquipmentRepo) Create(ctx context.Context, name, serial, location string, teamID *uint64) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO equipment (name, serial_number, location, assigned_team_id, status) VALUES (?, ?, ?, ?, 'ACTIVE')`,
		name, serial, location, teamID)
	if err != nil {
		return 0, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID loads one equipment row with its team name.
func (r *EquipmentRepo) GetByID(ctx context.Context, id uint64) (model.Equipment, error) {
	e, err := scanEquipment(r.db.QueryRowContext(ctx, equipmentSelect+" WHERE e.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Equipment{}, ErrNotFound
	}
	return e, err
}

// List returns equipment matching the filter, newest first.
func (r *EquipmentRepo) List(ctx context.Context, f model.EquipmentFilter) ([]model.Equipment, error) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		conds = append(conds, "e.status = ?")
		args = append(args, string(f.Status))
	}
	if f.Location != "" {
		conds = append(conds, "e.location = ?")
		args = append(args, f.Location)
	}
	q := equipmentSelect
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY e.created_at DESC, e.id DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Equipment{}
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Update applies the non-nil fields of p. A serial number already used by
// another row yields ErrDuplicate; an unknown team yields ErrNotFound.
func (r *EquipmentRepo) Update(ctx context.Context, id uint64, p model.EquipmentPatch) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE equipment SET
            name = COALESCE(?, name),
            serial_number = COALESCE(?, serial_number),
            location = COALESCE(?, location),
            assigned_team_id = COALESCE(?, assigned_team_id)
         WHERE id = ?`,
		p.Name, p.SerialNumber, p.Location, p.TeamID, id)
	if err != nil {
		return translate(err)
	}
	return requireRow(res)
}

// Scrap moves ACTIVE equipment to SCRAPPED in one conditional write. When
// nothing matched, a follow-up read tells a missing row (ErrNotFound) from
// one that is already scrapped (ErrConflict).
func (r *EquipmentRepo) Scrap(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE equipment SET status = 'SCRAPPED' WHERE id = ? AND status = 'ACTIVE'`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

// Delete hard-deletes equipment. Foreign keys from requests and payments
// RESTRICT the delete, which surfaces as ErrConflict.
func (r *EquipmentRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM equipment WHERE id = ?`, id)
	if err != nil {
		return translate(err)
	}
	return requireRow(res)
}
