package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/gearguard/gearguard/internal/model"
	"github.com/gearguard/gearguard/internal/policy"
)

// TeamRepo manages maintenance teams and the team_technicians join table.
// Team names are unique (uq_teams_name); memberships cascade with the team.
type TeamRepo struct {
	db *sql.DB
}

// NewTeamRepo returns a new TeamRepo bound to the given database.
func NewTeamRepo(db *sql.DB) *TeamRepo { return &TeamRepo{db: db} }

// DB exposes the underlying handle for callers that need transactions.
func (r *TeamRepo) DB() *sql.DB { return r.db }

// Create inserts a team with its initial technicians atomically.
func (r *TeamRepo) Create(ctx context.Context, name string, technicianIDs []uint64) (uint64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	id, err := r.CreateTx(ctx, tx, name, technicianIDs)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return id, nil
}

// CreateTx inserts a team and its initial technicians within the caller's
// transaction and returns the new team ID.
func (r *TeamRepo) CreateTx(ctx context.Context, tx *sql.Tx, name string, technicianIDs []uint64) (uint64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO maintenance_teams (name) VALUES (?)`, name)
	if err != nil {
		return 0, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	teamID := uint64(id)
	if len(technicianIDs) == 0 {
		return teamID, nil
	}
	query := `INSERT IGNORE INTO team_technicians (team_id, technician_id) VALUES `
	args := make([]any, 0, len(technicianIDs)*2)
	for i, tid := range technicianIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, teamID, tid)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, translate(err)
	}
	return teamID, nil
}

// GetByID loads a team with its technicians.
func (r *TeamRepo) GetByID(ctx context.Context, id uint64) (model.Team, error) {
	var t model.Team
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM maintenance_teams WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Team{}, ErrNotFound
	}
	if err != nil {
		return model.Team{}, err
	}
	members, err := r.members(ctx, []uint64{id})
	if err != nil {
		return model.Team{}, err
	}
	t.Technicians = members[id]
	if t.Technicians == nil {
		t.Technicians = []model.UserSummary{}
	}
	return t, nil
}

// Exists reports whether a team with the given ID exists.
func (r *TeamRepo) Exists(ctx context.Context, id uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM maintenance_teams WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// List returns all teams, newest first, each with its technicians.
func (r *TeamRepo) List(ctx context.Context) ([]model.Team, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM maintenance_teams ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	teams := []model.Team{}
	var ids []uint64
	for rows.Next() {
		var t model.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		teams = append(teams, t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(ids) == 0 {
		return teams, nil
	}
	members, err := r.members(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range teams {
		teams[i].Technicians = members[teams[i].ID]
		if teams[i].Technicians == nil {
			teams[i].Technicians = []model.UserSummary{}
		}
	}
	return teams, nil
}

// members loads technicians for the given teams keyed by team ID.
func (r *TeamRepo) members(ctx context.Context, teamIDs []uint64) (map[uint64][]model.UserSummary, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(teamIDs)), ",")
	args := make([]any, len(teamIDs))
	for i, id := range teamIDs {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT tt.team_id, u.id, u.username, u.email, u.full_name, u.role
         FROM team_technicians tt
         JOIN users u ON u.id = tt.technician_id
         WHERE tt.team_id IN (`+placeholders+`)
         ORDER BY u.full_name, u.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64][]model.UserSummary, len(teamIDs))
	for rows.Next() {
		var (
			teamID uint64
			s      model.UserSummary
			role   string
		)
		if err := rows.Scan(&teamID, &s.ID, &s.Username, &s.Email, &s.FullName, &role); err != nil {
			return nil, err
		}
		s.Role = policy.Role(role)
		out[teamID] = append(out[teamID], s)
	}
	return out, rows.Err()
}

// Rename changes a team's name. A taken name yields ErrDuplicate.
func (r *TeamRepo) Rename(ctx context.Context, id uint64, name string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE maintenance_teams SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return translate(err)
	}
	return requireRow(res)
}

// Delete removes a team and its memberships. Equipment or requests still
// assigned to the team RESTRICT the delete (ErrConflict).
func (r *TeamRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM maintenance_teams WHERE id = ?`, id)
	if err != nil {
		return translate(err)
	}
	return requireRow(res)
}

// AddTechnician links a user to a team. Adding an existing member is a no-op.
func (r *TeamRepo) AddTechnician(ctx context.Context, teamID, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT IGNORE INTO team_technicians (team_id, technician_id) VALUES (?, ?)`, teamID, userID)
	return translate(err)
}

// RemoveTechnician unlinks a user from a team. Removing a non-member is a no-op.
func (r *TeamRepo) RemoveTechnician(ctx context.Context, teamID, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM team_technicians WHERE team_id = ? AND technician_id = ?`, teamID, userID)
	return err
}
