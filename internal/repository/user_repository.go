package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/gearguard/gearguard/internal/model"
	"github.com/gearguard/gearguard/internal/policy"
	"github.com/gearguard/gearguard/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NewUser carries registration input. Password is plain text and is hashed
// by Create.
type NewUser struct {
	Username string
	Email    string
	FullName string
	Password string
	Role     policy.Role
}

const userColumns = "id,username,email,full_name,password_hash,role,refresh_token_hash,created_at,updated_at"

func scanUser(s scanner) (model.User, error) {
	var (
		u       model.User
		role    string
		refresh sql.NullString
	)
	err := s.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash, &role, &refresh, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.Role = policy.Role(role)
	if refresh.Valid {
		h := refresh.String
		u.RefreshTokenHash = &h
	}
	return u, nil
}

// Create inserts user and returns its ID. A taken email or username yields
// ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, in NewUser, cost int) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	hash, err := utils.HashPassword(in.Password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, email, full_name, password_hash, role) VALUES (?,?,?,?,?)",
		strings.TrimSpace(in.Username), email, strings.TrimSpace(in.FullName), hash, string(in.Role))
	if err != nil {
		return 0, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// List returns users ordered by name, optionally restricted to one role.
func (r *UserRepo) List(ctx context.Context, role policy.Role) ([]model.UserSummary, error) {
	q := "SELECT id,username,email,full_name,role FROM users"
	var args []any
	if role != "" {
		q += " WHERE role=?"
		args = append(args, string(role))
	}
	q += " ORDER BY full_name, id"
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.UserSummary{}
	for rows.Next() {
		var (
			s    model.UserSummary
			role string
		)
		if err := rows.Scan(&s.ID, &s.Username, &s.Email, &s.FullName, &role); err != nil {
			return nil, err
		}
		s.Role = policy.Role(role)
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateAccount changes the supplied profile fields, keeping the rest.
func (r *UserRepo) UpdateAccount(ctx context.Context, id uint64, fullName, email *string) error {
	var em *string
	if email != nil {
		norm := strings.ToLower(strings.TrimSpace(*email))
		em = &norm
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET full_name=COALESCE(?,full_name), email=COALESCE(?,email) WHERE id=?",
		fullName, em, id)
	if err != nil {
		return translate(err)
	}
	return requireRow(res)
}

// UpdatePassword replaces the stored hash and drops the refresh session so
// every device has to log in again.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, plain string, cost int) error {
	hash, err := utils.HashPassword(plain, cost)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, refresh_token_hash=NULL WHERE id=?", hash, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// requireRow turns "no row touched" into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
