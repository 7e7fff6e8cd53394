package repository

import (
	"context"
	"database/sql"
	"errors"
)

// TokenRepo persists the single active refresh session of each user as the
// SHA-256 hash of the refresh token (users.refresh_token_hash).
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh replaces the user's refresh token hash.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=? WHERE id=?", tokenHash, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ValidateRefresh succeeds only when tokenHash equals the stored hash
// exactly. A logged-out user (NULL hash) never validates.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, userID uint64, tokenHash string) error {
	var stored sql.NullString
	err := r.DB.QueryRowContext(ctx,
		"SELECT refresh_token_hash FROM users WHERE id=? LIMIT 1", userID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !stored.Valid || stored.String != tokenHash {
		return ErrNotFound
	}
	return nil
}

// Revoke clears the user's refresh session.
func (r *TokenRepo) Revoke(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=NULL WHERE id=?", userID)
	return err
}
