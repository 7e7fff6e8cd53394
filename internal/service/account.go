package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gearguard/gearguard/internal/apperr"
	"github.com/gearguard/gearguard/internal/config"
	"github.com/gearguard/gearguard/internal/model"
	"github.com/gearguard/gearguard/internal/policy"
	"github.com/gearguard/gearguard/internal/repository"
	"github.com/gearguard/gearguard/internal/utils"
)

// Accounts handles registration, sessions and profile changes. Each user has
// at most one refresh session; logging in elsewhere replaces it.
type Accounts struct {
	users  UserStore
	tokens TokenStore
	cfg    config.Config
	log    *zap.Logger
}

func NewAccounts(users UserStore, tokens TokenStore, cfg config.Config, log *zap.Logger) *Accounts {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 10
	}
	return &Accounts{users: users, tokens: tokens, cfg: cfg, log: orNop(log).Named("accounts")}
}

// bcrypt ignores input past 72 bytes.
const maxPasswordBytes = 72

type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string
	Role     string
}

// Session is a freshly issued token pair.
type Session struct {
	User             model.User `json:"user"`
	AccessToken      string     `json:"accessToken"`
	AccessExpiresAt  time.Time  `json:"accessTokenExpiresAt"`
	RefreshToken     string     `json:"refreshToken"`
	RefreshExpiresAt time.Time  `json:"refreshTokenExpiresAt"`
}

// Register creates a user. No session is issued.
func (s *Accounts) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	if in.Username == "" || in.Email == "" || in.FullName == "" || in.Password == "" {
		return model.User{}, apperr.Validation("username, email, fullName and password are required")
	}
	if len(in.Password) > maxPasswordBytes {
		return model.User{}, apperr.Validation("password must be at most 72 bytes")
	}
	role := policy.RoleUser
	if r := strings.TrimSpace(in.Role); r != "" {
		var ok bool
		if role, ok = policy.ParseRole(strings.ToUpper(r)); !ok {
			return model.User{}, apperr.Validation("role must be USER, TECHNICIAN or MANAGER")
		}
	}
	id, err := s.users.Create(ctx, repository.NewUser{
		Username: in.Username,
		Email:    in.Email,
		FullName: in.FullName,
		Password: in.Password,
		Role:     role,
	}, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, storeErr("create user", err, "", "user with email or username already exists")
	}
	s.log.Info("user registered", zap.Uint64("user_id", id), zap.String("role", string(role)))
	return s.Me(ctx, id)
}

// Login checks credentials and opens a new session. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Accounts) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, apperr.Validation("email and password are required")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, apperr.Unauthorized("invalid email or password")
	}
	if err != nil {
		return Session{}, storeErr("load user", err, "", "")
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		s.log.Info("login rejected", zap.Uint64("user_id", u.ID))
		return Session{}, apperr.Unauthorized("invalid email or password")
	}
	return s.issue(ctx, u)
}

// Refresh rotates the session. raw must verify and match the stored hash
// exactly; the previous refresh token stops working.
func (s *Accounts) Refresh(ctx context.Context, raw string) (Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Session{}, apperr.Unauthorized("unauthorized request")
	}
	userID, err := utils.ParseRefresh(s.cfg.RefreshTokenSecret, raw)
	if err != nil {
		return Session{}, apperr.Unauthorized("invalid refresh token")
	}
	if err := s.tokens.ValidateRefresh(ctx, userID, utils.HashRefreshRaw(raw)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, apperr.Unauthorized("invalid refresh token")
		}
		return Session{}, storeErr("validate refresh", err, "", "")
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, apperr.Unauthorized("invalid refresh token")
		}
		return Session{}, storeErr("load user", err, "", "")
	}
	return s.issue(ctx, u)
}

// Logout drops the user's refresh session.
func (s *Accounts) Logout(ctx context.Context, userID uint64) error {
	if err := s.tokens.Revoke(ctx, userID); err != nil {
		return storeErr("revoke refresh", err, "", "")
	}
	s.log.Info("user logged out", zap.Uint64("user_id", userID))
	return nil
}

func (s *Accounts) issue(ctx context.Context, u model.User) (Session, error) {
	access, err := utils.NewAccessToken(s.cfg.AccessTokenSecret, u.ID, string(u.Role), s.cfg.AccessTokenTTL)
	if err != nil {
		return Session{}, err
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTokenSecret, u.ID, s.cfg.RefreshTokenTTL)
	if err != nil {
		return Session{}, err
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw)); err != nil {
		return Session{}, storeErr("store refresh", err, "", "")
	}
	return Session{
		User:             u,
		AccessToken:      access.Token,
		AccessExpiresAt:  access.Exp,
		RefreshToken:     refresh.Raw,
		RefreshExpiresAt: refresh.Exp,
	}, nil
}

// Me loads the profile of userID.
func (s *Accounts) Me(ctx context.Context, userID uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.User{}, storeErr("load user", err, "user not found", "")
	}
	return u, nil
}

// UpdateAccount changes full name and/or email. At least one is required.
func (s *Accounts) UpdateAccount(ctx context.Context, userID uint64, fullName, email *string) (model.User, error) {
	fullName = nonBlank(fullName)
	email = nonBlank(email)
	if fullName == nil && email == nil {
		return model.User{}, apperr.Validation("at least one field is required")
	}
	if err := s.users.UpdateAccount(ctx, userID, fullName, email); err != nil {
		return model.User{}, storeErr("update account", err, "user not found", "email is already in use")
	}
	return s.Me(ctx, userID)
}

// ChangePassword replaces the password after checking the old one. The
// refresh session is dropped with it.
func (s *Accounts) ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return apperr.Validation("old and new password are required")
	}
	if len(newPassword) > maxPasswordBytes {
		return apperr.Validation("password must be at most 72 bytes")
	}
	u, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, oldPassword) {
		return apperr.Validation("invalid old password")
	}
	if err := s.users.UpdatePassword(ctx, userID, newPassword, s.cfg.BcryptCost); err != nil {
		return storeErr("update password", err, "user not found", "")
	}
	s.log.Info("password changed", zap.Uint64("user_id", userID))
	return nil
}

// Technicians lists users with the TECHNICIAN role.
func (s *Accounts) Technicians(ctx context.Context) ([]model.UserSummary, error) {
	return s.list(ctx, policy.RoleTechnician)
}

// Users lists every user, optionally narrowed to one role.
func (s *Accounts) Users(ctx context.Context, role string) ([]model.UserSummary, error) {
	var r policy.Role
	if role != "" {
		var ok bool
		if r, ok = policy.ParseRole(strings.ToUpper(role)); !ok {
			return nil, apperr.Validation("role must be USER, TECHNICIAN or MANAGER")
		}
	}
	return s.list(ctx, r)
}

func (s *Accounts) list(ctx context.Context, role policy.Role) ([]model.UserSummary, error) {
	out, err := s.users.List(ctx, role)
	if err != nil {
		return nil, storeErr("list users", err, "", "")
	}
	return out, nil
}
