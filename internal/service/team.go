package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/gearguard/gearguard/internal/apperr"
	"github.com/gearguard/gearguard/internal/model"
	"github.com/gearguard/gearguard/internal/policy"
)

// Teams manages maintenance teams and their technicians. Only users with the
// TECHNICIAN role can be members.
type Teams struct {
	teams TeamStore
	users UserStore
	log   *zap.Logger
}

func NewTeams(teams TeamStore, users UserStore, log *zap.Logger) *Teams {
	return &Teams{teams: teams, users: users, log: orNop(log).Named("teams")}
}

// Create inserts a team and its initial technicians atomically.
func (s *Teams) Create(ctx context.Context, name string, technicianIDs []uint64) (model.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Team{}, apperr.Validation("team name is required")
	}
	ids := dedupe(technicianIDs)
	for _, id := range ids {
		if err := s.requireTechnician(ctx, id); err != nil {
			return model.Team{}, err
		}
	}
	id, err := s.teams.Create(ctx, name, ids)
	if err != nil {
		return model.Team{}, storeErr("create team", err, "technician not found", "a team with this name already exists")
	}
	s.log.Info("team created", zap.Uint64("team_id", id), zap.Int("technicians", len(ids)))
	return s.Get(ctx, id)
}

// Get loads a team with its technicians.
func (s *Teams) Get(ctx context.Context, id uint64) (model.Team, error) {
	t, err := s.teams.GetByID(ctx, id)
	if err != nil {
		return model.Team{}, storeErr("load team", err, "team not found", "")
	}
	return t, nil
}

// List returns every team with its technicians.
func (s *Teams) List(ctx context.Context) ([]model.Team, error) {
	out, err := s.teams.List(ctx)
	if err != nil {
		return nil, storeErr("list teams", err, "", "")
	}
	return out, nil
}

// Rename changes a team's name.
func (s *Teams) Rename(ctx context.Context, id uint64, name string) (model.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Team{}, apperr.Validation("team name is required")
	}
	if err := s.teams.Rename(ctx, id, name); err != nil {
		return model.Team{}, storeErr("rename team", err, "team not found", "a team with this name already exists")
	}
	return s.Get(ctx, id)
}

// Delete removes a team that no equipment or request references.
func (s *Teams) Delete(ctx context.Context, id uint64) error {
	if err := s.teams.Delete(ctx, id); err != nil {
		return storeErr("delete team", err, "team not found", "team is assigned to equipment or requests and cannot be deleted")
	}
	s.log.Info("team deleted", zap.Uint64("team_id", id))
	return nil
}

// AddTechnician adds a technician to a team. Adding a member twice is a no-op.
func (s *Teams) AddTechnician(ctx context.Context, teamID, userID uint64) (model.Team, error) {
	if err := s.requireTeam(ctx, teamID); err != nil {
		return model.Team{}, err
	}
	if err := s.requireTechnician(ctx, userID); err != nil {
		return model.Team{}, err
	}
	if err := s.teams.AddTechnician(ctx, teamID, userID); err != nil {
		return model.Team{}, storeErr("add technician", err, "team not found", "")
	}
	return s.Get(ctx, teamID)
}

// RemoveTechnician removes a member. Removing a non-member is a no-op.
func (s *Teams) RemoveTechnician(ctx context.Context, teamID, userID uint64) (model.Team, error) {
	if err := s.requireTeam(ctx, teamID); err != nil {
		return model.Team{}, err
	}
	if err := s.teams.RemoveTechnician(ctx, teamID, userID); err != nil {
		return model.Team{}, storeErr("remove technician", err, "", "")
	}
	return s.Get(ctx, teamID)
}

func (s *Teams) requireTeam(ctx context.Context, id uint64) error {
	ok, err := s.teams.Exists(ctx, id)
	if err != nil {
		return storeErr("check team", err, "", "")
	}
	if !ok {
		return apperr.NotFound("team not found")
	}
	return nil
}

func (s *Teams) requireTechnician(ctx context.Context, userID uint64) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return storeErr("load technician", err, "technician not found", "")
	}
	if u.Role != policy.RoleTechnician {
		return apperr.NotFound("technician not found")
	}
	return nil
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]bool, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
