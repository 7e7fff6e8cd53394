package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/gearguard/gearguard/internal/apperr"
	"github.com/gearguard/gearguard/internal/model"
)

// Equipment manages the equipment registry.
type Equipment struct {
	equipment EquipmentStore
	teams     TeamStore
	log       *zap.Logger
}

func NewEquipment(equipment EquipmentStore, teams TeamStore, log *zap.Logger) *Equipment {
	return &Equipment{equipment: equipment, teams: teams, log: orNop(log).Named("equipment")}
}

type CreateEquipmentInput struct {
	Name         string
	SerialNumber string
	Location     string
	TeamID       *uint64
}

// Create registers ACTIVE equipment. The serial number must be unique.
func (s *Equipment) Create(ctx context.Context, in CreateEquipmentInput) (model.Equipment, error) {
	name := strings.TrimSpace(in.Name)
	serial := strings.TrimSpace(in.SerialNumber)
	location := strings.TrimSpace(in.Location)
	if name == "" || serial == "" || location == "" {
		return model.Equipment{}, apperr.Validation("name, serialNumber and location are required")
	}
	if err := s.checkTeam(ctx, in.TeamID); err != nil {
		return model.Equipment{}, err
	}
	id, err := s.equipment.Create(ctx, name, serial, location, in.TeamID)
	if err != nil {
		return model.Equipment{}, storeErr("create equipment", err, "team not found", "equipment with this serial number already exists")
	}
	s.log.Info("equipment created", zap.Uint64("equipment_id", id), zap.String("serial", serial))
	return s.Get(ctx, id)
}

// Get loads one piece of equipment.
func (s *Equipment) Get(ctx context.Context, id uint64) (model.Equipment, error) {
	eq, err := s.equipment.GetByID(ctx, id)
	if err != nil {
		return model.Equipment{}, storeErr("load equipment", err, "equipment not found", "")
	}
	return eq, nil
}

// List returns equipment filtered by status and location.
func (s *Equipment) List(ctx context.Context, f model.EquipmentFilter) ([]model.Equipment, error) {
	if f.Status != "" {
		f.Status = model.EquipmentStatus(strings.ToUpper(string(f.Status)))
		if f.Status != model.EquipmentActive && f.Status != model.EquipmentScrapped {
			return nil, apperr.Validation("status must be ACTIVE or SCRAPPED")
		}
	}
	out, err := s.equipment.List(ctx, f)
	if err != nil {
		return nil, storeErr("list equipment", err, "", "")
	}
	return out, nil
}

// Update edits the supplied fields; the rest keep their value.
func (s *Equipment) Update(ctx context.Context, id uint64, p model.EquipmentPatch) (model.Equipment, error) {
	p.Name = nonBlank(p.Name)
	p.SerialNumber = nonBlank(p.SerialNumber)
	p.Location = nonBlank(p.Location)
	if err := s.checkTeam(ctx, p.TeamID); err != nil {
		return model.Equipment{}, err
	}
	if err := s.equipment.Update(ctx, id, p); err != nil {
		return model.Equipment{}, storeErr("update equipment", err, "equipment not found", "equipment with this serial number already exists")
	}
	return s.Get(ctx, id)
}

// Scrap retires ACTIVE equipment. Scrapping is one-way.
func (s *Equipment) Scrap(ctx context.Context, id uint64) (model.Equipment, error) {
	if err := s.equipment.Scrap(ctx, id); err != nil {
		return model.Equipment{}, storeErr("scrap equipment", err, "equipment not found", "equipment is already scrapped")
	}
	s.log.Info("equipment scrapped", zap.Uint64("equipment_id", id))
	return s.Get(ctx, id)
}

// Delete removes equipment that no request or payment references.
func (s *Equipment) Delete(ctx context.Context, id uint64) error {
	if err := s.equipment.Delete(ctx, id); err != nil {
		return storeErr("delete equipment", err, "equipment not found", "equipment has maintenance requests or payments and cannot be deleted")
	}
	s.log.Info("equipment deleted", zap.Uint64("equipment_id", id))
	return nil
}

func (s *Equipment) checkTeam(ctx context.Context, teamID *uint64) error {
	if teamID == nil {
		return nil
	}
	ok, err := s.teams.Exists(ctx, *teamID)
	if err != nil {
		return storeErr("check team", err, "", "")
	}
	if !ok {
		return apperr.NotFound("team not found")
	}
	return nil
}
