package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gearguard/gearguard/internal/apperr"
	"github.com/gearguard/gearguard/internal/model"
	"github.com/gearguard/gearguard/internal/policy"
	"github.com/gearguard/gearguard/internal/queue"
)

// Workflow owns maintenance requests: creation against active equipment,
// edits by their owner, the status state machine and the aggregated views
// (kanban, preventive calendar, per-equipment history).
//
// The state machine is fully connected: any of NEW, IN_PROGRESS, REPAIRED
// and SCRAP may move to any other. Who may move a request is decided by the
// policy table (request.status); entering REPAIRED requires a duration.
type Workflow struct {
	requests  RequestStore
	equipment EquipmentStore
	events    EventPublisher
	metrics   Recorder
	log       *zap.Logger
}

func NewWorkflow(requests RequestStore, equipment EquipmentStore, events EventPublisher, metrics Recorder, log *zap.Logger) *Workflow {
	return &Workflow{
		requests:  requests,
		equipment: equipment,
		events:    events,
		metrics:   orNopRecorder(metrics),
		log:       orNop(log).Named("workflow"),
	}
}

// CreateRequestInput is the raw create payload; enum fields are validated here.
type CreateRequestInput struct {
	Title         string
	Description   string
	Type          string
	Priority      string
	EquipmentID   uint64
	ScheduledDate *time.Time
}

// UpdateRequestInput carries optional edits. Nil or blank fields keep the
// stored value.
type UpdateRequestInput struct {
	Title         *string
	Description   *string
	Priority      *string
	ScheduledDate *time.Time
}

// Create validates in and inserts a NEW request for actor. The request
// inherits the equipment's team.
func (w *Workflow) Create(ctx context.Context, actor policy.Actor, in CreateRequestInput) (model.Request, error) {
	title := strings.TrimSpace(in.Title)
	desc := strings.TrimSpace(in.Description)
	if title == "" || desc == "" || in.Type == "" || in.EquipmentID == 0 {
		return model.Request{}, apperr.Validation("title, description, type and equipmentId are required")
	}
	typ := model.RequestType(strings.ToUpper(in.Type))
	if !typ.Valid() {
		return model.Request{}, apperr.Validation("type must be CORRECTIVE or PREVENTIVE")
	}
	priority := model.PriorityMedium
	if in.Priority != "" {
		priority = model.Priority(strings.ToUpper(in.Priority))
		if !priority.Valid() {
			return model.Request{}, apperr.Validation("priority must be LOW, MEDIUM or HIGH")
		}
	}
	scheduled := in.ScheduledDate
	if typ == model.RequestPreventive {
		if scheduled == nil || scheduled.IsZero() {
			return model.Request{}, apperr.Validation("scheduledDate is required for preventive maintenance")
		}
	} else {
		scheduled = nil
	}

	eq, err := w.equipment.GetByID(ctx, in.EquipmentID)
	if err != nil {
		return model.Request{}, storeErr("load equipment", err, "equipment not found", "")
	}
	if eq.Scrapped() {
		return model.Request{}, apperr.Conflict("cannot create a request for scrapped equipment")
	}

	id, err := w.requests.Create(ctx, model.NewRequest{
		Title:         title,
		Description:   desc,
		Type:          typ,
		Priority:      priority,
		EquipmentID:   eq.ID,
		RequestedBy:   actor.ID,
		ScheduledDate: scheduled,
	})
	if err != nil {
		// the equipment was scrapped (or removed) between the read and the insert
		return model.Request{}, storeErr("create request", err, "equipment not found", "cannot create a request for scrapped equipment")
	}
	w.log.Info("request created", zap.Uint64("request_id", id), zap.Uint64("equipment_id", eq.ID), zap.Uint64("user_id", actor.ID))
	return w.Get(ctx, id)
}

// Get loads one request.
func (w *Workflow) Get(ctx context.Context, id uint64) (model.Request, error) {
	req, err := w.requests.GetByID(ctx, id)
	if err != nil {
		return model.Request{}, storeErr("load request", err, "request not found", "")
	}
	return req, nil
}

// List returns requests matching f, newest first.
func (w *Workflow) List(ctx context.Context, f model.RequestFilter) ([]model.Request, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("invalid status filter")
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return nil, apperr.Validation("invalid priority filter")
	}
	if f.Type != "" && !f.Type.Valid() {
		return nil, apperr.Validation("invalid type filter")
	}
	out, err := w.requests.List(ctx, f)
	if err != nil {
		return nil, storeErr("list requests", err, "", "")
	}
	return out, nil
}

// Update edits title, description, priority or scheduled date. Only the
// requester or a manager may edit.
func (w *Workflow) Update(ctx context.Context, actor policy.Actor, id uint64, in UpdateRequestInput) (model.Request, error) {
	req, err := w.Get(ctx, id)
	if err != nil {
		return model.Request{}, err
	}
	if !actor.Can(policy.RequestUpdate, req.RequestedBy) {
		return model.Request{}, apperr.Forbidden("you are not authorized to update this request")
	}

	var patch model.RequestPatch
	patch.Title = nonBlank(in.Title)
	patch.Description = nonBlank(in.Description)
	if p := nonBlank(in.Priority); p != nil {
		pr := model.Priority(strings.ToUpper(*p))
		if !pr.Valid() {
			return model.Request{}, apperr.Validation("priority must be LOW, MEDIUM or HIGH")
		}
		patch.Priority = &pr
	}
	if in.ScheduledDate != nil && !in.ScheduledDate.IsZero() {
		patch.ScheduledDate = in.ScheduledDate
	}

	if err := w.requests.Update(ctx, id, patch); err != nil {
		return model.Request{}, storeErr("update request", err, "request not found", "")
	}
	return w.Get(ctx, id)
}

// Delete removes a request. Only the requester or a manager may delete.
func (w *Workflow) Delete(ctx context.Context, actor policy.Actor, id uint64) error {
	req, err := w.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Can(policy.RequestDelete, req.RequestedBy) {
		return apperr.Forbidden("you are not authorized to delete this request")
	}
	if err := w.requests.Delete(ctx, id); err != nil {
		return storeErr("delete request", err, "request not found", "")
	}
	w.log.Info("request deleted", zap.Uint64("request_id", id), zap.Uint64("user_id", actor.ID))
	return nil
}

// UpdateStatus moves a request to status. duration (hours) is required and
// must be positive when status is REPAIRED; it is ignored otherwise.
func (w *Workflow) UpdateStatus(ctx context.Context, actor policy.Actor, id uint64, status string, duration *float64) (model.Request, error) {
	if status == "" {
		return model.Request{}, apperr.Validation("status is required")
	}
	next := model.RequestStatus(strings.ToUpper(status))
	if !next.Valid() {
		return model.Request{}, apperr.Validation("invalid status")
	}
	req, err := w.Get(ctx, id)
	if err != nil {
		return model.Request{}, err
	}
	if !actor.Can(policy.RequestStatus, req.RequestedBy) {
		return model.Request{}, apperr.Forbidden("you are not authorized to change the status of this request")
	}
	var hours *float64
	if next == model.StatusRepaired {
		if duration == nil || *duration <= 0 {
			return model.Request{}, apperr.Validation("duration is required when marking a request as repaired")
		}
		hours = duration
	}

	if err := w.requests.UpdateStatus(ctx, id, next, hours); err != nil {
		return model.Request{}, storeErr("update status", err, "request not found", "")
	}
	w.metrics.RequestTransition(string(req.Status), string(next))
	w.log.Info("request status changed",
		zap.Uint64("request_id", id),
		zap.String("from", string(req.Status)),
		zap.String("to", string(next)),
		zap.Uint64("user_id", actor.ID))
	emit(ctx, w.events, w.log, queue.TypeRequestStatusChanged, queue.RequestStatusChangedEvent{
		RequestID:   id,
		EquipmentID: req.EquipmentID,
		Title:       req.Title,
		From:        string(req.Status),
		To:          string(next),
		Duration:    hours,
		ActorID:     actor.ID,
		ActorRole:   string(actor.Role),
	})
	return w.Get(ctx, id)
}

// Kanban buckets every request by status. All four columns are always
// present; requests with an unknown status are dropped.
func (w *Workflow) Kanban(ctx context.Context) (model.Kanban, error) {
	all, err := w.requests.List(ctx, model.RequestFilter{})
	if err != nil {
		return nil, storeErr("list requests", err, "", "")
	}
	return bucketByStatus(all), nil
}

func bucketByStatus(reqs []model.Request) model.Kanban {
	out := make(model.Kanban, len(model.RequestStatuses))
	for _, s := range model.RequestStatuses {
		out[s] = []model.Request{}
	}
	for _, r := range reqs {
		if col, ok := out[r.Status]; ok {
			out[r.Status] = append(col, r)
		}
	}
	return out
}

// Preventive returns the preventive calendar, optionally for one month.
// The month filter applies only when both month and year are given.
func (w *Workflow) Preventive(ctx context.Context, month, year int) ([]model.Request, error) {
	if month != 0 && year != 0 {
		if month < 1 || month > 12 {
			return nil, apperr.Validation("month must be between 1 and 12")
		}
		if year < 1 {
			return nil, apperr.Validation("invalid year")
		}
	} else {
		month, year = 0, 0
	}
	out, err := w.requests.ListPreventive(ctx, month, year)
	if err != nil {
		return nil, storeErr("list preventive", err, "", "")
	}
	return out, nil
}

// ByEquipment returns the equipment with its request history and counts.
func (w *Workflow) ByEquipment(ctx context.Context, equipmentID uint64) (model.EquipmentRequests, error) {
	eq, err := w.equipment.GetByID(ctx, equipmentID)
	if err != nil {
		return model.EquipmentRequests{}, storeErr("load equipment", err, "equipment not found", "")
	}
	reqs, err := w.requests.List(ctx, model.RequestFilter{EquipmentID: equipmentID})
	if err != nil {
		return model.EquipmentRequests{}, storeErr("list requests", err, "", "")
	}
	pending := 0
	for _, r := range reqs {
		if r.Status.Pending() {
			pending++
		}
	}
	return model.EquipmentRequests{
		Equipment:    eq,
		Requests:     reqs,
		PendingCount: pending,
		TotalCount:   len(reqs),
	}, nil
}

func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
