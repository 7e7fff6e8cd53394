package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gearguard/gearguard/internal/config"
	"github.com/gearguard/gearguard/internal/gateway"
	"github.com/gearguard/gearguard/internal/model"
	"github.com/gearguard/gearguard/internal/policy"
	"github.com/gearguard/gearguard/internal/queue"
	"github.com/gearguard/gearguard/internal/repository"
	"github.com/gearguard/gearguard/internal/utils"
)

type fakeUsers struct {
	mu   sync.Mutex
	byID map[uint64]model.User
	next uint64
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[uint64]model.User{}} }

func (f *fakeUsers) Create(_ context.Context, in repository.NewUser, cost int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == strings.ToLower(in.Email) || u.Username == in.Username {
			return 0, repository.ErrDuplicate
		}
	}
	hash, err := utils.HashPassword(in.Password, cost)
	if err != nil {
		return 0, err
	}
	f.next++
	f.byID[f.next] = model.User{
		ID: f.next, Username: in.Username, Email: strings.ToLower(in.Email),
		FullName: in.FullName, PasswordHash: hash, Role: in.Role,
	}
	return f.next, nil
}

// add inserts a user with the given role and returns its id.
func (f *fakeUsers) add(name string, role policy.Role) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.byID[f.next] = model.User{ID: f.next, Username: name, Email: name + "@example.com", FullName: name, Role: role}
	return f.next
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) List(_ context.Context, role policy.Role) ([]model.UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.UserSummary{}
	for _, u := range f.byID {
		if role == "" || u.Role == role {
			out = append(out, model.UserSummary{ID: u.ID, Username: u.Username, Email: u.Email, FullName: u.FullName, Role: u.Role})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUsers) UpdateAccount(_ context.Context, id uint64, fullName, email *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if email != nil {
		for _, o := range f.byID {
			if o.ID != id && o.Email == strings.ToLower(*email) {
				return repository.ErrDuplicate
			}
		}
		u.Email = strings.ToLower(*email)
	}
	if fullName != nil {
		u.FullName = *fullName
	}
	f.byID[id] = u
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id uint64, plain string, cost int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	hash, err := utils.HashPassword(plain, cost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	f.byID[id] = u
	return nil
}

type fakeTokens struct {
	mu     sync.Mutex
	hashes map[uint64]string
}

func newFakeTokens() *fakeTokens { return &fakeTokens{hashes: map[uint64]string{}} }

func (f *fakeTokens) StoreRefresh(_ context.Context, userID uint64, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hashes[userID] = tokenHash
	return nil
}

func (f *fakeTokens) ValidateRefresh(_ context.Context, userID uint64, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.hashes[userID]; !ok || h != tokenHash {
		return repository.ErrNotFound
	}
	return nil
}

func (f *fakeTokens) Revoke(_ context.Context, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.hashes, userID)
	return nil
}

type fakeEquipment struct {
	mu   sync.Mutex
	byID map[uint64]model.Equipment
	next uint64
}

func newFakeEquipment() *fakeEquipment { return &fakeEquipment{byID: map[uint64]model.Equipment{}} }

func (f *fakeEquipment) add(name string, status model.EquipmentStatus, teamID *uint64) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.byID[f.next] = model.Equipment{
		ID: f.next, Name: name, SerialNumber: fmt.Sprintf("SN-%d", f.next),
		Location: "Plant A", TeamID: teamID, Status: status,
	}
	return f.next
}

func (f *fakeEquipment) Create(_ context.Context, name, serial, location string, teamID *uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.byID {
		if e.SerialNumber == serial {
			return 0, repository.ErrDuplicate
		}
	}
	f.next++
	f.byID[f.next] = model.Equipment{ID: f.next, Name: name, SerialNumber: serial, Location: location, TeamID: teamID, Status: model.EquipmentActive}
	return f.next, nil
}

func (f *fakeEquipment) GetByID(_ context.Context, id uint64) (model.Equipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return model.Equipment{}, repository.ErrNotFound
	}
	return e, nil
}

func (f *fakeEquipment) List(_ context.Context, flt model.EquipmentFilter) ([]model.Equipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Equipment{}
	for _, e := range f.byID {
		if flt.Status != "" && e.Status != flt.Status {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEquipment) Update(_ context.Context, id uint64, p model.EquipmentPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.SerialNumber != nil {
		e.SerialNumber = *p.SerialNumber
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.TeamID != nil {
		e.TeamID = p.TeamID
	}
	f.byID[id] = e
	return nil
}

func (f *fakeEquipment) Scrap(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if e.Status != model.EquipmentActive {
		return repository.ErrConflict
	}
	e.Status = model.EquipmentScrapped
	f.byID[id] = e
	return nil
}

func (f *fakeEquipment) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeTeams struct {
	mu      sync.Mutex
	byID    map[uint64]model.Team
	members map[uint64]map[uint64]bool
	next    uint64
}

func newFakeTeams() *fakeTeams {
	return &fakeTeams{byID: map[uint64]model.Team{}, members: map[uint64]map[uint64]bool{}}
}

func (f *fakeTeams) Create(_ context.Context, name string, ids []uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.byID {
		if t.Name == name {
			return 0, repository.ErrDuplicate
		}
	}
	f.next++
	f.byID[f.next] = model.Team{ID: f.next, Name: name}
	f.members[f.next] = map[uint64]bool{}
	for _, id := range ids {
		f.members[f.next][id] = true
	}
	return f.next, nil
}

func (f *fakeTeams) GetByID(_ context.Context, id uint64) (model.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return model.Team{}, repository.ErrNotFound
	}
	t.Technicians = []model.UserSummary{}
	ids := make([]uint64, 0, len(f.members[id]))
	for uid := range f.members[id] {
		ids = append(ids, uid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, uid := range ids {
		t.Technicians = append(t.Technicians, model.UserSummary{ID: uid, Role: policy.RoleTechnician})
	}
	return t, nil
}

func (f *fakeTeams) Exists(_ context.Context, id uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byID[id]
	return ok, nil
}

func (f *fakeTeams) List(ctx context.Context) ([]model.Team, error) {
	f.mu.Lock()
	ids := make([]uint64, 0, len(f.byID))
	for id := range f.byID {
		ids = append(ids, id)
	}
	f.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := []model.Team{}
	for _, id := range ids {
		t, err := f.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTeams) Rename(_ context.Context, id uint64, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	for _, o := range f.byID {
		if o.ID != id && o.Name == name {
			return repository.ErrDuplicate
		}
	}
	t.Name = name
	f.byID[id] = t
	return nil
}

func (f *fakeTeams) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.byID, id)
	delete(f.members, id)
	return nil
}

func (f *fakeTeams) AddTechnician(_ context.Context, teamID, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[teamID]; !ok {
		return repository.ErrNotFound
	}
	f.members[teamID][userID] = true
	return nil
}

func (f *fakeTeams) RemoveTechnician(_ context.Context, teamID, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[teamID], userID)
	return nil
}

type fakeRequests struct {
	mu        sync.Mutex
	byID      map[uint64]model.Request
	next      uint64
	equipment *fakeEquipment
}

func newFakeRequests(eq *fakeEquipment) *fakeRequests {
	return &fakeRequests{byID: map[uint64]model.Request{}, equipment: eq}
}

func (f *fakeRequests) Create(ctx context.Context, in model.NewRequest) (uint64, error) {
	eq, err := f.equipment.GetByID(ctx, in.EquipmentID)
	if err != nil {
		return 0, err
	}
	if eq.Scrapped() {
		return 0, repository.ErrConflict
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.byID[f.next] = model.Request{
		ID: f.next, Title: in.Title, Description: in.Description, Type: in.Type,
		Priority: in.Priority, Status: model.StatusNew, EquipmentID: in.EquipmentID,
		TeamID: eq.TeamID, RequestedBy: in.RequestedBy, ScheduledDate: in.ScheduledDate,
	}
	return f.next, nil
}

// put stores r as is, assigning an id.
func (f *fakeRequests) put(r model.Request) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	r.ID = f.next
	f.byID[r.ID] = r
	return r.ID
}

func (f *fakeRequests) GetByID(_ context.Context, id uint64) (model.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return model.Request{}, repository.ErrNotFound
	}
	return r, nil
}

func (f *fakeRequests) List(_ context.Context, flt model.RequestFilter) ([]model.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Request{}
	for _, r := range f.byID {
		if flt.Status != "" && r.Status != flt.Status {
			continue
		}
		if flt.EquipmentID != 0 && r.EquipmentID != flt.EquipmentID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeRequests) ListPreventive(_ context.Context, month, year int) ([]model.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Request{}
	for _, r := range f.byID {
		if r.Type != model.RequestPreventive || r.ScheduledDate == nil {
			continue
		}
		if month != 0 && (int(r.ScheduledDate.Month()) != month || r.ScheduledDate.Year() != year) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledDate.Before(*out[j].ScheduledDate) })
	return out, nil
}

func (f *fakeRequests) Update(_ context.Context, id uint64, p model.RequestPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Priority != nil {
		r.Priority = *p.Priority
	}
	if p.ScheduledDate != nil {
		r.ScheduledDate = p.ScheduledDate
	}
	f.byID[id] = r
	return nil
}

func (f *fakeRequests) UpdateStatus(_ context.Context, id uint64, status model.RequestStatus, duration *float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Status = status
	if duration != nil {
		r.Duration = duration
	}
	f.byID[id] = r
	return nil
}

func (f *fakeRequests) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakePayments struct {
	mu      sync.Mutex
	byID    map[uint64]model.Payment
	next    uint64
	settled []uint64
}

func newFakePayments() *fakePayments { return &fakePayments{byID: map[uint64]model.Payment{}} }

func (f *fakePayments) Create(_ context.Context, in repository.NewPayment) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byID {
		if p.OrderID == in.OrderID {
			return 0, repository.ErrDuplicate
		}
	}
	f.next++
	f.byID[f.next] = model.Payment{
		ID: f.next, UserID: in.UserID, EquipmentID: in.EquipmentID, RequestID: in.RequestID,
		OrderID: in.OrderID, Amount: in.Amount, Currency: in.Currency, Status: model.PaymentPending,
		Type: in.Type, Description: in.Description,
	}
	return f.next, nil
}

func (f *fakePayments) GetByID(_ context.Context, id uint64) (model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return model.Payment{}, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakePayments) GetByOrderID(_ context.Context, orderID string) (model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byID {
		if p.OrderID == orderID {
			return p, nil
		}
	}
	return model.Payment{}, repository.ErrNotFound
}

// move applies a status change guarded on from, like the SQL conditional updates.
func (f *fakePayments) move(id uint64, from, to model.PaymentStatus, apply func(*model.Payment)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok || p.Status != from {
		return repository.ErrConflict
	}
	p.Status = to
	if apply != nil {
		apply(&p)
	}
	f.byID[id] = p
	return nil
}

func (f *fakePayments) MarkFailed(_ context.Context, id uint64) error {
	return f.move(id, model.PaymentPending, model.PaymentFailed, nil)
}

func (f *fakePayments) Complete(_ context.Context, id uint64, gatewayPaymentID, signature string, settle *uint64) error {
	err := f.move(id, model.PaymentPending, model.PaymentCompleted, func(p *model.Payment) {
		p.GatewayPaymentID = &gatewayPaymentID
		p.Signature = &signature
	})
	if err == nil && settle != nil {
		f.mu.Lock()
		f.settled = append(f.settled, *settle)
		f.mu.Unlock()
	}
	return err
}

func (f *fakePayments) Refund(_ context.Context, id uint64, refundID string) error {
	return f.move(id, model.PaymentCompleted, model.PaymentRefunded, func(p *model.Payment) {
		p.RefundID = &refundID
	})
}

func (f *fakePayments) List(_ context.Context, flt model.PaymentFilter) ([]model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Payment{}
	for _, p := range f.byID {
		if flt.UserID != 0 && p.UserID != flt.UserID {
			continue
		}
		if flt.Status != "" && p.Status != flt.Status {
			continue
		}
		if flt.Type != "" && p.Type != flt.Type {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakePayments) Stats(_ context.Context) (model.PaymentStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var st model.PaymentStats
	for _, p := range f.byID {
		st.TotalTransactions++
		switch p.Status {
		case model.PaymentCompleted:
			st.CompletedCount++
			st.TotalCompleted += p.Amount
		case model.PaymentPending:
			st.PendingCount++
			st.TotalPending += p.Amount
		case model.PaymentFailed:
			st.FailedCount++
			st.TotalFailed += p.Amount
		case model.PaymentRefunded:
			st.RefundedCount++
			st.TotalRefunded += p.Amount
		}
	}
	return st, nil
}

// fakeGateway signs with a fixed secret and captures every payment unless
// told otherwise.
type fakeGateway struct {
	mu        sync.Mutex
	secret    string
	orders    int
	refunds   int
	status    string
	createErr error
	fetchErr  error
	refundErr error
	lastOrder gateway.OrderRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{secret: "gw-secret", status: gateway.StatusCaptured}
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return gateway.VerifySignature(orderID, paymentID, signature, g.secret)
}

func (g *fakeGateway) sign(orderID, paymentID string) string {
	return gateway.Sign(orderID, paymentID, g.secret)
}

func (g *fakeGateway) CreateOrder(_ context.Context, req gateway.OrderRequest) (gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastOrder = req
	if g.createErr != nil {
		return gateway.Order{}, g.createErr
	}
	g.orders++
	return gateway.Order{ID: fmt.Sprintf("order_%d", g.orders), Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Status: "created"}, nil
}

func (g *fakeGateway) FetchPayment(_ context.Context, paymentID string) (gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return gateway.Payment{}, g.fetchErr
	}
	return gateway.Payment{ID: paymentID, Status: g.status}, nil
}

func (g *fakeGateway) Refund(_ context.Context, paymentID string, amount int64, _ map[string]string) (gateway.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return gateway.Refund{}, g.refundErr
	}
	g.refunds++
	return gateway.Refund{ID: fmt.Sprintf("rfnd_%d", g.refunds), PaymentID: paymentID, Amount: amount, Status: "processed"}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type recordingMetrics struct {
	mu          sync.Mutex
	payments    []string
	transitions []string
}

func (m *recordingMetrics) PaymentProcessed(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, status)
}

func (m *recordingMetrics) RequestTransition(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, from+"->"+to)
}

func ptr[T any](v T) *T { return &v }

func testConfig() config.Config {
	return config.Config{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    24 * time.Hour,
		BcryptCost:         bcrypt.MinCost,
	}
}
