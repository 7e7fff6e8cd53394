// Package policy holds the authorization table: for every action it lists how
// far each role may go. The HTTP layer consults it once per route; services
// consult it again only for ownership-scoped actions, after loading the
// resource.
package policy

// Role is a user's role as stored in the users table and carried in the JWT.
type Role string

const (
	RoleUser       Role = "USER"
	RoleTechnician Role = "TECHNICIAN"
	RoleManager    Role = "MANAGER"
)

// ParseRole returns the role named by s and whether it is known.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleUser, RoleTechnician, RoleManager:
		return r, true
	}
	return "", false
}

// Action names an operation guarded by the table.
type Action string

const (
	UserList Action = "user.list"

	EquipmentRead  Action = "equipment.read"
	EquipmentWrite Action = "equipment.write"

	TeamRead  Action = "team.read"
	TeamWrite Action = "team.write"

	RequestCreate Action = "request.create"
	RequestRead   Action = "request.read"
	RequestUpdate Action = "request.update"
	RequestDelete Action = "request.delete"
	RequestStatus Action = "request.status"

	PaymentCreate Action = "payment.create"
	PaymentVerify Action = "payment.verify"
	PaymentRead   Action = "payment.read"
	PaymentAdmin  Action = "payment.admin"
	PaymentRefund Action = "payment.refund"
)

// Scope is the reach of a permission.
type Scope int

const (
	ScopeNone Scope = iota // denied
	ScopeOwn               // allowed on resources the caller owns
	ScopeAny               // allowed on every resource
)

var (
	all        = map[Role]Scope{RoleUser: ScopeAny, RoleTechnician: ScopeAny, RoleManager: ScopeAny}
	managers   = map[Role]Scope{RoleManager: ScopeAny}
	ownOrAdmin = map[Role]Scope{RoleUser: ScopeOwn, RoleTechnician: ScopeOwn, RoleManager: ScopeAny}
)

var table = map[Action]map[Role]Scope{
	UserList: managers,

	EquipmentRead:  all,
	EquipmentWrite: managers,

	TeamRead:  all,
	TeamWrite: managers,

	RequestCreate: all,
	RequestRead:   all,
	RequestUpdate: ownOrAdmin,
	RequestDelete: ownOrAdmin,
	// technicians work the queue, so they may move any request
	RequestStatus: {RoleUser: ScopeOwn, RoleTechnician: ScopeAny, RoleManager: ScopeAny},

	PaymentCreate: all,
	PaymentVerify: all,
	PaymentRead:   ownOrAdmin,
	PaymentAdmin:  managers,
	PaymentRefund: managers,
}

// ScopeFor returns the scope granted to role for action. Unknown actions and
// roles are denied.
func ScopeFor(action Action, role Role) Scope {
	return table[action][role]
}

// Allowed reports whether role may perform action at all.
func Allowed(action Action, role Role) bool {
	return ScopeFor(action, role) != ScopeNone
}

// Permits reports whether role may perform action on a resource owned by
// ownerID when the caller is callerID.
func Permits(action Action, role Role, callerID, ownerID uint64) bool {
	switch ScopeFor(action, role) {
	case ScopeAny:
		return true
	case ScopeOwn:
		return callerID != 0 && callerID == ownerID
	}
	return false
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   uint64
	Role Role
}

// Can is Permits for the actor.
func (a Actor) Can(action Action, ownerID uint64) bool {
	return Permits(action, a.Role, a.ID, ownerID)
}
