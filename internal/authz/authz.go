// Package authz decides whether a caller may perform an action on a ticket or
// on the user-management surface. Decisions are pure: the policy is loaded
// once into an in-memory casbin model and never changes afterwards.
package authz

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	apperrors "ticketdesk/internal/errors"
	"ticketdesk/internal/models"
)

// Action is an operation subject to authorization.
type Action string

const (
	ReadOwn      Action = "read_own"
	ReadAll      Action = "read_all"
	CreateTicket Action = "create_ticket"
	UpdateTicket Action = "update_ticket"
	DeleteTicket Action = "delete_ticket"
	ManageUsers  Action = "manage_users"
	ViewAudit    Action = "view_audit"
)

// Relation of the caller to the target resource.
const (
	relOwner = "owner"
	relOther = "other"
	relNone  = "none"
)

// The admin row is a wildcard, so role is decided before ownership and an
// admin wins whatever the owner is.
const rbacModel = `
[request_definition]
r = role, act, rel

[policy_definition]
p = role, act, rel

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.role == p.role && (p.act == "*" || r.act == p.act) && (p.rel == "*" || r.rel == p.rel)
`

var defaultPolicies = [][]string{
	{string(models.RoleAdmin), "*", "*"},
	{string(models.RoleUser), string(CreateTicket), "*"},
	{string(models.RoleUser), string(ReadOwn), relOwner},
	{string(models.RoleUser), string(UpdateTicket), relOwner},
}

// denials carries the user-visible message for each refused action.
var denials = map[Action]string{
	ReadOwn:      "Forbidden: You can only view your own tickets",
	ReadAll:      "Forbidden: You do not have access to this resource",
	CreateTicket: "Forbidden: You do not have access to this resource",
	UpdateTicket: "Forbidden: You can only update your own tickets",
	DeleteTicket: "Forbidden: Only admins can delete tickets",
	ManageUsers:  "Forbidden: Admins only",
	ViewAudit:    "Forbidden: Admins only",
}

// Principal is an authenticated caller.
type Principal struct {
	UserID uint
	Role   models.Role
}

// OwnedResource is anything with a single owning user.
type OwnedResource interface {
	GetOwnerID() uint
}

// Authorizer is the contract consumed by the services.
type Authorizer interface {
	Authorize(caller Principal, action Action, resource OwnedResource) error
	Allows(caller Principal, action Action, resource OwnedResource) bool
}

// Engine evaluates the ticketdesk role and ownership policy.
type Engine struct {
	enforcer *casbin.Enforcer
}

var _ Authorizer = (*Engine)(nil)

// NewEngine builds the engine with the built-in policy table.
func NewEngine() (*Engine, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse authorization model: %w", err)
	}

	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if _, err := enforcer.AddPolicies(defaultPolicies); err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}

	return &Engine{enforcer: enforcer}, nil
}

// MustNewEngine is NewEngine for wiring code where the static policy cannot fail.
func MustNewEngine() *Engine {
	e, err := NewEngine()
	if err != nil {
		panic(err)
	}
	return e
}

// Allows reports whether caller may perform action on resource. A nil
// resource means the action is not scoped to an owner.
func (e *Engine) Allows(caller Principal, action Action, resource OwnedResource) bool {
	ok, err := e.enforcer.Enforce(string(caller.Role), string(action), relation(caller, resource))
	return err == nil && ok
}

// Authorize is Allows returning a Forbidden AppError on denial.
func (e *Engine) Authorize(caller Principal, action Action, resource OwnedResource) error {
	if e.Allows(caller, action, resource) {
		return nil
	}
	msg, ok := denials[action]
	if !ok {
		return apperrors.ErrForbidden
	}
	return apperrors.WithMessage(apperrors.ErrForbidden, msg)
}

func relation(caller Principal, resource OwnedResource) string {
	if resource == nil {
		return relNone
	}
	if resource.GetOwnerID() == caller.UserID {
		return relOwner
	}
	return relOther
}
