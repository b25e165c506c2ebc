package services

import (
	"time"

	"gorm.io/gorm"

	"ticketdesk/internal/authz"
	"ticketdesk/internal/models"
)

// UserPatch lists the admin-editable user fields. Nil fields are left alone.
type UserPatch struct {
	Username *string      `json:"username" binding:"omitempty,min=3,max=80,username_chars"`
	Email    *string      `json:"email" binding:"omitempty,email,max=120"`
	Role     *models.Role `json:"role" binding:"omitempty,user_role"`
}

// UserServicer is the credential store.
type UserServicer interface {
	Register(username, email, password string, role models.Role, actorID *uint) (*models.User, error)
	GetUserByUsername(username string) (*models.User, error)
	GetUserByUsernameOrEmail(username, email string) (*models.User, error)
	GetUserByID(id uint) (*models.User, error)
	ListUsers() ([]models.User, error)
	UpdateUser(actorID, userID uint, patch UserPatch) (*models.User, error)
	DeleteUser(actorID, userID uint) error
	VerifyPassword(user *models.User, password string) bool
}

// TicketInput is the client-supplied part of a new ticket.
type TicketInput struct {
	Title       string          `json:"title" binding:"required,min=5,max=255"`
	Description string          `json:"description" binding:"required,min=10"`
	Priority    models.Priority `json:"priority" binding:"omitempty,ticket_priority"`
}

// TicketPatch lists the mutable ticket fields. Nil fields are left alone.
type TicketPatch struct {
	Title       *string          `json:"title" binding:"omitempty,min=5,max=255"`
	Description *string          `json:"description" binding:"omitempty,min=10"`
	Priority    *models.Priority `json:"priority" binding:"omitempty,ticket_priority"`
	Status      *string          `json:"status" binding:"omitempty,min=1,max=20"`
}

// TicketServicer is the ownership-aware ticket store.
type TicketServicer interface {
	CreateTicket(caller authz.Principal, input TicketInput) (*models.Ticket, error)
	ListTickets(caller authz.Principal) ([]models.Ticket, error)
	GetTicket(caller authz.Principal, ticketID uint) (*models.Ticket, error)
	UpdateTicket(caller authz.Principal, ticketID uint, patch TicketPatch) (*models.Ticket, error)
	DeleteTicket(caller authz.Principal, ticketID uint) error
}

// AuditEntry describes one mutating action to be recorded.
type AuditEntry struct {
	Action       string
	ActorID      *uint
	TicketID     *uint
	TargetUserID *uint
	Changes      map[string]interface{}
}

// AuditFilter narrows an audit listing. Zero values match everything.
type AuditFilter struct {
	TicketID *uint
	ActorID  *uint
	Action   string
	Since    *time.Time
}

// AuditServicer is the append-only audit recorder.
type AuditServicer interface {
	// Record appends entry using tx, the unit of work of the paired mutation.
	// A returned error must abort that transaction.
	Record(tx *gorm.DB, entry AuditEntry) (*models.AuditLog, error)
	List(filter AuditFilter) ([]models.AuditLog, error)
}
