package models

// Priority of a ticket.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// IsValid reports whether p is one of the known priorities.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// StatusOpen is the status of every new ticket. Status is otherwise freeform.
const StatusOpen = "open"

// Ticket is a unit of support work owned by exactly one user.
type Ticket struct {
	Base
	Title       string   `gorm:"size:255;not null" json:"title"`
	Description string   `gorm:"type:text;not null" json:"description"`
	Status      string   `gorm:"size:20;not null;default:open" json:"status"`
	Priority    Priority `gorm:"size:20;not null;default:medium" json:"priority"`
	OwnerID     uint     `gorm:"not null;index" json:"owner_id"`
	Owner       *User    `gorm:"foreignKey:OwnerID;constraint:OnDelete:RESTRICT" json:"-"`
}

// GetOwnerID returns the id of the user that owns the ticket.
func (t *Ticket) GetOwnerID() uint {
	return t.OwnerID
}
