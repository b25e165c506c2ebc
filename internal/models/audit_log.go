package models

import (
	"time"

	"gorm.io/gorm"

	apperrors "ticketdesk/internal/errors"
)

// Audit actions.
const (
	ActionRegisterUser = "register_user"
	ActionCreateTicket = "create_ticket"
	ActionUpdateTicket = "update_ticket"
	ActionDeleteTicket = "delete_ticket"
	ActionUpdateUser   = "update_user"
	ActionDeleteUser   = "delete_user"
)

// AuditLog is an append-only record of one mutating action. Rows are never
// updated or deleted; TicketID and TargetUserID carry no foreign key so the
// record outlives the entity it describes.
type AuditLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Action       string    `gorm:"size:100;not null;index" json:"action"`
	Timestamp    time.Time `gorm:"not null;index" json:"timestamp"`
	ActorID      *uint     `gorm:"index" json:"actor_id"`
	Actor        *User     `gorm:"foreignKey:ActorID;constraint:OnDelete:SET NULL" json:"-"`
	TicketID     *uint     `gorm:"index" json:"ticket_id"`
	TargetUserID *uint     `gorm:"index" json:"target_user_id,omitempty"`
	Details      string    `gorm:"type:text" json:"details,omitempty"`
}

// BeforeUpdate rejects every update issued through gorm.
func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return apperrors.ErrAuditImmutable
}

// BeforeDelete rejects every delete issued through gorm.
func (a *AuditLog) BeforeDelete(tx *gorm.DB) error {
	return apperrors.ErrAuditImmutable
}
