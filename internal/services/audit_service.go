package services

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	apperrors "ticketdesk/internal/errors"
	"ticketdesk/internal/logger"
	"ticketdesk/internal/models"
)

// auditService handles audit log recording.
type auditService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db, now: time.Now}
}

// Record appends an audit entry inside tx. Unlike a fire-and-forget logger,
// any failure is returned so the caller's transaction rolls back with it.
func (s *auditService) Record(tx *gorm.DB, entry AuditEntry) (*models.AuditLog, error) {
	var details string
	if len(entry.Changes) > 0 {
		data, err := json.Marshal(entry.Changes)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		details = string(data)
	}

	log := &models.AuditLog{
		Action:       entry.Action,
		Timestamp:    s.now().UTC(),
		ActorID:      entry.ActorID,
		TicketID:     entry.TicketID,
		TargetUserID: entry.TargetUserID,
		Details:      details,
	}

	if err := tx.Create(log).Error; err != nil {
		logger.Get().Errorw("failed to create audit log entry",
			"error", err,
			"action", entry.Action,
			"actor_id", entry.ActorID,
			"ticket_id", entry.TicketID,
		)
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return log, nil
}

// List returns audit records oldest first.
func (s *auditService) List(filter AuditFilter) ([]models.AuditLog, error) {
	query := s.db.Model(&models.AuditLog{})
	if filter.TicketID != nil {
		query = query.Where("ticket_id = ?", *filter.TicketID)
	}
	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Since != nil {
		query = query.Where("timestamp >= ?", filter.Since.UTC())
	}

	var logs []models.AuditLog
	if err := query.Order("id ASC").Find(&logs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return logs, nil
}

func uintPtr(v uint) *uint {
	return &v
}
