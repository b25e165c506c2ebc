package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ticketdesk/internal/authz"
	apperrors "ticketdesk/internal/errors"
	"ticketdesk/internal/models"
	"ticketdesk/internal/validator"
)

// ticketService handles ticket-related business logic.
type ticketService struct {
	db         *gorm.DB
	audit      AuditServicer
	authorizer authz.Authorizer
	now        func() time.Time
}

// NewTicketService creates a new TicketServicer.
func NewTicketService(db *gorm.DB, audit AuditServicer, authorizer authz.Authorizer) TicketServicer {
	return &ticketService{db: db, audit: audit, authorizer: authorizer, now: time.Now}
}

// CreateTicket stores a ticket owned by the caller. Any owner the client
// might have sent never reaches this point; ownership comes from caller.
func (s *ticketService) CreateTicket(caller authz.Principal, input TicketInput) (*models.Ticket, error) {
	if err := s.authorizer.Authorize(caller, authz.CreateTicket, nil); err != nil {
		return nil, err
	}

	input.Title = plainText(input.Title)
	input.Description = plainText(input.Description)
	if input.Priority == "" {
		input.Priority = models.PriorityMedium
	}
	if err := validate(input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ticket := &models.Ticket{
		Base:        models.Base{CreatedAt: now, UpdatedAt: now},
		Title:       input.Title,
		Description: input.Description,
		Status:      models.StatusOpen,
		Priority:    input.Priority,
		OwnerID:     caller.UserID,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ticket).Error; err != nil {
			if errors.Is(err, gorm.ErrForeignKeyViolated) {
				return apperrors.Wrap(apperrors.ErrUserNotFound, err)
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		_, err := s.audit.Record(tx, AuditEntry{
			Action:   models.ActionCreateTicket,
			ActorID:  uintPtr(caller.UserID),
			TicketID: uintPtr(ticket.ID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// ListTickets returns every ticket to callers allowed to read all of them and
// only the caller's own tickets to everyone else.
func (s *ticketService) ListTickets(caller authz.Principal) ([]models.Ticket, error) {
	query := s.db.Model(&models.Ticket{})
	if !s.authorizer.Allows(caller, authz.ReadAll, nil) {
		query = query.Where("owner_id = ?", caller.UserID)
	}

	var tickets []models.Ticket
	if err := query.Order("id ASC").Find(&tickets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return tickets, nil
}

// GetTicket returns one ticket if the caller owns it or is an admin.
func (s *ticketService) GetTicket(caller authz.Principal, ticketID uint) (*models.Ticket, error) {
	ticket, err := findTicket(s.db, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizer.Authorize(caller, authz.ReadOwn, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// UpdateTicket applies the fields present in patch. The row is locked for the
// duration of the transaction so concurrent updates to the same ticket
// serialize; the last one to commit wins.
func (s *ticketService) UpdateTicket(caller authz.Principal, ticketID uint, patch TicketPatch) (*models.Ticket, error) {
	var ticket *models.Ticket
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		ticket, err = findTicket(tx.Clauses(clause.Locking{Strength: "UPDATE"}), ticketID)
		if err != nil {
			return err
		}
		if err := s.authorizer.Authorize(caller, authz.UpdateTicket, ticket); err != nil {
			return err
		}

		updates, err := patchUpdates(patch)
		if err != nil {
			return err
		}
		changes := make(map[string]interface{}, len(updates))
		for k, v := range updates {
			changes[k] = v
		}
		updates["updated_at"] = s.now().UTC()

		if err := tx.Model(ticket).Updates(updates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.First(ticket, ticketID).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		_, err = s.audit.Record(tx, AuditEntry{
			Action:   models.ActionUpdateTicket,
			ActorID:  uintPtr(caller.UserID),
			TicketID: uintPtr(ticket.ID),
			Changes:  changes,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// DeleteTicket removes a ticket. Its audit history is kept.
func (s *ticketService) DeleteTicket(caller authz.Principal, ticketID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		ticket, err := findTicket(tx.Clauses(clause.Locking{Strength: "UPDATE"}), ticketID)
		if err != nil {
			return err
		}
		if err := s.authorizer.Authorize(caller, authz.DeleteTicket, ticket); err != nil {
			return err
		}

		if err := tx.Delete(&models.Ticket{}, ticket.ID).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		_, err = s.audit.Record(tx, AuditEntry{
			Action:   models.ActionDeleteTicket,
			ActorID:  uintPtr(caller.UserID),
			TicketID: uintPtr(ticket.ID),
			Changes:  map[string]interface{}{"title": ticket.Title, "owner_id": ticket.OwnerID},
		})
		return err
	})
}

// patchUpdates sanitizes and validates the present fields and returns them as
// a column map.
func patchUpdates(patch TicketPatch) (map[string]interface{}, error) {
	if patch.Title != nil {
		v := plainText(*patch.Title)
		patch.Title = &v
	}
	if patch.Description != nil {
		v := plainText(*patch.Description)
		patch.Description = &v
	}
	if patch.Status != nil {
		v := strings.TrimSpace(*patch.Status)
		patch.Status = &v
	}
	if err := validate(patch); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Priority != nil {
		updates["priority"] = *patch.Priority
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	return updates, nil
}

func findTicket(db *gorm.DB, ticketID uint) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := db.First(&ticket, ticketID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &ticket, nil
}

func validate(v interface{}) error {
	err := validator.Struct(v)
	if err == nil {
		return nil
	}
	if fields := validator.FieldErrors(err); fields != nil {
		return apperrors.WithFields(apperrors.ErrValidation, fields)
	}
	return apperrors.WithMessage(apperrors.ErrValidation, err.Error())
}
