package handlers

import (
	"time"

	"ticketdesk/internal/models"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Message string            `json:"msg" example:"Ticket not found"`
	Code    string            `json:"code" example:"TICKET_NOT_FOUND"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// MessageResponse is the body of mutations that do not return the entity.
type MessageResponse struct {
	Message string `json:"msg" example:"User registered successfully"`
}

// MessageIDResponse is MessageResponse plus the id of the affected entity.
type MessageIDResponse struct {
	Message string `json:"msg" example:"Ticket updated successfully"`
	ID      uint   `json:"id" example:"5"`
}

// TokenResponse carries a freshly issued bearer token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

// UserResponse represents the user data in the response
type UserResponse struct {
	ID       uint        `json:"id" example:"1"`
	Username string      `json:"username" example:"alice"`
	Email    string      `json:"email" example:"alice@x.com"`
	Role     models.Role `json:"role" example:"user"`
}

func newUserResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

// TicketResponse represents a ticket in responses
type TicketResponse struct {
	ID          uint            `json:"id" example:"5"`
	Title       string          `json:"title" example:"Printer broken"`
	Description string          `json:"description" example:"Printer jams every page"`
	Status      string          `json:"status" example:"open"`
	Priority    models.Priority `json:"priority" example:"medium"`
	OwnerID     uint            `json:"owner_id" example:"1"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func newTicketResponse(t *models.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		OwnerID:     t.OwnerID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// AuditLogResponse represents one audit record
type AuditLogResponse struct {
	ID           uint      `json:"id"`
	Action       string    `json:"action" example:"update_ticket"`
	Timestamp    time.Time `json:"timestamp"`
	ActorID      *uint     `json:"actor_id"`
	TicketID     *uint     `json:"ticket_id"`
	TargetUserID *uint     `json:"target_user_id,omitempty"`
	Details      string    `json:"details,omitempty"`
}

func newAuditLogResponse(l *models.AuditLog) AuditLogResponse {
	return AuditLogResponse{
		ID:           l.ID,
		Action:       l.Action,
		Timestamp:    l.Timestamp,
		ActorID:      l.ActorID,
		TicketID:     l.TicketID,
		TargetUserID: l.TargetUserID,
		Details:      l.Details,
	}
}
