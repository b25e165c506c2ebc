package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	apperrors "ticketdesk/internal/errors"
	"ticketdesk/internal/models"
	"ticketdesk/internal/services"
)

// TicketHandler handles ticket-related requests
type TicketHandler struct {
	ticketService services.TicketServicer
}

// NewTicketHandler creates a new TicketHandler
func NewTicketHandler(ticketService services.TicketServicer) *TicketHandler {
	return &TicketHandler{ticketService: ticketService}
}

// UpdateTicketRequest is the body of a ticket update. Fields are validated by
// the ticket service once the caller is known to be allowed to update.
type UpdateTicketRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Priority    *models.Priority `json:"priority"`
	Status      *string          `json:"status"`
}

// CreateTicket handles ticket creation
// @Summary     Create ticket
// @Description Create a ticket owned by the caller. Any owner in the body is ignored.
// @Tags        tickets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body services.TicketInput true "Ticket data"
// @Success     201 {object} TicketResponse "Ticket created"
// @Failure     400 {object} ErrorResponse "No input data provided"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     422 {object} ErrorResponse "Validation failed"
// @Router      /tickets [post]
func (h *TicketHandler) CreateTicket(c *gin.Context) {
	caller, err := getPrincipal(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInvalidInput, err))
		return
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("{}")) || bytes.Equal(body, []byte("null")) {
		respondWithError(c, apperrors.ErrNoInput)
		return
	}

	var input services.TicketInput
	if err := binding.JSON.BindBody(body, &input); err != nil {
		respondWithError(c, bindingError(apperrors.ErrValidation, err))
		return
	}

	ticket, err := h.ticketService.CreateTicket(caller, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newTicketResponse(ticket))
}

// ListTickets lists the tickets visible to the caller
// @Summary     List tickets
// @Description Admins receive every ticket; other users receive their own
// @Tags        tickets
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array} TicketResponse "Tickets"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /tickets [get]
func (h *TicketHandler) ListTickets(c *gin.Context) {
	caller, err := getPrincipal(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	tickets, err := h.ticketService.ListTickets(caller)
	if err != nil {
		respondWithError(c, err)
		return
	}

	resp := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		resp = append(resp, newTicketResponse(&tickets[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// GetTicket returns one ticket
// @Summary     Get ticket
// @Tags        tickets
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Ticket ID"
// @Success     200 {object} TicketResponse "Ticket"
// @Failure     403 {object} ErrorResponse "Not the owner"
// @Failure     404 {object} ErrorResponse "Ticket not found"
// @Router      /tickets/{id} [get]
func (h *TicketHandler) GetTicket(c *gin.Context) {
	caller, err := getPrincipal(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	ticketID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	ticket, err := h.ticketService.GetTicket(caller, ticketID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newTicketResponse(ticket))
}

// UpdateTicket applies a partial update
// @Summary     Update ticket
// @Description Owners and admins may change title, description, priority and status
// @Tags        tickets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path int                 true "Ticket ID"
// @Param       request body UpdateTicketRequest true "Fields to change"
// @Success     200 {object} MessageIDResponse "Ticket updated"
// @Failure     403 {object} ErrorResponse "Not the owner"
// @Failure     404 {object} ErrorResponse "Ticket not found"
// @Failure     422 {object} ErrorResponse "Validation failed"
// @Router      /tickets/{id} [put]
func (h *TicketHandler) UpdateTicket(c *gin.Context) {
	caller, err := getPrincipal(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	ticketID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTicketRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, bindingError(apperrors.ErrValidation, err))
			return
		}
	}

	ticket, err := h.ticketService.UpdateTicket(caller, ticketID, services.TicketPatch{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      req.Status,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageIDResponse{Message: "Ticket updated successfully", ID: ticket.ID})
}

// DeleteTicket removes a ticket
// @Summary     Delete ticket
// @Description Admin only
// @Tags        tickets
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Ticket ID"
// @Success     200 {object} MessageIDResponse "Ticket deleted"
// @Failure     403 {object} ErrorResponse "Not an admin"
// @Failure     404 {object} ErrorResponse "Ticket not found"
// @Router      /tickets/{id} [delete]
func (h *TicketHandler) DeleteTicket(c *gin.Context) {
	caller, err := getPrincipal(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	ticketID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.ticketService.DeleteTicket(caller, ticketID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageIDResponse{Message: "Ticket deleted successfully", ID: ticketID})
}
