package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "ticketdesk/internal/errors"
	"ticketdesk/internal/services"
)

// AdminHandler serves the user-management and audit surface. Every route is
// mounted behind RequireAction with an admin-only action.
type AdminHandler struct {
	userService  services.UserServicer
	auditService services.AuditServicer
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(userService services.UserServicer, auditService services.AuditServicer) *AdminHandler {
	return &AdminHandler{userService: userService, auditService: auditService}
}

// ListUsers returns every user
// @Summary     List users
// @Tags        admin
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array} UserResponse "Users"
// @Failure     403 {object} ErrorResponse "Forbidden: Admins only"
// @Router      /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.ListUsers()
	if err != nil {
		respondWithError(c, err)
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, newUserResponse(&users[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateUser patches a user's username, email or role
// @Summary     Update user
// @Description Partial update. A role change applies to tokens issued after it.
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path int               true "User ID"
// @Param       request body services.UserPatch true "Fields to change"
// @Success     200 {object} MessageResponse "User updated"
// @Failure     403 {object} ErrorResponse "Forbidden: Admins only"
// @Failure     404 {object} ErrorResponse "User not found"
// @Failure     409 {object} ErrorResponse "User already exists"
// @Failure     422 {object} ErrorResponse "Validation failed"
// @Router      /admin/users/{id} [put]
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	actorID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	userID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var patch services.UserPatch
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&patch); err != nil {
			respondWithError(c, bindingError(apperrors.ErrValidation, err))
			return
		}
	}

	if _, err := h.userService.UpdateUser(actorID, userID, patch); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "User updated successfully"})
}

// DeleteUser removes a user
// @Summary     Delete user
// @Description Refused with 409 while the user still owns tickets
// @Tags        admin
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "User ID"
// @Success     200 {object} MessageResponse "User deleted"
// @Failure     403 {object} ErrorResponse "Forbidden: Admins only"
// @Failure     404 {object} ErrorResponse "User not found"
// @Failure     409 {object} ErrorResponse "User still owns tickets"
// @Router      /admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	actorID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	userID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.userService.DeleteUser(actorID, userID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "User deleted successfully"})
}

// ListAuditLogs returns audit records, oldest first
// @Summary     List audit logs
// @Tags        admin
// @Produce     json
// @Security    BearerAuth
// @Param       ticket_id query int    false "Filter by ticket"
// @Param       actor_id  query int    false "Filter by actor"
// @Param       action    query string false "Filter by action tag"
// @Param       since     query string false "Only records at or after this RFC 3339 time"
// @Success     200 {array} AuditLogResponse "Audit records"
// @Failure     400 {object} ErrorResponse "Invalid filter"
// @Failure     403 {object} ErrorResponse "Forbidden: Admins only"
// @Router      /admin/audit-logs [get]
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	ticketID, err := parseQueryID(c, "ticket_id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	actorID, err := parseQueryID(c, "actor_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	since, err := parseQueryTime(c, "since")
	if err != nil {
		respondWithError(c, err)
		return
	}

	logs, err := h.auditService.List(services.AuditFilter{
		TicketID: ticketID,
		ActorID:  actorID,
		Action:   c.Query("action"),
		Since:    since,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	resp := make([]AuditLogResponse, 0, len(logs))
	for i := range logs {
		resp = append(resp, newAuditLogResponse(&logs[i]))
	}
	c.JSON(http.StatusOK, resp)
}
