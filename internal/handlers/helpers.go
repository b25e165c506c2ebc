package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ticketdesk/internal/authz"
	apperrors "ticketdesk/internal/errors"
	"ticketdesk/internal/middleware"
	"ticketdesk/internal/models"
	"ticketdesk/internal/validator"
)

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (uint, error) {
	userID, exists := c.Get(middleware.UserIDKey)
	if !exists {
		return 0, apperrors.ErrUnauthorized
	}
	id, ok := userID.(uint)
	if !ok {
		return 0, apperrors.ErrUnauthorized
	}
	return id, nil
}

// getPrincipal returns the caller as seen by the authorization engine. The
// role comes from the token, not from the store.
func getPrincipal(c *gin.Context) (authz.Principal, error) {
	userID, err := getUserID(c)
	if err != nil {
		return authz.Principal{}, err
	}
	role, _ := c.Get(middleware.RoleKey)
	r, _ := role.(models.Role)
	return authz.Principal{UserID: userID, Role: r}, nil
}

// parsePathID parses a uint path parameter.
// Returns ErrInvalidInput if the parameter is not a valid positive integer.
func parsePathID(c *gin.Context, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return uint(id), nil
}

// parseQueryID parses an optional uint query parameter. An absent parameter
// yields nil.
func parseQueryID(c *gin.Context, param string) (*uint, error) {
	raw, ok := c.GetQuery(param)
	if !ok || raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	v := uint(id)
	return &v, nil
}

// parseQueryTime parses an optional RFC 3339 query parameter.
func parseQueryTime(c *gin.Context, param string) (*time.Time, error) {
	raw, ok := c.GetQuery(param)
	if !ok || raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return &ts, nil
}

// bindingError turns a ShouldBindJSON failure into an AppError based on
// sentinel, carrying per-field messages when the body decoded but failed
// validation.
func bindingError(sentinel *apperrors.AppError, err error) *apperrors.AppError {
	if fields := validator.FieldErrors(err); fields != nil {
		return apperrors.WithFields(sentinel, fields)
	}
	return apperrors.Wrap(apperrors.WithMessage(apperrors.ErrInvalidInput, "Malformed JSON body"), err)
}

// respondWithError hands err to middleware.ErrorHandler and stops the chain.
func respondWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
