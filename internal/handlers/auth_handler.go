package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "ticketdesk/internal/errors"
	"ticketdesk/internal/models"
	"ticketdesk/internal/services"
)

// TokenIssuer signs a bearer token for a user.
type TokenIssuer interface {
	Issue(user *models.User) (string, error)
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	userService          services.UserServicer
	tokens               TokenIssuer
	allowAdminSelfSignup bool
}

// NewAuthHandler creates a new AuthHandler. When allowAdminSelfSignup is
// false only an authenticated admin may register another admin.
func NewAuthHandler(userService services.UserServicer, tokens TokenIssuer, allowAdminSelfSignup bool) *AuthHandler {
	return &AuthHandler{
		userService:          userService,
		tokens:               tokens,
		allowAdminSelfSignup: allowAdminSelfSignup,
	}
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Username string      `json:"username" binding:"required,min=3,max=80,username_chars" example:"alice"`
	Email    string      `json:"email" binding:"required,email,max=120" example:"alice@x.com"`
	Password string      `json:"password" binding:"required,min=6,max=72" example:"secret1"`
	Role     models.Role `json:"role" binding:"required,user_role" example:"user"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"alice"`
	Password string `json:"password" binding:"required" example:"secret1"`
}

// Register handles user registration
// @Summary     Register a new user
// @Description Register a new user. Requesting the admin role needs an admin bearer token unless admin self-registration is enabled.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body RegisterRequest true "User registration data"
// @Success     201 {object} MessageResponse "User registered"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Admin role not permitted"
// @Failure     409 {object} ErrorResponse "User already exists"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(apperrors.ErrInvalidInput, err))
		return
	}

	var actorID *uint
	callerRole := models.Role("")
	if caller, err := getPrincipal(c); err == nil {
		actorID = &caller.UserID
		callerRole = caller.Role
	}

	if req.Role.IsAdmin() && !callerRole.IsAdmin() && !h.allowAdminSelfSignup {
		respondWithError(c, apperrors.ErrAdminOnly)
		return
	}

	if _, err := h.userService.Register(req.Username, req.Email, req.Password, req.Role, actorID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, MessageResponse{Message: "User registered successfully"})
}

// Login handles user login
// @Summary     Login user
// @Description Authenticate with username and password and get a bearer token
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body LoginRequest true "User login credentials"
// @Success     200 {object} TokenResponse "Token issued"
// @Failure     400 {object} ErrorResponse "Missing username or password"
// @Failure     401 {object} ErrorResponse "Invalid credentials"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Missing username or password"))
		return
	}

	user, err := h.userService.GetUserByUsername(req.Username)
	if err != nil {
		respondWithError(c, apperrors.ErrInvalidCredentials)
		return
	}

	if !h.userService.VerifyPassword(user, req.Password) {
		respondWithError(c, apperrors.ErrInvalidCredentials)
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	c.JSON(http.StatusOK, TokenResponse{AccessToken: token})
}

// Me returns the caller's own record
// @Summary     Current user
// @Description Get the authenticated user's identity
// @Tags        auth
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} UserResponse "User"
// @Failure     400 {object} ErrorResponse "Invalid user id in token"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user))
}
