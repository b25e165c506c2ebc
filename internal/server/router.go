// Package server assembles the HTTP surface from the services.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"ticketdesk/internal/authz"
	"ticketdesk/internal/config"
	_ "ticketdesk/internal/docs" // Register swagger docs
	apperrors "ticketdesk/internal/errors"
	"ticketdesk/internal/handlers"
	"ticketdesk/internal/middleware"
	"ticketdesk/internal/services"
	"ticketdesk/internal/token"
	"ticketdesk/internal/validator"
)

// Services bundles everything the router depends on.
type Services struct {
	Users      services.UserServicer
	Tickets    services.TicketServicer
	Audit      services.AuditServicer
	Tokens     *token.Service
	Authorizer authz.Authorizer
}

// NewServices wires the credential store, ticket store and audit recorder
// around one database handle.
func NewServices(db *gorm.DB, cfg *config.Config) (*Services, error) {
	engine, err := authz.NewEngine()
	if err != nil {
		return nil, err
	}
	audit := services.NewAuditService(db)
	return &Services{
		Users:      services.NewUserService(db, audit, services.NewPasswordHasher(cfg.BcryptCost)),
		Tickets:    services.NewTicketService(db, audit, engine),
		Audit:      audit,
		Tokens:     token.NewService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpirationDur),
		Authorizer: engine,
	}, nil
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(svc *Services, cfg *config.Config) *gin.Engine {
	validator.Register()

	authHandler := handlers.NewAuthHandler(svc.Users, svc.Tokens, cfg.AllowAdminSelfRegistration)
	ticketHandler := handlers.NewTicketHandler(svc.Tickets)
	adminHandler := handlers.NewAdminHandler(svc.Users, svc.Audit)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(cors())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "ticketdesk API is running"})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.NoRoute(func(c *gin.Context) {
		_ = c.Error(apperrors.ErrNotFound)
	})

	requireAuth := middleware.AuthMiddleware(svc.Tokens)

	// Public routes. Register also accepts an admin token so admins can
	// create other admins.
	auth := router.Group("/auth")
	auth.POST("/register", middleware.OptionalAuth(svc.Tokens), authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.AuthMiddleware(svc.Tokens, middleware.RejectInvalidSubjectAsBadRequest()), authHandler.Me)

	// Ticket routes; ownership is decided per ticket by the service.
	tickets := router.Group("/tickets", requireAuth)
	tickets.POST("", ticketHandler.CreateTicket)
	tickets.GET("", ticketHandler.ListTickets)
	tickets.GET("/:id", ticketHandler.GetTicket)
	tickets.PUT("/:id", ticketHandler.UpdateTicket)
	tickets.DELETE("/:id", ticketHandler.DeleteTicket)

	// Admin routes
	admin := router.Group("/admin", requireAuth)
	users := admin.Group("/users", middleware.RequireAction(svc.Authorizer, authz.ManageUsers))
	users.GET("", adminHandler.ListUsers)
	users.PUT("/:id", adminHandler.UpdateUser)
	users.DELETE("/:id", adminHandler.DeleteUser)
	admin.GET("/audit-logs", middleware.RequireAction(svc.Authorizer, authz.ViewAudit), adminHandler.ListAuditLogs)

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
