package main

import (
	"fmt"
	"os"

	"ticketdesk/internal/config"
	"ticketdesk/internal/database"
	"ticketdesk/internal/logger"
	"ticketdesk/internal/server"
)

// @title           ticketdesk API
// @version         1.0
// @description     Multi-tenant support-ticket API with role and ownership based access control and an immutable audit trail.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	svc, err := server.NewServices(dbManager.DB(), appConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	router := server.NewRouter(svc, appConfig)

	log.Infof("Starting ticketdesk server on port %s (db driver %s)", appConfig.Port, dbConfig.Driver)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
