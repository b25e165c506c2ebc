package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ticketdesk/internal/config"
	"ticketdesk/internal/database"
	"ticketdesk/internal/logger"
	"ticketdesk/internal/models"
	"ticketdesk/internal/services"
)

func newCreateAdminCommand() *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long:  `Create an admin user directly in the store. Use this to bootstrap the first administrator when admin self-registration is disabled.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if len(password) < 6 {
				return errors.New("password must be at least 6 characters")
			}
			if len(password) > services.MaxPasswordBytes {
				return fmt.Errorf("password must be at most %d bytes", services.MaxPasswordBytes)
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

			db := dbManager.DB()
			users := services.NewUserService(db, services.NewAuditService(db), services.NewPasswordHasher(config.Get().BcryptCost))
			user, err := users.Register(username, email, password, models.RoleAdmin, nil)
			if err != nil {
				return fmt.Errorf("failed to create admin: %w", err)
			}

			logger.Get().Infow("admin created", "user_id", user.ID, "username", user.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Admin username (required)")
	cmd.Flags().StringVarP(&email, "email", "m", "", "Admin email (required)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Admin password (required)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
