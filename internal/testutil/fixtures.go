package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"ticketdesk/internal/models"
)

// TestPassword is the plaintext password of every fixture user.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with role "user" and a unique username.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithRole(t, db, fmt.Sprintf("user%d", nextID()), models.RoleUser)
}

// CreateTestAdmin creates a user with role "admin" and a unique username.
func CreateTestAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithRole(t, db, fmt.Sprintf("admin%d", nextID()), models.RoleAdmin)
}

// CreateTestUserWithRole creates a user named username with the given role.
// The email is derived from the username.
func CreateTestUserWithRole(t *testing.T, db *gorm.DB, username string, role models.Role) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Username: username,
		Email:    username + "@test.com",
		Password: string(hash),
		Role:     role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestTicket creates an open, medium-priority ticket owned by ownerID.
func CreateTestTicket(t *testing.T, db *gorm.DB, ownerID uint) *models.Ticket {
	t.Helper()

	now := time.Now().UTC()
	ticket := &models.Ticket{
		Base:        models.Base{CreatedAt: now, UpdatedAt: now},
		Title:       fmt.Sprintf("Ticket number %d", nextID()),
		Description: "Something is broken and needs fixing",
		Status:      models.StatusOpen,
		Priority:    models.PriorityMedium,
		OwnerID:     ownerID,
	}
	if err := db.Create(ticket).Error; err != nil {
		t.Fatalf("failed to create test ticket: %v", err)
	}
	return ticket
}

// CountAuditLogs returns the number of audit rows matching action, or all
// rows when action is empty.
func CountAuditLogs(t *testing.T, db *gorm.DB, action string) int64 {
	t.Helper()

	var count int64
	query := db.Model(&models.AuditLog{})
	if action != "" {
		query = query.Where("action = ?", action)
	}
	if err := query.Count(&count).Error; err != nil {
		t.Fatalf("failed to count audit logs: %v", err)
	}
	return count
}
