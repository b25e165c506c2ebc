package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ticketdesk/internal/authz"
	apperrors "ticketdesk/internal/errors"
	"ticketdesk/internal/models"
	"ticketdesk/internal/testutil"
)

// failingAudit rejects every record, standing in for an audit store outage.
type failingAudit struct{}

func (failingAudit) Record(_ *gorm.DB, _ AuditEntry) (*models.AuditLog, error) {
	return nil, apperrors.Wrap(apperrors.ErrInternalServer, errors.New("audit store unavailable"))
}

func (failingAudit) List(_ AuditFilter) ([]models.AuditLog, error) {
	return nil, nil
}

type ticketFixture struct {
	db    *gorm.DB
	svc   *ticketService
	alice authz.Principal
	bob   authz.Principal
	admin authz.Principal
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	alice := testutil.CreateTestUserWithRole(t, db, "alice", models.RoleUser)
	bob := testutil.CreateTestUserWithRole(t, db, "bob", models.RoleUser)
	admin := testutil.CreateTestUserWithRole(t, db, "root", models.RoleAdmin)

	return &ticketFixture{
		db:    db,
		svc:   NewTicketService(db, NewAuditService(db), authz.MustNewEngine()).(*ticketService),
		alice: authz.Principal{UserID: alice.ID, Role: alice.Role},
		bob:   authz.Principal{UserID: bob.ID, Role: bob.Role},
		admin: authz.Principal{UserID: admin.ID, Role: admin.Role},
	}
}

func (f *ticketFixture) withFailingAudit() TicketServicer {
	return NewTicketService(f.db, failingAudit{}, authz.MustNewEngine())
}

func strPtr(s string) *string { return &s }

func priorityPtr(p models.Priority) *models.Priority { return &p }

func TestCreateTicket(t *testing.T) {
	t.Run("owner_and_defaults", func(t *testing.T) {
		f := newTicketFixture(t)

		ticket, err := f.svc.CreateTicket(f.alice, TicketInput{Title: "Printer broken", Description: "Printer jams every page"})
		require.NoError(t, err)

		assert.NotZero(t, ticket.ID)
		assert.Equal(t, f.alice.UserID, ticket.OwnerID)
		assert.Equal(t, models.StatusOpen, ticket.Status)
		assert.Equal(t, models.PriorityMedium, ticket.Priority)
		assert.False(t, ticket.CreatedAt.IsZero())
		assert.Equal(t, ticket.CreatedAt, ticket.UpdatedAt)
	})

	t.Run("exactly_one_audit_record", func(t *testing.T) {
		f := newTicketFixture(t)

		ticket, err := f.svc.CreateTicket(f.alice, TicketInput{Title: "Printer broken", Description: "Printer jams every page"})
		require.NoError(t, err)

		var logs []models.AuditLog
		require.NoError(t, f.db.Find(&logs).Error)
		require.Len(t, logs, 1)
		assert.Equal(t, models.ActionCreateTicket, logs[0].Action)
		require.NotNil(t, logs[0].ActorID)
		require.NotNil(t, logs[0].TicketID)
		assert.Equal(t, f.alice.UserID, *logs[0].ActorID)
		assert.Equal(t, ticket.ID, *logs[0].TicketID)
	})

	t.Run("markup_stripped", func(t *testing.T) {
		f := newTicketFixture(t)

		ticket, err := f.svc.CreateTicket(f.alice, TicketInput{
			Title:       "<b>Printer</b> & scanner",
			Description: "<script>alert(1)</script>Jams every single page",
			Priority:    models.PriorityHigh,
		})
		require.NoError(t, err)

		assert.Equal(t, "Printer & scanner", ticket.Title)
		assert.Equal(t, "Jams every single page", ticket.Description)
		assert.Equal(t, models.PriorityHigh, ticket.Priority)
	})

	t.Run("validation_after_stripping", func(t *testing.T) {
		f := newTicketFixture(t)

		_, err := f.svc.CreateTicket(f.alice, TicketInput{Title: "<i>Hi</i>", Description: "Printer jams every page"})

		testutil.AssertAppError(t, err, "VALIDATION_FAILED")
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Contains(t, appErr.Fields, "title")
		assert.Equal(t, int64(0), testutil.CountAuditLogs(t, f.db, ""))
	})

	t.Run("invalid_priority", func(t *testing.T) {
		f := newTicketFixture(t)

		_, err := f.svc.CreateTicket(f.alice, TicketInput{Title: "Printer broken", Description: "Printer jams every page", Priority: "urgent"})

		testutil.AssertAppError(t, err, "VALIDATION_FAILED")
	})

	t.Run("audit_failure_rolls_back", func(t *testing.T) {
		f := newTicketFixture(t)

		_, err := f.withFailingAudit().CreateTicket(f.alice, TicketInput{Title: "Printer broken", Description: "Printer jams every page"})
		require.Error(t, err)

		var count int64
		f.db.Model(&models.Ticket{}).Count(&count)
		assert.Equal(t, int64(0), count, "ticket must not commit without its audit record")
	})
}

func TestListTickets(t *testing.T) {
	f := newTicketFixture(t)
	aliceTicket := testutil.CreateTestTicket(t, f.db, f.alice.UserID)
	bobTicket := testutil.CreateTestTicket(t, f.db, f.bob.UserID)

	tests := []struct {
		name   string
		caller authz.Principal
		want   []uint
	}{
		{name: "owner_sees_own", caller: f.alice, want: []uint{aliceTicket.ID}},
		{name: "other_sees_own", caller: f.bob, want: []uint{bobTicket.ID}},
		{name: "admin_sees_all", caller: f.admin, want: []uint{aliceTicket.ID, bobTicket.ID}},
		{name: "unknown_role_scoped", caller: authz.Principal{UserID: f.alice.UserID, Role: "guest"}, want: []uint{aliceTicket.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tickets, err := f.svc.ListTickets(tt.caller)
			require.NoError(t, err)

			ids := make([]uint, 0, len(tickets))
			for _, tk := range tickets {
				ids = append(ids, tk.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestGetTicket(t *testing.T) {
	f := newTicketFixture(t)
	ticket := testutil.CreateTestTicket(t, f.db, f.alice.UserID)

	tests := []struct {
		name     string
		caller   authz.Principal
		id       uint
		wantCode string
	}{
		{name: "owner", caller: f.alice, id: ticket.ID},
		{name: "admin", caller: f.admin, id: ticket.ID},
		{name: "other_user", caller: f.bob, id: ticket.ID, wantCode: "FORBIDDEN"},
		{name: "missing", caller: f.admin, id: 99999, wantCode: "TICKET_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.GetTicket(tt.caller, tt.id)
			if tt.wantCode != "" {
				testutil.AssertAppError(t, err, tt.wantCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ticket.ID, got.ID)
		})
	}
}

func TestUpdateTicket(t *testing.T) {
	t.Run("owner_updates_and_refreshes_timestamp", func(t *testing.T) {
		f := newTicketFixture(t)
		ticket := testutil.CreateTestTicket(t, f.db, f.alice.UserID)
		later := ticket.UpdatedAt.Add(time.Hour)
		f.svc.now = func() time.Time { return later }

		updated, err := f.svc.UpdateTicket(f.alice, ticket.ID, TicketPatch{Status: strPtr("resolved")})
		require.NoError(t, err)

		assert.Equal(t, "resolved", updated.Status)
		assert.Equal(t, ticket.Title, updated.Title, "absent fields are retained")
		assert.True(t, updated.UpdatedAt.Equal(later.UTC()), "updated_at refreshed: %v", updated.UpdatedAt)
		assert.Equal(t, f.alice.UserID, updated.OwnerID)
	})

	t.Run("audit_records_changes", func(t *testing.T) {
		f := newTicketFixture(t)
		ticket := testutil.CreateTestTicket(t, f.db, f.alice.UserID)

		_, err := f.svc.UpdateTicket(f.alice, ticket.ID, TicketPatch{Status: strPtr("resolved")})
		require.NoError(t, err)

		var log models.AuditLog
		require.NoError(t, f.db.Where("action = ?", models.ActionUpdateTicket).First(&log).Error)
		assert.Equal(t, ticket.ID, *log.TicketID)
		assert.Equal(t, f.alice.UserID, *log.ActorID)
		assert.JSONEq(t, `{"status":"resolved"}`, log.Details)
	})

	t.Run("other_user_forbidden_before_validation", func(t *testing.T) {
		f := newTicketFixture(t)
		ticket := testutil.CreateTestTicket(t, f.db, f.alice.UserID)

		_, err := f.svc.UpdateTicket(f.bob, ticket.ID, TicketPatch{Title: strPtr("x")})

		testutil.AssertAppError(t, err, "FORBIDDEN")
		assert.Contains(t, err.Error(), "Forbidden")
		assert.Equal(t, int64(0), testutil.CountAuditLogs(t, f.db, ""))
	})

	t.Run("admin_updates_any_ticket", func(t *testing.T) {
		f := newTicketFixture(t)
		ticket := testutil.CreateTestTicket(t, f.db, f.alice.UserID)
		high := models.PriorityHigh

		updated, err := f.svc.UpdateTicket(f.admin, ticket.ID, TicketPatch{Priority: &high})
		require.NoError(t, err)

		assert.Equal(t, models.PriorityHigh, updated.Priority)
		assert.Equal(t, f.alice.UserID, updated.OwnerID, "owner never changes")
	})

	t.Run("owner_invalid_fields", func(t *testing.T) {
		f := newTicketFixture(t)
		ticket := testutil.CreateTestTicket(t, f.db, f.alice.UserID)

		_, err := f.svc.UpdateTicket(f.alice, ticket.ID, TicketPatch{Title: strPtr("x"), Status: strPtr("   ")})

		testutil.AssertAppError(t, err, "VALIDATION_FAILED")
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Contains(t, appErr.Fields, "title")
		assert.Contains(t, appErr.Fields, "status")
	})

	t.Run("missing", func(t *testing.T) {
		f := newTicketFixture(t)

		_, err := f.svc.UpdateTicket(f.admin, 99999, TicketPatch{Status: strPtr("closed")})

		testutil.AssertAppError(t, err, "TICKET_NOT_FOUND")
	})

	t.Run("audit_failure_rolls_back", func(t *testing.T) {
		f := newTicketFixture(t)
		ticket := testutil.CreateTestTicket(t, f.db, f.alice.UserID)

		_, err := f.withFailingAudit().UpdateTicket(f.alice, ticket.ID, TicketPatch{Status: strPtr("closed")})
		require.Error(t, err)

		var reloaded models.Ticket
		require.NoError(t, f.db.First(&reloaded, ticket.ID).Error)
		assert.Equal(t, models.StatusOpen, reloaded.Status)
	})
}

func TestDeleteTicket(t *testing.T) {
	t.Run("admin_deletes_history_survives", func(t *testing.T) {
		f := newTicketFixture(t)
		ticket := testutil.CreateTestTicket(t, f.db, f.alice.UserID)

		require.NoError(t, f.svc.DeleteTicket(f.admin, ticket.ID))

		_, err := f.svc.GetTicket(f.admin, ticket.ID)
		testutil.AssertAppError(t, err, "TICKET_NOT_FOUND")

		var log models.AuditLog
		require.NoError(t, f.db.Where("action = ?", models.ActionDeleteTicket).First(&log).Error)
		require.NotNil(t, log.TicketID)
		assert.Equal(t, ticket.ID, *log.TicketID)
		assert.Equal(t, f.admin.UserID, *log.ActorID)
	})

	t.Run("owner_cannot_delete", func(t *testing.T) {
		f := newTicketFixture(t)
		ticket := testutil.CreateTestTicket(t, f.db, f.alice.UserID)

		err := f.svc.DeleteTicket(f.alice, ticket.ID)

		testutil.AssertAppError(t, err, "FORBIDDEN")
		_, err = f.svc.GetTicket(f.alice, ticket.ID)
		assert.NoError(t, err)
	})

	t.Run("missing", func(t *testing.T) {
		f := newTicketFixture(t)

		err := f.svc.DeleteTicket(f.admin, 99999)

		testutil.AssertAppError(t, err, "TICKET_NOT_FOUND")
	})

	t.Run("audit_failure_rolls_back", func(t *testing.T) {
		f := newTicketFixture(t)
		ticket := testutil.CreateTestTicket(t, f.db, f.alice.UserID)

		require.Error(t, f.withFailingAudit().DeleteTicket(f.admin, ticket.ID))

		_, err := f.svc.GetTicket(f.admin, ticket.ID)
		assert.NoError(t, err, "ticket must survive a failed delete")
	})
}

func TestAuditTimestamps_NotBeforeOperationStart(t *testing.T) {
	f := newTicketFixture(t)
	auditLogFor := func(action string) models.AuditLog {
		t.Helper()
		var log models.AuditLog
		require.NoError(t, f.db.Where("action = ?", action).Order("id DESC").First(&log).Error)
		return log
	}

	start := time.Now()
	ticket, err := f.svc.CreateTicket(f.alice, TicketInput{Title: "Printer broken", Description: "Printer jams every page"})
	require.NoError(t, err)
	created := auditLogFor(models.ActionCreateTicket)
	assert.False(t, created.Timestamp.Before(start), "create: %v before %v", created.Timestamp, start)

	start = time.Now()
	_, err = f.svc.UpdateTicket(f.alice, ticket.ID, TicketPatch{Priority: priorityPtr(models.PriorityHigh)})
	require.NoError(t, err)
	updated := auditLogFor(models.ActionUpdateTicket)
	assert.False(t, updated.Timestamp.Before(start), "update: %v before %v", updated.Timestamp, start)

	start = time.Now()
	require.NoError(t, f.svc.DeleteTicket(f.admin, ticket.ID))
	deleted := auditLogFor(models.ActionDeleteTicket)
	assert.False(t, deleted.Timestamp.Before(start), "delete: %v before %v", deleted.Timestamp, start)
	assert.False(t, deleted.Timestamp.After(time.Now()))
}

func TestUpdateTicket_ConcurrentUpdatesSerialize(t *testing.T) {
	f := newTicketFixture(t)
	ticket := testutil.CreateTestTicket(t, f.db, f.alice.UserID)

	statuses := []string{"in_progress", "waiting"}
	errs := make(chan error, len(statuses))
	var wg sync.WaitGroup
	for i, status := range statuses {
		caller := f.alice
		if i == 1 {
			caller = f.admin
		}
		wg.Add(1)
		go func(caller authz.Principal, status string) {
			defer wg.Done()
			_, err := f.svc.UpdateTicket(caller, ticket.ID, TicketPatch{Status: strPtr(status)})
			errs <- err
		}(caller, status)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(2), testutil.CountAuditLogs(t, f.db, models.ActionUpdateTicket))

	var final models.Ticket
	require.NoError(t, f.db.First(&final, ticket.ID).Error)
	assert.Contains(t, statuses, final.Status)

	// The last committed update wins and is the last one audited.
	var last models.AuditLog
	require.NoError(t, f.db.Where("action = ?", models.ActionUpdateTicket).Order("id DESC").First(&last).Error)
	assert.JSONEq(t, `{"status":"`+final.Status+`"}`, last.Details)
}
