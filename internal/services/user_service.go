package services

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "ticketdesk/internal/errors"
	"ticketdesk/internal/models"
)

// userService handles user-related business logic.
type userService struct {
	db     *gorm.DB
	audit  AuditServicer
	hasher *PasswordHasher
}

// NewUserService creates a new UserServicer.
func NewUserService(db *gorm.DB, audit AuditServicer, hasher *PasswordHasher) UserServicer {
	return &userService{db: db, audit: audit, hasher: hasher}
}

// Register creates a user. The uniqueness check, the insert and the audit
// record share one transaction, and the unique indexes catch any insert that
// races past the check. actorID is the admin creating the account, or nil for
// self-registration.
func (s *userService) Register(username, email, password string, role models.Role, actorID *uint) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "username, email and password are required")
	}
	if !role.IsValid() {
		return nil, apperrors.WithFields(apperrors.ErrInvalidInput, map[string]string{"role": "Must be one of: user, admin."})
	}

	hashedPassword, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, apperrors.WithFields(apperrors.ErrInvalidInput, map[string]string{
				"password": fmt.Sprintf("Longer than maximum length %d bytes.", MaxPasswordBytes),
			})
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: hashedPassword,
		Role:     role,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).
			Where("username = ? OR email = ?", username, email).
			Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			return apperrors.ErrDuplicateUser
		}

		if err := tx.Create(user).Error; err != nil {
			return storeError(err)
		}

		actor := actorID
		if actor == nil {
			actor = uintPtr(user.ID)
		}
		_, err := s.audit.Record(tx, AuditEntry{
			Action:       models.ActionRegisterUser,
			ActorID:      actor,
			TargetUserID: uintPtr(user.ID),
			Changes:      map[string]interface{}{"username": user.Username, "role": user.Role},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username
func (s *userService) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, lookupError(err)
	}
	return &user, nil
}

// GetUserByUsernameOrEmail retrieves the user holding either identifier
func (s *userService) GetUserByUsernameOrEmail(username, email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ? OR email = ?", username, normalizeEmail(email)).
		Order("id ASC").First(&user).Error; err != nil {
		return nil, lookupError(err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, lookupError(err)
	}
	return &user, nil
}

// ListUsers returns every user ordered by id
func (s *userService) ListUsers() ([]models.User, error) {
	var users []models.User
	if err := s.db.Order("id ASC").Find(&users).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return users, nil
}

// UpdateUser applies a partial patch. This is the only path that changes a
// role; callers must already have passed the admin gate.
func (s *userService) UpdateUser(actorID, userID uint, patch UserPatch) (*models.User, error) {
	var user models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, userID).Error; err != nil {
			return lookupError(err)
		}

		updates := map[string]interface{}{}
		if patch.Username != nil {
			updates["username"] = strings.TrimSpace(*patch.Username)
		}
		if patch.Email != nil {
			updates["email"] = normalizeEmail(*patch.Email)
		}
		if patch.Role != nil {
			if !patch.Role.IsValid() {
				return apperrors.WithFields(apperrors.ErrValidation, map[string]string{"role": "Must be one of: user, admin."})
			}
			updates["role"] = *patch.Role
		}

		if err := s.checkIdentifiersFree(tx, userID, updates); err != nil {
			return err
		}

		if len(updates) > 0 {
			if err := tx.Model(&user).Updates(updates).Error; err != nil {
				return storeError(err)
			}
			if err := tx.First(&user, userID).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}

		_, err := s.audit.Record(tx, AuditEntry{
			Action:       models.ActionUpdateUser,
			ActorID:      uintPtr(actorID),
			TargetUserID: uintPtr(userID),
			Changes:      updates,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes a user. Users who still own tickets are refused so that
// no ticket is left without an owner.
func (s *userService) DeleteUser(actorID, userID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return lookupError(err)
		}

		var owned int64
		if err := tx.Model(&models.Ticket{}).Where("owner_id = ?", userID).Count(&owned).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if owned > 0 {
			return apperrors.ErrUserHasTickets
		}

		// Recorded before the delete so an admin removing their own account
		// still has a valid actor row; the FK then nulls actor_id.
		if _, err := s.audit.Record(tx, AuditEntry{
			Action:       models.ActionDeleteUser,
			ActorID:      uintPtr(actorID),
			TargetUserID: uintPtr(userID),
			Changes:      map[string]interface{}{"username": user.Username},
		}); err != nil {
			return err
		}

		if err := tx.Delete(&user).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// VerifyPassword checks if the provided password matches the stored hash
func (s *userService) VerifyPassword(user *models.User, password string) bool {
	return s.hasher.Matches(user.Password, password)
}

func (s *userService) checkIdentifiersFree(tx *gorm.DB, userID uint, updates map[string]interface{}) error {
	for _, column := range []string{"username", "email"} {
		value, ok := updates[column]
		if !ok {
			continue
		}
		var count int64
		if err := tx.Model(&models.User{}).
			Where(column+" = ? AND id <> ?", value, userID).
			Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			return apperrors.ErrDuplicateUser
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrUserNotFound
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}

func storeError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.Wrap(apperrors.ErrDuplicateUser, err)
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}
