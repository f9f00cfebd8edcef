package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/catkeep/authcore/internal/models"
	pkgauth "github.com/catkeep/authcore/pkg/auth"
)

// UserCacheStore is the read-cache interface consumed by the user service.
type UserCacheStore interface {
	Get(userID string) (*models.User, bool)
	Set(user *models.User)
	Invalidate(userID string)
}

// SessionTerminator expires all live sessions of a user.
type SessionTerminator interface {
	TerminateAllForUser(ctx context.Context, userID string) error
}

// UserService handles account administration: creation, role changes,
// enable/disable, and password changes. Reads go through a TTL cache that is
// invalidated on every mutation.
type UserService struct {
	users    UserRepository
	cache    UserCacheStore
	sessions SessionTerminator
	audit    AuditRecorder
	logger   *slog.Logger
}

func NewUserService(users UserRepository, cache UserCacheStore, sessions SessionTerminator, audit AuditRecorder, logger *slog.Logger) *UserService {
	return &UserService{
		users:    users,
		cache:    cache,
		sessions: sessions,
		audit:    audit,
		logger:   logger,
	}
}

// CreateUserInput carries the fields for account creation.
type CreateUserInput struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=caretaker admin superadmin"`
}

// Create adds an account. Only an actor who outranks the requested role may
// assign it; creating a second active admin fails with
// ErrDuplicateActiveAdmin.
func (s *UserService) Create(ctx context.Context, actor *models.User, input CreateUserInput) (*models.User, error) {
	role := models.Role(input.Role)
	if role == "" {
		role = models.RoleCaretaker
	}
	if !role.Valid() {
		return nil, models.ErrBadRequest
	}

	if !actor.Role.AtLeast(models.RoleAdmin) || !actor.Role.AtLeast(role) {
		return nil, models.ErrInsufficientPrivilege
	}

	if msg := pkgauth.ValidateStrength(input.Password); msg != "" {
		s.logger.Info("user creation rejected: weak password")
		return nil, models.ErrBadRequest
	}

	hash, err := pkgauth.HashPassword(input.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	expires := now.Add(pkgauth.PasswordExpiryDays * 24 * time.Hour)
	user, err := s.users.Create(ctx, &models.User{
		Username:           strings.TrimSpace(input.Username),
		Email:              strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash:       hash,
		IsActive:           true,
		Role:               role,
		LastPasswordChange: &now,
		PasswordExpiresAt:  &expires,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrDuplicateActiveAdmin) {
			return nil, err
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.Record(ctx, &models.AuditLog{
		UserID:    &actor.ID,
		Operation: "user_create",
		TargetID:  &user.ID,
		EventType: models.AuditEventUserCreate,
		Success:   true,
		Extra:     map[string]string{"role": string(user.Role)},
	})

	return user, nil
}

// GetByID serves reads through the cache.
func (s *UserService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	if user, ok := s.cache.Get(userID); ok {
		return user, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.cache.Set(user)
	return user, nil
}

func (s *UserService) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return users, nil
}

// UpdateRole changes a user's role. The actor must outrank both the target's
// current role and the new one, and cannot change their own role. Promotion
// to admin is subject to the single-active-admin rule.
func (s *UserService) UpdateRole(ctx context.Context, actor *models.User, targetID string, role models.Role) error {
	if !role.Valid() {
		return models.ErrBadRequest
	}
	if actor.ID == targetID {
		return models.ErrForbidden
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return s.mapLookupErr(err, targetID)
	}

	if !actor.Role.Outranks(target.Role) || !actor.Role.AtLeast(role) {
		return models.ErrInsufficientPrivilege
	}

	if err := s.users.UpdateRole(ctx, targetID, role); err != nil {
		if errors.Is(err, models.ErrDuplicateActiveAdmin) || errors.Is(err, models.ErrNotFound) {
			return err
		}
		s.logger.Error("failed to update role",
			slog.String("target_id", targetID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.cache.Invalidate(targetID)
	s.audit.Record(ctx, &models.AuditLog{
		UserID:    &actor.ID,
		Operation: "role_update",
		TargetID:  &targetID,
		EventType: models.AuditEventRoleUpdate,
		Success:   true,
		Extra: map[string]string{
			"old_role": string(target.Role),
			"new_role": string(role),
		},
	})

	return nil
}

// SetActive enables or disables an account. Disabling also terminates the
// target's live sessions; a disabled user must not ride out an old login.
func (s *UserService) SetActive(ctx context.Context, actor *models.User, targetID string, active bool) error {
	if actor.ID == targetID {
		return models.ErrForbidden
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return s.mapLookupErr(err, targetID)
	}

	if !actor.Role.Outranks(target.Role) {
		return models.ErrInsufficientPrivilege
	}

	if err := s.users.SetActive(ctx, targetID, active); err != nil {
		if errors.Is(err, models.ErrDuplicateActiveAdmin) || errors.Is(err, models.ErrNotFound) {
			return err
		}
		s.logger.Error("failed to set account status",
			slog.String("target_id", targetID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.cache.Invalidate(targetID)

	eventType := models.AuditEventUserEnable
	operation := "user_enable"
	if !active {
		eventType = models.AuditEventUserDisable
		operation = "user_disable"
		if err := s.sessions.TerminateAllForUser(ctx, targetID); err != nil {
			s.logger.Warn("failed to terminate sessions for disabled user",
				slog.String("target_id", targetID), slog.Any("error", err))
		}
	}

	s.audit.Record(ctx, &models.AuditLog{
		UserID:    &actor.ID,
		Operation: operation,
		TargetID:  &targetID,
		EventType: eventType,
		Success:   true,
	})

	return nil
}

// ChangePassword sets a new password for the user after validating strength.
// All other live sessions are terminated.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return s.mapLookupErr(err, userID)
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return models.ErrInvalidCredentials
	}

	if msg := pkgauth.ValidateStrength(newPassword); msg != "" {
		return models.ErrBadRequest
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	expires := time.Now().Add(pkgauth.PasswordExpiryDays * 24 * time.Hour)
	if err := s.users.UpdatePassword(ctx, userID, hash, expires); err != nil {
		s.logger.Error("failed to update password",
			slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.cache.Invalidate(userID)
	if err := s.sessions.TerminateAllForUser(ctx, userID); err != nil {
		s.logger.Warn("failed to terminate sessions after password change",
			slog.String("user_id", userID), slog.Any("error", err))
	}

	return nil
}

func (s *UserService) mapLookupErr(err error, userID string) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrNotFound
	}
	s.logger.Error("failed to load user",
		slog.String("user_id", userID), slog.Any("error", err))
	return models.ErrInternalServer
}
