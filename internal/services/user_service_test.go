package services

import (
	"context"
	"testing"
	"time"

	"github.com/catkeep/authcore/internal/models"
	pkgauth "github.com/catkeep/authcore/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(users UserRepository) (*UserService, *MockUserCache, *mockSessionTerminator, *MockAuditRecorder) {
	cache := NewMockUserCache()
	sessions := &mockSessionTerminator{}
	audit := &MockAuditRecorder{}
	return NewUserService(users, cache, sessions, audit, testLogger()), cache, sessions, audit
}

type mockSessionTerminator struct {
	terminated []string
}

func (m *mockSessionTerminator) TerminateAllForUser(ctx context.Context, userID string) error {
	m.terminated = append(m.terminated, userID)
	return nil
}

func superadmin() *models.User {
	return &models.User{ID: "root-1", Username: "root", Role: models.RoleSuperadmin, IsActive: true}
}

func TestUserService_Create(t *testing.T) {
	users := &MockUserRepository{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			user.ID = "user-2"
			return user, nil
		},
	}
	svc, _, _, audit := newUserService(users)

	user, err := svc.Create(context.Background(), superadmin(), CreateUserInput{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "Str0ngPassw0rd!",
		Role:     "caretaker",
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, models.RoleCaretaker, user.Role)
	assert.True(t, user.IsActive)
	require.NotNil(t, user.LastPasswordChange)
	require.NotNil(t, user.PasswordExpiresAt)
	assert.NoError(t, pkgauth.ComparePassword(user.PasswordHash, "Str0ngPassw0rd!"))

	require.Len(t, audit.Entries, 1)
	assert.Equal(t, models.AuditEventUserCreate, audit.Entries[0].EventType)
}

func TestUserService_Create_WeakPassword(t *testing.T) {
	svc, _, _, _ := newUserService(&MockUserRepository{})

	_, err := svc.Create(context.Background(), superadmin(), CreateUserInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "short",
	})
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestUserService_Create_CaretakerCannotCreate(t *testing.T) {
	svc, _, _, _ := newUserService(&MockUserRepository{})

	caretaker := &models.User{ID: "c-1", Role: models.RoleCaretaker}
	_, err := svc.Create(context.Background(), caretaker, CreateUserInput{
		Username: "bob",
		Email:    "bob@example.com",
		Password: "Str0ngPassw0rd!",
	})
	assert.ErrorIs(t, err, models.ErrInsufficientPrivilege)
}

func TestUserService_Create_SecondActiveAdminRejected(t *testing.T) {
	users := &MockUserRepository{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			return nil, models.ErrDuplicateActiveAdmin
		},
	}
	svc, _, _, _ := newUserService(users)

	_, err := svc.Create(context.Background(), superadmin(), CreateUserInput{
		Username: "admin2",
		Email:    "admin2@example.com",
		Password: "Str0ngPassw0rd!",
		Role:     "admin",
	})
	assert.ErrorIs(t, err, models.ErrDuplicateActiveAdmin)
}

func TestUserService_GetByID_CachesReads(t *testing.T) {
	loads := 0
	users := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			loads++
			return &models.User{ID: id, Username: "alice"}, nil
		},
	}
	svc, _, _, _ := newUserService(users)

	_, err := svc.GetByID(context.Background(), "user-1")
	require.NoError(t, err)
	_, err = svc.GetByID(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1, loads)
}

func TestUserService_UpdateRole(t *testing.T) {
	target := &models.User{ID: "user-1", Role: models.RoleCaretaker, IsActive: true}
	users := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return target, nil
		},
	}
	svc, cache, _, audit := newUserService(users)

	err := svc.UpdateRole(context.Background(), superadmin(), "user-1", models.RoleAdmin)
	require.NoError(t, err)

	assert.Contains(t, cache.Invalidated, "user-1")
	require.Len(t, audit.Entries, 1)
	assert.Equal(t, models.AuditEventRoleUpdate, audit.Entries[0].EventType)
}

func TestUserService_UpdateRole_CannotChangeOwnRole(t *testing.T) {
	svc, _, _, _ := newUserService(&MockUserRepository{})

	actor := superadmin()
	err := svc.UpdateRole(context.Background(), actor, actor.ID, models.RoleCaretaker)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestUserService_UpdateRole_MustOutrankTarget(t *testing.T) {
	target := &models.User{ID: "user-1", Role: models.RoleAdmin, IsActive: true}
	users := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return target, nil
		},
	}
	svc, _, _, _ := newUserService(users)

	actor := &models.User{ID: "a-1", Role: models.RoleAdmin}
	err := svc.UpdateRole(context.Background(), actor, "user-1", models.RoleCaretaker)
	assert.ErrorIs(t, err, models.ErrInsufficientPrivilege)
}

func TestUserService_SetActive_DisableTerminatesSessions(t *testing.T) {
	target := &models.User{ID: "user-1", Role: models.RoleCaretaker, IsActive: true}
	users := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return target, nil
		},
	}
	svc, cache, sessions, audit := newUserService(users)

	err := svc.SetActive(context.Background(), superadmin(), "user-1", false)
	require.NoError(t, err)

	assert.Equal(t, []string{"user-1"}, sessions.terminated)
	assert.Contains(t, cache.Invalidated, "user-1")
	require.Len(t, audit.Entries, 1)
	assert.Equal(t, models.AuditEventUserDisable, audit.Entries[0].EventType)
}

func TestUserService_SetActive_EnableSecondAdminRejected(t *testing.T) {
	target := &models.User{ID: "user-1", Role: models.RoleAdmin, IsActive: false}
	users := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return target, nil
		},
		SetActiveFunc: func(ctx context.Context, userID string, active bool) error {
			return models.ErrDuplicateActiveAdmin
		},
	}
	svc, _, _, _ := newUserService(users)

	err := svc.SetActive(context.Background(), superadmin(), "user-1", true)
	assert.ErrorIs(t, err, models.ErrDuplicateActiveAdmin)
}

func TestUserService_ChangePassword(t *testing.T) {
	hash, err := pkgauth.HashPassword("OldPassw0rd!123")
	require.NoError(t, err)
	user := &models.User{ID: "user-1", PasswordHash: hash, IsActive: true}

	var newExpiry time.Time
	users := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
		UpdatePasswordFunc: func(ctx context.Context, userID, passwordHash string, expiresAt time.Time) error {
			newExpiry = expiresAt
			return nil
		},
	}
	svc, cache, sessions, _ := newUserService(users)

	err = svc.ChangePassword(context.Background(), "user-1", "OldPassw0rd!123", "NewPassw0rd!456")
	require.NoError(t, err)

	assert.WithinDuration(t, time.Now().Add(90*24*time.Hour), newExpiry, time.Minute)
	assert.Equal(t, []string{"user-1"}, sessions.terminated)
	assert.Contains(t, cache.Invalidated, "user-1")
}

func TestUserService_ChangePassword_WrongCurrent(t *testing.T) {
	hash, err := pkgauth.HashPassword("OldPassw0rd!123")
	require.NoError(t, err)
	users := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return &models.User{ID: "user-1", PasswordHash: hash}, nil
		},
	}
	svc, _, _, _ := newUserService(users)

	err = svc.ChangePassword(context.Background(), "user-1", "not-it", "NewPassw0rd!456")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}
