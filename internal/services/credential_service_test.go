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

var testPolicy = LockoutPolicy{
	MaxFailedAttempts: 5,
	Window:            15 * time.Minute,
	Duration:          15 * time.Minute,
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := pkgauth.HashPassword(password)
	require.NoError(t, err)

	now := time.Now()
	expires := now.Add(90 * 24 * time.Hour)
	return &models.User{
		ID:                 "user-1",
		Username:           "alice",
		PasswordHash:       hash,
		IsActive:           true,
		Role:               models.RoleCaretaker,
		LastPasswordChange: &now,
		PasswordExpiresAt:  &expires,
	}
}

func TestCredentialService_Verify_Success(t *testing.T) {
	user := activeUser(t, "Str0ngPassw0rd!")
	users := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}
	attempts := &MockLoginAttemptRepository{}
	mfa := &MockMFASecretRepository{
		HasActiveFunc: func(ctx context.Context, userID string) (bool, error) { return true, nil },
	}

	svc := NewCredentialService(users, attempts, mfa, testPolicy, testLogger())

	decision, err := svc.Verify(context.Background(), "alice", "Str0ngPassw0rd!", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", decision.User.ID)
	assert.True(t, decision.HasMFA)
	assert.False(t, decision.NeedsPasswordReset)

	require.Len(t, attempts.Recorded, 1)
	assert.True(t, attempts.Recorded[0].Success)
	assert.Equal(t, "10.0.0.1", attempts.Recorded[0].IPAddress)
}

func TestCredentialService_Verify_UnknownUsernameRecordsAttempt(t *testing.T) {
	users := &MockUserRepository{}
	attempts := &MockLoginAttemptRepository{}

	svc := NewCredentialService(users, attempts, &MockMFASecretRepository{}, testPolicy, testLogger())

	_, err := svc.Verify(context.Background(), "nobody", "whatever", "")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	// Probing an unknown username still leaves a trace under the raw name.
	require.Len(t, attempts.Recorded, 1)
	assert.Equal(t, "nobody", attempts.Recorded[0].Username)
	assert.False(t, attempts.Recorded[0].Success)
}

func TestCredentialService_Verify_DisabledAccount(t *testing.T) {
	user := activeUser(t, "Str0ngPassw0rd!")
	user.IsActive = false
	users := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}
	attempts := &MockLoginAttemptRepository{}

	svc := NewCredentialService(users, attempts, &MockMFASecretRepository{}, testPolicy, testLogger())

	_, err := svc.Verify(context.Background(), "alice", "Str0ngPassw0rd!", "")
	assert.ErrorIs(t, err, models.ErrAccountDisabled)
	assert.Len(t, attempts.Recorded, 1)
}

func TestCredentialService_Verify_LockedAccountRecordsNothing(t *testing.T) {
	user := activeUser(t, "Str0ngPassw0rd!")
	until := time.Now().Add(10 * time.Minute)
	user.AccountLockedUntil = &until

	users := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}
	attempts := &MockLoginAttemptRepository{}

	svc := NewCredentialService(users, attempts, &MockMFASecretRepository{}, testPolicy, testLogger())

	_, err := svc.Verify(context.Background(), "alice", "Str0ngPassw0rd!", "")
	assert.ErrorIs(t, err, models.ErrAccountLocked)

	// A locked account must not accrue attempts; that would extend the lock
	// indefinitely.
	assert.Empty(t, attempts.Recorded)
}

func TestCredentialService_Verify_WrongPasswordBelowThreshold(t *testing.T) {
	user := activeUser(t, "Str0ngPassw0rd!")
	users := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}
	attempts := &MockLoginAttemptRepository{}

	svc := NewCredentialService(users, attempts, &MockMFASecretRepository{}, testPolicy, testLogger())

	_, err := svc.Verify(context.Background(), "alice", "wrong-password", "")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.Len(t, attempts.Recorded, 1)
}

func TestCredentialService_Verify_LockoutAfterRepeatedFailures(t *testing.T) {
	user := activeUser(t, "Str0ngPassw0rd!")
	var lockedUntil *time.Time
	users := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
		SetLockUntilFunc: func(ctx context.Context, userID string, until *time.Time) error {
			lockedUntil = until
			return nil
		},
	}
	attempts := &MockLoginAttemptRepository{}

	svc := NewCredentialService(users, attempts, &MockMFASecretRepository{}, testPolicy, testLogger())

	for i := 0; i < 4; i++ {
		_, err := svc.Verify(context.Background(), "alice", "wrong-password", "")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	}
	assert.Nil(t, lockedUntil)

	// Fifth failure inside the window trips the lock.
	_, err := svc.Verify(context.Background(), "alice", "wrong-password", "")
	assert.ErrorIs(t, err, models.ErrAccountLocked)
	require.NotNil(t, lockedUntil)
	assert.WithinDuration(t, time.Now().Add(testPolicy.Duration), *lockedUntil, 5*time.Second)
	assert.Len(t, attempts.Recorded, 5)
}

func TestCredentialService_Verify_OldFailuresOutsideWindowIgnored(t *testing.T) {
	user := activeUser(t, "Str0ngPassw0rd!")
	users := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}
	attempts := &MockLoginAttemptRepository{}
	// Seed failures older than the window; CountFailedSince filters on cutoff.
	for i := 0; i < 10; i++ {
		attempts.Recorded = append(attempts.Recorded, &models.LoginAttempt{
			Username:    "alice",
			Success:     false,
			AttemptedAt: time.Now().Add(-time.Hour),
		})
	}

	svc := NewCredentialService(users, attempts, &MockMFASecretRepository{}, testPolicy, testLogger())

	_, err := svc.Verify(context.Background(), "alice", "wrong-password", "")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestCredentialService_Verify_SuccessClearsExpiredLock(t *testing.T) {
	user := activeUser(t, "Str0ngPassw0rd!")
	past := time.Now().Add(-time.Minute)
	user.AccountLockedUntil = &past

	cleared := false
	users := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
		SetLockUntilFunc: func(ctx context.Context, userID string, until *time.Time) error {
			cleared = until == nil
			return nil
		},
	}

	svc := NewCredentialService(users, &MockLoginAttemptRepository{}, &MockMFASecretRepository{}, testPolicy, testLogger())

	_, err := svc.Verify(context.Background(), "alice", "Str0ngPassw0rd!", "")
	require.NoError(t, err)
	assert.True(t, cleared)
}

func TestCredentialService_Verify_ExpiredPasswordNeedsReset(t *testing.T) {
	user := activeUser(t, "Str0ngPassw0rd!")
	expired := time.Now().Add(-24 * time.Hour)
	user.PasswordExpiresAt = &expired

	users := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}

	svc := NewCredentialService(users, &MockLoginAttemptRepository{}, &MockMFASecretRepository{}, testPolicy, testLogger())

	decision, err := svc.Verify(context.Background(), "alice", "Str0ngPassw0rd!", "")
	require.NoError(t, err)
	assert.True(t, decision.NeedsPasswordReset)
}

func TestCredentialService_Verify_EmptyInput(t *testing.T) {
	svc := NewCredentialService(&MockUserRepository{}, &MockLoginAttemptRepository{}, &MockMFASecretRepository{}, testPolicy, testLogger())

	_, err := svc.Verify(context.Background(), "", "pw", "")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	_, err = svc.Verify(context.Background(), "alice", "", "")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}
