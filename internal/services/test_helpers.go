package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/catkeep/authcore/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc        func(ctx context.Context, id string) (*models.User, error)
	GetByUsernameFunc  func(ctx context.Context, username string) (*models.User, error)
	ListFunc           func(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateFunc         func(ctx context.Context, user *models.User) (*models.User, error)
	SetLockUntilFunc   func(ctx context.Context, userID string, until *time.Time) error
	UpdatePasswordFunc func(ctx context.Context, userID, passwordHash string, expiresAt time.Time) error
	UpdateRoleFunc     func(ctx context.Context, userID string, role models.Role) error
	SetActiveFunc      func(ctx context.Context, userID string, active bool) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) SetLockUntil(ctx context.Context, userID string, until *time.Time) error {
	if m.SetLockUntilFunc != nil {
		return m.SetLockUntilFunc(ctx, userID, until)
	}
	return nil
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string, expiresAt time.Time) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, userID, passwordHash, expiresAt)
	}
	return nil
}

func (m *MockUserRepository) UpdateRole(ctx context.Context, userID string, role models.Role) error {
	if m.UpdateRoleFunc != nil {
		return m.UpdateRoleFunc(ctx, userID, role)
	}
	return nil
}

func (m *MockUserRepository) SetActive(ctx context.Context, userID string, active bool) error {
	if m.SetActiveFunc != nil {
		return m.SetActiveFunc(ctx, userID, active)
	}
	return nil
}

// MockLoginAttemptRepository implements LoginAttemptRepository for testing
type MockLoginAttemptRepository struct {
	RecordFunc           func(ctx context.Context, attempt *models.LoginAttempt) error
	CountFailedSinceFunc func(ctx context.Context, username string, cutoff time.Time) (int, error)

	Recorded []*models.LoginAttempt
}

func (m *MockLoginAttemptRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	m.Recorded = append(m.Recorded, attempt)
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, attempt)
	}
	return nil
}

func (m *MockLoginAttemptRepository) CountFailedSince(ctx context.Context, username string, cutoff time.Time) (int, error) {
	if m.CountFailedSinceFunc != nil {
		return m.CountFailedSinceFunc(ctx, username, cutoff)
	}
	count := 0
	for _, a := range m.Recorded {
		if a.Username == username && !a.Success && a.AttemptedAt.After(cutoff) {
			count++
		}
	}
	return count, nil
}

// MockMFASecretRepository implements MFASecretRepository for testing
type MockMFASecretRepository struct {
	ActivateSecretFunc          func(ctx context.Context, secret *models.MFASecret) (*models.MFASecret, error)
	GetActiveFunc               func(ctx context.Context, userID string) (*models.MFASecret, error)
	HasActiveFunc               func(ctx context.Context, userID string) (bool, error)
	IncrementFailedAttemptsFunc func(ctx context.Context, secretID string) error
	TouchLastUsedFunc           func(ctx context.Context, secretID string) error
	RevokeAllActiveFunc         func(ctx context.Context, userID string) (int64, error)
}

func (m *MockMFASecretRepository) ActivateSecret(ctx context.Context, secret *models.MFASecret) (*models.MFASecret, error) {
	if m.ActivateSecretFunc != nil {
		return m.ActivateSecretFunc(ctx, secret)
	}
	secret.ID = "mfa-1"
	secret.IsActive = true
	return secret, nil
}

func (m *MockMFASecretRepository) GetActive(ctx context.Context, userID string) (*models.MFASecret, error) {
	if m.GetActiveFunc != nil {
		return m.GetActiveFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockMFASecretRepository) HasActive(ctx context.Context, userID string) (bool, error) {
	if m.HasActiveFunc != nil {
		return m.HasActiveFunc(ctx, userID)
	}
	return false, nil
}

func (m *MockMFASecretRepository) IncrementFailedAttempts(ctx context.Context, secretID string) error {
	if m.IncrementFailedAttemptsFunc != nil {
		return m.IncrementFailedAttemptsFunc(ctx, secretID)
	}
	return nil
}

func (m *MockMFASecretRepository) TouchLastUsed(ctx context.Context, secretID string) error {
	if m.TouchLastUsedFunc != nil {
		return m.TouchLastUsedFunc(ctx, secretID)
	}
	return nil
}

func (m *MockMFASecretRepository) RevokeAllActive(ctx context.Context, userID string) (int64, error) {
	if m.RevokeAllActiveFunc != nil {
		return m.RevokeAllActiveFunc(ctx, userID)
	}
	return 0, nil
}

// MockTrustedDeviceRepository implements TrustedDeviceRepository for testing
type MockTrustedDeviceRepository struct {
	UpsertFunc        func(ctx context.Context, device *models.TrustedDevice) (*models.TrustedDevice, error)
	FindTrustedFunc   func(ctx context.Context, userID, fingerprintHash string) (*models.TrustedDevice, error)
	TouchLastSeenFunc func(ctx context.Context, deviceID string) error
	RevokeByIDFunc    func(ctx context.Context, userID, deviceID string) error
	RevokeAllFunc     func(ctx context.Context, userID string) (int64, error)
	ListByUserFunc    func(ctx context.Context, userID string) ([]*models.TrustedDevice, error)
}

func (m *MockTrustedDeviceRepository) Upsert(ctx context.Context, device *models.TrustedDevice) (*models.TrustedDevice, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, device)
	}
	device.ID = "dev-1"
	device.IsTrusted = true
	return device, nil
}

func (m *MockTrustedDeviceRepository) FindTrusted(ctx context.Context, userID, fingerprintHash string) (*models.TrustedDevice, error) {
	if m.FindTrustedFunc != nil {
		return m.FindTrustedFunc(ctx, userID, fingerprintHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockTrustedDeviceRepository) TouchLastSeen(ctx context.Context, deviceID string) error {
	if m.TouchLastSeenFunc != nil {
		return m.TouchLastSeenFunc(ctx, deviceID)
	}
	return nil
}

func (m *MockTrustedDeviceRepository) RevokeByID(ctx context.Context, userID, deviceID string) error {
	if m.RevokeByIDFunc != nil {
		return m.RevokeByIDFunc(ctx, userID, deviceID)
	}
	return nil
}

func (m *MockTrustedDeviceRepository) RevokeAll(ctx context.Context, userID string) (int64, error) {
	if m.RevokeAllFunc != nil {
		return m.RevokeAllFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockTrustedDeviceRepository) ListByUser(ctx context.Context, userID string) ([]*models.TrustedDevice, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	return []*models.TrustedDevice{}, nil
}

// MockSessionRepository implements SessionRepository for testing
type MockSessionRepository struct {
	UpsertFunc               func(ctx context.Context, session *models.Session) (*models.Session, error)
	GetByTokenHashFunc       func(ctx context.Context, tokenHash string) (*models.Session, error)
	TouchFunc                func(ctx context.Context, tokenHash string) error
	DeactivateFunc           func(ctx context.Context, tokenHash string) error
	DeactivateAllForUserFunc func(ctx context.Context, userID string) (int64, error)
	ListActiveByUserFunc     func(ctx context.Context, userID string) ([]*models.Session, error)
}

func (m *MockSessionRepository) Upsert(ctx context.Context, session *models.Session) (*models.Session, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, session)
	}
	session.ID = "sess-1"
	return session, nil
}

func (m *MockSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	if m.GetByTokenHashFunc != nil {
		return m.GetByTokenHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) Touch(ctx context.Context, tokenHash string) error {
	if m.TouchFunc != nil {
		return m.TouchFunc(ctx, tokenHash)
	}
	return nil
}

func (m *MockSessionRepository) Deactivate(ctx context.Context, tokenHash string) error {
	if m.DeactivateFunc != nil {
		return m.DeactivateFunc(ctx, tokenHash)
	}
	return nil
}

func (m *MockSessionRepository) DeactivateAllForUser(ctx context.Context, userID string) (int64, error) {
	if m.DeactivateAllForUserFunc != nil {
		return m.DeactivateAllForUserFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockSessionRepository) ListActiveByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	if m.ListActiveByUserFunc != nil {
		return m.ListActiveByUserFunc(ctx, userID)
	}
	return []*models.Session{}, nil
}

// MockAuditLogRepository implements AuditLogRepository for testing
type MockAuditLogRepository struct {
	CreateFunc func(ctx context.Context, entry *models.AuditLog) error

	Entries []*models.AuditLog
}

func (m *MockAuditLogRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	m.Entries = append(m.Entries, entry)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, entry)
	}
	return nil
}

// MockAuditRecorder implements AuditRecorder for testing
type MockAuditRecorder struct {
	Entries []*models.AuditLog
}

func (m *MockAuditRecorder) Record(ctx context.Context, entry *models.AuditLog) {
	m.Entries = append(m.Entries, entry)
}

// MockUserCache implements UserCacheStore for testing
type MockUserCache struct {
	users map[string]*models.User

	Invalidated []string
}

func NewMockUserCache() *MockUserCache {
	return &MockUserCache{users: make(map[string]*models.User)}
}

func (m *MockUserCache) Get(userID string) (*models.User, bool) {
	u, ok := m.users[userID]
	return u, ok
}

func (m *MockUserCache) Set(user *models.User) {
	m.users[user.ID] = user
}

func (m *MockUserCache) Invalidate(userID string) {
	m.Invalidated = append(m.Invalidated, userID)
	delete(m.users, userID)
}
