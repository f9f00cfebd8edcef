package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/catkeep/authcore/internal/models"
	pkgauth "github.com/catkeep/authcore/pkg/auth"
	pkglogger "github.com/catkeep/authcore/pkg/logger"
)

// UserRepository defines the user persistence interface consumed by services.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	SetLockUntil(ctx context.Context, userID string, until *time.Time) error
	UpdatePassword(ctx context.Context, userID, passwordHash string, expiresAt time.Time) error
	UpdateRole(ctx context.Context, userID string, role models.Role) error
	SetActive(ctx context.Context, userID string, active bool) error
}

// LoginAttemptRepository defines the attempt-history interface consumed by services.
type LoginAttemptRepository interface {
	Record(ctx context.Context, attempt *models.LoginAttempt) error
	CountFailedSince(ctx context.Context, username string, cutoff time.Time) (int, error)
}

// MFAStatusChecker reports whether a user has an active MFA secret.
type MFAStatusChecker interface {
	HasActive(ctx context.Context, userID string) (bool, error)
}

// LockoutPolicy holds the sliding-window lockout parameters.
type LockoutPolicy struct {
	MaxFailedAttempts int
	Window            time.Duration
	Duration          time.Duration
}

// CredentialService verifies username/password pairs and enforces the
// sliding-window account lockout.
type CredentialService struct {
	users    UserRepository
	attempts LoginAttemptRepository
	mfa      MFAStatusChecker
	policy   LockoutPolicy
	logger   *slog.Logger
}

func NewCredentialService(users UserRepository, attempts LoginAttemptRepository, mfa MFAStatusChecker, policy LockoutPolicy, logger *slog.Logger) *CredentialService {
	return &CredentialService{
		users:    users,
		attempts: attempts,
		mfa:      mfa,
		policy:   policy,
		logger:   logger,
	}
}

// Verify checks a credential pair and returns the authentication decision.
// Rejections come back as sentinel errors:
//
//   - ErrInvalidCredentials: unknown username or wrong password
//   - ErrAccountDisabled: account exists but is deactivated
//   - ErrAccountLocked: account is under a temporary lock, or this failure
//     tripped the lockout threshold
//
// Failed attempts against unknown usernames are still recorded, keyed by the
// raw username, so probing contributes to history. Attempts against an
// already-locked account are rejected without being recorded; they would
// otherwise extend the lock indefinitely.
func (s *CredentialService) Verify(ctx context.Context, username, password, ipAddress string) (*models.AuthDecision, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, models.ErrInvalidCredentials
	}

	now := time.Now()

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login failed: unknown username",
				slog.String("username", pkglogger.SanitizedUsername(username)))
			s.recordAttempt(ctx, username, ipAddress, false)
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to load user for login", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !user.IsActive {
		s.logger.Info("login blocked: account disabled", slog.String("user_id", user.ID))
		s.recordAttempt(ctx, username, ipAddress, false)
		return nil, models.ErrAccountDisabled
	}

	if user.Locked(now) {
		s.logger.Info("login blocked: account locked",
			slog.String("user_id", user.ID),
			slog.Time("locked_until", *user.AccountLockedUntil))
		return nil, models.ErrAccountLocked
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.recordAttempt(ctx, username, ipAddress, false)

		if s.lockIfThresholdReached(ctx, user, username, now) {
			return nil, models.ErrAccountLocked
		}
		return nil, models.ErrInvalidCredentials
	}

	s.recordAttempt(ctx, username, ipAddress, true)

	if user.AccountLockedUntil != nil {
		if err := s.users.SetLockUntil(ctx, user.ID, nil); err != nil {
			s.logger.Warn("failed to clear expired account lock",
				slog.String("user_id", user.ID), slog.Any("error", err))
		}
	}

	hasMFA, err := s.mfa.HasActive(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to check MFA status",
			slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &models.AuthDecision{
		User:               user,
		NeedsPasswordReset: pkgauth.NeedsReset(user.LastPasswordChange, user.PasswordExpiresAt, now),
		HasMFA:             hasMFA,
	}, nil
}

// lockIfThresholdReached counts failed attempts inside the trailing window and
// applies the temporary lock when the threshold is met. Reports whether a lock
// was applied.
func (s *CredentialService) lockIfThresholdReached(ctx context.Context, user *models.User, username string, now time.Time) bool {
	cutoff := now.Add(-s.policy.Window)
	count, err := s.attempts.CountFailedSince(ctx, username, cutoff)
	if err != nil {
		s.logger.Error("failed to count login attempts",
			slog.String("user_id", user.ID), slog.Any("error", err))
		return false
	}

	if count < s.policy.MaxFailedAttempts {
		return false
	}

	until := now.Add(s.policy.Duration)
	if err := s.users.SetLockUntil(ctx, user.ID, &until); err != nil {
		s.logger.Error("failed to set account lock",
			slog.String("user_id", user.ID), slog.Any("error", err))
		return false
	}

	s.logger.Warn("account locked after repeated failures",
		slog.String("user_id", user.ID),
		slog.Int("failed_attempts", count),
		slog.Time("locked_until", until))
	return true
}

// recordAttempt persists the attempt. Persistence failures are logged and
// swallowed; attempt history is not worth failing a login over, except that a
// failure here means one fewer strike toward lockout.
func (s *CredentialService) recordAttempt(ctx context.Context, username, ipAddress string, success bool) {
	err := s.attempts.Record(ctx, &models.LoginAttempt{
		Username:    username,
		IPAddress:   ipAddress,
		Success:     success,
		AttemptedAt: time.Now(),
	})
	if err != nil {
		s.logger.Error("failed to record login attempt",
			slog.String("username", pkglogger.SanitizedUsername(username)),
			slog.Any("error", err))
	}
}
