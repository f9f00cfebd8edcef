package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/catkeep/authcore/internal/auth"
	"github.com/catkeep/authcore/internal/models"
)

// MFASecretRepository defines the secret persistence interface consumed by the
// MFA service.
type MFASecretRepository interface {
	ActivateSecret(ctx context.Context, secret *models.MFASecret) (*models.MFASecret, error)
	GetActive(ctx context.Context, userID string) (*models.MFASecret, error)
	HasActive(ctx context.Context, userID string) (bool, error)
	IncrementFailedAttempts(ctx context.Context, secretID string) error
	TouchLastUsed(ctx context.Context, secretID string) error
	RevokeAllActive(ctx context.Context, userID string) (int64, error)
}

// MFAService manages the TOTP secret lifecycle: provisioning, activation,
// verification, and revocation. Secrets are encrypted at rest when a vault key
// is configured.
type MFAService struct {
	secrets MFASecretRepository
	totp    *auth.TOTPCodec
	vault   auth.SecretCodec
	logger  *slog.Logger
}

func NewMFAService(secrets MFASecretRepository, totp *auth.TOTPCodec, vault auth.SecretCodec, logger *slog.Logger) *MFAService {
	return &MFAService{
		secrets: secrets,
		totp:    totp,
		vault:   vault,
		logger:  logger,
	}
}

// GenerateSecret provisions a fresh TOTP secret for enrollment. Nothing is
// persisted; the secret stays provisional until Activate sees a valid code.
func (s *MFAService) GenerateSecret(ctx context.Context, accountName string) (*models.ProvisionedSecret, error) {
	secret, uri, err := s.totp.GenerateSecret(accountName)
	if err != nil {
		s.logger.Error("failed to generate TOTP secret", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &models.ProvisionedSecret{
		Secret:          secret,
		ProvisioningURI: uri,
	}, nil
}

// Activate confirms a provisional secret with its first code and persists it
// as the user's active secret, replacing any previous one. Activation uses the
// tight verification window; the clock skew allowance only widens after the
// authenticator is proven to be in sync.
func (s *MFAService) Activate(ctx context.Context, userID, secret, code string) (*models.MFASecret, error) {
	secret = auth.NormalizeSecret(secret)

	ok, err := s.totp.VerifyCode(secret, code, auth.ActivationWindow, time.Now())
	if err != nil {
		s.logger.Error("TOTP verification failed during activation",
			slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !ok {
		s.logger.Info("MFA activation rejected: invalid code", slog.String("user_id", userID))
		return nil, models.ErrMFAInvalidCode
	}

	value, iv, err := s.vault.Encrypt(secret)
	if err != nil {
		s.logger.Error("failed to encrypt MFA secret",
			slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	stored, err := s.secrets.ActivateSecret(ctx, &models.MFASecret{
		UserID:         userID,
		EncryptedValue: value,
		IV:             iv,
	})
	if err != nil {
		s.logger.Error("failed to store MFA secret",
			slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("MFA activated",
		slog.String("user_id", userID),
		slog.Bool("encrypted_at_rest", stored.Encrypted()))
	return stored, nil
}

// Verify checks a login-time code against the user's active secret with the
// wide window. A wrong code returns (false, nil) and bumps the secret's
// failure counter; errors are reserved for missing configuration and
// infrastructure faults.
func (s *MFAService) Verify(ctx context.Context, userID, code string) (bool, error) {
	if !auth.ValidCodeShape(code) {
		return false, nil
	}

	record, err := s.secrets.GetActive(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, models.ErrMFANotConfigured
		}
		s.logger.Error("failed to load MFA secret",
			slog.String("user_id", userID), slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	secret, err := s.vault.Decrypt(record.EncryptedValue, record.IV)
	if err != nil {
		s.logger.Error("failed to decrypt MFA secret",
			slog.String("user_id", userID), slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	ok, err := s.totp.VerifyCode(secret, code, auth.LoginWindow, time.Now())
	if err != nil {
		s.logger.Error("TOTP verification failed",
			slog.String("user_id", userID), slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	if !ok {
		if err := s.secrets.IncrementFailedAttempts(ctx, record.ID); err != nil {
			s.logger.Warn("failed to increment MFA failure counter",
				slog.String("user_id", userID), slog.Any("error", err))
		}
		return false, nil
	}

	if err := s.secrets.TouchLastUsed(ctx, record.ID); err != nil {
		s.logger.Warn("failed to touch MFA secret",
			slog.String("user_id", userID), slog.Any("error", err))
	}
	return true, nil
}

// HasActive reports whether the user has MFA enabled.
func (s *MFAService) HasActive(ctx context.Context, userID string) (bool, error) {
	return s.secrets.HasActive(ctx, userID)
}

// Disable revokes all active secrets for the user.
func (s *MFAService) Disable(ctx context.Context, userID string) error {
	revoked, err := s.secrets.RevokeAllActive(ctx, userID)
	if err != nil {
		s.logger.Error("failed to revoke MFA secrets",
			slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("MFA disabled",
		slog.String("user_id", userID),
		slog.Int64("secrets_revoked", revoked))
	return nil
}
