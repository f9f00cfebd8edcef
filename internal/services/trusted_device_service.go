package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/catkeep/authcore/internal/auth"
	"github.com/catkeep/authcore/internal/models"
)

// TrustedDeviceRepository defines the device-registry interface consumed by
// the trusted device service.
type TrustedDeviceRepository interface {
	Upsert(ctx context.Context, device *models.TrustedDevice) (*models.TrustedDevice, error)
	FindTrusted(ctx context.Context, userID, fingerprintHash string) (*models.TrustedDevice, error)
	TouchLastSeen(ctx context.Context, deviceID string) error
	RevokeByID(ctx context.Context, userID, deviceID string) error
	RevokeAll(ctx context.Context, userID string) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]*models.TrustedDevice, error)
}

// TrustedDeviceService manages the registry of devices allowed to skip the
// MFA challenge. Devices are identified by the SHA-256 hash of an opaque
// token; the token itself lives only in the client cookie.
type TrustedDeviceService struct {
	devices       TrustedDeviceRepository
	trustDuration time.Duration
	logger        *slog.Logger
}

func NewTrustedDeviceService(devices TrustedDeviceRepository, trustDuration time.Duration, logger *slog.Logger) *TrustedDeviceService {
	return &TrustedDeviceService{
		devices:       devices,
		trustDuration: trustDuration,
		logger:        logger,
	}
}

// Trust registers the device token for the user and returns the stored row.
// Re-trusting a known fingerprint refreshes its expiry and clears a prior
// revocation.
func (s *TrustedDeviceService) Trust(ctx context.Context, userID, deviceToken, deviceName string) (*models.TrustedDevice, error) {
	if deviceToken == "" {
		return nil, models.ErrBadRequest
	}

	device, err := s.devices.Upsert(ctx, &models.TrustedDevice{
		UserID:          userID,
		FingerprintHash: auth.HashToken(deviceToken),
		DeviceName:      deviceName,
		TrustExpiresAt:  time.Now().Add(s.trustDuration),
	})
	if err != nil {
		s.logger.Error("failed to register trusted device",
			slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("device trusted",
		slog.String("user_id", userID),
		slog.String("device_id", device.ID),
		slog.Time("trust_expires_at", device.TrustExpiresAt))
	return device, nil
}

// IsTrusted reports whether the presented device token is currently trusted
// for the user. An empty token, unknown fingerprint, revoked row, or expired
// trust all come back false without error.
func (s *TrustedDeviceService) IsTrusted(ctx context.Context, userID, deviceToken string) (bool, error) {
	if deviceToken == "" {
		return false, nil
	}

	device, err := s.devices.FindTrusted(ctx, userID, auth.HashToken(deviceToken))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		s.logger.Error("failed to look up trusted device",
			slog.String("user_id", userID), slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	if err := s.devices.TouchLastSeen(ctx, device.ID); err != nil {
		s.logger.Warn("failed to touch trusted device",
			slog.String("device_id", device.ID), slog.Any("error", err))
	}
	return true, nil
}

// Revoke drops trust for one device.
func (s *TrustedDeviceService) Revoke(ctx context.Context, userID, deviceID string) error {
	if err := s.devices.RevokeByID(ctx, userID, deviceID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to revoke trusted device",
			slog.String("device_id", deviceID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("device trust revoked",
		slog.String("user_id", userID), slog.String("device_id", deviceID))
	return nil
}

// RevokeAll drops trust for every device of the user. Called when MFA is
// disabled or reset; trust derived from a dead secret must not survive it.
func (s *TrustedDeviceService) RevokeAll(ctx context.Context, userID string) error {
	revoked, err := s.devices.RevokeAll(ctx, userID)
	if err != nil {
		s.logger.Error("failed to revoke trusted devices",
			slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("all device trust revoked",
		slog.String("user_id", userID), slog.Int64("devices_revoked", revoked))
	return nil
}

// List returns the user's device registry, newest activity first.
func (s *TrustedDeviceService) List(ctx context.Context, userID string) ([]*models.TrustedDevice, error) {
	devices, err := s.devices.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list trusted devices",
			slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return devices, nil
}
