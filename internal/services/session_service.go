package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/catkeep/authcore/internal/auth"
	"github.com/catkeep/authcore/internal/models"
)

// SessionRepository defines the session persistence interface consumed by the
// session service.
type SessionRepository interface {
	Upsert(ctx context.Context, session *models.Session) (*models.Session, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	Touch(ctx context.Context, tokenHash string) error
	Deactivate(ctx context.Context, tokenHash string) error
	DeactivateAllForUser(ctx context.Context, userID string) (int64, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*models.Session, error)
}

// SessionService tracks server-side session rows keyed by the hash of the
// opaque session token. The rows are an audit and revocation surface; the
// signed state cookie remains the source of truth for request authentication.
type SessionService struct {
	sessions SessionRepository
	ttl      time.Duration
	logger   *slog.Logger
}

func NewSessionService(sessions SessionRepository, ttl time.Duration, logger *slog.Logger) *SessionService {
	return &SessionService{
		sessions: sessions,
		ttl:      ttl,
		logger:   logger,
	}
}

// Establish records a session for the token, upserting on the token hash so a
// re-login with the same token refreshes rather than duplicates.
func (s *SessionService) Establish(ctx context.Context, token, userID string, meta models.SessionMeta) (*models.Session, error) {
	session, err := s.sessions.Upsert(ctx, &models.Session{
		TokenHash:              auth.HashToken(token),
		UserID:                 userID,
		IPAddress:              meta.IPAddress,
		DeviceFingerprint:      meta.DeviceFingerprint,
		TLSVersion:             meta.TLSVersion,
		TLSCipherSuite:         meta.TLSCipherSuite,
		CertificateFingerprint: meta.CertificateFingerprint,
		ExpiresAt:              time.Now().Add(s.ttl),
	})
	if err != nil {
		s.logger.Error("failed to establish session",
			slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("session established",
		slog.String("user_id", userID),
		slog.String("session_id", session.ID))
	return session, nil
}

// Touch advances last_activity. Fire-and-forget: failures are logged, never
// surfaced, so activity tracking cannot break request handling.
func (s *SessionService) Touch(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := s.sessions.Touch(ctx, auth.HashToken(token)); err != nil {
		s.logger.Warn("failed to touch session", slog.Any("error", err))
	}
}

// Terminate expires the session row immediately.
func (s *SessionService) Terminate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Deactivate(ctx, auth.HashToken(token)); err != nil {
		s.logger.Error("failed to terminate session", slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// TerminateAllForUser expires every live session of the user, e.g. after a
// password change or account disable.
func (s *SessionService) TerminateAllForUser(ctx context.Context, userID string) error {
	terminated, err := s.sessions.DeactivateAllForUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to terminate user sessions",
			slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("user sessions terminated",
		slog.String("user_id", userID), slog.Int64("count", terminated))
	return nil
}

// ListActive returns the user's live sessions, most recently active first.
func (s *SessionService) ListActive(ctx context.Context, userID string) ([]*models.Session, error) {
	sessions, err := s.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list sessions",
			slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return sessions, nil
}
