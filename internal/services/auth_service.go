package services

import (
	"context"
	"log/slog"

	"github.com/catkeep/authcore/internal/auth"
	"github.com/catkeep/authcore/internal/models"
	pkglogger "github.com/catkeep/authcore/pkg/logger"
)

// CredentialVerifier checks a username/password pair.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password, ipAddress string) (*models.AuthDecision, error)
}

// MFAManager is the slice of the MFA service the orchestrator drives.
type MFAManager interface {
	GenerateSecret(ctx context.Context, accountName string) (*models.ProvisionedSecret, error)
	Activate(ctx context.Context, userID, secret, code string) (*models.MFASecret, error)
	Verify(ctx context.Context, userID, code string) (bool, error)
	Disable(ctx context.Context, userID string) error
}

// DeviceTrustManager is the slice of the trusted-device service the
// orchestrator drives.
type DeviceTrustManager interface {
	Trust(ctx context.Context, userID, deviceToken, deviceName string) (*models.TrustedDevice, error)
	IsTrusted(ctx context.Context, userID, deviceToken string) (bool, error)
	RevokeAll(ctx context.Context, userID string) error
}

// SessionTracker is the slice of the session service the orchestrator drives.
type SessionTracker interface {
	Establish(ctx context.Context, token, userID string, meta models.SessionMeta) (*models.Session, error)
	Terminate(ctx context.Context, token string) error
}

// AuditRecorder records security events.
type AuditRecorder interface {
	Record(ctx context.Context, entry *models.AuditLog)
}

// UserLookup resolves user IDs to rows; the orchestrator needs the username
// for TOTP provisioning labels.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// LoginResult is the outcome of a successful credential check: the next
// session state and the opaque session token the caller should carry forward.
type LoginResult struct {
	State SessionState
	SID   string
	User  *models.User
}

// SessionState re-exports the tagged state so handlers and tests don't import
// the auth package for the type alone.
type SessionState = auth.SessionState

// AuthService orchestrates the login flow across credential verification, the
// MFA lifecycle, device trust, and session tracking. It owns the state
// machine; the underlying services stay single-purpose.
type AuthService struct {
	creds    CredentialVerifier
	mfa      MFAManager
	devices  DeviceTrustManager
	sessions SessionTracker
	users    UserLookup
	audit    AuditRecorder
	logger   *slog.Logger
}

func NewAuthService(creds CredentialVerifier, mfa MFAManager, devices DeviceTrustManager, sessions SessionTracker, users UserLookup, audit AuditRecorder, logger *slog.Logger) *AuthService {
	return &AuthService{
		creds:    creds,
		mfa:      mfa,
		devices:  devices,
		sessions: sessions,
		users:    users,
		audit:    audit,
		logger:   logger,
	}
}

// Login verifies credentials and computes the next session state:
//
//   - no MFA enrolled: PendingMFASetup (enrollment is mandatory)
//   - MFA enrolled, trusted device presented: FullyAuthenticated
//   - MFA enrolled otherwise: PendingMFAVerify
//
// A session row is established on the setup and fully-authenticated paths; a
// user parked in mandatory enrollment must still be trackable and
// terminatable. On the verify path the SID exists solely inside the signed
// state cookie until the challenge passes.
func (s *AuthService) Login(ctx context.Context, username, password, deviceToken string, meta models.SessionMeta) (*LoginResult, error) {
	decision, err := s.creds.Verify(ctx, username, password, meta.IPAddress)
	if err != nil {
		s.audit.Record(ctx, &models.AuditLog{
			Operation: "login",
			EventType: models.AuditEventLogin,
			Success:   false,
			Extra: map[string]string{
				"username": pkglogger.SanitizedUsername(username),
				"reason":   err.Error(),
			},
		})
		return nil, err
	}

	user := decision.User
	sid := auth.NewSessionToken()
	state := auth.SessionState{PendingPasswordReset: decision.NeedsPasswordReset}

	switch {
	case !decision.HasMFA:
		state.Stage = auth.StagePendingMFASetup
		state.MFAUserID = user.ID
		if _, err := s.sessions.Establish(ctx, sid, user.ID, meta); err != nil {
			return nil, err
		}

	default:
		trusted, err := s.devices.IsTrusted(ctx, user.ID, deviceToken)
		if err != nil {
			return nil, err
		}
		if trusted {
			state.Stage = auth.StageFullyAuthenticated
			state.UserID = user.ID
			if _, err := s.sessions.Establish(ctx, sid, user.ID, meta); err != nil {
				return nil, err
			}
		} else {
			state.Stage = auth.StagePendingMFAVerify
			state.MFAUserID = user.ID
		}
	}

	s.audit.Record(ctx, &models.AuditLog{
		UserID:    &user.ID,
		Operation: "login",
		EventType: models.AuditEventLogin,
		Success:   true,
		Extra: map[string]string{
			"stage":          string(state.Stage),
			"trusted_device": boolString(state.Stage == auth.StageFullyAuthenticated && decision.HasMFA),
		},
	})

	return &LoginResult{State: state, SID: sid, User: user}, nil
}

// BeginMFAEnrollment provisions a fresh secret for the user. The caller must
// carry the returned secret to CompleteMFAEnrollment; nothing is persisted
// until the first valid code is seen.
func (s *AuthService) BeginMFAEnrollment(ctx context.Context, userID string) (*models.ProvisionedSecret, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.mfa.GenerateSecret(ctx, user.Username)
}

// CompleteMFAEnrollment activates the provisional secret and promotes the
// session to FullyAuthenticated. A fully authenticated caller re-enrolling a
// replacement secret goes through the same path. Any previously trusted
// devices are revoked: trust earned against a replaced secret does not carry
// over.
func (s *AuthService) CompleteMFAEnrollment(ctx context.Context, state SessionState, sid, secret, code string, meta models.SessionMeta) (*LoginResult, error) {
	userID := state.MFAUserID
	if userID == "" {
		userID = state.UserID
	}
	if userID == "" {
		return nil, models.ErrForbidden
	}

	if _, err := s.mfa.Activate(ctx, userID, secret, code); err != nil {
		s.audit.Record(ctx, &models.AuditLog{
			UserID:    &userID,
			Operation: "mfa_enroll",
			EventType: models.AuditEventMFAEnable,
			Success:   false,
		})
		return nil, err
	}

	if err := s.devices.RevokeAll(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke devices after MFA enrollment",
			slog.String("user_id", userID), slog.Any("error", err))
	}

	next := auth.SessionState{
		Stage:                auth.StageFullyAuthenticated,
		UserID:               userID,
		PendingPasswordReset: state.PendingPasswordReset,
	}
	if _, err := s.sessions.Establish(ctx, sid, userID, meta); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &models.AuditLog{
		UserID:    &userID,
		Operation: "mfa_enroll",
		EventType: models.AuditEventMFAEnable,
		Success:   true,
	})

	return &LoginResult{State: next, SID: sid}, nil
}

// VerifyMFAChallenge checks the login-time code. On success the session is
// promoted and, if requested, the device is trusted; the returned device token
// must go back to the client as a cookie.
func (s *AuthService) VerifyMFAChallenge(ctx context.Context, state SessionState, sid, code string, rememberDevice bool, deviceName string, meta models.SessionMeta) (*LoginResult, string, error) {
	userID := state.MFAUserID
	if userID == "" {
		return nil, "", models.ErrForbidden
	}

	ok, err := s.mfa.Verify(ctx, userID, code)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		s.audit.Record(ctx, &models.AuditLog{
			UserID:    &userID,
			Operation: "mfa_verify",
			EventType: models.AuditEventMFAVerify,
			Success:   false,
		})
		return nil, "", models.ErrMFAInvalidCode
	}

	next := auth.SessionState{
		Stage:                auth.StageFullyAuthenticated,
		UserID:               userID,
		PendingPasswordReset: state.PendingPasswordReset,
	}
	if _, err := s.sessions.Establish(ctx, sid, userID, meta); err != nil {
		return nil, "", err
	}

	var deviceToken string
	if rememberDevice {
		deviceToken = auth.NewDeviceToken()
		if _, err := s.devices.Trust(ctx, userID, deviceToken, deviceName); err != nil {
			s.logger.Warn("failed to trust device after MFA verification",
				slog.String("user_id", userID), slog.Any("error", err))
			deviceToken = ""
		}
	}

	s.audit.Record(ctx, &models.AuditLog{
		UserID:    &userID,
		Operation: "mfa_verify",
		EventType: models.AuditEventMFAVerify,
		Success:   true,
		Extra:     map[string]string{"device_trusted": boolString(deviceToken != "")},
	})

	return &LoginResult{State: next, SID: sid}, deviceToken, nil
}

// DisableMFA revokes the user's secrets and all trusted devices. The next
// login lands in PendingMFASetup.
func (s *AuthService) DisableMFA(ctx context.Context, userID string) error {
	if err := s.mfa.Disable(ctx, userID); err != nil {
		return err
	}
	if err := s.devices.RevokeAll(ctx, userID); err != nil {
		return err
	}

	s.audit.Record(ctx, &models.AuditLog{
		UserID:    &userID,
		Operation: "mfa_disable",
		EventType: models.AuditEventMFADisable,
		Success:   true,
	})
	return nil
}

// Logout terminates the session row and resets the state to anonymous. Safe
// to call from any stage.
func (s *AuthService) Logout(ctx context.Context, state SessionState, sid string) error {
	if err := s.sessions.Terminate(ctx, sid); err != nil {
		return err
	}

	if state.UserID != "" {
		s.audit.Record(ctx, &models.AuditLog{
			UserID:    &state.UserID,
			Operation: "logout",
			EventType: models.AuditEventLogout,
			Success:   true,
		})
	}
	return nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
