package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/catkeep/authcore/internal/auth"
	"github.com/catkeep/authcore/internal/middleware"
	"github.com/catkeep/authcore/internal/models"
	"github.com/catkeep/authcore/internal/services"
	pkghttp "github.com/catkeep/authcore/pkg/http"
	qrcode "github.com/skip2/go-qrcode"
)

const qrSizePixels = 256

// MFAOrchestrator defines the interface for MFA-flow business logic
type MFAOrchestrator interface {
	BeginMFAEnrollment(ctx context.Context, userID string) (*models.ProvisionedSecret, error)
	CompleteMFAEnrollment(ctx context.Context, state services.SessionState, sid, secret, code string, meta models.SessionMeta) (*services.LoginResult, error)
	VerifyMFAChallenge(ctx context.Context, state services.SessionState, sid, code string, rememberDevice bool, deviceName string, meta models.SessionMeta) (*services.LoginResult, string, error)
	DisableMFA(ctx context.Context, userID string) error
}

// MFAHandler handles enrollment, the login challenge, and disabling MFA.
type MFAHandler struct {
	service       MFAOrchestrator
	tokens        *auth.StateTokenManager
	cookies       auth.CookieConfig
	cookieTTL     time.Duration
	trustDuration time.Duration
	ipConfig      *pkghttp.IPConfig
}

func NewMFAHandler(service MFAOrchestrator, tokens *auth.StateTokenManager, cookies auth.CookieConfig, cookieTTL, trustDuration time.Duration, ipConfig *pkghttp.IPConfig) *MFAHandler {
	return &MFAHandler{
		service:       service,
		tokens:        tokens,
		cookies:       cookies,
		cookieTTL:     cookieTTL,
		trustDuration: trustDuration,
		ipConfig:      ipConfig,
	}
}

// SetupResponse carries everything the client needs to show the enrollment
// screen. The secret is included for manual entry alongside the QR image.
type SetupResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
	QRCode          string `json:"qr_code"` // data URL, PNG
}

// VerifyCodeRequest represents the request body for code verification
type VerifyCodeRequest struct {
	Code           string `json:"code" validate:"required,len=6,numeric"`
	RememberDevice bool   `json:"remember_device"`
	DeviceName     string `json:"device_name" validate:"max=255"`
}

// Setup provisions a fresh secret and stashes it, unactivated, in the signed
// state cookie until the first valid code confirms the authenticator.
func (h *MFAHandler) Setup(w http.ResponseWriter, r *http.Request) {
	payload := middleware.StatePayloadFromContext(r.Context())

	userID := payload.State.MFAUserID
	if userID == "" {
		userID = payload.State.UserID
	}
	if userID == "" {
		pkghttp.WriteUnauthorized(w, "Log in to continue")
		return
	}

	provisioned, err := h.service.BeginMFAEnrollment(r.Context(), userID)
	if err != nil {
		pkghttp.WriteModelError(w, err)
		return
	}

	png, err := qrcode.Encode(provisioned.ProvisioningURI, qrcode.Medium, qrSizePixels)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to render QR code")
		return
	}

	if err := h.setStateCookie(w, payload.State, payload.SID, provisioned.Secret); err != nil {
		pkghttp.WriteInternalError(w, "Failed to update session")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, SetupResponse{
		Secret:          provisioned.Secret,
		ProvisioningURI: provisioned.ProvisioningURI,
		QRCode:          "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}

// SetupVerify activates the provisional secret carried in the state cookie.
func (h *MFAHandler) SetupVerify(w http.ResponseWriter, r *http.Request) {
	payload := middleware.StatePayloadFromContext(r.Context())
	if payload.TempSecret == "" {
		pkghttp.WriteBadRequest(w, "No enrollment in progress")
		return
	}

	var req VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	meta := pkghttp.ExtractSessionMeta(r, h.ipConfig)
	result, err := h.service.CompleteMFAEnrollment(r.Context(), payload.State, payload.SID, payload.TempSecret, req.Code, meta)
	if err != nil {
		pkghttp.WriteModelError(w, err)
		return
	}

	if err := h.setStateCookie(w, result.State, result.SID, ""); err != nil {
		pkghttp.WriteInternalError(w, "Failed to update session")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"stage": string(result.State.Stage)})
}

// Verify handles the login-time challenge. With remember_device set, the
// response also plants the trusted device cookie.
func (h *MFAHandler) Verify(w http.ResponseWriter, r *http.Request) {
	payload := middleware.StatePayloadFromContext(r.Context())

	var req VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	meta := pkghttp.ExtractSessionMeta(r, h.ipConfig)
	result, deviceToken, err := h.service.VerifyMFAChallenge(r.Context(), payload.State, payload.SID, req.Code, req.RememberDevice, req.DeviceName, meta)
	if err != nil {
		pkghttp.WriteModelError(w, err)
		return
	}

	if err := h.setStateCookie(w, result.State, result.SID, ""); err != nil {
		pkghttp.WriteInternalError(w, "Failed to update session")
		return
	}
	if deviceToken != "" {
		auth.SetTrustedDeviceCookie(w, deviceToken, h.trustDuration, h.cookies)
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"stage": string(result.State.Stage)})
}

// Disable turns MFA off for the caller and clears the device cookie. The
// next login will demand re-enrollment.
func (h *MFAHandler) Disable(w http.ResponseWriter, r *http.Request) {
	payload := middleware.StatePayloadFromContext(r.Context())
	if payload.State.UserID == "" {
		pkghttp.WriteUnauthorized(w, "Log in to continue")
		return
	}

	if err := h.service.DisableMFA(r.Context(), payload.State.UserID); err != nil {
		pkghttp.WriteModelError(w, err)
		return
	}

	auth.ClearTrustedDeviceCookie(w, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "mfa_disabled"})
}

func (h *MFAHandler) setStateCookie(w http.ResponseWriter, state auth.SessionState, sid, tempSecret string) error {
	token, err := h.tokens.Issue(auth.StatePayload{State: state, SID: sid, TempSecret: tempSecret})
	if err != nil {
		return err
	}
	auth.SetSessionCookie(w, token, h.cookieTTL, h.cookies)
	return nil
}
