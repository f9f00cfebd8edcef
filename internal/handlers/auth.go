package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/catkeep/authcore/internal/auth"
	"github.com/catkeep/authcore/internal/middleware"
	"github.com/catkeep/authcore/internal/models"
	"github.com/catkeep/authcore/internal/services"
	pkghttp "github.com/catkeep/authcore/pkg/http"
)

// AuthOrchestrator defines the interface for login-flow business logic
type AuthOrchestrator interface {
	Login(ctx context.Context, username, password, deviceToken string, meta models.SessionMeta) (*services.LoginResult, error)
	Logout(ctx context.Context, state services.SessionState, sid string) error
}

// PasswordChanger updates a user's own password.
type PasswordChanger interface {
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

// AuthHandler handles login, logout, and password changes.
type AuthHandler struct {
	service   AuthOrchestrator
	users     PasswordChanger
	tokens    *auth.StateTokenManager
	cookies   auth.CookieConfig
	cookieTTL time.Duration
	ipConfig  *pkghttp.IPConfig
}

func NewAuthHandler(service AuthOrchestrator, users PasswordChanger, tokens *auth.StateTokenManager, cookies auth.CookieConfig, cookieTTL time.Duration, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:   service,
		users:     users,
		tokens:    tokens,
		cookies:   cookies,
		cookieTTL: cookieTTL,
		ipConfig:  ipConfig,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse tells the client which step comes next.
type LoginResponse struct {
	Stage              string `json:"stage"`
	NeedsPasswordReset bool   `json:"needs_password_reset"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// Login handles credential verification and sets the signed state cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	deviceToken := ""
	if cookie, err := r.Cookie(auth.TrustedDeviceCookieName); err == nil {
		deviceToken = cookie.Value
	}

	meta := pkghttp.ExtractSessionMeta(r, h.ipConfig)
	result, err := h.service.Login(r.Context(), req.Username, req.Password, deviceToken, meta)
	if err != nil {
		pkghttp.WriteModelError(w, err)
		return
	}

	if err := h.setStateCookie(w, result.State, result.SID, ""); err != nil {
		pkghttp.WriteInternalError(w, "Failed to establish session")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		Stage:              string(result.State.Stage),
		NeedsPasswordReset: result.State.PendingPasswordReset,
	})
}

// Logout terminates the session and clears both auth cookies. The trusted
// device cookie survives; device trust outlives any one session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	payload := middleware.StatePayloadFromContext(r.Context())

	if err := h.service.Logout(r.Context(), payload.State, payload.SID); err != nil {
		pkghttp.WriteModelError(w, err)
		return
	}

	auth.ClearSessionCookie(w, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// ChangePassword updates the caller's password. All sessions are terminated
// server-side, so the client must log in again.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	payload := middleware.StatePayloadFromContext(r.Context())
	if payload.State.UserID == "" {
		pkghttp.WriteUnauthorized(w, "Log in to continue")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.users.ChangePassword(r.Context(), payload.State.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		pkghttp.WriteModelError(w, err)
		return
	}

	auth.ClearSessionCookie(w, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
}

func (h *AuthHandler) setStateCookie(w http.ResponseWriter, state auth.SessionState, sid, tempSecret string) error {
	token, err := h.tokens.Issue(auth.StatePayload{State: state, SID: sid, TempSecret: tempSecret})
	if err != nil {
		return err
	}
	auth.SetSessionCookie(w, token, h.cookieTTL, h.cookies)
	return nil
}
