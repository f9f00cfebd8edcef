package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/catkeep/authcore/internal/auth"
	"github.com/catkeep/authcore/internal/handlers"
	"github.com/catkeep/authcore/internal/models"
	"github.com/catkeep/authcore/internal/services"
	pkghttp "github.com/catkeep/authcore/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthHandler(service handlers.AuthOrchestrator, users handlers.PasswordChanger, tokens *auth.StateTokenManager) *handlers.AuthHandler {
	return handlers.NewAuthHandler(service, users, tokens, auth.CookieConfig{}, time.Hour, &pkghttp.IPConfig{})
}

// sessionCookie extracts the session-state cookie from a recorded response.
func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", auth.SessionCookieName)
	return nil
}

func TestLogin_PendingMFASetup(t *testing.T) {
	tokens := handlers.NewTestTokenManager()
	mockAuth := &handlers.MockAuthOrchestrator{
		LoginFunc: func(ctx context.Context, username, password, deviceToken string, meta models.SessionMeta) (*services.LoginResult, error) {
			return &services.LoginResult{
				State: auth.SessionState{Stage: auth.StagePendingMFASetup, MFAUserID: "user-1"},
				SID:   "sid-1",
			}, nil
		},
	}

	handler := newAuthHandler(mockAuth, nil, tokens)
	req := handlers.NewTestRequest(t, "POST", "/login", handlers.LoginRequest{
		Username: "mittens_admin",
		Password: "correct horse battery staple",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp handlers.LoginResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, string(auth.StagePendingMFASetup), resp.Stage)

	payload, err := tokens.Parse(sessionCookie(t, w).Value)
	require.NoError(t, err)
	assert.Equal(t, auth.StagePendingMFASetup, payload.State.Stage)
	assert.Equal(t, "user-1", payload.State.MFAUserID)
	assert.Equal(t, "sid-1", payload.SID)
}

func TestLogin_ForwardsTrustedDeviceCookie(t *testing.T) {
	var gotToken string
	mockAuth := &handlers.MockAuthOrchestrator{
		LoginFunc: func(ctx context.Context, username, password, deviceToken string, meta models.SessionMeta) (*services.LoginResult, error) {
			gotToken = deviceToken
			return &services.LoginResult{
				State: auth.SessionState{Stage: auth.StageFullyAuthenticated, UserID: "user-1"},
				SID:   "sid-1",
			}, nil
		},
	}

	handler := newAuthHandler(mockAuth, nil, handlers.NewTestTokenManager())
	req := handlers.NewTestRequest(t, "POST", "/login", handlers.LoginRequest{
		Username: "mittens_admin",
		Password: "correct horse battery staple",
	})
	req.AddCookie(&http.Cookie{Name: auth.TrustedDeviceCookieName, Value: "device-token-abc"})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "device-token-abc", gotToken)
}

func TestLogin_CredentialFailuresIndistinguishable(t *testing.T) {
	// Wrong password, unknown user, and disabled account must produce the
	// exact same response body.
	credentialErrors := []error{
		models.ErrInvalidCredentials,
		models.ErrAccountDisabled,
	}

	var bodies []string
	for _, credErr := range credentialErrors {
		mockAuth := &handlers.MockAuthOrchestrator{
			LoginFunc: func(ctx context.Context, username, password, deviceToken string, meta models.SessionMeta) (*services.LoginResult, error) {
				return nil, credErr
			},
		}

		handler := newAuthHandler(mockAuth, nil, handlers.NewTestTokenManager())
		req := handlers.NewTestRequest(t, "POST", "/login", handlers.LoginRequest{
			Username: "mittens_admin",
			Password: "wrong",
		})

		w := httptest.NewRecorder()
		handler.Login(w, req)

		handlers.AssertErrorResponse(t, w, 401, "unauthorized")
		bodies = append(bodies, w.Body.String())
	}

	assert.Equal(t, bodies[0], bodies[1], "credential failure responses must not reveal the cause")
}

func TestLogin_LockedAccount(t *testing.T) {
	mockAuth := &handlers.MockAuthOrchestrator{
		LoginFunc: func(ctx context.Context, username, password, deviceToken string, meta models.SessionMeta) (*services.LoginResult, error) {
			return nil, models.ErrAccountLocked
		},
	}

	handler := newAuthHandler(mockAuth, nil, handlers.NewTestTokenManager())
	req := handlers.NewTestRequest(t, "POST", "/login", handlers.LoginRequest{
		Username: "mittens_admin",
		Password: "wrong",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 429, "account_locked")
}

func TestLogin_MissingFields(t *testing.T) {
	handler := newAuthHandler(&handlers.MockAuthOrchestrator{}, nil, handlers.NewTestTokenManager())
	req := handlers.NewTestRequest(t, "POST", "/login", handlers.LoginRequest{Username: "mittens_admin"})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestLogout_ClearsSessionCookieOnly(t *testing.T) {
	var gotSID string
	mockAuth := &handlers.MockAuthOrchestrator{
		LogoutFunc: func(ctx context.Context, state services.SessionState, sid string) error {
			gotSID = sid
			return nil
		},
	}

	handler := newAuthHandler(mockAuth, nil, handlers.NewTestTokenManager())
	req := handlers.NewTestRequest(t, "POST", "/logout", nil)
	req = handlers.WithState(req, handlers.AuthenticatedState("user-1"))

	w := httptest.NewRecorder()
	handler.Logout(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "sid-user-1", gotSID)

	cookie := sessionCookie(t, w)
	assert.Less(t, cookie.MaxAge, 0, "session cookie should be cleared")
	for _, c := range w.Result().Cookies() {
		assert.NotEqual(t, auth.TrustedDeviceCookieName, c.Name, "device trust must survive logout")
	}
}

func TestChangePassword_Success(t *testing.T) {
	var gotUserID, gotNew string
	users := &handlers.MockPasswordChanger{
		ChangePasswordFunc: func(ctx context.Context, userID, currentPassword, newPassword string) error {
			gotUserID = userID
			gotNew = newPassword
			return nil
		},
	}

	handler := newAuthHandler(&handlers.MockAuthOrchestrator{}, users, handlers.NewTestTokenManager())
	req := handlers.NewTestRequest(t, "PUT", "/account/password", handlers.ChangePasswordRequest{
		CurrentPassword: "old-Password-123!",
		NewPassword:     "new-Password-456!",
	})
	req = handlers.WithState(req, handlers.AuthenticatedState("user-1"))

	w := httptest.NewRecorder()
	handler.ChangePassword(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "user-1", gotUserID)
	assert.Equal(t, "new-Password-456!", gotNew)

	// Sessions are terminated server-side; the cookie goes too.
	cookie := sessionCookie(t, w)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	users := &handlers.MockPasswordChanger{
		ChangePasswordFunc: func(ctx context.Context, userID, currentPassword, newPassword string) error {
			return models.ErrInvalidCredentials
		},
	}

	handler := newAuthHandler(&handlers.MockAuthOrchestrator{}, users, handlers.NewTestTokenManager())
	req := handlers.NewTestRequest(t, "PUT", "/account/password", handlers.ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "new-Password-456!",
	})
	req = handlers.WithState(req, handlers.AuthenticatedState("user-1"))

	w := httptest.NewRecorder()
	handler.ChangePassword(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestChangePassword_RequiresAuthentication(t *testing.T) {
	handler := newAuthHandler(&handlers.MockAuthOrchestrator{}, &handlers.MockPasswordChanger{}, handlers.NewTestTokenManager())
	req := handlers.NewTestRequest(t, "PUT", "/account/password", handlers.ChangePasswordRequest{
		CurrentPassword: "old",
		NewPassword:     "new-Password-456!",
	})

	w := httptest.NewRecorder()
	handler.ChangePassword(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")

	var resp pkghttp.ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, "Log in to continue", resp.Message)
}
