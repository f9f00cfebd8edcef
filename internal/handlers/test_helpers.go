package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/catkeep/authcore/internal/auth"
	"github.com/catkeep/authcore/internal/middleware"
	"github.com/catkeep/authcore/internal/models"
	"github.com/catkeep/authcore/internal/services"
	pkghttp "github.com/catkeep/authcore/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithState injects a session state payload into the request context, standing
// in for the SessionState middleware.
func WithState(req *http.Request, payload auth.StatePayload) *http.Request {
	return req.WithContext(middleware.ContextWithStatePayload(req.Context(), payload))
}

// AuthenticatedState is a fully authenticated payload for the given user.
func AuthenticatedState(userID string) auth.StatePayload {
	return auth.StatePayload{
		State: auth.SessionState{Stage: auth.StageFullyAuthenticated, UserID: userID},
		SID:   "sid-" + userID,
	}
}

// WithChiRouteContext adds chi URL parameters to the request context.
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// NewTestTokenManager builds a state token manager with a throwaway secret.
func NewTestTokenManager() *auth.StateTokenManager {
	return auth.NewStateTokenManager("test-secret", time.Hour)
}

// MockAuthOrchestrator implements AuthOrchestrator for testing
type MockAuthOrchestrator struct {
	LoginFunc  func(ctx context.Context, username, password, deviceToken string, meta models.SessionMeta) (*services.LoginResult, error)
	LogoutFunc func(ctx context.Context, state services.SessionState, sid string) error
}

func (m *MockAuthOrchestrator) Login(ctx context.Context, username, password, deviceToken string, meta models.SessionMeta) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, username, password, deviceToken, meta)
}

func (m *MockAuthOrchestrator) Logout(ctx context.Context, state services.SessionState, sid string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, state, sid)
}

// MockPasswordChanger implements PasswordChanger for testing
type MockPasswordChanger struct {
	ChangePasswordFunc func(ctx context.Context, userID, currentPassword, newPassword string) error
}

func (m *MockPasswordChanger) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if m.ChangePasswordFunc == nil {
		return nil
	}
	return m.ChangePasswordFunc(ctx, userID, currentPassword, newPassword)
}

// MockMFAOrchestrator implements MFAOrchestrator for testing
type MockMFAOrchestrator struct {
	BeginMFAEnrollmentFunc    func(ctx context.Context, userID string) (*models.ProvisionedSecret, error)
	CompleteMFAEnrollmentFunc func(ctx context.Context, state services.SessionState, sid, secret, code string, meta models.SessionMeta) (*services.LoginResult, error)
	VerifyMFAChallengeFunc    func(ctx context.Context, state services.SessionState, sid, code string, rememberDevice bool, deviceName string, meta models.SessionMeta) (*services.LoginResult, string, error)
	DisableMFAFunc            func(ctx context.Context, userID string) error
}

func (m *MockMFAOrchestrator) BeginMFAEnrollment(ctx context.Context, userID string) (*models.ProvisionedSecret, error) {
	if m.BeginMFAEnrollmentFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.BeginMFAEnrollmentFunc(ctx, userID)
}

func (m *MockMFAOrchestrator) CompleteMFAEnrollment(ctx context.Context, state services.SessionState, sid, secret, code string, meta models.SessionMeta) (*services.LoginResult, error) {
	if m.CompleteMFAEnrollmentFunc == nil {
		return nil, models.ErrMFAInvalidCode
	}
	return m.CompleteMFAEnrollmentFunc(ctx, state, sid, secret, code, meta)
}

func (m *MockMFAOrchestrator) VerifyMFAChallenge(ctx context.Context, state services.SessionState, sid, code string, rememberDevice bool, deviceName string, meta models.SessionMeta) (*services.LoginResult, string, error) {
	if m.VerifyMFAChallengeFunc == nil {
		return nil, "", models.ErrMFAInvalidCode
	}
	return m.VerifyMFAChallengeFunc(ctx, state, sid, code, rememberDevice, deviceName, meta)
}

func (m *MockMFAOrchestrator) DisableMFA(ctx context.Context, userID string) error {
	if m.DisableMFAFunc == nil {
		return nil
	}
	return m.DisableMFAFunc(ctx, userID)
}

// MockDeviceRegistry implements DeviceRegistry for testing
type MockDeviceRegistry struct {
	ListFunc      func(ctx context.Context, userID string) ([]*models.TrustedDevice, error)
	RevokeFunc    func(ctx context.Context, userID, deviceID string) error
	RevokeAllFunc func(ctx context.Context, userID string) error
}

func (m *MockDeviceRegistry) List(ctx context.Context, userID string) ([]*models.TrustedDevice, error) {
	if m.ListFunc == nil {
		return []*models.TrustedDevice{}, nil
	}
	return m.ListFunc(ctx, userID)
}

func (m *MockDeviceRegistry) Revoke(ctx context.Context, userID, deviceID string) error {
	if m.RevokeFunc == nil {
		return nil
	}
	return m.RevokeFunc(ctx, userID, deviceID)
}

func (m *MockDeviceRegistry) RevokeAll(ctx context.Context, userID string) error {
	if m.RevokeAllFunc == nil {
		return nil
	}
	return m.RevokeAllFunc(ctx, userID)
}

// MockUserAdministrator implements UserAdministrator for testing
type MockUserAdministrator struct {
	CreateFunc     func(ctx context.Context, actor *models.User, input services.CreateUserInput) (*models.User, error)
	GetByIDFunc    func(ctx context.Context, userID string) (*models.User, error)
	ListFunc       func(ctx context.Context, limit, offset int) ([]*models.User, error)
	UpdateRoleFunc func(ctx context.Context, actor *models.User, targetID string, role models.Role) error
	SetActiveFunc  func(ctx context.Context, actor *models.User, targetID string, active bool) error
}

func (m *MockUserAdministrator) Create(ctx context.Context, actor *models.User, input services.CreateUserInput) (*models.User, error) {
	if m.CreateFunc == nil {
		return nil, models.ErrConflict
	}
	return m.CreateFunc(ctx, actor, input)
}

func (m *MockUserAdministrator) GetByID(ctx context.Context, userID string) (*models.User, error) {
	if m.GetByIDFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetByIDFunc(ctx, userID)
}

func (m *MockUserAdministrator) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc == nil {
		return []*models.User{}, nil
	}
	return m.ListFunc(ctx, limit, offset)
}

func (m *MockUserAdministrator) UpdateRole(ctx context.Context, actor *models.User, targetID string, role models.Role) error {
	if m.UpdateRoleFunc == nil {
		return nil
	}
	return m.UpdateRoleFunc(ctx, actor, targetID, role)
}

func (m *MockUserAdministrator) SetActive(ctx context.Context, actor *models.User, targetID string, active bool) error {
	if m.SetActiveFunc == nil {
		return nil
	}
	return m.SetActiveFunc(ctx, actor, targetID, active)
}
