package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/catkeep/authcore/internal/middleware"
	"github.com/catkeep/authcore/internal/models"
	"github.com/catkeep/authcore/internal/services"
	pkghttp "github.com/catkeep/authcore/pkg/http"
	"github.com/go-chi/chi/v5"
)

// UserAdministrator defines the interface for account administration
type UserAdministrator interface {
	Create(ctx context.Context, actor *models.User, input services.CreateUserInput) (*models.User, error)
	GetByID(ctx context.Context, userID string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	UpdateRole(ctx context.Context, actor *models.User, targetID string, role models.Role) error
	SetActive(ctx context.Context, actor *models.User, targetID string, active bool) error
}

// UserHandler handles account administration endpoints.
type UserHandler struct {
	service UserAdministrator
}

func NewUserHandler(service UserAdministrator) *UserHandler {
	return &UserHandler{service: service}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	IsActive  bool       `json:"is_active"`
	LockedAt  *time.Time `json:"account_locked_until,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// UpdateRoleRequest represents the request body for a role change
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=caretaker admin superadmin"`
}

// UpdateStatusRequest represents the request body for enable/disable
type UpdateStatusRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		IsActive:  u.IsActive,
		LockedAt:  u.AccountLockedUntil,
		CreatedAt: u.CreatedAt,
	}
}

// actor resolves the calling user from the session state.
func (h *UserHandler) actor(r *http.Request) (*models.User, bool) {
	payload := middleware.StatePayloadFromContext(r.Context())
	if payload.State.UserID == "" {
		return nil, false
	}
	user, err := h.service.GetByID(r.Context(), payload.State.UserID)
	if err != nil {
		return nil, false
	}
	return user, true
}

// Create adds an account. Privilege checks live in the service layer.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Log in to continue")
		return
	}

	var input services.CreateUserInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(input); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.Create(r.Context(), actor, input)
	if err != nil {
		pkghttp.WriteModelError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

// List returns accounts, paginated via limit/offset query params.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Log in to continue")
		return
	}
	if !actor.Role.AtLeast(models.RoleAdmin) {
		pkghttp.WriteForbidden(w, "Insufficient privileges")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	users, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteModelError(w, err)
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Get returns a single account.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Log in to continue")
		return
	}

	targetID := chi.URLParam(r, "id")
	if targetID != actor.ID && !actor.Role.AtLeast(models.RoleAdmin) {
		pkghttp.WriteForbidden(w, "Insufficient privileges")
		return
	}

	user, err := h.service.GetByID(r.Context(), targetID)
	if err != nil {
		pkghttp.WriteModelError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateRole changes a user's role.
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Log in to continue")
		return
	}

	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.UpdateRole(r.Context(), actor, chi.URLParam(r, "id"), models.Role(req.Role)); err != nil {
		pkghttp.WriteModelError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "role_updated"})
}

// UpdateStatus enables or disables an account.
func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Log in to continue")
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.SetActive(r.Context(), actor, chi.URLParam(r, "id"), *req.Active); err != nil {
		pkghttp.WriteModelError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "status_updated"})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			return n
		}
	}
	return defaultVal
}
