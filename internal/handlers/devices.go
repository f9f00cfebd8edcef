package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/catkeep/authcore/internal/middleware"
	"github.com/catkeep/authcore/internal/models"
	pkghttp "github.com/catkeep/authcore/pkg/http"
	"github.com/go-chi/chi/v5"
)

// DeviceRegistry defines the interface for trusted device management
type DeviceRegistry interface {
	List(ctx context.Context, userID string) ([]*models.TrustedDevice, error)
	Revoke(ctx context.Context, userID, deviceID string) error
	RevokeAll(ctx context.Context, userID string) error
}

// DeviceHandler exposes the caller's trusted device registry.
type DeviceHandler struct {
	devices DeviceRegistry
}

func NewDeviceHandler(devices DeviceRegistry) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

// DeviceResponse represents a trusted device in the HTTP response
type DeviceResponse struct {
	ID             string    `json:"id"`
	DeviceName     string    `json:"device_name"`
	Trusted        bool      `json:"trusted"`
	TrustExpiresAt time.Time `json:"trust_expires_at"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
}

// List returns the caller's devices, including revoked and expired ones.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	payload := middleware.StatePayloadFromContext(r.Context())
	if payload.State.UserID == "" {
		pkghttp.WriteUnauthorized(w, "Log in to continue")
		return
	}

	devices, err := h.devices.List(r.Context(), payload.State.UserID)
	if err != nil {
		pkghttp.WriteModelError(w, err)
		return
	}

	now := time.Now()
	resp := make([]DeviceResponse, 0, len(devices))
	for _, d := range devices {
		resp = append(resp, DeviceResponse{
			ID:             d.ID,
			DeviceName:     d.DeviceName,
			Trusted:        d.TrustedAt(now),
			TrustExpiresAt: d.TrustExpiresAt,
			FirstSeen:      d.FirstSeen,
			LastSeen:       d.LastSeen,
		})
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Revoke drops trust for one of the caller's devices.
func (h *DeviceHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	payload := middleware.StatePayloadFromContext(r.Context())
	if payload.State.UserID == "" {
		pkghttp.WriteUnauthorized(w, "Log in to continue")
		return
	}

	deviceID := chi.URLParam(r, "id")
	if deviceID == "" {
		pkghttp.WriteBadRequest(w, "Missing device id")
		return
	}

	if err := h.devices.Revoke(r.Context(), payload.State.UserID, deviceID); err != nil {
		pkghttp.WriteModelError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// RevokeAll drops trust for every device of the caller.
func (h *DeviceHandler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	payload := middleware.StatePayloadFromContext(r.Context())
	if payload.State.UserID == "" {
		pkghttp.WriteUnauthorized(w, "Log in to continue")
		return
	}

	if err := h.devices.RevokeAll(r.Context(), payload.State.UserID); err != nil {
		pkghttp.WriteModelError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "revoked_all"})
}
