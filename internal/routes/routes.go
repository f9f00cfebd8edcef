package routes

import (
	"github.com/catkeep/authcore/internal/handlers"
	"github.com/catkeep/authcore/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes. Paths line up with the
// access gate's rules: /login, /public and /healthz are anonymous territory,
// /mfa and /logout stay reachable mid-login, everything else requires a fully
// authenticated session.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	mfaHandler *handlers.MFAHandler,
	deviceHandler *handlers.DeviceHandler,
	userHandler *handlers.UserHandler,
) {
	authRateLimit := middleware.RateLimitByIP(middleware.DefaultAuthRateLimit())

	// Credential and challenge endpoints carry an IP rate limit on top of the
	// account lockout.
	router.With(authRateLimit).Post("/login", authHandler.Login)
	router.Post("/logout", authHandler.Logout)

	router.Route("/mfa", func(r chi.Router) {
		r.Post("/setup", mfaHandler.Setup)
		r.With(authRateLimit).Post("/setup/verify", mfaHandler.SetupVerify)
		r.With(authRateLimit).Post("/verify", mfaHandler.Verify)
		r.Post("/disable", mfaHandler.Disable)
	})

	router.Put("/account/password", authHandler.ChangePassword)

	router.Route("/devices", func(r chi.Router) {
		r.Get("/", deviceHandler.List)
		r.Delete("/", deviceHandler.RevokeAll)
		r.Delete("/{id}", deviceHandler.Revoke)
	})

	router.Route("/users", func(r chi.Router) {
		r.Get("/", userHandler.List)
		r.Post("/", userHandler.Create)
		r.Get("/{id}", userHandler.Get)
		r.Put("/{id}/role", userHandler.UpdateRole)
		r.Put("/{id}/status", userHandler.UpdateStatus)
	})
}
