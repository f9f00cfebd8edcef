package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/catkeep/authcore/internal/auth"
	pkghttp "github.com/catkeep/authcore/pkg/http"
)

type contextKey string

const statePayloadKey contextKey = "session_state_payload"

// SessionToucher advances session activity; failures stay internal.
type SessionToucher interface {
	Touch(ctx context.Context, token string)
}

// SessionState parses the signed state cookie into the request context and
// best-effort touches the session row. A missing or invalid cookie resolves
// to the anonymous state; it is never an error at this layer.
func SessionState(tm *auth.StateTokenManager, sessions SessionToucher, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			payload := auth.StatePayload{State: auth.Anonymous()}

			if cookie, err := r.Cookie(auth.SessionCookieName); err == nil {
				parsed, err := tm.Parse(cookie.Value)
				if err != nil {
					logger.Debug("discarding invalid state cookie", slog.Any("error", err))
				}
				payload = parsed
			}

			if payload.State.Stage == auth.StageFullyAuthenticated && payload.SID != "" {
				sessions.Touch(r.Context(), payload.SID)
			}

			ctx := context.WithValue(r.Context(), statePayloadKey, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ContextWithStatePayload injects a state payload, standing in for the
// SessionState middleware where it does not run.
func ContextWithStatePayload(ctx context.Context, payload auth.StatePayload) context.Context {
	return context.WithValue(ctx, statePayloadKey, payload)
}

// StatePayloadFromContext returns the parsed state payload, or the anonymous
// payload when the middleware did not run.
func StatePayloadFromContext(ctx context.Context) auth.StatePayload {
	if payload, ok := ctx.Value(statePayloadKey).(auth.StatePayload); ok {
		return payload
	}
	return auth.StatePayload{State: auth.Anonymous()}
}

// AccessGate enforces the pure path gate on every request. Denied API
// requests get a 401/403 JSON body with the redirect target; the gate itself
// never issues HTTP redirects.
func AccessGate() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			payload := StatePayloadFromContext(r.Context())

			decision := auth.Allow(payload.State, r.URL.Path)
			if !decision.Allow {
				if payload.State.Stage == auth.StageAnonymous {
					pkghttp.WriteError(w, http.StatusUnauthorized, "authentication_required", "Log in to continue")
					return
				}
				pkghttp.WriteError(w, http.StatusForbidden, "step_required", "Complete "+decision.RedirectTo+" to continue")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
