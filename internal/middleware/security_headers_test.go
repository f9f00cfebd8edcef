package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func applySecurityHeaders(env string) *httptest.ResponseRecorder {
	handler := SecurityHeaders(SecurityHeadersConfig{Env: env})

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	handler(testHandler).ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders_Production(t *testing.T) {
	w := applySecurityHeaders("production")

	tests := []struct {
		header   string
		expected string
	}{
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "strict-origin-when-cross-origin"},
		{"Cache-Control", "no-store"},
		{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	}

	for _, tt := range tests {
		if got := w.Header().Get(tt.header); got != tt.expected {
			t.Errorf("Header %s: got %q, want %q", tt.header, got, tt.expected)
		}
	}

	if csp := w.Header().Get("Content-Security-Policy"); csp == "" {
		t.Error("Content-Security-Policy header missing in production")
	}
}

func TestSecurityHeaders_Development(t *testing.T) {
	w := applySecurityHeaders("development")

	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options: got %q, want DENY", got)
	}

	// No HSTS or CSP outside production; local work happens over plain HTTP.
	if hsts := w.Header().Get("Strict-Transport-Security"); hsts != "" {
		t.Errorf("unexpected HSTS header in development: %q", hsts)
	}
	if csp := w.Header().Get("Content-Security-Policy"); csp != "" {
		t.Errorf("unexpected CSP header in development: %q", csp)
	}
}
