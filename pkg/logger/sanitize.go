package logger

import (
	"log/slog"
	"strings"
)

// SanitizedUsername masks a username for logging (e.g., "a***e"). Login
// failures are logged before the username is known to belong to anyone, so
// the raw value never goes to the log stream.
func SanitizedUsername(username string) string {
	switch {
	case username == "":
		return "[empty]"
	case len(username) <= 2:
		return strings.Repeat("*", len(username))
	default:
		return string(username[0]) + strings.Repeat("*", len(username)-2) + string(username[len(username)-1])
	}
}

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// RedactedAttr returns a redacted slog attribute for sensitive values
// In production, returns "[REDACTED]"; in development, returns the actual value
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}
