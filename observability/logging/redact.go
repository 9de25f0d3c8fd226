package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces values that must never reach the logs.
const RedactedValue = "[REDACTED]"

// plainKeys are emitted verbatim.
var plainKeys = map[string]struct{}{
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"reason":    {},
	"component": {},
	"module":    {},
	"op":        {},
	"pool":      {},
	"height":    {},
	"duration":  {},
}

// identityKeys carry account or client identifiers and are logged as a short
// fingerprint.
var identityKeys = map[string]struct{}{
	"user":     {},
	"caller":   {},
	"subject":  {},
	"address":  {},
	"referral": {},
	"client":   {},
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// IsAllowlisted reports whether values under key are logged unmodified.
func IsAllowlisted(key string) bool {
	_, ok := plainKeys[normalizeKey(key)]
	return ok
}

// MaskIdentity keeps the first and last four characters of identifiers long
// enough to stay ambiguous, and fully redacts anything shorter.
func MaskIdentity(value string) string {
	value = strings.TrimSpace(value)
	if len(value) < 16 {
		return RedactedValue
	}
	return value[:4] + "…" + value[len(value)-4:]
}

// MaskField builds a slog attribute for key, passing allowlisted keys
// through, fingerprinting identity keys and redacting everything else.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	if _, ok := identityKeys[normalizeKey(key)]; ok {
		return slog.String(key, MaskIdentity(value))
	}
	return slog.String(key, RedactedValue)
}
