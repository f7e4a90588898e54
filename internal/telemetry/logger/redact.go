package logger

import (
	"log/slog"
	"strings"
)

// Key patterns whose values are never written to the log.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"key",
	"credential",
	"signature",
	"nonce",
	"bearer",
}

// Keys holding raw authentication query strings. The user id is kept,
// the remaining fields are masked.
var queryKeyPatterns = []string{
	"auth",
	"query",
}

const redactedValue = "***REDACTED***"

func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		v := a.Value.String()
		if v == "" {
			return a
		}
		k := strings.ToLower(a.Key)
		for _, p := range queryKeyPatterns {
			if strings.Contains(k, p) {
				return slog.String(a.Key, RedactQuery(v))
			}
		}
		if IsSensitiveKey(k) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// RedactQuery masks a signed authentication string of the form
// "[_MOBILE_&]userid;nonce;signature[;role]", keeping the prefix, the user
// id and the role. Anything else is fully redacted.
func RedactQuery(q string) string {
	prefix := ""
	if i := strings.IndexByte(q, '&'); i >= 0 {
		prefix, q = q[:i+1], q[i+1:]
	}
	parts := strings.Split(q, ";")
	if len(parts) < 3 || len(parts) > 4 {
		return redactedValue
	}
	parts[1] = "***"
	parts[2] = "***"
	return prefix + strings.Join(parts, ";")
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, p := range sensitiveKeyPatterns {
		if strings.Contains(k, p) {
			return true
		}
	}
	return false
}
