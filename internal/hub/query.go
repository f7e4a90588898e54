package hub

import (
	"net/url"
	"strings"
)

// MobilePrefix marks a connection from a mobile client.
const MobilePrefix = "_MOBILE_"

// ParseQuery splits a raw connection query "[_MOBILE_&]credentials" into
// the mobile flag and the credential part.
func ParseQuery(raw string) (mobile bool, auth string) {
	if raw == "" {
		return false, ""
	}
	first, rest, found := strings.Cut(raw, "&")
	if !found {
		return false, unescape(raw)
	}
	auth, _, _ = strings.Cut(rest, "&")
	return first == MobilePrefix, unescape(auth)
}

func unescape(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}
