package logger

import (
	"net/url"
	"strings"
)

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactQueryParam masks the value of param in a URL string. Strings that do
// not parse as a URL, or do not carry param, are returned unchanged.
func RedactQueryParam(rawURL, param string) string {
	if !strings.Contains(rawURL, param+"=") {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Get(param) == "" {
		return rawURL
	}
	q.Set(param, "REDACTED")
	u.RawQuery = q.Encode()
	return u.String()
}
