package domain

import (
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidURL signals that user input could not be turned into an
// absolute URL, even after prefixing a scheme.
var ErrInvalidURL = errors.New("invalid url")

// NormalizeURL turns raw user text into a canonical absolute URL.
// The input is trimmed; if it does not parse as an absolute URL on its own,
// a second attempt is made with an https:// prefix (so "react.dev" becomes
// "https://react.dev/"). The result is idempotent: normalizing an already
// normalized URL returns it unchanged.
func NormalizeURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", ErrInvalidURL
	}

	if normalized, ok := parseAbsolute(value); ok {
		return normalized, nil
	}
	if normalized, ok := parseAbsolute("https://" + value); ok {
		return normalized, nil
	}
	return "", ErrInvalidURL
}

// parseAbsolute accepts only URLs with both a scheme and a host.
// An empty path is serialized as "/", matching WHATWG URL serialization.
func parseAbsolute(value string) (string, bool) {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), true
}
