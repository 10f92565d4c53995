package utils

import (
	"net/url"
	"strings"

	"github.com/pagelift/pagelift/backend/internal/shared/errs"
)

// Input size limits (in bytes)
const (
	// MaxURLLength bounds target URLs to keep cache keys and logs sane
	MaxURLLength = 2048
	// MaxBodySize limits fetched documents to 10MB to prevent memory exhaustion
	MaxBodySize = 10 * 1024 * 1024
)

// ValidateTargetURL checks that raw is an absolute http(s) URL and returns
// the parsed form. Malformed URLs are rejected before any fetch or mutation.
func ValidateTargetURL(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errs.Invalid("url is required")
	}
	if len(raw) > MaxURLLength {
		return nil, errs.Invalid("url exceeds maximum length")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, &errs.AppError{
			Kind:    errs.InvalidInput,
			Message: "Invalid URL format. Please ensure you entered a valid URL (e.g., https://example.com).",
			Cause:   err,
		}
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errs.Invalid("Invalid URL format. Please ensure you entered a valid URL (e.g., https://example.com).")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errs.Invalid("Only http and https URLs are supported.")
	}

	return parsed, nil
}

// NormalizeURL produces the canonical form used for cache keys: lowercased
// scheme and host, fragment stripped, default ports removed.
func NormalizeURL(parsed *url.URL) string {
	clone := *parsed
	clone.Scheme = strings.ToLower(clone.Scheme)
	clone.Host = strings.ToLower(clone.Host)
	clone.Fragment = ""

	switch {
	case clone.Scheme == "http" && strings.HasSuffix(clone.Host, ":80"):
		clone.Host = strings.TrimSuffix(clone.Host, ":80")
	case clone.Scheme == "https" && strings.HasSuffix(clone.Host, ":443"):
		clone.Host = strings.TrimSuffix(clone.Host, ":443")
	}

	return clone.String()
}
