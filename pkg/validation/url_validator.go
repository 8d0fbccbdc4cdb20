package validation

import (
	"net/url"
	"strings"

	apperrors "go-servicetag-scanner/internal/errors"
)

// URLValidator handles URL validation logic
type URLValidator struct {
	allowedSchemes []string
	requireHost    bool
}

// NewURLValidator creates a URL validator for remote HTTP endpoints
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https"},
		requireHost:    true,
	}
}

// NewImageURIValidator accepts the locations an ImageReference may point at.
// Bare filesystem paths are treated as file URIs and need no host.
func NewImageURIValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"file", "http", "https", "azblob"},
	}
}

// ValidateURL validates a recognition endpoint or image location
func (v *URLValidator) ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	scheme := parsedURL.Scheme
	if scheme == "" && !v.requireHost {
		scheme = "file"
	}
	if !v.isSchemeAllowed(scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	needsHost := v.requireHost || scheme == "http" || scheme == "https" || scheme == "azblob"
	if needsHost && parsedURL.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}
	if scheme == "file" && parsedURL.Path == "" && parsedURL.Opaque == "" {
		return apperrors.NewValidationError("file URL must have a path", nil)
	}

	return nil
}

// isSchemeAllowed checks if the URL scheme is in the allowed list
func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}
