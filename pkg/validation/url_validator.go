package validation

import (
	"net/url"
	"strings"

	apperrors "go-naturalness-inspector/internal/errors"
)

// URLValidator checks remote image and model locations before anything is
// fetched.
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewURLValidator accepts http and https URLs on any host.
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https"},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewURLValidatorWithOptions restricts schemes and hosts. A host entry
// also admits its subdomains.
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	lower := func(in []string) []string {
		out := make([]string, len(in))
		for i, s := range in {
			out[i] = strings.ToLower(strings.TrimSpace(s))
		}
		return out
	}
	return &URLValidator{
		allowedSchemes: lower(schemes),
		allowedHosts:   lower(hosts),
	}
}

// ValidateImageURL validates a URL an image will be downloaded from.
func (v *URLValidator) ValidateImageURL(imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	if !v.isSchemeAllowed(parsedURL.Scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	if parsedURL.Hostname() == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}

	if !v.isHostAllowed(parsedURL.Hostname()) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}

	return nil
}

// ValidateModelSource accepts a local path, an http(s) URL or an
// azblob://container/blob reference.
func (v *URLValidator) ValidateModelSource(source string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return apperrors.NewValidationError("model source cannot be empty", nil)
	}
	i := strings.Index(source, "://")
	if i < 0 {
		return nil // local path
	}
	switch strings.ToLower(source[:i]) {
	case "http", "https":
		return v.ValidateImageURL(source)
	case "azblob":
		rest := strings.TrimPrefix(source[i+3:], "/")
		if j := strings.IndexByte(rest, '/'); j <= 0 || j == len(rest)-1 {
			return apperrors.NewValidationError("model source must be azblob://container/blob", nil)
		}
		return nil
	}
	return apperrors.NewValidationError("model source scheme not supported", nil)
}

// isSchemeAllowed checks if the URL scheme is in the allowed list
func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	scheme = strings.ToLower(scheme)
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

// isHostAllowed checks host against the allowed list, accepting
// subdomains. No restrictions means every host is allowed.
func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, allowed := range v.allowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
