package validation

import (
	"testing"

	apperrors "go-naturalness-inspector/internal/errors"
)

func TestNewURLValidator(t *testing.T) {
	validator := NewURLValidator()
	if validator == nil {
		t.Fatal("Expected non-nil URL validator")
	}

	expectedSchemes := []string{"http", "https"}
	if len(validator.allowedSchemes) != len(expectedSchemes) {
		t.Errorf("Expected %d schemes, got %d", len(expectedSchemes), len(validator.allowedSchemes))
	}
	for i, scheme := range expectedSchemes {
		if validator.allowedSchemes[i] != scheme {
			t.Errorf("Expected scheme %s, got %s", scheme, validator.allowedSchemes[i])
		}
	}
}

func TestNewURLValidatorWithOptions_Normalizes(t *testing.T) {
	validator := NewURLValidatorWithOptions([]string{"HTTPS"}, []string{" Example.com ", "test.com"})

	if len(validator.allowedSchemes) != 1 || validator.allowedSchemes[0] != "https" {
		t.Errorf("Expected only https scheme, got %v", validator.allowedSchemes)
	}
	if validator.allowedHosts[0] != "example.com" {
		t.Errorf("Expected normalized host, got %q", validator.allowedHosts[0])
	}
}

func TestValidateImageURL_ValidURLs(t *testing.T) {
	validator := NewURLValidator()

	validURLs := []string{
		"http://example.com/image.jpg",
		"HTTPS://example.com/image.png",
		"https://subdomain.example.com/path/to/image.webp",
		"http://192.168.1.1:8080/image.jpg",
	}

	for _, url := range validURLs {
		if err := validator.ValidateImageURL(url); err != nil {
			t.Errorf("Expected valid URL %s to pass validation, got error: %v", url, err)
		}
	}
}

func TestValidateImageURL_Rejected(t *testing.T) {
	validator := NewURLValidator()

	tests := []struct {
		url     string
		message string
	}{
		{"", "URL cannot be empty"},
		{"   ", "URL cannot be empty"},
		{"not-a-url", "URL scheme not allowed"},
		{"ftp://example.com/image.jpg", "URL scheme not allowed"},
		{"file://local/path/image.jpg", "URL scheme not allowed"},
		{"http://", "URL must have a valid host"},
		{"http:///path", "URL must have a valid host"},
		{"https://:443/x", "URL must have a valid host"},
	}

	for _, tt := range tests {
		err := validator.ValidateImageURL(tt.url)
		if err == nil {
			t.Errorf("Expected URL %q to fail validation", tt.url)
			continue
		}
		appErr, ok := err.(*apperrors.AppError)
		if !ok {
			t.Errorf("Expected AppError, got: %T", err)
			continue
		}
		if appErr.Message != tt.message {
			t.Errorf("URL %q: expected %q, got %q", tt.url, tt.message, appErr.Message)
		}
		if appErr.Type != apperrors.ErrorTypeValidation {
			t.Errorf("URL %q: expected validation error, got %s", tt.url, appErr.Type)
		}
	}
}

func TestValidateImageURL_RestrictedHosts(t *testing.T) {
	validator := NewURLValidatorWithOptions([]string{"http", "https"}, []string{"example.com", "trusted.com"})

	for _, url := range []string{
		"http://example.com/image.jpg",
		"https://cdn.trusted.com/image.png",
		"https://TRUSTED.com:8443/image.png",
	} {
		if err := validator.ValidateImageURL(url); err != nil {
			t.Errorf("Expected allowed host URL '%s' to pass validation, got error: %v", url, err)
		}
	}

	for _, url := range []string{
		"http://malicious.com/image.jpg",
		"https://nottrusted.com/image.png",
		"https://example.com.evil.net/image.png",
	} {
		err := validator.ValidateImageURL(url)
		if err == nil {
			t.Errorf("Expected disallowed host URL '%s' to fail validation", url)
			continue
		}
		if appErr, ok := err.(*apperrors.AppError); ok && appErr.Message != "URL host not allowed" {
			t.Errorf("Expected 'URL host not allowed' error, got: %s", appErr.Message)
		}
	}
}

func TestValidateModelSource(t *testing.T) {
	validator := NewURLValidator()

	for _, src := range []string{
		"models/pristine.yaml",
		"/etc/niqe/model.json",
		"https://example.com/model.yaml",
		"azblob://models/pristine.yaml",
		"azblob://models/nested/pristine.json",
	} {
		if err := validator.ValidateModelSource(src); err != nil {
			t.Errorf("Expected model source %q to be accepted, got %v", src, err)
		}
	}

	for _, src := range []string{
		"",
		"ftp://example.com/model.yaml",
		"azblob://models",
		"azblob://models/",
		"https://",
	} {
		if err := validator.ValidateModelSource(src); err == nil {
			t.Errorf("Expected model source %q to be rejected", src)
		}
	}
}

func TestIsHostAllowed(t *testing.T) {
	validator := NewURLValidator()
	if !validator.isHostAllowed("example.com") {
		t.Error("Expected any host to be allowed when no restrictions")
	}

	restricted := NewURLValidatorWithOptions([]string{"http", "https"}, []string{"example.com"})
	if !restricted.isHostAllowed("img.example.com") {
		t.Error("Expected subdomain to be allowed")
	}
	if restricted.isHostAllowed("badexample.com") {
		t.Error("Expected badexample.com to be disallowed")
	}
}
