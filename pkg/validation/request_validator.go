package validation

import (
	"fmt"
	"strings"

	apperrors "go-naturalness-inspector/internal/errors"
	"go-naturalness-inspector/pkg/models"
)

// RequestValidator checks API payloads before any image is decoded.
type RequestValidator struct {
	urls         *URLValidator
	maxBatchSize int
}

// NewRequestValidator creates a validator; maxBatchSize <= 0 means 50.
func NewRequestValidator(urls *URLValidator, maxBatchSize int) *RequestValidator {
	if urls == nil {
		urls = NewURLValidator()
	}
	if maxBatchSize <= 0 {
		maxBatchSize = 50
	}
	return &RequestValidator{urls: urls, maxBatchSize: maxBatchSize}
}

// MaxBatchSize returns the largest accepted batch.
func (v *RequestValidator) MaxBatchSize() int { return v.maxBatchSize }

// ValidateScoreRequest requires exactly one of image or url.
func (v *RequestValidator) ValidateScoreRequest(req models.ScoreRequest) error {
	return v.ValidateItem(models.BatchItem{Image: req.Image, URL: req.URL})
}

// ValidateBatchRequest checks the batch size. Items are checked one by one
// with ValidateItem so a bad item fails alone.
func (v *RequestValidator) ValidateBatchRequest(req models.BatchRequest) error {
	items := req.AllItems()
	if len(items) == 0 {
		return apperrors.NewValidationError("batch must contain at least one image", nil)
	}
	if len(items) > v.maxBatchSize {
		return apperrors.NewValidationError(
			fmt.Sprintf("batch of %d images exceeds the limit of %d", len(items), v.maxBatchSize), nil)
	}
	return nil
}

// ValidateItem requires exactly one of image or url on a batch item.
func (v *RequestValidator) ValidateItem(item models.BatchItem) error {
	hasImage := strings.TrimSpace(item.Image) != ""
	hasURL := strings.TrimSpace(item.URL) != ""
	switch {
	case hasImage && hasURL:
		return apperrors.NewValidationError("provide either image or url, not both", nil)
	case !hasImage && !hasURL:
		return apperrors.NewValidationError("image or url is required", nil)
	case hasURL && !strings.HasPrefix(strings.ToLower(strings.TrimSpace(item.URL)), "azblob://"):
		return v.urls.ValidateImageURL(item.URL)
	}
	return nil
}
