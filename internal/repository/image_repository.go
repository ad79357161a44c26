package repository

import (
	"context"
	"fmt"
	"strings"

	"go-naturalness-inspector/internal/imaging"
	"go-naturalness-inspector/internal/storage"
	"go-naturalness-inspector/pkg/validation"
)

// HTTPImageRepository implements ImageRepository using HTTP storage, with
// azblob:// URLs routed to Azure Blob Storage when configured.
type HTTPImageRepository struct {
	fetcher   storage.ImageFetcher
	blobs     storage.BlobStorage
	validator *validation.URLValidator
}

// NewHTTPImageRepository creates a new HTTP-based image repository. blobs
// may be nil.
func NewHTTPImageRepository(fetcher storage.ImageFetcher, blobs storage.BlobStorage, validator *validation.URLValidator) ImageRepository {
	if validator == nil {
		validator = validation.NewURLValidator()
	}
	return &HTTPImageRepository{
		fetcher:   fetcher,
		blobs:     blobs,
		validator: validator,
	}
}

// FetchImage retrieves an image from a URL
func (r *HTTPImageRepository) FetchImage(ctx context.Context, imageURL string) (*imaging.Image, error) {
	if isBlobURL(imageURL) {
		if r.blobs == nil {
			return nil, ErrBlobStorageDisabled
		}
		container, blob, err := storage.ParseBlobURL(imageURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImageURL, err)
		}
		return r.blobs.GetImage(ctx, container, blob)
	}
	if err := r.validator.ValidateImageURL(imageURL); err != nil {
		return nil, err
	}
	return r.fetcher.FetchImage(ctx, imageURL)
}

// ValidateImageURL validates if the provided URL is acceptable
func (r *HTTPImageRepository) ValidateImageURL(imageURL string) error {
	if isBlobURL(imageURL) {
		if _, _, err := storage.ParseBlobURL(imageURL); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidImageURL, err)
		}
		return nil
	}
	return r.validator.ValidateImageURL(imageURL)
}

func isBlobURL(u string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(u)), "azblob://")
}
