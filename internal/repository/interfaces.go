package repository

import (
	"context"

	"go-naturalness-inspector/internal/imaging"
	"go-naturalness-inspector/pkg/models"
)

// ImageRepository defines the interface for image data access operations
type ImageRepository interface {
	// FetchImage retrieves and decodes an image from a URL
	FetchImage(ctx context.Context, imageURL string) (*imaging.Image, error)

	// ValidateImageURL validates if the provided URL is acceptable
	ValidateImageURL(imageURL string) error
}

// ResultRepository stores scoring outcomes
type ResultRepository interface {
	// SaveResults stores records in one transaction
	SaveResults(ctx context.Context, records []models.HistoryRecord) error

	// History returns up to limit records, newest first
	History(ctx context.Context, limit int) ([]models.HistoryRecord, error)

	Close() error
}
