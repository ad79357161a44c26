package repository

import "errors"

var (
	// ErrInvalidImageURL indicates an invalid image URL
	ErrInvalidImageURL = errors.New("invalid image URL")

	// ErrBlobStorageDisabled is returned for azblob:// URLs when no Azure
	// account is configured
	ErrBlobStorageDisabled = errors.New("azure blob storage is not configured")

	// ErrRepositoryUnavailable indicates the history database is closed
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
