package storage

import (
	"context"
	"fmt"
	"io"
	"os"
)

// The sources below implement pristine.Source for the places a model
// artifact can live.

// FileSource reads an artifact from the local file system.
type FileSource struct {
	Path string
}

func (s FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open model file: %w", err)
	}
	return f, nil
}

func (s FileSource) Name() string { return s.Path }

// HTTPSource downloads an artifact with the retrying HTTP fetcher.
type HTTPSource struct {
	URL     string
	Fetcher *HTTPImageFetcher
}

func (s HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return s.Fetcher.Open(ctx, s.URL, "application/json, application/yaml, text/yaml, */*")
}

func (s HTTPSource) Name() string { return s.URL }

// BlobSource reads an artifact from Azure Blob Storage.
type BlobSource struct {
	Storage   BlobStorage
	Container string
	Blob      string
}

func (s BlobSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return s.Storage.OpenBlob(ctx, s.Container, s.Blob)
}

// Name keeps the blob extension so the artifact format can be inferred.
func (s BlobSource) Name() string { return fmt.Sprintf("azblob://%s/%s", s.Container, s.Blob) }
