package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"go-naturalness-inspector/internal/imaging"
)

// BlobStorage reads images and model artifacts from Azure Blob Storage.
type BlobStorage interface {
	OpenBlob(ctx context.Context, container, blob string) (io.ReadCloser, error)
	GetImage(ctx context.Context, container, blob string) (*imaging.Image, error)
}

type azureStorage struct {
	client *azblob.Client
}

// NewAzureStorage authenticates with a shared account key.
func NewAzureStorage(accountName string, accountKey string) (BlobStorage, error) {
	if accountName == "" || accountKey == "" {
		return nil, fmt.Errorf("azure storage requires an account name and key")
	}
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &azureStorage{client: client}, nil
}

func (s *azureStorage) OpenBlob(ctx context.Context, container, blob string) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		return nil, fmt.Errorf("download %s/%s failed: %w", container, blob, err)
	}
	return resp.Body, nil
}

func (s *azureStorage) GetImage(ctx context.Context, container, blob string) (*imaging.Image, error) {
	body, err := s.OpenBlob(ctx, container, blob)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	img, _, err := imaging.Decode(body)
	return img, err
}

// ParseBlobURL splits "azblob://container/path/to/blob" into its parts.
func ParseBlobURL(raw string) (container, blob string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}
	if u.Scheme != "azblob" {
		return "", "", fmt.Errorf("invalid blob URL %q: scheme must be azblob", raw)
	}
	container = u.Host
	blob = strings.TrimPrefix(u.Path, "/")
	if container == "" || blob == "" {
		return "", "", fmt.Errorf("invalid blob URL %q: want azblob://container/blob", raw)
	}
	return container, blob, nil
}
