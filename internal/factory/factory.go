package factory

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go-naturalness-inspector/internal/analyzer"
	"go-naturalness-inspector/internal/config"
	"go-naturalness-inspector/internal/pristine"
	"go-naturalness-inspector/internal/storage"
)

// StorageType represents the backends a model artifact or image can come from
type StorageType string

const (
	// HTTPStorage for http(s) downloads
	HTTPStorage StorageType = "http"
	// AzureStorage for azblob://container/blob references
	AzureStorage StorageType = "azure"
	// LocalStorage for local file system paths
	LocalStorage StorageType = "local"
)

// StorageTypeFor classifies a model source or image reference by scheme.
func StorageTypeFor(ref string) StorageType {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return LocalStorage
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return HTTPStorage
	case "azblob":
		return AzureStorage
	default:
		return LocalStorage
	}
}

// ComponentFactory builds the storage and scoring components described by
// a configuration. Shared components are created once.
type ComponentFactory struct {
	cfg *config.Config

	fetcherOnce sync.Once
	fetcher     *storage.HTTPImageFetcher

	blobOnce sync.Once
	blobs    storage.BlobStorage
	blobErr  error
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	if cfg == nil {
		cfg = config.Defaults()
	}
	return &ComponentFactory{cfg: cfg}
}

// ImageFetcher returns the shared retrying HTTP fetcher.
func (f *ComponentFactory) ImageFetcher() *storage.HTTPImageFetcher {
	f.fetcherOnce.Do(func() {
		f.fetcher = storage.NewHTTPImageFetcher(f.cfg.ImageFetchTimeout)
	})
	return f.fetcher
}

// BlobStorage returns the Azure client, or nil when no account is
// configured.
func (f *ComponentFactory) BlobStorage() (storage.BlobStorage, error) {
	f.blobOnce.Do(func() {
		if f.cfg.AzureAccountName == "" {
			return
		}
		f.blobs, f.blobErr = storage.NewAzureStorage(f.cfg.AzureAccountName, f.cfg.AzureAccountKey)
	})
	return f.blobs, f.blobErr
}

// CreateModelSource resolves a model reference onto the source that can
// read it.
func (f *ComponentFactory) CreateModelSource(ref string) (pristine.Source, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, config.ErrNoModelSource
	}

	switch StorageTypeFor(ref) {
	case HTTPStorage:
		return storage.HTTPSource{URL: ref, Fetcher: f.ImageFetcher()}, nil
	case AzureStorage:
		container, blob, err := storage.ParseBlobURL(ref)
		if err != nil {
			return nil, err
		}
		blobs, err := f.BlobStorage()
		if err != nil {
			return nil, err
		}
		if blobs == nil {
			return nil, fmt.Errorf("model source %s needs AZURE_STORAGE_ACCOUNT", ref)
		}
		return storage.BlobSource{Storage: blobs, Container: container, Blob: blob}, nil
	default:
		return storage.FileSource{Path: ref}, nil
	}
}

// AnalyzerOptions translates the scoring configuration into engine options.
func (f *ComponentFactory) AnalyzerOptions() analyzer.Options {
	s := f.cfg.Scoring
	opts := analyzer.DefaultOptions().
		WithBlockSize(s.BlockSize).
		WithScales(s.Scales...).
		WithCropBorder(s.CropBorder).
		WithResizeTo(s.ResizeTo).
		WithWorkers(f.cfg.Workers())
	opts.MinPatchVariance = s.MinPatchVariance
	return opts
}

// CreateAnalyzer builds an analyzer around model. A nil model yields a
// fast-only analyzer.
func (f *ComponentFactory) CreateAnalyzer(model *pristine.Model) (*analyzer.Analyzer, error) {
	a, err := analyzer.NewAnalyzer(model, f.AnalyzerOptions())
	if err != nil {
		return nil, fmt.Errorf("creating analyzer: %w", err)
	}
	return a, nil
}
