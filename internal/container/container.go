package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"go-naturalness-inspector/internal/analyzer"
	"go-naturalness-inspector/internal/config"
	"go-naturalness-inspector/internal/factory"
	"go-naturalness-inspector/internal/imaging"
	"go-naturalness-inspector/internal/logger"
	"go-naturalness-inspector/internal/observer"
	"go-naturalness-inspector/internal/pristine"
	"go-naturalness-inspector/internal/repository"
	"go-naturalness-inspector/internal/service"
	"go-naturalness-inspector/internal/transport"
	"go-naturalness-inspector/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config   *config.Config
	host     config.HostInfo
	model    *pristine.Model
	analyzer *analyzer.Analyzer
	results  repository.ResultRepository
	metrics  *observer.MetricsObserver
	service  service.ScoringService
	handler  http.Handler
}

// NewContainer builds the dependency graph. The API always serves the full
// pipeline, so cfg must name a model. Loading it is the only blocking step;
// any failure there is returned and the caller is expected to abort.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	if err := cfg.RequireModel(); err != nil {
		return nil, err
	}
	imaging.SetMaxPixels(cfg.MaxImagePixels)

	host := config.DescribeHost()
	logger.WithFields(logrus.Fields{
		"cpu":        host.CPU,
		"cores":      host.PhysicalCores,
		"threads":    host.LogicalCores,
		"avx2":       host.AVX2,
		"memory_mib": host.MemoryMiB,
		"workers":    cfg.Workers(),
	}).Info("Host detected")

	components := factory.NewComponentFactory(cfg)

	model, err := LoadModel(ctx, components, cfg.ModelSource)
	if err != nil {
		return nil, err
	}

	a, err := components.CreateAnalyzer(model)
	if err != nil {
		return nil, err
	}

	blobs, err := components.BlobStorage()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create blob storage: %w", err)
	}
	imageRepo := repository.NewHTTPImageRepository(components.ImageFetcher(), blobs, validation.NewURLValidator())

	var results repository.ResultRepository
	if cfg.HistoryDB != "" {
		db, err := repository.NewSQLiteResultRepository(cfg.HistoryDB)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		results = db
		logger.WithField("path", cfg.HistoryDB).Info("Scoring history enabled")
	}

	metrics := observer.NewMetricsObserver()
	publisher := observer.NewEventPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)

	svc := service.NewScoringService(a, imageRepo, results, publisher, metrics,
		validation.NewRequestValidator(validation.NewURLValidator(), cfg.MaxBatchSize),
		service.Settings{
			DefaultPipeline:  cfg.Scoring.DefaultPipeline,
			AnalysisTimeout:  cfg.AnalysisTimeout,
			BatchConcurrency: cfg.Workers(),
			Host:             &host,
		})

	handler := transport.NewHandler(svc, transport.HandlerConfig{
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	})

	return &Container{
		config:   cfg,
		host:     host,
		model:    model,
		analyzer: a,
		results:  results,
		metrics:  metrics,
		service:  svc,
		handler:  handler,
	}, nil
}

// LoadModel reads and validates the pristine model named by ref.
func LoadModel(ctx context.Context, components *factory.ComponentFactory, ref string) (*pristine.Model, error) {
	src, err := components.CreateModelSource(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve model source: %w", err)
	}
	model, err := pristine.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"source":    src.Name(),
		"name":      model.Name(),
		"layout":    model.Layout(),
		"dim":       model.Dim(),
		"pooling":   model.Pooling(),
		"inversion": model.Inversion(),
	}).Info("Pristine model loaded")
	return model, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Service returns the scoring service
func (c *Container) Service() service.ScoringService {
	return c.service
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Model returns the loaded pristine model
func (c *Container) Model() *pristine.Model {
	return c.model
}

// Close releases the worker pool and the history database.
func (c *Container) Close() error {
	var firstErr error
	if c.results != nil {
		if err := c.results.Close(); err != nil {
			firstErr = err
		}
	}
	if err := c.analyzer.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
