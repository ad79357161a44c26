package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"go-naturalness-inspector/internal/analyzer"
	"go-naturalness-inspector/internal/config"
	apperrors "go-naturalness-inspector/internal/errors"
	"go-naturalness-inspector/internal/imaging"
	"go-naturalness-inspector/internal/logger"
	"go-naturalness-inspector/internal/observer"
	"go-naturalness-inspector/internal/repository"
	"go-naturalness-inspector/pkg/models"
	"go-naturalness-inspector/pkg/validation"
)

// Version is reported by the health endpoint and the CLI.
const Version = "1.0.0"

// ScoringService is the use-case layer shared by the HTTP API and the CLI.
type ScoringService interface {
	// ScoreImage scores an already decoded image.
	ScoreImage(ctx context.Context, img *imaging.Image, source, pipeline string) (*models.ScoreResult, error)

	// Score decodes or fetches the image of a request and scores it.
	Score(ctx context.Context, req models.ScoreRequest) (*models.ScoreResult, error)

	// ScoreBatch scores every item concurrently. Item failures are
	// reported per entry; only request-level problems return an error.
	ScoreBatch(ctx context.Context, req models.BatchRequest) (*models.BatchResponse, error)

	History(ctx context.Context, limit int) ([]models.HistoryRecord, error)
	Metrics() models.MetricsResponse
	Health() models.HealthResponse
}

// Settings tune the service independently of the scoring engine.
type Settings struct {
	DefaultPipeline string
	// AnalysisTimeout bounds fetching plus scoring of one image; zero
	// disables the per-item deadline.
	AnalysisTimeout time.Duration
	// BatchConcurrency caps concurrently scored batch items.
	BatchConcurrency int
	// Host is reported by Health when set.
	Host *config.HostInfo
}

type scoringService struct {
	analyzer  *analyzer.Analyzer
	imageRepo repository.ImageRepository
	results   repository.ResultRepository
	publisher observer.Subject
	metrics   *observer.MetricsObserver
	validator *validation.RequestValidator
	settings  Settings
}

// NewScoringService wires the service. results may be nil to disable
// history; metrics may be nil to disable counters.
func NewScoringService(
	a *analyzer.Analyzer,
	imageRepo repository.ImageRepository,
	results repository.ResultRepository,
	publisher observer.Subject,
	metrics *observer.MetricsObserver,
	validator *validation.RequestValidator,
	settings Settings,
) ScoringService {
	if settings.DefaultPipeline == "" {
		settings.DefaultPipeline = string(analyzer.PipelineFull)
	}
	if settings.BatchConcurrency <= 0 {
		settings.BatchConcurrency = 4
	}
	if publisher == nil {
		publisher = observer.NewEventPublisher()
	}
	if validator == nil {
		validator = validation.NewRequestValidator(nil, 0)
	}
	return &scoringService{
		analyzer:  a,
		imageRepo: imageRepo,
		results:   results,
		publisher: publisher,
		metrics:   metrics,
		validator: validator,
		settings:  settings,
	}
}

// resolvePipeline maps a request pipeline name, or the default, onto a
// pipeline value.
func (s *scoringService) resolvePipeline(name string) (analyzer.Pipeline, error) {
	if name == "" {
		name = s.settings.DefaultPipeline
	}
	p, err := analyzer.ParsePipeline(name, s.analyzer.Options().Fast.ResizeTo)
	if err != nil {
		return analyzer.Pipeline{}, apperrors.NewValidationError(err.Error(), err)
	}
	return p, nil
}

func (s *scoringService) ScoreImage(ctx context.Context, img *imaging.Image, source, pipeline string) (*models.ScoreResult, error) {
	p, err := s.resolvePipeline(pipeline)
	if err != nil {
		return nil, err
	}
	result, err := s.score(ctx, img, source, p, "")
	if err != nil {
		return nil, err
	}
	s.save(ctx, []models.HistoryRecord{historyRecord(result, "", 0)})
	return result, nil
}

func (s *scoringService) Score(ctx context.Context, req models.ScoreRequest) (*models.ScoreResult, error) {
	if err := s.validator.ValidateScoreRequest(req); err != nil {
		return nil, err
	}
	p, err := s.resolvePipeline(req.Pipeline)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.itemContext(ctx)
	defer cancel()

	item := models.BatchItem{Image: req.Image, URL: req.URL}
	img, err := s.load(ctx, item, "")
	if err != nil {
		return nil, err
	}
	result, err := s.score(ctx, img, sourceLabel(item, -1), p, "")
	if err != nil {
		return nil, err
	}
	s.save(ctx, []models.HistoryRecord{historyRecord(result, "", 0)})
	return result, nil
}

func (s *scoringService) ScoreBatch(ctx context.Context, req models.BatchRequest) (*models.BatchResponse, error) {
	if err := s.validator.ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	p, err := s.resolvePipeline(req.Pipeline)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	batchID := uuid.New().String()
	items := req.AllItems()
	entries := make([]models.BatchEntry, len(items))

	var g errgroup.Group
	g.SetLimit(s.settings.BatchConcurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			entries[i] = s.scoreItem(ctx, i, item, p, batchID)
			return nil
		})
	}
	g.Wait()

	elapsed := time.Since(start)
	summary := Summarize(entries, elapsed)

	created := time.Now()
	records := make([]models.HistoryRecord, len(entries))
	for i, e := range entries {
		records[i] = entryRecord(e, batchID, created)
	}
	s.save(ctx, records)

	s.publisher.NotifyObservers(ctx, observer.ScoringEvent{
		EventType:      observer.BatchCompleted,
		BatchID:        batchID,
		Pipeline:       p.String(),
		ProcessingTime: elapsed,
		Success:        summary.Failed == 0,
		Metadata: map[string]interface{}{
			"total":      summary.Total,
			"successful": summary.Successful,
			"failed":     summary.Failed,
		},
	})

	return &models.BatchResponse{
		BatchID: batchID,
		Results: entries,
		Summary: summary,
	}, nil
}

// scoreItem never fails; errors and panics become failed entries so one
// bad image does not affect its neighbours.
func (s *scoringService) scoreItem(ctx context.Context, index int, item models.BatchItem, p analyzer.Pipeline, batchID string) (entry models.BatchEntry) {
	entry = models.BatchEntry{Index: index, Source: sourceLabel(item, index), Pipeline: p.String()}
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(map[string]interface{}{
				"batch_id": batchID,
				"index":    index,
				"panic":    r,
			}).Error("Panic while scoring batch item")
			entry.Success = false
			entry.Score = nil
			entry.Result = nil
			entry.Error = fmt.Sprintf("internal error: %v", r)
		}
	}()

	if err := s.validator.ValidateItem(item); err != nil {
		entry.Error = err.Error()
		return entry
	}

	ctx, cancel := s.itemContext(ctx)
	defer cancel()

	img, err := s.load(ctx, item, batchID)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	result, err := s.score(ctx, img, entry.Source, p, batchID)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}

	score := result.Score
	entry.Success = true
	entry.Score = &score
	entry.Category = result.Category
	entry.Result = result
	return entry
}

// load decodes an inline image or fetches a remote one.
func (s *scoringService) load(ctx context.Context, item models.BatchItem, batchID string) (*imaging.Image, error) {
	if item.Image != "" {
		img, _, err := imaging.DecodeBase64(item.Image)
		if err != nil {
			return nil, apperrors.FromError(err)
		}
		return img, nil
	}

	start := time.Now()
	img, err := s.imageRepo.FetchImage(ctx, item.URL)
	if err != nil {
		s.publisher.NotifyObservers(ctx, observer.ScoringEvent{
			EventType:      observer.ImageFetchFailed,
			Source:         item.URL,
			BatchID:        batchID,
			ProcessingTime: time.Since(start),
			ErrorMessage:   err.Error(),
		})
		return nil, classifyFetchError(err)
	}
	s.publisher.NotifyObservers(ctx, observer.ScoringEvent{
		EventType:      observer.ImageFetched,
		Source:         item.URL,
		BatchID:        batchID,
		ProcessingTime: time.Since(start),
		Success:        true,
	})
	return img, nil
}

func (s *scoringService) score(ctx context.Context, img *imaging.Image, source string, p analyzer.Pipeline, batchID string) (*models.ScoreResult, error) {
	s.publisher.NotifyObservers(ctx, observer.ScoringEvent{
		EventType: observer.ScoringStarted,
		Source:    source,
		Pipeline:  string(p.Kind),
		BatchID:   batchID,
	})

	start := time.Now()
	res, err := s.analyzer.Analyze(ctx, img, p)
	elapsed := time.Since(start)
	if err == nil && (math.IsNaN(res.Score) || math.IsInf(res.Score, 0) || res.Score < 0) {
		err = apperrors.NewProcessingError(fmt.Sprintf("scorer returned invalid score %v", res.Score), nil)
	}
	if err != nil {
		appErr := apperrors.FromError(err)
		s.publisher.NotifyObservers(ctx, observer.ScoringEvent{
			EventType:      observer.ScoringFailed,
			Source:         source,
			Pipeline:       string(p.Kind),
			BatchID:        batchID,
			ProcessingTime: elapsed,
			ErrorMessage:   appErr.Error(),
		})
		return nil, appErr
	}

	s.publisher.NotifyObservers(ctx, observer.ScoringEvent{
		EventType:       observer.ScoringCompleted,
		Source:          source,
		Pipeline:        string(p.Kind),
		BatchID:         batchID,
		Score:           res.Score,
		Category:        string(res.Category),
		FallbackFits:    res.Diagnostics.FallbackFits,
		RejectedPatches: res.Diagnostics.RejectedPatches,
		ProcessingTime:  elapsed,
		Success:         true,
	})

	return &models.ScoreResult{
		ID:                uuid.New().String(),
		Source:            source,
		Timestamp:         time.Now().UTC(),
		Score:             res.Score,
		Category:          res.Category,
		Pipeline:          p.String(),
		ProcessingTimeSec: elapsed.Seconds(),
		Diagnostics:       res.Diagnostics,
	}, nil
}

func (s *scoringService) itemContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.settings.AnalysisTimeout > 0 {
		return context.WithTimeout(ctx, s.settings.AnalysisTimeout)
	}
	return context.WithCancel(ctx)
}

// save stores records when history is enabled. Failures are logged; the
// scoring result is still returned to the caller.
func (s *scoringService) save(ctx context.Context, records []models.HistoryRecord) {
	if s.results == nil || len(records) == 0 {
		return
	}
	// Persist even if the request context was cancelled after scoring
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.results.SaveResults(saveCtx, records); err != nil {
		logger.WithError(err).WithField("records", len(records)).Warn("Failed to save scoring history")
	}
}

func (s *scoringService) History(ctx context.Context, limit int) ([]models.HistoryRecord, error) {
	if s.results == nil {
		return nil, apperrors.NewNotFoundError("history is disabled", nil)
	}
	records, err := s.results.History(ctx, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to read history", err)
	}
	return records, nil
}

func (s *scoringService) Metrics() models.MetricsResponse {
	resp := models.MetricsResponse{Pool: s.analyzer.PoolStats()}
	if s.metrics != nil {
		resp.Scoring = s.metrics.Snapshot()
	}
	return resp
}

func (s *scoringService) Health() models.HealthResponse {
	resp := models.HealthResponse{Status: "ok", Version: Version, Host: s.settings.Host}
	for _, k := range s.analyzer.Pipelines() {
		resp.Pipelines = append(resp.Pipelines, string(k))
	}
	if m := s.analyzer.Model(); m != nil {
		resp.ModelName = m.Name()
		resp.ModelLayout = m.Layout()
		resp.ModelDim = m.Dim()
	}
	return resp
}
