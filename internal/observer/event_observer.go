package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ScoringEvent represents a scoring lifecycle event
type ScoringEvent struct {
	EventType       EventType              `json:"event_type"`
	Timestamp       time.Time              `json:"timestamp"`
	Source          string                 `json:"source"`
	Pipeline        string                 `json:"pipeline,omitempty"`
	BatchID         string                 `json:"batch_id,omitempty"`
	Score           float64                `json:"score,omitempty"`
	Category        string                 `json:"category,omitempty"`
	FallbackFits    int                    `json:"fallback_fits,omitempty"`
	RejectedPatches int                    `json:"rejected_patches,omitempty"`
	ProcessingTime  time.Duration          `json:"processing_time"`
	Success         bool                   `json:"success"`
	ErrorMessage    string                 `json:"error_message,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of scoring event
type EventType string

const (
	// ScoringStarted when scoring begins
	ScoringStarted EventType = "scoring_started"
	// ScoringCompleted when scoring finishes successfully
	ScoringCompleted EventType = "scoring_completed"
	// ScoringFailed when scoring fails
	ScoringFailed EventType = "scoring_failed"
	// ImageFetched when a remote image is fetched
	ImageFetched EventType = "image_fetched"
	// ImageFetchFailed when a remote image cannot be fetched
	ImageFetchFailed EventType = "image_fetch_failed"
	// BatchCompleted when every item of a batch has been scored
	BatchCompleted EventType = "batch_completed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event ScoringEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event ScoringEvent)
}

// LoggingObserver logs scoring events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles scoring events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event ScoringEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"source":          event.Source,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}
	if event.Pipeline != "" {
		fields["pipeline"] = event.Pipeline
	}
	if event.BatchID != "" {
		fields["batch_id"] = event.BatchID
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	switch event.EventType {
	case ScoringStarted:
		o.logger.WithFields(fields).Debug("Scoring started")
	case ScoringCompleted:
		fields["score"] = event.Score
		fields["category"] = event.Category
		if event.FallbackFits > 0 {
			fields["fallback_fits"] = event.FallbackFits
		}
		o.logger.WithFields(fields).Info("Scoring completed")
	case ScoringFailed:
		o.logger.WithFields(fields).Error("Scoring failed")
	case ImageFetched:
		o.logger.WithFields(fields).Debug("Image fetched successfully")
	case ImageFetchFailed:
		o.logger.WithFields(fields).Error("Image fetch failed")
	case BatchCompleted:
		o.logger.WithFields(fields).Info("Batch completed")
	default:
		o.logger.WithFields(fields).Info("Scoring event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsSnapshot is a point-in-time copy of the collected counters.
type MetricsSnapshot struct {
	TotalScored         int64            `json:"total_scored"`
	Successful          int64            `json:"successful"`
	Failed              int64            `json:"failed"`
	FetchFailures       int64            `json:"fetch_failures"`
	Batches             int64            `json:"batches"`
	FallbackFits        int64            `json:"fallback_fits"`
	RejectedPatches     int64            `json:"rejected_patches"`
	ByPipeline          map[string]int64 `json:"by_pipeline"`
	ByCategory          map[string]int64 `json:"by_category"`
	TotalProcessingTime time.Duration    `json:"total_processing_time"`
	AvgProcessingTime   time.Duration    `json:"avg_processing_time"`
}

// MetricsObserver collects counters from scoring events
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalScored         int64
	successful          int64
	failed              int64
	fetchFailures       int64
	batches             int64
	fallbackFits        int64
	rejectedPatches     int64
	byPipeline          map[string]int64
	byCategory          map[string]int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		byPipeline: make(map[string]int64),
		byCategory: make(map[string]int64),
	}
}

// OnEvent handles scoring events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event ScoringEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case ScoringStarted:
		o.totalScored++
		if event.Pipeline != "" {
			o.byPipeline[event.Pipeline]++
		}
	case ScoringCompleted:
		o.successful++
		o.totalProcessingTime += event.ProcessingTime
		o.fallbackFits += int64(event.FallbackFits)
		o.rejectedPatches += int64(event.RejectedPatches)
		if event.Category != "" {
			o.byCategory[event.Category]++
		}
	case ScoringFailed:
		o.failed++
	case ImageFetchFailed:
		o.fetchFailures++
	case BatchCompleted:
		o.batches++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// Snapshot returns current metrics
func (o *MetricsObserver) Snapshot() MetricsSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	s := MetricsSnapshot{
		TotalScored:         o.totalScored,
		Successful:          o.successful,
		Failed:              o.failed,
		FetchFailures:       o.fetchFailures,
		Batches:             o.batches,
		FallbackFits:        o.fallbackFits,
		RejectedPatches:     o.rejectedPatches,
		ByPipeline:          make(map[string]int64, len(o.byPipeline)),
		ByCategory:          make(map[string]int64, len(o.byCategory)),
		TotalProcessingTime: o.totalProcessingTime,
	}
	for k, v := range o.byPipeline {
		s.ByPipeline[k] = v
	}
	for k, v := range o.byCategory {
		s.ByCategory[k] = v
	}
	if o.successful > 0 {
		s.AvgProcessingTime = o.totalProcessingTime / time.Duration(o.successful)
	}
	return s
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers event to every observer in subscription order.
// Delivery is synchronous so counters are current when a request returns;
// observers must not block.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event ScoringEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		notify(ctx, observer, event)
	}
}

func notify(ctx context.Context, obs Observer, event ScoringEvent) {
	defer func() {
		if r := recover(); r != nil {
			// Log panic but don't crash the application
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
