package models

import (
	"go-naturalness-inspector/internal/analyzer"
	"go-naturalness-inspector/internal/config"
	"go-naturalness-inspector/internal/observer"
)

// ScoreRequest scores one image given either as base64 (optionally a data
// URL) or as a remote URL.
type ScoreRequest struct {
	Image    string `json:"image,omitempty"`
	URL      string `json:"url,omitempty"`
	Pipeline string `json:"pipeline,omitempty"`
}

// BatchItem is one image of a batch request.
type BatchItem struct {
	Image string `json:"image,omitempty"`
	URL   string `json:"url,omitempty"`
}

// BatchRequest scores several images with one pipeline. Images holds bare
// base64 payloads; Items allows mixing payloads and URLs. Images come
// first in the response order.
type BatchRequest struct {
	Images   []string    `json:"images,omitempty"`
	Items    []BatchItem `json:"items,omitempty"`
	Pipeline string      `json:"pipeline,omitempty"`
}

// AllItems flattens Images and Items into one ordered list.
func (r BatchRequest) AllItems() []BatchItem {
	items := make([]BatchItem, 0, len(r.Images)+len(r.Items))
	for _, img := range r.Images {
		items = append(items, BatchItem{Image: img})
	}
	return append(items, r.Items...)
}

// ScoreResponse wraps a single result.
type ScoreResponse struct {
	Success bool         `json:"success"`
	Result  *ScoreResult `json:"result,omitempty"`
}

// BatchResponse holds per-item results in request order and the summary.
type BatchResponse struct {
	BatchID string       `json:"batch_id"`
	Results []BatchEntry `json:"results"`
	Summary BatchSummary `json:"summary"`
}

// HealthResponse reports liveness and what the service can score.
type HealthResponse struct {
	Status      string           `json:"status"`
	Version     string           `json:"version"`
	Pipelines   []string         `json:"pipelines"`
	ModelName   string           `json:"model_name,omitempty"`
	ModelLayout string           `json:"model_layout,omitempty"`
	ModelDim    int              `json:"model_dim,omitempty"`
	Host        *config.HostInfo `json:"host,omitempty"`
}

// HistoryResponse lists recent scoring outcomes, newest first.
type HistoryResponse struct {
	Records []HistoryRecord `json:"records"`
}

// MetricsResponse exposes service counters.
type MetricsResponse struct {
	Scoring observer.MetricsSnapshot `json:"scoring"`
	Pool    analyzer.PoolStats       `json:"worker_pool"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}
