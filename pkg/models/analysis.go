package models

import (
	"time"

	"go-naturalness-inspector/internal/analyzer"
)

// ScoreResult is the outcome of scoring one image, as returned by the API
// and stored in history.
type ScoreResult struct {
	ID                string               `json:"id"`
	Source            string               `json:"source"`
	Timestamp         time.Time            `json:"timestamp"`
	Score             float64              `json:"score"`
	Category          analyzer.Category    `json:"category"`
	Pipeline          string               `json:"pipeline"`
	ProcessingTimeSec float64              `json:"processing_time_sec"`
	Diagnostics       analyzer.Diagnostics `json:"diagnostics"`
}

// BatchEntry is one item of a batch response. Failed items carry Error and
// no score.
type BatchEntry struct {
	Index    int               `json:"index"`
	Source   string            `json:"source,omitempty"`
	Success  bool              `json:"success"`
	Score    *float64          `json:"score,omitempty"`
	Category analyzer.Category `json:"category,omitempty"`
	Pipeline string            `json:"pipeline,omitempty"`
	Error    string            `json:"error,omitempty"`
	Result   *ScoreResult      `json:"result,omitempty"`
}

// BatchSummary aggregates the successful items of a batch.
type BatchSummary struct {
	Total        int                       `json:"total"`
	Successful   int                       `json:"successful"`
	Failed       int                       `json:"failed"`
	Average      float64                   `json:"average_score"`
	Best         float64                   `json:"best_score"`
	Worst        float64                   `json:"worst_score"`
	Distribution map[analyzer.Category]int `json:"distribution"`
	TotalTimeSec float64                   `json:"total_processing_time_sec"`
}

// HistoryRecord is one stored scoring outcome.
type HistoryRecord struct {
	ID        string    `json:"id"`
	BatchID   string    `json:"batch_id,omitempty"`
	Index     int       `json:"index"`
	Source    string    `json:"source"`
	Pipeline  string    `json:"pipeline"`
	Score     float64   `json:"score"`
	Category  string    `json:"category,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
