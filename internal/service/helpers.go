package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"go-naturalness-inspector/internal/analyzer"
	apperrors "go-naturalness-inspector/internal/errors"
	"go-naturalness-inspector/internal/imaging"
	"go-naturalness-inspector/internal/repository"
	"go-naturalness-inspector/pkg/models"
)

// Summarize aggregates batch entries. Best is the lowest score since lower
// scores are more natural.
func Summarize(entries []models.BatchEntry, elapsed time.Duration) models.BatchSummary {
	summary := models.BatchSummary{
		Total:        len(entries),
		Distribution: make(map[analyzer.Category]int),
		TotalTimeSec: elapsed.Seconds(),
	}

	var sum float64
	best, worst := math.Inf(1), math.Inf(-1)
	for _, e := range entries {
		if !e.Success || e.Score == nil {
			summary.Failed++
			continue
		}
		summary.Successful++
		sum += *e.Score
		best = math.Min(best, *e.Score)
		worst = math.Max(worst, *e.Score)
		summary.Distribution[e.Category]++
	}

	if summary.Successful > 0 {
		summary.Average = sum / float64(summary.Successful)
		summary.Best = best
		summary.Worst = worst
	}
	return summary
}

func sourceLabel(item models.BatchItem, index int) string {
	if item.URL != "" {
		return item.URL
	}
	if index < 0 {
		return "upload"
	}
	return fmt.Sprintf("upload[%d]", index)
}

func historyRecord(r *models.ScoreResult, batchID string, index int) models.HistoryRecord {
	return models.HistoryRecord{
		ID:        r.ID,
		BatchID:   batchID,
		Index:     index,
		Source:    r.Source,
		Pipeline:  r.Pipeline,
		Score:     r.Score,
		Category:  string(r.Category),
		Success:   true,
		CreatedAt: r.Timestamp,
	}
}

func entryRecord(e models.BatchEntry, batchID string, created time.Time) models.HistoryRecord {
	if e.Result != nil {
		rec := historyRecord(e.Result, batchID, e.Index)
		rec.CreatedAt = created
		return rec
	}
	return models.HistoryRecord{
		ID:        uuid.New().String(),
		BatchID:   batchID,
		Index:     e.Index,
		Source:    e.Source,
		Pipeline:  e.Pipeline,
		Success:   false,
		Error:     e.Error,
		CreatedAt: created,
	}
}

// classifyFetchError keeps validation and decode failures distinct from
// network failures.
func classifyFetchError(err error) error {
	var appErr *apperrors.AppError
	var invalid *imaging.InvalidImageError
	switch {
	case stderrors.As(err, &appErr):
		return appErr
	case stderrors.As(err, &invalid):
		return apperrors.NewInvalidImageError(invalid.Reason, err)
	case stderrors.Is(err, repository.ErrInvalidImageURL):
		return apperrors.NewValidationError("invalid image URL", err)
	case stderrors.Is(err, repository.ErrBlobStorageDisabled):
		return apperrors.NewValidationError(err.Error(), err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("image fetch timed out", err)
	}
	return apperrors.NewNetworkError("failed to fetch image", err)
}
