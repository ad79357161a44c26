package analyzer

import (
	"context"

	"go-naturalness-inspector/internal/imaging"
)

// Scorer is implemented by every pipeline variant.
type Scorer interface {
	// Score returns a finite, non-negative score for img; lower is better.
	Score(ctx context.Context, img *imaging.Image) (Result, error)
	Pipeline() Pipeline
	Table() *CategoryTable
}

// MetricsCalculator computes the cheap image statistics used by the fast
// pipeline.
type MetricsCalculator interface {
	Calculate(img *imaging.Image) ProxyMetrics
	LaplacianVariance(luma []float64, w, h int) float64
	NoiseSigma(luma []float64, w, h int) float64
}
