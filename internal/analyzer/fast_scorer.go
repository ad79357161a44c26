package analyzer

import (
	"context"
	"math"
	"time"

	"go-naturalness-inspector/internal/imaging"
)

// FastScorer approximates the full score from a few global statistics of a
// downsampled copy of the image.
type FastScorer struct {
	opts       FastOptions
	cropBorder int
	calc       MetricsCalculator
}

// NewFastScorer builds a fast scorer. A zero ResizeTo falls back to the
// default target size.
func NewFastScorer(opts FastOptions, cropBorder int) *FastScorer {
	def := DefaultFastOptions()
	if opts.ResizeTo <= 0 {
		opts.ResizeTo = def.ResizeTo
	}
	if opts.SamplePatches <= 0 {
		opts.SamplePatches = def.SamplePatches
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = def.SampleSize
	}
	if opts.Calibration.Gain <= 0 {
		opts.Calibration = def.Calibration
	}
	return &FastScorer{
		opts:       opts,
		cropBorder: cropBorder,
		calc:       NewMetricsCalculator(opts),
	}
}

// Pipeline implements Scorer.
func (s *FastScorer) Pipeline() Pipeline { return Fast(s.opts.ResizeTo) }

// Table implements Scorer. The table is shared by every resize target.
func (s *FastScorer) Table() *CategoryTable { return FastTable }

// Score implements Scorer.
func (s *FastScorer) Score(ctx context.Context, img *imaging.Image) (Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := img.Validate(); err != nil {
		return Result{}, err
	}
	cropped, err := imaging.CropBorder(img, s.cropBorder)
	if err != nil {
		return Result{}, err
	}
	small := imaging.ResizeLongest(cropped, s.opts.ResizeTo)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	metrics := s.calc.Calculate(small)
	c := s.opts.Calibration
	score := math.Max(0, c.Offset+c.Gain*metrics.Proxy)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		score = 0
	}

	return Result{
		Score:    score,
		Category: FastTable.Categorize(score),
		Pipeline: PipelineFast,
		Diagnostics: Diagnostics{
			Width:             small.Width,
			Height:            small.Height,
			ResizeTo:          s.opts.ResizeTo,
			Proxy:             &metrics,
			ProcessingTimeSec: time.Since(start).Seconds(),
		},
	}, nil
}
