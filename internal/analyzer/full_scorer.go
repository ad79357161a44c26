package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go-naturalness-inspector/internal/features"
	"go-naturalness-inspector/internal/imaging"
	"go-naturalness-inspector/internal/pristine"
)

// ErrNoModel is returned when the full pipeline is requested from an
// analyzer built without a pristine model.
var ErrNoModel = errors.New("full pipeline requires a pristine model")

// FullScorer implements the patch-feature pipeline: tile, extract natural
// scene statistics per patch, measure Mahalanobis distance to the
// pristine model and pool. The score is the pooled distance plus the
// weighted noise deviation of the cropped image.
type FullScorer struct {
	model       *pristine.Model
	extractor   *features.Extractor
	pool        *WorkerPool
	patches     imaging.PatchConfig
	cropBorder  int
	noiseWeight float64
}

// NewFullScorer pairs a model with a feature extractor. The model
// dimension and layout are checked here so that a mismatch surfaces at
// load time rather than on the first image. pool may be nil, in which case
// patches are processed sequentially.
func NewFullScorer(model *pristine.Model, opts Options, pool *WorkerPool) (*FullScorer, error) {
	if model == nil {
		return nil, ErrNoModel
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := model.CheckCompatible(features.Dim, features.Layout); err != nil {
		return nil, err
	}
	return &FullScorer{
		model:       model,
		extractor:   features.NewExtractor(opts.BlockSize),
		pool:        pool,
		patches:     opts.patchConfig(),
		cropBorder:  opts.CropBorder,
		noiseWeight: opts.NoiseWeight,
	}, nil
}

// Pipeline implements Scorer.
func (s *FullScorer) Pipeline() Pipeline { return Full() }

// Table implements Scorer.
func (s *FullScorer) Table() *CategoryTable { return FullTable }

// Score implements Scorer.
func (s *FullScorer) Score(ctx context.Context, img *imaging.Image) (Result, error) {
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
	set, err := imaging.ExtractPatches(cropped, s.patches)
	if err != nil {
		return Result{}, err
	}

	vectors := make([][]float64, len(set.Patches))
	fallbacks := make([]int, len(set.Patches))
	if err := s.extractAll(ctx, set.Patches, vectors, fallbacks); err != nil {
		return Result{}, err
	}

	distance, _ := Aggregate(vectors, s.model)
	noise := imageNoise(cropped)
	score := distance + s.noiseWeight*noise
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
		return Result{}, fmt.Errorf("full pipeline produced invalid score %v", score)
	}

	var fallbackFits int
	for _, n := range fallbacks {
		fallbackFits += n
	}
	return Result{
		Score:    score,
		Category: FullTable.Categorize(score),
		Pipeline: PipelineFull,
		Diagnostics: Diagnostics{
			Width:             cropped.Width,
			Height:            cropped.Height,
			Patches:           len(set.Patches),
			RejectedPatches:   set.Rejected,
			UsedRejected:      set.UsedRejected,
			FallbackFits:      fallbackFits,
			Pooling:           string(s.model.Pooling()),
			Distance:          distance,
			NoiseSigma:        noise,
			ProcessingTimeSec: time.Since(start).Seconds(),
		},
	}, nil
}

// extractAll fills vectors[i] for every patch. Each job checks ctx before
// doing any work, so cancellation takes effect within one patch.
func (s *FullScorer) extractAll(ctx context.Context, patches []imaging.Patch, vectors [][]float64, fallbacks []int) error {
	extract := func(i int) {
		if ctx.Err() != nil {
			return
		}
		v, stats := s.extractor.Extract(patches[i])
		vectors[i] = v
		fallbacks[i] = stats.Fallbacks
	}

	if s.pool == nil {
		for i := range patches {
			if err := ctx.Err(); err != nil {
				return err
			}
			extract(i)
		}
	} else {
		var wg sync.WaitGroup
		for i := range patches {
			if ctx.Err() != nil {
				break
			}
			i := i
			wg.Add(1)
			job := func() {
				defer wg.Done()
				extract(i)
			}
			if !s.pool.Submit(job) {
				job()
			}
		}
		wg.Wait()
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	for i, v := range vectors {
		if v == nil {
			return fmt.Errorf("feature extraction failed for patch %d", i)
		}
	}
	return nil
}
