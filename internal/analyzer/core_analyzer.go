package analyzer

import (
	"context"
	"fmt"

	"go-naturalness-inspector/internal/imaging"
	"go-naturalness-inspector/internal/pristine"
)

// Analyzer owns the pristine model, the shared worker pool and the scorers
// built on them. It is safe for concurrent use.
type Analyzer struct {
	model      *pristine.Model
	opts       Options
	workerPool *WorkerPool
	full       *FullScorer
	fast       *FastScorer
}

// NewAnalyzer validates options and pairs the model with the feature
// extractor. A nil model yields an analyzer that only serves the fast
// pipeline.
func NewAnalyzer(model *pristine.Model, opts Options) (*Analyzer, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring options: %w", err)
	}

	workerPool := NewWorkerPool(opts.Workers)
	a := &Analyzer{
		model:      model,
		opts:       opts,
		workerPool: workerPool,
		fast:       NewFastScorer(opts.Fast, opts.CropBorder),
	}
	if model != nil {
		full, err := NewFullScorer(model, opts, workerPool)
		if err != nil {
			workerPool.Close()
			return nil, err
		}
		a.full = full
	}
	workerPool.Start()
	return a, nil
}

// ScorerFor resolves a pipeline to its scorer.
func (a *Analyzer) ScorerFor(p Pipeline) (Scorer, error) {
	switch p.Kind {
	case PipelineFull:
		if a.full == nil {
			return nil, ErrNoModel
		}
		return a.full, nil
	case PipelineFast:
		if p.ResizeTo <= 0 || p.ResizeTo == a.fast.opts.ResizeTo {
			return a.fast, nil
		}
		if p.ResizeTo < minResize {
			return nil, fmt.Errorf("fast pipeline size must be >= %d, got %d", minResize, p.ResizeTo)
		}
		opts := a.opts.Fast
		opts.ResizeTo = p.ResizeTo
		return NewFastScorer(opts, a.opts.CropBorder), nil
	}
	return nil, &UnknownPipelineError{Name: string(p.Kind), Suggestion: suggestPipeline(string(p.Kind))}
}

// Analyze scores img with the selected pipeline.
func (a *Analyzer) Analyze(ctx context.Context, img *imaging.Image, p Pipeline) (Result, error) {
	scorer, err := a.ScorerFor(p)
	if err != nil {
		return Result{}, err
	}
	return scorer.Score(ctx, img)
}

// Model returns the pristine model, or nil for fast-only analyzers.
func (a *Analyzer) Model() *pristine.Model { return a.model }

// Options returns the options the analyzer was built with.
func (a *Analyzer) Options() Options { return a.opts }

// Pipelines lists the pipeline kinds this analyzer can serve.
func (a *Analyzer) Pipelines() []PipelineKind {
	if a.full == nil {
		return []PipelineKind{PipelineFast}
	}
	return []PipelineKind{PipelineFull, PipelineFast}
}

// PoolStats returns worker pool counters.
func (a *Analyzer) PoolStats() PoolStats { return a.workerPool.GetStats() }

// Close stops the worker pool.
func (a *Analyzer) Close() error {
	a.workerPool.Close()
	return nil
}
