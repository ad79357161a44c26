package analyzer

import (
	"fmt"

	"go-naturalness-inspector/internal/imaging"
)

// Options configures both scoring pipelines.
type Options struct {
	// Patch geometry for the full pipeline
	BlockSize        int
	Scales           []int
	MinPatchVariance float64

	// NoiseWeight scales the estimated noise deviation added to the pooled
	// patch distance by the full pipeline.
	NoiseWeight float64

	// CropBorder is removed from every side before either pipeline runs.
	CropBorder int

	// Workers sizes the patch worker pool; 0 uses the CPU count.
	Workers int

	Fast FastOptions
}

// FastOptions configures the fast approximation.
type FastOptions struct {
	ResizeTo      int
	SamplePatches int
	SampleSize    int
	Seed          uint32
	Calibration   Calibration
}

// Calibration maps the fast proxy onto the score scale:
// score = max(0, Offset + Gain*proxy).
type Calibration struct {
	Offset float64 `json:"offset" yaml:"offset"`
	Gain   float64 `json:"gain" yaml:"gain"`
}

const defaultSeed uint32 = 0x9e3779b9

// DefaultOptions returns default scoring options
func DefaultOptions() Options {
	return Options{
		BlockSize:        84,
		Scales:           []int{0, 1},
		MinPatchVariance: 1.0,
		NoiseWeight:      1.0,
		Fast:             DefaultFastOptions(),
	}
}

// DefaultFastOptions returns the fast pipeline defaults.
func DefaultFastOptions() FastOptions {
	return FastOptions{
		ResizeTo:      300,
		SamplePatches: 64,
		SampleSize:    16,
		Seed:          defaultSeed,
		Calibration:   Calibration{Offset: 0, Gain: 1},
	}
}

// WithBlockSize sets the patch side
func (opts Options) WithBlockSize(size int) Options {
	opts.BlockSize = size
	return opts
}

// WithScales sets the octaves tiled by the full pipeline
func (opts Options) WithScales(scales ...int) Options {
	opts.Scales = append([]int(nil), scales...)
	return opts
}

// WithNoiseWeight sets the full pipeline noise term weight
func (opts Options) WithNoiseWeight(w float64) Options {
	opts.NoiseWeight = w
	return opts
}

// WithCropBorder sets the margin removed before scoring
func (opts Options) WithCropBorder(n int) Options {
	opts.CropBorder = n
	return opts
}

// WithWorkers sizes the worker pool
func (opts Options) WithWorkers(n int) Options {
	opts.Workers = n
	return opts
}

// WithResizeTo sets the default fast pipeline target size
func (opts Options) WithResizeTo(n int) Options {
	opts.Fast.ResizeTo = n
	return opts
}

// WithCalibration sets the fast pipeline calibration
func (opts Options) WithCalibration(offset, gain float64) Options {
	opts.Fast.Calibration = Calibration{Offset: offset, Gain: gain}
	return opts
}

// Validate rejects option sets the scorers cannot run with.
func (opts Options) Validate() error {
	if opts.BlockSize < 8 {
		return fmt.Errorf("block size must be >= 8, got %d", opts.BlockSize)
	}
	if len(opts.Scales) == 0 {
		return fmt.Errorf("at least one scale is required")
	}
	for _, s := range opts.Scales {
		if s < 0 {
			return fmt.Errorf("scales must be >= 0, got %d", s)
		}
	}
	if opts.CropBorder < 0 {
		return fmt.Errorf("crop border must be >= 0, got %d", opts.CropBorder)
	}
	if opts.NoiseWeight < 0 {
		return fmt.Errorf("noise weight must be >= 0, got %g", opts.NoiseWeight)
	}
	if opts.MinPatchVariance < 0 {
		return fmt.Errorf("min patch variance must be >= 0, got %g", opts.MinPatchVariance)
	}
	if opts.Fast.ResizeTo < minResize {
		return fmt.Errorf("fast resize target must be >= %d, got %d", minResize, opts.Fast.ResizeTo)
	}
	if opts.Fast.Calibration.Gain <= 0 {
		return fmt.Errorf("fast calibration gain must be > 0, got %g", opts.Fast.Calibration.Gain)
	}
	return nil
}

func (opts Options) patchConfig() imaging.PatchConfig {
	return imaging.PatchConfig{
		BlockSize:   opts.BlockSize,
		Scales:      append([]int(nil), opts.Scales...),
		MinVariance: opts.MinPatchVariance,
	}
}
