package analyzer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arbovm/levenshtein"
)

// PipelineKind discriminates the scoring variants.
type PipelineKind string

const (
	PipelineFull PipelineKind = "full"
	PipelineFast PipelineKind = "fast"
)

// Pipeline selects a scorer. ResizeTo is only meaningful for the fast
// variant and is zero for Full.
type Pipeline struct {
	Kind     PipelineKind `json:"kind"`
	ResizeTo int          `json:"resize_to,omitempty"`
}

// Full selects the patch-feature pipeline.
func Full() Pipeline { return Pipeline{Kind: PipelineFull} }

// Fast selects the downsampled proxy pipeline.
func Fast(resizeTo int) Pipeline { return Pipeline{Kind: PipelineFast, ResizeTo: resizeTo} }

func (p Pipeline) String() string {
	if p.Kind == PipelineFast && p.ResizeTo > 0 {
		return fmt.Sprintf("%s:%d", p.Kind, p.ResizeTo)
	}
	return string(p.Kind)
}

// minResize keeps the fast path above the size its 3x3 operators need.
const minResize = 16

var pipelineAliases = map[string]PipelineKind{
	"full":      PipelineFull,
	"niqe":      PipelineFull,
	"il-niqe":   PipelineFull,
	"fast":      PipelineFast,
	"optimized": PipelineFast,
	"quick":     PipelineFast,
}

// UnknownPipelineError is returned by ParsePipeline for unrecognized names.
type UnknownPipelineError struct {
	Name       string
	Suggestion string
}

func (e *UnknownPipelineError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown pipeline %q, did you mean %q?", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("unknown pipeline %q (want full or fast[:size])", e.Name)
}

// ParsePipeline parses "full", "fast" or "fast:<size>". A bare "fast" uses
// defaultResize.
func ParsePipeline(s string, defaultResize int) (Pipeline, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	size := ""
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name, size = name[:i], name[i+1:]
	}

	kind, ok := pipelineAliases[name]
	if !ok {
		return Pipeline{}, &UnknownPipelineError{Name: s, Suggestion: suggestPipeline(name)}
	}
	if kind == PipelineFull {
		if size != "" {
			return Pipeline{}, fmt.Errorf("pipeline %q does not take a size", s)
		}
		return Full(), nil
	}

	resize := defaultResize
	if size != "" {
		n, err := strconv.Atoi(size)
		if err != nil {
			return Pipeline{}, fmt.Errorf("invalid fast pipeline size %q: %w", size, err)
		}
		resize = n
	}
	if resize < minResize {
		return Pipeline{}, fmt.Errorf("fast pipeline size must be >= %d, got %d", minResize, resize)
	}
	return Fast(resize), nil
}

func suggestPipeline(name string) string {
	best, bestDist := "", 4
	for alias := range pipelineAliases {
		d := levenshtein.Distance(name, alias)
		if d < bestDist || (d == bestDist && alias < best) {
			best, bestDist = alias, d
		}
	}
	return best
}
