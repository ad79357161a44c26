// Package features turns image patches into fixed-length natural scene
// statistics vectors for the full scoring pipeline.
//
// The vector layout is part of the pristine model contract: a model fitted
// against one Layout cannot be used with another.
package features

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"

	"go-naturalness-inspector/internal/imaging"
)

// Layout names the feature ordering produced by Extract.
const Layout = "nss/grad6-lgabor16-color8/v1"

// Family sizes, in concatenation order.
const (
	GradientDims  = 6
	FrequencyDims = 16
	ColorDims     = 8
	Dim           = GradientDims + FrequencyDims + ColorDims
)

// Vector is one patch's feature vector, len(Vector) == Dim.
type Vector []float64

// Stats reports per-patch extraction diagnostics.
type Stats struct {
	// Fallbacks counts GGD fits, or non-finite entries, that were
	// replaced by their family default.
	Fallbacks int
}

// Names returns a label for every vector position.
func Names() []string {
	names := make([]string, 0, Dim)
	for _, src := range []string{"mscn", "grad_x", "grad_y"} {
		names = append(names, src+"_shape", src+"_scale")
	}
	for s := range gaborCenters {
		for o := range gaborOrientations {
			prefix := fmt.Sprintf("loggabor_s%d_o%d", s, o)
			names = append(names, prefix+"_shape", prefix+"_scale")
		}
	}
	for _, src := range []string{"opp_o1", "opp_o2", "lab_a", "lab_b"} {
		names = append(names, src+"_mean", src+"_std")
	}
	return names
}

// Extractor computes feature vectors for patches of one block size. It is
// safe for concurrent use.
type Extractor struct {
	size   int
	kernel []float64
	bank   []gaborFilter
	pool   sync.Pool
}

type workspace struct {
	floats   [8][]float64
	spectrum []complex128
	product  []complex128
	line     []complex128
	lineOut  []complex128
	fft      *fourier.CmplxFFT
}

func (w *workspace) buf(i, n int) []float64 {
	if cap(w.floats[i]) < n {
		w.floats[i] = make([]float64, n)
	}
	return w.floats[i][:n]
}

// NewExtractor precomputes the filter bank for blockSize x blockSize patches.
func NewExtractor(blockSize int) *Extractor {
	e := &Extractor{
		size:   blockSize,
		kernel: gaussianKernel(mscnRadius, mscnSigma),
		bank:   buildGaborBank(blockSize),
	}
	e.pool.New = func() interface{} {
		n := blockSize
		return &workspace{
			spectrum: make([]complex128, n*n),
			product:  make([]complex128, n*n),
			line:     make([]complex128, n),
			lineOut:  make([]complex128, n),
			fft:      fourier.NewCmplxFFT(n),
		}
	}
	return e
}

// BlockSize returns the patch side this extractor was built for.
func (e *Extractor) BlockSize() int { return e.size }

// Dim returns the feature vector length.
func (e *Extractor) Dim() int { return Dim }

// Extract computes the feature vector of p. It panics if p.Size differs
// from the extractor block size.
func (e *Extractor) Extract(p imaging.Patch) (Vector, Stats) {
	if p.Size != e.size || len(p.Luma) != e.size*e.size {
		panic(fmt.Sprintf("features: patch size %d does not match extractor block size %d", p.Size, e.size))
	}

	ws := e.pool.Get().(*workspace)
	defer e.pool.Put(ws)

	var stats Stats
	n := e.size
	v := make(Vector, 0, Dim)

	v = appendFit(v, mscn(p.Luma, n, e.kernel, ws), &stats)

	gx, gy := ws.buf(6, n*n), ws.buf(7, n*n)
	sobel(p.Luma, n, gx, gy)
	v = appendFit(v, gx, &stats)
	v = appendFit(v, gy, &stats)

	var fb int
	v, fb = e.gaborResponses(p.Luma, ws, v)
	stats.Fallbacks += fb

	r, g, b := p.RGB()
	v = colorMoments(r, g, b, ws, v)

	stats.Fallbacks += sanitize(v)
	return v, stats
}

func appendFit(dst []float64, x []float64, stats *Stats) []float64 {
	shape, scale, ok := FitGGD(x)
	if !ok {
		stats.Fallbacks++
	}
	return append(dst, shape, scale)
}

// sanitize replaces non-finite entries with their family default and
// returns how many were replaced.
func sanitize(v Vector) int {
	replaced := 0
	for i, x := range v {
		if isFinite(x) {
			continue
		}
		replaced++
		switch {
		case i < GradientDims+FrequencyDims && i%2 == 0:
			v[i] = DefaultShape
		case i < GradientDims+FrequencyDims:
			v[i] = DefaultScale
		default:
			v[i] = 0
		}
	}
	return replaced
}
