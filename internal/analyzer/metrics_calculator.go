package analyzer

import (
	"math"
	"sync"

	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/stat"

	"go-naturalness-inspector/internal/imaging"
)

// Penalty shape of the fast proxy. Each term is zero for a well exposed,
// sharp, clean image and grows linearly past its knee.
const (
	noiseWeight = 2.0

	sharpnessKnee = 300.0 // Laplacian variance
	blurWeight    = 8.0

	contrastKnee   = 40.0
	contrastWeight = 0.5

	darkKnee       = 40.0
	brightKnee     = 215.0
	exposureWeight = 0.5

	localContrastKnee   = 12.0
	localContrastWeight = 0.5

	imbalanceKnee   = 50.0
	imbalanceWeight = 0.25

	saturationKnee   = 0.85
	saturationWeight = 40.0
)

// statStrips is the number of row strips summed by channelStats.
const statStrips = 8

// Penalty combines the proxy statistics into the uncalibrated fast score.
func (m ProxyMetrics) Penalty() float64 {
	p := noiseWeight * m.NoiseSigma
	p += blurWeight * math.Max(0, math.Log(sharpnessKnee/(m.LaplacianVariance+1)))
	p += contrastWeight * math.Max(0, contrastKnee-m.Contrast)
	p += exposureWeight * (math.Max(0, darkKnee-m.Brightness) + math.Max(0, m.Brightness-brightKnee))
	p += localContrastWeight * math.Max(0, localContrastKnee-m.LocalContrast)
	p += imbalanceWeight * math.Max(0, m.ColorImbalance-imbalanceKnee)
	p += saturationWeight * math.Max(0, m.Saturation-saturationKnee)
	return p
}

// metricsCalculator implements MetricsCalculator with gonum statistics
type metricsCalculator struct {
	samplePatches int
	sampleSize    int
	seed          uint32
	slicePool     sync.Pool
}

// NewMetricsCalculator creates a calculator that samples local contrast
// deterministically from seed.
func NewMetricsCalculator(opts FastOptions) MetricsCalculator {
	seed := opts.Seed
	if seed == 0 {
		seed = defaultSeed
	}
	return &metricsCalculator{
		samplePatches: opts.SamplePatches,
		sampleSize:    opts.SampleSize,
		seed:          seed,
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
	}
}

// Calculate computes every proxy statistic of img.
func (mc *metricsCalculator) Calculate(img *imaging.Image) ProxyMetrics {
	luma := img.Luminance()
	w, h := img.Width, img.Height

	mean, std := stat.MeanStdDev(luma, nil)
	if len(luma) < 2 {
		std = 0
	}
	channel, saturation := mc.channelStats(img)

	m := ProxyMetrics{
		LaplacianVariance: mc.LaplacianVariance(luma, w, h),
		NoiseSigma:        mc.NoiseSigma(luma, w, h),
		Contrast:          std,
		Brightness:        mean,
		LocalContrast:     mc.localContrast(luma, w, h),
		ColorImbalance:    maxOf(channel) - minOf(channel),
		Saturation:        saturation,
	}
	m.Proxy = m.Penalty()
	return m
}

// channelStats returns per-channel means and the mean HSV saturation.
// Rows are split into a fixed number of strips processed in parallel;
// partial sums are kept per strip and added in strip order so results do
// not depend on scheduling or on the host CPU count.
func (mc *metricsCalculator) channelStats(img *imaging.Image) ([3]float64, float64) {
	w, h := img.Width, img.Height
	r, g, b := img.RGB()

	numStrips := statStrips
	if h < numStrips {
		numStrips = h
	}
	if numStrips <= 0 {
		numStrips = 1
	}
	rowsPerStrip := (h + numStrips - 1) / numStrips // ceil division

	type stripResult struct {
		r, g, b, sat float64
	}
	strips := make([]stripResult, numStrips)
	var wg sync.WaitGroup

	for i := 0; i < numStrips; i++ {
		startY := i * rowsPerStrip
		endY := startY + rowsPerStrip
		if endY > h {
			endY = h
		}
		if startY >= endY {
			continue
		}
		wg.Add(1)
		go func(i, startY, endY int) {
			defer wg.Done()
			var s stripResult
			for idx := startY * w; idx < endY*w; idx++ {
				s.r += r[idx]
				s.g += g[idx]
				s.b += b[idx]
				_, sat, _ := rgbToHSV(r[idx]/255, g[idx]/255, b[idx]/255)
				s.sat += sat
			}
			strips[i] = s
		}(i, startY, endY)
	}
	wg.Wait()

	var total stripResult
	for _, s := range strips {
		total.r += s.r
		total.g += s.g
		total.b += s.b
		total.sat += s.sat
	}
	n := float64(w * h)
	return [3]float64{total.r / n, total.g / n, total.b / n}, total.sat / n
}

// LaplacianVariance computes the variance of the 4-neighbour Laplacian.
func (mc *metricsCalculator) LaplacianVariance(luma []float64, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}

	// Get reusable slice from pool
	data := mc.slicePool.Get().([]float64)
	defer func() { mc.slicePool.Put(data[:0]) }()

	// Ensure capacity for all Laplacian values
	if cap(data) < (w-2)*(h-2) {
		data = make([]float64, 0, (w-2)*(h-2))
	}

	// Laplacian kernel: [0, 1, 0; 1, -4, 1; 0, 1, 0]
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			laplacian := -4*luma[i] + luma[i-w] + luma[i+w] + luma[i-1] + luma[i+1]
			data = append(data, laplacian)
		}
	}

	return stat.Variance(data, nil)
}

// NoiseSigma estimates additive noise with Immerkaer's method.
func (mc *metricsCalculator) NoiseSigma(luma []float64, w, h int) float64 {
	return noiseSigma(luma, w, h)
}

// noiseSigma is the mean absolute response of a Laplacian-difference mask
// that cancels smooth and one-dimensional structure, scaled so that i.i.d.
// Gaussian noise of deviation s yields s.
func noiseSigma(plane []float64, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}
	var sum float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			v := plane[i-w-1] - 2*plane[i-w] + plane[i-w+1] -
				2*plane[i-1] + 4*plane[i] - 2*plane[i+1] +
				plane[i+w-1] - 2*plane[i+w] + plane[i+w+1]
			sum += math.Abs(v)
		}
	}
	return sum * math.Sqrt(math.Pi/2) / (6 * float64(w-2) * float64(h-2))
}

// imageNoise averages noiseSigma over the channels of img.
func imageNoise(img *imaging.Image) float64 {
	if len(img.Planes) == 0 {
		return 0
	}
	var total float64
	for _, p := range img.Planes {
		total += noiseSigma(p, img.Width, img.Height)
	}
	return total / float64(len(img.Planes))
}

// localContrast is the mean standard deviation of randomly placed windows.
// The generator is reseeded on every call so the same image always
// samples the same windows.
func (mc *metricsCalculator) localContrast(luma []float64, w, h int) float64 {
	size := mc.sampleSize
	if size <= 1 || mc.samplePatches <= 0 {
		return 0
	}
	if size > w {
		size = w
	}
	if size > h {
		size = h
	}
	if size < 2 {
		return 0
	}

	var rng fastrand.RNG
	rng.Seed(mc.seed)

	window := make([]float64, size*size)
	var total float64
	for n := 0; n < mc.samplePatches; n++ {
		x0 := int(rng.Uint32n(uint32(w - size + 1)))
		y0 := int(rng.Uint32n(uint32(h - size + 1)))
		for y := 0; y < size; y++ {
			copy(window[y*size:(y+1)*size], luma[(y0+y)*w+x0:(y0+y)*w+x0+size])
		}
		total += stat.StdDev(window, nil)
	}
	return total / float64(mc.samplePatches)
}

// rgbToHSV provides RGB to HSV conversion
func rgbToHSV(r, g, b float64) (h, s, v float64) {
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	delta := max - min

	v = max

	if max == 0 {
		s = 0
	} else {
		s = delta / max
	}

	if delta == 0 {
		h = 0
	} else if max == r {
		h = 60 * (((g - b) / delta) + 0)
	} else if max == g {
		h = 60 * (((b - r) / delta) + 2)
	} else {
		h = 60 * (((r - g) / delta) + 4)
	}

	if h < 0 {
		h += 360
	}

	return h, s, v
}

func maxOf(v [3]float64) float64 { return math.Max(v[0], math.Max(v[1], v[2])) }

func minOf(v [3]float64) float64 { return math.Min(v[0], math.Min(v[1], v[2])) }
