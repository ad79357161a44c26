// Package imagingtest builds deterministic synthetic images for tests.
package imagingtest

import (
	"math"
	"math/rand"

	"go-naturalness-inspector/internal/imaging"
)

// Texture renders a colored natural-looking scene around mid-gray: a sum
// of oriented sinusoids with a 1/f-like amplitude falloff, a handful of
// tinted rectangles for hard edges, and slow color drifts. The same seed
// always yields the same pixels.
func Texture(w, h int, seed int64) *imaging.Image {
	rng := rand.New(rand.NewSource(seed))

	type wave struct{ fx, fy, phase, amp float64 }
	waves := make([]wave, 12)
	for i := range waves {
		f := 0.01 + 0.19*rng.Float64()
		theta := rng.Float64() * math.Pi
		waves[i] = wave{
			fx:    f * math.Cos(theta),
			fy:    f * math.Sin(theta),
			phase: rng.Float64() * 2 * math.Pi,
			amp:   (6 + 8*rng.Float64()) * math.Sqrt(0.05/f),
		}
	}

	type rect struct {
		x0, y0, x1, y1 int
		tint           [3]float64
	}
	rects := make([]rect, 6)
	for i := range rects {
		x0, y0 := rng.Intn(w), rng.Intn(h)
		rects[i] = rect{
			x0: x0, y0: y0,
			x1: x0 + w/8 + rng.Intn(w/3+1),
			y1: y0 + h/8 + rng.Intn(h/3+1),
			tint: [3]float64{
				60*rng.Float64() - 30,
				60*rng.Float64() - 30,
				60*rng.Float64() - 30,
			},
		}
	}

	drift := [3]struct{ fx, fy, phase, amp float64 }{}
	for c := range drift {
		drift[c].fx = 0.002 + 0.01*rng.Float64()
		drift[c].fy = 0.002 + 0.01*rng.Float64()
		drift[c].phase = rng.Float64() * 2 * math.Pi
		drift[c].amp = 10 + 15*rng.Float64()
	}

	img := imaging.NewImage(w, h, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			l := 128.0
			for _, wv := range waves {
				l += wv.amp * math.Sin(2*math.Pi*(wv.fx*float64(x)+wv.fy*float64(y))+wv.phase)
			}
			var tint [3]float64
			for _, r := range rects {
				if x >= r.x0 && x < r.x1 && y >= r.y0 && y < r.y1 {
					for c := range tint {
						tint[c] += r.tint[c]
					}
				}
			}
			i := y*w + x
			for c := 0; c < 3; c++ {
				d := drift[c]
				v := l + tint[c] + d.amp*math.Sin(2*math.Pi*(d.fx*float64(x)+d.fy*float64(y))+d.phase)
				img.Planes[c][i] = clamp(v)
			}
		}
	}
	return img
}

// Flat returns a uniform image.
func Flat(w, h, channels int, value float64) *imaging.Image {
	img := imaging.NewImage(w, h, channels)
	for _, p := range img.Planes {
		for i := range p {
			p[i] = value
		}
	}
	return img
}

// AddNoise returns a copy of img with i.i.d. Gaussian noise of the given
// standard deviation added to every sample, clamped to [0,255].
func AddNoise(img *imaging.Image, sigma float64, seed int64) *imaging.Image {
	out := img.Clone()
	if sigma <= 0 {
		return out
	}
	rng := rand.New(rand.NewSource(seed))
	for _, p := range out.Planes {
		for i := range p {
			p[i] = clamp(p[i] + sigma*rng.NormFloat64())
		}
	}
	return out
}

// BoxBlur returns a copy of img averaged over a (2r+1)^2 window with
// replicated borders.
func BoxBlur(img *imaging.Image, r int) *imaging.Image {
	out := img.Clone()
	if r <= 0 {
		return out
	}
	w, h := img.Width, img.Height
	for c, src := range img.Planes {
		dst := out.Planes[c]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				sum, n := 0.0, 0
				for dy := -r; dy <= r; dy++ {
					yy := clampInt(y+dy, 0, h-1)
					for dx := -r; dx <= r; dx++ {
						xx := clampInt(x+dx, 0, w-1)
						sum += src[yy*w+xx]
						n++
					}
				}
				dst[y*w+x] = sum / float64(n)
			}
		}
	}
	return out
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
