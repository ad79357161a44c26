package features

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/stat"
)

var (
	invSqrt2 = 1 / math.Sqrt2
	invSqrt6 = 1 / math.Sqrt(6)
)

// colorMoments appends mean and standard deviation of the opponent
// channels O1, O2 and of CIELAB a*, b* (scaled to the usual +-100 range).
func colorMoments(r, g, b []float64, ws *workspace, dst []float64) []float64 {
	n := len(r)
	o1 := ws.buf(0, n)
	o2 := ws.buf(1, n)
	la := ws.buf(2, n)
	lb := ws.buf(3, n)

	for i := 0; i < n; i++ {
		o1[i] = (r[i] - g[i]) * invSqrt2
		o2[i] = (r[i] + g[i] - 2*b[i]) * invSqrt6

		c := colorful.Color{R: unit(r[i]), G: unit(g[i]), B: unit(b[i])}
		_, a, bb := c.Lab()
		la[i] = 100 * a
		lb[i] = 100 * bb
	}

	for _, x := range [][]float64{o1, o2, la, lb} {
		mean, std := stat.MeanStdDev(x, nil)
		dst = append(dst, mean, std)
	}
	return dst
}

func unit(v float64) float64 {
	v /= 255
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
