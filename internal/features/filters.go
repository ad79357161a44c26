package features

import "math"

// MSCN normalization window.
const (
	mscnRadius = 3
	mscnSigma  = 7.0 / 6.0
	mscnC      = 1.0
)

func gaussianKernel(radius int, sigma float64) []float64 {
	k := make([]float64, 2*radius+1)
	var sum float64
	for i := range k {
		d := float64(i - radius)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// separable applies k horizontally then vertically with replicated borders.
func separable(src []float64, w, h int, k []float64, tmp, dst []float64) {
	r := len(k) / 2
	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var s float64
			for i, kv := range k {
				s += kv * row[clampIndex(x+i-r, w)]
			}
			tmp[y*w+x] = s
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var s float64
			for i, kv := range k {
				s += kv * tmp[clampIndex(y+i-r, h)*w+x]
			}
			dst[y*w+x] = s
		}
	}
}

// mscn computes mean-subtracted contrast-normalized coefficients into dst.
func mscn(luma []float64, n int, kernel []float64, ws *workspace) []float64 {
	size := n * n
	mu := ws.buf(0, size)
	sq := ws.buf(1, size)
	tmp := ws.buf(2, size)
	sigma := ws.buf(3, size)
	out := ws.buf(4, size)

	separable(luma, n, n, kernel, tmp, mu)
	for i, v := range luma {
		sq[i] = v * v
	}
	separable(sq, n, n, kernel, tmp, sigma)
	for i := range out {
		variance := sigma[i] - mu[i]*mu[i]
		out[i] = (luma[i] - mu[i]) / (math.Sqrt(math.Abs(variance)) + mscnC)
	}
	return out
}

// sobel fills gx and gy with 3x3 Sobel responses, replicating borders.
func sobel(luma []float64, n int, gx, gy []float64) {
	at := func(x, y int) float64 {
		return luma[clampIndex(y, n)*n+clampIndex(x, n)]
	}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			tl, tc, tr := at(x-1, y-1), at(x, y-1), at(x+1, y-1)
			ml, mr := at(x-1, y), at(x+1, y)
			bl, bc, br := at(x-1, y+1), at(x, y+1), at(x+1, y+1)
			gx[y*n+x] = (tr + 2*mr + br) - (tl + 2*ml + bl)
			gy[y*n+x] = (bl + 2*bc + br) - (tl + 2*tc + tr)
		}
	}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
