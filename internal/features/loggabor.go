package features

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Log-Gabor bank geometry: two radial scales, four orientations.
var (
	gaborCenters      = []float64{0.25, 0.125} // cycles per pixel
	gaborOrientations = []float64{0, math.Pi / 4, math.Pi / 2, 3 * math.Pi / 4}
)

const (
	gaborBandwidth  = 0.55 // sigma_f / f0
	gaborAngleSigma = math.Pi / 8
)

// gaborFilter is a real-valued transfer function sampled on an n x n
// frequency grid laid out like the FFT output.
type gaborFilter []float64

func buildGaborBank(n int) []gaborFilter {
	freq := make([]float64, n)
	for i := range freq {
		if i <= n/2 {
			freq[i] = float64(i) / float64(n)
		} else {
			freq[i] = float64(i-n) / float64(n)
		}
	}

	logBW := math.Log(gaborBandwidth)
	bank := make([]gaborFilter, 0, len(gaborCenters)*len(gaborOrientations))
	for _, f0 := range gaborCenters {
		for _, theta0 := range gaborOrientations {
			g := make(gaborFilter, n*n)
			for v := 0; v < n; v++ {
				fy := freq[v]
				for u := 0; u < n; u++ {
					fx := freq[u]
					r := math.Hypot(fx, fy)
					if r == 0 {
						continue
					}
					lr := math.Log(r / f0)
					radial := math.Exp(-(lr * lr) / (2 * logBW * logBW))

					dTheta := angleDiff(math.Atan2(fy, fx), theta0)
					angular := math.Exp(-(dTheta * dTheta) / (2 * gaborAngleSigma * gaborAngleSigma))
					g[v*n+u] = radial * angular
				}
			}
			bank = append(bank, g)
		}
	}
	return bank
}

// angleDiff returns a-b wrapped to [-pi, pi].
func angleDiff(a, b float64) float64 {
	d := math.Mod(a-b, 2*math.Pi)
	if d > math.Pi {
		d -= 2 * math.Pi
	} else if d < -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

// fft2 runs an in-place 2-D transform as row passes followed by column
// passes. Inverse transforms are scaled by 1/(n*n).
func fft2(data []complex128, n int, t *fourier.CmplxFFT, line, out []complex128, inverse bool) {
	transform := t.Coefficients
	if inverse {
		transform = t.Sequence
	}
	for y := 0; y < n; y++ {
		row := data[y*n : (y+1)*n]
		copy(line, row)
		transform(out, line)
		copy(row, out)
	}
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			line[y] = data[y*n+x]
		}
		transform(out, line)
		for y := 0; y < n; y++ {
			data[y*n+x] = out[y]
		}
	}
	if inverse {
		scale := complex(1/float64(n*n), 0)
		for i := range data {
			data[i] *= scale
		}
	}
}

// gaborResponses appends (shape, scale) for every filter in the bank.
func (e *Extractor) gaborResponses(luma []float64, ws *workspace, dst []float64) ([]float64, int) {
	n := e.size
	size := n * n

	var mean float64
	for _, v := range luma {
		mean += v
	}
	mean /= float64(size)

	freq := ws.spectrum
	for i, v := range luma {
		freq[i] = complex(v-mean, 0)
	}
	fft2(freq, n, ws.fft, ws.line, ws.lineOut, false)

	fallbacks := 0
	resp := ws.buf(5, size)
	for _, g := range e.bank {
		prod := ws.product
		for i, c := range freq {
			prod[i] = c * complex(g[i], 0)
		}
		fft2(prod, n, ws.fft, ws.line, ws.lineOut, true)
		for i, c := range prod {
			resp[i] = real(c)
		}
		shape, scale, ok := FitGGD(resp)
		if !ok {
			fallbacks++
		}
		dst = append(dst, shape, scale)
	}
	return dst, fallbacks
}
