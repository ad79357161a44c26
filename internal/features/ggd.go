package features

import (
	"math"
	"sort"
)

// Fallback parameters used when a sample set carries no usable signal.
const (
	DefaultShape = 2.0
	DefaultScale = 0.0
)

const (
	minShape   = 0.2
	maxShape   = 10.0
	shapeStep  = 0.001
	degenerate = 1e-10
)

// shapeTable maps shape alpha to the moment ratio
// r(alpha) = G(1/a) G(3/a) / G(2/a)^2, which decreases monotonically in
// alpha. Both slices are ordered by increasing alpha.
var shapeTable = buildShapeTable()

type ratioTable struct {
	alpha []float64
	ratio []float64
}

func buildShapeTable() ratioTable {
	n := int(math.Round((maxShape-minShape)/shapeStep)) + 1
	t := ratioTable{alpha: make([]float64, n), ratio: make([]float64, n)}
	for i := 0; i < n; i++ {
		a := minShape + float64(i)*shapeStep
		t.alpha[i] = a
		t.ratio[i] = momentRatio(a)
	}
	return t
}

func momentRatio(alpha float64) float64 {
	l1, _ := math.Lgamma(1 / alpha)
	l2, _ := math.Lgamma(2 / alpha)
	l3, _ := math.Lgamma(3 / alpha)
	return math.Exp(l1 + l3 - 2*l2)
}

// FitGGD estimates the shape and scale of a zero-mean generalized Gaussian
// by moment matching. ok is false when the samples are degenerate, in which
// case DefaultShape and DefaultScale are returned.
func FitGGD(x []float64) (shape, scale float64, ok bool) {
	if len(x) == 0 {
		return DefaultShape, DefaultScale, false
	}
	var sumSq, sumAbs float64
	for _, v := range x {
		sumSq += v * v
		sumAbs += math.Abs(v)
	}
	n := float64(len(x))
	meanSq := sumSq / n
	meanAbs := sumAbs / n
	if !isFinite(meanSq) || !isFinite(meanAbs) || meanSq < degenerate || meanAbs < degenerate {
		return DefaultShape, DefaultScale, false
	}

	rho := meanSq / (meanAbs * meanAbs)
	return shapeForRatio(rho), math.Sqrt(meanSq), true
}

// shapeForRatio returns the tabulated alpha whose ratio is closest to rho.
func shapeForRatio(rho float64) float64 {
	r := shapeTable.ratio
	n := len(r)
	if rho >= r[0] {
		return shapeTable.alpha[0]
	}
	if rho <= r[n-1] {
		return shapeTable.alpha[n-1]
	}
	// first index whose ratio drops to rho or below
	i := sort.Search(n, func(i int) bool { return r[i] <= rho })
	if i > 0 && rho-r[i] > r[i-1]-rho {
		i--
	}
	return shapeTable.alpha[i]
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
