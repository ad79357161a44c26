package pristine

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// FromSamples estimates mean and covariance from feature vectors, one per
// row, and builds a model from them.
func FromSamples(vectors [][]float64, opts ...Option) (*Model, error) {
	if len(vectors) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 samples, got %d", ErrInvalidModel, len(vectors))
	}
	d := len(vectors[0])
	data := make([]float64, 0, len(vectors)*d)
	for i, v := range vectors {
		if len(v) != d {
			return nil, fmt.Errorf("%w: sample %d has length %d, want %d", ErrInvalidModel, i, len(v), d)
		}
		data = append(data, v...)
	}
	x := mat.NewDense(len(vectors), d, data)

	mean := make([]float64, d)
	for j := 0; j < d; j++ {
		mean[j] = stat.Mean(mat.Col(nil, j, x), nil)
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, x, nil)
	return New(mean, &cov, opts...)
}
