// Package pristine holds the reference statistics of undistorted images and
// the Mahalanobis distance against them.
//
// A Model is immutable once built and may be shared by any number of
// concurrent scorers.
package pristine

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// PoolingRule selects how per-patch distances become one image score.
type PoolingRule string

const (
	PoolMean          PoolingRule = "mean"
	PoolWorstQuartile PoolingRule = "worst_quartile"
)

// Inversion records which strategy produced the inverse covariance.
type Inversion string

const (
	InversionCholesky    Inversion = "cholesky"
	InversionRegularized Inversion = "regularized"
	InversionPseudo      Inversion = "pseudo"
)

// Numerical limits for covariance inversion.
const (
	maxCondition  = 1e12
	symmetryTol   = 1e-9
	pseudoEpsilon = 2.220446049250313e-16
)

var ridgeFactors = []float64{1e-6, 1e-4, 1e-2}

var (
	// ErrInvalidModel is returned for artifacts with malformed statistics.
	ErrInvalidModel = errors.New("invalid pristine model")
	// ErrLayoutMismatch is returned when a model was fitted against a
	// different feature ordering.
	ErrLayoutMismatch = errors.New("pristine model feature layout mismatch")
)

// SingularModelError reports a covariance that could not be inverted even
// with regularization.
type SingularModelError struct {
	Dim    int
	Reason string
}

func (e *SingularModelError) Error() string {
	return fmt.Sprintf("singular pristine covariance (%dx%d): %s", e.Dim, e.Dim, e.Reason)
}

// DimensionMismatchError reports a model whose dimension differs from the
// feature extractor it is paired with.
type DimensionMismatchError struct {
	Model    int
	Expected int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("pristine model has dimension %d, feature extractor produces %d", e.Model, e.Expected)
}

// Model is a pristine reference: mean vector, covariance and its inverse.
type Model struct {
	name      string
	layout    string
	pooling   PoolingRule
	mean      *mat.VecDense
	cov       *mat.SymDense
	inv       *mat.SymDense
	inversion Inversion
}

// Option customizes New.
type Option func(*Model)

// WithPooling sets the pooling rule stored with the model.
func WithPooling(rule PoolingRule) Option {
	return func(m *Model) { m.pooling = rule }
}

// WithLayout records the feature layout the statistics were fitted on.
func WithLayout(layout string) Option {
	return func(m *Model) { m.layout = layout }
}

// WithName labels the model.
func WithName(name string) Option {
	return func(m *Model) { m.name = name }
}

// New validates the statistics and inverts the covariance. Both inputs are
// copied.
func New(mean []float64, cov mat.Symmetric, opts ...Option) (*Model, error) {
	d := len(mean)
	if d == 0 {
		return nil, fmt.Errorf("%w: empty mean vector", ErrInvalidModel)
	}
	if cov == nil || cov.SymmetricDim() != d {
		got := 0
		if cov != nil {
			got = cov.SymmetricDim()
		}
		return nil, fmt.Errorf("%w: covariance is %dx%d for mean of length %d", ErrInvalidModel, got, got, d)
	}
	for i, v := range mean {
		if !finite(v) {
			return nil, fmt.Errorf("%w: mean[%d] is not finite", ErrInvalidModel, i)
		}
	}
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			if !finite(cov.At(i, j)) {
				return nil, fmt.Errorf("%w: covariance[%d][%d] is not finite", ErrInvalidModel, i, j)
			}
		}
	}

	m := &Model{
		pooling: PoolMean,
		mean:    mat.NewVecDense(d, append([]float64(nil), mean...)),
		cov:     mat.NewSymDense(d, nil),
	}
	m.cov.CopySym(cov)
	for _, opt := range opts {
		opt(m)
	}
	switch m.pooling {
	case PoolMean, PoolWorstQuartile:
	default:
		return nil, fmt.Errorf("%w: unknown pooling rule %q", ErrInvalidModel, m.pooling)
	}

	inv, how, err := invert(m.cov)
	if err != nil {
		return nil, err
	}
	m.inv = inv
	m.inversion = how
	return m, nil
}

// NewFromRows is New for covariance given as nested rows, as found in
// artifacts. The rows must be square and symmetric.
func NewFromRows(mean []float64, rows [][]float64, opts ...Option) (*Model, error) {
	d := len(rows)
	if d != len(mean) {
		return nil, fmt.Errorf("%w: covariance has %d rows for mean of length %d", ErrInvalidModel, d, len(mean))
	}
	data := make([]float64, 0, d*d)
	var scale float64
	for i, row := range rows {
		if len(row) != d {
			return nil, fmt.Errorf("%w: covariance row %d has %d entries, want %d", ErrInvalidModel, i, len(row), d)
		}
		for _, v := range row {
			scale = math.Max(scale, math.Abs(v))
		}
		data = append(data, row...)
	}
	for i := 0; i < d; i++ {
		for j := i + 1; j < d; j++ {
			a, b := rows[i][j], rows[j][i]
			if math.Abs(a-b) > symmetryTol*math.Max(1, scale) {
				return nil, fmt.Errorf("%w: covariance not symmetric at [%d][%d]", ErrInvalidModel, i, j)
			}
		}
	}
	if d == 0 {
		return New(mean, nil, opts...)
	}
	return New(mean, mat.NewSymDense(d, data), opts...)
}

// invert tries Cholesky, then ridge-regularized Cholesky, then an SVD
// pseudo-inverse.
func invert(cov *mat.SymDense) (*mat.SymDense, Inversion, error) {
	d := cov.SymmetricDim()
	if inv, ok := choleskyInverse(cov); ok {
		return inv, InversionCholesky, nil
	}

	var trace float64
	for i := 0; i < d; i++ {
		trace += cov.At(i, i)
	}
	if meanDiag := trace / float64(d); meanDiag > 0 {
		ridged := mat.NewSymDense(d, nil)
		for _, f := range ridgeFactors {
			ridged.CopySym(cov)
			lambda := f * meanDiag
			for i := 0; i < d; i++ {
				ridged.SetSym(i, i, ridged.At(i, i)+lambda)
			}
			if inv, ok := choleskyInverse(ridged); ok {
				return inv, InversionRegularized, nil
			}
		}
	}

	inv, err := pseudoInverse(cov)
	if err != nil {
		return nil, "", err
	}
	return inv, InversionPseudo, nil
}

func choleskyInverse(a *mat.SymDense) (*mat.SymDense, bool) {
	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, false
	}
	if c := chol.Cond(); math.IsNaN(c) || c >= maxCondition {
		return nil, false
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, false
	}
	return &inv, true
}

func pseudoInverse(a *mat.SymDense) (*mat.SymDense, error) {
	d := a.SymmetricDim()
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, &SingularModelError{Dim: d, Reason: "SVD did not converge"}
	}
	values := svd.Values(nil)
	var largest float64
	for _, s := range values {
		largest = math.Max(largest, s)
	}
	tol := largest * float64(d) * pseudoEpsilon

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	rank := 0
	for i, s := range values {
		if s > tol && s > 0 {
			rank++
			continue
		}
		values[i] = 0
	}
	if rank == 0 {
		return nil, &SingularModelError{Dim: d, Reason: "covariance has rank 0"}
	}

	// A+ = V diag(1/s) U^T
	inv := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			var sum float64
			for k, s := range values {
				if s == 0 {
					continue
				}
				sum += v.At(i, k) * u.At(j, k) / s
			}
			// symmetrize against round-off
			var sumT float64
			for k, s := range values {
				if s == 0 {
					continue
				}
				sumT += v.At(j, k) * u.At(i, k) / s
			}
			inv.SetSym(i, j, 0.5*(sum+sumT))
		}
	}
	return inv, nil
}

// Dim returns the feature dimension.
func (m *Model) Dim() int { return m.mean.Len() }

// Name returns the model label, possibly empty.
func (m *Model) Name() string { return m.name }

// Layout returns the feature layout tag, possibly empty.
func (m *Model) Layout() string { return m.layout }

// Pooling returns the pooling rule fixed for this model.
func (m *Model) Pooling() PoolingRule { return m.pooling }

// Inversion reports how the inverse covariance was obtained.
func (m *Model) Inversion() Inversion { return m.inversion }

// Mean returns a copy of the mean vector.
func (m *Model) Mean() []float64 {
	return append([]float64(nil), m.mean.RawVector().Data...)
}

// Covariance returns a copy of the covariance matrix.
func (m *Model) Covariance() *mat.SymDense {
	c := mat.NewSymDense(m.Dim(), nil)
	c.CopySym(m.cov)
	return c
}

// CheckCompatible verifies the model can score vectors of the given
// dimension and layout. An empty model layout is accepted.
func (m *Model) CheckCompatible(dim int, layout string) error {
	if m.Dim() != dim {
		return &DimensionMismatchError{Model: m.Dim(), Expected: dim}
	}
	if m.layout != "" && layout != "" && m.layout != layout {
		return fmt.Errorf("%w: model %q, extractor %q", ErrLayoutMismatch, m.layout, layout)
	}
	return nil
}

// Distance returns sqrt((v-mu)^T Sigma^-1 (v-mu)). It panics if len(v)
// differs from Dim; callers check compatibility once with CheckCompatible.
func (m *Model) Distance(v []float64) float64 {
	d := m.Dim()
	if len(v) != d {
		panic(fmt.Sprintf("pristine: vector length %d, model dimension %d", len(v), d))
	}
	diff := mat.NewVecDense(d, nil)
	diff.SubVec(mat.NewVecDense(d, v), m.mean)
	q := mat.Inner(diff, m.inv, diff)
	if q <= 0 || math.IsNaN(q) {
		return 0
	}
	return math.Sqrt(q)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
