package pristine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNew_IdentityDistance(t *testing.T) {
	m, err := New([]float64{1, 2, 3}, identity(3))
	require.NoError(t, err)
	assert.Equal(t, InversionCholesky, m.Inversion())
	assert.Equal(t, PoolMean, m.Pooling())
	assert.InDelta(t, 0, m.Distance([]float64{1, 2, 3}), 1e-12)
	assert.InDelta(t, 5, m.Distance([]float64{4, 6, 3}), 1e-12)
}

func TestNew_ScaledCovariance(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{4, 0, 0, 9})
	m, err := New([]float64{0, 0}, cov)
	require.NoError(t, err)
	// (2/2)^2 + (3/3)^2 = 2
	assert.InDelta(t, math.Sqrt2, m.Distance([]float64{2, 3}), 1e-12)
}

func TestNew_RankDeficientIsRegularized(t *testing.T) {
	// second feature duplicates the first
	cov := mat.NewSymDense(3, []float64{
		1, 1, 0,
		1, 1, 0,
		0, 0, 2,
	})
	m, err := New([]float64{0, 0, 0}, cov)
	require.NoError(t, err)
	assert.NotEqual(t, InversionCholesky, m.Inversion())
	d := m.Distance([]float64{1, 1, 1})
	assert.False(t, math.IsNaN(d) || math.IsInf(d, 0))
	assert.GreaterOrEqual(t, d, 0.0)
}

func TestNew_NegativeDefiniteFallsBackToPseudo(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{-1, 0, 0, -2})
	m, err := New([]float64{0, 0}, cov)
	require.NoError(t, err)
	assert.Equal(t, InversionPseudo, m.Inversion())
	assert.Equal(t, 0.0, m.Distance([]float64{1, 1}), "negative quadratic form clamps to 0")
}

func TestNew_ZeroCovarianceIsSingular(t *testing.T) {
	_, err := New([]float64{0, 0}, mat.NewSymDense(2, nil))
	var singular *SingularModelError
	require.True(t, errors.As(err, &singular), "got %v", err)
	assert.Equal(t, 2, singular.Dim)
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		mean []float64
		cov  mat.Symmetric
		opts []Option
	}{
		{"empty", nil, identity(1), nil},
		{"shape", []float64{0, 0}, identity(3), nil},
		{"nil cov", []float64{0}, nil, nil},
		{"nan mean", []float64{math.NaN()}, identity(1), nil},
		{"inf cov", []float64{0}, mat.NewSymDense(1, []float64{math.Inf(1)}), nil},
		{"pooling", []float64{0}, identity(1), []Option{WithPooling("median")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.mean, tt.cov, tt.opts...)
			assert.ErrorIs(t, err, ErrInvalidModel)
		})
	}
}

func TestNewFromRows_Asymmetric(t *testing.T) {
	_, err := NewFromRows([]float64{0, 0}, [][]float64{{1, 0.5}, {0.2, 1}})
	assert.ErrorIs(t, err, ErrInvalidModel)

	_, err = NewFromRows([]float64{0, 0}, [][]float64{{1, 0}, {0}})
	assert.ErrorIs(t, err, ErrInvalidModel)
}

func TestCheckCompatible(t *testing.T) {
	m, err := New([]float64{0, 0}, identity(2), WithLayout("a"))
	require.NoError(t, err)

	var mismatch *DimensionMismatchError
	require.True(t, errors.As(m.CheckCompatible(3, "a"), &mismatch))
	assert.Equal(t, 2, mismatch.Model)
	assert.Equal(t, 3, mismatch.Expected)

	assert.ErrorIs(t, m.CheckCompatible(2, "b"), ErrLayoutMismatch)
	assert.NoError(t, m.CheckCompatible(2, "a"))
}

func TestDistance_PanicsOnLength(t *testing.T) {
	m, err := New([]float64{0, 0}, identity(2))
	require.NoError(t, err)
	assert.Panics(t, func() { m.Distance([]float64{1}) })
}

func TestModelIsCopied(t *testing.T) {
	mean := []float64{1, 1}
	cov := identity(2)
	m, err := New(mean, cov)
	require.NoError(t, err)
	mean[0] = 100
	cov.SetSym(0, 0, 100)
	assert.Equal(t, []float64{1, 1}, m.Mean())
	assert.Equal(t, 1.0, m.Covariance().At(0, 0))
}

func TestFromSamples(t *testing.T) {
	samples := [][]float64{{1, 2}, {3, 2}, {2, 5}, {2, -1}}
	m, err := FromSamples(samples, WithPooling(PoolWorstQuartile))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2}, m.Mean())
	assert.InDelta(t, 2.0/3.0, m.Covariance().At(0, 0), 1e-12)
	assert.InDelta(t, 6.0, m.Covariance().At(1, 1), 1e-12)
	assert.Equal(t, PoolWorstQuartile, m.Pooling())

	_, err = FromSamples([][]float64{{1}})
	assert.ErrorIs(t, err, ErrInvalidModel)
	_, err = FromSamples([][]float64{{1, 2}, {1}})
	assert.ErrorIs(t, err, ErrInvalidModel)
}

func TestArtifactRoundTrip(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{2, 0.5, 0.5, 1})
	m, err := New([]float64{0.25, -1}, cov, WithName("demo"), WithLayout("l1"), WithPooling(PoolWorstQuartile))
	require.NoError(t, err)

	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, m, format))
			got, err := Decode(&buf, format)
			require.NoError(t, err)
			assert.Equal(t, "demo", got.Name())
			assert.Equal(t, "l1", got.Layout())
			assert.Equal(t, PoolWorstQuartile, got.Pooling())
			v := []float64{1, 1}
			assert.InDelta(t, m.Distance(v), got.Distance(v), 1e-12)
		})
	}
}

func TestDecode_DimMismatch(t *testing.T) {
	doc := `
dim: 3
mean: [0, 0]
covariance: [[1, 0], [0, 1]]
`
	_, err := Decode(strings.NewReader(doc), FormatYAML)
	assert.ErrorIs(t, err, ErrInvalidModel)

	_, err = Decode(strings.NewReader("{not json"), FormatJSON)
	assert.ErrorIs(t, err, ErrInvalidModel)
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFor("models/p.JSON"))
	assert.Equal(t, FormatJSON, FormatFor("https://x/p.json?sig=abc"))
	assert.Equal(t, FormatYAML, FormatFor("p.yaml"))
	assert.Equal(t, FormatYAML, FormatFor("azblob://c/p"))
}

type stringSource struct {
	name, body string
	err        error
}

func (s stringSource) Open(context.Context) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func (s stringSource) Name() string { return s.name }

func TestLoad(t *testing.T) {
	src := stringSource{name: "m.json", body: `{"dim":1,"mean":[0],"covariance":[[4]]}`}
	m, err := Load(context.Background(), src)
	require.NoError(t, err)
	assert.InDelta(t, 1, m.Distance([]float64{2}), 1e-12)

	_, err = Load(context.Background(), stringSource{name: "m.yaml", err: io.ErrUnexpectedEOF})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = Load(context.Background(), stringSource{name: "m.yaml", body: "dim: 1\nmean: [0]\ncovariance: [[0]]\n"})
	var singular *SingularModelError
	assert.True(t, errors.As(err, &singular))
}

func identity(n int) *mat.SymDense {
	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		m.SetSym(i, i, 1)
	}
	return m
}
