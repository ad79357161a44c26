package pristine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the serialization of a model artifact.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor infers the artifact format from a file name or URL path;
// anything that is not .json is read as YAML.
func FormatFor(name string) Format {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if strings.EqualFold(filepath.Ext(name), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Artifact is the on-disk form of a Model.
type Artifact struct {
	Name       string      `json:"name,omitempty" yaml:"name,omitempty"`
	Layout     string      `json:"layout,omitempty" yaml:"layout,omitempty"`
	Dim        int         `json:"dim" yaml:"dim"`
	Pooling    PoolingRule `json:"pooling,omitempty" yaml:"pooling,omitempty"`
	Mean       []float64   `json:"mean" yaml:"mean"`
	Covariance [][]float64 `json:"covariance" yaml:"covariance"`
}

// Source yields the bytes of a model artifact.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name identifies the source in logs and selects the format.
	Name() string
}

// Decode reads an artifact and builds the model.
func Decode(r io.Reader, format Format) (*Model, error) {
	var a Artifact
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&a); err != nil {
			return nil, fmt.Errorf("%w: decoding json: %v", ErrInvalidModel, err)
		}
	default:
		if err := yaml.NewDecoder(r).Decode(&a); err != nil {
			return nil, fmt.Errorf("%w: decoding yaml: %v", ErrInvalidModel, err)
		}
	}
	return FromArtifact(a)
}

// FromArtifact builds a model from decoded artifact fields.
func FromArtifact(a Artifact) (*Model, error) {
	if a.Dim != len(a.Mean) {
		return nil, fmt.Errorf("%w: dim %d but mean has %d entries", ErrInvalidModel, a.Dim, len(a.Mean))
	}
	opts := []Option{WithName(a.Name), WithLayout(a.Layout)}
	if a.Pooling != "" {
		opts = append(opts, WithPooling(a.Pooling))
	}
	return NewFromRows(a.Mean, a.Covariance, opts...)
}

// Load reads and builds the model behind src.
func Load(ctx context.Context, src Source) (*Model, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening model %s: %w", src.Name(), err)
	}
	defer rc.Close()

	m, err := Decode(rc, FormatFor(src.Name()))
	if err != nil {
		return nil, fmt.Errorf("loading model %s: %w", src.Name(), err)
	}
	return m, nil
}

// Artifact returns the serializable form of m.
func (m *Model) Artifact() Artifact {
	d := m.Dim()
	rows := make([][]float64, d)
	for i := range rows {
		rows[i] = make([]float64, d)
		for j := range rows[i] {
			rows[i][j] = m.cov.At(i, j)
		}
	}
	return Artifact{
		Name:       m.name,
		Layout:     m.layout,
		Dim:        d,
		Pooling:    m.pooling,
		Mean:       m.Mean(),
		Covariance: rows,
	}
}

// Encode writes m as an artifact.
func Encode(w io.Writer, m *Model, format Format) error {
	a := m.Artifact()
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(a)
}
