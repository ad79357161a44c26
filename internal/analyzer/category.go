package analyzer

import (
	"fmt"
	"math"
	"sort"
)

// Category is a human-readable quality label.
type Category string

const (
	CategoryExcellent Category = "Excellent"
	CategoryGood      Category = "Good"
	CategoryModerate  Category = "Moderate"
	CategoryPoor      Category = "Poor"
	CategoryVeryPoor  Category = "Very Poor"
	CategoryBad       Category = "Bad"
)

// CategoryTable maps scores onto labels. Bound i is the inclusive lower
// edge of label i+1; scores below the first bound get the first label.
type CategoryTable struct {
	name   string
	bounds []float64
	labels []Category
}

// Score tables, one per pipeline kind. The fast table does not depend on
// the resize target.
var (
	FullTable = mustTable("full", []float64{20, 40, 60, 80},
		CategoryExcellent, CategoryGood, CategoryModerate, CategoryPoor, CategoryVeryPoor)
	FastTable = mustTable("fast", []float64{20, 50},
		CategoryGood, CategoryModerate, CategoryBad)
)

// NewCategoryTable validates and builds a table.
func NewCategoryTable(name string, bounds []float64, labels ...Category) (*CategoryTable, error) {
	if len(labels) != len(bounds)+1 {
		return nil, fmt.Errorf("category table %s: %d bounds need %d labels, got %d",
			name, len(bounds), len(bounds)+1, len(labels))
	}
	for i, b := range bounds {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return nil, fmt.Errorf("category table %s: bound %d is not finite", name, i)
		}
		if i > 0 && b <= bounds[i-1] {
			return nil, fmt.Errorf("category table %s: bounds must increase strictly (%g after %g)", name, b, bounds[i-1])
		}
	}
	return &CategoryTable{
		name:   name,
		bounds: append([]float64(nil), bounds...),
		labels: append([]Category(nil), labels...),
	}, nil
}

func mustTable(name string, bounds []float64, labels ...Category) *CategoryTable {
	t, err := NewCategoryTable(name, bounds, labels...)
	if err != nil {
		panic(err)
	}
	return t
}

// TableFor returns the table used by a pipeline kind.
func TableFor(kind PipelineKind) *CategoryTable {
	if kind == PipelineFast {
		return FastTable
	}
	return FullTable
}

// Name returns the table name.
func (t *CategoryTable) Name() string { return t.name }

// Bounds returns a copy of the lower bounds.
func (t *CategoryTable) Bounds() []float64 { return append([]float64(nil), t.bounds...) }

// Labels returns a copy of the labels, best first.
func (t *CategoryTable) Labels() []Category { return append([]Category(nil), t.labels...) }

// Categorize returns the label whose range contains score.
func (t *CategoryTable) Categorize(score float64) Category {
	i := sort.Search(len(t.bounds), func(i int) bool { return t.bounds[i] > score })
	return t.labels[i]
}

// Categorize maps a score onto a label of the given table.
func Categorize(score float64, table *CategoryTable) Category {
	return table.Categorize(score)
}
