package analyzer

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"go-naturalness-inspector/internal/pristine"
)

// Aggregate scores every vector against the model and pools the distances
// with the model's pooling rule. Distances are returned in vector order.
func Aggregate(vectors [][]float64, model *pristine.Model) (float64, []float64) {
	distances := make([]float64, len(vectors))
	for i, v := range vectors {
		distances[i] = model.Distance(v)
	}
	return PoolDistances(distances, model.Pooling()), distances
}

// PoolDistances reduces per-patch distances to one score. An empty input
// pools to 0.
func PoolDistances(distances []float64, rule pristine.PoolingRule) float64 {
	if len(distances) == 0 {
		return 0
	}
	switch rule {
	case pristine.PoolWorstQuartile:
		sorted := append([]float64(nil), distances...)
		sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
		k := int(math.Ceil(float64(len(sorted)) / 4))
		return floats.Sum(sorted[:k]) / float64(k)
	default:
		return floats.Sum(distances) / float64(len(distances))
	}
}
