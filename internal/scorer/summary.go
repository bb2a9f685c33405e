package scorer

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/walkability-cli/internal/model"
)

// FiveNumber returns the min, quartiles and max of scores. Quartiles use
// linear interpolation between closest ranks.
func FiveNumber(scores []int) (*model.FiveNumberSummary, error) {
	if len(scores) == 0 {
		return nil, eris.New("scorer: no scores to summarize")
	}
	sorted := make([]float64, len(scores))
	for i, s := range scores {
		sorted[i] = float64(s)
	}
	sort.Float64s(sorted)

	return &model.FiveNumberSummary{
		Min:    sorted[0],
		Q1:     percentile(sorted, 25),
		Median: percentile(sorted, 50),
		Q3:     percentile(sorted, 75),
		Max:    sorted[len(sorted)-1],
		Count:  len(sorted),
	}, nil
}

// percentile expects sorted input.
func percentile(sorted []float64, p float64) float64 {
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (rank-float64(lo))*(sorted[hi]-sorted[lo])
}
