package features

import (
	"fmt"
	"math"

	"github.com/clinrisk/platform/pkg/tabular"
)

// Bin is one ordered category over [Low, High). Lower bounds are inclusive so
// exact threshold values classify into exactly one bin.
type Bin struct {
	Low   float64
	High  float64
	Label string
}

// AgeGroupStrategy selects the age bin-edge set. Pure configuration
// dispatch: the binning rule is identical across strategies.
type AgeGroupStrategy string

const (
	// AgeGroupSimple is three coarse bins.
	AgeGroupSimple AgeGroupStrategy = "simple"
	// AgeGroupDetailed is decade bins, the default.
	AgeGroupDetailed AgeGroupStrategy = "detailed"
	// AgeGroupSenior resolves the >60 population and collapses everyone
	// younger into a single bin.
	AgeGroupSenior AgeGroupStrategy = "senior"
)

func (s AgeGroupStrategy) Valid() bool {
	switch s {
	case AgeGroupSimple, AgeGroupDetailed, AgeGroupSenior:
		return true
	}
	return false
}

func (s AgeGroupStrategy) bins() []Bin {
	switch s {
	case AgeGroupSimple:
		return makeBins([]float64{0, 30, 60}, []string{"Young", "Adult", "Senior"})
	case AgeGroupSenior:
		return makeBins([]float64{0, 60, 70, 80, 90}, []string{"<60", "60-69", "70-79", "80-89", "90+"})
	default:
		return makeBins([]float64{0, 30, 40, 50, 60, 70, 80}, []string{"<30", "30-39", "40-49", "50-59", "60-69", "70-79", "80+"})
	}
}

// makeBins builds a gap-free partition from ascending lower edges. The last
// bin is unbounded above.
func makeBins(edges []float64, labels []string) []Bin {
	if len(edges) != len(labels) {
		panic(fmt.Sprintf("bins: %d edges for %d labels", len(edges), len(labels)))
	}
	bins := make([]Bin, len(edges))
	for i := range edges {
		high := positiveInfinity
		if i+1 < len(edges) {
			high = edges[i+1]
		}
		bins[i] = Bin{Low: edges[i], High: high, Label: labels[i]}
	}
	return bins
}

var positiveInfinity = math.Inf(1)

// binLabel maps a value to the single bin containing it. Values below the
// first lower edge and sentinel values map to Unknown.
func binLabel(bins []Bin, v float64) string {
	if tabular.IsMissing(v) {
		return tabular.Unknown
	}
	for _, b := range bins {
		if v >= b.Low && v < b.High {
			return b.Label
		}
	}
	return tabular.Unknown
}

// binColumn applies a bin partition to a whole numeric column.
func binColumn(bins []Bin, values []float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = binLabel(bins, v)
	}
	return out
}
