package features

import (
	"math"
	"testing"

	"github.com/clinrisk/platform/pkg/tabular"
)

func TestBinsPartitionWithoutGapsOrOverlaps(t *testing.T) {
	for _, strategy := range []AgeGroupStrategy{AgeGroupSimple, AgeGroupDetailed, AgeGroupSenior} {
		bins := strategy.bins()
		for v := 0.0; v < 120; v += 0.5 {
			matches := 0
			for _, b := range bins {
				if v >= b.Low && v < b.High {
					matches++
				}
			}
			if matches != 1 {
				t.Fatalf("strategy %s: value %v matched %d bins", strategy, v, matches)
			}
		}
	}
}

func TestBoundaryValuesMapToLowerInclusiveBin(t *testing.T) {
	cases := []struct {
		bins  []Bin
		value float64
		want  string
	}{
		{glucoseBins, 100, "Pre-Diabetic"},
		{glucoseBins, 126, "Diabetic"},
		{glucoseBins, 99.9, "Normal"},
		{bmiBins, 18.5, "Normal"},
		{bmiBins, 25, "Overweight"},
		{bmiBins, 30, "Obese"},
		{hba1cBins, 5.7, "Pre-Diabetic"},
		{hba1cBins, 6.5, "Diabetic"},
	}
	for _, tc := range cases {
		if got := binLabel(tc.bins, tc.value); got != tc.want {
			t.Fatalf("binLabel(%v) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestBinLabelSentinelAndOutOfRange(t *testing.T) {
	if got := binLabel(glucoseBins, math.NaN()); got != tabular.Unknown {
		t.Fatalf("NaN binned to %q", got)
	}
	if got := binLabel(glucoseBins, -5); got != tabular.Unknown {
		t.Fatalf("negative glucose binned to %q", got)
	}
}

func TestAgeGroupStrategyValidation(t *testing.T) {
	if !AgeGroupDetailed.Valid() || !AgeGroupSimple.Valid() || !AgeGroupSenior.Valid() {
		t.Fatal("known strategies must validate")
	}
	if AgeGroupStrategy("coarse").Valid() {
		t.Fatal("unknown strategy must not validate")
	}
}
