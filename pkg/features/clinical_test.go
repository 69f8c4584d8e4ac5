package features

import (
	"testing"

	"github.com/clinrisk/platform/pkg/tabular"
)

func TestClinicalRatios(t *testing.T) {
	ds := tabular.New(2)
	ds, _ = ds.AppendNumeric("glucose_fasting", []float64{110, 160})
	ds, _ = ds.AppendNumeric("bmi", []float64{28, 34})
	ds, _ = ds.AppendNumeric("hdl_cholesterol", []float64{40, 35})
	ds, _ = ds.AppendNumeric("ldl_cholesterol", []float64{160, 140})
	ds, _ = ds.AppendNumeric("total_cholesterol", []float64{240, 210})

	out, err := Clinical{}.Apply(ds, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lipid, _ := out.Numeric("lipid_ratio_hdl_ldl")
	if lipid[0] != 40.0/160.0 {
		t.Fatalf("lipid_ratio_hdl_ldl[0] = %v", lipid[0])
	}

	cholesterol, _ := out.Numeric("cholesterol_hdl_ratio")
	if cholesterol[0] != 6.0 {
		t.Fatalf("cholesterol_hdl_ratio[0] = %v", cholesterol[0])
	}

	interaction, _ := out.Numeric("bmi_glucose_interaction")
	if interaction[1] != 34*160 {
		t.Fatalf("bmi_glucose_interaction[1] = %v", interaction[1])
	}
}

func TestClinicalZeroDenominatorYieldsSentinel(t *testing.T) {
	ds := tabular.New(1)
	ds, _ = ds.AppendNumeric("glucose_fasting", []float64{110})
	ds, _ = ds.AppendNumeric("bmi", []float64{28})
	ds, _ = ds.AppendNumeric("hdl_cholesterol", []float64{0})
	ds, _ = ds.AppendNumeric("ldl_cholesterol", []float64{100})
	ds, _ = ds.AppendNumeric("total_cholesterol", []float64{200})

	out, err := Clinical{}.Apply(ds, testConfig())
	if err != nil {
		t.Fatalf("zero denominator must not fail the stage: %v", err)
	}

	// hdl/ldl is computable, total/hdl is not.
	lipid, _ := out.Numeric("lipid_ratio_hdl_ldl")
	if lipid[0] != 0 {
		t.Fatalf("lipid_ratio_hdl_ldl[0] = %v, want 0", lipid[0])
	}
	cholesterol, _ := out.Numeric("cholesterol_hdl_ratio")
	if !tabular.IsMissing(cholesterol[0]) {
		t.Fatalf("cholesterol_hdl_ratio[0] = %v, want sentinel", cholesterol[0])
	}
}

func TestClinicalGlucoseVariability(t *testing.T) {
	ds := tabular.New(2)
	ds, _ = ds.AppendNumeric("glucose_fasting", []float64{100, 0})
	ds, _ = ds.AppendNumeric("bmi", []float64{28, 30})
	ds, _ = ds.AppendNumeric("glucose_postprandial", []float64{150, 180})

	out, err := Clinical{}.Apply(ds, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	variability, _ := out.Numeric("glucose_variability")
	if variability[0] != 0.5 {
		t.Fatalf("glucose_variability[0] = %v, want 0.5", variability[0])
	}
	if !tabular.IsMissing(variability[1]) {
		t.Fatalf("expected sentinel for zero fasting glucose, got %v", variability[1])
	}
}
