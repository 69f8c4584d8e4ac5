package pipeline

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/clinrisk/platform/pkg/features"
	"github.com/clinrisk/platform/pkg/preprocess"
	"github.com/clinrisk/platform/pkg/schema"
	"github.com/clinrisk/platform/pkg/tabular"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	if opts.Log == nil {
		opts.Log = testLogger()
	}
	p, err := New(opts)
	if err != nil {
		t.Fatalf("unexpected error building pipeline: %v", err)
	}
	return p
}

func fullDataset(t *testing.T) tabular.Dataset {
	t.Helper()
	ds := tabular.New(2)
	numeric := []struct {
		name   string
		values []float64
	}{
		{"Age", []float64{45, 62}},
		{"glucose_fasting", []float64{110, 160}},
		{"hba1c", []float64{6.1, 7.4}},
		{"bmi", []float64{28, 34}},
		{"systolic_bp", []float64{135, 150}},
		{"diastolic_bp", []float64{85, 95}},
		{"triglycerides", []float64{170, 210}},
		{"hdl_cholesterol", []float64{38, 35}},
		{"ldl_cholesterol", []float64{140, 160}},
		{"total_cholesterol", []float64{210, 250}},
		{"insulin_fasting", []float64{18, 30}},
		{"glucose_postprandial", []float64{180, 240}},
		{"physical_activity_minutes", []float64{120, 60}},
		{"screen_time_hours", []float64{6, 8}},
		{"sleep_hours", []float64{7, 6}},
		{"diet_score", []float64{6, 4}},
		{"alcohol_units_week", []float64{2, 5}},
	}
	var err error
	for _, col := range numeric {
		if ds, err = ds.AppendNumeric(col.name, col.values); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	ds, _ = ds.AppendStrings("sex", []string{"Male", "f"})
	ds, _ = ds.AppendStrings("income_level", []string{"Low", "High"})
	ds, _ = ds.AppendStrings("education_level", []string{"Highschool", "Bachelor"})
	ds, _ = ds.AppendStrings("smoking_status", []string{"Former", "smoker"})
	ds, _ = ds.AppendStrings("diabetes_stage", []string{"II", "none"})
	ds, _ = ds.AppendBools("diagnosed_diabetes", []bool{true, false})
	return ds
}

func TestTransformEndToEnd(t *testing.T) {
	p := newPipeline(t, Options{ValidateSchema: true, TargetColumn: "diagnosed_diabetes"})

	input := fullDataset(t)
	result, err := p.Transform(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Dataset.Rows() != input.Rows() {
		t.Fatalf("row count changed: %d -> %d", input.Rows(), result.Dataset.Rows())
	}
	if result.Dataset.Len() <= input.Len() {
		t.Fatal("expected feature columns appended")
	}

	for _, name := range []string{"age_group", "glucose_category", "bmi_category", "homa_ir", "metabolic_syndrome_flag", "lifestyle_score", "sleep_efficiency"} {
		if !result.Dataset.Has(name) {
			t.Fatalf("expected feature column %q", name)
		}
	}

	if len(result.RemovedColumns) != 1 || result.RemovedColumns[0] != "diabetes_stage" {
		t.Fatalf("unexpected removed columns: %v", result.RemovedColumns)
	}
	if result.Dataset.Has("diabetes_stage") {
		t.Fatal("leaking column still in output")
	}
	if !result.Dataset.Has("diagnosed_diabetes") {
		t.Fatal("target column must be retained")
	}
}

func TestTransformScenarioRequiredOnly(t *testing.T) {
	ds := tabular.New(1)
	ds, _ = ds.AppendNumeric("Age", []float64{45})
	ds, _ = ds.AppendNumeric("glucose_fasting", []float64{130})
	ds, _ = ds.AppendNumeric("bmi", []float64{31.2})

	p := newPipeline(t, Options{ValidateSchema: true})
	result, err := p.Transform(ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	glucose, _ := result.Dataset.Strings("glucose_category")
	if glucose[0] != "Diabetic" {
		t.Fatalf("glucose_category = %q, want Diabetic", glucose[0])
	}
	bmi, _ := result.Dataset.Strings("bmi_category")
	if bmi[0] != "Obese" {
		t.Fatalf("bmi_category = %q, want Obese", bmi[0])
	}
}

func TestTransformMissingRequiredColumn(t *testing.T) {
	ds := tabular.New(1)
	ds, _ = ds.AppendNumeric("Age", []float64{45})
	ds, _ = ds.AppendNumeric("glucose_fasting", []float64{130})

	p := newPipeline(t, Options{ValidateSchema: true})
	_, err := p.Transform(ds)
	if err == nil {
		t.Fatal("expected SchemaValidationError")
	}
	if !schema.IsSchemaValidationError(err) {
		t.Fatalf("expected SchemaValidationError, got %T", err)
	}
	if err.Error() != "Missing required columns: ['bmi']" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestTransformLenientModeDegrades(t *testing.T) {
	ds := tabular.New(1)
	ds, _ = ds.AppendNumeric("Age", []float64{45})

	p := newPipeline(t, Options{ValidateSchema: false})
	result, err := p.Transform(ds)
	if err != nil {
		t.Fatalf("lenient transform must not fail: %v", err)
	}

	if !result.Dataset.Has("age_group") {
		t.Fatal("demographics stage should still run")
	}
	if result.Dataset.Has("glucose_category") {
		t.Fatal("medical stage should be skipped without fasting glucose")
	}
	if result.Report.Valid() {
		t.Fatal("report must record missing required columns")
	}
}

func TestTransformRowOrderInvariance(t *testing.T) {
	forward := fullDataset(t)

	reversed := tabular.New(2)
	for _, col := range forward.Columns() {
		var err error
		switch col.Kind {
		case tabular.Numeric:
			reversed, err = reversed.AppendNumeric(col.Name, []float64{col.Floats[1], col.Floats[0]})
		case tabular.Categorical:
			reversed, err = reversed.AppendStrings(col.Name, []string{col.Strings[1], col.Strings[0]})
		case tabular.Boolean:
			reversed, err = reversed.AppendBools(col.Name, []bool{col.Bools[1], col.Bools[0]})
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	p := newPipeline(t, Options{ValidateSchema: true, TargetColumn: "diagnosed_diabetes"})
	a, err := p.Transform(forward)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := p.Transform(reversed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, name := range a.FeatureColumns {
		colA, _ := a.Dataset.Column(name)
		colB, ok := b.Dataset.Column(name)
		if !ok {
			t.Fatalf("feature %q missing from reversed run", name)
		}
		for i := 0; i < 2; i++ {
			j := 1 - i
			switch colA.Kind {
			case tabular.Numeric:
				va, vb := colA.Floats[i], colB.Floats[j]
				if va != vb && !(tabular.IsMissing(va) && tabular.IsMissing(vb)) {
					t.Fatalf("feature %q row-order dependent: %v vs %v", name, va, vb)
				}
			case tabular.Categorical:
				if colA.Strings[i] != colB.Strings[j] {
					t.Fatalf("feature %q row-order dependent", name)
				}
			case tabular.Boolean:
				if colA.Bools[i] != colB.Bools[j] {
					t.Fatalf("feature %q row-order dependent", name)
				}
			}
		}
	}
}

func TestTransformRepeatableOnSameInstance(t *testing.T) {
	p := newPipeline(t, Options{ValidateSchema: true, TargetColumn: "diagnosed_diabetes"})

	first, err := p.Transform(fullDataset(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.Transform(fullDataset(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first.FeatureColumns) != len(second.FeatureColumns) {
		t.Fatalf("feature sets differ between runs: %v vs %v", first.FeatureColumns, second.FeatureColumns)
	}
	for i := range first.FeatureColumns {
		if first.FeatureColumns[i] != second.FeatureColumns[i] {
			t.Fatalf("feature order differs between runs")
		}
	}
}

func TestNewRejectsInvalidStrategy(t *testing.T) {
	_, err := New(Options{AgeGroupStrategy: features.AgeGroupStrategy("coarse"), Log: testLogger()})
	if err == nil {
		t.Fatal("expected error for invalid strategy")
	}
}

func TestTransformProtectedLeakageColumnFails(t *testing.T) {
	rules := preprocess.DefaultLeakageRules()
	rules.Rules = append(rules.Rules, preprocess.LeakageRule{Name: "overbroad", Pattern: `^bmi$`, Enabled: true})

	p := newPipeline(t, Options{ValidateSchema: true, TargetColumn: "diagnosed_diabetes", LeakageRules: rules})

	_, err := p.Transform(fullDataset(t))
	if err == nil {
		t.Fatal("expected InsufficientFeaturesError")
	}
	if !preprocess.IsInsufficientFeaturesError(err) {
		t.Fatalf("expected InsufficientFeaturesError, got %T", err)
	}
}
