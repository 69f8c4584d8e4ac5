package schema

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/clinrisk/platform/pkg/tabular"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func minimalDataset(t *testing.T) tabular.Dataset {
	t.Helper()
	ds := tabular.New(2)
	var err error
	for name, values := range map[string][]float64{
		"Age":             {40, 60},
		"glucose_fasting": {110, 150},
		"bmi":             {27, 32},
	} {
		ds, err = ds.AppendNumeric(name, values)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	return ds
}

func TestValidatePasses(t *testing.T) {
	v := NewValidator(DefaultContracts(), true, testLogger())
	report, err := v.Validate(minimalDataset(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Valid() {
		t.Fatalf("expected valid report, missing required: %v", report.MissingRequired)
	}
}

func TestValidateFailsWithSortedMessage(t *testing.T) {
	ds := minimalDataset(t).Drop("bmi", "glucose_fasting")
	v := NewValidator(DefaultContracts(), true, testLogger())

	_, err := v.Validate(ds)
	if err == nil {
		t.Fatal("expected SchemaValidationError")
	}
	if !IsSchemaValidationError(err) {
		t.Fatalf("expected SchemaValidationError, got %T", err)
	}
	want := "Missing required columns: ['bmi', 'glucose_fasting']"
	if err.Error() != want {
		t.Fatalf("unexpected message:\n got: %s\nwant: %s", err.Error(), want)
	}
}

func TestValidateSingleMissingColumnMessage(t *testing.T) {
	ds := minimalDataset(t).Drop("bmi")
	v := NewValidator(DefaultContracts(), true, testLogger())

	_, err := v.Validate(ds)
	if err == nil || err.Error() != "Missing required columns: ['bmi']" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateLenientReportsInsteadOfFailing(t *testing.T) {
	ds := minimalDataset(t).Drop("bmi")
	v := NewValidator(DefaultContracts(), false, testLogger())

	report, err := v.Validate(ds)
	if err != nil {
		t.Fatalf("lenient validation must never fail, got %v", err)
	}
	if report.Valid() {
		t.Fatal("expected missing required column in report")
	}
	if len(report.MissingRequired) != 1 || report.MissingRequired[0] != "bmi" {
		t.Fatalf("unexpected missing required set: %v", report.MissingRequired)
	}
	if len(report.MissingOptional) == 0 {
		t.Fatal("expected missing optional columns in report")
	}
}
