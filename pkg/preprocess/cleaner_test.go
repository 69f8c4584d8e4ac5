package preprocess

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

func TestCleanHarmonizesSynonymsAndCase(t *testing.T) {
	ds := tabular.New(4)
	ds, _ = ds.AppendStrings("smoking_status", []string{"ex-smoker", "NEVER", "smoker", "pipes only"})
	ds, _ = ds.AppendStrings("sex", []string{"m", "Female", " F ", ""})

	cleaner := NewCleaner(DefaultCatalog(), testLogger())
	out := cleaner.Clean(ds)

	smoking, _ := out.Strings("smoking_status")
	want := []string{"Former", "Never", "Current", "Unknown"}
	for i, w := range want {
		if smoking[i] != w {
			t.Fatalf("smoking_status[%d] = %q, want %q", i, smoking[i], w)
		}
	}

	sex, _ := out.Strings("sex")
	wantSex := []string{"Male", "Female", "Female", "Unknown"}
	for i, w := range wantSex {
		if sex[i] != w {
			t.Fatalf("sex[%d] = %q, want %q", i, sex[i], w)
		}
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	ds := tabular.New(3)
	ds, _ = ds.AppendStrings("smoking_status", []string{"quit", "Current", "???"})

	cleaner := NewCleaner(DefaultCatalog(), testLogger())
	once := cleaner.Clean(ds)
	twice := cleaner.Clean(once)

	first, _ := once.Strings("smoking_status")
	second, _ := twice.Strings("smoking_status")
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cleaning not idempotent at row %d: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestCleanLeavesUncatalogedColumnsAlone(t *testing.T) {
	ds := tabular.New(2)
	ds, _ = ds.AppendStrings("free_text_notes", []string{"stable", "worsening"})

	out := NewCleaner(DefaultCatalog(), testLogger()).Clean(ds)
	values, _ := out.Strings("free_text_notes")
	if values[0] != "stable" || values[1] != "worsening" {
		t.Fatalf("uncataloged column was rewritten: %v", values)
	}
}

func TestCleanDoesNotMutateInput(t *testing.T) {
	ds := tabular.New(1)
	ds, _ = ds.AppendStrings("sex", []string{"m"})

	NewCleaner(DefaultCatalog(), testLogger()).Clean(ds)
	values, _ := ds.Strings("sex")
	if values[0] != "m" {
		t.Fatalf("input dataset mutated: %v", values)
	}
}
