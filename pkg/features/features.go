// Package features implements the ordered feature derivation stages. Every
// feature is an explicit guideline rule over named input columns; nothing is
// learned. Stages are append-only: they return a dataset with new columns and
// never rewrite or reorder existing ones.
package features

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinrisk/platform/pkg/tabular"
)

// MissingRequiredInputError reports a required input absent inside a feature
// stage after validation already succeeded. It indicates a contract mismatch
// between the validator and the stage and must never be swallowed.
type MissingRequiredInputError struct {
	Stage   string
	Columns []string // sorted
}

func (e MissingRequiredInputError) Error() string {
	return fmt.Sprintf("stage %s: required input columns missing: [%s]", e.Stage, strings.Join(e.Columns, ", "))
}

func IsMissingRequiredInputError(err error) bool {
	var mre MissingRequiredInputError
	return errors.As(err, &mre)
}

// Config is the immutable per-pipeline configuration consumed by stages.
type Config struct {
	AgeGroupStrategy AgeGroupStrategy
	Log              logrus.FieldLogger
}

// Stage is one feature derivation step. Requires lists inputs the stage must
// find (all on the required contract list or produced by earlier stages);
// Optional lists inputs it degrades gracefully without. Produces lists output
// column names in append order. A stage never reads a column it did not
// declare.
type Stage interface {
	Name() string
	Requires() []string
	Optional() []string
	Produces() []string
	Apply(ds tabular.Dataset, cfg Config) (tabular.Dataset, error)
}

// Stages returns the six derivation stages in guideline-hierarchy order:
// demographics, medical, clinical interactions, advanced metabolic,
// behavioral, lifestyle.
func Stages() []Stage {
	return []Stage{
		Demographics{},
		Medical{},
		Clinical{},
		Metabolic{},
		Behavioral{},
		Lifestyle{},
	}
}

// requireInputs is the defensive invariant check run at the top of every
// stage; unreachable in normal operation once validation has passed.
func requireInputs(ds tabular.Dataset, stage Stage) error {
	missing := ds.Missing(stage.Requires())
	if len(missing) > 0 {
		return MissingRequiredInputError{Stage: stage.Name(), Columns: missing}
	}
	return nil
}

func skipFeature(cfg Config, stage, feature string, inputs ...string) {
	cfg.Log.WithFields(logrus.Fields{
		"stage":   stage,
		"feature": feature,
		"inputs":  inputs,
	}).Warn("Input columns missing, feature skipped")
}

func warnSentinels(cfg Config, stage, feature string, rows int) {
	if rows == 0 {
		return
	}
	cfg.Log.WithFields(logrus.Fields{
		"stage":   stage,
		"feature": feature,
		"rows":    rows,
	}).Warn("Non-computable values recorded as sentinel")
}

// safeRatio divides element-wise, writing the sentinel wherever the
// denominator is zero, negative or missing. Returns the sentinel row count.
func safeRatio(num, den []float64) ([]float64, int) {
	out := make([]float64, len(num))
	bad := 0
	for i := range num {
		if tabular.IsMissing(num[i]) || tabular.IsMissing(den[i]) || den[i] <= 0 {
			out[i] = tabular.MissingValue()
			bad++
			continue
		}
		out[i] = num[i] / den[i]
	}
	return out, bad
}

// product multiplies element-wise; missing inputs propagate as sentinel.
func product(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		if tabular.IsMissing(a[i]) || tabular.IsMissing(b[i]) {
			out[i] = tabular.MissingValue()
			continue
		}
		out[i] = a[i] * b[i]
	}
	return out
}

func capAt(values []float64, limit float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if !tabular.IsMissing(v) && v > limit {
			v = limit
		}
		out[i] = v
	}
	return out
}
