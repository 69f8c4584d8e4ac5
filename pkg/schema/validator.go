package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinrisk/platform/pkg/tabular"
)

// SchemaValidationError reports required columns absent from the input. It is
// fatal: the pipeline aborts before any transformation runs.
type SchemaValidationError struct {
	Missing []string // sorted
}

func (e SchemaValidationError) Error() string {
	return fmt.Sprintf("Missing required columns: %s", formatNames(e.Missing))
}

func IsSchemaValidationError(err error) bool {
	var sve SchemaValidationError
	return errors.As(err, &sve)
}

// formatNames renders a sorted name list as ['a', 'b'], the format promised
// to callers and asserted by downstream tooling.
func formatNames(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// Report lists contracted columns absent from a dataset. With validation
// disabled it lets downstream modules branch into degraded behavior instead
// of crashing.
type Report struct {
	MissingRequired []string `json:"missing_required,omitempty"`
	MissingOptional []string `json:"missing_optional,omitempty"`
}

func (r Report) Valid() bool { return len(r.MissingRequired) == 0 }

type Validator struct {
	contracts ContractSet
	strict    bool
	log       logrus.FieldLogger
}

// NewValidator builds a validator over a static contract set. strict selects
// fail-fast behavior for missing required columns.
func NewValidator(contracts ContractSet, strict bool, log logrus.FieldLogger) *Validator {
	return &Validator{contracts: contracts, strict: strict, log: log}
}

func (v *Validator) Contracts() ContractSet { return v.contracts }

// Validate checks the dataset against the contract set. In strict mode a
// non-empty missing-required set fails with SchemaValidationError whose
// message enumerates the literal missing names, sorted.
func (v *Validator) Validate(ds tabular.Dataset) (Report, error) {
	report := Report{
		MissingRequired: ds.Missing(v.contracts.Required()),
		MissingOptional: ds.Missing(v.contracts.Optional()),
	}

	for _, name := range report.MissingOptional {
		v.log.WithField("column", name).Warn("Optional column missing, dependent features will be skipped")
	}

	if len(report.MissingRequired) > 0 {
		if v.strict {
			err := SchemaValidationError{Missing: report.MissingRequired}
			v.log.Error(err.Error())
			return report, err
		}
		v.log.WithField("columns", report.MissingRequired).Warn("Required columns missing, continuing in degraded mode")
		return report, nil
	}

	v.log.Info("All required columns are present")
	return report, nil
}
