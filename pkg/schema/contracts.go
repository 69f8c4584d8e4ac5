package schema

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Contract describes one expected input column. Unit is documentation only
// and never checked at runtime.
type Contract struct {
	Name     string `yaml:"name" json:"name"`
	Required bool   `yaml:"required" json:"required"`
	Type     string `yaml:"type" json:"type"` // numeric, categorical, boolean
	Unit     string `yaml:"unit,omitempty" json:"unit,omitempty"`
}

type ContractSet struct {
	Contracts []Contract `yaml:"contracts" json:"contracts"`
}

// Load reads a contract set from a YAML file, falling back to the compiled-in
// default set when no path is given.
func Load(path string) (ContractSet, error) {
	if path == "" {
		return DefaultContracts(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultContracts(), err
	}
	var set ContractSet
	if err := yaml.Unmarshal(content, &set); err != nil {
		return ContractSet{}, err
	}
	if len(set.Contracts) == 0 {
		return ContractSet{}, errors.New("contract set empty")
	}
	return set, nil
}

// Required returns the names of required columns.
func (s ContractSet) Required() []string {
	var names []string
	for _, c := range s.Contracts {
		if c.Required {
			names = append(names, c.Name)
		}
	}
	return names
}

// Optional returns the names of optional columns.
func (s ContractSet) Optional() []string {
	var names []string
	for _, c := range s.Contracts {
		if !c.Required {
			names = append(names, c.Name)
		}
	}
	return names
}

// Names returns every contracted column name.
func (s ContractSet) Names() []string {
	names := make([]string, 0, len(s.Contracts))
	for _, c := range s.Contracts {
		names = append(names, c.Name)
	}
	return names
}

// DefaultContracts is the compiled-in contract set for patient health
// records. Only Age, fasting glucose and BMI are hard requirements; every
// other column degrades to skipped features when absent.
func DefaultContracts() ContractSet {
	return ContractSet{Contracts: []Contract{
		{Name: "Age", Required: true, Type: "numeric", Unit: "years"},
		{Name: "glucose_fasting", Required: true, Type: "numeric", Unit: "mg/dL"},
		{Name: "bmi", Required: true, Type: "numeric", Unit: "kg/m2"},

		{Name: "patient_id", Type: "categorical"},
		{Name: "sex", Type: "categorical"},
		{Name: "income_level", Type: "categorical"},
		{Name: "education_level", Type: "categorical"},
		{Name: "employment_status", Type: "categorical"},
		{Name: "smoking_status", Type: "categorical"},
		{Name: "hba1c", Type: "numeric", Unit: "%"},
		{Name: "insulin_fasting", Type: "numeric", Unit: "uU/mL"},
		{Name: "glucose_postprandial", Type: "numeric", Unit: "mg/dL"},
		{Name: "hdl_cholesterol", Type: "numeric", Unit: "mg/dL"},
		{Name: "ldl_cholesterol", Type: "numeric", Unit: "mg/dL"},
		{Name: "total_cholesterol", Type: "numeric", Unit: "mg/dL"},
		{Name: "triglycerides", Type: "numeric", Unit: "mg/dL"},
		{Name: "systolic_bp", Type: "numeric", Unit: "mmHg"},
		{Name: "diastolic_bp", Type: "numeric", Unit: "mmHg"},
		{Name: "physical_activity_minutes", Type: "numeric", Unit: "min/week"},
		{Name: "sleep_hours", Type: "numeric", Unit: "h/day"},
		{Name: "screen_time_hours", Type: "numeric", Unit: "h/day"},
		{Name: "diet_score", Type: "numeric"},
		{Name: "alcohol_units_week", Type: "numeric", Unit: "units/week"},
	}}
}
