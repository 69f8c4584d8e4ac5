package features

import (
	"github.com/clinrisk/platform/pkg/tabular"
)

// Demographics derives age-related risk features and a socio-economic
// vulnerability score. Age and socio-economic context are major determinants
// of metabolic disease prevalence.
type Demographics struct{}

func (Demographics) Name() string { return "demographics" }

func (Demographics) Requires() []string { return []string{"Age"} }

func (Demographics) Optional() []string {
	return []string{"income_level", "education_level", "employment_status"}
}

func (Demographics) Produces() []string {
	return []string{"age_group", "age_squared", "socioeconomic_vulnerability"}
}

func (d Demographics) Apply(ds tabular.Dataset, cfg Config) (tabular.Dataset, error) {
	if err := requireInputs(ds, d); err != nil {
		return tabular.Dataset{}, err
	}

	age, _ := ds.Numeric("Age")

	out, err := ds.AppendStrings("age_group", binColumn(cfg.AgeGroupStrategy.bins(), age))
	if err != nil {
		return tabular.Dataset{}, err
	}

	squared := make([]float64, len(age))
	for i, v := range age {
		if tabular.IsMissing(v) {
			squared[i] = tabular.MissingValue()
			continue
		}
		squared[i] = v * v
	}
	out, err = out.AppendNumeric("age_squared", squared)
	if err != nil {
		return tabular.Dataset{}, err
	}

	return d.applyVulnerability(out, cfg)
}

// Socio-economic vulnerability sub-indicator weights; the score is their sum
// on a fixed 0-10 scale. A missing indicator column contributes zero.
const (
	vulnerabilityIncomeWeight     = 4.0
	vulnerabilityEducationWeight  = 4.0
	vulnerabilityEmploymentWeight = 2.0
)

func (d Demographics) applyVulnerability(ds tabular.Dataset, cfg Config) (tabular.Dataset, error) {
	income, hasIncome := ds.Strings("income_level")
	education, hasEducation := ds.Strings("education_level")
	employment, hasEmployment := ds.Strings("employment_status")

	if !hasIncome && !hasEducation && !hasEmployment {
		skipFeature(cfg, d.Name(), "socioeconomic_vulnerability", "income_level", "education_level", "employment_status")
		return ds, nil
	}

	score := make([]float64, ds.Rows())
	for i := range score {
		var s float64
		if hasIncome {
			s += vulnerabilityIncomeWeight * incomeVulnerability(income[i])
		}
		if hasEducation {
			s += vulnerabilityEducationWeight * educationVulnerability(education[i])
		}
		if hasEmployment {
			s += vulnerabilityEmploymentWeight * employmentVulnerability(employment[i])
		}
		score[i] = s
	}

	return ds.AppendNumeric("socioeconomic_vulnerability", score)
}

func incomeVulnerability(level string) float64 {
	switch level {
	case "Low":
		return 1.0
	case "Lower-Middle":
		return 0.6
	case "Middle":
		return 0.3
	}
	return 0
}

func educationVulnerability(level string) float64 {
	switch level {
	case "No formal":
		return 1.0
	case "Highschool":
		return 0.5
	}
	return 0
}

func employmentVulnerability(status string) float64 {
	switch status {
	case "Inactive":
		return 1.0
	case "Student":
		return 0.5
	}
	return 0
}
