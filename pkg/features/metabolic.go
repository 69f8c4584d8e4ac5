package features

import (
	"github.com/clinrisk/platform/pkg/tabular"
)

// Metabolic derives advanced metabolic burden features. The metabolic
// syndrome flag follows the NCEP-ATP III rule: at least three of five
// criteria met. A criterion whose input column is missing counts as not met.
type Metabolic struct{}

func (Metabolic) Name() string { return "metabolic" }

func (Metabolic) Requires() []string { return []string{"glucose_fasting", "bmi"} }

func (Metabolic) Optional() []string {
	return []string{"systolic_bp", "diastolic_bp", "triglycerides", "hdl_cholesterol"}
}

func (Metabolic) Produces() []string {
	return []string{"glycemic_load", "blood_pressure_ratio", "dyslipidemia_flag", "metabolic_syndrome_flag", "cardiometabolic_burden"}
}

// ATP III criterion thresholds (BMI substitutes for waist circumference,
// which is absent from the record schema).
const (
	atpObesityBMI       = 30.0
	atpElevatedSystolic = 130.0
	atpTriglycerides    = 150.0
	atpLowHDL           = 40.0
	atpFastingGlucose   = 110.0
	atpCriteriaRequired = 3
)

func (m Metabolic) Apply(ds tabular.Dataset, cfg Config) (tabular.Dataset, error) {
	if err := requireInputs(ds, m); err != nil {
		return tabular.Dataset{}, err
	}

	glucose, _ := ds.Numeric("glucose_fasting")
	bmi, _ := ds.Numeric("bmi")
	out := ds
	var err error

	if out, err = out.AppendNumeric("glycemic_load", product(glucose, bmi)); err != nil {
		return tabular.Dataset{}, err
	}

	systolic, hasSys := out.Numeric("systolic_bp")
	if diastolic, ok := out.Numeric("diastolic_bp"); ok && hasSys {
		ratio, bad := safeRatio(systolic, diastolic)
		warnSentinels(cfg, m.Name(), "blood_pressure_ratio", bad)
		if out, err = out.AppendNumeric("blood_pressure_ratio", ratio); err != nil {
			return tabular.Dataset{}, err
		}
	} else {
		skipFeature(cfg, m.Name(), "blood_pressure_ratio", "systolic_bp", "diastolic_bp")
	}

	triglycerides, hasTrig := out.Numeric("triglycerides")
	hdl, hasHDL := out.Numeric("hdl_cholesterol")

	if hasTrig || hasHDL {
		flags := make([]bool, out.Rows())
		for i := range flags {
			flags[i] = (hasTrig && triglycerides[i] >= atpTriglycerides) ||
				(hasHDL && !tabular.IsMissing(hdl[i]) && hdl[i] < atpLowHDL)
		}
		if out, err = out.AppendBools("dyslipidemia_flag", flags); err != nil {
			return tabular.Dataset{}, err
		}
	} else {
		skipFeature(cfg, m.Name(), "dyslipidemia_flag", "triglycerides", "hdl_cholesterol")
	}

	burden := make([]float64, out.Rows())
	syndrome := make([]bool, out.Rows())
	for i := range burden {
		met := 0
		if bmi[i] >= atpObesityBMI {
			met++
		}
		if hasSys && systolic[i] >= atpElevatedSystolic {
			met++
		}
		if hasTrig && triglycerides[i] >= atpTriglycerides {
			met++
		}
		if hasHDL && !tabular.IsMissing(hdl[i]) && hdl[i] < atpLowHDL {
			met++
		}
		if glucose[i] >= atpFastingGlucose {
			met++
		}
		burden[i] = float64(met)
		syndrome[i] = met >= atpCriteriaRequired
	}

	if out, err = out.AppendBools("metabolic_syndrome_flag", syndrome); err != nil {
		return tabular.Dataset{}, err
	}
	return out.AppendNumeric("cardiometabolic_burden", burden)
}
