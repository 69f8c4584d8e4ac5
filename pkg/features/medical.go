package features

import (
	"github.com/clinrisk/platform/pkg/tabular"
)

// Medical derives glycemic, anthropometric and blood-pressure categories plus
// the HOMA-IR insulin resistance index.
//
// Guideline thresholds:
//   - ADA: fasting glucose <100 normal, 100-125 pre-diabetic, >=126 diabetic;
//     HbA1c <5.7 / 5.7-6.4 / >=6.5
//   - WHO: BMI <18.5 underweight, <25 normal, <30 overweight, >=30 obese
//   - JNC: <120/80 normal, <140/90 pre-hypertension, above hypertension
type Medical struct{}

func (Medical) Name() string { return "medical" }

func (Medical) Requires() []string { return []string{"glucose_fasting", "bmi"} }

func (Medical) Optional() []string {
	return []string{"hba1c", "insulin_fasting", "systolic_bp", "diastolic_bp"}
}

func (Medical) Produces() []string {
	return []string{"glucose_category", "hba1c_category", "bmi_category", "bp_category", "homa_ir", "insulin_resistance_flag"}
}

var (
	glucoseBins = makeBins([]float64{0, 100, 126}, []string{"Normal", "Pre-Diabetic", "Diabetic"})
	hba1cBins   = makeBins([]float64{0, 5.7, 6.5}, []string{"Normal", "Pre-Diabetic", "Diabetic"})
	bmiBins     = makeBins([]float64{0, 18.5, 25, 30}, []string{"Underweight", "Normal", "Overweight", "Obese"})
)

// homaIRDenominator is the standard HOMA-IR constant for glucose in mg/dL.
const homaIRDenominator = 405.0

// insulinResistanceCutoff is the widely used HOMA-IR threshold.
const insulinResistanceCutoff = 2.5

func (m Medical) Apply(ds tabular.Dataset, cfg Config) (tabular.Dataset, error) {
	if err := requireInputs(ds, m); err != nil {
		return tabular.Dataset{}, err
	}

	glucose, _ := ds.Numeric("glucose_fasting")
	bmi, _ := ds.Numeric("bmi")

	out, err := ds.AppendStrings("glucose_category", binColumn(glucoseBins, glucose))
	if err != nil {
		return tabular.Dataset{}, err
	}

	if hba1c, ok := out.Numeric("hba1c"); ok {
		out, err = out.AppendStrings("hba1c_category", binColumn(hba1cBins, hba1c))
		if err != nil {
			return tabular.Dataset{}, err
		}
	} else {
		skipFeature(cfg, m.Name(), "hba1c_category", "hba1c")
	}

	out, err = out.AppendStrings("bmi_category", binColumn(bmiBins, bmi))
	if err != nil {
		return tabular.Dataset{}, err
	}

	out, err = m.applyBloodPressure(out, cfg)
	if err != nil {
		return tabular.Dataset{}, err
	}

	return m.applyHomaIR(out, cfg, glucose)
}

func (m Medical) applyBloodPressure(ds tabular.Dataset, cfg Config) (tabular.Dataset, error) {
	systolic, hasSys := ds.Numeric("systolic_bp")
	diastolic, hasDia := ds.Numeric("diastolic_bp")
	if !hasSys || !hasDia {
		skipFeature(cfg, m.Name(), "bp_category", "systolic_bp", "diastolic_bp")
		return ds, nil
	}

	categories := make([]string, len(systolic))
	for i := range systolic {
		categories[i] = bpCategory(systolic[i], diastolic[i])
	}
	return ds.AppendStrings("bp_category", categories)
}

func bpCategory(systolic, diastolic float64) string {
	if tabular.IsMissing(systolic) || tabular.IsMissing(diastolic) {
		return tabular.Unknown
	}
	switch {
	case systolic < 120 && diastolic < 80:
		return "Normal"
	case systolic < 140 && diastolic < 90:
		return "Pre-Hypertension"
	default:
		return "Hypertension"
	}
}

func (m Medical) applyHomaIR(ds tabular.Dataset, cfg Config, glucose []float64) (tabular.Dataset, error) {
	insulin, ok := ds.Numeric("insulin_fasting")
	if !ok {
		skipFeature(cfg, m.Name(), "homa_ir", "insulin_fasting")
		return ds, nil
	}

	homa := make([]float64, len(glucose))
	flags := make([]bool, len(glucose))
	bad := 0
	for i := range glucose {
		if tabular.IsMissing(glucose[i]) || tabular.IsMissing(insulin[i]) || glucose[i] <= 0 || insulin[i] <= 0 {
			homa[i] = tabular.MissingValue()
			bad++
			continue
		}
		homa[i] = glucose[i] * insulin[i] / homaIRDenominator
		flags[i] = homa[i] > insulinResistanceCutoff
	}
	warnSentinels(cfg, m.Name(), "homa_ir", bad)

	out, err := ds.AppendNumeric("homa_ir", homa)
	if err != nil {
		return tabular.Dataset{}, err
	}
	return out.AppendBools("insulin_resistance_flag", flags)
}
