package features

import (
	"github.com/clinrisk/platform/pkg/tabular"
)

// Clinical derives interaction features and lipid/glycemic ratios. Ratios
// such as HDL/LDL and total/HDL indicate cardiometabolic risk beyond the raw
// values; denominators at or below zero yield the sentinel, never a failure.
type Clinical struct{}

func (Clinical) Name() string { return "clinical_interaction" }

func (Clinical) Requires() []string { return []string{"glucose_fasting", "bmi"} }

func (Clinical) Optional() []string {
	return []string{"hdl_cholesterol", "ldl_cholesterol", "total_cholesterol", "glucose_postprandial"}
}

func (Clinical) Produces() []string {
	return []string{"lipid_ratio_hdl_ldl", "cholesterol_hdl_ratio", "bmi_glucose_interaction", "glucose_variability"}
}

func (c Clinical) Apply(ds tabular.Dataset, cfg Config) (tabular.Dataset, error) {
	if err := requireInputs(ds, c); err != nil {
		return tabular.Dataset{}, err
	}

	glucose, _ := ds.Numeric("glucose_fasting")
	bmi, _ := ds.Numeric("bmi")
	out := ds
	var err error

	hdl, hasHDL := out.Numeric("hdl_cholesterol")

	if ldl, ok := out.Numeric("ldl_cholesterol"); ok && hasHDL {
		ratio, bad := safeRatio(hdl, ldl)
		warnSentinels(cfg, c.Name(), "lipid_ratio_hdl_ldl", bad)
		if out, err = out.AppendNumeric("lipid_ratio_hdl_ldl", ratio); err != nil {
			return tabular.Dataset{}, err
		}
	} else {
		skipFeature(cfg, c.Name(), "lipid_ratio_hdl_ldl", "hdl_cholesterol", "ldl_cholesterol")
	}

	if total, ok := out.Numeric("total_cholesterol"); ok && hasHDL {
		ratio, bad := safeRatio(total, hdl)
		warnSentinels(cfg, c.Name(), "cholesterol_hdl_ratio", bad)
		if out, err = out.AppendNumeric("cholesterol_hdl_ratio", ratio); err != nil {
			return tabular.Dataset{}, err
		}
	} else {
		skipFeature(cfg, c.Name(), "cholesterol_hdl_ratio", "total_cholesterol", "hdl_cholesterol")
	}

	if out, err = out.AppendNumeric("bmi_glucose_interaction", product(bmi, glucose)); err != nil {
		return tabular.Dataset{}, err
	}

	if postprandial, ok := out.Numeric("glucose_postprandial"); ok {
		variability := make([]float64, len(glucose))
		bad := 0
		for i := range glucose {
			if tabular.IsMissing(glucose[i]) || tabular.IsMissing(postprandial[i]) || glucose[i] <= 0 {
				variability[i] = tabular.MissingValue()
				bad++
				continue
			}
			variability[i] = (postprandial[i] - glucose[i]) / glucose[i]
		}
		warnSentinels(cfg, c.Name(), "glucose_variability", bad)
		if out, err = out.AppendNumeric("glucose_variability", variability); err != nil {
			return tabular.Dataset{}, err
		}
	} else {
		skipFeature(cfg, c.Name(), "glucose_variability", "glucose_postprandial")
	}

	return out, nil
}
