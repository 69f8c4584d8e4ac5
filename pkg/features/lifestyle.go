package features

import (
	"github.com/clinrisk/platform/pkg/tabular"
)

// Lifestyle derives composite lifestyle quality indicators. The lifestyle
// score sums five equally weighted binary criteria onto a fixed 0-10 scale; a
// criterion whose input is missing scores zero, never aborts.
type Lifestyle struct{}

func (Lifestyle) Name() string { return "lifestyle" }

func (Lifestyle) Requires() []string { return nil }

func (Lifestyle) Optional() []string {
	return []string{"diet_score", "physical_activity_minutes", "sleep_hours", "alcohol_units_week", "smoking_status", "screen_time_hours"}
}

func (Lifestyle) Produces() []string {
	return []string{"lifestyle_score", "sleep_efficiency"}
}

// Lifestyle score criteria: diet score >=6, activity >=150 min/week, sleep
// within 7-9 h, alcohol <=2 units/week, never-smoker. Each met criterion adds
// lifestyleCriterionPoints.
const (
	lifestyleCriterionPoints = 2.0
	healthyDietScore         = 6.0
	healthySleepLow          = 7.0
	healthySleepHigh         = 9.0
	moderateAlcoholUnits     = 2.0
	sleepEfficiencyCap       = 2.0
)

func (l Lifestyle) Apply(ds tabular.Dataset, cfg Config) (tabular.Dataset, error) {
	if err := requireInputs(ds, l); err != nil {
		return tabular.Dataset{}, err
	}

	out := ds
	var err error

	diet, hasDiet := out.Numeric("diet_score")
	activity, hasActivity := out.Numeric("physical_activity_minutes")
	sleep, hasSleep := out.Numeric("sleep_hours")
	alcohol, hasAlcohol := out.Numeric("alcohol_units_week")
	smoking, hasSmoking := out.Strings("smoking_status")
	screen, hasScreen := out.Numeric("screen_time_hours")

	if hasDiet || hasActivity || hasSleep || hasAlcohol || hasSmoking {
		score := make([]float64, out.Rows())
		for i := range score {
			var s float64
			if hasDiet && diet[i] >= healthyDietScore {
				s += lifestyleCriterionPoints
			}
			if hasActivity && activity[i] >= whoActivityMinutes {
				s += lifestyleCriterionPoints
			}
			if hasSleep && sleep[i] >= healthySleepLow && sleep[i] <= healthySleepHigh {
				s += lifestyleCriterionPoints
			}
			if hasAlcohol && alcohol[i] <= moderateAlcoholUnits {
				s += lifestyleCriterionPoints
			}
			if hasSmoking && smoking[i] == "Never" {
				s += lifestyleCriterionPoints
			}
			score[i] = s
		}
		if out, err = out.AppendNumeric("lifestyle_score", score); err != nil {
			return tabular.Dataset{}, err
		}
	} else {
		skipFeature(cfg, l.Name(), "lifestyle_score", "diet_score", "physical_activity_minutes", "sleep_hours", "alcohol_units_week", "smoking_status")
	}

	if hasSleep && hasScreen {
		efficiency := make([]float64, out.Rows())
		bad := 0
		for i := range efficiency {
			denominator := screen[i] + 1
			if tabular.IsMissing(sleep[i]) || tabular.IsMissing(screen[i]) || denominator <= 0 {
				efficiency[i] = tabular.MissingValue()
				bad++
				continue
			}
			efficiency[i] = sleep[i] / denominator
		}
		warnSentinels(cfg, l.Name(), "sleep_efficiency", bad)
		if out, err = out.AppendNumeric("sleep_efficiency", capAt(efficiency, sleepEfficiencyCap)); err != nil {
			return tabular.Dataset{}, err
		}
	} else {
		skipFeature(cfg, l.Name(), "sleep_efficiency", "sleep_hours", "screen_time_hours")
	}

	return out, nil
}
