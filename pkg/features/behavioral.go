package features

import (
	"github.com/clinrisk/platform/pkg/tabular"
)

// Behavioral derives physical activity, sedentary exposure and screen/sleep
// balance features, anchored on the WHO recommendation of at least 150
// minutes of physical activity per week.
type Behavioral struct{}

func (Behavioral) Name() string { return "behavioral" }

func (Behavioral) Requires() []string { return nil }

func (Behavioral) Optional() []string {
	return []string{"physical_activity_minutes", "screen_time_hours", "sleep_hours"}
}

func (Behavioral) Produces() []string {
	return []string{"physical_activity_adequate", "activity_adequacy_ratio", "sedentary_risk", "screen_sleep_imbalance"}
}

const (
	whoActivityMinutes = 150.0
	// activityRatioCap bounds the adequacy ratio so extreme self-reported
	// values cannot dominate downstream models.
	activityRatioCap     = 3.0
	sedentaryScreenHours = 6.0
	screenSleepCap       = 5.0
)

func (b Behavioral) Apply(ds tabular.Dataset, cfg Config) (tabular.Dataset, error) {
	if err := requireInputs(ds, b); err != nil {
		return tabular.Dataset{}, err
	}

	out := ds
	var err error

	activity, hasActivity := out.Numeric("physical_activity_minutes")
	screen, hasScreen := out.Numeric("screen_time_hours")
	sleep, hasSleep := out.Numeric("sleep_hours")

	if hasActivity {
		adequate := make([]bool, len(activity))
		ratio := make([]float64, len(activity))
		bad := 0
		for i, minutes := range activity {
			if tabular.IsMissing(minutes) || minutes < 0 {
				ratio[i] = tabular.MissingValue()
				bad++
				continue
			}
			adequate[i] = minutes >= whoActivityMinutes
			ratio[i] = minutes / whoActivityMinutes
		}
		warnSentinels(cfg, b.Name(), "activity_adequacy_ratio", bad)

		if out, err = out.AppendBools("physical_activity_adequate", adequate); err != nil {
			return tabular.Dataset{}, err
		}
		if out, err = out.AppendNumeric("activity_adequacy_ratio", capAt(ratio, activityRatioCap)); err != nil {
			return tabular.Dataset{}, err
		}
	} else {
		skipFeature(cfg, b.Name(), "physical_activity_adequate", "physical_activity_minutes")
	}

	if hasScreen || hasActivity {
		risk := make([]bool, out.Rows())
		for i := range risk {
			risk[i] = hasScreen && screen[i] >= sedentaryScreenHours &&
				hasActivity && activity[i] < whoActivityMinutes
		}
		if out, err = out.AppendBools("sedentary_risk", risk); err != nil {
			return tabular.Dataset{}, err
		}
	} else {
		skipFeature(cfg, b.Name(), "sedentary_risk", "screen_time_hours", "physical_activity_minutes")
	}

	if hasScreen && hasSleep {
		imbalance, bad := safeRatio(screen, sleep)
		warnSentinels(cfg, b.Name(), "screen_sleep_imbalance", bad)
		if out, err = out.AppendNumeric("screen_sleep_imbalance", capAt(imbalance, screenSleepCap)); err != nil {
			return tabular.Dataset{}, err
		}
	} else {
		skipFeature(cfg, b.Name(), "screen_sleep_imbalance", "screen_time_hours", "sleep_hours")
	}

	return out, nil
}
