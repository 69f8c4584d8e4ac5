package preprocess

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/clinrisk/platform/pkg/tabular"
)

// InsufficientFeaturesError reports that stripping leaking columns would
// remove inputs a required downstream feature module depends on. It is fatal
// and surfaced before any derivation stage runs.
type InsufficientFeaturesError struct {
	Columns []string // sorted
}

func (e InsufficientFeaturesError) Error() string {
	return fmt.Sprintf("leakage stripping would remove required feature inputs: [%s]", strings.Join(e.Columns, ", "))
}

func IsInsufficientFeaturesError(err error) bool {
	var ife InsufficientFeaturesError
	return errors.As(err, &ife)
}

// LeakageRule flags columns whose name matches a leakage-prone pattern, e.g.
// fields literally derived from the prediction outcome.
type LeakageRule struct {
	Name    string `yaml:"name" json:"name"`
	Pattern string `yaml:"pattern" json:"pattern"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

type LeakageRules struct {
	Rules []LeakageRule `yaml:"rules" json:"rules"`

	// AssociationThreshold is the fraction of rows a column's value→target
	// mapping must explain before the column is treated as a near-perfect
	// deterministic function of the target. Default 0.99.
	AssociationThreshold float64 `yaml:"association_threshold" json:"association_threshold"`
}

// LoadLeakageRules reads leakage rules from a YAML file, falling back to the
// compiled-in defaults when no path is given.
func LoadLeakageRules(path string) (LeakageRules, error) {
	if path == "" {
		return DefaultLeakageRules(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultLeakageRules(), err
	}
	var cfg LeakageRules
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return LeakageRules{}, err
	}
	if len(cfg.Rules) == 0 {
		return LeakageRules{}, errors.New("no leakage rules configured")
	}
	if cfg.AssociationThreshold <= 0 || cfg.AssociationThreshold > 1 {
		cfg.AssociationThreshold = DefaultAssociationThreshold
	}
	return cfg, nil
}

// DefaultAssociationThreshold is the default near-determinism cutoff for the
// statistical association test.
const DefaultAssociationThreshold = 0.99

func DefaultLeakageRules() LeakageRules {
	return LeakageRules{
		AssociationThreshold: DefaultAssociationThreshold,
		Rules: []LeakageRule{
			{Name: "diabetes stage", Pattern: `^diabetes_stage$`, Enabled: true},
			{Name: "outcome risk score", Pattern: `_risk_score$`, Enabled: true},
			{Name: "diagnosed outcome", Pattern: `^diagnosed_`, Enabled: true},
			{Name: "outcome derived", Pattern: `^outcome(_|$)`, Enabled: true},
		},
	}
}

type compiledLeakageRule struct {
	rule LeakageRule
	re   *regexp.Regexp
}

// Detector identifies and strips columns that are deterministic or
// near-deterministic functions of the prediction target.
type Detector struct {
	rules     []compiledLeakageRule
	threshold float64
	log       logrus.FieldLogger
}

func NewDetector(cfg LeakageRules, log logrus.FieldLogger) (*Detector, error) {
	var compiled []compiledLeakageRule
	for _, rule := range cfg.Rules {
		if !rule.Enabled {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("leakage rule %s: %w", rule.Name, err)
		}
		compiled = append(compiled, compiledLeakageRule{rule: rule, re: re})
	}
	threshold := cfg.AssociationThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultAssociationThreshold
	}
	return &Detector{rules: compiled, threshold: threshold, log: log}, nil
}

// DetectAndStrip removes leaking columns and reports them by name. The target
// column itself is never removed. If a flagged column is on the protected
// list (required inputs of downstream feature modules) the detector fails
// with InsufficientFeaturesError instead of leaving the pipeline in an
// impossible state.
func (d *Detector) DetectAndStrip(ds tabular.Dataset, target string, protected []string) (tabular.Dataset, []string, error) {
	protectedSet := make(map[string]struct{}, len(protected))
	for _, name := range protected {
		protectedSet[name] = struct{}{}
	}

	var flagged []string
	for _, name := range ds.Names() {
		if name == target {
			continue
		}
		if d.matchesRule(name) || d.associatedWithTarget(ds, name, target) {
			flagged = append(flagged, name)
		}
	}

	if len(flagged) == 0 {
		d.log.Info("No leakage columns detected")
		return ds, nil, nil
	}
	sort.Strings(flagged)

	var blocked []string
	for _, name := range flagged {
		if _, ok := protectedSet[name]; ok {
			blocked = append(blocked, name)
		}
	}
	if len(blocked) > 0 {
		err := InsufficientFeaturesError{Columns: blocked}
		d.log.Error(err.Error())
		return tabular.Dataset{}, nil, err
	}

	d.log.WithField("columns", flagged).Warn("Removing leakage columns")
	return ds.Drop(flagged...), flagged, nil
}

func (d *Detector) matchesRule(name string) bool {
	for _, rule := range d.rules {
		if rule.re.MatchString(name) {
			return true
		}
	}
	return false
}

// associatedWithTarget tests whether a column's values partition 1:1 or near
// 1:1 with the target across all rows. The score is the fraction of rows
// whose target value equals the majority target for that column value; at or
// above the configured threshold the column is treated as leaking.
func (d *Detector) associatedWithTarget(ds tabular.Dataset, name, target string) bool {
	if target == "" || !ds.Has(target) || ds.Rows() == 0 {
		return false
	}

	colKeys := columnKeys(ds, name)
	targetKeys := columnKeys(ds, target)
	if colKeys == nil || targetKeys == nil {
		return false
	}

	// A column coarser than the target cannot determine it; this also guards
	// against constant columns scoring high on a skewed target.
	cardinality := distinct(colKeys)
	if cardinality < distinct(targetKeys) {
		return false
	}
	// Near-identifier columns (unique or almost unique per row) partition
	// 1:1 with anything. Determinism is only meaningful when values repeat.
	if cardinality*2 > len(colKeys) {
		return false
	}

	counts := make(map[string]map[string]int)
	for i := range colKeys {
		byTarget, ok := counts[colKeys[i]]
		if !ok {
			byTarget = make(map[string]int)
			counts[colKeys[i]] = byTarget
		}
		byTarget[targetKeys[i]]++
	}

	matched := 0
	for _, byTarget := range counts {
		best := 0
		for _, n := range byTarget {
			if n > best {
				best = n
			}
		}
		matched += best
	}

	score := float64(matched) / float64(ds.Rows())
	return score >= d.threshold
}

func columnKeys(ds tabular.Dataset, name string) []string {
	col, ok := ds.Column(name)
	if !ok {
		return nil
	}
	keys := make([]string, col.Len())
	switch col.Kind {
	case tabular.Categorical:
		copy(keys, col.Strings)
	case tabular.Boolean:
		for i, b := range col.Bools {
			keys[i] = strconv.FormatBool(b)
		}
	case tabular.Numeric:
		for i, v := range col.Floats {
			if math.IsNaN(v) {
				keys[i] = "NaN"
				continue
			}
			keys[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
	}
	return keys
}

func distinct(keys []string) int {
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		seen[k] = struct{}{}
	}
	return len(seen)
}
