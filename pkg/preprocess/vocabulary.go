package preprocess

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vocabulary is the canonical label set for one categorical column, plus the
// case-insensitive synonyms that map onto it.
type Vocabulary struct {
	Canonical []string          `yaml:"canonical" json:"canonical"`
	Synonyms  map[string]string `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
}

// Catalog maps column names to their vocabularies.
type Catalog struct {
	Columns map[string]Vocabulary `yaml:"columns" json:"columns"`
}

// LoadCatalog reads a vocabulary catalog from a YAML file, falling back to
// the compiled-in default when no path is given.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCatalog(), err
	}
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, err
	}
	if len(cat.Columns) == 0 {
		return Catalog{}, errors.New("vocabulary catalog empty")
	}
	return cat, nil
}

// Resolve maps a raw value to its canonical token. Unrecognized non-empty
// values and known missing markers resolve to Unknown, never to an error, so
// malformed strings cannot propagate into downstream comparisons.
func (v Vocabulary) Resolve(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	key := strings.ToLower(trimmed)
	if key == "" || isMissingMarker(key) {
		return "", false
	}
	for _, canon := range v.Canonical {
		if strings.EqualFold(canon, trimmed) {
			return canon, true
		}
	}
	if canon, ok := v.Synonyms[key]; ok {
		return canon, true
	}
	return "", false
}

func isMissingMarker(lower string) bool {
	switch lower {
	case "na", "n/a", "none", "null", "nan", "missing", "?", "unknown":
		return true
	}
	return false
}

// DefaultCatalog covers the categorical columns of the patient record
// schema. Synonym keys are lowercase.
func DefaultCatalog() Catalog {
	return Catalog{Columns: map[string]Vocabulary{
		"sex": {
			Canonical: []string{"Male", "Female"},
			Synonyms: map[string]string{
				"m":     "Male",
				"man":   "Male",
				"f":     "Female",
				"woman": "Female",
			},
		},
		"smoking_status": {
			Canonical: []string{"Never", "Former", "Current"},
			Synonyms: map[string]string{
				"non-smoker": "Never",
				"nonsmoker":  "Never",
				"ex-smoker":  "Former",
				"ex smoker":  "Former",
				"quit":       "Former",
				"smoker":     "Current",
				"daily":      "Current",
			},
		},
		"income_level": {
			Canonical: []string{"Low", "Lower-Middle", "Middle", "Upper-Middle", "High"},
			Synonyms: map[string]string{
				"lower middle": "Lower-Middle",
				"upper middle": "Upper-Middle",
			},
		},
		"education_level": {
			Canonical: []string{"No formal", "Highschool", "Bachelor", "Master", "Doctorate"},
			Synonyms: map[string]string{
				"no formal education": "No formal",
				"high school":         "Highschool",
				"secondary":           "Highschool",
				"bachelors":           "Bachelor",
				"masters":             "Master",
				"phd":                 "Doctorate",
			},
		},
		"employment_status": {
			Canonical: []string{"Employed", "Inactive", "Student"},
			Synonyms: map[string]string{
				"retired":       "Inactive",
				"unemployed":    "Inactive",
				"self-employed": "Employed",
				"working":       "Employed",
			},
		},
	}}
}
