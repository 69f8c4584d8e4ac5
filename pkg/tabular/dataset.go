package tabular

import (
	"fmt"
	"math"
	"sort"
)

// Kind is the storage type of a column.
type Kind int

const (
	Numeric Kind = iota
	Categorical
	Boolean
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	case Boolean:
		return "boolean"
	}
	return "unknown"
}

// Unknown is the canonical token for categorical values that could not be
// resolved, and the label assigned when a numeric value cannot be binned.
const Unknown = "Unknown"

// Column is a named, typed value sequence. Exactly one of the value slices is
// populated, matching Kind.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
	Bools   []bool
}

// Len returns the number of rows in the column.
func (c Column) Len() int {
	switch c.Kind {
	case Numeric:
		return len(c.Floats)
	case Categorical:
		return len(c.Strings)
	case Boolean:
		return len(c.Bools)
	}
	return 0
}

// Dataset is an ordered collection of equal-length columns. Row identity is
// the positional index and is stable across transformations: operations add
// or remove whole columns, never reorder or drop rows.
//
// Append and Drop return a new Dataset sharing the underlying value slices
// with the receiver. Value slices are never mutated after a column is added,
// so the originals stay intact from the caller's perspective.
type Dataset struct {
	cols  []Column
	index map[string]int
	rows  int
}

// New creates an empty dataset with a fixed row count.
func New(rows int) Dataset {
	return Dataset{index: map[string]int{}, rows: rows}
}

// Rows returns the row count shared by every column.
func (d Dataset) Rows() int { return d.rows }

// Len returns the number of columns.
func (d Dataset) Len() int { return len(d.cols) }

// Names returns column names in insertion order.
func (d Dataset) Names() []string {
	names := make([]string, len(d.cols))
	for i, c := range d.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether a column exists.
func (d Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// HasAll reports whether every named column exists.
func (d Dataset) HasAll(names ...string) bool {
	for _, n := range names {
		if !d.Has(n) {
			return false
		}
	}
	return true
}

// Column returns the named column.
func (d Dataset) Column(name string) (Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return Column{}, false
	}
	return d.cols[i], true
}

// Columns returns all columns in insertion order.
func (d Dataset) Columns() []Column {
	out := make([]Column, len(d.cols))
	copy(out, d.cols)
	return out
}

// Numeric returns the values of a numeric column.
func (d Dataset) Numeric(name string) ([]float64, bool) {
	c, ok := d.Column(name)
	if !ok || c.Kind != Numeric {
		return nil, false
	}
	return c.Floats, true
}

// Strings returns the values of a categorical column.
func (d Dataset) Strings(name string) ([]string, bool) {
	c, ok := d.Column(name)
	if !ok || c.Kind != Categorical {
		return nil, false
	}
	return c.Strings, true
}

// Bools returns the values of a boolean column.
func (d Dataset) Bools(name string) ([]bool, bool) {
	c, ok := d.Column(name)
	if !ok || c.Kind != Boolean {
		return nil, false
	}
	return c.Bools, true
}

// Missing returns the sorted subset of names absent from the dataset.
func (d Dataset) Missing(names []string) []string {
	var missing []string
	for _, n := range names {
		if !d.Has(n) {
			missing = append(missing, n)
		}
	}
	sort.Strings(missing)
	return missing
}

func (d Dataset) append(c Column) (Dataset, error) {
	if c.Len() != d.rows {
		return Dataset{}, fmt.Errorf("column %s has %d rows, dataset has %d", c.Name, c.Len(), d.rows)
	}
	if d.Has(c.Name) {
		return Dataset{}, fmt.Errorf("column %s already exists", c.Name)
	}
	out := Dataset{
		cols:  make([]Column, len(d.cols), len(d.cols)+1),
		index: make(map[string]int, len(d.index)+1),
		rows:  d.rows,
	}
	copy(out.cols, d.cols)
	for k, v := range d.index {
		out.index[k] = v
	}
	out.cols = append(out.cols, c)
	out.index[c.Name] = len(out.cols) - 1
	return out, nil
}

// AppendNumeric returns a new dataset with a numeric column appended.
func (d Dataset) AppendNumeric(name string, values []float64) (Dataset, error) {
	return d.append(Column{Name: name, Kind: Numeric, Floats: values})
}

// AppendStrings returns a new dataset with a categorical column appended.
func (d Dataset) AppendStrings(name string, values []string) (Dataset, error) {
	return d.append(Column{Name: name, Kind: Categorical, Strings: values})
}

// AppendBools returns a new dataset with a boolean column appended.
func (d Dataset) AppendBools(name string, values []bool) (Dataset, error) {
	return d.append(Column{Name: name, Kind: Boolean, Bools: values})
}

// Replace returns a new dataset with the named categorical column's values
// swapped out, keeping its position. Used by cleaning, which rewrites labels
// but never changes shape.
func (d Dataset) Replace(name string, values []string) (Dataset, error) {
	i, ok := d.index[name]
	if !ok {
		return Dataset{}, fmt.Errorf("column %s not found", name)
	}
	if d.cols[i].Kind != Categorical {
		return Dataset{}, fmt.Errorf("column %s is %s, not categorical", name, d.cols[i].Kind)
	}
	if len(values) != d.rows {
		return Dataset{}, fmt.Errorf("column %s has %d rows, dataset has %d", name, len(values), d.rows)
	}
	out := Dataset{
		cols:  make([]Column, len(d.cols)),
		index: make(map[string]int, len(d.index)),
		rows:  d.rows,
	}
	copy(out.cols, d.cols)
	for k, v := range d.index {
		out.index[k] = v
	}
	out.cols[i] = Column{Name: name, Kind: Categorical, Strings: values}
	return out, nil
}

// Drop returns a new dataset without the named columns. Unknown names are
// ignored.
func (d Dataset) Drop(names ...string) Dataset {
	dropped := make(map[string]struct{}, len(names))
	for _, n := range names {
		dropped[n] = struct{}{}
	}
	out := Dataset{
		index: make(map[string]int),
		rows:  d.rows,
	}
	for _, c := range d.cols {
		if _, gone := dropped[c.Name]; gone {
			continue
		}
		out.cols = append(out.cols, c)
		out.index[c.Name] = len(out.cols) - 1
	}
	return out
}

// IsMissing reports whether a numeric value is the not-computable sentinel.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// MissingValue is the numeric sentinel for "could not compute". It is never
// coerced to zero or infinity so downstream consumers can tell an undefined
// result from a legitimate zero.
func MissingValue() float64 { return math.NaN() }
