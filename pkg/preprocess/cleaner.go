package preprocess

import (
	"github.com/sirupsen/logrus"

	"github.com/clinrisk/platform/pkg/tabular"
)

// Cleaner harmonizes free-text categorical values into the canonical
// vocabulary of each column. Cleaning is idempotent: canonical tokens resolve
// to themselves, so a second pass is a no-op.
type Cleaner struct {
	catalog Catalog
	log     logrus.FieldLogger
}

func NewCleaner(catalog Catalog, log logrus.FieldLogger) *Cleaner {
	return &Cleaner{catalog: catalog, log: log}
}

// Clean rewrites every cataloged categorical column. Unrecognized values map
// to the Unknown token rather than failing.
func (c *Cleaner) Clean(ds tabular.Dataset) tabular.Dataset {
	out := ds
	for name, vocab := range c.catalog.Columns {
		values, ok := out.Strings(name)
		if !ok {
			continue
		}

		cleaned := make([]string, len(values))
		var unresolved int
		for i, raw := range values {
			canon, ok := vocab.Resolve(raw)
			if !ok {
				cleaned[i] = tabular.Unknown
				if raw != tabular.Unknown {
					unresolved++
				}
				continue
			}
			cleaned[i] = canon
		}

		replaced, err := out.Replace(name, cleaned)
		if err != nil {
			c.log.WithError(err).WithField("column", name).Warn("Skipping categorical column")
			continue
		}
		out = replaced

		if unresolved > 0 {
			c.log.WithFields(logrus.Fields{
				"column": name,
				"rows":   unresolved,
			}).Warn("Unrecognized categorical values mapped to Unknown")
		}
	}
	return out
}
