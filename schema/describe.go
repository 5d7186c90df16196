package schema

import (
	"github.com/spektr-org/healthlens/engine"
)

// ============================================================================
// DESCRIBE — Variable catalog for selectors and the CLI
// ============================================================================
// Cross-checks the taxonomy against the dataset columns:
//   1. Every dataset variable gets coverage stats (observations, year span)
//   2. Taxonomy variables with no column in the dataset are reported as
//      skipped — they can never produce a chart
//   3. Dataset variables in no category are listed as uncategorised
// ============================================================================

// VariableMeta describes one variable column.
type VariableMeta struct {
	Key          string   `json:"key"`
	DisplayName  string   `json:"displayName"`
	Categories   []string `json:"categories,omitempty"`
	Observations int      `json:"observations"`
	FirstYear    int      `json:"firstYear,omitempty"`
	LastYear     int      `json:"lastYear,omitempty"`
}

// SkippedVariable records a taxonomy entry that cannot be charted.
type SkippedVariable struct {
	Category string `json:"category"`
	Variable string `json:"variable"`
	Reason   string `json:"reason"`
}

// Catalog is the result of Describe.
type Catalog struct {
	Variables     []VariableMeta    `json:"variables"`
	Uncategorised []string          `json:"uncategorised,omitempty"`
	Skipped       []SkippedVariable `json:"skipped,omitempty"`
	Countries     int               `json:"countries"`
	Records       int               `json:"records"`
	Bounds        *YearBounds       `json:"bounds,omitempty"`
}

// Describe builds a Catalog for a loaded dataset.
func Describe(d Dataset) *Catalog {
	view := d.View()
	cat := &Catalog{
		Countries: len(d.Countries()),
		Records:   len(d.Records),
	}
	if b, ok := d.Bounds(); ok {
		cat.Bounds = &b
	}

	present := make(map[string]bool, len(d.Variables))
	for _, v := range d.Variables {
		present[v] = true
		meta := VariableMeta{
			Key:         v,
			DisplayName: engine.LabelForVariable(v),
			Categories:  d.Taxonomy.CategoriesOf(v),
		}
		for i := 0; i < view.Len(); i++ {
			if _, ok := view.Value(i, v); !ok {
				continue
			}
			y := view.Year(i)
			if meta.Observations == 0 || y < meta.FirstYear {
				meta.FirstYear = y
			}
			if meta.Observations == 0 || y > meta.LastYear {
				meta.LastYear = y
			}
			meta.Observations++
		}
		if len(meta.Categories) == 0 {
			cat.Uncategorised = append(cat.Uncategorised, v)
		}
		cat.Variables = append(cat.Variables, meta)
	}

	for _, c := range d.Taxonomy.Categories {
		for _, v := range c.Variables {
			if !present[v] {
				cat.Skipped = append(cat.Skipped, SkippedVariable{
					Category: c.Name,
					Variable: v,
					Reason:   "no such column in dataset",
				})
			}
		}
	}

	return cat
}
