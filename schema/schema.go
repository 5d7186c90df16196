package schema

import (
	"github.com/spektr-org/healthlens/engine"
)

// ============================================================================
// SCHEMA — Describes the loaded dataset and its variable taxonomy
// ============================================================================
// The taxonomy maps a dataset category ("Immunisation", "Causes of death")
// to the variable columns that belong to it. It only narrows the variable
// selector; it never filters rows.
//
// Both Dataset and Taxonomy are immutable once published. Accessors return
// fresh slices so callers cannot mutate shared state.
// ============================================================================

// Category is one taxonomy entry.
type Category struct {
	Name      string   `json:"name"`
	Variables []string `json:"variables"`
}

// Taxonomy is the ordered category → variables mapping.
type Taxonomy struct {
	Categories []Category `json:"categories"`
}

// NewTaxonomy builds a taxonomy from (category, variable) pairs in the order
// given. Repeated pairs are kept once.
func NewTaxonomy(pairs [][2]string) Taxonomy {
	var t Taxonomy
	index := make(map[string]int)
	seen := make(map[[2]string]bool)

	for _, p := range pairs {
		if p[0] == "" || p[1] == "" || seen[p] {
			continue
		}
		seen[p] = true
		i, ok := index[p[0]]
		if !ok {
			i = len(t.Categories)
			index[p[0]] = i
			t.Categories = append(t.Categories, Category{Name: p[0]})
		}
		t.Categories[i].Variables = append(t.Categories[i].Variables, p[1])
	}
	return t
}

// IsEmpty reports whether the taxonomy has no categories.
func (t Taxonomy) IsEmpty() bool { return len(t.Categories) == 0 }

// CategoryNames returns the categories in taxonomy order.
func (t Taxonomy) CategoryNames() []string {
	names := make([]string, len(t.Categories))
	for i, c := range t.Categories {
		names[i] = c.Name
	}
	return names
}

// HasCategory reports whether name is a known category.
func (t Taxonomy) HasCategory(name string) bool {
	for _, c := range t.Categories {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Variables returns the union of the variables of the given categories,
// de-duplicated in first-seen order. With no categories it returns the union
// over the whole taxonomy. Unknown category names contribute nothing.
func (t Taxonomy) Variables(categories ...string) []string {
	want := make(map[string]bool, len(categories))
	for _, c := range categories {
		want[c] = true
	}

	seen := make(map[string]bool)
	out := []string{}
	for _, c := range t.Categories {
		if len(want) > 0 && !want[c.Name] {
			continue
		}
		for _, v := range c.Variables {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// CategoriesOf returns the categories a variable belongs to.
func (t Taxonomy) CategoriesOf(variable string) []string {
	var out []string
	for _, c := range t.Categories {
		for _, v := range c.Variables {
			if v == variable {
				out = append(out, c.Name)
				break
			}
		}
	}
	return out
}

// ============================================================================
// DATASET — Records + taxonomy, published as one unit
// ============================================================================

// Dataset is everything a session loads from the remote source.
type Dataset struct {
	Records   []engine.Record `json:"records"`
	Variables []string        `json:"variables"` // variable columns in file order
	Taxonomy  Taxonomy        `json:"taxonomy"`
}

// YearBounds is the inclusive year range present in a dataset.
type YearBounds struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// IsEmpty reports whether nothing has been loaded.
func (d Dataset) IsEmpty() bool { return len(d.Records) == 0 }

// View returns a zero-copy RecordView over the records.
func (d Dataset) View() engine.RecordView {
	return engine.NewSliceView(d.Records, d.Variables)
}

// Countries returns the sorted distinct countries.
func (d Dataset) Countries() []string {
	out := engine.UniqueCountries(d.View())
	if out == nil {
		return []string{}
	}
	return out
}

// Bounds returns the year range and whether the dataset has any rows.
func (d Dataset) Bounds() (YearBounds, bool) {
	lo, hi, ok := engine.YearRange(d.View())
	return YearBounds{Min: lo, Max: hi}, ok
}
