package session

import (
	"github.com/spektr-org/healthlens/reactive"
	"github.com/spektr-org/healthlens/schema"
)

// ============================================================================
// DERIVED OPTIONS — Selector contents computed from the dataset
// ============================================================================
//
//	dataset ──┬── availableCountries
//	          ├── availableCategories
//	          ├── yearBounds
//	          └──┐
//	categories ──┴── availableVariables
//
// Each list is recomputed only when one of its declared inputs moves.
// ============================================================================

// Bounds is the year slider range. OK is false until a dataset is loaded.
// Default is the year a slider should start at, the latest one; it is a
// suggestion only and never written to the cutoff.
type Bounds struct {
	schema.YearBounds
	Default int  `json:"default"`
	OK      bool `json:"ok"`
}

// DerivedOptions is what the selectors may offer.
type DerivedOptions struct {
	Loaded     bool     `json:"loaded"`
	Countries  []string `json:"countries"`
	Categories []string `json:"categories"`
	Variables  []string `json:"variables"`
	YearBounds Bounds   `json:"yearBounds"`
}

func (s *Session) buildProvider() {
	g := s.graph

	s.availableCountries = reactive.Derive1(g, "available_countries", s.dataset,
		func(d schema.Dataset) []string {
			return d.Countries()
		})

	s.availableCategories = reactive.Derive1(g, "available_categories", s.dataset,
		func(d schema.Dataset) []string {
			out := d.Taxonomy.CategoryNames()
			if out == nil {
				return []string{}
			}
			return out
		})

	s.availableVariables = reactive.Derive2(g, "available_variables", s.dataset, s.categories,
		func(d schema.Dataset, categories []string) []string {
			return d.Taxonomy.Variables(categories...)
		})

	s.yearBounds = reactive.Derive1(g, "year_bounds", s.dataset,
		func(d schema.Dataset) Bounds {
			b, ok := d.Bounds()
			if !ok {
				return Bounds{}
			}
			return Bounds{YearBounds: b, Default: b.Max, OK: true}
		})

	s.options = reactive.Derive4(g, "options",
		s.availableCountries, s.availableCategories, s.availableVariables, s.yearBounds,
		func(countries, categories, variables []string, bounds Bounds) DerivedOptions {
			return DerivedOptions{
				Loaded:     bounds.OK,
				Countries:  countries,
				Categories: categories,
				Variables:  variables,
				YearBounds: bounds,
			}
		})

}

// AvailableCountries returns every country in the dataset, sorted.
func (s *Session) AvailableCountries() []string { return s.availableCountries.Get() }

// AvailableCategories returns the taxonomy categories in file order.
func (s *Session) AvailableCategories() []string { return s.availableCategories.Get() }

// AvailableVariables returns the variables of the selected categories, or of
// every category when none is selected.
func (s *Session) AvailableVariables() []string { return s.availableVariables.Get() }

// YearBounds returns the min and max year of the dataset.
func (s *Session) YearBounds() (schema.YearBounds, bool) {
	b := s.yearBounds.Get()
	return b.YearBounds, b.OK
}

// Options returns all selector contents at once.
func (s *Session) Options() DerivedOptions { return s.options.Get() }

func (s *Session) loaded() bool { return s.yearBounds.Get().OK }

// reconcile resets every field whose value is no longer offered. Countries
// and categories lose the unknown entries; the variable is unset. It is
// idempotent and runs at the end of every write, including the publication
// of a freshly loaded dataset. Caller holds s.mu.
func (s *Session) reconcile() {
	if !s.loaded() {
		return
	}

	s.graph.Batch(func() {
		s.prune(FieldCountries, s.countries, s.availableCountries.Get())
		s.prune(FieldCategories, s.categories, s.availableCategories.Get())

		variables := s.availableVariables.Get()
		var dropped string
		s.variable.Update(func(v string) string {
			if v == "" || contains(variables, v) {
				return v
			}
			dropped = v
			return ""
		})
		if dropped != "" {
			selectionResets.WithLabelValues(string(FieldVariable)).Inc()
			s.logger.Info("selection reset", "field", FieldVariable, "value", dropped)
		}
	})
}

func (s *Session) prune(field Field, cell *reactive.Cell[[]string], options []string) {
	var dropped []string
	cell.Update(func(cur []string) []string {
		set := make(map[string]bool, len(options))
		for _, o := range options {
			set[o] = true
		}
		var kept []string
		dropped = nil
		for _, v := range cur {
			if set[v] {
				kept = append(kept, v)
			} else {
				dropped = append(dropped, v)
			}
		}
		if len(dropped) == 0 {
			return cur
		}
		return kept
	})
	if len(dropped) > 0 {
		selectionResets.WithLabelValues(string(field)).Inc()
		s.logger.Info("selection reset", "field", field, "values", dropped)
	}
}
