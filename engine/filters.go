package engine

import (
	"sort"
)

// ============================================================================
// FILTERS — Country/Year Filtering via RecordView
// ============================================================================
// Single-pass filter: checks the country set and the year cutoff per record
// in one loop. Returns a SubView (index list into parent) — zero data copy.
// ============================================================================

// Filters define which records to include.
// An empty Countries list matches nothing; the dashboard never charts "all".
type Filters struct {
	Countries  []string
	YearCutoff int
}

// ApplyFilters returns a view of records whose country is in the filter set
// and whose year is at or before the cutoff.
func ApplyFilters(view RecordView, filters Filters) RecordView {
	set := toSet(filters.Countries)
	if len(set) == 0 {
		return newSubView(view, nil)
	}

	n := view.Len()
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if view.Year(i) > filters.YearCutoff {
			continue
		}
		if set[view.Country(i)] {
			indices = append(indices, i)
		}
	}

	return newSubView(view, indices)
}

// OrderByCountryYear returns a view grouped by country in first-seen order,
// years ascending within each country. Rows with equal country and year keep
// their original order.
func OrderByCountryYear(view RecordView) RecordView {
	n := view.Len()
	first := make(map[string]int)
	indices := make([]int, n)
	for i := 0; i < n; i++ {
		indices[i] = i
		c := view.Country(i)
		if _, ok := first[c]; !ok {
			first[c] = len(first)
		}
	}

	sort.SliceStable(indices, func(a, b int) bool {
		ca, cb := first[view.Country(indices[a])], first[view.Country(indices[b])]
		if ca != cb {
			return ca < cb
		}
		return view.Year(indices[a]) < view.Year(indices[b])
	})

	return newSubView(view, indices)
}

// toSet converts a string slice to a lookup set.
func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
