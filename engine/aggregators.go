package engine

import (
	"fmt"
	"sort"
	"strings"
)

// ============================================================================
// AGGREGATORS — Grouping, Mean Aggregation, and Sorting via RecordView
// ============================================================================
// All functions operate on RecordView — zero-copy access to any data source.
// Grouping produces SubViews (index lists into parent view).
// ============================================================================

// GroupAndAggregate groups a view by country and averages the variable.
// Pipeline: group → aggregate → drop empty → sort.
// Groups keep first-seen order unless sortBy asks otherwise.
func GroupAndAggregate(view RecordView, variable string, sortBy string) []Group {
	if view.Len() == 0 {
		return nil
	}

	groups := groupByCountry(view)

	kept := groups[:0]
	for i := range groups {
		aggregateGroup(&groups[i], variable)
		if groups[i].Count > 0 {
			kept = append(kept, groups[i])
		}
	}

	SortGroups(kept, sortBy)
	return kept
}

// ============================================================================
// GROUPING
// ============================================================================

func groupByCountry(view RecordView) []Group {
	grouped := make(map[string][]int)
	order := make([]string, 0)

	for i := 0; i < view.Len(); i++ {
		key := view.Country(i)
		if _, exists := grouped[key]; !exists {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], i)
	}

	groups := make([]Group, 0, len(order))
	for pos, key := range order {
		groups = append(groups, Group{
			Key:   key,
			Label: key,
			Order: pos,
			View:  newSubView(view, grouped[key]),
		})
	}
	return groups
}

// ============================================================================
// AGGREGATION
// ============================================================================

func aggregateGroup(group *Group, variable string) {
	group.Value, group.Count = MeanValue(group.View, variable)
}

// SumValue sums the non-missing values of a variable and counts them.
func SumValue(view RecordView, variable string) (float64, int) {
	var total float64
	var n int
	for i := 0; i < view.Len(); i++ {
		if v, ok := view.Value(i, variable); ok {
			total += v
			n++
		}
	}
	return total, n
}

// MeanValue is the arithmetic mean of the non-missing values of a variable.
// The count is zero, and the mean meaningless, when nothing was observed.
func MeanValue(view RecordView, variable string) (float64, int) {
	total, n := SumValue(view, variable)
	if n == 0 {
		return 0, 0
	}
	return total / float64(n), n
}

// ============================================================================
// SORTING
// ============================================================================

// SortGroups sorts aggregate groups by the specified sort mode.
// All modes are stable and break ties by first-seen order.
func SortGroups(groups []Group, sortBy string) {
	switch sortBy {
	case SortValueDesc:
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Value > groups[j].Value })
	case SortValueAsc:
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Value < groups[j].Value })
	case SortLabelAsc:
		sort.SliceStable(groups, func(i, j int) bool { return strings.ToLower(groups[i].Key) < strings.ToLower(groups[j].Key) })
	case SortLabelDesc:
		sort.SliceStable(groups, func(i, j int) bool { return strings.ToLower(groups[i].Key) > strings.ToLower(groups[j].Key) })
	default:
		// preserve first-seen order
	}
}

// ============================================================================
// FORMATTING UTILITIES
// ============================================================================

// FormatValue formats a value with comma separators and two decimals.
func FormatValue(v float64) string {
	negative := v < 0
	if negative {
		v = -v
	}

	intPart := int64(v)
	decPart := int64((v-float64(intPart))*100 + 0.5)
	if decPart >= 100 {
		intPart++
		decPart -= 100
	}

	result := fmt.Sprintf("%s.%02d", FormatInt(int(intPart)), decPart)
	if negative {
		result = "-" + result
	}
	return result
}

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s,%03d", FormatInt(n/1000), n%1000)
}

// UniqueCountries returns the distinct countries of a view, sorted.
func UniqueCountries(view RecordView) []string {
	seen := make(map[string]bool)
	var result []string
	for i := 0; i < view.Len(); i++ {
		c := view.Country(i)
		if c != "" && !seen[c] {
			seen[c] = true
			result = append(result, c)
		}
	}
	sortStrings(result)
	return result
}

// YearRange returns the smallest and largest year present in a view.
func YearRange(view RecordView) (minYear, maxYear int, ok bool) {
	for i := 0; i < view.Len(); i++ {
		y := view.Year(i)
		if !ok {
			minYear, maxYear, ok = y, y, true
			continue
		}
		if y < minYear {
			minYear = y
		}
		if y > maxYear {
			maxYear = y
		}
	}
	return minYear, maxYear, ok
}

// DerivePeriod describes the year span of a view, e.g. "2015–2019".
func DerivePeriod(view RecordView) string {
	lo, hi, ok := YearRange(view)
	if !ok {
		return ""
	}
	if lo == hi {
		return fmt.Sprintf("%d", lo)
	}
	return fmt.Sprintf("%d–%d", lo, hi)
}

// LabelForVariable shortens a long variable column name for axis labels.
// "Immunisation: Hepatitis B_% of children immunised" → "Hepatitis B (% of children immunised)".
func LabelForVariable(variable string) string {
	label := variable
	if i := strings.Index(label, ": "); i >= 0 {
		label = label[i+2:]
	}
	if i := strings.LastIndex(label, "_"); i >= 0 {
		label = label[:i] + " (" + label[i+1:] + ")"
	}
	return strings.TrimSpace(label)
}

func sortStrings(s []string) {
	sort.Strings(s)
}
