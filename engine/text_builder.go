package engine

import (
	"fmt"
	"strings"
)

// ============================================================================
// TEXT BUILDER — Produces TextData and a one-line reply for terminal output
// ============================================================================

// BuildText summarises a filtered series: the overall mean of the variable,
// the country with the highest mean, and the year span covered.
func BuildText(s Series, summary []SummaryRow) *TextData {
	view := NewSeriesView(s)
	mean, n := MeanValue(view, s.Variable)
	if n == 0 {
		return &TextData{
			Value:  "No data",
			Period: DerivePeriod(view),
			Count:  0,
		}
	}

	var leader string
	best := 0.0
	for i, r := range summary {
		if i == 0 || r.Mean > best {
			best = r.Mean
			leader = r.Country
		}
	}

	return &TextData{
		Value:    FormatValue(mean),
		RawValue: mean,
		Period:   DerivePeriod(view),
		Count:    n,
		Leader:   leader,
	}
}

// Reply renders a ViewData as a short human-readable sentence.
func Reply(v *ViewData) string {
	if v == nil || !v.Ready {
		return "Select countries, a variable and a year to see results."
	}
	if len(v.Summary) == 0 {
		return fmt.Sprintf("No observations of %s up to %d for %s.",
			LabelForVariable(v.Query.Variable), v.Query.YearCutoff, strings.Join(v.Query.Countries, ", "))
	}

	parts := make([]string, 0, len(v.Summary))
	for _, r := range v.Summary {
		parts = append(parts, fmt.Sprintf("%s %s", r.Country, FormatValue(r.Mean)))
	}
	return fmt.Sprintf("Mean %s up to %d: %s.",
		LabelForVariable(v.Query.Variable), v.Query.YearCutoff, strings.Join(parts, "; "))
}
