package engine

// ============================================================================
// EXECUTOR — Filter → Project → Aggregate → Build
// ============================================================================
// Entry points:
//   FilterSeries(view, query)  — the row-filtered subset used by the chart
//   Summarize(series)          — per-country means used by the table
//   Build(view, query)         — both, plus render-ready chart/table configs
//
// Pipeline:
//   1. Not ready → empty output, never an error
//   2. Apply filters (country set, year cutoff) → SubView
//   3. Order by country (first seen) then year
//   4. Project onto the selected variable
//   5. Group by country and average non-missing values
//
// Everything here is a pure function of (view, query): identical inputs give
// identical outputs, so callers may cache freely.
// ============================================================================

// FilterSeries returns the rows matching the query, projected onto its
// variable. An incomplete query yields a not-ready, empty Series.
func FilterSeries(view RecordView, q Query, opts ...Option) Series {
	cfg := applyOptions(opts)

	if !q.Ready() || view == nil {
		return Series{Ready: false, Variable: q.Variable, Rows: []SeriesRow{}}
	}

	filtered := ApplyFilters(view, Filters{Countries: q.Countries, YearCutoff: q.YearCutoff})
	ordered := OrderByCountryYear(filtered)

	rows := make([]SeriesRow, 0, ordered.Len())
	for i := 0; i < ordered.Len(); i++ {
		v, ok := ordered.Value(i, q.Variable)
		rows = append(rows, SeriesRow{
			Country: ordered.Country(i),
			Year:    ordered.Year(i),
			Value:   v,
			Missing: !ok,
		})
	}

	cfg.Logger.Debug("engine: filtered series",
		"records", view.Len(), "rows", len(rows), "variable", q.Variable, "cutoff", q.YearCutoff)

	return Series{Ready: true, Variable: q.Variable, Rows: rows}
}

// Summarize averages the series per country. Countries without a single
// non-missing observation are omitted rather than reported as zero.
func Summarize(s Series, opts ...Option) []SummaryRow {
	cfg := applyOptions(opts)

	out := []SummaryRow{}
	if !s.Ready || len(s.Rows) == 0 {
		return out
	}

	groups := GroupAndAggregate(NewSeriesView(s), s.Variable, cfg.SortBy)
	for _, g := range groups {
		out = append(out, SummaryRow{Country: g.Key, Mean: g.Value, Count: g.Count})
	}
	return out
}

// Build runs the full pipeline and assembles render-ready output.
func Build(view RecordView, q Query, opts ...Option) *ViewData {
	cfg := applyOptions(opts)

	series := FilterSeries(view, q, opts...)
	summary := Summarize(series, opts...)

	data := &ViewData{
		Ready:   series.Ready,
		Query:   q,
		Summary: summary,
	}
	if !series.Ready {
		return data
	}

	title := cfg.Title
	if title == "" {
		title = LabelForVariable(q.Variable)
	}
	data.Chart = BuildChart(title, series)
	data.Table = BuildTable(title, q.Variable, summary)

	cfg.Logger.Debug("engine: built view",
		"series", len(data.Chart.Series), "summary_rows", len(summary))

	return data
}
