package session

import (
	"github.com/spektr-org/healthlens/engine"
	"github.com/spektr-org/healthlens/reactive"
	"github.com/spektr-org/healthlens/schema"
)

// ============================================================================
// FILTER AGGREGATOR — Selection → series → summary → chart/table
// ============================================================================
//
//	countries, variable, cutoff, options ── query
//	dataset, query ── series ──┬── summary ──┐
//	                           ├── chart ────┼── view
//	                           └─────────────┴── table
//
// query only carries values that are currently offered, so a selection
// waiting for reconciliation never reaches the chart. Every node keeps only
// its latest value.
// ============================================================================

func (s *Session) buildAggregator() {
	g := s.graph
	eopts := append([]engine.Option{engine.WithLogger(s.logger)}, s.engineOpts...)

	s.query = reactive.Derive4(g, "query", s.countries, s.variable, s.cutoff, s.options,
		func(countries []string, variable string, cutoff *int, opts DerivedOptions) engine.Query {
			q := engine.Query{Countries: []string{}}
			if !opts.Loaded {
				return q
			}
			for _, c := range countries {
				if contains(opts.Countries, c) {
					q.Countries = append(q.Countries, c)
				}
			}
			if contains(opts.Variables, variable) {
				q.Variable = variable
			}
			if cutoff != nil {
				q.YearCutoff, q.HasCutoff = *cutoff, true
			}
			return q
		})

	s.series = reactive.Derive2(g, "filtered_series", s.dataset, s.query,
		func(d schema.Dataset, q engine.Query) engine.Series {
			return engine.FilterSeries(d.View(), q, eopts...)
		})

	s.summary = reactive.Derive1(g, "summary_table", s.series,
		func(series engine.Series) []engine.SummaryRow {
			return engine.Summarize(series, eopts...)
		})

	s.chart = reactive.Derive1(g, "chart", s.series,
		func(series engine.Series) *engine.ChartConfig {
			if !series.Ready {
				return nil
			}
			return engine.BuildChart(s.title(series.Variable), series)
		})

	s.table = reactive.Derive2(g, "table", s.series, s.summary,
		func(series engine.Series, rows []engine.SummaryRow) *engine.TableData {
			if !series.Ready {
				return nil
			}
			return engine.BuildTable(s.title(series.Variable), series.Variable, rows)
		})

	s.view = reactive.Derive4(g, "view", s.query, s.summary, s.chart, s.table,
		func(q engine.Query, rows []engine.SummaryRow, chart *engine.ChartConfig, table *engine.TableData) *engine.ViewData {
			return &engine.ViewData{
				Ready:   q.Ready(),
				Query:   q,
				Chart:   chart,
				Summary: rows,
				Table:   table,
			}
		})
}

func (s *Session) title(variable string) string {
	if s.chartTitle != "" {
		return s.chartTitle
	}
	return engine.LabelForVariable(variable)
}

// Query returns the effective query the pipeline runs against.
func (s *Session) Query() engine.Query { return s.query.Get() }

// FilteredSeries returns the rows of the selected countries up to the cutoff,
// projected onto the variable. It is empty and not ready while any of
// countries, variable or cutoff is unset. The result is shared and must not
// be modified.
func (s *Session) FilteredSeries() engine.Series { return s.series.Get() }

// SummaryTable returns the per-country means in first-seen order. Options
// such as engine.WithStableSort re-sort a copy; the cached table is not
// touched.
func (s *Session) SummaryTable(opts ...engine.Option) []engine.SummaryRow {
	if len(opts) == 0 {
		return s.summary.Get()
	}
	return engine.Summarize(s.series.Get(), append([]engine.Option{engine.WithLogger(s.logger)}, opts...)...)
}

// ChartSeries returns each country's points keyed by country.
func (s *Session) ChartSeries() map[string][]engine.ChartPoint {
	return s.chart.Get().ByCountry()
}

// Chart returns the render-ready chart, nil when not ready. Series are in
// legend order.
func (s *Session) Chart() *engine.ChartConfig { return s.chart.Get() }

// Table returns the render-ready summary table, nil when not ready.
func (s *Session) Table() *engine.TableData { return s.table.Get() }

// View returns the chart and table bundle for the current selection.
func (s *Session) View() *engine.ViewData { return s.view.Get() }
