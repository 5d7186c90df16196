package engine

// ============================================================================
// HEALTHLENS ENGINE TYPES — Country/Year Time Series
// ============================================================================
// Records are rows of a country-year panel: one country, one year, and any
// number of named numeric variables. A variable absent from Values is
// missing for that row, which is different from a value of zero.
//
// Dependency: engine has ZERO external dependencies.
// ============================================================================

// ============================================================================
// RECORD — One country-year row
// ============================================================================

// Record is a single dataset row.
type Record struct {
	Country string             `json:"country"`
	Year    int                `json:"year"`
	Values  map[string]float64 `json:"values"`
}

// Value returns the named variable and whether it is present.
func (r Record) Value(variable string) (float64, bool) {
	v, ok := r.Values[variable]
	return v, ok
}

// ============================================================================
// QUERY — What the filter/aggregate pipeline should compute
// ============================================================================

// Query is the resolved user selection the pipeline runs against.
// Countries, Variable and the year cutoff are all required; a Query with any
// of them unset is not ready and produces empty output rather than an error.
type Query struct {
	Countries  []string `json:"countries"`
	Variable   string   `json:"variable"`
	YearCutoff int      `json:"yearCutoff"`
	HasCutoff  bool     `json:"hasCutoff"`
}

// Ready reports whether every required field is set.
func (q Query) Ready() bool {
	return len(q.Countries) > 0 && q.Variable != "" && q.HasCutoff
}

// ============================================================================
// SERIES — Filtered, projected rows
// ============================================================================

// SeriesRow is one dataset row projected onto the selected variable.
type SeriesRow struct {
	Country string  `json:"country"`
	Year    int     `json:"year"`
	Value   float64 `json:"value"`
	Missing bool    `json:"missing,omitempty"`
}

// Series is the filtered subset of the dataset. Ready is false when the query
// was incomplete; Rows is then empty.
type Series struct {
	Ready    bool        `json:"ready"`
	Variable string      `json:"variable,omitempty"`
	Rows     []SeriesRow `json:"rows"`
}

// ============================================================================
// GROUP — Intermediate computation result
// ============================================================================

// Group represents the rows of one country and their aggregate.
type Group struct {
	Key   string     `json:"key"`
	Label string     `json:"label"`
	Value float64    `json:"value"`
	Count int        `json:"count"`
	Order int        `json:"-"` // first-seen position, used as a sort tiebreak
	View  RecordView `json:"-"`
}

// ============================================================================
// SUMMARY TYPES
// ============================================================================

// SummaryRow is the time-averaged value of the variable for one country.
// Count is the number of non-missing observations the mean was taken over.
type SummaryRow struct {
	Country string  `json:"country"`
	Mean    float64 `json:"mean"`
	Count   int     `json:"count"`
}

// ============================================================================
// CHART TYPES
// ============================================================================

// ChartConfig defines how to render the time-series chart.
type ChartConfig struct {
	ChartType  string        `json:"chartType"`
	Title      string        `json:"title"`
	XAxis      string        `json:"xAxis,omitempty"`
	YAxis      string        `json:"yAxis,omitempty"`
	Series     []ChartSeries `json:"series"`
	Colors     []string      `json:"colors,omitempty"`
	ShowLegend bool          `json:"showLegend"`
	ShowGrid   bool          `json:"showGrid"`
}

// ChartSeries is one country's line.
type ChartSeries struct {
	Name  string       `json:"name"`
	Data  []ChartPoint `json:"data"`
	Color string       `json:"color,omitempty"`
}

// ChartPoint is a single (year, value) observation.
type ChartPoint struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// ByCountry returns the chart as a country → points mapping.
func (c *ChartConfig) ByCountry() map[string][]ChartPoint {
	out := make(map[string][]ChartPoint)
	if c == nil {
		return out
	}
	for _, s := range c.Series {
		out[s.Name] = s.Data
	}
	return out
}

// ============================================================================
// TABLE TYPES
// ============================================================================

// TableData defines how to render a table.
type TableData struct {
	Title   string     `json:"title"`
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Summary *Summary   `json:"summary,omitempty"`
}

// Column defines a table column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`  // "text", "number"
	Align string `json:"align"` // "left", "center", "right"
}

// Summary provides a footer line for a table.
type Summary struct {
	Label  string            `json:"label"`
	Values map[string]string `json:"values"`
}

// ============================================================================
// TEXT TYPES
// ============================================================================

// TextData is a one-paragraph answer for terminal output.
type TextData struct {
	Value    string  `json:"value"`
	RawValue float64 `json:"rawValue"`
	Period   string  `json:"period"`
	Count    int     `json:"count"`
	Leader   string  `json:"leader,omitempty"`
}

// ============================================================================
// VIEW DATA — Everything a renderer needs
// ============================================================================

// ViewData bundles the chart and summary table for one selection.
type ViewData struct {
	Ready   bool         `json:"ready"`
	Query   Query        `json:"query"`
	Chart   *ChartConfig `json:"chart,omitempty"`
	Summary []SummaryRow `json:"summary"`
	Table   *TableData   `json:"table,omitempty"`
}
