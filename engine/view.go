package engine

// ============================================================================
// RECORD VIEW — Zero-Copy Data Access Interface
// ============================================================================
// The engine never owns the dataset. It reads through this interface.
//
// Implementations:
//   SliceView      — wraps []Record (CSV, ad-hoc)
//   SubView        — filtered or reordered subset (indices into parent)
//
// The dataset is immutable after load, so views are safe to share between
// goroutines once built.
// ============================================================================

// RecordView provides indexed access to a dataset.
// The engine calls Country/Year/Value in tight loops — keep implementations fast.
type RecordView interface {
	Len() int
	Country(index int) string
	Year(index int) int
	Value(index int, variable string) (float64, bool)
	Variables() []string // variable names in first-seen column order
}

// ============================================================================
// SLICE VIEW — wraps []Record
// ============================================================================

// SliceView wraps a []Record slice as a RecordView.
type SliceView struct {
	records []Record
	vars    []string
}

// NewSliceView creates a RecordView from a []Record slice.
// vars is the ordered list of variable columns; when nil it is derived from
// the records (map order is not stable, so the derived list is sorted).
func NewSliceView(records []Record, vars []string) RecordView {
	v := &SliceView{records: records, vars: vars}
	if v.vars == nil {
		v.vars = collectVariables(records)
	}
	return v
}

func (v *SliceView) Len() int { return len(v.records) }

func (v *SliceView) Country(i int) string {
	if i < 0 || i >= len(v.records) {
		return ""
	}
	return v.records[i].Country
}

func (v *SliceView) Year(i int) int {
	if i < 0 || i >= len(v.records) {
		return 0
	}
	return v.records[i].Year
}

func (v *SliceView) Value(i int, variable string) (float64, bool) {
	if i < 0 || i >= len(v.records) {
		return 0, false
	}
	return v.records[i].Value(variable)
}

func (v *SliceView) Variables() []string { return v.vars }

// ============================================================================
// SUB VIEW — filtered subset (zero-copy)
// ============================================================================

// SubView is a subset of a parent RecordView.
// Holds indices into the parent — no data copy.
type SubView struct {
	parent  RecordView
	indices []int
}

func newSubView(parent RecordView, indices []int) RecordView {
	return &SubView{parent: parent, indices: indices}
}

func (v *SubView) Len() int { return len(v.indices) }

func (v *SubView) Country(i int) string {
	if i < 0 || i >= len(v.indices) {
		return ""
	}
	return v.parent.Country(v.indices[i])
}

func (v *SubView) Year(i int) int {
	if i < 0 || i >= len(v.indices) {
		return 0
	}
	return v.parent.Year(v.indices[i])
}

func (v *SubView) Value(i int, variable string) (float64, bool) {
	if i < 0 || i >= len(v.indices) {
		return 0, false
	}
	return v.parent.Value(v.indices[i], variable)
}

func (v *SubView) Variables() []string { return v.parent.Variables() }

func collectVariables(records []Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		for k := range r.Values {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sortStrings(out)
	return out
}

// ============================================================================
// SERIES VIEW — filtered rows read back through the view interface
// ============================================================================

// SeriesView exposes projected SeriesRows as a single-variable RecordView so
// the aggregators can run over the filtered output directly.
type SeriesView struct {
	variable string
	rows     []SeriesRow
}

// NewSeriesView wraps a Series as a RecordView.
func NewSeriesView(s Series) RecordView {
	return &SeriesView{variable: s.Variable, rows: s.Rows}
}

func (v *SeriesView) Len() int { return len(v.rows) }

func (v *SeriesView) Country(i int) string {
	if i < 0 || i >= len(v.rows) {
		return ""
	}
	return v.rows[i].Country
}

func (v *SeriesView) Year(i int) int {
	if i < 0 || i >= len(v.rows) {
		return 0
	}
	return v.rows[i].Year
}

func (v *SeriesView) Value(i int, variable string) (float64, bool) {
	if i < 0 || i >= len(v.rows) || variable != v.variable || v.rows[i].Missing {
		return 0, false
	}
	return v.rows[i].Value, true
}

func (v *SeriesView) Variables() []string { return []string{v.variable} }
