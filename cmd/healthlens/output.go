package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spektr-org/healthlens/engine"
	"github.com/spektr-org/healthlens/session"
)

// ============================================================================
// CSV OUTPUT — Chart points and summary table, Sheets-ready
// ============================================================================

// writeCSV writes the chart as country,year,value rows followed by a blank
// line and the summary table.
func writeCSV(w io.Writer, view *engine.ViewData) error {
	cw := csv.NewWriter(w)

	if view == nil || !view.Ready {
		cw.Write([]string{"Result", "Not ready"})
		cw.Flush()
		return cw.Error()
	}

	label := engine.LabelForVariable(view.Query.Variable)
	if view.Chart != nil && len(view.Chart.Series) > 0 {
		cw.Write([]string{"Country", "Year", label})
		for _, s := range view.Chart.Series {
			for _, p := range s.Data {
				cw.Write([]string{s.Name, strconv.Itoa(p.Year), fmtNum(p.Value)})
			}
		}
		cw.Write(nil)
	}

	cw.Write([]string{"Country", "Mean " + label, "Years"})
	for _, r := range view.Summary {
		cw.Write([]string{r.Country, fmtNum(r.Mean), strconv.Itoa(r.Count)})
	}

	cw.Flush()
	return cw.Error()
}

// ============================================================================
// JSON OUTPUT
// ============================================================================

func writeJSON(w io.Writer, v interface{}, format string) error {
	var out []byte
	var err error

	if format == "pretty" {
		out, err = json.MarshalIndent(v, "", "  ")
	} else {
		out, err = json.Marshal(v)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// ============================================================================
// TEXT OUTPUT
// ============================================================================

func writeOptionsText(w io.Writer, o session.DerivedOptions) error {
	lines := []string{
		"Countries:  " + strings.Join(o.Countries, ", "),
		"Categories: " + strings.Join(o.Categories, ", "),
		"Variables:",
	}
	for _, v := range o.Variables {
		lines = append(lines, "  "+v)
	}
	if o.YearBounds.OK {
		lines = append(lines, fmt.Sprintf("Years:      %d-%d (default cutoff %d)",
			o.YearBounds.Min, o.YearBounds.Max, o.YearBounds.Default))
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

func fmtNum(v float64) string {
	// Whole numbers → no decimals, fractional → 2 decimals
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
