package engine

import (
	"fmt"
)

// ============================================================================
// TABLE BUILDER — Produces TableData from summary rows
// ============================================================================

// BuildTable produces the per-country mean table.
func BuildTable(title, variable string, rows []SummaryRow) *TableData {
	if len(rows) == 0 {
		return &TableData{
			Title:   title,
			Columns: []Column{},
			Rows:    [][]string{},
		}
	}

	columns := []Column{
		{Key: "country", Label: "Country", Type: "text", Align: "left"},
		{Key: "mean", Label: "Mean " + LabelForVariable(variable), Type: "number", Align: "right"},
		{Key: "count", Label: "Years", Type: "number", Align: "center"},
	}

	out := make([][]string, 0, len(rows))
	var totalCount int
	var weighted float64

	for _, r := range rows {
		out = append(out, []string{
			r.Country,
			fmt.Sprintf("%.2f", r.Mean),
			fmt.Sprintf("%d", r.Count),
		})
		weighted += r.Mean * float64(r.Count)
		totalCount += r.Count
	}

	return &TableData{
		Title:   title,
		Columns: columns,
		Rows:    out,
		Summary: &Summary{
			Label: fmt.Sprintf("All countries (%d observations)", totalCount),
			Values: map[string]string{
				"mean":  FormatValue(weighted / float64(totalCount)),
				"count": fmt.Sprintf("%d", totalCount),
			},
		},
	}
}
