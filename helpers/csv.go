package helpers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/spektr-org/healthlens/engine"
	"github.com/spektr-org/healthlens/schema"
)

// ============================================================================
// CSV HELPER — Parses the dataset and taxonomy CSVs
// ============================================================================
// Consumer fetches the bytes from wherever they live (URL, file, test fixture).
// These helpers turn them into engine.Records and a schema.Taxonomy.
//
// Unlike ad-hoc analytics input, a malformed payload here is an error: the
// store must never publish a partial dataset.
// ============================================================================

const (
	countryColumn  = "country"
	yearColumn     = "year"
	categoryColumn = "health_dataset"
	variableColumn = "column"
)

// ErrMalformed marks a payload that cannot be parsed.
var ErrMalformed = errors.New("malformed CSV")

// ParseDataset parses the row-oriented dataset CSV. The header must contain
// "country" and "year" (case-insensitive); every other column is a numeric
// variable. Empty or non-numeric cells ("", "NA", "..") are missing values.
// Returns the records and the variable names in file order.
func ParseDataset(data []byte) ([]engine.Record, []string, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read dataset headers: %v", ErrMalformed, err)
	}

	countryIdx, yearIdx := -1, -1
	vars := make([]string, 0, len(headers))
	varIdx := make([]int, 0, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch {
		case strings.EqualFold(h, countryColumn):
			countryIdx = i
		case strings.EqualFold(h, yearColumn):
			yearIdx = i
		case h == "" || isIndexColumn(h):
			// pandas index columns and blank headers carry no variable
		default:
			vars = append(vars, h)
			varIdx = append(varIdx, i)
		}
	}
	if countryIdx < 0 || yearIdx < 0 {
		return nil, nil, fmt.Errorf("%w: dataset needs %q and %q columns, got %v",
			ErrMalformed, countryColumn, yearColumn, headers)
	}

	var records []engine.Record
	line := 1
	for {
		row, err := reader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		if isBlank(row) {
			continue
		}
		if countryIdx >= len(row) || yearIdx >= len(row) {
			return nil, nil, fmt.Errorf("%w: line %d: short row", ErrMalformed, line)
		}

		year, err := parseYear(row[yearIdx])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}

		rec := engine.Record{
			Country: strings.TrimSpace(row[countryIdx]),
			Year:    year,
			Values:  make(map[string]float64),
		}
		for j, col := range varIdx {
			if col >= len(row) {
				continue
			}
			if f, ok := parseValue(row[col]); ok {
				rec.Values[vars[j]] = f
			}
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: dataset has no data rows", ErrMalformed)
	}
	return records, vars, nil
}

// ParseTaxonomy parses the category → variable CSV ("health_dataset",
// "column"). Extra columns are ignored.
func ParseTaxonomy(data []byte) (schema.Taxonomy, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return schema.Taxonomy{}, fmt.Errorf("%w: failed to read taxonomy headers: %v", ErrMalformed, err)
	}

	catIdx, varIdx := -1, -1
	for i, h := range headers {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch {
		case strings.EqualFold(h, categoryColumn):
			catIdx = i
		case strings.EqualFold(h, variableColumn):
			varIdx = i
		}
	}
	if catIdx < 0 || varIdx < 0 {
		return schema.Taxonomy{}, fmt.Errorf("%w: taxonomy needs %q and %q columns, got %v",
			ErrMalformed, categoryColumn, variableColumn, headers)
	}

	var pairs [][2]string
	line := 1
	for {
		row, err := reader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return schema.Taxonomy{}, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		if catIdx >= len(row) || varIdx >= len(row) {
			continue
		}
		pairs = append(pairs, [2]string{strings.TrimSpace(row[catIdx]), strings.TrimSpace(row[varIdx])})
	}

	tax := schema.NewTaxonomy(pairs)
	if tax.IsEmpty() {
		return schema.Taxonomy{}, fmt.Errorf("%w: taxonomy has no entries", ErrMalformed)
	}
	return tax, nil
}

// parseYear accepts "2015" and the "2015.0" pandas writes for float columns.
func parseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if y, err := strconv.Atoi(s); err == nil {
		return y, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	return int(f), nil
}

func parseValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func isIndexColumn(h string) bool {
	return strings.HasPrefix(h, "Unnamed:")
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
