package engine

// ============================================================================
// CHART BUILDER — Produces a line ChartConfig from a Series
// ============================================================================
// One line per country, in first-seen order. Missing observations are left
// out of the line rather than drawn as zero.
// ============================================================================

// Default color palette for chart series.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// BuildChart produces a ChartConfig from a filtered series.
// Returns an empty-series chart (not nil) when the series is ready but empty.
func BuildChart(title string, s Series) *ChartConfig {
	if !s.Ready {
		return nil
	}

	config := &ChartConfig{
		ChartType:  "line",
		Title:      title,
		XAxis:      "Year",
		YAxis:      LabelForVariable(s.Variable),
		ShowLegend: true,
		ShowGrid:   true,
	}

	config.Series = buildCountrySeries(s.Rows)
	config.Colors = assignColors(len(config.Series))
	for i := range config.Series {
		config.Series[i].Color = config.Colors[i]
	}
	return config
}

// ============================================================================
// SERIES BUILDERS
// ============================================================================

func buildCountrySeries(rows []SeriesRow) []ChartSeries {
	index := make(map[string]int)
	series := make([]ChartSeries, 0)

	for _, r := range rows {
		if r.Missing {
			continue
		}
		i, ok := index[r.Country]
		if !ok {
			i = len(series)
			index[r.Country] = i
			series = append(series, ChartSeries{Name: r.Country})
		}
		series[i].Data = append(series[i].Data, ChartPoint{
			Year:  r.Year,
			Value: r.Value,
		})
	}

	return series
}

func assignColors(count int) []string {
	colors := make([]string, count)
	for i := 0; i < count; i++ {
		colors[i] = defaultColors[i%len(defaultColors)]
	}
	return colors
}
