// Package render draws engine charts as images.
package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/spektr-org/healthlens/engine"
)

// ErrEmptyChart is returned when there is nothing to draw.
var ErrEmptyChart = errors.New("render: chart has no points")

// Default image size.
const (
	DefaultWidth  = 1024
	DefaultHeight = 480
)

// maxYearTicks bounds the number of labelled years on the x axis.
const maxYearTicks = 20

// PNG writes c as a line chart, one line per country with a dot on every
// observation. Width or height of zero selects the default size.
func PNG(w io.Writer, c *engine.ChartConfig, width, height int) error {
	if c == nil {
		return ErrEmptyChart
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	var (
		series     []chart.Series
		minX, maxX = math.Inf(1), math.Inf(-1)
		minY, maxY = math.Inf(1), math.Inf(-1)
	)
	for _, s := range c.Series {
		if len(s.Data) == 0 {
			continue
		}
		xs := make([]float64, len(s.Data))
		ys := make([]float64, len(s.Data))
		for i, p := range s.Data {
			xs[i], ys[i] = float64(p.Year), p.Value
			minX, maxX = math.Min(minX, xs[i]), math.Max(maxX, xs[i])
			minY, maxY = math.Min(minY, ys[i]), math.Max(maxY, ys[i])
		}
		col := parseHex(s.Color)
		series = append(series, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeWidth: 2,
				StrokeColor: col,
				DotWidth:    3,
				DotColor:    col,
			},
		})
	}
	if len(series) == 0 {
		return ErrEmptyChart
	}

	// go-chart takes the x range from the ticks, so a single year needs
	// neighbouring ticks. A flat line needs the same on y.
	fromYear, toYear := int(minX), int(maxX)
	if fromYear == toYear {
		fromYear, toYear = fromYear-1, toYear+1
	}
	if maxY-minY < 1e-9 {
		pad := math.Max(math.Abs(maxY)*0.1, 1)
		minY, maxY = minY-pad, maxY+pad
	}

	ch := chart.Chart{
		Title:      c.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:  c.XAxis,
			Range: &chart.ContinuousRange{Min: float64(fromYear), Max: float64(toYear)},
			Ticks: yearTicks(fromYear, toYear),
		},
		YAxis: chart.YAxis{
			Name:  c.YAxis,
			Range: &chart.ContinuousRange{Min: minY, Max: maxY},
		},
		Series: series,
	}
	if c.ShowLegend {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// yearTicks labels from..to, thinning to at most maxYearTicks. Both ends are
// always labelled.
func yearTicks(from, to int) []chart.Tick {
	step := 1
	if to-from+1 > maxYearTicks {
		step = (to - from + maxYearTicks - 3) / (maxYearTicks - 2)
	}
	ticks := make([]chart.Tick, 0, maxYearTicks)
	for y := from; y <= to; y += step {
		ticks = append(ticks, chart.Tick{Value: float64(y), Label: strconv.Itoa(y)})
	}
	if last := ticks[len(ticks)-1]; last.Value != float64(to) {
		ticks = append(ticks, chart.Tick{Value: float64(to), Label: strconv.Itoa(to)})
	}
	return ticks
}

// parseHex turns "#RRGGBB" into a drawing color, falling back to blue.
func parseHex(hex string) drawing.Color {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return chart.ColorBlue
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return chart.ColorBlue
	}
	return drawing.Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}
