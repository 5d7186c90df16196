package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/healthlens/engine"
)

func exampleChart() *engine.ChartConfig {
	return engine.BuildChart("Hepatitis B", engine.Series{
		Ready:    true,
		Variable: "X",
		Rows: []engine.SeriesRow{
			{Country: "IE", Year: 2015, Value: 10},
			{Country: "IE", Year: 2016, Value: 20},
			{Country: "IN", Year: 2015, Value: 5},
		},
	})
}

func TestPNGRendersImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PNG(&buf, exampleChart(), 640, 320))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 320, img.Bounds().Dy())
}

func TestPNGSinglePoint(t *testing.T) {
	c := engine.BuildChart("one", engine.Series{
		Ready: true, Variable: "X",
		Rows: []engine.SeriesRow{{Country: "IN", Year: 2015, Value: 5}},
	})

	var buf bytes.Buffer
	require.NoError(t, PNG(&buf, c, 0, 0))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, DefaultWidth, img.Bounds().Dx())
}

func TestPNGSingleYearSeveralCountries(t *testing.T) {
	c := engine.BuildChart("cutoff at the first year", engine.Series{
		Ready: true, Variable: "X",
		Rows: []engine.SeriesRow{
			{Country: "IE", Year: 2015, Value: 10},
			{Country: "IN", Year: 2015, Value: 5},
		},
	})

	var buf bytes.Buffer
	require.NoError(t, PNG(&buf, c, 320, 200))
	_, err := png.Decode(&buf)
	require.NoError(t, err)
}

func TestPNGEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, PNG(&buf, nil, 0, 0), ErrEmptyChart)

	empty := engine.BuildChart("none", engine.Series{Ready: true, Variable: "X", Rows: []engine.SeriesRow{}})
	assert.ErrorIs(t, PNG(&buf, empty, 0, 0), ErrEmptyChart)
}

func TestHelpers(t *testing.T) {
	assert.Len(t, yearTicks(2000, 2004), 5)
	for _, span := range [][2]int{{1950, 2020}, {1900, 2024}, {2000, 2020}, {2000, 2019}} {
		ticks := yearTicks(span[0], span[1])
		assert.LessOrEqual(t, len(ticks), maxYearTicks, span)
		assert.Equal(t, float64(span[0]), ticks[0].Value)
		assert.Equal(t, float64(span[1]), ticks[len(ticks)-1].Value)
	}

	c := parseHex("#10B981")
	assert.Equal(t, uint8(0x10), c.R)
	assert.Equal(t, uint8(0xB9), c.G)
	assert.Equal(t, uint8(0x81), c.B)
	assert.Equal(t, parseHex("bogus"), parseHex("#zz"))
}
