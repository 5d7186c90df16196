package schema

import (
	"testing"

	"github.com/spektr-org/healthlens/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTaxonomy() Taxonomy {
	return NewTaxonomy([][2]string{
		{"Immunisation", "Hep B"},
		{"Immunisation", "Measles"},
		{"Deaths", "Cancer"},
		{"Deaths", "Measles"},
		{"Immunisation", "Hep B"},
		{"Risk factors", "Smoking"},
	})
}

func TestNewTaxonomyKeepsOrderAndDedupes(t *testing.T) {
	tax := sampleTaxonomy()
	assert.Equal(t, []string{"Immunisation", "Deaths", "Risk factors"}, tax.CategoryNames())
	assert.Equal(t, []string{"Hep B", "Measles"}, tax.Categories[0].Variables)
	assert.True(t, tax.HasCategory("Deaths"))
	assert.False(t, tax.HasCategory("deaths"))
}

func TestTaxonomyVariablesUnion(t *testing.T) {
	tax := sampleTaxonomy()

	assert.Equal(t, []string{"Cancer", "Measles"}, tax.Variables("Deaths"))
	assert.Equal(t, []string{"Hep B", "Measles", "Cancer"}, tax.Variables("Deaths", "Immunisation"),
		"union follows taxonomy order, not argument order")
	assert.Equal(t, []string{"Hep B", "Measles", "Cancer", "Smoking"}, tax.Variables())
	assert.Empty(t, tax.Variables("Nope"))
}

func TestTaxonomyVariablesSubsetOfAll(t *testing.T) {
	tax := sampleTaxonomy()
	all := map[string]bool{}
	for _, v := range tax.Variables() {
		all[v] = true
	}
	for _, c := range tax.CategoryNames() {
		for _, v := range tax.Variables(c) {
			assert.True(t, all[v], "%s from %s", v, c)
		}
	}
}

func TestCategoriesOf(t *testing.T) {
	assert.Equal(t, []string{"Immunisation", "Deaths"}, sampleTaxonomy().CategoriesOf("Measles"))
	assert.Nil(t, sampleTaxonomy().CategoriesOf("Other"))
}

func TestDatasetAccessors(t *testing.T) {
	var empty Dataset
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, []string{}, empty.Countries())
	_, ok := empty.Bounds()
	assert.False(t, ok)

	d := Dataset{Records: []engine.Record{
		{Country: "India", Year: 2001, Values: map[string]float64{"Hep B": 40}},
		{Country: "Ireland", Year: 1999, Values: map[string]float64{}},
		{Country: "India", Year: 2003, Values: map[string]float64{"Hep B": 60}},
	}, Variables: []string{"Hep B", "Cancer"}, Taxonomy: sampleTaxonomy()}

	assert.False(t, d.IsEmpty())
	assert.Equal(t, []string{"India", "Ireland"}, d.Countries())
	b, ok := d.Bounds()
	require.True(t, ok)
	assert.Equal(t, YearBounds{Min: 1999, Max: 2003}, b)
}

func TestDescribe(t *testing.T) {
	d := Dataset{Records: []engine.Record{
		{Country: "India", Year: 2001, Values: map[string]float64{"Hep B": 40}},
		{Country: "India", Year: 2003, Values: map[string]float64{"Hep B": 60, "Extra": 1}},
	}, Variables: []string{"Hep B", "Extra"}, Taxonomy: sampleTaxonomy()}

	cat := Describe(d)
	require.Len(t, cat.Variables, 2)
	assert.Equal(t, VariableMeta{
		Key: "Hep B", DisplayName: "Hep B", Categories: []string{"Immunisation"},
		Observations: 2, FirstYear: 2001, LastYear: 2003,
	}, cat.Variables[0])
	assert.Equal(t, []string{"Extra"}, cat.Uncategorised)
	assert.Len(t, cat.Skipped, 4) // Measles twice, Cancer, Smoking
	assert.Equal(t, 1, cat.Countries)
	assert.Equal(t, &YearBounds{Min: 2001, Max: 2003}, cat.Bounds)
}
