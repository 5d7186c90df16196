package helpers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Trimmed-down shape of the OECD extract the dashboard loads.
var datasetCSV = []byte(`,country,year,Immunisation: Hepatitis B_% of children immunised,Causes of death: Cancer_per 100 000
0,Ireland,2015,95,250.5
1,Ireland,2016.0,96,
2,India,2015,NA,120
`)

var taxonomyCSV = []byte(`health_dataset,column,notes
Immunisation,Immunisation: Hepatitis B_% of children immunised,x
Causes of death,Causes of death: Cancer_per 100 000,
Immunisation,Immunisation: Hepatitis B_% of children immunised,dup
`)

func TestParseDataset(t *testing.T) {
	records, vars, err := ParseDataset(datasetCSV)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Immunisation: Hepatitis B_% of children immunised",
		"Causes of death: Cancer_per 100 000",
	}, vars)
	require.Len(t, records, 3)

	assert.Equal(t, "Ireland", records[0].Country)
	assert.Equal(t, 2015, records[0].Year)
	assert.Equal(t, 2016, records[1].Year, "pandas float years are accepted")

	v, ok := records[1].Value(vars[1])
	assert.False(t, ok, "empty cell is missing, not zero")
	assert.Zero(t, v)

	_, ok = records[2].Value(vars[0])
	assert.False(t, ok, "NA is missing")
	v, ok = records[2].Value(vars[1])
	assert.True(t, ok)
	assert.Equal(t, 120.0, v)
}

func TestParseDatasetMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":        ``,
		"no year":      "country,X\nIE,1\n",
		"bad year":     "country,year,X\nIE,twenty,1\n",
		"no rows":      "country,year,X\n",
		"short row":    "X,country,year\n1\n",
		"broken quote": "country,year\n\"IE,2015\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseDataset([]byte(body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
		})
	}
}

func TestParseTaxonomy(t *testing.T) {
	tax, err := ParseTaxonomy(taxonomyCSV)
	require.NoError(t, err)

	assert.Equal(t, []string{"Immunisation", "Causes of death"}, tax.CategoryNames())
	assert.Equal(t, []string{"Immunisation: Hepatitis B_% of children immunised"}, tax.Variables("Immunisation"))
}

func TestParseTaxonomyMalformed(t *testing.T) {
	_, err := ParseTaxonomy([]byte("category,variable\na,b\n"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = ParseTaxonomy([]byte("health_dataset,column\n"))
	assert.ErrorIs(t, err, ErrMalformed)
}
