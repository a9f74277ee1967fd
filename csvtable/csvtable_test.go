package csvtable

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	csv := "name,choices\n" +
		"drugs_drug_1,\"C1, Drug A (a)|C2, Drug B\"\n" +
		"other_field,\n"

	df, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "choices"}, df.Names())
	assert.Equal(t, 2, df.Nrow())
	assert.Equal(t, []string{"drugs_drug_1", "other_field"}, Strings(df, "name"))
	assert.Equal(t, "C1, Drug A (a)|C2, Drug B", Strings(df, "choices")[0])
}

func TestParseSkipsBOM(t *testing.T) {
	df, err := Parse(strings.NewReader("\ufeffcohort,record_id\nBrCa,1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"cohort", "record_id"}, df.Names())
}

func TestParseLatin1(t *testing.T) {
	// "Médicament" encoded as ISO-8859-1
	content := []byte("label\nM\xe9dicament\n")

	df, err := Parse(strings.NewReader(string(content)))
	require.NoError(t, err)
	assert.Equal(t, []string{"Médicament"}, Strings(df, "label"))
}

func TestParseHeaderOnly(t *testing.T) {
	df, err := Parse(strings.NewReader("cohort,record_id,regimen_drugs\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"cohort", "record_id", "regimen_drugs"}, df.Names())
	assert.Equal(t, 0, df.Nrow())
	assert.Empty(t, Strings(df, "cohort"))
	assert.NoError(t, RequireColumns(df, "cohort", "regimen_drugs"))
}

func TestParseEmptyInput(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.Error(t, err)
}

func TestParseNumericLookingColumnsStayStrings(t *testing.T) {
	df, err := Parse(strings.NewReader("record_id,regimen_number\n007,1.0\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"007"}, Strings(df, "record_id"))
	assert.Equal(t, []string{"1.0"}, Strings(df, "regimen_number"))
}

func TestRequireColumns(t *testing.T) {
	df, err := Parse(strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)

	assert.NoError(t, RequireColumns(df, "a", "b"))

	err = RequireColumns(df, "a", "c")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))
	assert.Contains(t, err.Error(), `"c"`)
}

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, os.WriteFile(path, []byte("x,y\n1,2\n3,4\n"), 0600))

	df, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 2, df.Nrow())

	_, err = Read(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
