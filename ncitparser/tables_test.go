package ncitparser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/giygas/bpc-regimens/csvtable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const dictionaryCSV = `"Variable / Field Name","Form Name","Choices, Calculations, OR Slider Labels"
record_id,curation,
drugs_drug_1,drugs,"C1, Drug A (alias)|C2, Drug B"
drugs_drug_1,drugs,"C99, Duplicate row"
drugs_drug_oth1,drugs,
`

func TestLoadDictionaryTable(t *testing.T) {
	table, err := LoadDictionaryTable(writeFile(t, "dd.csv", dictionaryCSV))
	require.NoError(t, err)

	cell, ok := table.Choices("drugs_drug_1")
	assert.True(t, ok)
	assert.Equal(t, "C1, Drug A (alias)|C2, Drug B", cell)

	cell, ok = table.Choices("drugs_drug_oth1")
	assert.True(t, ok)
	assert.Empty(t, cell)

	_, ok = table.Choices("drugs_drug_2")
	assert.False(t, ok)

	assert.Equal(t, []string{"record_id", "drugs_drug_1", "drugs_drug_oth1"}, table.Fields())
}

func TestLoadDictionaryTableMissingColumn(t *testing.T) {
	_, err := LoadDictionaryTable(writeFile(t, "dd.csv", "Variable / Field Name,Form Name\nx,y\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, csvtable.ErrMissingColumn))
}

func TestLoadHeaderOnlyTables(t *testing.T) {
	dd, err := LoadDictionaryTable(writeFile(t, "dd.csv", `"Variable / Field Name","Choices, Calculations, OR Slider Labels"`+"\n"))
	require.NoError(t, err)
	assert.Empty(t, dd.Fields())

	grs, err := LoadGlobalResponseSet(writeFile(t, "grs.csv", "variable,choices\n"))
	require.NoError(t, err)

	mapping, report := BuildMapping(dd, grs, FieldNames())
	assert.Empty(t, mapping)
	assert.Len(t, report.FieldsNotFound, len(FieldNames()))
}

func TestLoadGlobalResponseSet(t *testing.T) {
	content := "variable,choices\n" +
		"drugs_drug_1,\"C7, Drug G (g)\"\n"

	table, err := LoadGlobalResponseSet(writeFile(t, "grs.csv", content))
	require.NoError(t, err)

	cell, ok := table.Choices("drugs_drug_1")
	assert.True(t, ok)
	assert.Equal(t, "C7, Drug G (g)", cell)
}

func TestLoadGlobalResponseSetWrongShape(t *testing.T) {
	_, err := LoadGlobalResponseSet(writeFile(t, "grs.csv", "a,b,c\n1,2,3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 columns")
}

func TestTablesBuildMapping(t *testing.T) {
	dd, err := LoadDictionaryTable(writeFile(t, "dd.csv", dictionaryCSV))
	require.NoError(t, err)
	grs, err := LoadGlobalResponseSet(writeFile(t, "grs.csv", "v,c\ndrugs_drug_1,\"C20, Drug B\"\n"))
	require.NoError(t, err)

	mapping, _ := BuildMapping(dd, grs, FieldNames())
	assert.Equal(t, "C1", mapping["Drug A"])
	assert.Equal(t, "C20", mapping["Drug B"])
	assert.NotContains(t, mapping, "Duplicate row")
}
