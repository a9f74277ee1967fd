package ncitparser

import (
	"testing"

	"github.com/giygas/bpc-regimens/ncitparser/entities"
	"github.com/stretchr/testify/assert"
)

type mapTable map[string]string

func (m mapTable) Choices(field string) (string, bool) {
	cell, ok := m[field]
	return cell, ok
}

func TestFieldNames(t *testing.T) {
	expected := []string{
		"drugs_drug_1", "drugs_drug_oth1",
		"drugs_drug_2", "drugs_drug_oth2",
		"drugs_drug_3", "drugs_drug_oth3",
		"drugs_drug_4", "drugs_drug_oth4",
		"drugs_drug_5", "drugs_drug_oth5",
	}
	assert.Equal(t, expected, FieldNames())
}

func TestBuildMapping(t *testing.T) {
	dd := mapTable{
		"drugs_drug_1":    "C1, Drug A (a)|C2, Drug B",
		"drugs_drug_oth1": "C3, Drug C",
		"unrelated":       "C9, Ignored",
	}
	grs := mapTable{
		"drugs_drug_2": "C4, Drug D",
	}

	mapping, report := BuildMapping(dd, grs, FieldNames())

	assert.Equal(t, entities.DrugMapping{
		"Drug A": "C1",
		"Drug B": "C2",
		"Drug C": "C3",
		"Drug D": "C4",
	}, mapping)
	assert.Equal(t, []string{"drugs_drug_1", "drugs_drug_oth1"}, report.DictionaryFields)
	assert.Equal(t, []string{"drugs_drug_2"}, report.GlobalFields)
	assert.Len(t, report.FieldsNotFound, 7)
	assert.NotContains(t, report.FieldsNotFound, "drugs_drug_1")
	assert.Empty(t, report.Overrides)
}

func TestBuildMappingGlobalResponseSetWins(t *testing.T) {
	dd := mapTable{"drugs_drug_1": "C_OLD, Shared Drug|C1, Drug A"}
	grs := mapTable{"drugs_drug_1": "C_NEW, Shared Drug"}

	mapping, report := BuildMapping(dd, grs, FieldNames())
	assert.Equal(t, "C_NEW", mapping["Shared Drug"])
	assert.Equal(t, "C1", mapping["Drug A"])
	assert.Equal(t, []entities.CodeOverride{{Label: "Shared Drug", Previous: "C_OLD", Code: "C_NEW"}}, report.Overrides)

	// Swapping the tables swaps the winner
	mapping, _ = BuildMapping(grs, dd, FieldNames())
	assert.Equal(t, "C_OLD", mapping["Shared Drug"])
}

func TestBuildMappingLaterFieldWinsWithinTable(t *testing.T) {
	dd := mapTable{
		"drugs_drug_1": "C1, Drug A",
		"drugs_drug_5": "C5, Drug A",
	}

	mapping, _ := BuildMapping(dd, nil, FieldNames())
	assert.Equal(t, "C5", mapping["Drug A"])
}

func TestBuildMappingNoMatches(t *testing.T) {
	mapping, report := BuildMapping(mapTable{}, mapTable{"x": "C1, A"}, FieldNames())
	assert.Empty(t, mapping)
	assert.Equal(t, FieldNames(), report.FieldsNotFound)
}

func TestBuildMappingNilDictionaryTable(t *testing.T) {
	var missing *DictionaryTable
	grs := mapTable{"drugs_drug_1": "C4, Drug D"}

	mapping, report := BuildMapping(missing, grs, FieldNames())
	assert.Equal(t, entities.DrugMapping{"Drug D": "C4"}, mapping)
	assert.Empty(t, report.DictionaryFields)
	assert.Equal(t, []string{"drugs_drug_1"}, report.GlobalFields)
}

func TestBuildMappingRecordsSkippedSegments(t *testing.T) {
	dd := mapTable{"drugs_drug_1": "C1, Drug A|broken|C2, Drug B"}

	mapping, report := BuildMapping(dd, nil, FieldNames())
	assert.Len(t, mapping, 2)
	assert.Len(t, report.SkippedSegments, 1)
	assert.Contains(t, report.SkippedSegments[0], "broken")
}
