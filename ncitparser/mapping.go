package ncitparser

import (
	"fmt"

	"github.com/giygas/bpc-regimens/logging"
	"github.com/giygas/bpc-regimens/metrics"
	"github.com/giygas/bpc-regimens/ncitparser/entities"
)

// drugSlots is the number of drug fields per regimen in the dictionary
const drugSlots = 5

// ChoiceTable gives access to the choices cell of a field.
// ok is false when the table has no row for the field.
type ChoiceTable interface {
	Choices(field string) (cell string, ok bool)
}

// FieldNames returns the dictionary fields that hold drug choices, in the
// order drugs_drug_1, drugs_drug_oth1, ..., drugs_drug_5, drugs_drug_oth5
func FieldNames() []string {
	names := make([]string, 0, 2*drugSlots)
	for i := 1; i <= drugSlots; i++ {
		names = append(names,
			fmt.Sprintf("drugs_drug_%d", i),
			fmt.Sprintf("drugs_drug_oth%d", i))
	}
	return names
}

// BuildMapping builds the label to code mapping from the choices of every
// field. The data dictionary is read first and the global response set
// second, so a label defined in both ends up with the global code.
// Either table may be nil.
func BuildMapping(dataDictionary, globalResponseSet ChoiceTable, fieldNames []string) (entities.DrugMapping, entities.MappingReport) {
	mapping := entities.DrugMapping{}
	var report entities.MappingReport

	sources := []struct {
		name    string
		table   ChoiceTable
		matched *[]string
	}{
		{"data_dictionary", dataDictionary, &report.DictionaryFields},
		{"global_response_set", globalResponseSet, &report.GlobalFields},
	}

	found := make(map[string]bool, len(fieldNames))
	for _, source := range sources {
		if source.table == nil {
			continue
		}

		for _, field := range fieldNames {
			cell, ok := source.table.Choices(field)
			if !ok {
				continue
			}
			found[field] = true
			*source.matched = append(*source.matched, field)

			choices, skipped := ParseChoices(cell)
			for _, err := range skipped {
				logging.Warn("Skipping malformed choice segment", "table", source.name, "field", field, "error", err)
				metrics.ChoiceSegmentsSkipped.WithLabelValues(source.name).Inc()
				report.SkippedSegments = append(report.SkippedSegments, err.Error())
			}

			for _, choice := range choices {
				if previous, exists := mapping[choice.Label]; exists && previous != choice.Code {
					report.Overrides = append(report.Overrides, entities.CodeOverride{
						Label:    choice.Label,
						Previous: previous,
						Code:     choice.Code,
					})
				}
				mapping[choice.Label] = choice.Code
			}
		}
	}

	for _, field := range fieldNames {
		if !found[field] {
			logging.Debug("Field not found in either table", "field", field)
			report.FieldsNotFound = append(report.FieldsNotFound, field)
		}
	}

	return mapping, report
}
