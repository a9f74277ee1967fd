// Package regimens selects the most frequent regimens of a cohort and
// abbreviates them into NCIT codes
package regimens

import (
	"errors"
	"fmt"
	"strings"

	"github.com/giygas/bpc-regimens/ncitparser/entities"
)

// ErrUnknownDrugLabel is matched by every UnknownDrugLabelError
var ErrUnknownDrugLabel = errors.New("unknown drug label")

// UnknownDrugLabelError is returned when a drug of a regimen has no code
type UnknownDrugLabelError struct {
	Regimen string
	Label   string
}

func (e *UnknownDrugLabelError) Error() string {
	return fmt.Sprintf("unknown drug label %q in regimen %q", e.Label, e.Regimen)
}

func (e *UnknownDrugLabelError) Unwrap() error {
	return ErrUnknownDrugLabel
}

// splitDrugs splits a regimen on commas and trims every label
func splitDrugs(regimen string) []string {
	drugs := strings.Split(regimen, ",")
	for i := range drugs {
		drugs[i] = strings.TrimSpace(drugs[i])
	}
	return drugs
}

// Abbreviate maps every drug of the regimen to its code and joins the codes
// with "_" in regimen order. Nothing is returned if any drug is unknown.
func Abbreviate(regimen string, mapping entities.DrugMapping) (string, error) {
	drugs := splitDrugs(regimen)
	codes := make([]string, 0, len(drugs))

	for _, drug := range drugs {
		code, ok := mapping[drug]
		if !ok {
			return "", &UnknownDrugLabelError{Regimen: regimen, Label: drug}
		}
		codes = append(codes, code)
	}

	return strings.Join(codes, "_"), nil
}

// UnknownLabels returns the drugs of regimen missing from mapping, in order
func UnknownLabels(regimen string, mapping entities.DrugMapping) []string {
	var unknown []string
	for _, drug := range splitDrugs(regimen) {
		if _, ok := mapping[drug]; !ok {
			unknown = append(unknown, drug)
		}
	}
	return unknown
}

// AbbreviateAll abbreviates the selected regimens in order. By default the
// first unknown label aborts with an UnknownDrugLabelError. With skipUnknown
// the regimen is left out instead and its unknown labels are returned.
func AbbreviateAll(selected []entities.RegimenAbbreviation, mapping entities.DrugMapping, skipUnknown bool) ([]entities.RegimenAbbreviation, []string, error) {
	result := make([]entities.RegimenAbbreviation, 0, len(selected))
	var unknown []string
	seen := make(map[string]bool)

	for _, regimen := range selected {
		abbreviation, err := Abbreviate(regimen.Regimen, mapping)
		if err != nil {
			if !skipUnknown || !errors.Is(err, ErrUnknownDrugLabel) {
				return nil, nil, err
			}
			for _, label := range UnknownLabels(regimen.Regimen, mapping) {
				if !seen[label] {
					seen[label] = true
					unknown = append(unknown, label)
				}
			}
			continue
		}

		regimen.Abbreviation = abbreviation
		result = append(result, regimen)
	}

	return result, unknown, nil
}
