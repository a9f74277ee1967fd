// Package validation checks user input and the cohort results of a refresh
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/giygas/bpc-regimens/interfaces"
	"github.com/giygas/bpc-regimens/ncitparser/entities"
)

const (
	maxCohortNameLength = 32
	maxRegimenLength    = 500
	maxRegimenDrugs     = 12
)

var (
	cohortNameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

	// Drug labels: letters, digits, spaces and the punctuation seen in NCIT names
	regimenRegex = regexp.MustCompile(`^[\p{L}0-9\s,\-\.\+'/()]+$`)

	dangerousPatterns = []string{
		"--", "/*", "*/", "../", "..\\",
	}
)

// Compile-time check to ensure DataValidatorImpl implements DataValidator
var _ interfaces.DataValidator = (*DataValidatorImpl)(nil)

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct{}

// NewDataValidator creates a new data validator
func NewDataValidator() interfaces.DataValidator {
	return &DataValidatorImpl{}
}

// ValidateCohortName checks a cohort name taken from a URL or a flag
func (v *DataValidatorImpl) ValidateCohortName(input string) error {
	if input == "" {
		return fmt.Errorf("cohort cannot be empty")
	}

	if len(input) > maxCohortNameLength {
		return fmt.Errorf("cohort too long: maximum %d characters", maxCohortNameLength)
	}

	if !cohortNameRegex.MatchString(input) {
		return fmt.Errorf("cohort contains invalid characters. Only letters, numbers, hyphens and underscores are allowed")
	}

	return nil
}

// ValidateRegimen checks a comma separated list of drug labels
func (v *DataValidatorImpl) ValidateRegimen(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("regimen cannot be empty")
	}

	if len(input) > maxRegimenLength {
		return fmt.Errorf("regimen too long: maximum %d characters", maxRegimenLength)
	}

	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("regimen contains potentially dangerous content")
		}
	}

	if !regimenRegex.MatchString(input) {
		return fmt.Errorf("regimen contains invalid characters")
	}

	drugs := strings.Split(input, ",")
	if len(drugs) > maxRegimenDrugs {
		return fmt.Errorf("regimen too complex: maximum %d drugs allowed", maxRegimenDrugs)
	}
	for _, drug := range drugs {
		if strings.TrimSpace(drug) == "" {
			return fmt.Errorf("regimen contains an empty drug label")
		}
	}

	return nil
}

// ValidateDataIntegrity rejects a refresh whose results cannot be served
func (v *DataValidatorImpl) ValidateDataIntegrity(results []entities.CohortResult) error {
	if len(results) == 0 {
		return fmt.Errorf("no cohort results found")
	}

	seen := make(map[string]bool, len(results))
	for _, result := range results {
		if strings.TrimSpace(result.Cohort) == "" {
			return fmt.Errorf("cohort result without a cohort name")
		}
		if seen[result.Cohort] {
			return fmt.Errorf("duplicate cohort found: %s", result.Cohort)
		}
		seen[result.Cohort] = true

		codes := make(map[string]bool, len(result.Mapping))
		for _, code := range result.Mapping {
			codes[code] = true
		}

		for _, abbreviation := range result.Abbreviations {
			if strings.TrimSpace(abbreviation.Regimen) == "" {
				return fmt.Errorf("cohort %s has an empty regimen", result.Cohort)
			}

			parts := strings.Split(abbreviation.Abbreviation, "_")
			if drugs := strings.Split(abbreviation.Regimen, ","); len(drugs) != len(parts) {
				return fmt.Errorf("cohort %s: abbreviation %q has %d codes for %d drugs", result.Cohort, abbreviation.Abbreviation, len(parts), len(drugs))
			}
			for _, code := range parts {
				if !codes[code] {
					return fmt.Errorf("cohort %s: code %q of regimen %q is not in the drug mapping", result.Cohort, code, abbreviation.Regimen)
				}
			}
		}
	}

	return nil
}

// ReportDataQuality collects the non fatal issues of a refresh
func (v *DataValidatorImpl) ReportDataQuality(results []entities.CohortResult) *interfaces.DataQualityReport {
	report := &interfaces.DataQualityReport{
		CohortsWithoutMapping:   []string{},
		CohortsWithoutRegimens:  []string{},
		UnknownLabels:           make(map[string]int),
		FieldsNotFoundPerCohort: make(map[string]int),
	}

	for _, result := range results {
		if len(result.Mapping) == 0 {
			report.CohortsWithoutMapping = append(report.CohortsWithoutMapping, result.Cohort)
		}
		if len(result.Abbreviations) == 0 {
			report.CohortsWithoutRegimens = append(report.CohortsWithoutRegimens, result.Cohort)
		}
		report.SkippedSegments += len(result.Report.SkippedSegments)
		report.Overrides += len(result.Report.Overrides)

		if n := len(result.UnknownLabels); n > 0 {
			report.UnknownLabels[result.Cohort] = n
		}
		if n := len(result.Report.FieldsNotFound); n > 0 {
			report.FieldsNotFoundPerCohort[result.Cohort] = n
		}
	}

	return report
}
