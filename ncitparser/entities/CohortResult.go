package entities

import "time"

// CohortResult is everything computed for one cohort in a run
type CohortResult struct {
	Cohort         string                `json:"cohort"`
	Mapping        DrugMapping           `json:"mapping"`
	Abbreviations  []RegimenAbbreviation `json:"abbreviations"`
	UnknownLabels  []string              `json:"unknownLabels,omitempty"`
	Report         MappingReport         `json:"report"`
	DictionaryID   string                `json:"dictionaryId"`
	GlobalID       string                `json:"globalResponseSetId"`
	RegimenTableID string                `json:"regimenTableId"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}
