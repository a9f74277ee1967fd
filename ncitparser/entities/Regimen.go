package entities

// RegimenRow is the typed view of one row of the regimen table
type RegimenRow struct {
	Cohort        string  `json:"cohort"`
	RedcapCaIndex string  `json:"redcapCaIndex"`
	RegimenDrugs  string  `json:"regimenDrugs"`
	RecordID      string  `json:"recordId"`
	RegimenNumber float64 `json:"regimenNumber"`
}

// RegimenAbbreviation pairs a regimen with its underscore joined NCIT codes.
// Count is the number of patients the regimen was selected from.
type RegimenAbbreviation struct {
	Regimen      string `json:"regimen"`
	Abbreviation string `json:"abbreviation"`
	Count        int    `json:"count"`
}
