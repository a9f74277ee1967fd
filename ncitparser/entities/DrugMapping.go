package entities

import "sort"

// DrugMapping maps a trimmed drug label to its NCIT code
type DrugMapping map[string]string

// Labels returns the mapped labels in ascending order
func (m DrugMapping) Labels() []string {
	labels := make([]string, 0, len(m))
	for label := range m {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// CodeOverride records a label whose code from the data dictionary was
// replaced by the global response set
type CodeOverride struct {
	Label    string `json:"label"`
	Previous string `json:"previous"`
	Code     string `json:"code"`
}

// MappingReport summarizes how a DrugMapping was built
type MappingReport struct {
	DictionaryFields []string       `json:"dictionaryFields"`
	GlobalFields     []string       `json:"globalFields"`
	FieldsNotFound   []string       `json:"fieldsNotFound"`
	SkippedSegments  []string       `json:"skippedSegments"`
	Overrides        []CodeOverride `json:"overrides"`
}
