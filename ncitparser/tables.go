package ncitparser

import (
	"fmt"
	"strings"

	"github.com/giygas/bpc-regimens/csvtable"
	"github.com/go-gota/gota/dataframe"
)

const (
	FieldNameColumn = "Variable / Field Name"
	ChoicesColumn   = "Choices, Calculations, OR Slider Labels"
)

// DictionaryTable is a ChoiceTable over a data frame with the field name and
// choices columns. When a field appears on several rows the first one is used.
type DictionaryTable struct {
	cells map[string]string
	order []string
}

var _ ChoiceTable = (*DictionaryTable)(nil)

// NewDictionaryTable indexes df by its field name column
func NewDictionaryTable(df dataframe.DataFrame) (*DictionaryTable, error) {
	if err := csvtable.RequireColumns(df, FieldNameColumn, ChoicesColumn); err != nil {
		return nil, err
	}

	fields := csvtable.Strings(df, FieldNameColumn)
	choices := csvtable.Strings(df, ChoicesColumn)

	t := &DictionaryTable{cells: make(map[string]string, len(fields))}
	for i, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if _, seen := t.cells[field]; seen {
			continue
		}
		t.cells[field] = choices[i]
		t.order = append(t.order, field)
	}
	return t, nil
}

// Choices implements ChoiceTable. A nil table has no fields.
func (t *DictionaryTable) Choices(field string) (string, bool) {
	if t == nil {
		return "", false
	}
	cell, ok := t.cells[field]
	return cell, ok
}

// Fields returns the field names in table order
func (t *DictionaryTable) Fields() []string {
	if t == nil {
		return nil
	}
	return t.order
}

// LoadDictionaryTable reads a cohort data dictionary CSV
func LoadDictionaryTable(path string) (*DictionaryTable, error) {
	df, err := csvtable.Read(path)
	if err != nil {
		return nil, err
	}

	t, err := NewDictionaryTable(df)
	if err != nil {
		return nil, fmt.Errorf("data dictionary %s: %w", path, err)
	}
	return t, nil
}

// LoadGlobalResponseSet reads the global response set CSV. Its two columns
// carry the same content as the dictionary columns under other headers, so
// they are renamed by position.
func LoadGlobalResponseSet(path string) (*DictionaryTable, error) {
	df, err := csvtable.Read(path)
	if err != nil {
		return nil, err
	}

	t, err := globalResponseSetTable(df)
	if err != nil {
		return nil, fmt.Errorf("global response set %s: %w", path, err)
	}
	return t, nil
}

func globalResponseSetTable(df dataframe.DataFrame) (*DictionaryTable, error) {
	names := df.Names()
	if len(names) != 2 {
		return nil, fmt.Errorf("expected 2 columns, got %d", len(names))
	}

	df = df.Rename(FieldNameColumn, names[0]).Rename(ChoicesColumn, names[1])
	if df.Err != nil {
		return nil, fmt.Errorf("failed to rename columns: %w", df.Err)
	}
	return NewDictionaryTable(df)
}
