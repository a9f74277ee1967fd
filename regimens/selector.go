package regimens

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/giygas/bpc-regimens/csvtable"
	"github.com/giygas/bpc-regimens/logging"
	"github.com/giygas/bpc-regimens/ncitparser/entities"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const (
	CohortColumn        = "cohort"
	RedcapCaIndexColumn = "redcap_ca_index"
	RegimenDrugsColumn  = "regimen_drugs"
	RegimenNumberColumn = "regimen_number"
	RecordIDColumn      = "record_id"

	DefaultTopRegimens = 20
)

var requiredColumns = []string{
	CohortColumn,
	RedcapCaIndexColumn,
	RegimenDrugsColumn,
	RegimenNumberColumn,
	RecordIDColumn,
}

// Regimens mentioning any of these are left out of the selection
var excludedDrugs = []string{"Investigational Drug", "Other"}

// LoadRegimenTable reads the regimen CSV and checks its columns
func LoadRegimenTable(path string) (dataframe.DataFrame, error) {
	df, err := csvtable.Read(path)
	if err != nil {
		return df, err
	}
	if err := csvtable.RequireColumns(df, requiredColumns...); err != nil {
		return df, fmt.Errorf("regimen table %s: %w", path, err)
	}
	return df, nil
}

func keepRegimen(el series.Element) bool {
	if el.IsNA() {
		return false
	}
	drugs := el.String()
	for _, excluded := range excludedDrugs {
		if strings.Contains(drugs, excluded) {
			return false
		}
	}
	return true
}

// SelectTopRegimens returns the topN most frequent regimens of a cohort among
// index cancer rows. Each patient counts once per regimen, keeping the row
// with the lowest regimen number. Ties in frequency go to the regimen seen
// first in that order. The result is sorted by regimen and carries counts
// but no abbreviations.
func SelectTopRegimens(table dataframe.DataFrame, cohort string, topN int) ([]entities.RegimenAbbreviation, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("top regimens must be positive, got %d", topN)
	}
	if err := csvtable.RequireColumns(table, requiredColumns...); err != nil {
		return nil, err
	}
	if table.Nrow() == 0 {
		return []entities.RegimenAbbreviation{}, nil
	}

	filtered := table.
		Filter(dataframe.F{Colname: CohortColumn, Comparator: series.Eq, Comparando: cohort}).
		Filter(dataframe.F{Colname: RedcapCaIndexColumn, Comparator: series.Eq, Comparando: "Yes"}).
		Filter(dataframe.F{Colname: RegimenDrugsColumn, Comparator: series.CompFunc, Comparando: keepRegimen})
	if filtered.Err != nil {
		return nil, fmt.Errorf("failed to filter regimens of %s: %w", cohort, filtered.Err)
	}

	rows := regimenRows(filtered)
	logging.Debug("Regimen rows after filtering", "cohort", cohort, "rows", len(rows))

	return countTop(rows, topN), nil
}

// regimenRows converts a filtered frame into typed rows. Regimen numbers
// that do not parse sort last.
func regimenRows(df dataframe.DataFrame) []entities.RegimenRow {
	cohorts := csvtable.Strings(df, CohortColumn)
	index := csvtable.Strings(df, RedcapCaIndexColumn)
	drugs := csvtable.Strings(df, RegimenDrugsColumn)
	numbers := csvtable.Strings(df, RegimenNumberColumn)
	records := csvtable.Strings(df, RecordIDColumn)

	rows := make([]entities.RegimenRow, len(drugs))
	for i := range rows {
		number, err := strconv.ParseFloat(strings.TrimSpace(numbers[i]), 64)
		if err != nil || math.IsNaN(number) {
			number = math.Inf(1)
		}
		rows[i] = entities.RegimenRow{
			Cohort:        cohorts[i],
			RedcapCaIndex: index[i],
			RegimenDrugs:  drugs[i],
			RecordID:      records[i],
			RegimenNumber: number,
		}
	}
	return rows
}

func countTop(rows []entities.RegimenRow, topN int) []entities.RegimenAbbreviation {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].RegimenNumber < rows[j].RegimenNumber
	})

	type patientRegimen struct{ record, drugs string }
	seen := make(map[patientRegimen]bool, len(rows))
	counts := make(map[string]int)
	var order []string

	for _, row := range rows {
		key := patientRegimen{row.RecordID, row.RegimenDrugs}
		if seen[key] {
			continue
		}
		seen[key] = true
		if counts[row.RegimenDrugs] == 0 {
			order = append(order, row.RegimenDrugs)
		}
		counts[row.RegimenDrugs]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > topN {
		order = order[:topN]
	}
	sort.Strings(order)

	selected := make([]entities.RegimenAbbreviation, len(order))
	for i, regimen := range order {
		selected[i] = entities.RegimenAbbreviation{Regimen: regimen, Count: counts[regimen]}
	}
	return selected
}
