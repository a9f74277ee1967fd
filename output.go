package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/giygas/bpc-regimens/ncitparser/entities"
)

const (
	formatText = "text"
	formatJSON = "json"
)

func checkFormat(format string) error {
	if format != formatText && format != formatJSON {
		return fmt.Errorf("--format must be one of [text json], got: %s", format)
	}
	return nil
}

type mappingOutput struct {
	Cohort       string               `json:"cohort"`
	DictionaryID string               `json:"dictionaryId"`
	Mapping      entities.DrugMapping `json:"mapping"`
	Overrides    int                  `json:"overrides"`
	Skipped      int                  `json:"skippedSegments"`
}

type abbreviationsOutput struct {
	Cohort        string                         `json:"cohort"`
	Abbreviations []entities.RegimenAbbreviation `json:"abbreviations"`
	UnknownLabels []string                       `json:"unknownLabels,omitempty"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeMapping prints one "label<TAB>code" line per label, in label order
func writeMapping(w io.Writer, result entities.CohortResult, format string) error {
	if format == formatJSON {
		return writeJSON(w, mappingOutput{
			Cohort:       result.Cohort,
			DictionaryID: result.DictionaryID,
			Mapping:      result.Mapping,
			Overrides:    len(result.Report.Overrides),
			Skipped:      len(result.Report.SkippedSegments),
		})
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, result.Cohort)
	for _, label := range result.Mapping.Labels() {
		fmt.Fprintf(tw, "%s\t%s\n", label, result.Mapping[label])
	}
	return tw.Flush()
}

// writeAbbreviations prints each cohort name followed by its abbreviations
func writeAbbreviations(w io.Writer, results []entities.CohortResult, format string) error {
	if format == formatJSON {
		out := make([]abbreviationsOutput, 0, len(results))
		for _, r := range results {
			abbreviations := r.Abbreviations
			if abbreviations == nil {
				abbreviations = []entities.RegimenAbbreviation{}
			}
			out = append(out, abbreviationsOutput{Cohort: r.Cohort, Abbreviations: abbreviations, UnknownLabels: r.UnknownLabels})
		}
		return writeJSON(w, out)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range results {
		fmt.Fprintln(tw, r.Cohort)
		for _, a := range r.Abbreviations {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", a.Abbreviation, a.Regimen, a.Count)
		}
		if len(r.UnknownLabels) > 0 {
			fmt.Fprintf(tw, "skipped unknown labels:\t%v\n", r.UnknownLabels)
		}
	}
	return tw.Flush()
}
