// Package csvtable loads the CSV tables downloaded from Synapse into data frames
package csvtable

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/dimchansky/utfbom"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"golang.org/x/text/encoding/charmap"
)

// ErrMissingColumn is returned when a table lacks a required column
var ErrMissingColumn = errors.New("required column not found")

// Read parses the CSV file at path
func Read(path string) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	df, err := Parse(f)
	if err != nil {
		return df, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return df, nil
}

// Parse reads a CSV table with a header row. Every column is kept as a
// string column. A UTF-8 BOM is skipped and content that is not valid UTF-8
// is decoded as ISO-8859-1. A header without rows gives an empty frame.
func Parse(r io.Reader) (dataframe.DataFrame, error) {
	content, err := io.ReadAll(utfbom.SkipOnly(r))
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to read table: %w", err)
	}

	if !utf8.Valid(content) {
		if content, err = charmap.ISO8859_1.NewDecoder().Bytes(content); err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("failed to decode table: %w", err)
		}
	}

	df := dataframe.ReadCSV(bytes.NewReader(content),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.WithLazyQuotes(true))
	if df.Err != nil {
		if header, ok := headerOnly(content); ok {
			return emptyFrame(header), nil
		}
	}
	return df, df.Err
}

// headerOnly returns the header of content when it has no data rows
func headerOnly(content []byte) ([]string, bool) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil || len(records) != 1 {
		return nil, false
	}
	return records[0], true
}

func emptyFrame(header []string) dataframe.DataFrame {
	columns := make([]series.Series, len(header))
	for i, name := range header {
		columns[i] = series.New([]string{}, series.String, name)
	}
	return dataframe.New(columns...)
}

// RequireColumns checks that every name in required is a column of df
func RequireColumns(df dataframe.DataFrame, required ...string) error {
	names := make(map[string]struct{}, df.Ncol())
	for _, name := range df.Names() {
		names[name] = struct{}{}
	}

	for _, name := range required {
		if _, ok := names[name]; !ok {
			return fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}
	return nil
}

// Strings returns the cells of a column, with missing values as ""
func Strings(df dataframe.DataFrame, column string) []string {
	col := df.Col(column)
	values := make([]string, col.Len())
	for i := range values {
		if elem := col.Elem(i); !elem.IsNA() {
			values[i] = elem.String()
		}
	}
	return values
}
