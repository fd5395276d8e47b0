package countdata

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

// Sample describes one sequencing library: its column name in the merged
// matrix and the tissue it came from.
type Sample struct {
	Name   string `csv:"sample"`
	Tissue string `csv:"tissue"`
	Batch  string `csv:"batch"`
}

// ReadSampleSheet parses a tab-delimited metadata sheet with at least the
// columns "sample" and "tissue".
func ReadSampleSheet(r io.Reader) ([]Sample, error) {
	// Tell gocsv to use tab as the delimiter
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		cr := csv.NewReader(in)
		cr.Comma = '\t'
		cr.LazyQuotes = true
		return cr
	})

	var sheet []Sample
	if err := gocsv.Unmarshal(r, &sheet); err != nil {
		return nil, err
	}

	for i, s := range sheet {
		if s.Name == "" || s.Tissue == "" {
			return nil, fmt.Errorf("countdata: sample sheet row %d is missing a sample name or tissue", i+1)
		}
	}

	return sheet, nil
}

// SheetFor synthesizes metadata for a per-tissue matrix: every column gets
// the tissue label.
func SheetFor(m *Matrix, tissue string) []Sample {
	sheet := make([]Sample, len(m.Samples))
	for j, name := range m.Samples {
		sheet[j] = Sample{Name: name, Tissue: tissue}
	}

	return sheet
}

// Tissues maps the matrix columns through the sheet, returning one tissue
// label per column in column order. Samples absent from the sheet are an
// error, as are sheet entries absent from the matrix.
func Tissues(m *Matrix, sheet []Sample) ([]string, error) {
	byName := make(map[string]string, len(sheet))
	for _, s := range sheet {
		byName[s.Name] = s.Tissue
	}

	inMatrix := make(map[string]bool, len(m.Samples))
	tissues := make([]string, len(m.Samples))
	for j, name := range m.Samples {
		inMatrix[name] = true
		tissue, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("countdata: sample %s has no sample sheet entry", name)
		}
		tissues[j] = tissue
	}

	for _, s := range sheet {
		if !inMatrix[s.Name] {
			return nil, fmt.Errorf("countdata: sample sheet names %s, which is not in the matrix", s.Name)
		}
	}

	return tissues, nil
}
