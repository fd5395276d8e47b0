// Package countdata loads, subsets, and merges bulk RNA-seq gene count
// matrices. The expected layout is one gene per row and one sample per
// column, with a header row naming the samples and the first column holding
// Ensembl gene IDs.
package countdata

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	rnaseq "github.com/DavideScarpetta/BULK-RNA-seq"
)

type Matrix struct {
	Genes   []string
	Samples []string

	// Counts[i][j] is the count for gene i in sample j. Raw counts are
	// integer-valued but sums and size-factor scaling need float64.
	Counts [][]float64

	rows map[string]int
}

// New assembles a Matrix from parallel slices and indexes the gene IDs.
// Duplicate gene IDs and ragged count rows are errors.
func New(genes, samples []string, counts [][]float64) (*Matrix, error) {
	if len(genes) != len(counts) {
		return nil, fmt.Errorf("countdata: %d gene IDs but %d count rows", len(genes), len(counts))
	}

	m := &Matrix{
		Genes:   genes,
		Samples: samples,
		Counts:  counts,
		rows:    make(map[string]int, len(genes)),
	}

	for i, id := range genes {
		if _, exists := m.rows[id]; exists {
			return nil, fmt.Errorf("countdata: duplicate gene ID %s", id)
		}
		if len(counts[i]) != len(samples) {
			return nil, fmt.Errorf("countdata: gene %s has %d values, expected %d", id, len(counts[i]), len(samples))
		}
		m.rows[id] = i
	}

	return m, nil
}

// ReadMatrix parses a count table. The delimiter is sniffed from the leading
// bytes; lines starting with # are skipped.
func ReadMatrix(r io.Reader) (*Matrix, error) {
	br := bufio.NewReaderSize(r, 1<<16)

	lead, err := br.Peek(1 << 12)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, err
	}

	cr := csv.NewReader(br)
	cr.Comma = rnaseq.DetermineDelimiter(bytes.NewReader(lead))
	cr.Comment = '#'

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("countdata: reading header: %s", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("countdata: header has %d columns, expected a gene ID column plus at least one sample", len(header))
	}
	samples := header[1:]

	var genes []string
	var counts [][]float64
	for i := 0; ; i++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("countdata: row %d: %s", i+1, err)
		}

		row := make([]float64, len(rec)-1)
		for j, field := range rec[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("countdata: row %d (%s), column %s: %s", i+1, rec[0], samples[j], err)
			}
			if v < 0 {
				return nil, fmt.Errorf("countdata: row %d (%s), column %s: negative count %g", i+1, rec[0], samples[j], v)
			}
			row[j] = v
		}

		genes = append(genes, rec[0])
		counts = append(counts, row)
	}

	return New(genes, samples, counts)
}

// Row returns the counts for one gene.
func (m *Matrix) Row(id string) ([]float64, bool) {
	i, ok := m.rows[id]
	if !ok {
		return nil, false
	}

	return m.Counts[i], true
}

// SelectSamples returns a copy of the matrix restricted to the named
// columns, in the given order.
func (m *Matrix) SelectSamples(names []string) (*Matrix, error) {
	cols := make([]int, 0, len(names))
	seen := make(map[string]int, len(m.Samples))
	for j, s := range m.Samples {
		seen[s] = j
	}
	for _, name := range names {
		j, ok := seen[name]
		if !ok {
			return nil, fmt.Errorf("countdata: sample %s is not in the matrix", name)
		}
		cols = append(cols, j)
	}

	counts := make([][]float64, len(m.Genes))
	for i, row := range m.Counts {
		sub := make([]float64, len(cols))
		for k, j := range cols {
			sub[k] = row[j]
		}
		counts[i] = sub
	}

	return New(append([]string(nil), m.Genes...), append([]string(nil), names...), counts)
}

// SelectGenes returns a copy of the matrix restricted to the given gene IDs,
// in the given order. Unknown IDs are an error.
func (m *Matrix) SelectGenes(ids []string) (*Matrix, error) {
	genes := make([]string, 0, len(ids))
	counts := make([][]float64, 0, len(ids))
	for _, id := range ids {
		row, ok := m.Row(id)
		if !ok {
			return nil, fmt.Errorf("countdata: gene %s is not in the matrix", id)
		}
		genes = append(genes, id)
		counts = append(counts, row)
	}

	return New(genes, append([]string(nil), m.Samples...), counts)
}

// FilterGenes returns a copy of the matrix keeping only rows for which keep
// returns true, along with the number of dropped genes.
func (m *Matrix) FilterGenes(keep func(id string, counts []float64) bool) (*Matrix, int) {
	var genes []string
	var counts [][]float64
	for i, id := range m.Genes {
		if !keep(id, m.Counts[i]) {
			continue
		}
		genes = append(genes, id)
		counts = append(counts, m.Counts[i])
	}

	out, err := New(genes, append([]string(nil), m.Samples...), counts)
	if err != nil {
		// Filtering a valid matrix cannot introduce duplicates.
		panic(err)
	}

	return out, len(m.Genes) - len(genes)
}

// CountFilter drops genes whose summed count across all samples is below
// minSum. The pipeline default is 5.
func (m *Matrix) CountFilter(minSum float64) (*Matrix, int) {
	return m.FilterGenes(func(_ string, counts []float64) bool {
		var sum float64
		for _, v := range counts {
			sum += v
		}
		return sum >= minSum
	})
}

// LibrarySizes returns the per-sample column sums.
func (m *Matrix) LibrarySizes() []float64 {
	sizes := make([]float64, len(m.Samples))
	for _, row := range m.Counts {
		for j, v := range row {
			sizes[j] += v
		}
	}

	return sizes
}

// StripGeneVersions rewrites version-suffixed Ensembl IDs (ENSG....12) to
// their stable form. Collisions after stripping are an error.
func (m *Matrix) StripGeneVersions() error {
	genes := make([]string, len(m.Genes))
	rows := make(map[string]int, len(m.Genes))
	for i, id := range m.Genes {
		stripped := StripVersion(id)
		if _, exists := rows[stripped]; exists {
			return fmt.Errorf("countdata: gene ID %s collides after version stripping", stripped)
		}
		genes[i] = stripped
		rows[stripped] = i
	}

	m.Genes = genes
	m.rows = rows

	return nil
}

// StripVersion removes a trailing .N version from an Ensembl identifier.
func StripVersion(id string) string {
	if i := strings.IndexByte(id, '.'); i > 0 {
		return id[:i]
	}

	return id
}

// Merge inner-joins matrices on gene ID, in the gene order of the first
// matrix. It returns the number of gene IDs dropped for not being shared by
// every input. Duplicate sample names across inputs are an error.
func Merge(matrices ...*Matrix) (*Matrix, int, error) {
	if len(matrices) == 0 {
		return nil, 0, fmt.Errorf("countdata: nothing to merge")
	}

	var samples []string
	seenSample := make(map[string]bool)
	for _, m := range matrices {
		for _, s := range m.Samples {
			if seenSample[s] {
				return nil, 0, fmt.Errorf("countdata: sample name %s appears in more than one matrix", s)
			}
			seenSample[s] = true
			samples = append(samples, s)
		}
	}

	union := make(map[string]bool)
	for _, m := range matrices {
		for _, id := range m.Genes {
			union[id] = true
		}
	}

	var genes []string
	var counts [][]float64
	for _, id := range matrices[0].Genes {
		row := make([]float64, 0, len(samples))
		shared := true
		for _, m := range matrices {
			sub, ok := m.Row(id)
			if !ok {
				shared = false
				break
			}
			row = append(row, sub...)
		}
		if !shared {
			continue
		}
		genes = append(genes, id)
		counts = append(counts, row)
	}

	if len(genes) == 0 {
		return nil, 0, fmt.Errorf("countdata: no genes shared by all %d matrices", len(matrices))
	}

	out, err := New(genes, samples, counts)
	if err != nil {
		return nil, 0, err
	}

	return out, len(union) - len(genes), nil
}

// WriteTSV writes the matrix in the same layout ReadMatrix accepts.
func (m *Matrix) WriteTSV(w io.Writer) error {
	bw := bufio.NewWriterSize(w, 1<<16)

	cw := csv.NewWriter(bw)
	cw.Comma = '\t'

	if err := cw.Write(append([]string{"Geneid"}, m.Samples...)); err != nil {
		return err
	}

	line := make([]string, len(m.Samples)+1)
	for i, id := range m.Genes {
		line[0] = id
		for j, v := range m.Counts[i] {
			line[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	return bw.Flush()
}
