// Package annot maps Ensembl gene IDs to symbols, chromosomes, and
// transcript lengths from a BioMart-style tab-delimited export, and carries
// the gene-level quality filters of the expression pipeline.
package annot

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Column layout of the BioMart export.
const (
	GeneStableID int = iota
	GeneName
	Chromosome
	TranscriptLengthBP

	numColumns
)

type Gene struct {
	ID               string
	Symbol           string
	Chromosome       string
	TranscriptLength int
}

// Table is keyed by unversioned Ensembl stable ID.
type Table map[string]Gene

// ReadTable parses the annotation export. The header row and # comments are
// skipped. Genes with several transcripts keep the longest transcript
// length.
func ReadTable(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.FieldsPerRecord = -1

	table := make(Table)

	for i := 0; ; i++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("annot: row %d: %s", i, err)
		}

		if i == 0 {
			// Header
			continue
		}
		if len(rec) < numColumns {
			return nil, fmt.Errorf("annot: row %d has %d columns, expected %d", i, len(rec), numColumns)
		}

		id := stripVersion(strings.TrimSpace(rec[GeneStableID]))
		if id == "" {
			continue
		}

		length := 0
		if s := strings.TrimSpace(rec[TranscriptLengthBP]); s != "" {
			length, err = strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("annot: row %d (%s): bad transcript length: %s", i, id, err)
			}
		}

		gene := Gene{
			ID:               id,
			Symbol:           strings.TrimSpace(rec[GeneName]),
			Chromosome:       strings.TrimSpace(rec[Chromosome]),
			TranscriptLength: length,
		}

		if prior, exists := table[id]; exists {
			if prior.TranscriptLength >= gene.TranscriptLength {
				continue
			}
			if gene.Symbol == "" {
				gene.Symbol = prior.Symbol
			}
		}
		table[id] = gene
	}

	if len(table) == 0 {
		return nil, fmt.Errorf("annot: no usable rows")
	}

	return table, nil
}

// Symbol maps an ID (version suffix tolerated) to its gene symbol. Unknown
// or symbol-less genes fall back to the bare ID so downstream gene lists are
// never blank.
func (t Table) Symbol(id string) string {
	gene, ok := t[stripVersion(id)]
	if !ok || gene.Symbol == "" {
		return stripVersion(id)
	}

	return gene.Symbol
}

// Lookup returns the annotation entry for an ID, tolerating version
// suffixes.
func (t Table) Lookup(id string) (Gene, bool) {
	gene, ok := t[stripVersion(id)]
	return gene, ok
}

// QC holds the gene-level quality thresholds.
type QC struct {
	// MinTranscriptLength drops short transcripts; the pipeline default is
	// 200 bp.
	MinTranscriptLength int

	// DropMitochondrial excludes chrM genes, whose counts track library
	// degradation more than biology.
	DropMitochondrial bool
}

// DefaultQC matches the analysis defaults.
var DefaultQC = QC{MinTranscriptLength: 200, DropMitochondrial: true}

// Keep reports whether a gene passes QC. Genes missing from the table fail:
// with no length or chromosome there is nothing to vouch for them.
func (t Table) Keep(qc QC, id string) bool {
	gene, ok := t[stripVersion(id)]
	if !ok {
		return false
	}
	if gene.TranscriptLength < qc.MinTranscriptLength {
		return false
	}
	if qc.DropMitochondrial && isMitochondrial(gene.Chromosome) {
		return false
	}

	return true
}

func isMitochondrial(chromosome string) bool {
	switch strings.ToUpper(chromosome) {
	case "MT", "M", "CHRM", "CHRMT":
		return true
	}

	return false
}

func stripVersion(id string) string {
	if i := strings.IndexByte(id, '.'); i > 0 {
		return id[:i]
	}

	return id
}
