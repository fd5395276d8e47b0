// Package dge implements the statistics of the differential expression
// pipeline: median-of-ratios size factors, negative binomial dispersion
// estimation with a parametric mean-dispersion trend, per-contrast Wald
// tests, Benjamini-Hochberg adjustment, and the variance-stabilizing
// transform used for visualization.
package dge

import (
	"fmt"

	"github.com/DavideScarpetta/BULK-RNA-seq/countdata"
)

// DataSet carries a merged count matrix with its per-sample tissue labels
// and the fitted model state.
type DataSet struct {
	Matrix  *countdata.Matrix
	Tissues []string

	// SizeFactors scale each sample's counts onto a common library depth.
	SizeFactors []float64

	// BaseMeans are per-gene means of the normalized counts.
	BaseMeans []float64

	// GeneDispersions are the method-of-moments gene-wise estimates,
	// FittedDispersions the parametric trend evaluated at each gene's base
	// mean, and MAPDispersions the shrunken estimates used for testing.
	GeneDispersions   []float64
	FittedDispersions []float64
	MAPDispersions    []float64

	Trend TrendFit

	normalized [][]float64
}

// New validates the matrix against its tissue labels (one per sample
// column).
func New(m *countdata.Matrix, tissues []string) (*DataSet, error) {
	if len(m.Genes) == 0 {
		return nil, fmt.Errorf("dge: empty count matrix")
	}
	if len(tissues) != len(m.Samples) {
		return nil, fmt.Errorf("dge: %d tissue labels for %d samples", len(tissues), len(m.Samples))
	}
	for j, tissue := range tissues {
		if tissue == "" {
			return nil, fmt.Errorf("dge: sample %s has no tissue label", m.Samples[j])
		}
	}

	return &DataSet{Matrix: m, Tissues: append([]string(nil), tissues...)}, nil
}

// TissueColumns returns the column indexes of one tissue's samples.
func (ds *DataSet) TissueColumns(tissue string) []int {
	var cols []int
	for j, t := range ds.Tissues {
		if t == tissue {
			cols = append(cols, j)
		}
	}

	return cols
}

// TissueNames returns the distinct tissues in first-seen column order.
func (ds *DataSet) TissueNames() []string {
	var names []string
	seen := make(map[string]bool)
	for _, t := range ds.Tissues {
		if !seen[t] {
			seen[t] = true
			names = append(names, t)
		}
	}

	return names
}

// NormalizedCounts returns counts divided by their sample's size factor.
// EstimateSizeFactors must have run first.
func (ds *DataSet) NormalizedCounts() ([][]float64, error) {
	if ds.SizeFactors == nil {
		return nil, fmt.Errorf("dge: size factors have not been estimated")
	}
	if ds.normalized != nil {
		return ds.normalized, nil
	}

	normalized := make([][]float64, len(ds.Matrix.Genes))
	for i, row := range ds.Matrix.Counts {
		norm := make([]float64, len(row))
		for j, v := range row {
			norm[j] = v / ds.SizeFactors[j]
		}
		normalized[i] = norm
	}
	ds.normalized = normalized

	return normalized, nil
}
