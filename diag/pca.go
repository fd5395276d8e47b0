// Package diag produces the visual sanity checks of the expression
// pipeline: sample PCA and the mean-variance diagnostics.
package diag

import (
	"fmt"
	"math"
	"sort"

	"github.com/DavideScarpetta/BULK-RNA-seq/countdata"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultTopGenes limits the PCA to the most variable genes, which is where
// the tissue signal lives.
const DefaultTopGenes = 500

// PCAResult holds per-sample component scores and the proportion of
// variance each component explains.
type PCAResult struct {
	Samples      []string
	Scores       [][]float64
	VarExplained []float64
}

// PCA runs principal component analysis on the sample x gene matrix of
// transformed values, restricted to the topGenes most variable genes
// (DefaultTopGenes when <= 0), returning the first k components.
func PCA(vst *countdata.Matrix, topGenes, k int) (*PCAResult, error) {
	nSamples := len(vst.Samples)
	if nSamples < 2 {
		return nil, fmt.Errorf("diag: PCA needs at least 2 samples, have %d", nSamples)
	}
	if topGenes <= 0 {
		topGenes = DefaultTopGenes
	}
	if k <= 0 || k > nSamples {
		k = nSamples
	}

	rows := topVariableGenes(vst, topGenes)
	if len(rows) == 0 {
		return nil, fmt.Errorf("diag: no genes with nonzero variance")
	}
	if k > len(rows) {
		k = len(rows)
	}

	// Samples are observations, genes are variables, columns centered.
	data := mat.NewDense(nSamples, len(rows), nil)
	for v, i := range rows {
		col := vst.Counts[i]
		mean := stat.Mean(col, nil)
		for j := 0; j < nSamples; j++ {
			data.Set(j, v, col[j]-mean)
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return nil, fmt.Errorf("diag: principal component decomposition failed")
	}

	var vectors mat.Dense
	pc.VectorsTo(&vectors)
	variances := pc.VarsTo(nil)

	var projected mat.Dense
	projected.Mul(data, vectors.Slice(0, len(rows), 0, k))

	scores := make([][]float64, nSamples)
	for j := 0; j < nSamples; j++ {
		row := make([]float64, k)
		for c := 0; c < k; c++ {
			row[c] = projected.At(j, c)
		}
		scores[j] = row
	}

	var total float64
	for _, v := range variances {
		total += v
	}
	explained := make([]float64, k)
	if total > 0 {
		for c := 0; c < k; c++ {
			explained[c] = variances[c] / total
		}
	}

	return &PCAResult{
		Samples:      append([]string(nil), vst.Samples...),
		Scores:       scores,
		VarExplained: explained,
	}, nil
}

// topVariableGenes returns row indexes of the n most variable genes,
// skipping genes with no variance at all.
func topVariableGenes(m *countdata.Matrix, n int) []int {
	type geneVar struct {
		row      int
		variance float64
	}

	ranked := make([]geneVar, 0, len(m.Genes))
	for i, row := range m.Counts {
		v := stat.Variance(row, nil)
		if v <= 0 || math.IsNaN(v) {
			continue
		}
		ranked = append(ranked, geneVar{row: i, variance: v})
	}

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].variance > ranked[j].variance })
	if n > len(ranked) {
		n = len(ranked)
	}

	rows := make([]int, n)
	for i := 0; i < n; i++ {
		rows[i] = ranked[i].row
	}

	return rows
}
