package dge

import (
	"fmt"
	"math"
	"runtime"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// lfcPseudocount moderates fold changes when one group is at or near zero,
// keeping log2 ratios finite.
const lfcPseudocount = 0.5

// Contrast names a pairwise comparison; fold changes are reported as
// Numerator over Denominator.
type Contrast struct {
	Numerator   string
	Denominator string
}

func (c Contrast) Name() string {
	return c.Numerator + "_vs_" + c.Denominator
}

// Flip returns the reversed contrast.
func (c Contrast) Flip() Contrast {
	return Contrast{Numerator: c.Denominator, Denominator: c.Numerator}
}

// PairwiseContrasts enumerates tissue pairs in the given order.
func PairwiseContrasts(tissues []string) []Contrast {
	var contrasts []Contrast
	for i := 0; i < len(tissues); i++ {
		for j := i + 1; j < len(tissues); j++ {
			contrasts = append(contrasts, Contrast{Numerator: tissues[i], Denominator: tissues[j]})
		}
	}

	return contrasts
}

// WaldTest compares two tissues gene by gene under the negative binomial
// model: the log2 ratio of group means on the normalized scale is tested
// against a standard error derived from the NB variance function
// mu + alpha*mu^2, using the shrunken dispersions. Results keep the matrix
// gene order; PAdj is filled by AdjustBH.
//
// EstimateSizeFactors and EstimateDispersions must have run first.
func (ds *DataSet) WaldTest(c Contrast) ([]Result, error) {
	if ds.MAPDispersions == nil {
		return nil, fmt.Errorf("dge: dispersions have not been estimated")
	}

	colsA := ds.TissueColumns(c.Numerator)
	colsB := ds.TissueColumns(c.Denominator)
	if len(colsA) == 0 {
		return nil, fmt.Errorf("dge: contrast %s: no samples for tissue %s", c.Name(), c.Numerator)
	}
	if len(colsB) == 0 {
		return nil, fmt.Errorf("dge: contrast %s: no samples for tissue %s", c.Name(), c.Denominator)
	}

	normalized, err := ds.NormalizedCounts()
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(ds.Matrix.Genes))

	concurrency := 4 * runtime.NumCPU()
	sem := make(chan bool, concurrency)
	for i := range results {
		sem <- true
		go func(i int) {
			results[i] = waldOne(ds.Matrix.Genes[i], normalized[i], colsA, colsB, ds.MAPDispersions[i])
			<-sem
		}(i)
	}
	for i := 0; i < cap(sem); i++ {
		sem <- true
	}

	AdjustBH(results)

	return results, nil
}

func waldOne(gene string, counts []float64, colsA, colsB []int, alpha float64) Result {
	groupA := gather(counts, colsA)
	groupB := gather(counts, colsB)

	meanA := stat.Mean(groupA, nil)
	meanB := stat.Mean(groupB, nil)

	both := append(groupA, groupB...)
	res := Result{Gene: gene, BaseMean: stat.Mean(both, nil)}

	if meanA == 0 && meanB == 0 {
		res.PValue = 1
		return res
	}

	res.Log2FoldChange = math.Log2((meanA + lfcPseudocount) / (meanB + lfcPseudocount))

	// Delta-method standard error of the log2 group-mean ratio under the NB
	// variance function.
	res.LfcSE = math.Sqrt(log2MeanVariance(meanA, alpha, len(colsA)) + log2MeanVariance(meanB, alpha, len(colsB)))
	if res.LfcSE == 0 || math.IsNaN(res.LfcSE) {
		res.PValue = 1
		return res
	}

	res.Stat = res.Log2FoldChange / res.LfcSE
	res.PValue = 2 * distuv.UnitNormal.CDF(-math.Abs(res.Stat))

	return res
}

// log2MeanVariance is Var(log2 of a group mean) by the delta method:
// Var(mean) = (mu + alpha*mu^2)/n, divided by (mu*ln2)^2. The mean is
// floored at the pseudocount so zero groups stay finite.
func log2MeanVariance(mu, alpha float64, n int) float64 {
	floored := mu
	if floored < lfcPseudocount {
		floored = lfcPseudocount
	}

	meanVar := (floored + alpha*floored*floored) / float64(n)
	d := floored * math.Ln2

	return meanVar / (d * d)
}

func gather(values []float64, cols []int) []float64 {
	out := make([]float64, len(cols))
	for k, j := range cols {
		out[k] = values[j]
	}

	return out
}
