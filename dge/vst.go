package dge

import (
	"fmt"
	"math"

	"github.com/DavideScarpetta/BULK-RNA-seq/countdata"
)

// VST applies the closed-form variance-stabilizing transform implied by the
// parametric dispersion trend to the size-factor-normalized counts:
//
//	vst(q) = log2( (1 + a1 + 2*a0*q + 2*sqrt(a0*q*(1 + a1 + a0*q))) / (4*a0) )
//
// with a0 the asymptotic dispersion and a1 the extra-Poisson term. On the
// transformed scale the per-gene variance is roughly flat in the mean, which
// is what PCA and distance-based diagnostics want. A degenerate fit falls
// back to log2(q+1).
func (ds *DataSet) VST() (*countdata.Matrix, error) {
	if ds.MAPDispersions == nil {
		return nil, fmt.Errorf("dge: dispersions have not been estimated")
	}

	normalized, err := ds.NormalizedCounts()
	if err != nil {
		return nil, err
	}

	transform := vstFunc(ds.Trend)

	values := make([][]float64, len(normalized))
	for i, row := range normalized {
		out := make([]float64, len(row))
		for j, q := range row {
			out[j] = transform(q)
		}
		values[i] = out
	}

	return countdata.New(
		append([]string(nil), ds.Matrix.Genes...),
		append([]string(nil), ds.Matrix.Samples...),
		values,
	)
}

func vstFunc(trend TrendFit) func(float64) float64 {
	a0 := trend.Asymptotic
	a1 := trend.ExtraPoisson

	if a0 <= minDispersion {
		return func(q float64) float64 {
			return math.Log2(q + 1)
		}
	}

	return func(q float64) float64 {
		if q < 0 {
			q = 0
		}
		inner := 1 + a1 + 2*a0*q + 2*math.Sqrt(a0*q*(1+a1+a0*q))
		return math.Log2(inner / (4 * a0))
	}
}
