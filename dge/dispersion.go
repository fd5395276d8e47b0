package dge

import (
	"fmt"
	"math"
	"runtime"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

const (
	// minDispersion floors every dispersion estimate. Genes at the floor are
	// effectively Poisson and are excluded from the trend fit.
	minDispersion = 1e-8

	// dispersionOutlierLogRatio: genes whose gene-wise estimate sits more
	// than this far (natural log) above the trend keep their own estimate
	// instead of being shrunk.
	dispersionOutlierLogRatio = 2.0
)

// TrendFit holds the parametric mean-dispersion trend
// alpha(mu) = Asymptotic + ExtraPoisson/mu.
type TrendFit struct {
	Asymptotic   float64
	ExtraPoisson float64
}

// At evaluates the trend at a mean normalized count.
func (f TrendFit) At(mu float64) float64 {
	if mu <= 0 {
		return minDispersion
	}

	alpha := f.Asymptotic + f.ExtraPoisson/mu
	if alpha < minDispersion {
		return minDispersion
	}

	return alpha
}

// EstimateDispersions fits the dispersion model: per-gene method-of-moments
// estimates from within-tissue variability, a parametric trend of dispersion
// on mean count, and shrinkage of the gene-wise estimates toward the trend.
// EstimateSizeFactors must have run first.
func (ds *DataSet) EstimateDispersions() error {
	normalized, err := ds.NormalizedCounts()
	if err != nil {
		return err
	}

	nGenes := len(ds.Matrix.Genes)
	baseMeans := make([]float64, nGenes)
	geneWise := make([]float64, nGenes)

	groups := make([][]int, 0)
	for _, tissue := range ds.TissueNames() {
		groups = append(groups, ds.TissueColumns(tissue))
	}

	// Each goroutine writes only its own index, so no locking is needed.
	concurrency := 4 * runtime.NumCPU()
	sem := make(chan bool, concurrency)
	for i := 0; i < nGenes; i++ {
		sem <- true
		go func(i int) {
			baseMeans[i] = stat.Mean(normalized[i], nil)
			geneWise[i] = momentDispersion(normalized[i], groups, baseMeans[i])
			<-sem
		}(i)
	}
	for i := 0; i < cap(sem); i++ {
		sem <- true
	}

	trend, err := fitTrend(baseMeans, geneWise)
	if err != nil {
		return err
	}

	fitted := make([]float64, nGenes)
	mapped := make([]float64, nGenes)
	for i := range fitted {
		fitted[i] = trend.At(baseMeans[i])
		mapped[i] = shrinkDispersion(geneWise[i], fitted[i])
	}

	ds.BaseMeans = baseMeans
	ds.GeneDispersions = geneWise
	ds.FittedDispersions = fitted
	ds.MAPDispersions = mapped
	ds.Trend = trend

	return nil
}

// momentDispersion is the method-of-moments estimator
// alpha = (s^2 - mu) / mu^2, with s^2 the within-tissue pooled variance so
// that between-tissue signal does not inflate the estimate.
func momentDispersion(counts []float64, groups [][]int, baseMean float64) float64 {
	if baseMean <= 0 {
		return minDispersion
	}

	var pooled, df float64
	buf := make([]float64, 0, len(counts))
	for _, cols := range groups {
		if len(cols) < 2 {
			continue
		}
		buf = buf[:0]
		for _, j := range cols {
			buf = append(buf, counts[j])
		}
		variance := stat.Variance(buf, nil)
		pooled += float64(len(cols)-1) * variance
		df += float64(len(cols) - 1)
	}

	if df == 0 {
		// No tissue has replicates; fall back to the across-sample variance.
		pooled = stat.Variance(counts, nil)
		df = 1
	} else {
		pooled /= df
	}

	alpha := (pooled - baseMean) / (baseMean * baseMean)
	if alpha < minDispersion {
		return minDispersion
	}

	return alpha
}

// fitTrend fits alpha = a0 + a1/mu by iteratively reweighted least squares
// on the genes with informative gene-wise estimates, discarding gross
// outliers between iterations. With too few usable genes it degrades to a
// flat trend at the median gene-wise dispersion.
func fitTrend(baseMeans, geneWise []float64) (TrendFit, error) {
	var xs, ys []float64
	for i, alpha := range geneWise {
		if alpha <= minDispersion*10 || baseMeans[i] <= 0 {
			continue
		}
		xs = append(xs, 1/baseMeans[i])
		ys = append(ys, alpha)
	}

	if len(xs) < 10 {
		return flatTrend(geneWise)
	}

	fit := TrendFit{Asymptotic: stat.Mean(ys, nil), ExtraPoisson: 0}
	weights := make([]float64, len(xs))

	for iter := 0; iter < 10; iter++ {
		for i, x := range xs {
			expected := fit.Asymptotic + fit.ExtraPoisson*x
			if expected < minDispersion {
				expected = minDispersion
			}
			// Gamma-family weights: variance scales with the square of the
			// expectation. Ratio outliers get zero weight.
			ratio := ys[i] / expected
			if ratio > 15 || ratio < 1e-4 {
				weights[i] = 0
				continue
			}
			weights[i] = 1 / (expected * expected)
		}

		a0, a1 := stat.LinearRegression(xs, ys, weights, false)
		if math.IsNaN(a0) || math.IsNaN(a1) {
			return flatTrend(geneWise)
		}
		if a1 < 0 {
			a1 = 0
		}
		if a0 < minDispersion {
			a0 = minDispersion
		}

		next := TrendFit{Asymptotic: a0, ExtraPoisson: a1}
		if converged(fit, next) {
			return next, nil
		}
		fit = next
	}

	return fit, nil
}

func converged(prev, next TrendFit) bool {
	return relChange(prev.Asymptotic, next.Asymptotic) < 1e-6 &&
		relChange(prev.ExtraPoisson, next.ExtraPoisson) < 1e-6
}

func relChange(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 0
	}

	return math.Abs(a-b) / math.Max(math.Abs(a), math.Abs(b))
}

func flatTrend(geneWise []float64) (TrendFit, error) {
	informative := make([]float64, 0, len(geneWise))
	for _, alpha := range geneWise {
		if alpha > minDispersion*10 {
			informative = append(informative, alpha)
		}
	}
	if len(informative) == 0 {
		// All genes are at the floor; the data is effectively Poisson.
		return TrendFit{Asymptotic: minDispersion}, nil
	}

	median, err := stats.Median(informative)
	if err != nil {
		return TrendFit{}, fmt.Errorf("dge: flat dispersion trend: %s", err)
	}

	return TrendFit{Asymptotic: median}, nil
}

// shrinkDispersion blends the gene-wise estimate with the trend in log
// space. Genes far above the trend are dispersion outliers and keep their
// own estimate.
func shrinkDispersion(geneWise, fitted float64) float64 {
	if geneWise <= minDispersion {
		return fitted
	}

	logRatio := math.Log(geneWise) - math.Log(fitted)
	if logRatio > dispersionOutlierLogRatio {
		return geneWise
	}

	alpha := math.Exp(math.Log(fitted) + 0.5*logRatio)
	if alpha < minDispersion {
		return minDispersion
	}

	return alpha
}
