package dge

import (
	"math"
	"testing"
)

func TestMomentDispersion(t *testing.T) {
	// Two tissues of two samples each, within-group variance 200 around
	// means 100 and 200: pooled s^2 = 200, baseMean = 150, so
	// alpha = (200 - 150) / 150^2.
	counts := []float64{90, 110, 190, 210}
	groups := [][]int{{0, 1}, {2, 3}}

	got := momentDispersion(counts, groups, 150)
	expected := (200.0 - 150.0) / (150.0 * 150.0)
	if math.Abs(got-expected) > 1e-12 {
		t.Errorf("got %g, expected %g", got, expected)
	}
}

func TestMomentDispersionFloor(t *testing.T) {
	// Sub-Poisson data floors at the minimum.
	counts := []float64{100, 100, 100, 100}
	groups := [][]int{{0, 1}, {2, 3}}

	if got := momentDispersion(counts, groups, 100); got != minDispersion {
		t.Errorf("got %g, expected the floor %g", got, minDispersion)
	}
}

func TestTrendFitAt(t *testing.T) {
	trend := TrendFit{Asymptotic: 0.05, ExtraPoisson: 2}

	for _, v := range []struct {
		mu       float64
		expected float64
	}{
		{10, 0.25},
		{100, 0.07},
		{1000, 0.052},
	} {
		if got := trend.At(v.mu); math.Abs(got-v.expected) > 1e-12 {
			t.Errorf("At(%g): got %g, expected %g", v.mu, got, v.expected)
		}
	}

	if got := trend.At(0); got != minDispersion {
		t.Errorf("At(0): got %g, expected the floor", got)
	}
}

func TestFitTrendRecoversParameters(t *testing.T) {
	// Noise-free gene-wise dispersions lying exactly on
	// alpha = 0.05 + 2/mu must be recovered.
	var baseMeans, geneWise []float64
	for mu := 10.0; mu <= 500; mu += 10 {
		baseMeans = append(baseMeans, mu)
		geneWise = append(geneWise, 0.05+2/mu)
	}

	fit, err := fitTrend(baseMeans, geneWise)
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(fit.Asymptotic-0.05) > 1e-6 {
		t.Errorf("asymptotic: got %g, expected 0.05", fit.Asymptotic)
	}
	if math.Abs(fit.ExtraPoisson-2) > 1e-4 {
		t.Errorf("extra-Poisson: got %g, expected 2", fit.ExtraPoisson)
	}
}

func TestFitTrendFallsBackToMedian(t *testing.T) {
	baseMeans := []float64{10, 20, 30}
	geneWise := []float64{0.1, 0.2, 0.3}

	fit, err := fitTrend(baseMeans, geneWise)
	if err != nil {
		t.Fatal(err)
	}
	if fit.ExtraPoisson != 0 {
		t.Errorf("flat trend should have no extra-Poisson term, got %g", fit.ExtraPoisson)
	}
	if math.Abs(fit.Asymptotic-0.2) > 1e-12 {
		t.Errorf("flat trend at %g, expected the median 0.2", fit.Asymptotic)
	}
}

func TestShrinkDispersion(t *testing.T) {
	// Mid-range estimates move toward the trend in log space.
	got := shrinkDispersion(0.04, 0.01)
	expected := math.Exp((math.Log(0.04) + math.Log(0.01)) / 2)
	if math.Abs(got-expected) > 1e-12 {
		t.Errorf("got %g, expected %g", got, expected)
	}

	// Outliers far above the trend keep their own estimate.
	if got := shrinkDispersion(1.0, 0.01); got != 1.0 {
		t.Errorf("outlier: got %g, expected 1.0", got)
	}

	// Floored gene-wise estimates take the trend value.
	if got := shrinkDispersion(minDispersion, 0.05); got != 0.05 {
		t.Errorf("floored: got %g, expected 0.05", got)
	}
}

func TestEstimateDispersions(t *testing.T) {
	ds := datasetFromTSV(t, `Geneid	b1	b2	b3	h1	h2	h3
ENSG1	90	110	100	190	210	200
ENSG2	45	55	50	95	105	100
ENSG3	900	1100	1000	1900	2100	2000
ENSG4	9	11	10	19	21	20
`, []string{"brain", "brain", "brain", "heart", "heart", "heart"})

	if err := ds.EstimateDispersions(); err == nil {
		t.Fatal("expected an error before size factors are estimated")
	}

	if err := ds.EstimateSizeFactors(); err != nil {
		t.Fatal(err)
	}
	if err := ds.EstimateDispersions(); err != nil {
		t.Fatal(err)
	}

	if len(ds.MAPDispersions) != 4 || len(ds.BaseMeans) != 4 {
		t.Fatalf("unexpected state sizes: %d dispersions, %d base means",
			len(ds.MAPDispersions), len(ds.BaseMeans))
	}
	for i, alpha := range ds.MAPDispersions {
		if alpha < minDispersion || math.IsNaN(alpha) {
			t.Errorf("gene %d: bad dispersion %g", i, alpha)
		}
	}
	for i, mu := range ds.BaseMeans {
		if mu <= 0 {
			t.Errorf("gene %d: bad base mean %g", i, mu)
		}
	}
}
