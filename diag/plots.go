package diag

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/DavideScarpetta/BULK-RNA-seq/countdata"
	"github.com/DavideScarpetta/BULK-RNA-seq/dge"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/gonum/stat"
)

// PCAPlot renders a PC1/PC2 scatter with one series per tissue.
func PCAPlot(w io.Writer, res *PCAResult, tissues []string) error {
	if len(tissues) != len(res.Samples) {
		return fmt.Errorf("diag: %d tissue labels for %d samples", len(tissues), len(res.Samples))
	}
	if len(res.Scores) == 0 || len(res.Scores[0]) < 2 {
		return fmt.Errorf("diag: PCA plot needs at least 2 components")
	}

	byTissue := make(map[string][]int)
	var order []string
	for j, tissue := range tissues {
		if _, seen := byTissue[tissue]; !seen {
			order = append(order, tissue)
		}
		byTissue[tissue] = append(byTissue[tissue], j)
	}

	var series []chart.Series
	for i, tissue := range order {
		cols := byTissue[tissue]
		xs := make([]float64, len(cols))
		ys := make([]float64, len(cols))
		for k, j := range cols {
			xs[k] = res.Scores[j][0]
			ys[k] = res.Scores[j][1]
		}
		series = append(series, chart.ContinuousSeries{
			Name: tissue,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    5,
				DotColor:    chart.GetDefaultColor(i),
			},
			XValues: xs,
			YValues: ys,
		})
	}

	graph := chart.Chart{
		Title:  "PCA of variance-stabilized counts",
		XAxis:  chart.XAxis{Name: axisLabel("PC1", res.VarExplained, 0)},
		YAxis:  chart.YAxis{Name: axisLabel("PC2", res.VarExplained, 1)},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

func axisLabel(name string, explained []float64, i int) string {
	if i < len(explained) {
		return fmt.Sprintf("%s (%.1f%% variance)", name, 100*explained[i])
	}

	return name
}

// MeanDispersionPlot renders gene-wise, fitted, and final dispersions
// against mean normalized count on log10 scales.
func MeanDispersionPlot(w io.Writer, ds *dge.DataSet) error {
	if ds.MAPDispersions == nil {
		return fmt.Errorf("diag: dispersions have not been estimated")
	}

	geneWise := logScatter(ds.BaseMeans, ds.GeneDispersions)
	fitted := logScatter(ds.BaseMeans, ds.FittedDispersions)
	final := logScatter(ds.BaseMeans, ds.MAPDispersions)

	graph := chart.Chart{
		Title: "Dispersion estimates",
		XAxis: chart.XAxis{Name: "log10 mean of normalized counts"},
		YAxis: chart.YAxis{Name: "log10 dispersion"},
		Series: []chart.Series{
			dotSeries("gene-wise", geneWise, drawing.ColorBlack, 2),
			dotSeries("fitted", fitted, chart.ColorRed, 2),
			dotSeries("final", final, chart.ColorBlue, 2),
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

// MeanSDPlot renders per-gene standard deviation of the transformed values
// against the rank of the gene's mean. A flat band is what a working
// variance-stabilizing transform looks like.
func MeanSDPlot(w io.Writer, vst *countdata.Matrix) error {
	type geneStat struct {
		mean float64
		sd   float64
	}

	gs := make([]geneStat, len(vst.Genes))
	for i, row := range vst.Counts {
		mean, variance := stat.MeanVariance(row, nil)
		gs[i] = geneStat{mean: mean, sd: math.Sqrt(variance)}
	}
	sort.Slice(gs, func(i, j int) bool { return gs[i].mean < gs[j].mean })

	xs := make([]float64, len(gs))
	ys := make([]float64, len(gs))
	for i, g := range gs {
		xs[i] = float64(i + 1)
		ys[i] = g.sd
	}

	graph := chart.Chart{
		Title: "Mean-SD of transformed counts",
		XAxis: chart.XAxis{Name: "rank(mean)"},
		YAxis: chart.YAxis{Name: "standard deviation"},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name: "genes",
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotWidth:    2,
					DotColor:    drawing.ColorBlack,
				},
				XValues: xs,
				YValues: ys,
			},
		},
	}

	return graph.Render(chart.PNG, w)
}

type scatter struct {
	xs []float64
	ys []float64
}

// logScatter drops non-positive pairs, which have no place on a log-log
// dispersion plot.
func logScatter(means, alphas []float64) scatter {
	var s scatter
	for i := range means {
		if means[i] <= 0 || alphas[i] <= 0 {
			continue
		}
		s.xs = append(s.xs, math.Log10(means[i]))
		s.ys = append(s.ys, math.Log10(alphas[i]))
	}

	return s
}

func dotSeries(name string, s scatter, color drawing.Color, width float64) chart.Series {
	return chart.ContinuousSeries{
		Name: name,
		Style: chart.Style{
			StrokeWidth: chart.Disabled,
			DotWidth:    width,
			DotColor:    color,
		},
		XValues: s.xs,
		YValues: s.ys,
	}
}
