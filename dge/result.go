package dge

import (
	"encoding/csv"
	"io"
	"math"
	"sort"

	"github.com/gocarina/gocsv"
)

// Result is one gene's test outcome for a single contrast.
type Result struct {
	Gene           string  `csv:"gene"`
	Symbol         string  `csv:"symbol"`
	BaseMean       float64 `csv:"baseMean"`
	Log2FoldChange float64 `csv:"log2FoldChange"`
	LfcSE          float64 `csv:"lfcSE"`
	Stat           float64 `csv:"stat"`
	PValue         float64 `csv:"pvalue"`
	PAdj           float64 `csv:"padj"`
}

// Significant applies the pipeline's calling thresholds, defaults
// padj < 0.01 and |log2FC| > 3.
func (r Result) Significant(maxPadj, minAbsLog2FC float64) bool {
	if math.IsNaN(r.PAdj) || math.IsNaN(r.Log2FoldChange) {
		return false
	}

	return r.PAdj < maxPadj && math.Abs(r.Log2FoldChange) > minAbsLog2FC
}

// AdjustBH fills PAdj with Benjamini-Hochberg adjusted p-values, enforcing
// monotonicity from the largest p-value down.
func AdjustBH(results []Result) {
	n := len(results)
	if n == 0 {
		return
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool {
		return results[idx[i]].PValue < results[idx[j]].PValue
	})

	minP := 1.0
	for i := n - 1; i >= 0; i-- {
		rank := i + 1
		adjusted := results[idx[i]].PValue * float64(n) / float64(rank)
		if adjusted > 1 {
			adjusted = 1
		}
		if adjusted < minP {
			minP = adjusted
		} else {
			adjusted = minP
		}
		results[idx[i]].PAdj = adjusted
	}
}

// Annotate fills the Symbol column through the supplied mapping.
func Annotate(results []Result, symbolFor func(string) string) {
	if symbolFor == nil {
		return
	}
	for i := range results {
		results[i].Symbol = symbolFor(results[i].Gene)
	}
}

// SortByPAdj returns a copy ordered by adjusted p-value, ties broken by
// absolute fold change (largest first).
func SortByPAdj(results []Result) []Result {
	out := append([]Result(nil), results...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].PAdj != out[j].PAdj {
			return out[i].PAdj < out[j].PAdj
		}
		return math.Abs(out[i].Log2FoldChange) > math.Abs(out[j].Log2FoldChange)
	})

	return out
}

// WriteResults writes a tab-delimited result table.
func WriteResults(w io.Writer, results []Result) error {
	gocsv.SetCSVWriter(func(out io.Writer) *gocsv.SafeCSVWriter {
		cw := csv.NewWriter(out)
		cw.Comma = '\t'
		return gocsv.NewSafeCSVWriter(cw)
	})

	return gocsv.Marshal(results, w)
}
