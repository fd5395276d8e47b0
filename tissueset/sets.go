// Package tissueset partitions differential expression calls into
// per-tissue up- and down-regulated gene sets by intersecting a tissue's
// pairwise contrasts.
package tissueset

import (
	"sort"

	"github.com/DavideScarpetta/BULK-RNA-seq/dge"
)

// Thresholds are the significance cutoffs used when calling genes.
type Thresholds struct {
	MaxPAdj      float64
	MinAbsLog2FC float64
}

// DefaultThresholds match the analysis defaults.
var DefaultThresholds = Thresholds{MaxPAdj: 0.01, MinAbsLog2FC: 3}

// UpDown holds one tissue's regulated gene sets, sorted by gene ID.
type UpDown struct {
	Up   []string
	Down []string
}

// Partition intersects each tissue's contrasts: a gene is up-regulated in a
// tissue only if it is significantly elevated in that tissue against every
// other tissue it was compared to, and symmetrically for down. Contrasts
// where the tissue is the denominator contribute with their sign flipped. A
// gene with conflicting directions across a tissue's contrasts lands in
// neither set.
func Partition(results map[dge.Contrast][]dge.Result, th Thresholds) map[string]UpDown {
	type vote struct {
		contrasts int
		up        map[string]int
		down      map[string]int
	}

	votes := make(map[string]*vote)
	voteFor := func(tissue string) *vote {
		v, ok := votes[tissue]
		if !ok {
			v = &vote{up: make(map[string]int), down: make(map[string]int)}
			votes[tissue] = v
		}
		return v
	}

	for contrast, res := range results {
		num := voteFor(contrast.Numerator)
		den := voteFor(contrast.Denominator)
		num.contrasts++
		den.contrasts++

		for _, r := range res {
			if !r.Significant(th.MaxPAdj, th.MinAbsLog2FC) {
				continue
			}
			if r.Log2FoldChange > 0 {
				num.up[r.Gene]++
				den.down[r.Gene]++
			} else {
				num.down[r.Gene]++
				den.up[r.Gene]++
			}
		}
	}

	out := make(map[string]UpDown, len(votes))
	for tissue, v := range votes {
		out[tissue] = UpDown{
			Up:   unanimous(v.up, v.contrasts),
			Down: unanimous(v.down, v.contrasts),
		}
	}

	return out
}

// unanimous keeps genes called in every one of the tissue's contrasts.
func unanimous(calls map[string]int, contrasts int) []string {
	var genes []string
	for gene, n := range calls {
		if n == contrasts {
			genes = append(genes, gene)
		}
	}
	sort.Strings(genes)

	return genes
}

// Symbols maps gene IDs through symbolFor and returns a sorted,
// deduplicated list.
func Symbols(genes []string, symbolFor func(string) string) []string {
	seen := make(map[string]bool, len(genes))
	var symbols []string
	for _, id := range genes {
		s := symbolFor(id)
		if seen[s] {
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	return symbols
}
