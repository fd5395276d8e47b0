package tissueset

import (
	"fmt"

	fet "github.com/glycerine/golang-fisher-exact"
)

// OverlapResult summarizes the overlap of two gene sets within a tested
// universe.
type OverlapResult struct {
	SizeA   int
	SizeB   int
	Overlap int

	// P is the two-sided Fisher's exact test p-value for the 2x2 table of
	// set membership.
	P float64
}

// OverlapTest runs Fisher's exact test on the overlap between two gene
// sets. universe is the number of genes tested overall; it must cover the
// union of the two sets.
func OverlapTest(a, b []string, universe int) (OverlapResult, error) {
	inA := make(map[string]bool, len(a))
	for _, g := range a {
		inA[g] = true
	}

	var overlap int
	union := len(inA)
	for _, g := range b {
		if inA[g] {
			overlap++
		} else {
			union++
		}
	}

	if universe < union {
		return OverlapResult{}, fmt.Errorf("tissueset: universe %d smaller than the union %d", universe, union)
	}

	n11 := overlap
	n12 := len(a) - overlap
	n21 := len(b) - overlap
	n22 := universe - union

	_, _, _, twop := fet.FisherExactTest(n11, n12, n21, n22)

	return OverlapResult{SizeA: len(a), SizeB: len(b), Overlap: overlap, P: twop}, nil
}
