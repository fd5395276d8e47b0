package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	rnaseq "github.com/DavideScarpetta/BULK-RNA-seq"
	"github.com/DavideScarpetta/BULK-RNA-seq/annot"
	"github.com/DavideScarpetta/BULK-RNA-seq/countdata"
	"github.com/DavideScarpetta/BULK-RNA-seq/dge"
	"github.com/DavideScarpetta/BULK-RNA-seq/diag"
	"github.com/DavideScarpetta/BULK-RNA-seq/tissueset"
)

func writeOutputs(outDir string, ds *dge.DataSet, results map[dge.Contrast][]dge.Result, partition map[string]tissueset.UpDown, table annot.Table, topGenes int) error {
	outDir = rnaseq.ExpandHome(outDir)

	if err := writeFile(outDir, "counts.merged.tsv", ds.Matrix.WriteTSV); err != nil {
		return err
	}

	normalized, err := ds.NormalizedCounts()
	if err != nil {
		return err
	}
	normMatrix, err := countdata.New(ds.Matrix.Genes, ds.Matrix.Samples, normalized)
	if err != nil {
		return err
	}
	if err := writeFile(outDir, "counts.normalized.tsv", normMatrix.WriteTSV); err != nil {
		return err
	}

	vst, err := ds.VST()
	if err != nil {
		return err
	}
	if err := writeFile(outDir, "vst.tsv", vst.WriteTSV); err != nil {
		return err
	}

	for contrast, res := range results {
		sorted := dge.SortByPAdj(res)
		name := fmt.Sprintf("results.%s.tsv", contrast.Name())
		if err := writeFile(outDir, name, func(w io.Writer) error {
			return dge.WriteResults(w, sorted)
		}); err != nil {
			return err
		}
	}

	for tissue, sets := range partition {
		if err := writeSymbolList(outDir, tissue+".up.txt", sets.Up, table); err != nil {
			return err
		}
		if err := writeSymbolList(outDir, tissue+".down.txt", sets.Down, table); err != nil {
			return err
		}
	}

	if err := writeFile(outDir, "overlap.tsv", func(w io.Writer) error {
		return writeOverlaps(w, ds.TissueNames(), partition, len(ds.Matrix.Genes))
	}); err != nil {
		return err
	}

	return writePlots(outDir, ds, vst, topGenes)
}

func writePlots(outDir string, ds *dge.DataSet, vst *countdata.Matrix, topGenes int) error {
	pca, err := diag.PCA(vst, topGenes, 2)
	if err != nil {
		return err
	}
	log.Printf("PCA: PC1 %.1f%%, PC2 %.1f%% of variance\n",
		100*pca.VarExplained[0], 100*pca.VarExplained[1])

	if err := writeFile(outDir, "pca.png", func(w io.Writer) error {
		return diag.PCAPlot(w, pca, ds.Tissues)
	}); err != nil {
		return err
	}

	if err := writeFile(outDir, "mean_dispersion.png", func(w io.Writer) error {
		return diag.MeanDispersionPlot(w, ds)
	}); err != nil {
		return err
	}

	return writeFile(outDir, "mean_sd.png", func(w io.Writer) error {
		return diag.MeanSDPlot(w, vst)
	})
}

// writeOverlaps tests every pair of same-direction gene sets across tissues
// with Fisher's exact test over the tested gene universe.
func writeOverlaps(w io.Writer, tissues []string, partition map[string]tissueset.UpDown, universe int) error {
	if _, err := fmt.Fprintln(w, "tissueA\ttissueB\tdirection\tsizeA\tsizeB\toverlap\tp"); err != nil {
		return err
	}

	for i, a := range tissues {
		for _, b := range tissues[i+1:] {
			for _, direction := range []string{"up", "down"} {
				setA, setB := partition[a].Up, partition[b].Up
				if direction == "down" {
					setA, setB = partition[a].Down, partition[b].Down
				}

				res, err := tissueset.OverlapTest(setA, setB, universe)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%g\n",
					a, b, direction, res.SizeA, res.SizeB, res.Overlap, res.P); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func writeSymbolList(outDir, name string, genes []string, table annot.Table) error {
	return writeFile(outDir, name, func(w io.Writer) error {
		for _, symbol := range tissueset.Symbols(genes, table.Symbol) {
			if _, err := fmt.Fprintln(w, symbol); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeFile(outDir, name string, fill func(io.Writer) error) error {
	path := filepath.Join(outDir, name)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	log.Println("Wrote", path)

	return nil
}
