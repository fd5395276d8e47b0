// dge runs the full differential expression pipeline over per-tissue bulk
// RNA-seq count matrices: gene-level QC, merge, median-of-ratios
// normalization, dispersion fitting, pairwise Wald contrasts, symbol
// annotation, and the per-tissue up/down set intersection. Outputs are
// tab-delimited tables and PNG diagnostics in the chosen directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	rnaseq "github.com/DavideScarpetta/BULK-RNA-seq"
	"github.com/DavideScarpetta/BULK-RNA-seq/annot"
	_ "github.com/DavideScarpetta/BULK-RNA-seq/buildinfo/print"
	"github.com/DavideScarpetta/BULK-RNA-seq/countdata"
	"github.com/DavideScarpetta/BULK-RNA-seq/dge"
	"github.com/DavideScarpetta/BULK-RNA-seq/tissueset"
)

type tissueFile struct {
	Tissue string
	Path   string
}

func main() {
	start := time.Now()
	log.Println("dge start")
	defer func() {
		log.Printf("dge end. Took %.2f seconds\n", time.Since(start).Seconds())
	}()

	var countsSpec, annotation, sampleSheet, outDir string
	var minLength, topGenes int
	var minCountSum, maxPadj, minAbsLFC float64
	var keepMito bool

	flag.StringVar(&countsSpec, "counts", "", "Comma-delimited tissue=path pairs, e.g. brain=brain.tsv.gz,heart=heart.tsv.gz,kidney=kidney.tsv.gz. Paths may be local or gs:// and may be compressed.")
	flag.StringVar(&annotation, "annotation", "", "Path to the BioMart-style annotation export (gene stable ID, gene name, chromosome, transcript length).")
	flag.StringVar(&sampleSheet, "samples", "", "(Optional) Tab-delimited sample sheet with 'sample' and 'tissue' columns. If omitted, every column of a tissue's matrix gets that tissue's label.")
	flag.StringVar(&outDir, "out", "dge-output", "Output directory. Created if absent.")
	flag.IntVar(&minLength, "min-length", annot.DefaultQC.MinTranscriptLength, "Minimum transcript length in bp.")
	flag.BoolVar(&keepMito, "keep-mito", false, "Keep mitochondrial genes instead of excluding them.")
	flag.Float64Var(&minCountSum, "min-count-sum", 5, "Minimum summed count across all samples for a gene to be tested.")
	flag.Float64Var(&maxPadj, "max-padj", 0.01, "Adjusted p-value cutoff for calling a gene.")
	flag.Float64Var(&minAbsLFC, "min-lfc", 3, "Minimum absolute log2 fold change for calling a gene.")
	flag.IntVar(&topGenes, "top-genes", 0, "Number of most-variable genes used for PCA (0 for the default).")
	flag.Parse()

	if countsSpec == "" || annotation == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	inputs, err := parseCountsSpec(countsSpec)
	if err != nil {
		log.Fatalln(err)
	}
	if len(inputs) < 2 {
		log.Fatalf("need at least 2 tissues to contrast, have %d\n", len(inputs))
	}

	client, err := storageClientFor(inputs, annotation, sampleSheet)
	if err != nil {
		log.Fatalln(err)
	}

	if err := run(inputs, annotation, sampleSheet, outDir, client, annot.QC{
		MinTranscriptLength: minLength,
		DropMitochondrial:   !keepMito,
	}, minCountSum, tissueset.Thresholds{MaxPAdj: maxPadj, MinAbsLog2FC: minAbsLFC}, topGenes); err != nil {
		log.Fatalln(err)
	}
}

func parseCountsSpec(spec string) ([]tissueFile, error) {
	var inputs []tissueFile
	seen := make(map[string]bool)
	for _, part := range strings.Split(spec, ",") {
		pieces := strings.SplitN(part, "=", 2)
		if len(pieces) != 2 || pieces[0] == "" || pieces[1] == "" {
			return nil, fmt.Errorf("bad -counts entry %q, expected tissue=path", part)
		}
		if seen[pieces[0]] {
			return nil, fmt.Errorf("tissue %s given more than once", pieces[0])
		}
		seen[pieces[0]] = true
		inputs = append(inputs, tissueFile{Tissue: pieces[0], Path: pieces[1]})
	}

	return inputs, nil
}

// storageClientFor creates a Google Storage client only when some input
// actually needs one.
func storageClientFor(inputs []tissueFile, paths ...string) (*storage.Client, error) {
	needed := false
	for _, in := range inputs {
		if strings.HasPrefix(in.Path, "gs://") {
			needed = true
		}
	}
	for _, p := range paths {
		if strings.HasPrefix(p, "gs://") {
			needed = true
		}
	}
	if !needed {
		return nil, nil
	}

	return storage.NewClient(context.Background())
}

func run(inputs []tissueFile, annotation, sampleSheet, outDir string, client *storage.Client, qc annot.QC, minCountSum float64, th tissueset.Thresholds, topGenes int) error {
	if err := os.MkdirAll(rnaseq.ExpandHome(outDir), 0o755); err != nil {
		return err
	}

	table, err := loadAnnotation(annotation, client)
	if err != nil {
		return err
	}
	log.Printf("Loaded annotation for %d genes\n", len(table))

	merged, tissues, err := loadCounts(inputs, sampleSheet, client, table, qc)
	if err != nil {
		return err
	}

	filtered, dropped := merged.CountFilter(minCountSum)
	log.Printf("Count filter (sum >= %g) dropped %d genes; %d genes remain over %d samples\n",
		minCountSum, dropped, len(filtered.Genes), len(filtered.Samples))
	if len(filtered.Genes) == 0 {
		return fmt.Errorf("no genes left after filtering")
	}

	ds, err := dge.New(filtered, tissues)
	if err != nil {
		return err
	}

	if err := ds.EstimateSizeFactors(); err != nil {
		return err
	}
	for j, sample := range filtered.Samples {
		log.Printf("Size factor %s: %.4f\n", sample, ds.SizeFactors[j])
	}

	if err := ds.EstimateDispersions(); err != nil {
		return err
	}
	log.Printf("Dispersion trend: alpha(mu) = %.4g + %.4g/mu\n", ds.Trend.Asymptotic, ds.Trend.ExtraPoisson)

	results := make(map[dge.Contrast][]dge.Result)
	for _, contrast := range dge.PairwiseContrasts(ds.TissueNames()) {
		res, err := ds.WaldTest(contrast)
		if err != nil {
			return err
		}
		dge.Annotate(res, table.Symbol)
		results[contrast] = res

		called := 0
		for _, r := range res {
			if r.Significant(th.MaxPAdj, th.MinAbsLog2FC) {
				called++
			}
		}
		log.Printf("Contrast %s: %d genes pass padj < %g and |log2FC| > %g\n",
			contrast.Name(), called, th.MaxPAdj, th.MinAbsLog2FC)
	}

	partition := tissueset.Partition(results, th)
	for _, tissue := range ds.TissueNames() {
		sets := partition[tissue]
		log.Printf("Tissue %s: %d up, %d down\n", tissue, len(sets.Up), len(sets.Down))
	}

	return writeOutputs(outDir, ds, results, partition, table, topGenes)
}

func loadAnnotation(path string, client *storage.Client) (annot.Table, error) {
	r, err := rnaseq.Open(path, client)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return annot.ReadTable(r)
}

// loadCounts reads every tissue's matrix, applies the gene-level QC, merges
// them, and resolves per-sample tissue labels.
func loadCounts(inputs []tissueFile, sampleSheet string, client *storage.Client, table annot.Table, qc annot.QC) (*countdata.Matrix, []string, error) {
	var matrices []*countdata.Matrix
	var sheet []countdata.Sample

	for _, in := range inputs {
		r, err := rnaseq.Open(in.Path, client)
		if err != nil {
			return nil, nil, err
		}
		m, err := countdata.ReadMatrix(r)
		r.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %s", in.Path, err)
		}
		if err := m.StripGeneVersions(); err != nil {
			return nil, nil, fmt.Errorf("%s: %s", in.Path, err)
		}

		kept, droppedQC := m.FilterGenes(func(id string, _ []float64) bool {
			return table.Keep(qc, id)
		})
		log.Printf("%s (%s): %d samples, %d genes; QC dropped %d\n",
			in.Tissue, in.Path, len(kept.Samples), len(kept.Genes), droppedQC)

		matrices = append(matrices, kept)
		sheet = append(sheet, countdata.SheetFor(kept, in.Tissue)...)
	}

	merged, droppedMerge, err := countdata.Merge(matrices...)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Merged %d matrices; %d genes not shared by all were dropped\n", len(matrices), droppedMerge)

	if sampleSheet != "" {
		r, err := rnaseq.Open(sampleSheet, client)
		if err != nil {
			return nil, nil, err
		}
		sheet, err = countdata.ReadSampleSheet(r)
		r.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %s", sampleSheet, err)
		}

		// The sheet also selects which samples survive.
		names := make([]string, len(sheet))
		for i, s := range sheet {
			names[i] = s.Name
		}
		if merged, err = merged.SelectSamples(names); err != nil {
			return nil, nil, err
		}
	}

	tissues, err := countdata.Tissues(merged, sheet)
	if err != nil {
		return nil, nil, err
	}

	return merged, tissues, nil
}
