// mergecounts applies gene-level QC to per-tissue count matrices and merges
// them on their shared genes, emitting one tab-delimited matrix to STDOUT.
// It is the loading stage of the dge pipeline, split out so the merged
// matrix can be inspected or fed to other tools.
package main

import (
	"bufio"
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
)

func main() {
	start := time.Now()
	log.Println("mergecounts start")
	defer func() {
		log.Printf("mergecounts end. Took %.2f seconds\n", time.Since(start).Seconds())
	}()

	var countsSpec, annotation string
	var minLength int
	var minCountSum float64
	var keepMito bool

	flag.StringVar(&countsSpec, "counts", "", "Comma-delimited tissue=path pairs. Paths may be local or gs:// and may be compressed.")
	flag.StringVar(&annotation, "annotation", "", "Path to the BioMart-style annotation export. Optional; without it no gene-level QC is applied.")
	flag.IntVar(&minLength, "min-length", annot.DefaultQC.MinTranscriptLength, "Minimum transcript length in bp.")
	flag.BoolVar(&keepMito, "keep-mito", false, "Keep mitochondrial genes instead of excluding them.")
	flag.Float64Var(&minCountSum, "min-count-sum", 5, "Minimum summed count across all samples. 0 disables the filter.")
	flag.Parse()

	if countsSpec == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(countsSpec, annotation, annot.QC{
		MinTranscriptLength: minLength,
		DropMitochondrial:   !keepMito,
	}, minCountSum); err != nil {
		log.Fatalln(err)
	}
}

func run(countsSpec, annotation string, qc annot.QC, minCountSum float64) error {
	var client *storage.Client
	if strings.Contains(countsSpec, "gs://") || strings.HasPrefix(annotation, "gs://") {
		var err error
		if client, err = storage.NewClient(context.Background()); err != nil {
			return err
		}
	}

	var table annot.Table
	if annotation != "" {
		r, err := rnaseq.Open(annotation, client)
		if err != nil {
			return err
		}
		if table, err = annot.ReadTable(r); err != nil {
			r.Close()
			return err
		}
		r.Close()
		log.Printf("Loaded annotation for %d genes\n", len(table))
	}

	var matrices []*countdata.Matrix
	for _, part := range strings.Split(countsSpec, ",") {
		pieces := strings.SplitN(part, "=", 2)
		if len(pieces) != 2 || pieces[0] == "" || pieces[1] == "" {
			return fmt.Errorf("bad -counts entry %q, expected tissue=path", part)
		}
		tissue, path := pieces[0], pieces[1]

		r, err := rnaseq.Open(path, client)
		if err != nil {
			return err
		}
		m, err := countdata.ReadMatrix(r)
		r.Close()
		if err != nil {
			return fmt.Errorf("%s: %s", path, err)
		}
		if err := m.StripGeneVersions(); err != nil {
			return fmt.Errorf("%s: %s", path, err)
		}

		if table != nil {
			var dropped int
			m, dropped = m.FilterGenes(func(id string, _ []float64) bool {
				return table.Keep(qc, id)
			})
			log.Printf("%s (%s): QC dropped %d genes, %d remain\n", tissue, path, dropped, len(m.Genes))
		}

		matrices = append(matrices, m)
	}

	merged, dropped, err := countdata.Merge(matrices...)
	if err != nil {
		return err
	}
	log.Printf("Merged %d matrices; %d genes not shared by all were dropped\n", len(matrices), dropped)

	if minCountSum > 0 {
		merged, dropped = merged.CountFilter(minCountSum)
		log.Printf("Count filter (sum >= %g) dropped %d genes; %d remain\n", minCountSum, dropped, len(merged.Genes))
	}

	w := bufio.NewWriterSize(os.Stdout, 4096*8)
	defer w.Flush()

	return merged.WriteTSV(w)
}
