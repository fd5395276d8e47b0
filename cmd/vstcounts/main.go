// vstcounts estimates size factors and the dispersion trend for a merged
// count matrix and emits the variance-stabilized values to STDOUT, for
// clustering and visualization outside the main pipeline.
package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	rnaseq "github.com/DavideScarpetta/BULK-RNA-seq"
	_ "github.com/DavideScarpetta/BULK-RNA-seq/buildinfo/print"
	"github.com/DavideScarpetta/BULK-RNA-seq/countdata"
	"github.com/DavideScarpetta/BULK-RNA-seq/dge"
)

func main() {
	start := time.Now()
	log.Println("vstcounts start")
	defer func() {
		log.Printf("vstcounts end. Took %.2f seconds\n", time.Since(start).Seconds())
	}()

	var counts, sampleSheet string
	flag.StringVar(&counts, "counts", "", "Path to a merged count matrix, local or gs://, optionally compressed.")
	flag.StringVar(&sampleSheet, "samples", "", "Tab-delimited sample sheet with 'sample' and 'tissue' columns. Tissue labels group replicates for the dispersion fit.")
	flag.Parse()

	if counts == "" || sampleSheet == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(counts, sampleSheet); err != nil {
		log.Fatalln(err)
	}
}

func run(counts, sampleSheet string) error {
	var client *storage.Client
	if strings.HasPrefix(counts, "gs://") || strings.HasPrefix(sampleSheet, "gs://") {
		var err error
		if client, err = storage.NewClient(context.Background()); err != nil {
			return err
		}
	}

	r, err := rnaseq.Open(counts, client)
	if err != nil {
		return err
	}
	m, err := countdata.ReadMatrix(r)
	r.Close()
	if err != nil {
		return err
	}

	sr, err := rnaseq.Open(sampleSheet, client)
	if err != nil {
		return err
	}
	sheet, err := countdata.ReadSampleSheet(sr)
	sr.Close()
	if err != nil {
		return err
	}

	tissues, err := countdata.Tissues(m, sheet)
	if err != nil {
		return err
	}

	ds, err := dge.New(m, tissues)
	if err != nil {
		return err
	}
	if err := ds.EstimateSizeFactors(); err != nil {
		return err
	}
	if err := ds.EstimateDispersions(); err != nil {
		return err
	}
	log.Printf("Dispersion trend: alpha(mu) = %.4g + %.4g/mu\n", ds.Trend.Asymptotic, ds.Trend.ExtraPoisson)

	vst, err := ds.VST()
	if err != nil {
		return err
	}

	w := bufio.NewWriterSize(os.Stdout, 4096*8)
	defer w.Flush()

	return vst.WriteTSV(w)
}
