package annot

import (
	"strings"
	"testing"
)

const biomartTSV = `Gene stable ID	Gene name	Chromosome/scaffold name	Transcript length (including UTRs and CDS)
ENSG00000000003	TSPAN6	X	2968
ENSG00000000003	TSPAN6	X	820
ENSG00000198899	MT-ATP6	MT	681
ENSG00000284662	OR4F16	1	995
ENSG00000285000		14	150
`

func TestReadTable(t *testing.T) {
	table, err := ReadTable(strings.NewReader(biomartTSV))
	if err != nil {
		t.Fatal(err)
	}

	if got, expected := len(table), 4; got != expected {
		t.Fatalf("got %d genes, expected %d", got, expected)
	}

	// Longest transcript wins.
	gene, ok := table.Lookup("ENSG00000000003")
	if !ok {
		t.Fatal("ENSG00000000003 not found")
	}
	if gene.TranscriptLength != 2968 {
		t.Errorf("got transcript length %d, expected 2968", gene.TranscriptLength)
	}
}

func TestSymbol(t *testing.T) {
	table, err := ReadTable(strings.NewReader(biomartTSV))
	if err != nil {
		t.Fatal(err)
	}

	for id, expected := range map[string]string{
		"ENSG00000000003":    "TSPAN6",
		"ENSG00000000003.14": "TSPAN6",          // version tolerated
		"ENSG00000285000":    "ENSG00000285000", // blank symbol falls back to ID
		"ENSG00000999999":    "ENSG00000999999", // unknown falls back to ID
	} {
		if got := table.Symbol(id); got != expected {
			t.Errorf("Symbol(%s): got %s, expected %s", id, got, expected)
		}
	}
}

func TestKeep(t *testing.T) {
	table, err := ReadTable(strings.NewReader(biomartTSV))
	if err != nil {
		t.Fatal(err)
	}

	for _, v := range []struct {
		id       string
		expected bool
	}{
		{"ENSG00000000003", true},
		{"ENSG00000198899", false}, // mitochondrial
		{"ENSG00000285000", false}, // 150 bp < 200 bp
		{"ENSG00000284662", true},
		{"ENSG00000999999", false}, // unannotated
	} {
		if got := table.Keep(DefaultQC, v.id); got != v.expected {
			t.Errorf("Keep(%s): got %v, expected %v", v.id, got, v.expected)
		}
	}

	relaxed := QC{MinTranscriptLength: 0, DropMitochondrial: false}
	if !table.Keep(relaxed, "ENSG00000198899") {
		t.Error("relaxed QC should keep the mitochondrial gene")
	}
}

func TestIsMitochondrial(t *testing.T) {
	for chromosome, expected := range map[string]bool{
		"MT": true, "chrM": true, "M": true, "chrMT": true,
		"1": false, "X": false, "chr1": false,
	} {
		if got := isMitochondrial(chromosome); got != expected {
			t.Errorf("isMitochondrial(%s): got %v, expected %v", chromosome, got, expected)
		}
	}
}
