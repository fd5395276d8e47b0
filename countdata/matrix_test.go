package countdata

import (
	"bytes"
	"strings"
	"testing"
)

const brainTSV = `Geneid	brain1	brain2	brain3
ENSG00000000003	10	12	8
ENSG00000000005	0	1	0
ENSG00000000419	100	90	110
`

const heartTSV = `Geneid	heart1	heart2
ENSG00000000003	5	7
ENSG00000000419	40	55
ENSG00000000457	9	12
`

func TestReadMatrix(t *testing.T) {
	m, err := ReadMatrix(strings.NewReader(brainTSV))
	if err != nil {
		t.Fatal(err)
	}

	if got, expected := len(m.Genes), 3; got != expected {
		t.Fatalf("got %d genes, expected %d", got, expected)
	}
	if got, expected := len(m.Samples), 3; got != expected {
		t.Fatalf("got %d samples, expected %d", got, expected)
	}

	row, ok := m.Row("ENSG00000000419")
	if !ok {
		t.Fatal("ENSG00000000419 not found")
	}
	if row[0] != 100 || row[1] != 90 || row[2] != 110 {
		t.Errorf("unexpected row: %v", row)
	}
}

func TestReadMatrixComma(t *testing.T) {
	m, err := ReadMatrix(strings.NewReader("Geneid,s1,s2\nENSG00000000003,1,2\nENSG00000000005,0,4\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Genes) != 2 || len(m.Samples) != 2 {
		t.Errorf("got %d genes and %d samples, expected 2 and 2", len(m.Genes), len(m.Samples))
	}
}

func TestReadMatrixRejectsBadInput(t *testing.T) {
	for name, in := range map[string]string{
		"duplicate gene": "Geneid\ts1\nENSG1\t1\nENSG1\t2\n",
		"ragged row":     "Geneid\ts1\ts2\nENSG1\t1\n",
		"negative count": "Geneid\ts1\nENSG1\t-3\n",
		"non-numeric":    "Geneid\ts1\nENSG1\tabc\n",
	} {
		if _, err := ReadMatrix(strings.NewReader(in)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestSelectSamples(t *testing.T) {
	m, err := ReadMatrix(strings.NewReader(brainTSV))
	if err != nil {
		t.Fatal(err)
	}

	sub, err := m.SelectSamples([]string{"brain3", "brain1"})
	if err != nil {
		t.Fatal(err)
	}

	row, _ := sub.Row("ENSG00000000003")
	if row[0] != 8 || row[1] != 10 {
		t.Errorf("unexpected reordered row: %v", row)
	}

	if _, err := m.SelectSamples([]string{"kidney1"}); err == nil {
		t.Error("expected an error for an unknown sample")
	}
}

func TestSelectGenes(t *testing.T) {
	m, err := ReadMatrix(strings.NewReader(brainTSV))
	if err != nil {
		t.Fatal(err)
	}

	sub, err := m.SelectGenes([]string{"ENSG00000000419", "ENSG00000000003"})
	if err != nil {
		t.Fatal(err)
	}
	if len(sub.Genes) != 2 || sub.Genes[0] != "ENSG00000000419" {
		t.Errorf("unexpected gene order: %v", sub.Genes)
	}

	if _, err := m.SelectGenes([]string{"ENSG99999999999"}); err == nil {
		t.Error("expected an error for an unknown gene")
	}
}

func TestCountFilter(t *testing.T) {
	m, err := ReadMatrix(strings.NewReader(brainTSV))
	if err != nil {
		t.Fatal(err)
	}

	filtered, dropped := m.CountFilter(5)
	if dropped != 1 {
		t.Fatalf("dropped %d genes, expected 1", dropped)
	}
	if _, ok := filtered.Row("ENSG00000000005"); ok {
		t.Error("ENSG00000000005 should have been dropped")
	}
}

func TestLibrarySizes(t *testing.T) {
	m, err := ReadMatrix(strings.NewReader(brainTSV))
	if err != nil {
		t.Fatal(err)
	}

	sizes := m.LibrarySizes()
	for j, expected := range []float64{110, 103, 118} {
		if sizes[j] != expected {
			t.Errorf("sample %d: got %g, expected %g", j, sizes[j], expected)
		}
	}
}

func TestMerge(t *testing.T) {
	brain, err := ReadMatrix(strings.NewReader(brainTSV))
	if err != nil {
		t.Fatal(err)
	}
	heart, err := ReadMatrix(strings.NewReader(heartTSV))
	if err != nil {
		t.Fatal(err)
	}

	merged, dropped, err := Merge(brain, heart)
	if err != nil {
		t.Fatal(err)
	}

	// ENSG00000000005 is brain-only, ENSG00000000457 is heart-only.
	if dropped != 2 {
		t.Errorf("dropped %d genes, expected 2", dropped)
	}
	if got, expected := len(merged.Genes), 2; got != expected {
		t.Fatalf("got %d shared genes, expected %d", got, expected)
	}
	if got, expected := len(merged.Samples), 5; got != expected {
		t.Fatalf("got %d samples, expected %d", got, expected)
	}

	row, _ := merged.Row("ENSG00000000419")
	for j, expected := range []float64{100, 90, 110, 40, 55} {
		if row[j] != expected {
			t.Errorf("column %d: got %g, expected %g", j, row[j], expected)
		}
	}
}

func TestMergeRejectsDuplicateSamples(t *testing.T) {
	brain, _ := ReadMatrix(strings.NewReader(brainTSV))
	if _, _, err := Merge(brain, brain); err == nil {
		t.Error("expected an error for duplicated sample names")
	}
}

func TestStripGeneVersions(t *testing.T) {
	m, err := ReadMatrix(strings.NewReader("Geneid\ts1\nENSG00000000003.14\t1\nENSG00000000419.8\t2\n"))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.StripGeneVersions(); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Row("ENSG00000000003"); !ok {
		t.Error("version-stripped ID not found")
	}
}

func TestWriteTSVRoundTrip(t *testing.T) {
	m, err := ReadMatrix(strings.NewReader(brainTSV))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := m.WriteTSV(&buf); err != nil {
		t.Fatal(err)
	}

	again, err := ReadMatrix(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Genes) != len(m.Genes) || len(again.Samples) != len(m.Samples) {
		t.Errorf("round trip changed the shape: %dx%d vs %dx%d",
			len(again.Genes), len(again.Samples), len(m.Genes), len(m.Samples))
	}
}

func TestTissues(t *testing.T) {
	m, err := ReadMatrix(strings.NewReader(brainTSV))
	if err != nil {
		t.Fatal(err)
	}

	sheet := SheetFor(m, "brain")
	tissues, err := Tissues(m, sheet)
	if err != nil {
		t.Fatal(err)
	}
	for _, tissue := range tissues {
		if tissue != "brain" {
			t.Errorf("got tissue %s, expected brain", tissue)
		}
	}

	if _, err := Tissues(m, sheet[:2]); err == nil {
		t.Error("expected an error for a sample with no sheet entry")
	}
}

func TestReadSampleSheet(t *testing.T) {
	sheet, err := ReadSampleSheet(strings.NewReader("sample\ttissue\tbatch\nbrain1\tbrain\t\nheart1\theart\tb2\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(sheet) != 2 {
		t.Fatalf("got %d rows, expected 2", len(sheet))
	}
	if sheet[1].Name != "heart1" || sheet[1].Tissue != "heart" || sheet[1].Batch != "b2" {
		t.Errorf("unexpected row: %+v", sheet[1])
	}

	if _, err := ReadSampleSheet(strings.NewReader("sample\ttissue\nbrain1\t\n")); err == nil {
		t.Error("expected an error for a missing tissue")
	}
}
