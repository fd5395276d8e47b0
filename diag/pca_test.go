package diag

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/DavideScarpetta/BULK-RNA-seq/countdata"
	"github.com/DavideScarpetta/BULK-RNA-seq/dge"
)

// Two clearly separated sample groups over a handful of genes.
const vstTSV = `Geneid	b1	b2	b3	h1	h2	h3
ENSG1	10	10.2	9.8	2	2.1	1.9
ENSG2	3	3.1	2.9	8	8.2	7.8
ENSG3	5	5.1	4.9	5	5.05	4.95
ENSG4	12	11.8	12.2	4	4.1	3.9
`

func vstMatrix(t *testing.T) *countdata.Matrix {
	t.Helper()

	m, err := countdata.ReadMatrix(strings.NewReader(vstTSV))
	if err != nil {
		t.Fatal(err)
	}

	return m
}

func TestPCASeparatesTissues(t *testing.T) {
	res, err := PCA(vstMatrix(t), 0, 2)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Scores) != 6 {
		t.Fatalf("got %d score rows, expected 6", len(res.Scores))
	}

	// The two groups must land on opposite sides of PC1.
	for j := 1; j < 3; j++ {
		if math.Signbit(res.Scores[j][0]) != math.Signbit(res.Scores[0][0]) {
			t.Errorf("sample %d: PC1 %g on the wrong side of %g", j, res.Scores[j][0], res.Scores[0][0])
		}
	}
	for j := 3; j < 6; j++ {
		if math.Signbit(res.Scores[j][0]) == math.Signbit(res.Scores[0][0]) {
			t.Errorf("sample %d: PC1 %g on the same side as the first group", j, res.Scores[j][0])
		}
	}

	// PC1 carries nearly all the variance in this fixture.
	if res.VarExplained[0] < 0.9 {
		t.Errorf("PC1 explains %g, expected > 0.9", res.VarExplained[0])
	}

	var total float64
	for _, v := range res.VarExplained {
		total += v
	}
	if total > 1+1e-9 {
		t.Errorf("variance proportions sum to %g", total)
	}
}

func TestPCATooFewSamples(t *testing.T) {
	m, err := countdata.ReadMatrix(strings.NewReader("Geneid\ts1\nENSG1\t5\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := PCA(m, 0, 2); err == nil {
		t.Error("expected an error for a single sample")
	}
}

func TestTopVariableGenes(t *testing.T) {
	m := vstMatrix(t)

	rows := topVariableGenes(m, 2)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, expected 2", len(rows))
	}
	// ENSG1 (row 0) and ENSG4 (row 3) swing the most.
	for _, r := range rows {
		if r != 0 && r != 3 {
			t.Errorf("unexpected top-variance row %d (%s)", r, m.Genes[r])
		}
	}
}

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestPCAPlot(t *testing.T) {
	res, err := PCA(vstMatrix(t), 0, 2)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	tissues := []string{"brain", "brain", "brain", "heart", "heart", "heart"}
	if err := PCAPlot(&buf, res, tissues); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Error("output is not a PNG")
	}

	if err := PCAPlot(&buf, res, tissues[:2]); err == nil {
		t.Error("expected an error for mismatched tissue labels")
	}
}

func TestMeanDispersionPlot(t *testing.T) {
	m, err := countdata.ReadMatrix(strings.NewReader(`Geneid	b1	b2	h1	h2
ENSG1	90	110	190	210
ENSG2	900	1100	1900	2100
ENSG3	9	11	19	21
`))
	if err != nil {
		t.Fatal(err)
	}
	ds, err := dge.New(m, []string{"brain", "brain", "heart", "heart"})
	if err != nil {
		t.Fatal(err)
	}

	if err := MeanDispersionPlot(new(bytes.Buffer), ds); err == nil {
		t.Error("expected an error before the model is fitted")
	}

	if err := ds.EstimateSizeFactors(); err != nil {
		t.Fatal(err)
	}
	if err := ds.EstimateDispersions(); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := MeanDispersionPlot(&buf, ds); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Error("output is not a PNG")
	}
}

func TestMeanSDPlot(t *testing.T) {
	var buf bytes.Buffer
	if err := MeanSDPlot(&buf, vstMatrix(t)); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Error("output is not a PNG")
	}
}
