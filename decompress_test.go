package rnaseq

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"
)

func TestDetectDataTypeGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte("Geneid\tsample1\nENSG00000000003\t12\n"))
	zw.Close()

	dt, err := DetectDataType(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if dt != DataTypeGzip {
		t.Fatalf("expected DataTypeGzip, got %v", dt)
	}
}

func TestMaybeDecompressRoundTrip(t *testing.T) {
	payload := "Geneid\tbrain1\tbrain2\nENSG00000000003\t12\t9\n"

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte(payload))
	zw.Close()

	for name, raw := range map[string][]byte{
		"gzip":  buf.Bytes(),
		"plain": []byte(payload),
	} {
		rc, err := MaybeDecompress(bytes.NewReader(raw))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		got, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		rc.Close()

		if string(got) != payload {
			t.Errorf("%s: got %q, expected %q", name, got, payload)
		}
	}
}

func TestDetermineDelimiter(t *testing.T) {
	tsv := "Geneid\ts1\ts2\nENSG00000000003\t1\t2\nENSG00000000005\t0\t4\n"
	if d := DetermineDelimiter(bytes.NewReader([]byte(tsv))); d != '\t' {
		t.Errorf("got %q, expected tab", d)
	}

	csv := "Geneid,s1,s2\nENSG00000000003,1,2\nENSG00000000005,0,4\n"
	if d := DetermineDelimiter(bytes.NewReader([]byte(csv))); d != ',' {
		t.Errorf("got %q, expected comma", d)
	}
}
