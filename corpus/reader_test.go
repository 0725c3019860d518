package corpus

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

func TestReaderParsesLabeledLines(t *testing.T) {
	input := "mahout\tscalable machine learning\r\n\n   \nlucene search engine\n"
	r, err := NewReader(strings.NewReader(input), "UTF-8", 2)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}

	var docs []Document
	for r.Scan() {
		docs = append(docs, r.Document())
	}
	if err := r.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}

	first := docs[0]
	want := []string{"scalable", "machine", "learning", "scalable machine", "machine learning"}
	if first.Label != "mahout" || strings.Join(first.Features, "|") != strings.Join(want, "|") || first.Line != 1 {
		t.Errorf("first = %+v", first)
	}
	if docs[1].Label != "lucene" || docs[1].Line != 4 || len(docs[1].Features) != 3 {
		t.Errorf("second = %+v", docs[1])
	}
}

func TestReaderDecodesLatin1(t *testing.T) {
	encoded, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte("café\tcrème brûlée"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	r, err := NewReader(bytes.NewReader(encoded), "ISO-8859-1", 1)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	var labels []string
	for label, features := range r.Labeled() {
		labels = append(labels, label)
		if strings.Join(features, " ") != "crème brûlée" {
			t.Errorf("features = %v", features)
		}
	}
	if len(labels) != 1 || labels[0] != "café" {
		t.Errorf("labels = %v", labels)
	}
}

func TestReaderErrors(t *testing.T) {
	if _, err := NewReader(strings.NewReader(""), "klingon", 1); !errors.Is(err, ErrUnsupportedEncoding) {
		t.Errorf("NewReader(klingon) error = %v, want ErrUnsupportedEncoding", err)
	}

	r, _ := NewReader(strings.NewReader("\tno label here\n"), "", 1)
	if r.Scan() {
		t.Fatal("Scan() accepted a line with an empty label")
	}
	if r.Err() == nil {
		t.Error("Err() = nil for a line with an empty label")
	}
}
