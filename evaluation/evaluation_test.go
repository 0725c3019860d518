package evaluation

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/wyfcoding/bayes/bayes"
)

var labels = []string{"lucene", "mahout", "redhat"}

func filled(pairs ...[2]string) *ConfusionMatrix {
	m := NewConfusionMatrix(labels, "unknown")
	for _, p := range pairs {
		m.AddInstance(p[0], p[1])
	}
	return m
}

func TestNewConfusionMatrixAppendsDefault(t *testing.T) {
	m := NewConfusionMatrix([]string{"b", "a", "b"}, "unknown")
	if got := strings.Join(m.Labels(), ","); got != "b,a,unknown" {
		t.Errorf("Labels() = %s", got)
	}
	m = NewConfusionMatrix([]string{"unknown", "a"}, "unknown")
	if got := strings.Join(m.Labels(), ","); got != "unknown,a" {
		t.Errorf("Labels() with default present = %s", got)
	}
}

func TestAddInstanceBucketsUnknownLabels(t *testing.T) {
	m := filled(
		[2]string{"lucene", "lucene"},
		[2]string{"lucene", "redhat"},
		[2]string{"solr", "mahout"},
		[2]string{"mahout", "hadoop"},
	)
	tests := []struct {
		actual, predicted string
		want              int64
	}{
		{"lucene", "lucene", 1},
		{"lucene", "redhat", 1},
		{"unknown", "mahout", 1},
		{"mahout", "unknown", 1},
		{"redhat", "redhat", 0},
	}
	for _, tt := range tests {
		if got := m.Get(tt.actual, tt.predicted); got != tt.want {
			t.Errorf("Get(%s, %s) = %d, want %d", tt.actual, tt.predicted, got, tt.want)
		}
	}
	if m.Total() != 4 || m.Correct() != 1 {
		t.Errorf("Total() = %d, Correct() = %d", m.Total(), m.Correct())
	}

	snap := m.Matrix()
	snap[0][0] = 99
	if m.Get("lucene", "lucene") != 1 {
		t.Error("Matrix() must return a copy")
	}
}

func TestMergeIsCommutativeAndAssociative(t *testing.T) {
	a := filled([2]string{"lucene", "lucene"}, [2]string{"mahout", "redhat"})
	b := filled([2]string{"redhat", "redhat"}, [2]string{"redhat", "redhat"})
	c := filled([2]string{"x", "mahout"}, [2]string{"lucene", "lucene"})

	ab, _ := Merge(a, b)
	ba, _ := Merge(b, a)
	if !ab.Equal(ba) {
		t.Errorf("Merge not commutative:\n%s\n%s", ab, ba)
	}

	abc1, _ := Merge(ab, c)
	bc, _ := Merge(b, c)
	abc2, _ := Merge(a, bc)
	if !abc1.Equal(abc2) {
		t.Errorf("Merge not associative:\n%s\n%s", abc1, abc2)
	}

	reduced, err := Reduce(a, nil, b, c)
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if !reduced.Equal(abc1) || reduced.Total() != 6 {
		t.Errorf("Reduce() = \n%s", reduced)
	}
	if a.Total() != 2 {
		t.Errorf("Merge mutated its input: total %d", a.Total())
	}
}

func TestMergeRejectsMismatchedLabels(t *testing.T) {
	a := filled()
	b := NewConfusionMatrix([]string{"mahout", "lucene", "redhat"}, "unknown")
	if _, err := Merge(a, b); !errors.Is(err, ErrLabelMismatch) {
		t.Errorf("Merge() error = %v, want ErrLabelMismatch", err)
	}
	c := NewConfusionMatrix(labels, "other")
	if err := a.Add(c); !errors.Is(err, ErrLabelMismatch) {
		t.Errorf("Add() error = %v, want ErrLabelMismatch", err)
	}
	if _, err := Reduce(); !errors.Is(err, ErrNoMatrices) {
		t.Errorf("Reduce() error = %v, want ErrNoMatrices", err)
	}
}

func TestConfusionMatrixJSON(t *testing.T) {
	m := filled([2]string{"lucene", "mahout"}, [2]string{"redhat", "redhat"})
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var back ConfusionMatrix
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !back.Equal(m) {
		t.Errorf("round trip = %s, want %s", &back, m)
	}

	bad := []string{
		`{"labels":["a"],"defaultLabel":"unknown","matrix":[[1]]}`,
		`{"labels":["a","unknown"],"defaultLabel":"unknown","matrix":[[1,0]]}`,
		`{"labels":["a","unknown"],"defaultLabel":"unknown","matrix":[[1,0],[0,-1]]}`,
	}
	for _, in := range bad {
		var cm ConfusionMatrix
		if err := json.Unmarshal([]byte(in), &cm); !errors.Is(err, ErrInvalidMatrix) {
			t.Errorf("Unmarshal(%s) error = %v, want ErrInvalidMatrix", in, err)
		}
	}
}

func TestResultAnalyzerSummary(t *testing.T) {
	a := NewResultAnalyzer(labels, "unknown")
	for _, l := range labels {
		for range 4 {
			a.AddInstance(l, bayes.ClassifierResult{Label: l, Score: -1})
		}
	}
	s := a.Summary()
	if s.Correct != 12 || s.Incorrect != 0 || s.Total != 12 {
		t.Fatalf("Summary() counts = %+v", s)
	}
	if s.Accuracy != 1 || s.Kappa != 1 {
		t.Errorf("Accuracy = %v, Kappa = %v, want 1", s.Accuracy, s.Kappa)
	}
	for _, ls := range s.PerLabel[:3] {
		if ls.Precision != 1 || ls.Recall != 1 || ls.F1 != 1 || ls.Support != 4 {
			t.Errorf("PerLabel %+v", ls)
		}
	}
	for _, l := range labels {
		if got := a.ConfusionMatrix().Get(l, l); got != 4 {
			t.Errorf("diagonal %s = %d, want 4", l, got)
		}
	}

	report := a.String()
	for _, want := range []string{"Correctly Classified Instances", "Confusion Matrix", "redhat"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

func TestResultAnalyzerMixedOutcomes(t *testing.T) {
	a := NewResultAnalyzer([]string{"a", "b"}, "unknown")
	a.AddInstance("a", bayes.ClassifierResult{Label: "a"})
	a.AddInstance("a", bayes.ClassifierResult{Label: "b"})
	a.AddInstance("b", bayes.ClassifierResult{Label: "b"})
	a.AddInstance("b", bayes.ClassifierResult{Label: "b"})

	s := a.Summary()
	if s.Accuracy != 0.75 {
		t.Errorf("Accuracy = %v, want 0.75", s.Accuracy)
	}
	// po = 0.75, pe = (2*1 + 2*3) / 16 = 0.5
	if math.Abs(s.Kappa-0.5) > 1e-12 {
		t.Errorf("Kappa = %v, want 0.5", s.Kappa)
	}
	b := s.PerLabel[1]
	if math.Abs(b.Precision-2.0/3.0) > 1e-12 || b.Recall != 1 {
		t.Errorf("label b = %+v", b)
	}

	merged := AnalyzerFromMatrix(a.ConfusionMatrix())
	if got := merged.Summary(); got.Correct != 3 || got.Incorrect != 1 {
		t.Errorf("AnalyzerFromMatrix summary = %+v", got)
	}
}

func TestAnalyzerCountsMatchMergedMatrix(t *testing.T) {
	a := NewResultAnalyzer([]string{"a", "b"}, "unknown")
	a.AddInstance("a", bayes.ClassifierResult{Label: "a"})
	a.AddInstance("zzz", bayes.ClassifierResult{Label: "unknown"})
	a.AddInstance("zzz", bayes.ClassifierResult{Label: "b"})

	streamed := a.Summary()
	if streamed.Correct != 2 || streamed.Incorrect != 1 || streamed.Total != 3 {
		t.Fatalf("streamed summary = %+v", streamed)
	}

	other := NewResultAnalyzer([]string{"a", "b"}, "unknown")
	merged, err := Reduce(a.ConfusionMatrix(), other.ConfusionMatrix())
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	fromMatrix := AnalyzerFromMatrix(merged).Summary()
	if fromMatrix.Correct != streamed.Correct || fromMatrix.Incorrect != streamed.Incorrect || fromMatrix.Accuracy != streamed.Accuracy {
		t.Errorf("from-matrix summary = %+v, streamed = %+v", fromMatrix, streamed)
	}
	if !a.ConfusionMatrix().Agrees("zzz", "unknown") || a.ConfusionMatrix().Agrees("zzz", "a") {
		t.Errorf("Agrees() does not follow default bucketing")
	}
}
