package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wyfcoding/bayes/config"
	"github.com/wyfcoding/bayes/storage"
)

var corpusFiles = map[string]string{
	"mahout.txt": "mahout\tmahout scalable machine learning\n" +
		"mahout\tmahout clustering classification vectors\n",
	"lucene.txt": "lucene\tlucene search engine indexing\n" +
		"lucene\tlucene fulltext search queries\n",
}

func writeCorpus(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, body := range corpusFiles {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTrainClassifyEvaluate(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, filepath.Join(dir, "train"))
	writeCorpus(t, filepath.Join(dir, "test"))

	base := []string{"-D", "basePath=" + filepath.Join(dir, "model"), "-D", "classifierType=cbayes"}

	out, err := run(t, "", append(base, "train", filepath.Join(dir, "train"))...)
	if err != nil {
		t.Fatalf("train error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "4 documents, 2 labels") {
		t.Errorf("train output = %q", out)
	}

	out, err = run(t, "", append(base, "classify", "--workers", "2", filepath.Join(dir, "test"))...)
	if err != nil {
		t.Fatalf("classify error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "Total Classified Instances") || !strings.Contains(out, "100.00%") {
		t.Errorf("classify report = %s", out)
	}

	out, err = run(t, "", append(base, "evaluate", filepath.Join(dir, "test-output"))...)
	if err != nil {
		t.Fatalf("evaluate error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "Correctly Classified Instances") {
		t.Errorf("evaluate report = %s", out)
	}

	out, err = run(t, "lucene search\n\nmahout clustering\n", append(base, "predict", "-k", "2")...)
	if err != nil {
		t.Fatalf("predict error = %v\n%s", err, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("predict printed %d lines, want 2:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "ClassifierResult{category=lucene") || !strings.HasPrefix(lines[1], "ClassifierResult{category=mahout") {
		t.Errorf("predict output = %q", out)
	}
}

func TestClassifyWithoutModel(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, filepath.Join(dir, "test"))
	_, err := run(t, "", "-D", "basePath="+filepath.Join(dir, "none"), "classify", filepath.Join(dir, "test"))
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Errorf("classify without model error = %v", err)
	}
}

func TestExitCode(t *testing.T) {
	if got := exitCode(fmt.Errorf("load: %w", config.ErrMissingKey)); got != 2 {
		t.Errorf("exitCode(config error) = %d, want 2", got)
	}
	if got := exitCode(storage.ErrStorageUnavailable); got != 1 {
		t.Errorf("exitCode(storage error) = %d, want 1", got)
	}
	if got := exitCode(errors.New("boom")); got != 1 {
		t.Errorf("exitCode(plain) = %d, want 1", got)
	}
}
