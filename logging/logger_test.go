package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFromConfigWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewFromConfig(Config{Service: "bayes", Module: "test", Level: "info", Output: &buf})
	l.Info("trained", "documents", 12)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v: %s", err, buf.String())
	}
	if rec["service"] != "bayes" || rec["module"] != "test" {
		t.Errorf("missing service/module attrs: %v", rec)
	}
	if _, ok := rec["timestamp"]; !ok {
		t.Errorf("time key not renamed: %v", rec)
	}
}

func TestSetLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewFromConfig(Config{Service: "bayes", Module: "test", Level: "info", Format: "text", Output: &buf})
	l.DebugContext(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug record written at info level: %s", buf.String())
	}

	SetLevel(LevelFromVerbose(true))
	defer SetLevel("info")
	l.WithModule("scoring").DebugContext(context.Background(), "visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug record missing after SetLevel(debug): %q", buf.String())
	}
	if !strings.Contains(buf.String(), "component=scoring") {
		t.Errorf("component attr missing: %q", buf.String())
	}
}

func TestFanoutRespectsHandlerLevels(t *testing.T) {
	var file, console bytes.Buffer
	h := newMultiHandler(
		slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	l := slog.New(h).With("shard", 3).WithGroup("model")
	l.Debug("loaded", "labels", 2)
	l.Warn("empty class", "label", "x")

	if got := strings.Count(file.String(), "\n"); got != 2 {
		t.Errorf("file handler wrote %d lines, want 2:\n%s", got, file.String())
	}
	if strings.Contains(console.String(), "loaded") || !strings.Contains(console.String(), "model.label=x") {
		t.Errorf("console output = %q", console.String())
	}
	if !strings.Contains(console.String(), "shard=3") {
		t.Errorf("console output lost attrs: %q", console.String())
	}
}

func TestLogDurationLogsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewFromConfig(Config{Service: "bayes", Module: "driver", Level: "debug", Output: &buf})
	done := l.LogDuration(context.Background(), "shard attempt", "shard", 4)
	done()

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v: %s", err, buf.String())
	}
	if rec["msg"] != "shard attempt finished" || rec["level"] != "DEBUG" || rec["shard"] != float64(4) {
		t.Errorf("record = %v", rec)
	}
	if _, ok := rec["duration"]; !ok {
		t.Errorf("record has no duration: %v", rec)
	}

	buf.Reset()
	quiet := NewFromConfig(Config{Service: "bayes", Module: "driver", Level: "info", Output: &buf})
	quiet.LogDuration(context.Background(), "shard attempt")()
	if buf.Len() != 0 {
		t.Errorf("info logger wrote debug duration: %s", buf.String())
	}
}
