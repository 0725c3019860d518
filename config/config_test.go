package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bayes.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsAndEnv(t *testing.T) {
	path := writeConfig(t, `
version = "1"

[bayes]
classifierType = "cbayes"
basePath = "/models/news"
testDirPath = "/corpus/test"

[minio]
bucket_name = "models"
`)
	t.Setenv("BAYES_BAYES_GRAMSIZE", "3")

	var cfg Config
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bayes.ClassifierType != "cbayes" || cfg.Bayes.BasePath != "/models/news" {
		t.Errorf("Bayes = %+v", cfg.Bayes)
	}
	if cfg.Bayes.GramSize != 3 {
		t.Errorf("GramSize = %d, want env override 3", cfg.Bayes.GramSize)
	}
	if cfg.Bayes.Alpha != 1.0 || cfg.Bayes.DefaultCat != "unknown" || cfg.Bayes.Encoding != "UTF-8" {
		t.Errorf("defaults not applied: %+v", cfg.Bayes)
	}
	if cfg.Minio.BucketName != "models" || cfg.Log.Level != "info" {
		t.Errorf("Minio = %+v, Log = %+v", cfg.Minio, cfg.Log)
	}

	p := cfg.Bayes.Parameters()
	if v, _ := p.Get(KeyClassifierType); v != "cbayes" {
		t.Errorf("Parameters classifierType = %q", v)
	}
	if n, err := p.Int(KeyGramSize); err != nil || n != 3 {
		t.Errorf("Parameters gramSize = %d, %v", n, err)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("BAYES_BAYES_CLASSIFIERTYPE", "cbayes")

	var cfg Config
	if err := Load("", &cfg); err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Bayes.ClassifierType != "cbayes" {
		t.Errorf("ClassifierType = %q, want cbayes from env", cfg.Bayes.ClassifierType)
	}
	if cfg.Bayes.Alpha != 1.0 || cfg.Bayes.DataSource != "file" || cfg.Bayes.Workers != 4 {
		t.Errorf("defaults not applied: %+v", cfg.Bayes)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `
[bayes]
classifierType = "svm"
`)
	var cfg Config
	if err := Load(path, &cfg); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Load() error = %v, want ErrInvalidValue", err)
	}

	if err := Load(filepath.Join(t.TempDir(), "missing.toml"), &cfg); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Load(missing) error = %v, want ErrInvalidValue", err)
	}
}

func TestLoggingConfigVerbose(t *testing.T) {
	cfg := Config{Log: LogConfig{Level: "warn"}}
	if got := cfg.LoggingConfig("svc").Level; got != "warn" {
		t.Errorf("Level = %q, want warn", got)
	}
	cfg.Bayes.Verbose = true
	if got := cfg.LoggingConfig("svc").Level; got != "debug" {
		t.Errorf("verbose Level = %q, want debug", got)
	}
}

func TestParameters(t *testing.T) {
	p := NewParameters(map[string]string{
		KeyGramSize: "two",
		KeyVerbose:  "yes please",
		KeyBasePath: "",
	})

	if v, err := p.String(KeyDefaultCat); err != nil || v != "unknown" {
		t.Errorf("String(defaultCat) = %q, %v", v, err)
	}
	if f, err := p.Float(KeyAlpha); err != nil || f != 1.0 {
		t.Errorf("Float(alpha_i) = %v, %v", f, err)
	}
	if _, err := p.String(KeyBasePath); !errors.Is(err, ErrMissingKey) {
		t.Errorf("String(basePath) error = %v, want ErrMissingKey", err)
	}
	if _, err := p.Int(KeyGramSize); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Int(gramSize) error = %v, want ErrInvalidValue", err)
	}
	if _, err := p.Bool(KeyVerbose); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Bool(verbose) error = %v, want ErrInvalidValue", err)
	}
	if b, err := p.Bool("absent"); err != nil || b {
		t.Errorf("Bool(absent) = %v, %v", b, err)
	}
	if got := p.StringOr(KeyTestDirPath, "/tmp/test"); got != "/tmp/test" {
		t.Errorf("StringOr() = %q", got)
	}

	p.Set(KeyGramSize, "2")
	if n, _ := p.Int(KeyGramSize); n != 2 {
		t.Errorf("Int after Set = %d", n)
	}

	var prev string
	for k := range p.All() {
		if k < prev {
			t.Errorf("All() not sorted: %q after %q", k, prev)
		}
		prev = k
	}
}
