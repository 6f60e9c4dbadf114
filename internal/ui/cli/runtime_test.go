package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	coreapp "metadesc/internal/core/app"
	"metadesc/internal/core/config"
)

const typeSystemDoc = `<?xml version="1.0" encoding="UTF-8"?>
<typeSystemDescription xmlns="http://uima.apache.org/resourceSpecifier">
  <name>%s</name>
  %s
  <types>
    <typeDescription><name>%s</name><supertypeName>uima.tcas.Annotation</supertypeName></typeDescription>
  </types>
</typeSystemDescription>`

func writeProject(t *testing.T, files map[string]string) (string, string) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfgPath := filepath.Join(root, "metadesc.toml")
	cfg := fmt.Sprintf("version = 1\n\n[paths]\nproject_root = %q\n\n[descriptors]\nexclude = [\"data/**\"]\n", root)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return root, cfgPath
}

func TestApplyModeOptions_RejectsOnceAndWatch(t *testing.T) {
	opts := &cliOptions{once: true, watch: true, historyLimit: 20}
	err := applyModeOptions(opts, config.Default())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "cannot be combined") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyModeOptions_HistoryOptionsRequireHistoryFlag(t *testing.T) {
	opts := &cliOptions{since: "2026-01-01", historyLimit: 20}
	err := applyModeOptions(opts, config.Default())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "require --history") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyModeOptions_RejectsInvalidSince(t *testing.T) {
	opts := &cliOptions{history: true, since: "yesterday", historyLimit: 20}
	if err := applyModeOptions(opts, config.Default()); err == nil {
		t.Fatal("expected invalid --since error")
	}
}

func TestApplyModeOptions_OverridesConfig(t *testing.T) {
	cfg := config.Default()
	opts := &cliOptions{trace: true, history: true, emit: "out", historyLimit: 20}
	if err := applyModeOptions(opts, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Trace.Enabled || !cfg.DB.Enabled || cfg.Output.EmitDir != "out" {
		t.Fatalf("flags not applied: trace=%v db=%v emit=%q", cfg.Trace.Enabled, cfg.DB.Enabled, cfg.Output.EmitDir)
	}
}

func TestParseSince(t *testing.T) {
	ts, err := parseSince("2026-02-13")
	if err != nil {
		t.Fatal(err)
	}
	if ts.Year() != 2026 || ts.Month() != 2 || ts.Day() != 13 {
		t.Fatalf("unexpected date: %v", ts)
	}
	if _, err := parseSince("2026-02-13T10:00:00Z"); err != nil {
		t.Fatalf("expected RFC3339 to parse: %v", err)
	}
	if ts, err := parseSince(""); err != nil || !ts.IsZero() {
		t.Fatalf("expected zero time for empty value, got %v (%v)", ts, err)
	}
}

func TestLoadConfig(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}

	_, cfgPath := writeProject(t, nil)
	cfg, found, err := loadConfig(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if found != cfgPath {
		t.Fatalf("expected %s, got %s", cfgPath, found)
	}
	if len(cfg.Descriptors.Exclude) != 1 {
		t.Fatalf("expected exclude from file, got %v", cfg.Descriptors.Exclude)
	}
}

func TestRun_Version(t *testing.T) {
	var stdout bytes.Buffer
	code := run(context.Background(), []string{"--version"}, &stdout, io.Discard)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout.String(), "metadesc v"+versionString) {
		t.Fatalf("unexpected output: %q", stdout.String())
	}
}

func TestRun_UnknownFlag(t *testing.T) {
	if code := run(context.Background(), []string{"--bogus"}, io.Discard, io.Discard); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestRun_OnceWithTraceHistoryAndEmit(t *testing.T) {
	root, cfgPath := writeProject(t, map[string]string{
		"main.xml":     fmt.Sprintf(typeSystemDoc, "main", `<imports><import location="lib/base.xml"/></imports>`, "a.Main"),
		"lib/base.xml": fmt.Sprintf(typeSystemDoc, "base", "", "a.Base"),
	})

	var stdout bytes.Buffer
	code := run(context.Background(), []string{"--config", cfgPath, "--trace", "--history", "--emit", "out"}, &stdout, io.Discard)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d\n%s", code, stdout.String())
	}
	out := stdout.String()
	for _, want := range []string{"main.xml", "2 descriptors resolved", "By kind: type_system=2", "Process trace", "Recorded run", "History for"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "out", "main.xml")); err != nil {
		t.Fatalf("expected emitted descriptor: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "data", "database", "history.db")); err != nil {
		t.Fatalf("expected history database: %v", err)
	}
}

func TestRun_FailureExitCode(t *testing.T) {
	_, cfgPath := writeProject(t, map[string]string{
		"broken.xml": fmt.Sprintf(typeSystemDoc, "broken", `<imports><import location="missing.xml"/></imports>`, "a.B"),
	})
	var stdout bytes.Buffer
	if code := run(context.Background(), []string{"--config", cfgPath}, &stdout, io.Discard); code != 1 {
		t.Fatalf("expected exit 1, got %d\n%s", code, stdout.String())
	}
	if !strings.Contains(stdout.String(), "1 failed") {
		t.Fatalf("expected failure summary, got:\n%s", stdout.String())
	}
}

func TestObservabilityServer_Handler(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ProjectRoot = root
	a, err := coreapp.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(NewObservabilityServer(":0", coreapp.NewHealthService(a)).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected healthy status, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "metadesc_") {
		t.Fatalf("expected metadesc metrics in output")
	}
}
