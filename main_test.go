package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minios-linux/glosa/config"
	"github.com/minios-linux/glosa/coordinator"
	"github.com/minios-linux/glosa/translate"
)

// setupEnv points glosa at a temporary bundled document and override
// path, with one model served by a fake Ollama that answers with reply
// (or HTTP 500 when reply is empty).
func setupEnv(t *testing.T, reply string) (overridePath string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reply == "" {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, `{"response":"`+reply+`","done":true}`)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	doc := `activeBackend: ollama
defaultTargetLanguage: ja
supportedLanguages:
  - code: en
    name: English
  - code: ja
    name: Japanese
disabledLanguages:
  - code: it
    name: Italian
backendSettings:
  ollama:
    models:
      - id: ModelX
        endpoint: ` + srv.URL + `/api/generate
        isDefault: true
  chromeApi:
    endpoint: ` + srv.URL + `
`
	bundled := filepath.Join(dir, "bundled.yaml")
	if err := os.WriteFile(bundled, []byte(doc), 0644); err != nil {
		t.Fatalf("os.WriteFile() error: %v", err)
	}
	overridePath = filepath.Join(dir, "data", "config.json")

	t.Setenv("GLOSA_BUNDLED_CONFIG", bundled)
	t.Setenv("GLOSA_OVERRIDE_PATH", overridePath)
	t.Setenv("GLOSA_UI_LANGUAGE", "en")
	t.Setenv("GLOSA_REDIS_URL", "")
	return overridePath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version error: %v", err)
	}
	if !strings.HasPrefix(out, "glosa version dev\n") {
		t.Fatalf("version output = %q", out)
	}
}

func TestTranslateCommand(t *testing.T) {
	setupEnv(t, "こんにちは")

	out, err := run(t, "translate", "--from", "en", "Good", "morning")
	if err != nil {
		t.Fatalf("translate error: %v", err)
	}
	if out != "こんにちは\n" {
		t.Fatalf("translate output = %q, want %q", out, "こんにちは\n")
	}
}

func TestTranslateCommandJSON(t *testing.T) {
	setupEnv(t, "こんにちは")

	out, err := run(t, "translate", "--json", "--to", "ja", "Hello")
	if err != nil {
		t.Fatalf("translate error: %v", err)
	}
	var resp coordinator.TranslateResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if !resp.Success || resp.ModelOrProviderUsed != "ModelX" || resp.UsedFallback {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestTranslateCommandFailure(t *testing.T) {
	setupEnv(t, "")

	_, err := run(t, "translate", "--from", "en", "Hello")
	if err == nil {
		t.Fatal("translate succeeded against a failing model")
	}
	if strings.Contains(err.Error(), "down") {
		t.Fatalf("error leaks the response body: %v", err)
	}
}

func TestBackendCommand(t *testing.T) {
	overridePath := setupEnv(t, "x")

	out, err := run(t, "backend")
	if err != nil {
		t.Fatalf("backend error: %v", err)
	}
	if !strings.Contains(out, "* ollama") || !strings.Contains(out, "  chromeApi") {
		t.Fatalf("backend list = %q", out)
	}

	if _, err := run(t, "backend", "chromeApi"); err != nil {
		t.Fatalf("backend chromeApi error: %v", err)
	}
	data, err := os.ReadFile(overridePath)
	if err != nil {
		t.Fatalf("override not written: %v", err)
	}
	if !strings.Contains(string(data), `"activeBackend": "chromeApi"`) {
		t.Fatalf("override does not record the switch:\n%s", data)
	}

	if _, err := run(t, "backend", "deepl"); err == nil {
		t.Fatal("switching to an unknown backend succeeded")
	}
}

func TestConfigCommands(t *testing.T) {
	overridePath := setupEnv(t, "x")

	out, err := run(t, "config", "path")
	if err != nil {
		t.Fatalf("config path error: %v", err)
	}
	if strings.TrimSpace(out) != overridePath {
		t.Fatalf("config path = %q, want %q", out, overridePath)
	}

	out, err = run(t, "config", "show", "--format", "json")
	if err != nil {
		t.Fatalf("config show error: %v", err)
	}
	var cfg config.Configuration
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("config show output is not JSON: %v", err)
	}
	if cfg.DefaultTargetLanguage != "ja" || cfg.ActiveBackend != "ollama" {
		t.Fatalf("config show = %+v", cfg)
	}

	out, err = run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show yaml error: %v", err)
	}
	if !strings.Contains(out, "activeBackend: ollama") {
		t.Fatalf("config show yaml = %q", out)
	}

	if _, err := run(t, "config", "show", "--format", "toml"); err == nil {
		t.Fatal("unknown format accepted")
	}

	if err := os.MkdirAll(filepath.Dir(overridePath), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(overridePath, []byte(`{"defaultTargetLanguage":"en"}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "config", "reset"); err != nil {
		t.Fatalf("config reset error: %v", err)
	}
	if _, err := os.Stat(overridePath); !os.IsNotExist(err) {
		t.Fatalf("override still present after reset: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(good, []byte("activeBackend: ollama\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("supportedLanguages:\n  - code: \"!!\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "config", "validate", good); err != nil {
		t.Fatalf("validate good: %v", err)
	}
	if _, err := run(t, "config", "validate", bad); err == nil {
		t.Fatal("validate accepted an invalid language code")
	}
	if _, err := run(t, "config", "validate", filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("validate accepted a missing file")
	}
}

func TestLanguagesCommand(t *testing.T) {
	setupEnv(t, "x")

	out, err := run(t, "languages")
	if err != nil {
		t.Fatalf("languages error: %v", err)
	}
	for _, want := range []string{"English", "Japanese", "Italian", "日本語", "2 languages enabled"} {
		if !strings.Contains(out, want) {
			t.Fatalf("languages output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, "ollama", coordinator.StatusResponse(translate.Running("Connected")))
	want := "ollama     " + colorGreen + "running " + colorReset + " Connected\n"
	if buf.String() != want {
		t.Fatalf("printStatus() = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	printStatus(&buf, "chromeApi", coordinator.StatusResponse(translate.Failed("down")))
	if !strings.Contains(buf.String(), colorRed+"error") {
		t.Fatalf("failed status not red: %q", buf.String())
	}
}
