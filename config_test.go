package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.SocketPath != defaultSocketPath {
		t.Errorf("Expected socket %q, got %q", defaultSocketPath, cfg.SocketPath)
	}
	if cfg.Namespace != "Template" {
		t.Errorf("Expected Template namespace, got %q", cfg.Namespace)
	}
	if cfg.Fetch.Language != "en" {
		t.Errorf("Expected en, got %q", cfg.Fetch.Language)
	}
	if len(cfg.Preprocess) != 1 || cfg.Preprocess[0] != OpNormalizeWhitespace {
		t.Errorf("Unexpected preprocess %v", cfg.Preprocess)
	}
	if !cfg.UseColor() {
		t.Error("Color should default to on")
	}
	if got := cfg.Fetch.Endpoint(); got != "https://en.wikipedia.org/w/api.php" {
		t.Errorf("Unexpected endpoint %q", got)
	}
}

func TestParseConfig(t *testing.T) {
	t.Setenv("WIKITEMPLATES_TEST_LEVEL", "debug")

	src := `
names_file = "sk_templates.txt"
log_level  = env.WIKITEMPLATES_TEST_LEVEL
log_format = "json"
color      = false
preprocess = ["Strip Comments", "Normalize Whitespace"]

fetch {
  language  = "sk"
  page_size = 50
}

dump {
  path          = "skwiki.xml"
  max_pages     = 100
  template_only = true
}
`
	cfg, err := parseConfig([]byte(src), "test.hcl")
	if err != nil {
		t.Fatalf("parseConfig failed: %v", err)
	}

	if cfg.NamesFile != "sk_templates.txt" {
		t.Errorf("Unexpected names file %q", cfg.NamesFile)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level from env, got %q", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("Unexpected log format %q", cfg.LogFormat)
	}
	if cfg.UseColor() {
		t.Error("Expected color off")
	}
	if cfg.Namespace != "Šablóna" {
		t.Errorf("Expected namespace from language, got %q", cfg.Namespace)
	}
	if cfg.Fetch.PageSize != 50 {
		t.Errorf("Unexpected page size %d", cfg.Fetch.PageSize)
	}
	if cfg.Dump.Path != "skwiki.xml" || cfg.Dump.MaxPages != 100 || !cfg.Dump.TemplateOnly {
		t.Errorf("Unexpected dump config %+v", cfg.Dump)
	}
	if len(cfg.Preprocess) != 2 || cfg.Preprocess[0] != "Strip Comments" {
		t.Errorf("Unexpected preprocess %v", cfg.Preprocess)
	}
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
		desc string
	}{
		{`names_file = `, "parse", "Syntax error"},
		{`unknown = "x"`, "decode", "Unknown attribute"},
		{`preprocess = ["Uppercase"]`, "unknown preprocess operation", "Unknown operation"},
		{`log_format = "xml"`, "log_format", "Bad log format"},
		{"dump {\n  max_pages = -1\n}", "max_pages", "Negative max pages"},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			_, err := parseConfig([]byte(test.src), "bad.hcl")
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("Expected error containing %q, got %v", test.want, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wikitemplates.hcl")
	if err := os.WriteFile(path, []byte("namespace = \"Šablona\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Namespace != "Šablona" {
		t.Errorf("Unexpected namespace %q", cfg.Namespace)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.hcl")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestNamespaceForLanguage(t *testing.T) {
	tests := map[string]string{
		"en": "Template",
		"sk": "Šablóna",
		"CS": "Šablona",
		"de": "Template",
	}
	for lang, expected := range tests {
		if got := namespaceForLanguage(lang); got != expected {
			t.Errorf("namespaceForLanguage(%q) = %q, expected %q", lang, got, expected)
		}
	}
}
