package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/pstuifzand/go-wikitemplates/wikitemplate"
)

const (
	defaultSocketPath = "/tmp/wikitemplates.sock"
	defaultLanguage   = "en"
)

// templateNamespaces are the localized names of namespace 10.
var templateNamespaces = map[string]string{
	"en": wikitemplate.DefaultNamespace,
	"sk": "Šablóna",
	"cs": "Šablona",
}

// namespaceForLanguage returns the template namespace name of a wiki
// language, falling back to the English name.
func namespaceForLanguage(lang string) string {
	if ns, ok := templateNamespaces[strings.ToLower(lang)]; ok {
		return ns
	}
	return wikitemplate.DefaultNamespace
}

// Config is the optional wikitemplates.hcl file. Command line flags
// override it.
//
//	names_file = "sk_templates.txt"
//	namespace  = "Šablóna"
//	log_level  = env.WIKITEMPLATES_LOG_LEVEL
//	preprocess = ["Strip Comments", "Normalize Whitespace"]
//
//	fetch {
//	  language = "sk"
//	}
//
//	dump {
//	  path      = "skwiki-latest-pages-articles.xml"
//	  max_pages = 1000
//	}
type Config struct {
	NamesFile  string       `hcl:"names_file,optional"`
	Namespace  string       `hcl:"namespace,optional"`
	SocketPath string       `hcl:"socket_path,optional"`
	LogLevel   string       `hcl:"log_level,optional"`
	LogFormat  string       `hcl:"log_format,optional"`
	Color      *bool        `hcl:"color,optional"`
	Preprocess []string     `hcl:"preprocess,optional"`
	Fetch      *FetchConfig `hcl:"fetch,block"`
	Dump       *DumpConfig  `hcl:"dump,block"`
}

// FetchConfig configures downloading the template name list. A zero
// PageSize asks the API for its maximum.
type FetchConfig struct {
	Language string `hcl:"language,optional"`
	APIURL   string `hcl:"api_url,optional"`
	PageSize int    `hcl:"page_size,optional"`
}

// DumpConfig configures scanning an XML dump.
type DumpConfig struct {
	Path         string `hcl:"path,optional"`
	MaxPages     int    `hcl:"max_pages,optional"`
	TemplateOnly bool   `hcl:"template_only,optional"`
}

// DefaultConfig returns the configuration used without a config file.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads and decodes an HCL config file.
func LoadConfig(path string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}
	return decodeConfig(file, path)
}

// parseConfig decodes config source held in memory.
func parseConfig(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, diags)
	}
	return decodeConfig(file, filename)
}

func decodeConfig(file *hcl.File, filename string) (*Config, error) {
	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, configEvalContext(), &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config file %s: %w", filename, diags)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filename, err)
	}
	return &cfg, nil
}

// configEvalContext exposes the process environment as env.<NAME>.
func configEvalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 && pair[0] != "" {
			vars[pair[0]] = cty.StringVal(pair[1])
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vars),
		},
	}
}

func (c *Config) applyDefaults() {
	if c.SocketPath == "" {
		c.SocketPath = defaultSocketPath
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.Preprocess == nil {
		c.Preprocess = append([]string{}, DefaultPreprocess...)
	}
	if c.Fetch == nil {
		c.Fetch = &FetchConfig{}
	}
	if c.Fetch.Language == "" {
		c.Fetch.Language = defaultLanguage
	}
	if c.Namespace == "" {
		c.Namespace = namespaceForLanguage(c.Fetch.Language)
	}
	if c.Dump == nil {
		c.Dump = &DumpConfig{}
	}
}

func (c *Config) validate() error {
	if _, err := ValidateOperations(c.Preprocess); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be \"text\" or \"json\", got %q", c.LogFormat)
	}
	if c.Fetch.PageSize < 0 {
		return fmt.Errorf("fetch page_size must not be negative")
	}
	if c.Dump.MaxPages < 0 {
		return fmt.Errorf("dump max_pages must not be negative")
	}
	return nil
}

// UseColor reports whether colored output is enabled. It defaults to on.
func (c *Config) UseColor() bool {
	return c.Color == nil || *c.Color
}

// Endpoint is the MediaWiki API URL to fetch names from.
func (f *FetchConfig) Endpoint() string {
	if f.APIURL != "" {
		return f.APIURL
	}
	return fmt.Sprintf("https://%s.wikipedia.org/w/api.php", f.Language)
}

// namesFileName is the default name list file for a language.
func namesFileName(lang string) string {
	return lang + "_templates.txt"
}
