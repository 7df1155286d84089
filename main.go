package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/pstuifzand/go-wikitemplates/wikitemplate"
)

// exitError carries a process exit code.
type exitError struct {
	Code    int
	Message string
}

func (e *exitError) Error() string {
	return e.Message
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:])
	stop()
	if err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cliOptions are the parsed command line flags.
type cliOptions struct {
	configPath    string
	namesFile     string
	namespace     string
	inputPath     string
	socketPath    string
	serve         bool
	repl          bool
	fetchLang     string
	dumpPath      string
	maxPages      int
	templatesOnly bool
	jsonOutput    bool
	logLevel      string
	logFormat     string
	noColor       bool

	// set records which flags were given explicitly.
	set map[string]bool
}

// parseFlags processes command-line arguments. It returns the options, a
// boolean indicating the program should exit cleanly, or an exitError.
func parseFlags(args []string, output io.Writer) (*cliOptions, bool, error) {
	fs := flag.NewFlagSet("wikitemplates", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprint(output, `
wikitemplates - resolve MediaWiki template invocations in wikitext.

Usage:
  wikitemplates [options] [FILE]        resolve FILE or stdin and print the result
  wikitemplates -repl                   interactive session
  wikitemplates -serve                  serve a session on a Unix socket
  wikitemplates -fetch sk               download sk_templates.txt
  wikitemplates -dump skwiki.xml        scan a pages-articles dump to JSON lines

Options:
`)
		fs.PrintDefaults()
	}

	opts := &cliOptions{set: make(map[string]bool)}
	fs.StringVar(&opts.configPath, "config", "", "Path to an HCL config file.")
	fs.StringVar(&opts.namesFile, "names", "", "File with known template titles, one per line.")
	fs.StringVar(&opts.namespace, "namespace", "", "Template namespace name, e.g. 'Šablóna'.")
	fs.StringVar(&opts.inputPath, "input", "", "Wikitext file to resolve. Defaults to stdin.")
	fs.StringVar(&opts.socketPath, "socket", "", "Unix socket path for -serve, or to connect -repl to a server.")
	fs.BoolVar(&opts.serve, "serve", false, "Serve a session over the Unix socket.")
	fs.BoolVar(&opts.repl, "repl", false, "Start the interactive REPL.")
	fs.StringVar(&opts.fetchLang, "fetch", "", "Download the template name list of a Wikipedia language.")
	fs.StringVar(&opts.dumpPath, "dump", "", "Scan a pages-articles XML dump.")
	fs.IntVar(&opts.maxPages, "pages", 0, "Stop the dump scan after this many pages. 0 scans all.")
	fs.BoolVar(&opts.templatesOnly, "templates-only", false, "Emit only template namespace pages from the dump.")
	fs.BoolVar(&opts.jsonOutput, "json", false, "Print results as JSON.")
	fs.StringVar(&opts.logLevel, "log-level", "", "Logging level. Options: 'debug', 'info', 'warn', 'error'.")
	fs.StringVar(&opts.logFormat, "log-format", "", "Log output format. Options: 'text' or 'json'.")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable colored output.")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &exitError{Code: 2, Message: err.Error()}
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	if opts.inputPath == "" && fs.NArg() > 0 {
		opts.inputPath = fs.Arg(0)
	}

	modes := 0
	for _, m := range []bool{opts.serve, opts.repl, opts.fetchLang != "", opts.dumpPath != ""} {
		if m {
			modes++
		}
	}
	if modes > 1 {
		return nil, false, &exitError{Code: 2, Message: "only one of -serve, -repl, -fetch and -dump may be given"}
	}

	if opts.logFormat != "" {
		opts.logFormat = strings.ToLower(opts.logFormat)
		if opts.logFormat != "text" && opts.logFormat != "json" {
			return nil, false, &exitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
		}
	}
	if opts.logLevel != "" {
		opts.logLevel = strings.ToLower(opts.logLevel)
		switch opts.logLevel {
		case "debug", "info", "warn", "error":
		default:
			return nil, false, &exitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
		}
	}
	if opts.maxPages < 0 {
		return nil, false, &exitError{Code: 2, Message: "invalid pages: must not be negative"}
	}

	return opts, false, nil
}

// buildConfig loads the config file, if any, and applies flag overrides.
func buildConfig(opts *cliOptions) (*Config, error) {
	cfg := DefaultConfig()
	if opts.configPath != "" {
		loaded, err := LoadConfig(opts.configPath)
		if err != nil {
			return nil, &exitError{Code: 2, Message: err.Error()}
		}
		cfg = loaded
	}

	if opts.fetchLang != "" {
		cfg.Fetch.Language = opts.fetchLang
		if !opts.set["namespace"] {
			cfg.Namespace = namespaceForLanguage(opts.fetchLang)
		}
	}
	if opts.set["names"] {
		cfg.NamesFile = opts.namesFile
	}
	if opts.set["namespace"] {
		cfg.Namespace = opts.namespace
	}
	if opts.set["socket"] {
		cfg.SocketPath = opts.socketPath
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.LogFormat = opts.logFormat
	}
	if opts.noColor {
		off := false
		cfg.Color = &off
	}
	if opts.dumpPath != "" {
		cfg.Dump.Path = opts.dumpPath
	}
	if opts.set["pages"] {
		cfg.Dump.MaxPages = opts.maxPages
	}
	if opts.templatesOnly {
		cfg.Dump.TemplateOnly = true
	}
	if cfg.NamesFile == "" {
		cfg.NamesFile = namesFileName(cfg.Fetch.Language)
	}
	return cfg, nil
}

// run encapsulates the application logic for easier testing and error handling.
func run(ctx context.Context, inR io.Reader, outW, errW io.Writer, args []string) error {
	opts, shouldExit, err := parseFlags(args, errW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	cfg, err := buildConfig(opts)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat, errW)
	useColor := cfg.UseColor()
	color.NoColor = !useColor
	formatter := NewREPLFormatter(outW, useColor)

	switch {
	case opts.fetchLang != "":
		return runFetch(ctx, cfg, logger)
	case opts.repl && opts.set["socket"]:
		return runRemoteREPL(cfg, formatter, logger)
	}

	core, err := newCoreFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	switch {
	case opts.serve:
		return runServe(ctx, cfg, core, logger)
	case opts.repl:
		return NewREPLSession(core, formatter).Run()
	case opts.dumpPath != "" || (cfg.Dump.Path != "" && opts.inputPath == ""):
		return runDump(ctx, cfg, core, outW, errW, logger)
	default:
		return runResolve(opts, core, inR, outW, formatter)
	}
}

// newCoreFromConfig loads the name list and builds a session core.
func newCoreFromConfig(cfg *Config, logger *slog.Logger) (*WikiTextCore, error) {
	names, err := loadNameSet(cfg.NamesFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &exitError{Code: 2, Message: fmt.Sprintf(
				"template name list %s not found; pass -names or download it with -fetch %s",
				cfg.NamesFile, cfg.Fetch.Language)}
		}
		return nil, err
	}
	logger.Info("Loaded template names", "file", cfg.NamesFile, "count", names.Len(), "namespace", cfg.Namespace)

	core := NewWikiTextCore(names, newEngineOptions(cfg.Namespace, logger)...)
	if err := core.SetPreprocess(cfg.Preprocess); err != nil {
		return nil, &exitError{Code: 2, Message: err.Error()}
	}
	return core, nil
}

func runResolve(opts *cliOptions, core *WikiTextCore, inR io.Reader, outW io.Writer, formatter *REPLFormatter) error {
	in := inR
	if opts.inputPath != "" && opts.inputPath != "-" {
		f, err := os.Open(opts.inputPath)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	core.SetInputText(string(data))

	if opts.jsonOutput {
		export, err := core.ExportTemplates()
		if err != nil {
			return err
		}
		fmt.Fprintln(outW, export)
		return nil
	}

	fmt.Fprintln(outW, core.GetOutputText())
	fmt.Fprintln(outW)
	printStats(formatter, core.GetStats())
	return nil
}

// printStats prints the session counters as a table.
func printStats(formatter *REPLFormatter, stats wikitemplate.Stats) {
	formatter.PrintTable(
		[]string{"Templates found", "Unique templates identified", "False positives"},
		[][]string{{
			strconv.Itoa(stats.Resolved),
			strconv.Itoa(stats.Unique),
			strconv.Itoa(stats.FalsePositives),
		}},
	)
}

func runServe(ctx context.Context, cfg *Config, core *WikiTextCore, logger *slog.Logger) error {
	server := NewSocketServer(cfg.SocketPath, core, logger)
	if err := server.Start(); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		server.Stop()
	}()

	server.Wait()
	logger.Info("Socket server stopped")
	return nil
}

func runRemoteREPL(cfg *Config, formatter *REPLFormatter, logger *slog.Logger) error {
	client, err := NewSocketClient(cfg.SocketPath)
	if err != nil {
		return err
	}
	defer client.Close()

	return NewREPLSession(NewSocketClientCommands(client, logger), formatter).Run()
}

func runFetch(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	path := cfg.NamesFile
	fetcher := &NameFetcher{
		Client:    &http.Client{Timeout: 60 * time.Second},
		APIURL:    cfg.Fetch.Endpoint(),
		Namespace: templateNamespaceID,
		PageSize:  cfg.Fetch.PageSize,
		Logger:    logger,
	}

	logger.Info("Fetching template names", "url", fetcher.APIURL, "file", path)
	n, err := fetchNamesFile(ctx, fetcher, path)
	if errors.Is(err, errNamesExist) {
		logger.Info("Template name list already exists, skipping download", "file", path)
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("Fetched template names", "file", path, "count", n)
	return nil
}

func runDump(ctx context.Context, cfg *Config, core *WikiTextCore, outW, errW io.Writer, logger *slog.Logger) error {
	f, err := os.Open(cfg.Dump.Path)
	if err != nil {
		return fmt.Errorf("open dump: %w", err)
	}
	defer f.Close()

	result, err := ScanDump(ctx, f, core, DumpOptions{
		Namespace:    cfg.Namespace,
		MaxPages:     cfg.Dump.MaxPages,
		TemplateOnly: cfg.Dump.TemplateOnly,
		Logger:       logger,
	}, jsonLinesEmitter(outW))
	if err != nil {
		return err
	}

	logger.Info("Dump scanned",
		"pages", result.Pages,
		"emitted", result.Emitted,
		"namespace_key", result.NamespaceKey,
		"templates_found", result.Stats.Resolved,
		"unique_templates", result.Stats.Unique,
		"false_positives", result.Stats.FalsePositives)
	printStats(NewREPLFormatter(errW, false), result.Stats)
	return nil
}
