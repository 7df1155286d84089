package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/pstuifzand/go-wikitemplates/wikitemplate"
)

// suggestionLimit caps "did you mean" candidates for a rejected name.
const suggestionLimit = 5

// WikiTextCore is the headless core: one template resolution session plus
// the last input and its results.
type WikiTextCore struct {
	names      wikitemplate.NameSet
	engine     *wikitemplate.Engine
	preprocess []string
	inputText  string
	outputText string
	templates  []wikitemplate.Invocation
	lastStats  wikitemplate.Stats
}

// NewWikiTextCore creates a core that validates template names against
// names.
func NewWikiTextCore(names wikitemplate.NameSet, opts ...wikitemplate.Option) *WikiTextCore {
	if names == nil {
		names = wikitemplate.NewNameSet()
	}
	return &WikiTextCore{
		names:      names,
		engine:     wikitemplate.New(names, opts...),
		preprocess: append([]string{}, DefaultPreprocess...),
	}
}

// loadNameSet reads a template name list written by the fetcher.
func loadNameSet(path string) (wikitemplate.NameSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open template names: %w", err)
	}
	defer f.Close()

	names, err := wikitemplate.LoadNames(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return names, nil
}

// newEngineOptions builds the engine options shared by every entry point.
func newEngineOptions(namespace string, logger *slog.Logger) []wikitemplate.Option {
	opts := []wikitemplate.Option{wikitemplate.WithNamespace(namespace)}
	if logger != nil {
		opts = append(opts, wikitemplate.WithLogger(logger))
	}
	return opts
}

// ============================================================================
// Text Processing Methods
// ============================================================================

// SetInputText sets the input text and resolves it
func (wc *WikiTextCore) SetInputText(text string) {
	wc.inputText = text
	wc.processText()
}

// GetInputText returns the current input text
func (wc *WikiTextCore) GetInputText() string {
	return wc.inputText
}

// GetOutputText returns the input with every template replaced by its rendering
func (wc *WikiTextCore) GetOutputText() string {
	return wc.outputText
}

// GetTemplates returns the templates resolved from the current input
func (wc *WikiTextCore) GetTemplates() []wikitemplate.Invocation {
	return append([]wikitemplate.Invocation{}, wc.templates...)
}

// processText runs preprocessing and resolution on the input text.
// The session counters keep accumulating; lastStats holds this run only.
func (wc *WikiTextCore) processText() {
	before := wc.engine.Stats()
	text := ProcessText(wc.inputText, wc.preprocess)

	var found []wikitemplate.Invocation
	output, stats := wc.engine.ResolveFunc(text, func(inv wikitemplate.Invocation) {
		found = append(found, inv)
	})

	wc.outputText = output
	wc.templates = found
	wc.lastStats = stats.Sub(before)
}

// ============================================================================
// Session Methods
// ============================================================================

// GetStats returns the session counters
func (wc *WikiTextCore) GetStats() wikitemplate.Stats {
	return wc.engine.Stats()
}

// GetLastStats returns the counters of the most recent input only
func (wc *WikiTextCore) GetLastStats() wikitemplate.Stats {
	return wc.lastStats
}

// GetKnownNames returns the names confirmed during this session
func (wc *WikiTextCore) GetKnownNames() []string {
	return wc.engine.Registry().Known()
}

// CheckName reports whether name is a known template. It does not touch the
// session cache. Unknown names come with close matches from the name list.
func (wc *WikiTextCore) CheckName(name string) (bool, []string) {
	namespace := wc.engine.Registry().Namespace()
	if wikitemplate.NewRegistry(wc.names, namespace).IsKnown(name) {
		return true, nil
	}
	return false, wc.names.Suggest(namespace, name, suggestionLimit)
}

// ResetSession clears the name cache, the counters and the current text
func (wc *WikiTextCore) ResetSession() {
	wc.engine.Reset()
	wc.inputText = ""
	wc.outputText = ""
	wc.templates = nil
	wc.lastStats = wikitemplate.Stats{}
}

// SetPreprocess replaces the preprocessing operations and re-resolves the
// current input. The new run replaces the old one in the session counters.
func (wc *WikiTextCore) SetPreprocess(names []string) error {
	canonical, err := ValidateOperations(names)
	if err != nil {
		return err
	}
	wc.preprocess = canonical
	if wc.inputText != "" {
		wc.engine.Retract(wc.lastStats)
		wc.processText()
	}
	return nil
}

// GetPreprocess returns the preprocessing operation names
func (wc *WikiTextCore) GetPreprocess() []string {
	return append([]string{}, wc.preprocess...)
}

// ============================================================================
// Export
// ============================================================================

// TemplateExport is the exported form of one resolution.
type TemplateExport struct {
	Output    string                    `json:"output"`
	Templates []wikitemplate.Invocation `json:"templates"`
	Stats     wikitemplate.Stats        `json:"stats"`
}

// ExportTemplates exports the current results as a JSON string
func (wc *WikiTextCore) ExportTemplates() (string, error) {
	export := TemplateExport{
		Output:    wc.outputText,
		Templates: wc.GetTemplates(),
		Stats:     wc.lastStats,
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
