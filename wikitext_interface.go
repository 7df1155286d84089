package main

import "github.com/pstuifzand/go-wikitemplates/wikitemplate"

// WikiTextCommands defines the interface for all session operations.
// Both WikiTextCore (direct implementation) and SocketClientCommands (socket wrapper)
// implement this interface, so the REPL works the same against either.
type WikiTextCommands interface {
	// =========================================================================
	// Text Processing - Set input, read results
	// =========================================================================

	// SetInputText sets the wikitext to preprocess and resolve
	SetInputText(text string)

	// GetInputText returns the current input text
	GetInputText() string

	// GetOutputText returns the input with templates replaced by their renderings
	GetOutputText() string

	// GetTemplates returns the structured templates found in the current input
	GetTemplates() []wikitemplate.Invocation

	// =========================================================================
	// Session - Counters, name checks and reset
	// =========================================================================

	// GetStats returns the cumulative session statistics
	GetStats() wikitemplate.Stats

	// GetLastStats returns the statistics of the current input only
	GetLastStats() wikitemplate.Stats

	// GetKnownNames returns the template names confirmed so far
	GetKnownNames() []string

	// CheckName reports whether a name is a template, with suggestions if not
	CheckName(name string) (bool, []string)

	// ResetSession clears the cache, counters and text
	ResetSession()

	// =========================================================================
	// Preprocessing
	// =========================================================================

	// SetPreprocess sets the operations applied before resolution
	SetPreprocess(names []string) error

	// GetPreprocess returns the operations applied before resolution
	GetPreprocess() []string

	// =========================================================================
	// Export
	// =========================================================================

	// ExportTemplates returns output, templates and stats as a JSON string
	ExportTemplates() (string, error)
}

var (
	_ WikiTextCommands = (*WikiTextCore)(nil)
	_ WikiTextCommands = (*SocketClientCommands)(nil)
)
