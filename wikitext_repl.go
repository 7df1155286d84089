package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/pstuifzand/go-wikitemplates/wikitemplate"
)

const replPrompt = "wikitemplates> "

// endOfInput terminates multi-line input. Blank lines are part of the text.
const endOfInput = "exit!"

// errExit is returned by a command that ends the session.
var errExit = errors.New("exit")

// REPLCommand represents a parsed command
type REPLCommand struct {
	Verb   string
	Object string
	Args   []string
	// Rest is everything after the verb in its original case.
	Rest []string
	// Line is the command as typed, without surrounding whitespace.
	Line string
}

// Remainder returns Line with its first n words removed, untokenized.
func (c *REPLCommand) Remainder(n int) string {
	s := c.Line
	for i := 0; i < n && s != ""; i++ {
		idx := strings.IndexAny(s, " \t")
		if idx < 0 {
			return ""
		}
		s = strings.TrimLeft(s[idx:], " \t")
	}
	return s
}

// REPLFormatter handles output formatting
type REPLFormatter struct {
	out      io.Writer
	useColor bool
}

// NewREPLFormatter creates a new formatter writing to out
func NewREPLFormatter(out io.Writer, useColor bool) *REPLFormatter {
	if out == nil {
		out = os.Stdout
	}
	return &REPLFormatter{out: out, useColor: useColor}
}

func (f *REPLFormatter) print(attr color.Attribute, format string, args ...interface{}) {
	if f.useColor {
		c := color.New(attr)
		c.EnableColor()
		c.Fprintf(f.out, format, args...)
		return
	}
	fmt.Fprintf(f.out, format, args...)
}

// PrintSuccess prints a success message
func (f *REPLFormatter) PrintSuccess(message string) {
	f.print(color.FgGreen, "✓ %s\n", message)
}

// PrintError prints an error message
func (f *REPLFormatter) PrintError(message string) {
	f.print(color.FgRed, "✗ Error: %s\n", message)
}

// PrintInfo prints an info message
func (f *REPLFormatter) PrintInfo(message string) {
	f.print(color.FgCyan, "ℹ %s\n", message)
}

// PrintText prints text as is
func (f *REPLFormatter) PrintText(text string) {
	fmt.Fprintln(f.out, text)
}

// PrintTable prints a formatted table
func (f *REPLFormatter) PrintTable(headers []string, rows [][]string) {
	if len(headers) == 0 {
		return
	}

	table := tablewriter.NewWriter(f.out)
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	table.Header(header...)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			f.PrintError("Failed to format table: " + err.Error())
			return
		}
	}
	if err := table.Render(); err != nil {
		f.PrintError("Failed to format table: " + err.Error())
	}
}

// ParseCommand parses a verb-first command string
func ParseCommand(input string) (*REPLCommand, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty command")
	}

	parts := splitArgs(input)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := &REPLCommand{
		Verb: strings.ToLower(parts[0]),
		Line: input,
	}

	if len(parts) > 1 {
		cmd.Object = strings.ToLower(parts[1])
		cmd.Args = parts[2:]
		cmd.Rest = parts[1:]
	}

	return cmd, nil
}

// splitArgs splits a command string into arguments, respecting quotes
func splitArgs(input string) []string {
	var args []string
	var current strings.Builder
	inQuotes := false
	quoteChar := rune(0)
	escaped := false

	for _, ch := range input {
		if escaped {
			current.WriteRune(ch)
			escaped = false
			continue
		}

		if ch == '\\' {
			escaped = true
			continue
		}

		if (ch == '"' || ch == '\'') && !inQuotes {
			inQuotes = true
			quoteChar = ch
			continue
		}

		if ch == quoteChar && inQuotes {
			inQuotes = false
			quoteChar = 0
			continue
		}

		if ch == ' ' && !inQuotes {
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
			continue
		}

		current.WriteRune(ch)
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}

	return args
}

// LineReader supplies further input lines for multi-line commands.
// It returns io.EOF when no more input is available.
type LineReader func() (string, error)

// readMultiline collects lines until endOfInput or EOF.
func readMultiline(next LineReader) string {
	var lines []string
	for {
		line, err := next()
		if err != nil {
			break
		}
		if strings.TrimSpace(line) == endOfInput {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// REPLSession manages the REPL interactive session
type REPLSession struct {
	commands  WikiTextCommands
	formatter *REPLFormatter
	history   []string
}

// NewREPLSession creates a new REPL session over commands
func NewREPLSession(commands WikiTextCommands, formatter *REPLFormatter) *REPLSession {
	return &REPLSession{
		commands:  commands,
		formatter: formatter,
		history:   make([]string, 0),
	}
}

// Run starts the interactive REPL loop
func (rs *REPLSession) Run() error {
	rl, err := readline.New(replPrompt)
	if err != nil {
		return err
	}
	defer rl.Close()

	rs.formatter.PrintInfo("Wiki template REPL")
	rs.formatter.PrintInfo("Type 'help' for available commands")

	next := func() (string, error) {
		for {
			line, err := rl.Readline()
			if err == readline.ErrInterrupt {
				continue
			}
			return line, err
		}
	}

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(rs.formatter.out)
				break
			}
			rs.formatter.PrintError(err.Error())
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rs.history = append(rs.history, line)

		cmd, err := ParseCommand(line)
		if err != nil {
			rs.formatter.PrintError(err.Error())
			continue
		}

		rl.SetPrompt("")
		err = rs.Execute(cmd, next)
		rl.SetPrompt(replPrompt)
		if err != nil {
			if errors.Is(err, errExit) {
				break
			}
			rs.formatter.PrintError(err.Error())
		}
	}

	rs.formatter.PrintInfo("Goodbye!")
	return nil
}

// Execute runs one command. next is used by commands that read further lines.
func (rs *REPLSession) Execute(cmd *REPLCommand, next LineReader) error {
	switch cmd.Verb {
	case "set":
		return rs.handleSet(cmd, next)
	case "show":
		return rs.handleShow(cmd)
	case "check":
		return rs.handleCheck(cmd)
	case "preprocess":
		return rs.handlePreprocess(cmd)
	case "reset":
		rs.commands.ResetSession()
		rs.formatter.PrintSuccess("Session reset")
		return nil
	case "export":
		data, err := rs.commands.ExportTemplates()
		if err != nil {
			return err
		}
		rs.formatter.PrintText(data)
		return nil
	case "help":
		rs.showHelp()
		return nil
	case "quit", "exit":
		return errExit
	case "clear":
		fmt.Fprint(rs.formatter.out, "\033[2J\033[H")
		return nil
	default:
		rs.formatter.PrintError(fmt.Sprintf("Unknown command: %s", cmd.Verb))
		rs.formatter.PrintInfo("Type 'help' for available commands")
		return nil
	}
}

// Command handlers

func (rs *REPLSession) handleSet(cmd *REPLCommand, next LineReader) error {
	if cmd.Object != "input" {
		rs.formatter.PrintError("set requires 'input' argument")
		return nil
	}

	var text string
	if inline := cmd.Remainder(2); inline != "" {
		text = inline
	} else {
		rs.formatter.PrintInfo(fmt.Sprintf("Enter wikitext (end with a line %q):", endOfInput))
		text = readMultiline(next)
	}

	rs.commands.SetInputText(text)
	stats := rs.commands.GetLastStats()
	rs.formatter.PrintSuccess(fmt.Sprintf("Input set: %d templates resolved, %d false positives",
		stats.Resolved, stats.FalsePositives))
	return nil
}

func (rs *REPLSession) handleShow(cmd *REPLCommand) error {
	switch cmd.Object {
	case "output":
		rs.formatter.PrintText(rs.commands.GetOutputText())
	case "input":
		rs.formatter.PrintText(rs.commands.GetInputText())
	case "templates":
		templates := rs.commands.GetTemplates()
		if len(templates) == 0 {
			rs.formatter.PrintInfo("No templates")
			return nil
		}
		rows := make([][]string, 0, len(templates))
		for i, inv := range templates {
			params := make([]string, len(inv.Params))
			for j, p := range inv.Params {
				params[j] = p.String()
			}
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				inv.Name,
				shortenString(strings.Join(params, "; "), 60),
			})
		}
		rs.formatter.PrintTable([]string{"#", "Name", "Parameters"}, rows)
	case "stats":
		last := rs.commands.GetLastStats()
		session := rs.commands.GetStats()
		rs.formatter.PrintTable(statsHeaders, [][]string{
			statsRow("Last input", last),
			statsRow("Session", session),
		})
	case "preprocess":
		ops := rs.commands.GetPreprocess()
		if len(ops) == 0 {
			rs.formatter.PrintInfo("No preprocessing")
			return nil
		}
		rows := make([][]string, len(ops))
		for i, name := range ops {
			desc := ""
			if op, ok := LookupOperation(name); ok {
				desc = op.Description
			}
			rows[i] = []string{strconv.Itoa(i + 1), name, desc}
		}
		rs.formatter.PrintTable([]string{"#", "Operation", "Description"}, rows)
	case "known":
		names := rs.commands.GetKnownNames()
		rs.formatter.PrintInfo(fmt.Sprintf("%d known templates", len(names)))
		for _, name := range names {
			fmt.Fprintf(rs.formatter.out, "  • %s\n", name)
		}
	default:
		rs.formatter.PrintError("show requires 'output', 'input', 'templates', 'stats', 'preprocess' or 'known'")
	}
	return nil
}

func (rs *REPLSession) handleCheck(cmd *REPLCommand) error {
	// Names are case sensitive after the first rune, so use Rest.
	if len(cmd.Rest) == 0 {
		rs.formatter.PrintError("check requires a template name")
		return nil
	}
	name := strings.Join(cmd.Rest, " ")

	known, suggestions := rs.commands.CheckName(name)
	if known {
		rs.formatter.PrintSuccess(fmt.Sprintf("%s is a template", name))
		return nil
	}
	rs.formatter.PrintError(fmt.Sprintf("%s is not a template", name))
	if len(suggestions) > 0 {
		rs.formatter.PrintInfo("Did you mean: " + strings.Join(suggestions, ", "))
	}
	return nil
}

func (rs *REPLSession) handlePreprocess(cmd *REPLCommand) error {
	if cmd.Object == "" {
		return rs.handleShow(&REPLCommand{Verb: "show", Object: "preprocess"})
	}

	joined := strings.Join(cmd.Rest, " ")
	var names []string
	if !strings.EqualFold(joined, "none") {
		for _, part := range strings.Split(joined, ",") {
			if part = strings.TrimSpace(part); part != "" {
				names = append(names, part)
			}
		}
	}

	if err := rs.commands.SetPreprocess(names); err != nil {
		return err
	}
	rs.formatter.PrintSuccess("Preprocessing: " + strings.Join(rs.commands.GetPreprocess(), ", "))
	return nil
}

func (rs *REPLSession) showHelp() {
	help := `
Wiki Template REPL - Available Commands
=======================================

TEXT:
  set input <text>            Set input wikitext and resolve it
  set input                   Enter multi-line input (end with a line exit!)
  show input                  Show the current input
  show output                 Show the text with templates replaced

RESULTS:
  show templates              List resolved templates
  show stats                  Show counters for the last input and the session
  show known                  List template names confirmed this session
  check <name>                Check whether a name is a template
  export                      Export output, templates and stats as JSON

PREPROCESSING:
  preprocess                  Show preprocessing operations
  preprocess <op>[,<op>...]   Set preprocessing operations
  preprocess none             Disable preprocessing

UTILITIES:
  reset                       Clear the name cache and counters
  help                        Show this help
  clear                       Clear the screen
  quit, exit                  Exit the REPL
`
	fmt.Fprint(rs.formatter.out, help)
}

// Helper functions

var statsHeaders = []string{"Scope", "Templates found", "Unique templates identified", "False positives"}

func statsRow(scope string, s wikitemplate.Stats) []string {
	return []string{
		scope,
		strconv.Itoa(s.Resolved),
		strconv.Itoa(s.Unique),
		strconv.Itoa(s.FalsePositives),
	}
}

func shortenString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
