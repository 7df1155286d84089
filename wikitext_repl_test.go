package main

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input  string
		verb   string
		object string
		rest   []string
		desc   string
	}{
		{"show output", "show", "output", []string{"output"}, "Verb and object"},
		{"SHOW Stats", "show", "stats", []string{"Stats"}, "Lower-cases verb and object"},
		{"check Infobox person", "check", "infobox", []string{"Infobox", "person"}, "Rest keeps case"},
		{`set input "{{Foo|a b}}"`, "set", "input", []string{"input", "{{Foo|a b}}"}, "Quoted argument"},
		{"help", "help", "", nil, "Verb only"},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			cmd, err := ParseCommand(test.input)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if cmd.Verb != test.verb || cmd.Object != test.object {
				t.Errorf("Expected %s/%s, got %s/%s", test.verb, test.object, cmd.Verb, cmd.Object)
			}
			if strings.Join(cmd.Rest, "|") != strings.Join(test.rest, "|") {
				t.Errorf("Expected rest %q, got %q", test.rest, cmd.Rest)
			}
		})
	}

	if _, err := ParseCommand("   "); err == nil {
		t.Error("Expected error for empty command")
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"a b  c", []string{"a", "b", "c"}},
		{`a "b c" d`, []string{"a", "b c", "d"}},
		{`'x y'`, []string{"x y"}},
		{`a\ b`, []string{"a b"}},
	}

	for _, test := range tests {
		got := splitArgs(test.input)
		if strings.Join(got, "|") != strings.Join(test.expected, "|") {
			t.Errorf("splitArgs(%q) = %q, expected %q", test.input, got, test.expected)
		}
	}
}

// lines returns a LineReader over fixed input.
func lines(input ...string) LineReader {
	return func() (string, error) {
		if len(input) == 0 {
			return "", io.EOF
		}
		line := input[0]
		input = input[1:]
		return line, nil
	}
}

func TestReadMultiline(t *testing.T) {
	tests := []struct {
		input    []string
		expected string
		desc     string
	}{
		{[]string{"{{Foo", "|a}}", "exit!", "ignored"}, "{{Foo\n|a}}", "Ends at exit!"},
		{[]string{"{{Foo|a}}", "", "{{Foo|b}}", "exit!", "ignored"}, "{{Foo|a}}\n\n{{Foo|b}}", "Keeps blank lines"},
		{[]string{"text", "  exit!  "}, "text", "Trims the terminator"},
		{[]string{"one", "two"}, "one\ntwo", "Ends at EOF"},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			if got := readMultiline(lines(test.input...)); got != test.expected {
				t.Errorf("Expected %q, got %q", test.expected, got)
			}
		})
	}
}

func newTestREPL() (*REPLSession, *bytes.Buffer) {
	var out bytes.Buffer
	return NewREPLSession(newTestCore(), NewREPLFormatter(&out, false)), &out
}

func execREPL(t *testing.T, rs *REPLSession, line string, more ...string) error {
	t.Helper()
	cmd, err := ParseCommand(line)
	if err != nil {
		t.Fatalf("ParseCommand(%q): %v", line, err)
	}
	return rs.Execute(cmd, lines(more...))
}

func TestREPLSetAndShow(t *testing.T) {
	rs, out := newTestREPL()

	if err := execREPL(t, rs, "set input", "{{Foo", "|a}} {{Nope}}", "exit!"); err != nil {
		t.Fatalf("set input failed: %v", err)
	}
	if !strings.Contains(out.String(), "1 templates resolved, 1 false positives") {
		t.Errorf("Expected summary, got %q", out.String())
	}

	out.Reset()
	execREPL(t, rs, "show output")
	if !strings.Contains(out.String(), "ParsedTemplate(name is Foo, params are [1st (unnamed): a]) {{Nope}}") {
		t.Errorf("Unexpected output %q", out.String())
	}

	out.Reset()
	execREPL(t, rs, "show templates")
	if !strings.Contains(out.String(), "Foo") || !strings.Contains(out.String(), "1st (unnamed): a") {
		t.Errorf("Expected templates table, got %q", out.String())
	}

	out.Reset()
	execREPL(t, rs, "show stats")
	for _, want := range []string{"Last input", "Session"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected %q in stats, got %q", want, out.String())
		}
	}
}

func TestREPLSetKeepsParagraphs(t *testing.T) {
	rs, out := newTestREPL()

	if err := execREPL(t, rs, "set input", "{{Foo|a}}", "", "{{Foo|b}}", "exit!"); err != nil {
		t.Fatalf("set input failed: %v", err)
	}
	if strings.Contains(out.String(), "Unknown command") {
		t.Errorf("Input lines leaked into the command loop: %q", out.String())
	}
	if got := rs.commands.GetInputText(); got != "{{Foo|a}}\n\n{{Foo|b}}" {
		t.Errorf("Unexpected input %q", got)
	}
	if stats := rs.commands.GetLastStats(); stats.Resolved != 2 {
		t.Errorf("Expected both templates resolved, got %+v", stats)
	}
}

func TestREPLSetInlineKeepsText(t *testing.T) {
	rs, _ := newTestREPL()

	text := `{{Foo|Einstein's "theory"  a\b}} ''italic''`
	if err := execREPL(t, rs, "set input "+text); err != nil {
		t.Fatalf("set input failed: %v", err)
	}
	if got := rs.commands.GetInputText(); got != text {
		t.Errorf("Expected %q, got %q", text, got)
	}
}

func TestREPLCommandRemainder(t *testing.T) {
	cmd, err := ParseCommand("  set   input  a  'b'  ")
	if err != nil {
		t.Fatal(err)
	}
	if got := cmd.Remainder(2); got != "a  'b'" {
		t.Errorf("Expected %q, got %q", "a  'b'", got)
	}
	if got := cmd.Remainder(3); got != "'b'" {
		t.Errorf("Expected %q, got %q", "'b'", got)
	}
	if got := cmd.Remainder(5); got != "" {
		t.Errorf("Expected empty remainder, got %q", got)
	}
}

func TestREPLCheck(t *testing.T) {
	rs, out := newTestREPL()

	execREPL(t, rs, "check Infobox person")
	if !strings.Contains(out.String(), "Infobox person is a template") {
		t.Errorf("Unexpected output %q", out.String())
	}

	out.Reset()
	execREPL(t, rs, "check Inf")
	if !strings.Contains(out.String(), "Did you mean: Infobox") {
		t.Errorf("Expected suggestions, got %q", out.String())
	}
}

func TestREPLPreprocess(t *testing.T) {
	rs, out := newTestREPL()

	if err := execREPL(t, rs, "preprocess strip comments, normalize whitespace"); err != nil {
		t.Fatalf("preprocess failed: %v", err)
	}
	if !strings.Contains(out.String(), "Strip Comments, Normalize Whitespace") {
		t.Errorf("Unexpected output %q", out.String())
	}

	if err := execREPL(t, rs, "preprocess uppercase"); err == nil {
		t.Error("Expected error for unknown operation")
	}

	if err := execREPL(t, rs, "preprocess none"); err != nil {
		t.Fatalf("preprocess none failed: %v", err)
	}
	if ops := rs.commands.GetPreprocess(); len(ops) != 0 {
		t.Errorf("Expected no operations, got %v", ops)
	}
}

func TestREPLExportResetQuit(t *testing.T) {
	rs, out := newTestREPL()
	execREPL(t, rs, "set input {{Bar}}")

	out.Reset()
	if err := execREPL(t, rs, "export"); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(out.String(), `"name": "Bar"`) {
		t.Errorf("Expected export JSON, got %q", out.String())
	}

	execREPL(t, rs, "reset")
	if stats := rs.commands.GetStats(); stats.Resolved != 0 {
		t.Errorf("Expected reset stats, got %+v", stats)
	}

	if err := execREPL(t, rs, "quit"); !errors.Is(err, errExit) {
		t.Errorf("Expected errExit, got %v", err)
	}
}

func TestREPLUnknownCommand(t *testing.T) {
	rs, out := newTestREPL()
	if err := execREPL(t, rs, "frobnicate"); err != nil {
		t.Fatalf("Unknown commands should not fail, got %v", err)
	}
	if !strings.Contains(out.String(), "Unknown command: frobnicate") {
		t.Errorf("Unexpected output %q", out.String())
	}
}
