package wikitemplate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Absent is the value of a positional parameter that was left empty, as in
// the second slot of {{Foo|a||c}}.
const Absent = "None"

// ErrNameRejected matches every *NameRejectedError.
var ErrNameRejected = errors.New("template name rejected")

// NameRejectedError reports an invocation whose name is not a known
// template. Raw is the invocation exactly as it appeared in the text.
type NameRejectedError struct {
	Name string
	Raw  string
}

func (e *NameRejectedError) Error() string {
	return fmt.Sprintf("false positive template %q", e.Name)
}

// Is makes errors.Is(err, ErrNameRejected) work.
func (e *NameRejectedError) Is(target error) bool {
	return target == ErrNameRejected
}

// Parameter is one argument of an invocation. Named parameters have a Key;
// positional ones have a 1-based Position instead.
type Parameter struct {
	Key      string `json:"key,omitempty"`
	Position int    `json:"position,omitempty"`
	Value    string `json:"value"`
	Absent   bool   `json:"absent,omitempty"`
}

// Named reports whether the parameter was given as key=value.
func (p Parameter) Named() bool {
	return p.Position == 0
}

// Label is the key of a named parameter or "<ordinal> (unnamed)".
func (p Parameter) Label() string {
	if p.Named() {
		return p.Key
	}
	return Ordinal(p.Position) + " (unnamed)"
}

func (p Parameter) String() string {
	return p.Label() + ": " + p.Value
}

// Invocation is one {{...}} call site.
type Invocation struct {
	Raw    string      `json:"raw"`
	Name   string      `json:"name"`
	Params []Parameter `json:"params,omitempty"`
}

// Param returns the first parameter whose Label or Key equals label.
func (inv Invocation) Param(label string) (Parameter, bool) {
	for _, p := range inv.Params {
		if p.Key == label || p.Label() == label {
			return p, true
		}
	}
	return Parameter{}, false
}

// Parse splits an innermost invocation into its name and parameters without
// checking the name.
func Parse(raw string) Invocation {
	return newInvocation(raw, Split(stripBraces(raw), '|', WikiLink))
}

// newInvocation builds an Invocation from the pipe-separated segments of its
// body. Segment 0 is the name and is not numbered.
func newInvocation(raw string, segments []string) Invocation {
	inv := Invocation{
		Raw:  raw,
		Name: strings.TrimSpace(segments[0]),
	}
	for i, segment := range segments[1:] {
		inv.Params = append(inv.Params, parseParameter(segment, i+1))
	}
	return inv
}

func parseParameter(segment string, index int) Parameter {
	parts := SplitN(segment, '=', Tag, 2)
	if len(parts) == 2 {
		return Parameter{
			Key:   strings.TrimSpace(parts[0]),
			Value: strings.TrimSpace(parts[1]),
		}
	}

	p := Parameter{Position: index, Value: strings.TrimSpace(parts[0])}
	if p.Value == "" {
		p.Value = Absent
		p.Absent = true
	}
	return p
}

// stripBraces removes up to two braces from each end.
func stripBraces(s string) string {
	for i := 0; i < 2 && strings.HasPrefix(s, "{"); i++ {
		s = s[1:]
	}
	for i := 0; i < 2 && strings.HasSuffix(s, "}"); i++ {
		s = s[:len(s)-1]
	}
	return s
}

// Ordinal formats n as 1st, 2nd, 3rd, 4th, ..., 11th, 12th, 13th, ..., 21st.
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
