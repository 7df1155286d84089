package main

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Operation is a named text transformation applied to wikitext before
// template resolution.
type Operation struct {
	Name        string
	Description string
	Func        func(input string) string
}

// OpNormalizeWhitespace is the operation every resolution depends on: the
// engine expects one line with single spaces.
const OpNormalizeWhitespace = "Normalize Whitespace"

// DefaultPreprocess is used when no preprocessing is configured.
var DefaultPreprocess = []string{OpNormalizeWhitespace}

// GetOperations returns all available preprocessing operations
func GetOperations() []Operation {
	return []Operation{
		{OpNormalizeWhitespace, "Join lines and collapse whitespace runs to one space", normalizeWhitespace},
		{"Strip Comments", "Remove <!-- ... --> comments", stripComments},
		{"HTML Decode", "Decode HTML entities such as &lt; and &amp;", htmlDecode},
		{"Strip Tags", "Remove HTML/XML tags, keeping their text", stripTags},
		{"Trim", "Remove leading and trailing whitespace", trim},
	}
}

// LookupOperation finds an operation by name, ignoring case.
func LookupOperation(name string) (Operation, bool) {
	for _, op := range GetOperations() {
		if strings.EqualFold(op.Name, strings.TrimSpace(name)) {
			return op, true
		}
	}
	return Operation{}, false
}

// ValidateOperations checks that every name refers to a known operation and
// returns the canonical names.
func ValidateOperations(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, name := range names {
		op, ok := LookupOperation(name)
		if !ok {
			return nil, fmt.Errorf("unknown preprocess operation: %q", name)
		}
		out = append(out, op.Name)
	}
	return out, nil
}

// ProcessText applies the named operations to input in order. Unknown names
// are skipped.
func ProcessText(input string, names []string) string {
	output := input
	for _, name := range names {
		if op, ok := LookupOperation(name); ok {
			output = op.Func(output)
		}
	}
	return output
}

// Operation implementations

func normalizeWhitespace(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

var commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)

func stripComments(input string) string {
	return commentRe.ReplaceAllString(input, "")
}

func htmlDecode(input string) string {
	return html.UnescapeString(input)
}

// stripTags removes HTML/XML tags
func stripTags(input string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		// Fallback to simple regex-based tag stripping
		re := regexp.MustCompile(`<[^>]*>`)
		return html.UnescapeString(re.ReplaceAllString(input, ""))
	}

	doc.Find("script, style").Remove()

	return doc.Text()
}

func trim(input string) string {
	return strings.TrimSpace(input)
}
