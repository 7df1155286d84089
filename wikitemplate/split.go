package wikitemplate

import "strings"

// Scope is a bracketed region in which a delimiter is not a delimiter.
type Scope struct {
	Open  string
	Close string
}

var (
	// WikiLink suppresses pipes inside [[target|label]].
	WikiLink = Scope{Open: "[[", Close: "]]"}
	// Tag suppresses equals signs inside raw markup such as <ref name=x>.
	Tag = Scope{Open: "<", Close: ">"}
)

// Split splits text on every delim that is not inside scope.
func Split(text string, delim byte, scope Scope) []string {
	return SplitN(text, delim, scope, -1)
}

// SplitN is like Split but returns at most n parts; the last part holds the
// unsplit remainder. n <= 0 means no limit.
//
// Scopes are not nested: an Open suppresses splitting until the next Close
// or the end of the line, whichever comes first. An Open that is never
// closed suppresses splitting for the rest of the line.
func SplitN(text string, delim byte, scope Scope, n int) []string {
	var parts []string
	start := 0
	inside := false

	for i := 0; i < len(text); {
		if n > 0 && len(parts) == n-1 {
			break
		}
		switch {
		case text[i] == '\n':
			inside = false
		case !inside && strings.HasPrefix(text[i:], scope.Open):
			inside = true
			i += len(scope.Open)
			continue
		case inside && strings.HasPrefix(text[i:], scope.Close):
			inside = false
			i += len(scope.Close)
			continue
		}
		if !inside && text[i] == delim {
			parts = append(parts, text[start:i])
			start = i + 1
		}
		i++
	}

	return append(parts, text[start:])
}
