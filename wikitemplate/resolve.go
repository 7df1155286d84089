package wikitemplate

import (
	"strconv"
	"strings"
)

// Resolve rewrites every template invocation in text, innermost first, and
// returns the result with the session counters.
func (e *Engine) Resolve(text string) (string, Stats) {
	return e.ResolveFunc(text, nil)
}

// Templates returns the structured form of every invocation resolved in
// text, in resolution order.
func (e *Engine) Templates(text string) ([]Invocation, Stats) {
	var found []Invocation
	_, stats := e.ResolveFunc(text, func(inv Invocation) {
		found = append(found, inv)
	})
	return found, stats
}

// ResolveFunc is Resolve that also passes each resolved invocation to visit
// before its rendering is substituted. visit may be nil.
//
// Substitution is by string identity: every occurrence of a matched raw
// invocation is replaced, wherever it appears. Invocations with an unknown
// name are counted as false positives and survive byte-for-byte in the
// output; while the loop runs they are masked so that enclosing invocations
// can still resolve around them.
func (e *Engine) ResolveFunc(text string, visit func(Invocation)) (string, Stats) {
	m := newMasker(text)

	for {
		matches := Innermost(text)
		if len(matches) == 0 {
			break
		}

		for _, raw := range matches {
			inv, err := e.Extract(raw)
			if err != nil {
				e.logger.Debug("false positive template", "raw", m.unmask(raw))
				text = strings.ReplaceAll(text, raw, m.mask(raw))
				continue
			}

			e.resolved++
			e.logger.Debug("template resolved", "name", inv.Name, "params", len(inv.Params))
			if visit != nil {
				visit(m.unmaskInvocation(inv))
			}
			text = strings.ReplaceAll(text, raw, Render(inv))
		}
	}

	return m.unmask(text), e.Stats()
}

// Innermost returns the invocations in text whose interior holds no brace,
// left to right and without overlap. Unbalanced braces never match.
func Innermost(text string) []string {
	var matches []string

	for i := 0; i+1 < len(text); {
		if text[i] != '{' || text[i+1] != '{' {
			i++
			continue
		}

		start := i
		j := start + 2
		for j < len(text) && text[j] != '{' && text[j] != '}' {
			j++
		}
		if strings.HasPrefix(text[j:], "}}") {
			matches = append(matches, text[start:j+2])
			i = j + 2
			continue
		}

		// "{{{" may still open a match one byte later.
		if j == start+2 {
			i = start + 1
		} else {
			i = j
		}
	}

	return matches
}

// Render formats inv on one line. The result never contains a brace or a
// pipe, so a later scan cannot mistake it for an invocation.
func Render(inv Invocation) string {
	var b strings.Builder
	b.WriteString("ParsedTemplate(name is ")
	b.WriteString(inv.Name)
	b.WriteString(", params are ")
	if len(inv.Params) == 0 {
		b.WriteString("None")
	} else {
		b.WriteByte('[')
		for i, p := range inv.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.String())
		}
		b.WriteByte(']')
	}
	b.WriteByte(')')

	return strings.ReplaceAll(b.String(), "|", "&#124;")
}

// firstMaskRune starts the private-use range placeholders are drawn from.
const firstMaskRune = '\uE000'

// masker hides rejected invocations for the duration of one resolve call.
// Placeholders are open + index + close, where open does not occur in the
// text being resolved.
type masker struct {
	open, close string
	raws        []string
	masks       map[string]string
}

func newMasker(text string) *masker {
	r := firstMaskRune
	for strings.ContainsRune(text, r) {
		r += 2
	}
	return &masker{open: string(r), close: string(r + 1)}
}

func (m *masker) mask(raw string) string {
	if tok, ok := m.masks[raw]; ok {
		return tok
	}
	if m.masks == nil {
		m.masks = make(map[string]string)
	}
	tok := m.open + strconv.Itoa(len(m.raws)) + m.close
	m.raws = append(m.raws, raw)
	m.masks[raw] = tok
	return tok
}

// unmask restores placeholders newest first; a later raw may contain an
// earlier placeholder but never the reverse.
func (m *masker) unmask(s string) string {
	if len(m.raws) == 0 || !strings.Contains(s, m.open) {
		return s
	}
	for i := len(m.raws) - 1; i >= 0; i-- {
		s = strings.ReplaceAll(s, m.masks[m.raws[i]], m.raws[i])
	}
	return s
}

func (m *masker) unmaskInvocation(inv Invocation) Invocation {
	if len(m.raws) == 0 {
		return inv
	}
	out := Invocation{
		Raw:  m.unmask(inv.Raw),
		Name: m.unmask(inv.Name),
	}
	for _, p := range inv.Params {
		p.Key = m.unmask(p.Key)
		p.Value = m.unmask(p.Value)
		out.Params = append(out.Params, p)
	}
	return out
}
