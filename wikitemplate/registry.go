package wikitemplate

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// DefaultNamespace is the English template namespace.
const DefaultNamespace = "Template"

// NameSource answers whether a full page title such as "Template:Cite web"
// is a known template page.
type NameSource interface {
	Contains(title string) bool
}

// Registry validates candidate template names against a NameSource and
// remembers every name it has confirmed. The cache only grows.
type Registry struct {
	source    NameSource
	namespace string
	known     map[string]struct{}
}

// NewRegistry creates a registry backed by source. An empty namespace means
// DefaultNamespace.
func NewRegistry(source NameSource, namespace string) *Registry {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if source == nil {
		source = NameSet{}
	}
	return &Registry{
		source:    source,
		namespace: namespace,
		known:     make(map[string]struct{}),
	}
}

// IsKnown reports whether name is a template. Cached names are answered
// without consulting the source.
func (r *Registry) IsKnown(name string) bool {
	if _, ok := r.known[name]; ok {
		return true
	}
	if name == "" {
		return false
	}

	title := r.namespace + ":" + upperFirst(name)
	if !r.source.Contains(title) && !r.source.Contains(title+"/doc") {
		return false
	}

	// The cache keys on what the text actually said, not the normalised form.
	r.known[name] = struct{}{}
	return true
}

// Len returns the number of distinct names confirmed so far.
func (r *Registry) Len() int {
	return len(r.known)
}

// Known returns the confirmed names in sorted order.
func (r *Registry) Known() []string {
	names := make([]string, 0, len(r.known))
	for name := range r.known {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Namespace returns the title prefix used for lookups.
func (r *Registry) Namespace() string {
	return r.namespace
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// NameSet is an in-memory NameSource.
type NameSet map[string]struct{}

// NewNameSet builds a set from titles.
func NewNameSet(titles ...string) NameSet {
	set := make(NameSet, len(titles))
	for _, t := range titles {
		set.Add(t)
	}
	return set
}

// LoadNames reads one title per line, as written by the template name
// fetcher. Blank lines are skipped.
func LoadNames(r io.Reader) (NameSet, error) {
	set := make(NameSet)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		set.Add(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read template names: %w", err)
	}
	return set, nil
}

// Add inserts a title, ignoring surrounding whitespace.
func (s NameSet) Add(title string) {
	title = strings.TrimSpace(title)
	if title != "" {
		s[title] = struct{}{}
	}
}

// Contains implements NameSource.
func (s NameSet) Contains(title string) bool {
	_, ok := s[title]
	return ok
}

// Len returns the number of titles.
func (s NameSet) Len() int {
	return len(s)
}

// Names returns all titles sorted.
func (s NameSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Suggest returns up to limit titles in namespace that fuzzily match name,
// closest first. It is meant for reporting false positives, not validation.
func (s NameSet) Suggest(namespace, name string, limit int) []string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	name = strings.TrimSpace(name)
	if name == "" || limit <= 0 {
		return nil
	}

	prefix := namespace + ":"
	var candidates []string
	for title := range s {
		if strings.HasPrefix(title, prefix) && !strings.HasSuffix(title, "/doc") {
			candidates = append(candidates, strings.TrimPrefix(title, prefix))
		}
	}

	sort.Strings(candidates)

	ranks := fuzzy.RankFindFold(name, candidates)
	sort.Stable(ranks)

	var out []string
	for _, rank := range ranks {
		if len(out) == limit {
			break
		}
		out = append(out, rank.Target)
	}
	return out
}
