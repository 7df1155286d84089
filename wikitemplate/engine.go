// Package wikitemplate extracts MediaWiki template invocations from
// wikitext.
//
// An Engine finds every {{...}} that contains no further braces, splits it
// into a name and parameters, checks the name against the known template
// titles and replaces the invocation with a flat rendering. It then scans the
// rewritten text again, so nested invocations resolve from the inside out:
//
//	{{Outer|{{Inner|1}}}}
//	-> {{Outer|ParsedTemplate(name is Inner, params are [1st (unnamed): 1])}}
//	-> ParsedTemplate(name is Outer, params are [1st (unnamed): ParsedTemplate(...)])
//
// Input is expected on a single line with whitespace runs collapsed.
//
// An Engine is one session: its name cache and counters accumulate across
// calls. It is not safe for concurrent use.
package wikitemplate

import (
	"log/slog"
	"strings"
)

// Stats are the counters of one session.
type Stats struct {
	Resolved       int `json:"resolved"`
	Unique         int `json:"unique"`
	FalsePositives int `json:"false_positives"`
}

// Sub returns s minus prev, the activity between two snapshots.
func (s Stats) Sub(prev Stats) Stats {
	return Stats{
		Resolved:       s.Resolved - prev.Resolved,
		Unique:         s.Unique - prev.Unique,
		FalsePositives: s.FalsePositives - prev.FalsePositives,
	}
}

// Engine resolves template invocations against a set of known names.
type Engine struct {
	registry *Registry
	logger   *slog.Logger

	resolved       int
	falsePositives int
}

type options struct {
	namespace string
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*options)

// WithNamespace sets the template namespace used to build lookup titles,
// e.g. "Šablóna" for the Slovak Wikipedia.
func WithNamespace(namespace string) Option {
	return func(o *options) { o.namespace = namespace }
}

// WithLogger sets the logger for per-template debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New creates an Engine that validates names against source.
func New(source NameSource, opts ...Option) *Engine {
	o := options{namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		registry: NewRegistry(source, o.namespace),
		logger:   o.logger,
	}
}

// Registry exposes the session's name cache.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Stats returns the counters accumulated so far.
func (e *Engine) Stats() Stats {
	return Stats{
		Resolved:       e.resolved,
		Unique:         e.registry.Len(),
		FalsePositives: e.falsePositives,
	}
}

// Reset starts a new session with an empty cache and zeroed counters.
func (e *Engine) Reset() {
	e.registry = NewRegistry(e.registry.source, e.registry.namespace)
	e.resolved = 0
	e.falsePositives = 0
}

// Retract takes the invocation counts of an earlier run out of the session,
// before the same text is resolved again. Cached names stay cached.
func (e *Engine) Retract(s Stats) {
	e.resolved -= s.Resolved
	e.falsePositives -= s.FalsePositives
}

// Extract parses an innermost invocation and validates its name. A rejected
// name counts as a false positive and returns a *NameRejectedError with no
// parameters.
func (e *Engine) Extract(raw string) (Invocation, error) {
	segments := Split(stripBraces(raw), '|', WikiLink)
	name := strings.TrimSpace(segments[0])
	if !e.registry.IsKnown(name) {
		e.falsePositives++
		return Invocation{}, &NameRejectedError{Name: name, Raw: raw}
	}
	return newInvocation(raw, segments), nil
}
