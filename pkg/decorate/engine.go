// Package decorate keeps a live document's citation links displayed as
// formatted text. The Engine re-matches links around every edit, resolves
// their keys (once per unchanged span), and installs display overrides on
// the host surface. The raw text is never modified.
package decorate

import (
	"log/slog"
	"strings"

	"github.com/coolbeans/citelens/pkg/bibliography"
	"github.com/coolbeans/citelens/pkg/citation"
	"github.com/coolbeans/citelens/pkg/document"
)

// Surface is the host document as seen by the engine.
type Surface interface {
	Len() int
	Text(start, end int) string
	// LinkAt reports the structural link enclosing pos, if any.
	LinkAt(pos int) (document.Range, bool)
	SetOverride(r document.Range, text string)
	ClearOverride(r document.Range)
	ClearAllOverrides()
	// Subscribe registers fn for edit notifications; the returned function
	// unregisters it.
	Subscribe(fn func(document.Change)) func()
}

// Resolver maps citation keys to entries, one slot per key.
type Resolver interface {
	Resolve(keys []string) []*bibliography.Entry
}

// Formatter renders a link from its resolved entries.
type Formatter interface {
	Format(link *citation.Link, entries []*bibliography.Entry) string
}

// Stats counts engine activity since it was created.
type Stats struct {
	Passes    int `json:"passes"`
	Resolved  int `json:"resolved"`
	CacheHits int `json:"cache_hits"`
	Decorated int `json:"decorated"`
	Rejected  int `json:"rejected"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMatcher replaces the default link matcher.
func WithMatcher(matcher *citation.Matcher) Option {
	return func(e *Engine) {
		e.matcher = matcher
	}
}

// Engine decorates one document. Create one per open document.
type Engine struct {
	surface   Surface
	resolver  Resolver
	formatter Formatter
	matcher   *citation.Matcher
	logger    *slog.Logger

	cache       *Cache
	enabled     bool
	unsubscribe func()
	stats       Stats
}

// New creates a disabled engine for surface.
func New(surface Surface, resolver Resolver, formatter Formatter, opts ...Option) *Engine {
	engine := &Engine{
		surface:   surface,
		resolver:  resolver,
		formatter: formatter,
		matcher:   citation.DefaultMatcher,
		logger:    slog.Default(),
		cache:     NewCache(),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Enabled reports whether decoration is on.
func (e *Engine) Enabled() bool {
	return e.enabled
}

// Enable subscribes to edits and renders the whole document. Enabling an
// enabled engine does nothing.
func (e *Engine) Enable() {
	if e.enabled {
		return
	}
	e.enabled = true
	e.unsubscribe = e.surface.Subscribe(e.handleChange)
	e.logger.Debug("citation decoration enabled", "length", e.surface.Len())
	e.Rerender(document.Range{Start: 0, End: e.surface.Len()})
}

// Disable removes every override and cached span and stops listening for
// edits.
func (e *Engine) Disable() {
	if !e.enabled {
		return
	}
	e.enabled = false
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	e.surface.ClearAllOverrides()
	e.cache.Clear()
	e.logger.Debug("citation decoration disabled")
}

// Rerender re-renders every link on the lines touched by r. Links whose
// cached span is fresh are not resolved again.
func (e *Engine) Rerender(r document.Range) {
	e.render(r, nil)
}

// Cache exposes the span cache, mainly for inspection in tests.
func (e *Engine) Cache() *Cache {
	return e.cache
}

// Stats returns activity counters.
func (e *Engine) Stats() Stats {
	return e.stats
}

func (e *Engine) handleChange(change document.Change) {
	e.cache.Shift(change)
	e.render(document.Range{Start: change.Start, End: change.End}, &change)
}

func (e *Engine) render(r document.Range, change *document.Change) {
	if !e.enabled {
		return
	}
	e.stats.Passes++

	text := e.surface.Text(0, e.surface.Len())
	window := lineWindow(text, r)
	e.surface.ClearOverride(window)

	links := e.matcher.FindIn(text, window.Start, window.End)
	for _, link := range links {
		e.renderLink(link, change)
	}
	e.logger.Debug("citation render pass",
		"start", window.Start, "end", window.End, "links", len(links), "cached", e.cache.Len())
}

func (e *Engine) renderLink(link *citation.Link, change *document.Change) {
	linkRange, ok := e.surface.LinkAt(link.Start)
	if !ok || !link.Bracketed {
		e.stats.Rejected++
		return
	}
	span := document.Range{Start: linkRange.Start, End: min(linkRange.End, link.End)}

	if change != nil && touchesSpan(*change, span) {
		e.cache.Invalidate(link.KeysEnd)
	}

	rendered, ok := e.cache.Get(link.KeysEnd)
	if ok && rendered.Fresh && rendered.Keys == link.Keys {
		e.stats.CacheHits++
	} else {
		rendered = &RenderedSpan{
			Keys:    link.Keys,
			Entries: e.resolver.Resolve(link.KeyList()),
		}
		e.stats.Resolved++
	}
	// Fresh regardless of outcome so unchanged text with unknown keys is
	// not looked up again.
	rendered.Fresh = true
	e.cache.Set(link.KeysEnd, rendered)

	display := e.formatter.Format(link, rendered.Entries)
	if display == "" {
		return
	}
	e.surface.SetOverride(span, display)
	e.stats.Decorated++
}

// touchesSpan reports whether change altered text inside span. Edits that
// only abut the span leave it untouched.
func touchesSpan(change document.Change, span document.Range) bool {
	if change.Start == change.End {
		return change.Start > span.Start && change.Start < span.End
	}
	return change.Start < span.End && change.End > span.Start
}

// lineWindow expands r to the whole lines it touches.
func lineWindow(text string, r document.Range) document.Range {
	start := max(0, min(r.Start, len(text)))
	end := max(start, min(r.End, len(text)))
	start = strings.LastIndexByte(text[:start], '\n') + 1
	if next := strings.IndexByte(text[end:], '\n'); next >= 0 {
		end += next
	} else {
		end = len(text)
	}
	return document.Range{Start: start, End: end}
}
