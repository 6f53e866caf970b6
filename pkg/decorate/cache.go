package decorate

import (
	"github.com/coolbeans/citelens/pkg/bibliography"
	"github.com/coolbeans/citelens/pkg/document"
)

// RenderedSpan is the cached resolution of one link's keys.
//
// A fresh span is reused without another bibliography lookup even when every
// entry is nil: failed lookups are cached too.
type RenderedSpan struct {
	Keys    string
	Entries []*bibliography.Entry
	Fresh   bool
}

// Cache maps key-list offsets to rendered spans. It is owned by one Engine
// and is not safe for concurrent use.
type Cache struct {
	entries map[int]*RenderedSpan
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[int]*RenderedSpan)}
}

// Get returns the span cached at anchor.
func (spanCache *Cache) Get(anchor int) (*RenderedSpan, bool) {
	span, ok := spanCache.entries[anchor]
	return span, ok
}

// Set stores span at anchor.
func (spanCache *Cache) Set(anchor int, span *RenderedSpan) {
	spanCache.entries[anchor] = span
}

// Invalidate removes the span at anchor.
func (spanCache *Cache) Invalidate(anchor int) {
	delete(spanCache.entries, anchor)
}

// Clear removes every span.
func (spanCache *Cache) Clear() {
	spanCache.entries = make(map[int]*RenderedSpan)
}

// Len returns the number of cached spans.
func (spanCache *Cache) Len() int {
	return len(spanCache.entries)
}

// Shift moves anchors so they keep pointing at the same text after change.
// Anchors inside the replaced text, or exactly at an insertion point, are
// dropped.
func (spanCache *Cache) Shift(change document.Change) {
	if change.Start == change.End && change.End == change.OldEnd {
		return
	}
	shifted := make(map[int]*RenderedSpan, len(spanCache.entries))
	for anchor, span := range spanCache.entries {
		switch {
		case anchor < change.Start:
			shifted[anchor] = span
		case anchor == change.Start && change.OldEnd > change.Start:
			shifted[anchor] = span
		case anchor > change.OldEnd:
			shifted[anchor+change.Delta()] = span
		}
	}
	spanCache.entries = shifted
}
