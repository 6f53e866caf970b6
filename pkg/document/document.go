// Package document provides Buffer, an in-memory text document with the
// capabilities a citation overlay needs from its host: raw text access,
// display overrides that move with the text, edit notifications and Org
// link-boundary detection.
//
// A Buffer is single-threaded. Edit notifications run synchronously inside
// Replace, so a listener always finishes before the next edit is accepted.
package document

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Range is a half-open byte range [Start, End).
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the length of the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Contains reports whether pos lies within the range.
func (r Range) Contains(pos int) bool {
	return pos >= r.Start && pos < r.End
}

// Overlaps reports whether the two ranges share at least one byte.
func (r Range) Overlaps(other Range) bool {
	return r.Start < other.End && other.Start < r.End
}

// Change describes one edit. [Start, End) is the inserted text in the new
// document; [Start, OldEnd) was the replaced text in the old one.
type Change struct {
	Start  int `json:"start"`
	End    int `json:"end"`
	OldEnd int `json:"old_end"`
}

// Delta is the length difference the edit introduced.
func (c Change) Delta() int {
	return c.End - c.OldEnd
}

// Override is a display replacement for a range of raw text.
type Override struct {
	Range Range  `json:"range"`
	Text  string `json:"text"`
}

// orgLinkPattern matches "[[target]]" and "[[target][description]]".
var orgLinkPattern = regexp.MustCompile(`\[\[[^\[\]\n]+\](?:\[[^\[\]\n]*\])?\]`)

// Buffer is an in-memory document.
type Buffer struct {
	text        string
	overrides   []Override // sorted by Range.Start, non-overlapping
	listeners   map[int]func(Change)
	listenOrder []int
	nextID      int
}

// NewBuffer creates a buffer holding text.
func NewBuffer(text string) *Buffer {
	return &Buffer{
		text:      text,
		listeners: make(map[int]func(Change)),
	}
}

// String returns the raw text.
func (b *Buffer) String() string {
	return b.text
}

// Len returns the length of the raw text in bytes.
func (b *Buffer) Len() int {
	return len(b.text)
}

// Text returns the raw text in [start, end), clamped to the buffer.
func (b *Buffer) Text(start, end int) string {
	start, end = b.clamp(start, end)
	return b.text[start:end]
}

func (b *Buffer) clamp(start, end int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > len(b.text) {
		end = len(b.text)
	}
	if start > end {
		start = end
	}
	return start, end
}

// Replace substitutes text for [start, end) and notifies listeners.
// Overrides touching the replaced text are dropped; later ones shift with
// the text.
func (b *Buffer) Replace(start, end int, text string) error {
	if start < 0 || end > len(b.text) || start > end {
		return fmt.Errorf("replace range [%d, %d) out of bounds for length %d", start, end, len(b.text))
	}
	if b.text[start:end] == text {
		return nil
	}

	b.text = b.text[:start] + text + b.text[end:]
	change := Change{Start: start, End: start + len(text), OldEnd: end}
	b.shiftOverrides(change)

	// Listeners may unsubscribe while being notified.
	order := append([]int(nil), b.listenOrder...)
	for _, id := range order {
		if listener, ok := b.listeners[id]; ok {
			listener(change)
		}
	}
	return nil
}

// Insert is Replace of an empty range.
func (b *Buffer) Insert(pos int, text string) error {
	return b.Replace(pos, pos, text)
}

// Delete removes [start, end).
func (b *Buffer) Delete(start, end int) error {
	return b.Replace(start, end, "")
}

func (b *Buffer) shiftOverrides(change Change) {
	kept := b.overrides[:0]
	for _, override := range b.overrides {
		r := override.Range
		switch {
		case r.End <= change.Start:
		case r.Start >= change.OldEnd:
			override.Range = Range{Start: r.Start + change.Delta(), End: r.End + change.Delta()}
		default:
			continue
		}
		kept = append(kept, override)
	}
	b.overrides = kept
}

// Subscribe registers fn for edit notifications and returns a function that
// removes it.
func (b *Buffer) Subscribe(fn func(Change)) func() {
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.listenOrder = append(b.listenOrder, id)
	return func() {
		delete(b.listeners, id)
		for i, existing := range b.listenOrder {
			if existing == id {
				b.listenOrder = append(b.listenOrder[:i], b.listenOrder[i+1:]...)
				break
			}
		}
	}
}

// Listeners returns the number of active edit listeners.
func (b *Buffer) Listeners() int {
	return len(b.listeners)
}

// SetOverride displays text in place of r, replacing any override it
// overlaps.
func (b *Buffer) SetOverride(r Range, text string) {
	r.Start, r.End = b.clamp(r.Start, r.End)
	if r.Len() == 0 {
		return
	}
	b.ClearOverride(r)
	b.overrides = append(b.overrides, Override{Range: r, Text: text})
	sort.Slice(b.overrides, func(i, j int) bool {
		return b.overrides[i].Range.Start < b.overrides[j].Range.Start
	})
}

// ClearOverride removes every override overlapping r.
func (b *Buffer) ClearOverride(r Range) {
	kept := b.overrides[:0]
	for _, override := range b.overrides {
		if !override.Range.Overlaps(r) {
			kept = append(kept, override)
		}
	}
	b.overrides = kept
}

// ClearAllOverrides removes every override.
func (b *Buffer) ClearAllOverrides() {
	b.overrides = nil
}

// OverrideAt returns the range of the override covering pos.
func (b *Buffer) OverrideAt(pos int) (Range, bool) {
	for _, override := range b.overrides {
		if override.Range.Contains(pos) {
			return override.Range, true
		}
	}
	return Range{}, false
}

// Overrides returns a copy of the override table in document order.
func (b *Buffer) Overrides() []Override {
	result := make([]Override, len(b.overrides))
	copy(result, b.overrides)
	return result
}

// Display returns the text as shown: raw text with overrides applied.
func (b *Buffer) Display() string {
	return b.DisplayRange(Range{Start: 0, End: len(b.text)})
}

// DisplayRange renders [r.Start, r.End) as shown. Overrides that cross the
// range boundary are not applied.
func (b *Buffer) DisplayRange(r Range) string {
	start, end := b.clamp(r.Start, r.End)
	var sb strings.Builder
	pos := start
	for _, override := range b.overrides {
		if override.Range.Start < pos || override.Range.End > end {
			continue
		}
		sb.WriteString(b.text[pos:override.Range.Start])
		sb.WriteString(override.Text)
		pos = override.Range.End
	}
	sb.WriteString(b.text[pos:end])
	return sb.String()
}

// LineAt returns the line containing pos, without its newline.
func (b *Buffer) LineAt(pos int) Range {
	pos, _ = b.clamp(pos, len(b.text))
	start := strings.LastIndexByte(b.text[:pos], '\n') + 1
	end := strings.IndexByte(b.text[pos:], '\n')
	if end < 0 {
		end = len(b.text)
	} else {
		end += pos
	}
	return Range{Start: start, End: end}
}

// Lines expands r to whole lines.
func (b *Buffer) Lines(r Range) Range {
	first := b.LineAt(r.Start)
	last := b.LineAt(r.End)
	return Range{Start: first.Start, End: last.End}
}

// LinkAt reports the Org link ("[[...]]" or "[[...][...]]") enclosing pos.
func (b *Buffer) LinkAt(pos int) (Range, bool) {
	line := b.LineAt(pos)
	for _, indices := range orgLinkPattern.FindAllStringIndex(b.text[line.Start:line.End], -1) {
		link := Range{Start: line.Start + indices[0], End: line.Start + indices[1]}
		if link.Contains(pos) {
			return link, true
		}
	}
	return Range{}, false
}
