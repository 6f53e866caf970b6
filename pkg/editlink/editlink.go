// Package editlink edits the raw markup of a single citation link through a
// side prompt. The displayed text of a decorated link is an overlay, so the
// link is extracted, edited as plain text and written back in one
// replacement.
package editlink

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/coolbeans/citelens/pkg/citation"
	"github.com/coolbeans/citelens/pkg/document"
)

var (
	// ErrNotOnLink is returned when an edit command runs outside any
	// citation link.
	ErrNotOnLink = errors.New("not on a citation link")

	// ErrCancelled is returned by a Prompter when the user abandons the
	// prompt.
	ErrCancelled = errors.New("prompt cancelled")
)

// Document is the raw-text side of the host document.
type Document interface {
	Len() int
	Text(start, end int) string
	Replace(start, end int, text string) error
	LineAt(pos int) document.Range
	OverrideAt(pos int) (document.Range, bool)
}

// Prompter asks the user to edit text, starting with the cursor at cursor
// (a byte offset into initial).
type Prompter interface {
	Prompt(ctx context.Context, initial string, cursor int) (string, error)
}

// Anchor selects where the prompt cursor starts.
type Anchor int

const (
	// AnchorAuto puts the cursor after the page number when the link has a
	// page bracket, else after the variant.
	AnchorAuto Anchor = iota
	AnchorStart
	AnchorVariantEnd
	AnchorKeysEnd
	AnchorPageEnd
	AnchorEnd
)

var anchorNames = map[string]Anchor{
	"auto":    AnchorAuto,
	"start":   AnchorStart,
	"variant": AnchorVariantEnd,
	"keys":    AnchorKeysEnd,
	"page":    AnchorPageEnd,
	"end":     AnchorEnd,
}

// ParseAnchor maps "auto", "start", "variant", "keys", "page" or "end" to an
// Anchor.
func ParseAnchor(name string) (Anchor, error) {
	anchor, ok := anchorNames[name]
	if !ok {
		return AnchorAuto, fmt.Errorf("unknown cursor anchor %q", name)
	}
	return anchor, nil
}

// CursorHint returns the prompt cursor offset, relative to link.Start.
func CursorHint(link *citation.Link, anchor Anchor) int {
	var pos int
	switch anchor {
	case AnchorStart:
		pos = link.Start
	case AnchorVariantEnd:
		pos = link.VariantEnd
	case AnchorKeysEnd:
		pos = link.KeysEnd
	case AnchorPageEnd:
		pos = link.PageEnd
		if pos < 0 {
			pos = link.KeysEnd
		}
	case AnchorEnd:
		pos = link.End
	default:
		if link.PageEnd >= 0 {
			pos = link.PageEnd
		} else {
			pos = link.VariantEnd
		}
	}
	return pos - link.Start
}

// Editor runs link edits against a document.
type Editor struct {
	doc      Document
	prompter Prompter
	matcher  *citation.Matcher
}

// New creates an editor. A nil matcher uses citation.DefaultMatcher.
func New(doc Document, prompter Prompter, matcher *citation.Matcher) *Editor {
	if matcher == nil {
		matcher = citation.DefaultMatcher
	}
	return &Editor{doc: doc, prompter: prompter, matcher: matcher}
}

// LinkAt returns the first link on pos's line that contains pos.
func (e *Editor) LinkAt(pos int) (*citation.Link, error) {
	for _, link := range e.lineLinks(pos) {
		if link.Contains(pos) {
			return link, nil
		}
	}
	return nil, fmt.Errorf("%w at offset %d", ErrNotOnLink, pos)
}

func (e *Editor) lineLinks(pos int) []*citation.Link {
	line := e.doc.LineAt(pos)
	text := e.doc.Text(0, e.doc.Len())
	return e.matcher.FindIn(text, line.Start, line.End)
}

// EditAt prompts for a replacement of the link at pos and writes it back.
// Accepted text that parses as a single link is bracket-stripped first;
// anything else is written verbatim. A cancelled prompt leaves the document
// untouched and returns nil.
func (e *Editor) EditAt(ctx context.Context, pos int, anchor Anchor) error {
	link, err := e.LinkAt(pos)
	if err != nil {
		return err
	}

	edited, err := e.prompter.Prompt(ctx, link.Raw, CursorHint(link, anchor))
	if errors.Is(err, ErrCancelled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read edited link: %w", err)
	}

	replacement := edited
	if parsed, parseErr := citation.Parse(edited); parseErr == nil {
		replacement = citation.Strip(parsed)
	}
	if err := e.doc.Replace(link.Start, link.End, replacement); err != nil {
		return fmt.Errorf("failed to replace link: %w", err)
	}
	return nil
}

// DeleteBackward deletes the character before pos. When that character is
// displayed as part of a decorated link ending at pos, the whole link is
// deleted instead. Returns the deleted range.
func (e *Editor) DeleteBackward(pos int) (document.Range, error) {
	if pos <= 0 {
		return document.Range{}, nil
	}
	_, size := utf8.DecodeLastRuneInString(e.doc.Text(0, pos))
	target := document.Range{Start: pos - size, End: pos}
	if _, decorated := e.doc.OverrideAt(pos - 1); decorated {
		links := e.lineLinks(pos - 1)
		for i := len(links) - 1; i >= 0; i-- {
			if links[i].End == pos {
				target = document.Range{Start: links[i].Start, End: links[i].End}
				break
			}
		}
	}
	return target, e.doc.Replace(target.Start, target.End, "")
}

// DeleteForward deletes the character at pos, or the whole decorated link
// starting at pos.
func (e *Editor) DeleteForward(pos int) (document.Range, error) {
	if pos >= e.doc.Len() {
		return document.Range{}, nil
	}
	_, size := utf8.DecodeRuneInString(e.doc.Text(pos, e.doc.Len()))
	target := document.Range{Start: pos, End: pos + size}
	if _, decorated := e.doc.OverrideAt(pos); decorated {
		for _, link := range e.lineLinks(pos) {
			if link.Start == pos {
				target = document.Range{Start: link.Start, End: link.End}
				break
			}
		}
	}
	return target, e.doc.Replace(target.Start, target.End, "")
}
