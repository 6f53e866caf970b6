// Package format turns resolved bibliography entries and a citation link's
// page data into the text shown in place of the link.
package format

import (
	"strings"

	"github.com/coolbeans/citelens/pkg/bibliography"
	"github.com/coolbeans/citelens/pkg/citation"
)

// Options controls formatting details.
type Options struct {
	// SpaceBeforePage puts a space between "p."/"pp." and the page number.
	SpaceBeforePage bool `json:"space_before_page_number"`
}

// DefaultOptions returns the default formatting options.
func DefaultOptions() Options {
	return Options{SpaceBeforePage: true}
}

// FormatFunc renders one resolved key. It returns "" when the key
// contributes nothing.
type FormatFunc func(variant citation.Variant, entry *bibliography.Entry, locator *citation.Locator, opts Options) string

// Pages renders the page part of a locator: "p. 53", "pp. 36-44, fig. 2".
// Returns "" when there is no page number.
func Pages(locator *citation.Locator, opts Options) string {
	if locator == nil || locator.Pages == "" {
		return ""
	}
	var sb strings.Builder
	if locator.IsRange() {
		sb.WriteString("pp.")
	} else {
		sb.WriteString("p.")
	}
	if opts.SpaceBeforePage {
		sb.WriteString(" ")
	}
	sb.WriteString(locator.Pages)
	if locator.Suffix != "" {
		sb.WriteString(", ")
		sb.WriteString(locator.Suffix)
	}
	return sb.String()
}

// Entry is the default FormatFunc. It dispatches on the variant:
//
//	citeauthor -> author
//	citeyear   -> year
//	citetitle  -> title
//	textcite   -> author (year, page)
//	otherwise  -> author, year, page
func Entry(variant citation.Variant, entry *bibliography.Entry, locator *citation.Locator, opts Options) string {
	if entry.Empty() {
		return ""
	}

	author := entry.Author
	if locator != nil && locator.Prefix != "" {
		if author == "" {
			author = locator.Prefix
		} else {
			author = locator.Prefix + " " + author
		}
	}
	page := Pages(locator, opts)

	switch variant {
	case citation.VariantCiteAuthor, citation.VariantAuthorCap:
		return author
	case citation.VariantCiteYear:
		return entry.Year
	case citation.VariantCiteTitle:
		return entry.Title
	case citation.VariantTextcite, citation.VariantTextCap:
		inner := joinNonEmpty(", ", entry.Year, page)
		if inner == "" {
			return author
		}
		if author == "" {
			return "(" + inner + ")"
		}
		return author + " (" + inner + ")"
	default:
		return joinNonEmpty(", ", author, entry.Year, page)
	}
}

// Formatter renders whole links.
type Formatter struct {
	Options Options
	// Func overrides the per-key formatting; nil uses Entry.
	Func FormatFunc
}

// New creates a formatter with the given options and the default FormatFunc.
func New(opts Options) *Formatter {
	return &Formatter{Options: opts}
}

// Format renders link from its per-key entries (nil slots are skipped).
// Per-key strings are joined with "; " and parenthetical variants are
// wrapped in parentheses. Returns "" when no key produced text.
func (f *Formatter) Format(link *citation.Link, entries []*bibliography.Entry) string {
	formatEntry := f.Func
	if formatEntry == nil {
		formatEntry = Entry
	}

	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		if text := formatEntry(link.Variant, entry, link.Locator, f.Options); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return ""
	}

	joined := strings.Join(parts, "; ")
	if link.Variant.Parenthetical() {
		return "(" + joined + ")"
	}
	return joined
}

func joinNonEmpty(sep string, values ...string) string {
	kept := make([]string, 0, len(values))
	for _, value := range values {
		if value != "" {
			kept = append(kept, value)
		}
	}
	return strings.Join(kept, sep)
}
