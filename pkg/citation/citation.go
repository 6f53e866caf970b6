// Package citation recognizes Org-style bibliographic citation links such as
// "[[cite:CoxeterPG2ed][53]]" and extracts their structured fields.
//
// Two entry points exist. Matcher scans arbitrary document text and reports
// every span with absolute byte offsets; Parse validates a single, complete
// link string (for example text typed into an edit prompt).
package citation

import (
	"errors"
	"strings"
)

// ErrMalformedLink is returned by Parse when the text is not exactly one
// citation link.
var ErrMalformedLink = errors.New("malformed citation link")

// Variant is the citation-style tag that decides the shape of the rendered
// text.
type Variant string

const (
	VariantCite       Variant = "cite"
	VariantNocite     Variant = "nocite"
	VariantCitet      Variant = "citet"
	VariantCitep      Variant = "citep"
	VariantCiteAlt    Variant = "citealt"
	VariantCiteAlp    Variant = "citealp"
	VariantCiteAuthor Variant = "citeauthor"
	VariantCiteYear   Variant = "citeyear"
	VariantCiteTitle  Variant = "citetitle"
	VariantCitetCap   Variant = "Citet"
	VariantCitepCap   Variant = "Citep"
	VariantAuthorCap  Variant = "Citeauthor"
	VariantParencite  Variant = "parencite"
	VariantParenCap   Variant = "Parencite"
	VariantTextcite   Variant = "textcite"
	VariantTextCap    Variant = "Textcite"
	VariantFootcite   Variant = "footcite"
	VariantAutocite   Variant = "autocite"
	VariantAutoCap    Variant = "Autocite"
	VariantFullcite   Variant = "fullcite"
)

// Variants lists every recognized tag.
var Variants = []Variant{
	VariantCite, VariantNocite, VariantCitet, VariantCitep, VariantCiteAlt,
	VariantCiteAlp, VariantCiteAuthor, VariantCiteYear, VariantCiteTitle,
	VariantCitetCap, VariantCitepCap, VariantAuthorCap, VariantParencite,
	VariantParenCap, VariantTextcite, VariantTextCap, VariantFootcite,
	VariantAutocite, VariantAutoCap, VariantFullcite,
}

var knownVariants = func() map[Variant]bool {
	known := make(map[Variant]bool, len(Variants))
	for _, variant := range Variants {
		known[variant] = true
	}
	return known
}()

// Known reports whether v is one of the recognized tags.
func (v Variant) Known() bool {
	return knownVariants[v]
}

// Parenthetical reports whether the whole rendered citation is wrapped in
// parentheses.
func (v Variant) Parenthetical() bool {
	switch v {
	case VariantParencite, VariantParenCap, VariantCitep, VariantCitepCap:
		return true
	}
	return false
}

// Locator is the optional page bracket of a link: "[see::36-44::fig. 2]".
// Any part may be empty.
type Locator struct {
	Prefix string `json:"prefix,omitempty"`
	Pages  string `json:"pages,omitempty"`
	Suffix string `json:"suffix,omitempty"`
}

// Empty reports whether the locator carries no text at all.
func (l *Locator) Empty() bool {
	return l == nil || (l.Prefix == "" && l.Pages == "" && l.Suffix == "")
}

// IsRange reports whether the pages name more than one page.
func (l *Locator) IsRange() bool {
	return l != nil && strings.Contains(l.Pages, "-")
}

// Link is one citation span found in a document.
//
// Offsets are byte offsets into the scanned text; End is exclusive.
// KeysEnd, the end of the key list, is the stable anchor used to cache
// resolved bibliography data for the span.
type Link struct {
	Start      int `json:"start"`
	End        int `json:"end"`
	VariantEnd int `json:"variant_end"`
	KeysEnd    int `json:"keys_end"`
	// PageEnd is the end of the page digits, or -1 without a page bracket.
	PageEnd int `json:"page_end"`

	Variant   Variant  `json:"variant"`
	Keys      string   `json:"keys"`
	Amp       bool     `json:"amp,omitempty"`
	Bracketed bool     `json:"bracketed"`
	Locator   *Locator `json:"locator,omitempty"`

	// Raw is the exact matched text.
	Raw string `json:"raw"`
}

// KeyList splits the raw key list into individual citation keys.
func (l *Link) KeyList() []string {
	parts := strings.Split(l.Keys, ",")
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		key := strings.TrimPrefix(strings.TrimSpace(part), "&")
		if key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// Contains reports whether pos lies within the link.
func (l *Link) Contains(pos int) bool {
	return pos >= l.Start && pos < l.End
}

// String renders the link in its canonical bracketed form.
func (l *Link) String() string {
	var sb strings.Builder
	sb.WriteString("[[")
	sb.WriteString(string(l.Variant))
	sb.WriteString(":")
	if l.Amp {
		sb.WriteString("&")
	}
	sb.WriteString(l.Keys)
	sb.WriteString("]")
	if l.Locator != nil {
		sb.WriteString("[")
		if l.Locator.Prefix != "" {
			sb.WriteString(l.Locator.Prefix)
			sb.WriteString("::")
		}
		sb.WriteString(l.Locator.Pages)
		if l.Locator.Suffix != "" {
			sb.WriteString("::")
			sb.WriteString(l.Locator.Suffix)
		}
		sb.WriteString("]")
	}
	sb.WriteString("]")
	return sb.String()
}

// Strip collapses a link without page, prefix or suffix text down to the
// minimal "variant:keys" form. Any other link is returned unchanged.
func Strip(link *Link) string {
	if link == nil {
		return ""
	}
	if !link.Locator.Empty() {
		return link.Raw
	}
	stripped := string(link.Variant) + ":"
	if link.Amp {
		stripped += "&"
	}
	return stripped + link.Keys
}
