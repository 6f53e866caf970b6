package citation

import (
	"regexp"
	"sort"
	"strings"
)

// Capture groups of the link pattern.
const (
	groupOpen = iota + 1
	groupVariant
	groupAmp
	groupKeys
	groupKeysClose
	groupLocatorOpen
	groupPrefix
	groupPages
	groupSuffix
	groupClose
)

// Matcher finds citation links in document text:
//   - "[[cite:Key]]", "[[parencite:A,B][36-44]]", "[[cite:&Key][see::12::note]]"
//   - bare "cite:Key" (matched, but never eligible for decoration)
//
// A Matcher is immutable and safe for concurrent use.
type Matcher struct {
	linkPattern *regexp.Regexp
}

// NewMatcher creates a matcher for the recognized variant tags.
func NewMatcher() *Matcher {
	return &Matcher{linkPattern: compileLinkPattern(Variants)}
}

// DefaultMatcher is shared by packages that do not need their own.
var DefaultMatcher = NewMatcher()

func compileLinkPattern(variants []Variant) *regexp.Regexp {
	names := make([]string, 0, len(variants))
	for _, variant := range variants {
		names = append(names, regexp.QuoteMeta(string(variant)))
	}
	// Longest tags first so "citeauthor" is never read as "cite".
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	return regexp.MustCompile(
		`(?:(\[\[)|\b)` +
			`(` + strings.Join(names, "|") + `):` +
			`(&)?` +
			`([\w-]+(?:,&?[\w-]+)*)` +
			`(\])?` +
			`(?:(\[)(?:([A-Za-z. ]*)::)?([0-9-]*)(?:::([^\]\n]+))?\])?` +
			`(\])?`,
	)
}

// Find returns the first link that starts at or after from.
func (m *Matcher) Find(text string, from int) (*Link, bool) {
	if from < 0 {
		from = 0
	}
	if from >= len(text) {
		return nil, false
	}
	indices := m.linkPattern.FindStringSubmatchIndex(text[from:])
	if indices == nil {
		return nil, false
	}
	return linkFromIndices(text[from:], indices, from), true
}

// FindAll returns every link in text, in document order.
func (m *Matcher) FindAll(text string) []*Link {
	return m.FindIn(text, 0, len(text))
}

// FindIn returns the links lying entirely inside text[start:end]. Offsets in
// the result are relative to text, not to the window.
func (m *Matcher) FindIn(text string, start, end int) []*Link {
	start, end = clampWindow(len(text), start, end)
	window := text[start:end]

	links := []*Link{}
	for _, indices := range m.linkPattern.FindAllStringSubmatchIndex(window, -1) {
		links = append(links, linkFromIndices(window, indices, start))
	}
	return links
}

func clampWindow(length, start, end int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > length {
		end = length
	}
	if start > end {
		start = end
	}
	return start, end
}

// linkFromIndices builds a Link from submatch indices into window, shifting
// every offset by base.
func linkFromIndices(window string, indices []int, base int) *Link {
	group := func(n int) (string, bool) {
		if indices[2*n] < 0 {
			return "", false
		}
		return window[indices[2*n]:indices[2*n+1]], true
	}

	variant, _ := group(groupVariant)
	keys, _ := group(groupKeys)
	_, bracketed := group(groupOpen)
	_, amp := group(groupAmp)

	link := &Link{
		Start:      base + indices[0],
		End:        base + indices[1],
		VariantEnd: base + indices[2*groupVariant+1],
		KeysEnd:    base + indices[2*groupKeys+1],
		PageEnd:    -1,
		Variant:    Variant(variant),
		Keys:       keys,
		Amp:        amp,
		Bracketed:  bracketed,
		Raw:        window[indices[0]:indices[1]],
	}

	if _, ok := group(groupLocatorOpen); ok {
		prefix, _ := group(groupPrefix)
		pages, _ := group(groupPages)
		suffix, _ := group(groupSuffix)
		link.Locator = &Locator{
			Prefix: strings.TrimSpace(prefix),
			Pages:  pages,
			Suffix: suffix,
		}
		link.PageEnd = base + indices[2*groupPages+1]
	}

	return link
}
