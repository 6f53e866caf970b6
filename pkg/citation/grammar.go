package citation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// linkGrammar is the participle grammar for a single, complete link.
// Examples: "cite:Key", "[[cite:Key]]", "[[textcite:&A,&B][see::12-14::fn. 3]]"
//
//nolint:govet // participle grammar tags are not standard struct tags
type linkGrammar struct {
	Open      bool            `@("[" "[")?`
	Variant   string          `@Word ":"`
	Keys      []*keyGrammar   `@@ ( "," @@ )*`
	KeysClose bool            `@"]"?`
	Locator   *locatorGrammar `@@?`
	Close     bool            `@"]"?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type keyGrammar struct {
	Amp  bool   `@"&"?`
	Name string `@(Word | Number)+`
}

//nolint:govet // participle grammar tags are not standard struct tags
type locatorGrammar struct {
	Open   bool    `@"["`
	Prefix *string `( @Word "::" )?`
	Pages  string  `@Number?`
	Suffix *string `( "::" @(Word | Number | ":" | "::" | "&" | "," | "[")+ )? "]"`
}

// linkLexer splits link text. Keys and suffixes are reassembled from
// adjacent Word and Number tokens.
var linkLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Separator", Pattern: `::`},
	{Name: "Punct", Pattern: `[\[\]:&,]`},
	{Name: "Number", Pattern: `[0-9-]+`},
	{Name: "Word", Pattern: `[^\[\]:&,0-9-]+`},
})

var linkParser = participle.MustBuild[linkGrammar](
	participle.Lexer(linkLexer),
	participle.UseLookahead(3),
)

var (
	keyPattern    = regexp.MustCompile(`^[\w-]+$`)
	prefixPattern = regexp.MustCompile(`^[A-Za-z. ]+$`)
	// pagesAfterEmptyPrefix splits "::12" or "::12::note" as read by the
	// suffix rule into pages and suffix.
	pagesAfterEmptyPrefix = regexp.MustCompile(`^([0-9-]*)(?:::(.+))?$`)
)

// Parse parses raw as exactly one citation link. The returned Link has
// offsets relative to raw. Errors wrap ErrMalformedLink.
func Parse(raw string) (*Link, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty link", ErrMalformedLink)
	}
	if strings.ContainsRune(raw, '\n') {
		return nil, fmt.Errorf("%w: link spans multiple lines", ErrMalformedLink)
	}

	parsed, err := linkParser.ParseString("", raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrMalformedLink, raw, err)
	}

	variant := Variant(parsed.Variant)
	if !variant.Known() {
		return nil, fmt.Errorf("%w: unknown variant %q", ErrMalformedLink, parsed.Variant)
	}

	var keys strings.Builder
	for i, key := range parsed.Keys {
		if !keyPattern.MatchString(key.Name) {
			return nil, fmt.Errorf("%w: invalid key %q", ErrMalformedLink, key.Name)
		}
		if i > 0 {
			keys.WriteString(",")
			if key.Amp {
				keys.WriteString("&")
			}
		}
		keys.WriteString(key.Name)
	}

	link := &Link{
		Start:     0,
		End:       len(raw),
		PageEnd:   -1,
		Variant:   variant,
		Keys:      keys.String(),
		Amp:       parsed.Keys[0].Amp,
		Bracketed: parsed.Open,
		Raw:       raw,
	}

	offset := 0
	if parsed.Open {
		offset += 2
	}
	offset += len(parsed.Variant)
	link.VariantEnd = offset
	offset++ // ":"
	if link.Amp {
		offset++
	}
	offset += len(link.Keys)
	link.KeysEnd = offset

	if parsed.Locator != nil {
		locator := &Locator{Pages: parsed.Locator.Pages}
		if parsed.KeysClose {
			offset++
		}
		offset++ // "["
		if parsed.Locator.Prefix != nil {
			if !prefixPattern.MatchString(*parsed.Locator.Prefix) {
				return nil, fmt.Errorf("%w: invalid page prefix %q", ErrMalformedLink, *parsed.Locator.Prefix)
			}
			locator.Prefix = strings.TrimSpace(*parsed.Locator.Prefix)
			offset += len(*parsed.Locator.Prefix) + len("::")
		}
		if parsed.Locator.Suffix != nil {
			locator.Suffix = *parsed.Locator.Suffix
		}
		if parsed.Locator.Prefix == nil && locator.Pages == "" && parsed.Locator.Suffix != nil {
			// An empty prefix: "[::12]" carries pages, not a suffix.
			if m := pagesAfterEmptyPrefix.FindStringSubmatch(locator.Suffix); m != nil {
				locator.Pages, locator.Suffix = m[1], m[2]
				offset += len("::")
			}
		}
		offset += len(locator.Pages)
		link.PageEnd = offset
		link.Locator = locator
	}

	return link, nil
}
