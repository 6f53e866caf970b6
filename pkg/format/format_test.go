package format

import (
	"strings"
	"testing"

	"github.com/coolbeans/citelens/pkg/bibliography"
	"github.com/coolbeans/citelens/pkg/citation"
)

var coxeter = &bibliography.Entry{Author: "Coxeter", Year: "1987", Title: "Projective Geometry"}

func TestPages(t *testing.T) {
	testCases := []struct {
		name     string
		locator  *citation.Locator
		space    bool
		expected string
	}{
		{"nil", nil, true, ""},
		{"no_pages", &citation.Locator{Prefix: "see"}, true, ""},
		{"single", &citation.Locator{Pages: "53"}, true, "p. 53"},
		{"range", &citation.Locator{Pages: "36-44"}, true, "pp. 36-44"},
		{"no_space", &citation.Locator{Pages: "53"}, false, "p.53"},
		{"suffix", &citation.Locator{Pages: "36-44", Suffix: "fig. 2"}, true, "pp. 36-44, fig. 2"},
		{"suffix_without_pages", &citation.Locator{Suffix: "fig. 2"}, true, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Pages(tc.locator, Options{SpaceBeforePage: tc.space})
			if got != tc.expected {
				t.Errorf("Pages = %q, want %q", got, tc.expected)
			}
		})
	}
}

func TestEntry(t *testing.T) {
	opts := DefaultOptions()
	noYear := &bibliography.Entry{Author: "Euclid", Title: "Elements"}
	titleOnly := &bibliography.Entry{Title: "Anonymous Tract"}

	testCases := []struct {
		name     string
		variant  citation.Variant
		entry    *bibliography.Entry
		locator  *citation.Locator
		expected string
	}{
		{"cite_with_page", citation.VariantCite, coxeter, &citation.Locator{Pages: "53"}, "Coxeter, 1987, p. 53"},
		{"cite_without_page", citation.VariantCite, coxeter, nil, "Coxeter, 1987"},
		{"cite_with_prefix", citation.VariantCite, coxeter, &citation.Locator{Prefix: "see", Pages: "5"}, "see Coxeter, 1987, p. 5"},
		{"citeauthor", citation.VariantCiteAuthor, coxeter, &citation.Locator{Pages: "53"}, "Coxeter"},
		{"Citeauthor", citation.VariantAuthorCap, coxeter, nil, "Coxeter"},
		{"citeyear", citation.VariantCiteYear, coxeter, nil, "1987"},
		{"citetitle", citation.VariantCiteTitle, coxeter, &citation.Locator{Pages: "53"}, "Projective Geometry"},
		{"textcite", citation.VariantTextcite, coxeter, &citation.Locator{Pages: "53"}, "Coxeter (1987, p. 53)"},
		{"textcite_no_page", citation.VariantTextcite, coxeter, nil, "Coxeter (1987)"},
		{"textcite_no_year", citation.VariantTextCap, noYear, &citation.Locator{Pages: "3"}, "Euclid (p. 3)"},
		{"textcite_author_only", citation.VariantTextcite, noYear, nil, "Euclid"},
		{"textcite_no_author", citation.VariantTextcite, titleOnly, &citation.Locator{Pages: "9"}, "(p. 9)"},
		{"missing_year", citation.VariantCite, noYear, nil, "Euclid"},
		{"prefix_without_author", citation.VariantCite, titleOnly, &citation.Locator{Prefix: "cf."}, "cf."},
		{"empty_entry", citation.VariantCite, &bibliography.Entry{}, nil, ""},
		{"nil_entry", citation.VariantCite, nil, nil, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Entry(tc.variant, tc.entry, tc.locator, opts); got != tc.expected {
				t.Errorf("Entry = %q, want %q", got, tc.expected)
			}
		})
	}
}

func TestFormatterFormat(t *testing.T) {
	knuth := &bibliography.Entry{Author: "Knuth", Year: "1984"}

	testCases := []struct {
		name     string
		raw      string
		entries  []*bibliography.Entry
		opts     Options
		expected string
	}{
		{"single", "[[cite:CoxeterPG2ed][53]]", []*bibliography.Entry{coxeter}, DefaultOptions(), "Coxeter, 1987, p. 53"},
		{"parencite_range", "[[parencite:CoxeterPG2ed][36-44]]", []*bibliography.Entry{coxeter}, DefaultOptions(), "(Coxeter, 1987, pp. 36-44)"},
		{"citep_multiple", "[[citep:A,B]]", []*bibliography.Entry{coxeter, knuth}, DefaultOptions(), "(Coxeter, 1987; Knuth, 1984)"},
		{"nil_slot_skipped", "[[cite:A,B]]", []*bibliography.Entry{nil, knuth}, DefaultOptions(), "Knuth, 1984"},
		{"empty_entry_skipped", "[[cite:A,B]]", []*bibliography.Entry{{}, knuth}, DefaultOptions(), "Knuth, 1984"},
		{"nothing_resolved", "[[parencite:A]]", []*bibliography.Entry{nil}, DefaultOptions(), ""},
		{"no_space_option", "[[cite:CoxeterPG2ed][53]]", []*bibliography.Entry{coxeter}, Options{}, "Coxeter, 1987, p.53"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			link, err := citation.Parse(tc.raw)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if got := New(tc.opts).Format(link, tc.entries); got != tc.expected {
				t.Errorf("Format = %q, want %q", got, tc.expected)
			}
		})
	}
}

func TestFormatterCustomFunc(t *testing.T) {
	link, err := citation.Parse("[[parencite:A,B][12]]")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	formatter := New(DefaultOptions())
	formatter.Func = func(variant citation.Variant, entry *bibliography.Entry, locator *citation.Locator, opts Options) string {
		if entry.Year == "" {
			return ""
		}
		return strings.ToUpper(entry.Author) + "@" + locator.Pages
	}

	entries := []*bibliography.Entry{coxeter, {Author: "Nobody"}}
	if got := formatter.Format(link, entries); got != "(COXETER@12)" {
		t.Errorf("Format = %q, want %q", got, "(COXETER@12)")
	}
}
