package decorate

import (
	"testing"

	"github.com/coolbeans/citelens/pkg/bibliography"
	"github.com/coolbeans/citelens/pkg/document"
	"github.com/coolbeans/citelens/pkg/format"
)

func testLibrary() *bibliography.Library {
	lib := bibliography.NewLibrary()
	lib.Add("CoxeterPG2ed", "book", bibliography.Record{
		"author": "Coxeter, H.S.M.",
		"year":   "1987",
		"title":  "Projective Geometry",
	})
	lib.Add("knuth84", "article", bibliography.Record{
		"author": "Knuth, Donald E.",
		"date":   "1984-05",
		"title":  "Literate Programming",
	})
	return lib
}

type fixture struct {
	buffer   *document.Buffer
	resolver *bibliography.Resolver
	engine   *Engine
}

func newFixture(text string) *fixture {
	buffer := document.NewBuffer(text)
	resolver := bibliography.NewResolver(testLibrary(), nil)
	engine := New(buffer, resolver, format.New(format.DefaultOptions()))
	return &fixture{buffer: buffer, resolver: resolver, engine: engine}
}

func TestEngineRendersLinks(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		expected string
	}{
		{"cite_with_page", "See [[cite:CoxeterPG2ed][53]].", "See Coxeter, 1987, p. 53."},
		{"citetitle", "In [[citetitle:CoxeterPG2ed]] we read", "In Projective Geometry we read"},
		{"parencite_range", "Shown [[parencite:CoxeterPG2ed][36-44]].", "Shown (Coxeter, 1987, pp. 36-44)."},
		{"textcite", "[[textcite:knuth84][3]] argues", "Knuth (1984, p. 3) argues"},
		{"multiple_keys", "[[citep:CoxeterPG2ed,knuth84]]", "(Coxeter, 1987; Knuth, 1984)"},
		{"partially_resolved", "[[cite:missing,knuth84]]", "Knuth, 1984"},
		{"missing_key", "See [[cite:NoSuchKey][5]].", "See [[cite:NoSuchKey][5]]."},
		{"bare_form", "See cite:CoxeterPG2ed here", "See cite:CoxeterPG2ed here"},
		{
			"multiline",
			"A [[citeyear:CoxeterPG2ed]]\nB [[citeauthor:knuth84]]",
			"A 1987\nB Knuth",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(tc.text)
			f.engine.Enable()

			if got := f.buffer.Display(); got != tc.expected {
				t.Errorf("Display() = %q, want %q", got, tc.expected)
			}
			if f.buffer.String() != tc.text {
				t.Errorf("raw text modified: %q", f.buffer.String())
			}
		})
	}
}

func TestEngineRejectsBareForm(t *testing.T) {
	f := newFixture("cite:CoxeterPG2ed and [[cite:CoxeterPG2ed]]")
	f.engine.Enable()

	stats := f.engine.Stats()
	if stats.Rejected != 1 || stats.Decorated != 1 {
		t.Errorf("stats = %+v, want 1 rejected and 1 decorated", stats)
	}
	if got := f.buffer.Display(); got != "cite:CoxeterPG2ed and Coxeter, 1987" {
		t.Errorf("Display() = %q", got)
	}
}

func TestEngineRerenderIsIdempotent(t *testing.T) {
	f := newFixture("See [[cite:CoxeterPG2ed][53]] and [[cite:NoSuchKey]].")
	f.engine.Enable()

	lookups := f.resolver.Lookups()
	display := f.buffer.Display()
	if lookups != 2 {
		t.Fatalf("Lookups() after first pass = %d, want 2", lookups)
	}

	f.engine.Rerender(document.Range{Start: 0, End: f.buffer.Len()})
	f.engine.Rerender(document.Range{Start: 0, End: f.buffer.Len()})

	if f.resolver.Lookups() != lookups {
		t.Errorf("Rerender issued %d new lookups", f.resolver.Lookups()-lookups)
	}
	if f.buffer.Display() != display {
		t.Errorf("Display() changed to %q", f.buffer.Display())
	}
	if f.engine.Stats().CacheHits != 4 {
		t.Errorf("CacheHits = %d, want 4", f.engine.Stats().CacheHits)
	}
}

func TestEngineEditInsideLink(t *testing.T) {
	f := newFixture("See [[cite:CoxeterPG2ed][53]].")
	f.engine.Enable()

	// Replace the page "53" with "12".
	if err := f.buffer.Replace(25, 27, "12"); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	if got := f.buffer.Display(); got != "See Coxeter, 1987, p. 12." {
		t.Errorf("Display() = %q", got)
	}
	if f.resolver.Lookups() != 2 {
		t.Errorf("Lookups() = %d, want 2 (span touched by edit)", f.resolver.Lookups())
	}
}

func TestEngineEditBeforeLinkReusesCache(t *testing.T) {
	f := newFixture("See [[cite:CoxeterPG2ed][53]].")
	f.engine.Enable()

	if err := f.buffer.Insert(0, "Also "); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if got := f.buffer.Display(); got != "Also See Coxeter, 1987, p. 53." {
		t.Errorf("Display() = %q", got)
	}
	if f.resolver.Lookups() != 1 {
		t.Errorf("Lookups() = %d, want 1", f.resolver.Lookups())
	}
	if _, ok := f.engine.Cache().Get(28); !ok {
		t.Error("cache anchor should have moved to 28")
	}
}

func TestEngineTypingNextToLinkKeepsCache(t *testing.T) {
	f := newFixture("See [[cite:CoxeterPG2ed][53]]")
	f.engine.Enable()

	if err := f.buffer.Insert(f.buffer.Len(), "."); err != nil {
		t.Fatalf("Insert after link failed: %v", err)
	}
	if err := f.buffer.Insert(4, "x"); err != nil {
		t.Fatalf("Insert before link failed: %v", err)
	}

	if got := f.buffer.Display(); got != "See xCoxeter, 1987, p. 53." {
		t.Errorf("Display() = %q", got)
	}
	if f.resolver.Lookups() != 1 {
		t.Errorf("Lookups() = %d, want 1", f.resolver.Lookups())
	}
}

func TestTouchesSpan(t *testing.T) {
	span := document.Range{Start: 4, End: 29}
	testCases := []struct {
		name     string
		change   document.Change
		expected bool
	}{
		{"insert_before", document.Change{Start: 4, End: 5, OldEnd: 4}, false},
		{"insert_after", document.Change{Start: 29, End: 30, OldEnd: 29}, false},
		{"insert_inside", document.Change{Start: 10, End: 11, OldEnd: 10}, true},
		{"delete_inside", document.Change{Start: 10, End: 10, OldEnd: 12}, true},
		{"delete_at_start", document.Change{Start: 4, End: 4, OldEnd: 5}, false},
		{"delete_at_end", document.Change{Start: 29, End: 29, OldEnd: 30}, false},
		{"replace_across_start", document.Change{Start: 2, End: 6, OldEnd: 6}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := touchesSpan(tc.change, span); got != tc.expected {
				t.Errorf("touchesSpan(%+v) = %v, want %v", tc.change, got, tc.expected)
			}
		})
	}
}

func TestEngineEditOnOtherLine(t *testing.T) {
	f := newFixture("Intro [[cite:CoxeterPG2ed]]\nSecond line")
	f.engine.Enable()
	passes := f.engine.Stats().Passes

	if err := f.buffer.Insert(f.buffer.Len(), " continues"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if got := f.buffer.Display(); got != "Intro Coxeter, 1987\nSecond line continues" {
		t.Errorf("Display() = %q", got)
	}
	stats := f.engine.Stats()
	if stats.Passes != passes+1 || f.resolver.Lookups() != 1 {
		t.Errorf("stats = %+v, lookups = %d", stats, f.resolver.Lookups())
	}
}

func TestEngineTypingAndBreakingLinks(t *testing.T) {
	f := newFixture("See ")
	f.engine.Enable()

	if err := f.buffer.Insert(4, "[[cite:CoxeterPG2ed]]"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if got := f.buffer.Display(); got != "See Coxeter, 1987" {
		t.Errorf("after typing: Display() = %q", got)
	}

	// Removing the closing brackets leaves no structural link.
	if err := f.buffer.Delete(23, 25); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got := f.buffer.Display(); got != "See [[cite:CoxeterPG2ed" {
		t.Errorf("after breaking: Display() = %q", got)
	}
	if len(f.buffer.Overrides()) != 0 {
		t.Errorf("overrides = %+v", f.buffer.Overrides())
	}
}

func TestEngineChangingKeys(t *testing.T) {
	f := newFixture("[[cite:knuth84]]")
	f.engine.Enable()

	if err := f.buffer.Replace(7, 14, "CoxeterPG2ed"); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if got := f.buffer.Display(); got != "Coxeter, 1987" {
		t.Errorf("Display() = %q", got)
	}
}

func TestEngineDisable(t *testing.T) {
	text := "See [[cite:CoxeterPG2ed][53]] and [[citetitle:knuth84]]."
	f := newFixture(text)

	f.engine.Enable()
	f.engine.Enable()
	if f.buffer.Listeners() != 1 {
		t.Errorf("double Enable registered %d listeners", f.buffer.Listeners())
	}
	if len(f.buffer.Overrides()) != 2 {
		t.Fatalf("Expected 2 overrides, got %d", len(f.buffer.Overrides()))
	}

	f.engine.Disable()
	if f.engine.Enabled() {
		t.Error("engine should be disabled")
	}
	if len(f.buffer.Overrides()) != 0 || f.buffer.Display() != text {
		t.Errorf("Disable left display %q", f.buffer.Display())
	}
	if f.buffer.Listeners() != 0 || f.engine.Cache().Len() != 0 {
		t.Error("Disable should unsubscribe and clear the cache")
	}

	// Edits while disabled are not decorated.
	if err := f.buffer.Insert(0, "x"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if len(f.buffer.Overrides()) != 0 {
		t.Error("disabled engine should not decorate")
	}

	f.engine.Enable()
	if len(f.buffer.Overrides()) != 2 {
		t.Errorf("re-Enable should redecorate, got %d overrides", len(f.buffer.Overrides()))
	}
}

func TestLineWindow(t *testing.T) {
	text := "one\ntwo\nthree"
	testCases := []struct {
		r        document.Range
		expected document.Range
	}{
		{document.Range{Start: 0, End: 0}, document.Range{Start: 0, End: 3}},
		{document.Range{Start: 5, End: 5}, document.Range{Start: 4, End: 7}},
		{document.Range{Start: 2, End: 9}, document.Range{Start: 0, End: 13}},
		{document.Range{Start: 50, End: 60}, document.Range{Start: 8, End: 13}},
	}
	for _, tc := range testCases {
		if got := lineWindow(text, tc.r); got != tc.expected {
			t.Errorf("lineWindow(%+v) = %+v, want %+v", tc.r, got, tc.expected)
		}
	}
}
