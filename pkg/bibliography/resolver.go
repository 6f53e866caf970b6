package bibliography

import (
	"errors"
	"log/slog"
	"regexp"
	"strings"
)

// Entry holds the display fields of one resolved key. Empty strings mean
// the bibliography has no such field.
type Entry struct {
	Author string `json:"author,omitempty"`
	Year   string `json:"year,omitempty"`
	Title  string `json:"title,omitempty"`
}

// Empty reports whether the entry has no usable field.
func (e *Entry) Empty() bool {
	return e == nil || (e.Author == "" && e.Year == "" && e.Title == "")
}

// Resolver maps citation keys to entries through an Index.
//
// Not safe for concurrent use; the lookup counter is plain state owned by
// the caller's goroutine.
type Resolver struct {
	index   Index
	logger  *slog.Logger
	lookups int
}

// NewResolver creates a resolver over index. A nil logger uses slog.Default().
func NewResolver(index Index, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{index: index, logger: logger}
}

// Resolve returns one slot per key, in order. Keys without a record (or
// whose lookup fails) get a nil slot; the failure is logged, never returned.
func (r *Resolver) Resolve(keys []string) []*Entry {
	entries := make([]*Entry, len(keys))
	for i, key := range keys {
		r.lookups++
		record, err := r.index.Lookup(key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				r.logger.Debug("citation key not in bibliography", "key", key)
			} else {
				r.logger.Warn("bibliography lookup failed", "key", key, "error", err)
			}
			continue
		}
		entries[i] = EntryFromRecord(record)
	}
	return entries
}

// Lookups returns how many index lookups Resolve has issued.
func (r *Resolver) Lookups() int {
	return r.lookups
}

// EntryFromRecord normalizes a raw record into display fields.
func EntryFromRecord(record Record) *Entry {
	year := record.Field("year")
	if year == "" {
		if date := record.Field("date"); date != "" {
			year, _, _ = strings.Cut(date, "-")
		}
	}
	return &Entry{
		Author: FormatAuthors(stripBraces(record.Field("author"))),
		Year:   stripBraces(year),
		Title:  stripBraces(record.Field("title")),
	}
}

func stripBraces(s string) string {
	return strings.NewReplacer("{", "", "}", "").Replace(s)
}

// middleInitial matches " X." followed by a space or the end of the string.
var middleInitial = regexp.MustCompile(` [[:alpha:]]\.( |$)`)

// authorsBeforeEtAl is the largest author list rendered in full.
const authorsBeforeEtAl = 3

// FormatAuthors renders a BibTeX author list as surnames:
//
//	"Coxeter, H.S.M."                       -> "Coxeter"
//	"Knuth, Donald E. and Plass, Michael F." -> "Knuth and Plass"
//	"A, B and C, D and E, F and G, H"        -> "A et al."
func FormatAuthors(raw string) string {
	author := stripBraces(raw)
	// Initials can be adjacent (" A. B. Smith"); the separator space is
	// consumed by each match, so repeat until stable.
	for {
		next := middleInitial.ReplaceAllString(author, "$1")
		if next == author {
			break
		}
		author = next
	}
	author = strings.TrimSpace(author)
	if author == "" {
		return ""
	}

	names := strings.Split(author, " and ")
	surnames := make([]string, 0, len(names))
	for _, name := range names {
		surname, _, _ := strings.Cut(strings.TrimSpace(name), ", ")
		// "Smith, J." loses its initial but keeps the comma.
		surname = strings.TrimSpace(strings.TrimRight(surname, ","))
		if surname != "" {
			surnames = append(surnames, surname)
		}
	}
	if len(surnames) == 0 {
		return ""
	}
	if len(surnames) > authorsBeforeEtAl {
		return surnames[0] + " et al."
	}
	return strings.Join(surnames, " and ")
}
