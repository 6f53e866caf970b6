package bibliography

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/nickng/bibtex"
)

// Library is an in-memory Index built from BibTeX source.
type Library struct {
	entries map[string]Record
	folded  map[string]string // lower-case key -> key
	types   map[string]string // key -> entry type ("book", "article", ...)
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{
		entries: make(map[string]Record),
		folded:  make(map[string]string),
		types:   make(map[string]string),
	}
}

// LoadFile parses a .bib file into a new library.
func LoadFile(path string) (*Library, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bibliography: %w", err)
	}
	defer file.Close()

	lib, err := ParseBibTeX(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lib, nil
}

// ParseBibTeX reads BibTeX source into a new library.
func ParseBibTeX(r io.Reader) (*Library, error) {
	lib := NewLibrary()
	if err := lib.Read(r); err != nil {
		return nil, err
	}
	return lib, nil
}

// Read adds every entry in r to the library. @string macros and "#"
// concatenation are expanded; @comment and @preamble are skipped. Later
// entries replace earlier ones with the same key.
func (lib *Library) Read(r io.Reader) error {
	parsed, err := bibtex.Parse(r)
	if err != nil {
		return fmt.Errorf("failed to parse bibliography: %w", err)
	}
	for _, entry := range parsed.Entries {
		key := strings.TrimSpace(entry.CiteName)
		if key == "" {
			return fmt.Errorf("failed to parse bibliography: @%s entry without a citation key", entry.Type)
		}
		record := make(Record, len(entry.Fields))
		for name, value := range entry.Fields {
			if value == nil {
				continue
			}
			record[strings.ToLower(name)] = collapseSpace(value.String())
		}
		lib.Add(key, strings.ToLower(entry.Type), record)
	}
	return nil
}

// Add stores a record under key.
func (lib *Library) Add(key, kind string, record Record) {
	lib.entries[key] = record
	lib.folded[strings.ToLower(key)] = key
	lib.types[key] = kind
}

// Lookup returns the record for key. Exact matches win over case-insensitive
// ones.
func (lib *Library) Lookup(key string) (Record, error) {
	if record, ok := lib.entries[key]; ok {
		return record, nil
	}
	if exact, ok := lib.folded[strings.ToLower(key)]; ok {
		return lib.entries[exact], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Type returns the entry type of key ("book", "article", ...).
func (lib *Library) Type(key string) string {
	return lib.types[key]
}

// Keys returns every key in sorted order.
func (lib *Library) Keys() []string {
	keys := make([]string, 0, len(lib.entries))
	for key := range lib.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (lib *Library) Len() int {
	return len(lib.entries)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
