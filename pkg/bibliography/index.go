// Package bibliography resolves citation keys to author, year and title
// fields. Records come from an Index: an in-memory BibTeX Library, a SQLite
// Store, or a Chain of several of them.
package bibliography

import (
	"errors"
	"strings"
)

// ErrNotFound is returned by an Index when a key has no record.
var ErrNotFound = errors.New("bibliography record not found")

// Record is one bibliography entry. Field names are lower case.
type Record map[string]string

// Field returns the named field, or "" when absent.
func (r Record) Field(name string) string {
	if r == nil {
		return ""
	}
	return r[strings.ToLower(name)]
}

// Index looks up bibliography records by citation key.
// Implementations return ErrNotFound (possibly wrapped) for unknown keys.
type Index interface {
	Lookup(key string) (Record, error)
}

// IndexFunc adapts a plain function to Index.
type IndexFunc func(key string) (Record, error)

// Lookup calls f(key).
func (f IndexFunc) Lookup(key string) (Record, error) {
	return f(key)
}
