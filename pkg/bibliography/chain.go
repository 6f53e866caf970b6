package bibliography

import (
	"errors"
	"fmt"
	"sync"
)

// Chain is an ordered collection of named indexes. Lookups try each index
// in registration order and return the first hit.
// Thread-safe for concurrent use.
type Chain struct {
	mu      sync.RWMutex
	indexes map[string]Index
	order   []string
}

// NewChain creates an empty chain.
func NewChain() *Chain {
	return &Chain{
		indexes: make(map[string]Index),
	}
}

// Register appends an index to the chain.
// Returns an error if the index is nil, has an empty name, or an index
// with the same name is already registered.
func (chain *Chain) Register(indexName string, index Index) error {
	if index == nil {
		return fmt.Errorf("bibliography index cannot be nil")
	}
	if indexName == "" {
		return fmt.Errorf("bibliography index name cannot be empty")
	}

	chain.mu.Lock()
	defer chain.mu.Unlock()

	if _, exists := chain.indexes[indexName]; exists {
		return fmt.Errorf("bibliography index %q already registered", indexName)
	}
	chain.indexes[indexName] = index
	chain.order = append(chain.order, indexName)
	return nil
}

// Unregister removes an index by name.
func (chain *Chain) Unregister(indexName string) error {
	chain.mu.Lock()
	defer chain.mu.Unlock()

	if _, exists := chain.indexes[indexName]; !exists {
		return fmt.Errorf("bibliography index %q not found", indexName)
	}
	delete(chain.indexes, indexName)

	filtered := make([]string, 0, len(chain.order))
	for _, existing := range chain.order {
		if existing != indexName {
			filtered = append(filtered, existing)
		}
	}
	chain.order = filtered
	return nil
}

// Get returns an index by name.
func (chain *Chain) Get(indexName string) (Index, bool) {
	chain.mu.RLock()
	defer chain.mu.RUnlock()
	index, ok := chain.indexes[indexName]
	return index, ok
}

// List returns index names in lookup order.
func (chain *Chain) List() []string {
	chain.mu.RLock()
	defer chain.mu.RUnlock()
	names := make([]string, len(chain.order))
	copy(names, chain.order)
	return names
}

// Count returns the number of registered indexes.
func (chain *Chain) Count() int {
	chain.mu.RLock()
	defer chain.mu.RUnlock()
	return len(chain.indexes)
}

// Lookup returns the first record found for key. A non-ErrNotFound error
// from one index does not stop the search; it is returned only when no
// index has the key.
func (chain *Chain) Lookup(key string) (Record, error) {
	chain.mu.RLock()
	indexes := make([]Index, 0, len(chain.order))
	for _, indexName := range chain.order {
		indexes = append(indexes, chain.indexes[indexName])
	}
	chain.mu.RUnlock()

	var firstErr error
	for _, index := range indexes {
		record, err := index.Lookup(key)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, ErrNotFound) && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
}
