package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

type memoryRecord struct {
	scope   string
	version int64
	seq     int64
	body    []byte
}

// MemoryCollection keeps JSON copies of documents in a map.
// Callers never share memory with stored documents.
type MemoryCollection[T Entity] struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
	seq     int64
}

// NewMemoryCollection creates an empty in-memory collection
func NewMemoryCollection[T Entity]() *MemoryCollection[T] {
	return &MemoryCollection[T]{
		records: make(map[string]*memoryRecord),
	}
}

func (c *MemoryCollection[T]) decode(rec *memoryRecord) (T, error) {
	var doc T
	if err := json.Unmarshal(rec.body, &doc); err != nil {
		return doc, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

// Get returns a copy of the stored document
func (c *MemoryCollection[T]) Get(ctx context.Context, id string) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.records[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return c.decode(rec)
}

// Insert stores doc at version 1
func (c *MemoryCollection[T]) Insert(ctx context.Context, doc T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := doc.GetID()
	if _, exists := c.records[id]; exists {
		return ErrDuplicate
	}

	prev := doc.GetVersion()
	doc.SetVersion(1)
	body, err := json.Marshal(doc)
	if err != nil {
		doc.SetVersion(prev)
		return fmt.Errorf("failed to encode document: %w", err)
	}

	c.seq++
	c.records[id] = &memoryRecord{scope: doc.GetScope(), version: 1, seq: c.seq, body: body}
	return nil
}

// Replace overwrites doc if its version matches the stored one
func (c *MemoryCollection[T]) Replace(ctx context.Context, doc T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[doc.GetID()]
	if !ok {
		return ErrNotFound
	}
	expected := doc.GetVersion()
	if rec.version != expected {
		return ErrConflict
	}

	doc.SetVersion(expected + 1)
	body, err := json.Marshal(doc)
	if err != nil {
		doc.SetVersion(expected)
		return fmt.Errorf("failed to encode document: %w", err)
	}

	rec.scope = doc.GetScope()
	rec.version = expected + 1
	rec.body = body
	return nil
}

// Delete removes a document
func (c *MemoryCollection[T]) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.records[id]; !ok {
		return ErrNotFound
	}
	delete(c.records, id)
	return nil
}

// List returns documents in scope in insertion order
func (c *MemoryCollection[T]) List(ctx context.Context, scope string) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	matched := make([]*memoryRecord, 0)
	for _, rec := range c.records {
		if scope == "" || rec.scope == scope {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	docs := make([]T, 0, len(matched))
	for _, rec := range matched {
		doc, err := c.decode(rec)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// DeleteScope removes every document in scope
func (c *MemoryCollection[T]) DeleteScope(ctx context.Context, scope string) (int64, error) {
	if scope == "" {
		return 0, fmt.Errorf("scope is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	for id, rec := range c.records {
		if rec.scope == scope {
			delete(c.records, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored documents
func (c *MemoryCollection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}
