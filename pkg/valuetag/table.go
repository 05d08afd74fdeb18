/*
 *   Copyright (c) 2026 Anton Brekhov
 *   All rights reserved.
 */

package valuetag

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Table keeps live objects addressable both by their engine id and by their tag.
// Each id maps to exactly one tag and each tag to exactly one id.
type Table[T comparable] struct {
	mu      sync.RWMutex
	byID    map[string]T
	idToTag map[string]string
	tagToID map[string]string
}

// NewTable creates an empty Table.
func NewTable[T comparable]() *Table[T] {
	return &Table[T]{
		byID:    make(map[string]T),
		idToTag: make(map[string]string),
		tagToID: make(map[string]string),
	}
}

// Add stores v under id and tag. Adding the same value under an existing id
// keeps the original tag and returns false; a different value under an
// existing id replaces the old entry and its tag.
func (t *Table[T]) Add(id, tag string, v T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.byID[id]; ok {
		if old == v {
			return false
		}
		delete(t.tagToID, t.idToTag[id])
	}
	if oldID, ok := t.tagToID[tag]; ok && oldID != id {
		delete(t.byID, oldID)
		delete(t.idToTag, oldID)
	}
	t.byID[id] = v
	t.idToTag[id] = tag
	t.tagToID[tag] = id
	return true
}

// ByTag returns the value registered under tag.
func (t *Table[T]) ByTag(tag string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var zero T
	id, ok := t.tagToID[tag]
	if !ok {
		return zero, false
	}
	v, ok := t.byID[id]
	return v, ok
}

// ByID returns the value registered under id.
func (t *Table[T]) ByID(id string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.byID[id]
	return v, ok
}

// TagForID returns the tag of the entry with the given id.
func (t *Table[T]) TagForID(id string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tag, ok := t.idToTag[id]
	return tag, ok
}

// IDForTag returns the id of the entry with the given tag.
func (t *Table[T]) IDForTag(tag string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.tagToID[tag]
	return id, ok
}

// TagFor returns the tag under which v is registered.
func (t *Table[T]) TagFor(v T) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for id, candidate := range t.byID {
		if candidate == v {
			return t.idToTag[id], true
		}
	}
	return "", false
}

// ContainsID reports whether an entry with id exists.
func (t *Table[T]) ContainsID(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.byID[id]
	return ok
}

// ContainsTag reports whether an entry with tag exists.
func (t *Table[T]) ContainsTag(tag string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.tagToID[tag]
	return ok
}

// RemoveByID removes the entry with id and returns its value.
func (t *Table[T]) RemoveByID(id string) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(id)
}

// RemoveByTag removes the entry with tag and returns its value.
func (t *Table[T]) RemoveByTag(tag string) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.tagToID[tag]
	if !ok {
		var zero T
		return zero, false
	}
	return t.removeLocked(id)
}

func (t *Table[T]) removeLocked(id string) (T, bool) {
	v, ok := t.byID[id]
	if !ok {
		return v, false
	}
	delete(t.tagToID, t.idToTag[id])
	delete(t.idToTag, id)
	delete(t.byID, id)
	return v, true
}

// All returns every value ordered by id.
func (t *Table[T]) All() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.byID[id])
	}
	return out
}

// Len returns the number of entries.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// Clear removes every entry.
func (t *Table[T]) Clear() {
	t.mu.Lock()
	t.byID = make(map[string]T)
	t.idToTag = make(map[string]string)
	t.tagToID = make(map[string]string)
	t.mu.Unlock()
}

// Dump renders every id, tag and value, one per line, for debug logging.
func (t *Table[T]) Dump() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	sb.WriteString(" * ID - ValueTag - Value\n")
	for _, id := range ids {
		fmt.Fprintf(&sb, " * %s - %s - %v\n", id, t.idToTag[id], t.byID[id])
	}
	return sb.String()
}
