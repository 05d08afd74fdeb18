/*
 *   Copyright (c) 2026 Anton Brekhov
 *   All rights reserved.
 */

// Package valuetag issues and resolves the opaque tags that identify
// engine objects on the scripting side of the bridge.
package valuetag

import (
	"sync"

	"github.com/google/uuid"
)

// NewTag returns a new process-unique value tag.
func NewTag() string {
	return uuid.NewString()
}

// Exportable is implemented by every object that can be handed across the bridge.
type Exportable interface {
	ValueTag() string
	SetValueTag(tag string)
}

// Object is an Exportable that can be stored in a Table.
type Object interface {
	comparable
	Exportable
}

// Tagged is embedded by bridge wrappers to make them Exportable.
type Tagged struct {
	mu  sync.RWMutex
	tag string
}

// ValueTag returns the tag, or "" when the object has not been exported.
func (t *Tagged) ValueTag() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tag
}

// SetValueTag sets the tag. An empty tag marks the object as released.
func (t *Tagged) SetValueTag(tag string) {
	t.mu.Lock()
	t.tag = tag
	t.mu.Unlock()
}

// Manager associates tags with arbitrary objects and with string keys.
// Objects must be comparable; pointers are the normal case.
type Manager struct {
	mu      sync.RWMutex
	objects map[interface{}]string
	strings map[string]string
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		objects: make(map[interface{}]string),
		strings: make(map[string]string),
	}
}

// TagForObject returns the tag associated with obj.
func (m *Manager) TagForObject(obj interface{}) (string, bool) {
	if obj == nil {
		return "", false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tag, ok := m.objects[obj]
	return tag, ok
}

// SetTagForObject associates tag with obj. An empty tag removes the association.
// Exportable objects also get the tag stored on themselves.
func (m *Manager) SetTagForObject(tag string, obj interface{}) {
	if obj == nil {
		return
	}
	if tag == "" {
		m.RemoveTagForObject(obj)
		return
	}
	m.mu.Lock()
	m.objects[obj] = tag
	m.mu.Unlock()
	if e, ok := obj.(Exportable); ok {
		e.SetValueTag(tag)
	}
}

// RemoveTagForObject drops the association for obj.
func (m *Manager) RemoveTagForObject(obj interface{}) {
	if obj == nil {
		return
	}
	m.mu.Lock()
	delete(m.objects, obj)
	m.mu.Unlock()
	if e, ok := obj.(Exportable); ok {
		e.SetValueTag("")
	}
}

// TagForString returns the tag associated with key.
func (m *Manager) TagForString(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tag, ok := m.strings[key]
	return tag, ok
}

// SetTagForString associates tag with key. An empty tag removes the association.
func (m *Manager) SetTagForString(tag, key string) {
	if tag == "" {
		m.RemoveTagForString(key)
		return
	}
	m.mu.Lock()
	m.strings[key] = tag
	m.mu.Unlock()
}

// RemoveTagForString drops the association for key.
func (m *Manager) RemoveTagForString(key string) {
	m.mu.Lock()
	delete(m.strings, key)
	m.mu.Unlock()
}

// Len returns the number of object and string associations.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects) + len(m.strings)
}

// Clear drops every association.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.objects = make(map[interface{}]string)
	m.strings = make(map[string]string)
	m.mu.Unlock()
}
