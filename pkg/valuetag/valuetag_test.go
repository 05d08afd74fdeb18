/*
 *   Copyright (c) 2026 Anton Brekhov
 *   All rights reserved.
 */

package valuetag

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type exported struct {
	Tagged
	name string
}

func TestNewTag(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		tag := NewTag()
		require.NotEmpty(t, tag)
		_, dup := seen[tag]
		require.False(t, dup, "duplicate tag %s", tag)
		seen[tag] = struct{}{}
	}
}

func TestManager_Objects(t *testing.T) {
	t.Run("exportable receives its tag", func(t *testing.T) {
		m := NewManager()
		obj := &exported{name: "pc"}

		m.SetTagForObject("tag-1", obj)
		tag, ok := m.TagForObject(obj)
		require.True(t, ok)
		assert.Equal(t, "tag-1", tag)
		assert.Equal(t, "tag-1", obj.ValueTag())
	})

	t.Run("empty tag removes association", func(t *testing.T) {
		m := NewManager()
		obj := &exported{}
		m.SetTagForObject("tag-1", obj)
		m.SetTagForObject("", obj)

		_, ok := m.TagForObject(obj)
		assert.False(t, ok)
		assert.Empty(t, obj.ValueTag())
	})

	t.Run("plain pointers are tracked", func(t *testing.T) {
		m := NewManager()
		type engineObject struct{ n int }
		a, b := &engineObject{1}, &engineObject{1}
		m.SetTagForObject("a", a)

		tag, ok := m.TagForObject(a)
		require.True(t, ok)
		assert.Equal(t, "a", tag)
		_, ok = m.TagForObject(b)
		assert.False(t, ok, "distinct pointers must not share a tag")
	})

	t.Run("nil object is absent", func(t *testing.T) {
		m := NewManager()
		m.SetTagForObject("x", nil)
		_, ok := m.TagForObject(nil)
		assert.False(t, ok)
		assert.Equal(t, 0, m.Len())
	})
}

func TestManager_Strings(t *testing.T) {
	m := NewManager()
	m.SetTagForString("tag-s", "stream-1")

	tag, ok := m.TagForString("stream-1")
	require.True(t, ok)
	assert.Equal(t, "tag-s", tag)

	m.RemoveTagForString("stream-1")
	_, ok = m.TagForString("stream-1")
	assert.False(t, ok)

	m.SetTagForString("tag-s", "stream-2")
	m.Clear()
	assert.Equal(t, 0, m.Len())
}

func TestManager_Concurrent(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			obj := &exported{}
			tag := NewTag()
			m.SetTagForObject(tag, obj)
			got, ok := m.TagForObject(obj)
			assert.True(t, ok)
			assert.Equal(t, tag, got)
			m.RemoveTagForObject(obj)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, m.Len())
}
