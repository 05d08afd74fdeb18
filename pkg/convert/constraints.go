/*
Copyright © 2026 Anton Brekhov <anton@abrekhov.ru>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package convert

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cast"
)

// KeyValue is a single legacy media constraint.
type KeyValue struct {
	Key   string
	Value string
}

// Constraints are legacy offer/answer and peer connection constraints.
type Constraints struct {
	Mandatory []KeyValue
	Optional  []KeyValue
}

// Lookup returns the value of key, mandatory entries first.
func (c *Constraints) Lookup(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	for _, kv := range c.Mandatory {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	for _, kv := range c.Optional {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Bool returns the value of key parsed as a boolean.
func (c *Constraints) Bool(key string) bool {
	v, ok := c.Lookup(key)
	if !ok {
		return false
	}
	b, err := cast.ToBoolE(v)
	return err == nil && b
}

// MediaConstraints converts {mandatory: {...}, optional: [{...}] | {...}}.
// Values are stringified; null becomes "null".
func MediaConstraints(v interface{}) (*Constraints, error) {
	c := &Constraints{}
	if v == nil {
		return c, nil
	}
	m, err := object("media constraints", v)
	if err != nil {
		return nil, err
	}
	mandatory, ok := m["mandatory"]
	if !ok {
		mandatory = m["mandotory"]
	}
	if c.Mandatory, err = keyValues("mandatory", mandatory); err != nil {
		return nil, err
	}

	switch opt := m["optional"].(type) {
	case nil:
	case []interface{}:
		for _, e := range opt {
			kvs, err := keyValues("optional", e)
			if err != nil {
				return nil, err
			}
			c.Optional = append(c.Optional, kvs...)
		}
	default:
		if c.Optional, err = keyValues("optional", opt); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func keyValues(what string, v interface{}) ([]KeyValue, error) {
	if v == nil {
		return nil, nil
	}
	m, err := object("media constraints "+what, v)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]KeyValue, 0, len(keys))
	for _, k := range keys {
		s, err := stringify(m[k])
		if err != nil {
			return nil, malformed("media constraints "+what, err.Error())
		}
		out = append(out, KeyValue{Key: k, Value: s})
	}
	return out, nil
}

func stringify(v interface{}) (string, error) {
	switch v.(type) {
	case nil:
		return "null", nil
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("stringify: %w", err)
		}
		return string(b), nil
	}
	return cast.ToStringE(v)
}

// Facing modes accepted by getUserMedia.
const (
	FacingUser        = "user"
	FacingEnvironment = "environment"
)

// VideoConstraints select and configure a video source.
type VideoConstraints struct {
	FacingMode  string  `json:"facingMode"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FrameRate   int     `json:"frameRate"`
	AspectRatio float64 `json:"aspectRatio"`
	SourceID    string  `json:"sourceId"`
}

// AudioConstraints enable the audio source.
type AudioConstraints struct{}

// StreamConstraints are getUserMedia constraints. A nil member means the
// corresponding track is disabled.
type StreamConstraints struct {
	Video *VideoConstraints
	Audio *AudioConstraints
}

// DefaultVideoConstraints is what {video: true} means.
func DefaultVideoConstraints() VideoConstraints {
	return VideoConstraints{
		FacingMode:  FacingUser,
		Width:       1280,
		Height:      720,
		FrameRate:   30,
		AspectRatio: 1280.0 / 720.0,
	}
}

// MediaStreamConstraints converts {video, audio}. Each member may be a
// boolean, an object or absent.
func MediaStreamConstraints(v interface{}) (*StreamConstraints, error) {
	if v == nil {
		return &StreamConstraints{}, nil
	}
	m, err := object("media stream constraints", v)
	if err != nil {
		return nil, err
	}
	sc := &StreamConstraints{}

	switch video := m["video"].(type) {
	case nil:
	case bool:
		if video {
			d := DefaultVideoConstraints()
			sc.Video = &d
		}
	case map[string]interface{}:
		d := DefaultVideoConstraints()
		if err := decode("video constraints", video, &d); err != nil {
			return nil, err
		}
		if d.FacingMode != FacingUser && d.FacingMode != FacingEnvironment {
			return nil, malformed("video constraints", fmt.Sprintf("unknown facingMode %q", d.FacingMode))
		}
		if d.Width < 0 || d.Height < 0 || d.FrameRate < 0 || d.AspectRatio < 0 {
			return nil, malformed("video constraints", "negative dimension")
		}
		if _, ok := video["aspectRatio"]; !ok && d.Height > 0 {
			d.AspectRatio = float64(d.Width) / float64(d.Height)
		}
		sc.Video = &d
	default:
		return nil, malformed("media stream constraints", fmt.Sprintf("video: unexpected %T", video))
	}

	switch audio := m["audio"].(type) {
	case nil:
	case bool:
		if audio {
			sc.Audio = &AudioConstraints{}
		}
	case map[string]interface{}:
		sc.Audio = &AudioConstraints{}
	default:
		return nil, malformed("media stream constraints", fmt.Sprintf("audio: unexpected %T", audio))
	}
	return sc, nil
}
