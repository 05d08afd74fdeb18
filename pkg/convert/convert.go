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

// Package convert translates loosely typed bridge payloads into engine
// values and engine values back into JSON-ready maps.
package convert

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// ErrMalformed is wrapped by every inbound conversion failure.
var ErrMalformed = errors.New("malformed value")

func malformed(what string, reason string) error {
	return fmt.Errorf("%s: %w: %s", what, ErrMalformed, reason)
}

// object asserts that v is a decoded JSON object.
func object(what string, v interface{}) (map[string]interface{}, error) {
	if v == nil {
		return nil, malformed(what, "value is null")
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, malformed(what, fmt.Sprintf("expected object, got %T", v))
	}
	return m, nil
}

// decode maps a JSON object onto a struct using its json tags.
func decode(what string, in map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "json",
		Result:     out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(integerHook),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("%s: %w: %v", what, ErrMalformed, err)
	}
	return nil
}

// integerHook rejects JSON numbers that do not fit the integer field they
// decode into.
func integerHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.Float64 && from.Kind() != reflect.Float32 {
		return data, nil
	}
	f := reflect.ValueOf(data).Float()
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 || reflect.Zero(to).OverflowInt(int64(f)) {
			return nil, fmt.Errorf("%v does not fit %s", data, to)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 || reflect.Zero(to).OverflowUint(uint64(f)) {
			return nil, fmt.Errorf("%v does not fit %s", data, to)
		}
	}
	return data, nil
}
