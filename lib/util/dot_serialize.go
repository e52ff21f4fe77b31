/**
 * Copyright 2021-2025 Adobe. All rights reserved.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License. You may obtain a copy
 * of the License at http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under
 * the License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR REPRESENTATIONS
 * OF ANY KIND, either express or implied. See the License for the specific language
 * governing permissions and limitations under the License.
 */

// Author: Sergei Parshev (@sparshev)

package util

import (
	"fmt"
	"reflect"
	"strconv"
)

// DotSerialize flattens the nested maps and slices into one level map with dot-separated keys
// Example: {"a": {"b": [1, 2]}} -> {"a.b.0": "1", "a.b.1": "2"}
func DotSerialize(prefix string, in any) map[string]string {
	out := make(map[string]string)
	dotSerialize(out, prefix, reflect.ValueOf(in))
	return out
}

func dotSerialize(out map[string]string, prefix string, v reflect.Value) {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.IsNil() {
			out[prefix] = ""
			return
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		out[prefix] = ""
		return
	}

	switch v.Kind() {
	case reflect.Map:
		for _, k := range v.MapKeys() {
			dotSerialize(out, joinDotKey(prefix, fmt.Sprintf("%v", k.Interface())), v.MapIndex(k))
		}
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			// []byte is stored as string
			out[prefix] = string(v.Bytes())
			return
		}
		for i := 0; i < v.Len(); i++ {
			dotSerialize(out, joinDotKey(prefix, strconv.Itoa(i)), v.Index(i))
		}
	default:
		out[prefix] = fmt.Sprintf("%v", v.Interface())
	}
}

func joinDotKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
