/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package attrs

import (
	"sort"
	"strconv"
	"strings"
)

// Map is a tree of attribute values addressed by dot paths. Nested nodes are
// map[string]any or []any; everything else is a leaf.
type Map = map[string]any

func split(path string) []string {
	return strings.Split(path, ".")
}

// Get returns the value stored at path. A literal key containing dots wins
// over the nested lookup.
func Get(m Map, path string) (any, bool) {
	if m == nil {
		return nil, false
	}
	if v, ok := m[path]; ok {
		return v, true
	}
	var node any = m
	for _, seg := range split(path) {
		switch n := node.(type) {
		case map[string]any:
			v, ok := n[seg]
			if !ok {
				return nil, false
			}
			node = v
		case []any:
			i, ok := index(seg, len(n))
			if !ok {
				return nil, false
			}
			node = n[i]
		default:
			return nil, false
		}
	}
	return node, true
}

// Has reports whether path resolves to a value, nil included.
func Has(m Map, path string) bool {
	_, ok := Get(m, path)
	return ok
}

// Set writes v at path, creating intermediate maps as needed. m must not be nil.
func Set(m Map, path string, v any) {
	set(m, split(path), v)
}

func set(node any, segs []string, v any) any {
	if len(segs) == 0 {
		return v
	}
	seg := segs[0]
	switch n := node.(type) {
	case map[string]any:
		n[seg] = set(n[seg], segs[1:], v)
		return n
	case []any:
		if i, err := strconv.Atoi(seg); err == nil && i >= 0 {
			if i < len(n) {
				n[i] = set(n[i], segs[1:], v)
				return n
			}
			if i == len(n) {
				return append(n, set(nil, segs[1:], v))
			}
		}
		m := listToMap(n)
		m[seg] = set(m[seg], segs[1:], v)
		return m
	default:
		return Map{seg: set(nil, segs[1:], v)}
	}
}

// Forget removes the value at path. Missing paths are ignored.
func Forget(m Map, path string) {
	if m == nil {
		return
	}
	if _, ok := m[path]; ok {
		delete(m, path)
		return
	}
	forget(m, split(path))
}

func forget(node any, segs []string) any {
	switch n := node.(type) {
	case map[string]any:
		if len(segs) == 1 {
			delete(n, segs[0])
			return n
		}
		if child, ok := n[segs[0]]; ok {
			n[segs[0]] = forget(child, segs[1:])
		}
		return n
	case []any:
		i, ok := index(segs[0], len(n))
		if !ok {
			return n
		}
		if len(segs) == 1 {
			return append(n[:i:i], n[i+1:]...)
		}
		n[i] = forget(n[i], segs[1:])
		return n
	}
	return node
}

// Except returns a deep copy of m without the given paths.
func Except(m Map, paths ...string) Map {
	out := Clone(m)
	if out == nil {
		out = Map{}
	}
	for _, p := range paths {
		Forget(out, p)
	}
	return out
}

// Only returns a map holding the given top level keys of m that are present.
func Only(m Map, keys ...string) Map {
	out := make(Map, len(keys))
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out[k] = cloneValue(v)
		}
	}
	return out
}

// Clone deep-copies maps and lists; leaves are shared.
func Clone(m Map) Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch n := v.(type) {
	case map[string]any:
		return Clone(n)
	case []any:
		return cloneList(n)
	}
	return v
}

func cloneList(l []any) []any {
	out := make([]any, len(l))
	for i, v := range l {
		out[i] = cloneValue(v)
	}
	return out
}

// MergeRecursive merges override into a copy of base. Maps merge key by key,
// lists merge index by index and override wins on any other conflict.
// Neither input is modified.
func MergeRecursive(base, override Map) Map {
	out := Clone(base)
	if out == nil {
		out = Map{}
	}
	for k, v := range override {
		out[k] = mergeValue(out[k], v)
	}
	return out
}

func mergeValue(dst, src any) any {
	switch s := src.(type) {
	case map[string]any:
		switch d := dst.(type) {
		case map[string]any:
			return MergeRecursive(d, s)
		case []any:
			return MergeRecursive(listToMap(d), s)
		}
		return Clone(s)
	case []any:
		switch d := dst.(type) {
		case []any:
			merged := cloneList(d)
			for i, v := range s {
				if i < len(merged) {
					merged[i] = mergeValue(merged[i], v)
				} else {
					merged = append(merged, cloneValue(v))
				}
			}
			return merged
		case map[string]any:
			m := Clone(d)
			for i, v := range s {
				k := strconv.Itoa(i)
				m[k] = mergeValue(m[k], v)
			}
			return m
		}
		return cloneList(s)
	}
	return src
}

// AddOrReplace expands every dot key of overrides into a tree and merges it
// recursively over m. m itself is left untouched.
func AddOrReplace(m Map, overrides Map) Map {
	if len(overrides) == 0 {
		return Clone(m)
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	// parents before children so "a" then "a.b" refines rather than clobbers
	sort.Strings(keys)
	tree := Map{}
	for _, k := range keys {
		Set(tree, k, cloneValue(overrides[k]))
	}
	return MergeRecursive(m, tree)
}

// Records returns the map values stored under numeric keys, in key order.
// Request payloads carry several records this way ("0.name", "1.name").
func Records(m Map) []Map {
	type entry struct {
		idx int
		rec Map
	}
	entries := make([]entry, 0, len(m))
	for k, v := range m {
		i, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		if rec, ok := v.(map[string]any); ok {
			entries = append(entries, entry{i, rec})
		}
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].idx < entries[b].idx })
	out := make([]Map, len(entries))
	for i, e := range entries {
		out[i] = e.rec
	}
	return out
}

// Keys returns the top level keys of m sorted.
func Keys(m Map) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func index(seg string, n int) (int, bool) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

func listToMap(l []any) Map {
	m := make(Map, len(l))
	for i, v := range l {
		m[strconv.Itoa(i)] = v
	}
	return m
}
