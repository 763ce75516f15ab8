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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAndHas(t *testing.T) {
	m := Map{
		"user": Map{
			"name": "Michel",
			"tags": []any{"a", Map{"k": "v"}},
		},
		"flat.key": 1,
		"nothing":  nil,
	}

	tests := []struct {
		path  string
		want  any
		found bool
	}{
		{"user.name", "Michel", true},
		{"user.tags.0", "a", true},
		{"user.tags.1.k", "v", true},
		{"user.tags.2", nil, false},
		{"user.missing", nil, false},
		{"flat.key", 1, true},
		{"nothing", nil, true},
		{"user.name.deeper", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := Get(m, tt.path)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.found, Has(m, tt.path))
		})
	}
}

func TestSetCreatesIntermediateNodes(t *testing.T) {
	m := Map{}
	Set(m, "a.b.c", 1)
	Set(m, "a.b.d", 2)
	Set(m, "top", "x")

	assert.Equal(t, Map{
		"a":   Map{"b": Map{"c": 1, "d": 2}},
		"top": "x",
	}, m)
}

func TestSetOnLists(t *testing.T) {
	m := Map{"items": []any{Map{"name": "a"}}}

	Set(m, "items.0.name", "b")
	Set(m, "items.1.name", "c")
	assert.Equal(t, []any{Map{"name": "b"}, Map{"name": "c"}}, m["items"])

	// an index past the end turns the list into a keyed map
	Set(m, "items.5", "z")
	assert.Equal(t, Map{"0": Map{"name": "b"}, "1": Map{"name": "c"}, "5": "z"}, m["items"])
}

func TestSetReplacesScalarParent(t *testing.T) {
	m := Map{"a": "scalar"}
	Set(m, "a.b", 1)
	assert.Equal(t, Map{"a": Map{"b": 1}}, m)
}

func TestForget(t *testing.T) {
	m := Map{
		"user":  Map{"name": "x", "email": "y"},
		"list":  []any{"a", "b", "c"},
		"dot.k": true,
	}
	Forget(m, "user.email")
	Forget(m, "list.1")
	Forget(m, "dot.k")
	Forget(m, "not.there")

	assert.Equal(t, Map{
		"user": Map{"name": "x"},
		"list": []any{"a", "c"},
	}, m)
}

func TestExceptDoesNotMutateInput(t *testing.T) {
	in := Map{
		"_token": "abc",
		"user":   Map{"name": "x", "password": "secret"},
		"list":   []any{"a", "b"},
	}
	out := Except(in, "_token", "user.password", "list.0")

	assert.Equal(t, Map{"user": Map{"name": "x"}, "list": []any{"b"}}, out)
	assert.Equal(t, "abc", in["_token"])
	assert.Equal(t, Map{"name": "x", "password": "secret"}, in["user"])
	assert.Equal(t, []any{"a", "b"}, in["list"])
}

func TestExceptNil(t *testing.T) {
	assert.Equal(t, Map{}, Except(nil, "a"))
}

func TestOnly(t *testing.T) {
	in := Map{"a": 1, "b": Map{"c": 2}, "d": 3}
	out := Only(in, "a", "b", "missing")
	assert.Equal(t, Map{"a": 1, "b": Map{"c": 2}}, out)
}

func TestMergeRecursive(t *testing.T) {
	base := Map{
		"name":   "old",
		"nested": Map{"keep": 1, "swap": 2},
		"list":   []any{"a", "b", "c"},
		"scalar": "s",
	}
	override := Map{
		"name":   "new",
		"nested": Map{"swap": 20, "add": 30},
		"list":   []any{"A"},
		"scalar": Map{"now": "a map"},
		"extra":  []any{1},
	}

	got := MergeRecursive(base, override)

	assert.Equal(t, Map{
		"name":   "new",
		"nested": Map{"keep": 1, "swap": 20, "add": 30},
		"list":   []any{"A", "b", "c"},
		"scalar": Map{"now": "a map"},
		"extra":  []any{1},
	}, got)
	assert.Equal(t, 2, base["nested"].(Map)["swap"], "base must stay untouched")
	assert.Equal(t, []any{"A"}, override["list"], "override must stay untouched")
}

func TestMergeRecursiveMapOverList(t *testing.T) {
	got := MergeRecursive(Map{"l": []any{"a", "b"}}, Map{"l": Map{"1": "B", "x": "y"}})
	assert.Equal(t, Map{"l": Map{"0": "a", "1": "B", "x": "y"}}, got)
}

func TestAddOrReplace(t *testing.T) {
	in := Map{
		"0": Map{"name": "John", "email": "john@example.com"},
		"1": Map{"name": "Jane"},
	}
	got := AddOrReplace(in, Map{
		"0.name":      "Michel",
		"2.name":      "New",
		"meta":        Map{"source": "api"},
		"meta.author": "me",
	})

	assert.Equal(t, Map{
		"0":    Map{"name": "Michel", "email": "john@example.com"},
		"1":    Map{"name": "Jane"},
		"2":    Map{"name": "New"},
		"meta": Map{"source": "api", "author": "me"},
	}, got)
	assert.Equal(t, "John", in["0"].(Map)["name"])
}

func TestAddOrReplaceEmpty(t *testing.T) {
	in := Map{"a": 1}
	got := AddOrReplace(in, nil)
	require.Equal(t, in, got)
	got["a"] = 2
	assert.Equal(t, 1, in["a"])
}

func TestRecords(t *testing.T) {
	m := Map{
		"10":     Map{"n": 10},
		"2":      Map{"n": 2},
		"0":      Map{"n": 0},
		"name":   Map{"n": -1},
		"3":      "not a record",
		"_token": "abc",
	}
	recs := Records(m)
	require.Len(t, recs, 3)
	assert.Equal(t, 0, recs[0]["n"])
	assert.Equal(t, 2, recs[1]["n"])
	assert.Equal(t, 10, recs[2]["n"])
}

func TestKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Keys(Map{"c": 1, "a": 2, "b": 3}))
}
