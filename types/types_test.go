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

package types

import (
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("DESC")
	require.NoError(t, err)
	assert.Equal(t, Descending, d)
	assert.Equal(t, "DESC", d.Name())
	assert.Equal(t, "descending", d.Desc())

	d, err = ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Ascending, d)
	assert.Equal(t, "asc", d.String())
	assert.Equal(t, 0, d.Number())

	d, err = ParseDirection("sideways")
	require.Error(t, err)
	assert.False(t, d.IsValid())
	assert.Equal(t, IllegalName, d.String())
	assert.Equal(t, IllegalValue, d.Number())
}

func TestErrorKinds(t *testing.T) {
	nf := fmt.Errorf("load: %w", &NotFoundError{Model: "User", Key: 7})
	assert.True(t, errors.Is(nf, ErrNotFound))
	assert.False(t, errors.Is(nf, ErrInvalidConfiguration))
	assert.Contains(t, nf.Error(), "User [7]")

	var target *NotFoundError
	require.True(t, errors.As(nf, &target))
	assert.Equal(t, 7, target.Key)

	ce := NewConfigError("users.images.photo", "missing %s", "name")
	assert.True(t, errors.Is(ce, ErrInvalidConfiguration))
	assert.Equal(t, "invalid configuration: users.images.photo: missing name", ce.Error())
}

type item struct{ N int }

func items(n int) []*item {
	out := make([]*item, n)
	for i := range out {
		out[i] = &item{N: i}
	}
	return out
}

func TestPaginateSlice(t *testing.T) {
	all := items(35)

	p1 := Paginate(all, 1, 20)
	assert.Len(t, p1.Items, 20)
	assert.Equal(t, 35, p1.Total)
	assert.Equal(t, 2, p1.LastPage())
	assert.True(t, p1.HasMorePages())

	p2 := Paginate(all, 2, 20)
	assert.Len(t, p2.Items, 15)
	assert.Equal(t, 20, p2.Items[0].N)
	assert.False(t, p2.HasMorePages())

	p3 := Paginate(all, 3, 20)
	assert.Empty(t, p3.Items)

	p0 := Paginate(all, 0, 0)
	assert.Equal(t, 1, p0.Page)
	assert.Equal(t, 10, p0.PageSize)
}

func TestPaginationLinks(t *testing.T) {
	p := Paginate(items(35), 2, 10)
	p.Path = "/users"
	p.Query = url.Values{"sort": {"name"}, "page": {"2"}}

	assert.Equal(t, 4, p.LastPage())
	assert.Equal(t, "/users?page=3&sort=name", p.NextPageURL())
	assert.Equal(t, "/users?page=1&sort=name", p.PreviousPageURL())
	assert.Equal(t, []string{"2"}, p.Query["page"], "links must not rewrite the source query")

	first := Paginate(items(3), 1, 10)
	assert.Equal(t, "", first.PreviousPageURL())
	assert.Equal(t, "", first.NextPageURL())
	assert.Equal(t, 1, first.LastPage())
}

func TestJsonObjectScan(t *testing.T) {
	var o JsonObject
	require.NoError(t, o.Scan(`{"theme":"dark"}`))
	assert.Equal(t, "dark", o["theme"])

	require.NoError(t, o.Scan([]byte(`{"theme":"light"}`)))
	assert.Equal(t, "light", o["theme"])

	require.NoError(t, o.Scan(nil))
	assert.Empty(t, o)

	assert.Error(t, o.Scan(42))

	v, err := JsonObject{"a": 1.0}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(v.([]byte)))

	var a JsonArray
	require.NoError(t, a.Scan(`[{"x":1}]`))
	assert.Len(t, a, 1)
}
