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

package input

import (
	"encoding/json"
	"mime/multipart"
	"net/url"
	"strconv"

	"github.com/tomoncle/repokit/attrs"
)

// Source is the key/value input a repository shapes before persisting it:
// a decoded HTTP request or a plain map.
type Source interface {
	// All returns a deep copy of every input value.
	All() attrs.Map
	// Except returns All without the given dot paths.
	Except(keys ...string) attrs.Map
	// Input returns the value at a dot path, or def when absent.
	Input(key string, def any) any
	File(key string) (*multipart.FileHeader, bool)
	// Page is the requested page number, never lower than 1.
	Page() int
	Path() string
	Query() url.Values
}

type mapSource struct {
	data  attrs.Map
	path  string
	query url.Values
	files map[string]*multipart.FileHeader
}

// Option customises a map backed Source.
type Option func(*mapSource)

// WithPath sets the path used for pagination links.
func WithPath(path string) Option {
	return func(s *mapSource) { s.path = path }
}

// WithQuery sets the query string used for the page number and links.
func WithQuery(q url.Values) Option {
	return func(s *mapSource) { s.query = q }
}

// WithFile attaches an uploaded file under key.
func WithFile(key string, fh *multipart.FileHeader) Option {
	return func(s *mapSource) { s.files[key] = fh }
}

// FromMap wraps m as a Source. m is copied.
func FromMap(m attrs.Map, opts ...Option) Source {
	s := &mapSource{
		data:  attrs.Clone(m),
		query: url.Values{},
		files: map[string]*multipart.FileHeader{},
	}
	if s.data == nil {
		s.data = attrs.Map{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *mapSource) All() attrs.Map { return attrs.Clone(s.data) }

func (s *mapSource) Except(keys ...string) attrs.Map { return attrs.Except(s.data, keys...) }

func (s *mapSource) Input(key string, def any) any {
	if v, ok := attrs.Get(s.data, key); ok {
		return v
	}
	return def
}

func (s *mapSource) File(key string) (*multipart.FileHeader, bool) {
	fh, ok := s.files[key]
	return fh, ok && fh != nil
}

func (s *mapSource) Page() int {
	raw := s.query.Get("page")
	if raw == "" {
		if v, ok := attrs.Get(s.data, "page"); ok {
			raw = toString(v)
		}
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func (s *mapSource) Path() string { return s.path }

func (s *mapSource) Query() url.Values {
	out := make(url.Values, len(s.query))
	for k, v := range s.query {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func toString(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case json.Number:
		return n.String()
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	}
	return ""
}
