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
	"errors"
	"fmt"
	"io"
	"maps"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/tomoncle/repokit/attrs"
)

const maxMultipartMemory = 32 << 20

// FromRequest decodes the query string, form fields, uploaded files and JSON
// body of r into a Source. Body values win over query values. Bracket keys
// such as user[name] or tags[] become nested maps and lists.
func FromRequest(r *http.Request) (Source, error) {
	data := attrs.Map{}
	mergeValues(data, r.URL.Query())

	s := &mapSource{
		path:  r.URL.Path,
		query: r.URL.Query(),
		files: map[string]*multipart.FileHeader{},
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		body, err := decodeJSON(r.Body)
		if err != nil {
			return nil, err
		}
		data = attrs.MergeRecursive(data, body)
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, fmt.Errorf("failed to parse multipart form: %w", err)
		}
		mergeValues(data, url.Values(r.MultipartForm.Value))
		for key, headers := range r.MultipartForm.File {
			if len(headers) > 0 {
				s.files[bracketPath(key)] = headers[0]
			}
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("failed to parse form: %w", err)
		}
		mergeValues(data, r.PostForm)
	}

	s.data = data
	return s, nil
}

func decodeJSON(body io.Reader) (attrs.Map, error) {
	if body == nil {
		return attrs.Map{}, nil
	}
	// numbers stay json.Number so large keys survive decoding
	dec := json.NewDecoder(body)
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return attrs.Map{}, nil
		}
		return nil, fmt.Errorf("failed to decode json body: %w", err)
	}
	switch v := payload.(type) {
	case map[string]any:
		return v, nil
	case []any:
		// a top level list is addressed as 0, 1, ... like a keyed payload
		m := make(attrs.Map, len(v))
		for i, item := range v {
			m[fmt.Sprint(i)] = item
		}
		return m, nil
	}
	return nil, fmt.Errorf("json body must be an object or an array, got %T", payload)
}

// mergeValues sets values in key order, so a later key such as a[b] always
// overrides an earlier conflicting a.
func mergeValues(dst attrs.Map, values url.Values) {
	for _, key := range slices.Sorted(maps.Keys(values)) {
		vs := values[key]
		path := bracketPath(key)
		if strings.HasSuffix(key, "[]") || len(vs) > 1 {
			list := make([]any, len(vs))
			for i, v := range vs {
				list[i] = v
			}
			attrs.Set(dst, path, list)
			continue
		}
		if len(vs) == 1 {
			attrs.Set(dst, path, vs[0])
		}
	}
}

// bracketPath turns user[address][city] into user.address.city. A trailing
// [] is dropped; the caller stores a list at that path.
func bracketPath(key string) string {
	open := strings.IndexByte(key, '[')
	if open <= 0 {
		return key
	}
	parts := []string{key[:open]}
	rest := key[open:]
	for strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			break
		}
		if seg := rest[1:end]; seg != "" {
			parts = append(parts, seg)
		}
		rest = rest[end+1:]
	}
	return strings.Join(parts, ".")
}
