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

package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/tomoncle/repokit/attrs"
	"github.com/tomoncle/repokit/config"
	"github.com/tomoncle/repokit/database"
)

// AttributesFile is the name of the JSON document under a model's storage
// path.
const AttributesFile = "attributes.json"

// DefaultLocale is used by Attribute when no locale is given.
const DefaultLocale = "en"

// Option configures a JSONStore or an Images manager.
type Option func(*options)

type options struct {
	logger      database.Logger
	locale      string
	resizer     Resizer
	prefix      string
	defaultPath string
	version     func() string
}

func WithLogger(logger database.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithLocale sets the locale Attribute falls back to.
func WithLocale(locale string) Option {
	return func(o *options) { o.locale = locale }
}

func buildOptions(opts []Option) options {
	o := options{
		locale:  DefaultLocale,
		resizer: CopyResizer,
		version: randomVersion,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = database.GetLogger()
	}
	return o
}

// JSONStore reads and writes the attributes.json document of one model. The
// document is cached after the first read. It is safe for concurrent use
// within one process.
type JSONStore struct {
	files *config.ModelFiles
	opts  options

	mu      sync.Mutex
	content attrs.Map
}

func NewJSONStore(files *config.ModelFiles, opts ...Option) *JSONStore {
	return &JSONStore{files: files, opts: buildOptions(opts)}
}

// Path returns the location of the document.
func (s *JSONStore) Path() string {
	return s.files.StoragePath(AttributesFile)
}

// Attributes returns a copy of the document. It is read from disk on first
// use, while the cached copy is empty, or when forceRefresh is set. A missing
// file reads as an empty document.
func (s *JSONStore) Attributes(forceRefresh bool) (attrs.Map, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(forceRefresh); err != nil {
		return nil, err
	}
	return attrs.Clone(s.content), nil
}

// Attribute returns the value stored under key, or nil when it is blank.
// When the value is an object holding locale (DefaultLocale if empty), the
// translated value is returned instead.
func (s *JSONStore) Attribute(key, locale string) (any, error) {
	content, err := s.Attributes(false)
	if err != nil {
		return nil, err
	}
	v := content[key]
	if blank(v) {
		return nil, nil
	}
	if locale == "" {
		locale = s.opts.locale
	}
	if translations, ok := v.(map[string]any); ok {
		if tv, ok := translations[locale]; ok {
			return tv, nil
		}
	}
	return v, nil
}

// Store merges values recursively over the document on disk and writes it
// back.
func (s *JSONStore) Store(values attrs.Map) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(true); err != nil {
		return err
	}
	merged := attrs.MergeRecursive(s.content, values)
	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err := os.WriteFile(s.Path(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write attributes: %w", err)
	}
	s.content = merged
	return nil
}

func (s *JSONStore) load(force bool) error {
	if len(s.content) > 0 && !force {
		return nil
	}
	data, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		s.opts.logger.Info("Attributes file does not exist", "path", s.Path())
		s.content = attrs.Map{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read attributes: %w", err)
	}
	var content attrs.Map
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&content); err != nil {
		return fmt.Errorf("failed to decode %s: %w", s.Path(), err)
	}
	if content == nil {
		content = attrs.Map{}
	}
	s.content = content
	return nil
}

// blank reports values an attribute lookup treats as unset.
func blank(v any) bool {
	switch b := v.(type) {
	case nil:
		return true
	case string:
		return b == "" || b == "0"
	case json.Number:
		return b == "0"
	case bool:
		return !b
	case map[string]any:
		return len(b) == 0
	case []any:
		return len(b) == 0
	}
	return false
}
