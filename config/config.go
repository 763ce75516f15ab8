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

package config

import (
	"fmt"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/tomoncle/repokit/types"
)

const (
	TypeImages = "images"
	TypeFiles  = "files"
)

// Size is one image variant. Either dimension may be zero, not both.
type Size struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Entry configures one file attribute of a model.
type Entry struct {
	Name                 string          `yaml:"name" json:"name"`
	AuthorizedExtensions []string        `yaml:"authorized_extensions" json:"authorized_extensions"`
	AvailableSizes       map[string]Size `yaml:"available_sizes" json:"available_sizes"`
}

// ModelFiles holds the file configuration of one model.
type ModelFiles struct {
	Images      map[string]Entry `yaml:"images" json:"images"`
	Files       map[string]Entry `yaml:"files" json:"files"`
	JSONStorage bool             `yaml:"json_storage" json:"json_storage"`
	Storage     string           `yaml:"storage_path" json:"storage_path"`
	Public      string           `yaml:"public_path" json:"public_path"`

	key string
}

// Config is the repository file configuration document.
type Config struct {
	FileTypes []string               `yaml:"file_types" json:"file_types"`
	Models    map[string]*ModelFiles `yaml:"models" json:"models"`
}

// Parse decodes a YAML document without validating it.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse repository config: %w", err)
	}
	return cfg, nil
}

// UnmarshalYAML records each model's key, so the document can also be
// embedded in a larger one.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type plain Config
	if err := node.Decode((*plain)(c)); err != nil {
		return err
	}
	for key, m := range c.Models {
		if m == nil {
			m = &ModelFiles{}
			c.Models[key] = m
		}
		m.key = key
	}
	return nil
}

// Load reads, parses and validates a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read repository config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate stops at the first problem and reports it as a
// *types.ConfigError naming the offending key.
func (c *Config) Validate() error {
	if c == nil || len(c.Models) == 0 {
		return nil
	}
	if len(c.FileTypes) == 0 {
		return types.NewConfigError("file_types", "no file types defined")
	}
	for _, ft := range c.FileTypes {
		if ft != TypeImages && ft != TypeFiles {
			return types.NewConfigError("file_types", "unsupported file type %q", ft)
		}
	}

	keys := make([]string, 0, len(c.Models))
	for k := range c.Models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := c.validateModel(key, c.Models[key]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateModel(key string, m *ModelFiles) error {
	base := "models." + key
	if m.Storage == "" {
		return types.NewConfigError(base+".storage_path", "no storage path defined")
	}
	if m.Public == "" {
		return types.NewConfigError(base+".public_path", "no public path defined")
	}
	for _, ft := range c.FileTypes {
		entries := m.Images
		if ft == TypeFiles {
			entries = m.Files
		}
		for _, name := range sortedKeys(entries) {
			path := base + "." + ft + "." + name
			if err := validateEntry(path, entries[name], ft == TypeImages); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateEntry(path string, e Entry, image bool) error {
	if e.Name == "" {
		return types.NewConfigError(path+".name", "no name defined")
	}
	if len(e.AuthorizedExtensions) == 0 {
		return types.NewConfigError(path+".authorized_extensions", "no authorized extensions defined")
	}
	if !image {
		return nil
	}
	if len(e.AvailableSizes) == 0 {
		return types.NewConfigError(path+".available_sizes", "no available sizes defined")
	}
	for _, name := range sortedKeys(e.AvailableSizes) {
		size := e.AvailableSizes[name]
		if size.Width < 0 || size.Height < 0 {
			return types.NewConfigError(path+".available_sizes."+name, "negative dimension")
		}
		if size.Width == 0 && size.Height == 0 {
			return types.NewConfigError(path+".available_sizes."+name, "width and height are both empty")
		}
	}
	return nil
}

// Model returns the configuration stored under key.
func (c *Config) Model(key string) (*ModelFiles, error) {
	if c != nil {
		if m, ok := c.Models[key]; ok && m != nil {
			return m, nil
		}
	}
	return nil, types.NewConfigError("models."+key, "model configuration does not exist")
}

// HasFileType reports whether ft is enabled.
func (c *Config) HasFileType(ft string) bool {
	return c != nil && slices.Contains(c.FileTypes, ft)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
