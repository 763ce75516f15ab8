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
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/tomoncle/repokit/types"
)

// ErrUnauthorizedExtension is returned by CheckExtension.
var ErrUnauthorizedExtension = errors.New("unauthorized file extension")

// StoragePath joins elems under the storage directory.
func (m *ModelFiles) StoragePath(elems ...string) string {
	return filepath.Join(append([]string{m.Storage}, elems...)...)
}

// PublicPath joins elems under the public URL path.
func (m *ModelFiles) PublicPath(elems ...string) string {
	return path.Join(append([]string{m.Public}, elems...)...)
}

// Image returns the image entry stored under key.
func (m *ModelFiles) Image(key string) (Entry, error) {
	e, ok := m.Images[key]
	if !ok {
		return Entry{}, types.NewConfigError(m.path(TypeImages, key), "image key does not exist")
	}
	return e, nil
}

// File returns the file entry stored under key.
func (m *ModelFiles) File(key string) (Entry, error) {
	e, ok := m.Files[key]
	if !ok {
		return Entry{}, types.NewConfigError(m.path(TypeFiles, key), "file key does not exist")
	}
	return e, nil
}

// entry looks key up among images first, then files.
func (m *ModelFiles) entry(key string) (Entry, error) {
	if e, ok := m.Images[key]; ok {
		return e, nil
	}
	return m.File(key)
}

func (m *ModelFiles) size(key, sizeKey string) (Size, error) {
	e, err := m.Image(key)
	if err != nil {
		return Size{}, err
	}
	s, ok := e.AvailableSizes[sizeKey]
	if !ok {
		return Size{}, types.NewConfigError(m.path(TypeImages, key)+".available_sizes."+sizeKey, "size key does not exist")
	}
	return s, nil
}

func (m *ModelFiles) ImageSizeWidth(key, sizeKey string) (int, error) {
	s, err := m.size(key, sizeKey)
	return s.Width, err
}

func (m *ModelFiles) ImageSizeHeight(key, sizeKey string) (int, error) {
	s, err := m.size(key, sizeKey)
	return s.Height, err
}

// ImageMaxWidth returns the largest width among the sizes of an image.
func (m *ModelFiles) ImageMaxWidth(key string) (int, error) {
	return m.maxDimension(key, func(s Size) int { return s.Width })
}

// ImageMaxHeight returns the largest height among the sizes of an image.
func (m *ModelFiles) ImageMaxHeight(key string) (int, error) {
	return m.maxDimension(key, func(s Size) int { return s.Height })
}

func (m *ModelFiles) maxDimension(key string, dim func(Size) int) (int, error) {
	e, err := m.Image(key)
	if err != nil {
		return 0, err
	}
	largest := 0
	for _, s := range e.AvailableSizes {
		largest = max(largest, dim(s))
	}
	return largest, nil
}

// AuthorizedExtensions returns the extensions accepted for an image or file
// key.
func (m *ModelFiles) AuthorizedExtensions(key string) ([]string, error) {
	e, err := m.entry(key)
	if err != nil {
		return nil, err
	}
	return slices.Clone(e.AuthorizedExtensions), nil
}

// ReadableExtensions joins the authorized extensions for display.
func (m *ModelFiles) ReadableExtensions(key string, withoutSpaces bool) (string, error) {
	exts, err := m.AuthorizedExtensions(key)
	if err != nil {
		return "", err
	}
	sep := ", "
	if withoutSpaces {
		sep = ","
	}
	return strings.Join(exts, sep), nil
}

// CheckExtension fails with ErrUnauthorizedExtension when filename does not
// end with one of the extensions authorized for key. Case is ignored.
func (m *ModelFiles) CheckExtension(key, filename string) error {
	exts, err := m.AuthorizedExtensions(key)
	if err != nil {
		return err
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	for _, allowed := range exts {
		if strings.EqualFold(allowed, ext) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q is not one of %s", ErrUnauthorizedExtension, filename, strings.Join(exts, ", "))
}

// ImageFileName names a stored image variant: "<slug>-<size>.<ext>", or
// "<slug>.<ext>" when size is empty.
func ImageFileName(name, size, ext string) string {
	base := Slug(name)
	if size != "" {
		base += "-" + size
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// ImagePath returns the public path of imageName, or of its sizeKey variant.
func (m *ModelFiles) ImagePath(imageName, sizeKey string) (string, error) {
	if sizeKey == "" {
		return m.PublicPath(imageName), nil
	}
	ext := path.Ext(imageName)
	if ext == "" {
		return "", fmt.Errorf("image %q has no extension", imageName)
	}
	return m.PublicPath(ImageFileName(strings.TrimSuffix(imageName, ext), sizeKey, ext)), nil
}

// Slug lower-cases s and turns each run of characters that are neither
// letters nor digits into a single dash.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func (m *ModelFiles) path(ft, key string) string {
	return "models." + m.key + "." + ft + "." + key
}
