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
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"mime/multipart"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/tomoncle/repokit/config"
	"github.com/tomoncle/repokit/input"
)

// Resizer writes the variant of the image at src for size to dst.
type Resizer interface {
	Resize(src, dst string, size config.Size) error
}

// ResizerFunc adapts a function to Resizer.
type ResizerFunc func(src, dst string, size config.Size) error

func (f ResizerFunc) Resize(src, dst string, size config.Size) error { return f(src, dst, size) }

// CopyResizer stores every variant as an unchanged copy of the original.
var CopyResizer Resizer = ResizerFunc(func(src, dst string, _ config.Size) error {
	return copyFile(src, dst)
})

// WithResizer sets the codec producing sized variants.
func WithResizer(r Resizer) Option {
	return func(o *options) { o.resizer = r }
}

// WithNamePrefix is prepended to configured image names before slugging.
func WithNamePrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithDefaultImage is stored in place of a removed image. Without it a
// removal clears the name.
func WithDefaultImage(path string) Option {
	return func(o *options) { o.defaultPath = path }
}

// Images stores and destroys the configured images of one model. Files live
// under the model storage path; their names are kept by a Target.
type Images struct {
	files  *config.ModelFiles
	target Target
	opts   options
}

func NewImages(files *config.ModelFiles, target Target, opts ...Option) *Images {
	return &Images{files: files, target: target, opts: buildOptions(opts)}
}

// StoreUploaded replaces the image under key with fh. With fh nil and remove
// set, the current image is destroyed and replaced by the default image, if
// any. With neither, nothing changes. It returns the stored name.
func (im *Images) StoreUploaded(ctx context.Context, key string, fh *multipart.FileHeader, remove bool) (string, error) {
	if fh == nil && !remove {
		return im.target.ImageName(ctx, key)
	}
	if fh != nil {
		if err := im.files.CheckExtension(key, fh.Filename); err != nil {
			return "", err
		}
	}
	if err := im.destroyCurrent(ctx, key); err != nil {
		return "", err
	}

	var name string
	switch {
	case fh != nil:
		f, err := fh.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open upload: %w", err)
		}
		defer f.Close()
		if name, err = im.process(key, f, filepath.Ext(fh.Filename)); err != nil {
			return "", err
		}
	case im.opts.defaultPath != "":
		var err error
		if name, err = im.processPath(key, im.opts.defaultPath); err != nil {
			return "", err
		}
	}
	if err := im.target.SetImageName(ctx, key, name); err != nil {
		return "", err
	}
	im.opts.logger.Debug("Stored image", "key", key, "name", name)
	return name, nil
}

// StoreFromInput stores the file uploaded under key in src.
func (im *Images) StoreFromInput(ctx context.Context, key string, src input.Source, remove bool) (string, error) {
	fh, _ := src.File(key)
	return im.StoreUploaded(ctx, key, fh, remove)
}

// StoreFromPath replaces the image under key with the file at path, deleting
// path afterwards when removeSource is set.
func (im *Images) StoreFromPath(ctx context.Context, key, path string, removeSource bool) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("source image %q does not exist: %w", path, err)
	}
	if filepath.Ext(path) == "" {
		return "", fmt.Errorf("source image %q has no extension", path)
	}
	if err := im.destroyCurrent(ctx, key); err != nil {
		return "", err
	}
	name, err := im.processPath(key, path)
	if err != nil {
		return "", err
	}
	if removeSource {
		if err := os.Remove(path); err != nil {
			return "", fmt.Errorf("failed to remove source image: %w", err)
		}
	}
	if err := im.target.SetImageName(ctx, key, name); err != nil {
		return "", err
	}
	return name, nil
}

// Destroy deletes imageName and each of its sized variants. Files already
// gone are ignored.
func (im *Images) Destroy(key, imageName string) error {
	ext := filepath.Ext(imageName)
	if ext == "" {
		return fmt.Errorf("image %q has no extension", imageName)
	}
	entry, err := im.files.Image(key)
	if err != nil {
		return err
	}
	base := config.Slug(strings.TrimSuffix(imageName, ext))
	paths := make([]string, 0, len(entry.AvailableSizes)+1)
	for _, size := range sortedSizes(entry) {
		paths = append(paths, im.files.StoragePath(config.ImageFileName(base, size, ext)))
	}
	paths = append(paths, im.files.StoragePath(imageName))
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove image: %w", err)
		}
	}
	im.opts.logger.Debug("Destroyed image", "key", key, "name", imageName)
	return nil
}

func (im *Images) destroyCurrent(ctx context.Context, key string) error {
	current, err := im.target.ImageName(ctx, key)
	if err != nil || current == "" {
		return err
	}
	return im.Destroy(key, current)
}

func (im *Images) processPath(key, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return im.process(key, f, filepath.Ext(path))
}

// process writes src as a new versioned original, renders every size and
// returns the original's file name.
func (im *Images) process(key string, src io.Reader, ext string) (string, error) {
	entry, err := im.files.Image(key)
	if err != nil {
		return "", err
	}
	base := config.Slug(im.opts.prefix + entry.Name + "-" + im.opts.version())
	name := config.ImageFileName(base, "", ext)
	original := im.files.StoragePath(name)
	if err := os.MkdirAll(filepath.Dir(original), 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err := writeFile(original, src); err != nil {
		return "", err
	}
	for _, size := range sortedSizes(entry) {
		dst := im.files.StoragePath(config.ImageFileName(base, size, ext))
		if err := im.opts.resizer.Resize(original, dst, entry.AvailableSizes[size]); err != nil {
			return "", fmt.Errorf("failed to render %s size %q: %w", key, size, err)
		}
	}
	return name, nil
}

func sortedSizes(e config.Entry) []string {
	keys := make([]string, 0, len(e.AvailableSizes))
	for k := range e.AvailableSizes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// randomVersion returns a ten digit number.
func randomVersion() string {
	return strconv.FormatInt(1_000_000_000+rand.Int64N(9_000_000_000), 10)
}

func copyFile(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	return writeFile(dst, f)
}

func writeFile(dst string, r io.Reader) error {
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return out.Close()
}
