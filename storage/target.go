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
	"fmt"

	"github.com/tomoncle/repokit/attrs"
	"github.com/tomoncle/repokit/config"
	"github.com/tomoncle/repokit/repository"
)

// Target keeps the current file name of an image attribute.
type Target interface {
	// ImageName returns the stored name, or "" when there is none.
	ImageName(ctx context.Context, key string) (string, error)
	// SetImageName stores name; "" clears it.
	SetImageName(ctx context.Context, key string, name string) error
}

var (
	_ Target = (*JSONStore)(nil)
	_ Target = (*recordTarget[struct{}])(nil)
)

// ImageName reads key from the document.
func (s *JSONStore) ImageName(_ context.Context, key string) (string, error) {
	content, err := s.Attributes(false)
	if err != nil {
		return "", err
	}
	name, _ := content[key].(string)
	return name, nil
}

// SetImageName writes key to the document. An empty name is stored as null.
func (s *JSONStore) SetImageName(_ context.Context, key string, name string) error {
	var v any
	if name != "" {
		v = name
	}
	return s.Store(attrs.Map{key: v})
}

type recordTarget[T any] struct {
	repo *repository.Repository[T]
	key  any
}

// Record keeps image names in a column of the record whose primary key is
// key. The column is named after the image key and must be fillable.
func Record[T any](repo *repository.Repository[T], key any) Target {
	return &recordTarget[T]{repo: repo, key: key}
}

// TargetFor returns the model's JSON document when its configuration enables
// json_storage or no repository is given, and the record otherwise.
func TargetFor[T any](files *config.ModelFiles, repo *repository.Repository[T], key any, opts ...Option) Target {
	if files.JSONStorage || repo == nil {
		return NewJSONStore(files, opts...)
	}
	return Record(repo, key)
}

func (t *recordTarget[T]) ImageName(ctx context.Context, key string) (string, error) {
	model, err := t.column(key)
	if err != nil {
		return "", err
	}
	entity, err := t.repo.FindOneByPrimary(ctx, t.key, true)
	if err != nil {
		return "", err
	}
	v, _ := model.Value(entity, key)
	switch name := v.(type) {
	case string:
		return name, nil
	case *string:
		if name != nil {
			return *name, nil
		}
	}
	return "", nil
}

func (t *recordTarget[T]) SetImageName(ctx context.Context, key string, name string) error {
	if _, err := t.column(key); err != nil {
		return err
	}
	var v any
	if name != "" {
		v = name
	}
	_, err := t.repo.UpdateByPrimary(ctx, t.key, attrs.Map{key: v}, false)
	return err
}

func (t *recordTarget[T]) column(key string) (*repository.Model, error) {
	model, err := t.repo.Model()
	if err != nil {
		return nil, err
	}
	if !model.IsFillable(key) {
		return nil, fmt.Errorf("%s: image column %q is not fillable", model.Name, key)
	}
	return model, nil
}
