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

package repository

import (
	"context"
	"errors"

	"github.com/tomoncle/repokit/attrs"
	"github.com/tomoncle/repokit/input"
)

// ErrNoInput is returned by request driven writes when neither an explicit
// source nor a bound one is available.
var ErrNoInput = errors.New("no request input")

// RequestOption adjusts how request input is shaped before a write.
type RequestOption func(*requestOptions)

type requestOptions struct {
	except      []string
	overrides   attrs.Map
	keepMissing bool
}

// Except removes dot paths from the input, on top of the default exclusions.
func Except(keys ...string) RequestOption {
	return func(o *requestOptions) { o.except = append(o.except, keys...) }
}

// AddOrReplace merges dot keyed values over the input after exclusions.
func AddOrReplace(values attrs.Map) RequestOption {
	return func(o *requestOptions) {
		if o.overrides == nil {
			o.overrides = attrs.Map{}
		}
		for k, v := range values {
			o.overrides[k] = v
		}
	}
}

// KeepMissingFillable leaves fillable columns absent from the input untouched
// on update instead of clearing them.
func KeepMissingFillable() RequestOption {
	return func(o *requestOptions) { o.keepMissing = true }
}

func buildRequestOptions(opts []RequestOption) requestOptions {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Shape returns the attributes a request driven write would use: the input
// minus the default and requested exclusions, with overrides merged in.
func (r *Repository[T]) Shape(src input.Source, opts ...RequestOption) (attrs.Map, error) {
	return r.shape(src, buildRequestOptions(opts))
}

func (r *Repository[T]) shape(src input.Source, o requestOptions) (attrs.Map, error) {
	if src == nil {
		src = r.opts.input
	}
	if src == nil {
		return nil, ErrNoInput
	}
	keys := make([]string, 0, len(o.except)+len(r.opts.except))
	keys = append(keys, o.except...)
	keys = append(keys, r.opts.except...)
	return attrs.AddOrReplace(src.Except(keys...), o.overrides), nil
}

// CreateOrUpdateFromRequest shapes src (or the bound input when src is nil)
// and creates or updates one record, reconciling missing fillable columns
// unless KeepMissingFillable is given.
func (r *Repository[T]) CreateOrUpdateFromRequest(ctx context.Context, src input.Source, opts ...RequestOption) (*T, error) {
	o := buildRequestOptions(opts)
	data, err := r.shape(src, o)
	if err != nil {
		return nil, err
	}
	return r.CreateOrUpdateFromArray(ctx, data, !o.keepMissing)
}

// CreateOrUpdateMultipleFromRequest treats numeric top level keys of the
// shaped input as separate records.
func (r *Repository[T]) CreateOrUpdateMultipleFromRequest(ctx context.Context, src input.Source, opts ...RequestOption) ([]*T, error) {
	o := buildRequestOptions(opts)
	data, err := r.shape(src, o)
	if err != nil {
		return nil, err
	}
	return r.CreateOrUpdateMultipleFromArray(ctx, attrs.Records(data), !o.keepMissing)
}

// CreateMultipleFromRequest creates one record per numeric top level key.
func (r *Repository[T]) CreateMultipleFromRequest(ctx context.Context, src input.Source, opts ...RequestOption) ([]*T, error) {
	data, err := r.Shape(src, opts...)
	if err != nil {
		return nil, err
	}
	return r.CreateMultipleFromArray(ctx, attrs.Records(data))
}

// DeleteFromRequest deletes the record named by the primary key in the
// shaped input.
func (r *Repository[T]) DeleteFromRequest(ctx context.Context, src input.Source, opts ...RequestOption) (bool, error) {
	data, err := r.Shape(src, opts...)
	if err != nil {
		return false, err
	}
	return r.DeleteFromArray(ctx, data)
}
