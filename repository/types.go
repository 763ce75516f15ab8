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

	"github.com/tomoncle/repokit/attrs"
	"github.com/tomoncle/repokit/input"
	"github.com/tomoncle/repokit/query"
	"github.com/tomoncle/repokit/types"
)

// Reader defines lookups that do not depend on pending clauses.
type Reader[T any] interface {
	FirstOf(ctx context.Context, spec query.Spec) (*T, error)

	Query(ctx context.Context, spec query.Spec, columns ...string) ([]*T, error)

	Find(ctx context.Context, id any) (*T, error)

	FindOneByPrimary(ctx context.Context, key any, throwIfMissing bool) (*T, error)

	FindOneFromArray(ctx context.Context, criteria attrs.Map, throwIfMissing bool) (*T, error)

	FindMultipleFromArray(ctx context.Context, criteria attrs.Map) ([]*T, error)

	FindMultipleFromIds(ctx context.Context, ids any) ([]*T, error)

	GetAll(ctx context.Context, columns []string, orderBy string, direction string) ([]*T, error)
}

// Writer defines attribute map driven writes.
type Writer[T any] interface {
	Make(data attrs.Map) (*T, error)

	Create(ctx context.Context, data attrs.Map) (*T, error)

	CreateOrUpdateFromArray(ctx context.Context, data attrs.Map, reconcile bool) (*T, error)

	UpdateByPrimary(ctx context.Context, key any, data attrs.Map, reconcile bool) (*T, error)

	DeleteByPrimary(ctx context.Context, key any) (bool, error)

	DeleteMultipleFromPrimaries(ctx context.Context, keys any) (int64, error)

	Upsert(ctx context.Context, fields []string, conflictKeys []string, entities ...*T) error
}

// RequestWriter defines writes driven by request input.
type RequestWriter[T any] interface {
	Shape(src input.Source, opts ...RequestOption) (attrs.Map, error)
	CreateOrUpdateFromRequest(ctx context.Context, src input.Source, opts ...RequestOption) (*T, error)
	CreateOrUpdateMultipleFromRequest(ctx context.Context, src input.Source, opts ...RequestOption) ([]*T, error)
	CreateMultipleFromRequest(ctx context.Context, src input.Source, opts ...RequestOption) ([]*T, error)
	DeleteFromRequest(ctx context.Context, src input.Source, opts ...RequestOption) (bool, error)
}

// PageQueryRepository defines pagination over pending clauses.
type PageQueryRepository[T any] interface {
	Paginate(ctx context.Context, perPage int, columns ...string) (*types.Pagination[T], error)
	PaginateArrayResults(items []*T, perPage int) *types.Pagination[T]
}

// Store combines every clause independent operation of Repository, for
// callers that want to substitute it.
type Store[T any] interface {
	Reader[T]
	Writer[T]
	RequestWriter[T]
	PageQueryRepository[T]
}

var _ Store[struct{}] = (*Repository[struct{}])(nil)
