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
	"maps"
	"slices"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"

	"github.com/tomoncle/repokit/database"
	"github.com/tomoncle/repokit/input"
	"github.com/tomoncle/repokit/query"
	"github.com/tomoncle/repokit/types"
)

// DefaultExcept lists the request keys dropped before any request driven write.
var DefaultExcept = []string{"_token", "_method"}

// Option configures a Repository.
type Option func(*options)

type options struct {
	fillable []string
	scopes   map[string]query.ScopeFunc
	input    input.Source
	except   []string
	logger   database.Logger
}

// WithFillable overrides the mass-assignable columns of the model.
func WithFillable(columns ...string) Option {
	return func(o *options) { o.fillable = columns }
}

// WithScope registers a named clause fragment usable through Scope.
func WithScope(name string, fn query.ScopeFunc) Option {
	return func(o *options) { o.scopes[name] = fn }
}

// WithInput binds the request input used for pagination and request writes.
func WithInput(src input.Source) Option {
	return func(o *options) { o.input = src }
}

// WithDefaultExcept replaces DefaultExcept for this repository.
func WithDefaultExcept(keys ...string) Option {
	return func(o *options) { o.except = keys }
}

// WithoutDefaultExcept keeps every request key.
func WithoutDefaultExcept() Option {
	return func(o *options) { o.except = nil }
}

// WithLogger replaces the database package logger for this repository.
func WithLogger(logger database.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Repository accumulates query clauses for the model T and runs reads and
// writes against a bun database or transaction.
//
// Clause methods mutate the repository and return it for chaining. Every
// terminal operation takes the pending clauses and clears them before it
// runs, so a failed query never leaks clauses into the next one. A
// Repository is not safe for concurrent use; create one per unit of work.
type Repository[T any] struct {
	db      bun.IDB
	model   *Model
	err     error
	opts    options
	pending query.Spec
}

// New binds a repository to db. Model problems are reported by every
// operation rather than here.
func New[T any](db bun.IDB, opts ...Option) *Repository[T] {
	o := options{
		scopes: make(map[string]query.ScopeFunc),
		except: DefaultExcept,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = database.GetLogger()
	}
	r := &Repository[T]{db: db, opts: o, pending: query.New()}
	r.model, r.err = resolveModel[T](db, o.fillable)
	return r
}

// WithTx returns a repository with the same configuration bound to tx and
// no pending clauses.
func (r *Repository[T]) WithTx(tx bun.Tx) *Repository[T] {
	o := r.opts
	o.scopes = maps.Clone(r.opts.scopes)
	return &Repository[T]{db: tx, model: r.model, err: r.err, opts: o, pending: query.New()}
}

// Model returns the resolved model description.
func (r *Repository[T]) Model() (*Model, error) {
	return r.model, r.err
}

// Input returns the bound request input, if any.
func (r *Repository[T]) Input() input.Source { return r.opts.input }

func (r *Repository[T]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *Repository[T]) NewSelect() *bun.SelectQuery { return r.db.NewSelect() }

func (r *Repository[T]) NewInsert() *bun.InsertQuery { return r.db.NewInsert() }

func (r *Repository[T]) NewUpdate() *bun.UpdateQuery { return r.db.NewUpdate() }

func (r *Repository[T]) NewDelete() *bun.DeleteQuery { return r.db.NewDelete() }

// Where adds a condition. One argument compares with "=", two arguments are
// an operator and a value.
func (r *Repository[T]) Where(column string, args ...any) *Repository[T] {
	r.pending = r.pending.Where(column, args...)
	return r
}

// WhereIn adds a membership condition. values may be any slice.
func (r *Repository[T]) WhereIn(column string, values any) *Repository[T] {
	r.pending = r.pending.WhereIn(column, values)
	return r
}

// WhereRaw adds a raw bun condition.
func (r *Repository[T]) WhereRaw(filter *types.QueryFilter) *Repository[T] {
	r.pending = r.pending.WhereRaw(filter)
	return r
}

func (r *Repository[T]) OrderBy(column string, direction ...string) *Repository[T] {
	r.pending = r.pending.OrderBy(column, direction...)
	return r
}

func (r *Repository[T]) Take(n int) *Repository[T] {
	r.pending = r.pending.Take(n)
	return r
}

func (r *Repository[T]) Skip(n int) *Repository[T] {
	r.pending = r.pending.Skip(n)
	return r
}

// With sets the relations to eager load, replacing any earlier set.
func (r *Repository[T]) With(relations ...string) *Repository[T] {
	r.pending = r.pending.With(relations...)
	return r
}

// Scope records a call to a scope registered with WithScope.
func (r *Repository[T]) Scope(name string, args ...any) *Repository[T] {
	r.pending = r.pending.Scope(name, args...)
	return r
}

// Pending returns the clauses accumulated since the last terminal operation.
func (r *Repository[T]) Pending() query.Spec { return r.pending }

// Reset discards the pending clauses.
func (r *Repository[T]) Reset() *Repository[T] {
	r.pending = query.New()
	return r
}

func (r *Repository[T]) takePending() query.Spec {
	s := r.pending
	r.pending = query.New()
	return s
}

func (r *Repository[T]) queryOptions() query.Options {
	return query.Options{Alias: r.model.Alias, Scopes: r.opts.scopes}
}

// wrapErr turns a missing row into a NotFoundError for key.
func (r *Repository[T]) wrapErr(err error, key any) error {
	if err == nil {
		return nil
	}
	if ok, kind := database.IsSqlError(err); ok && kind == database.NoRowsErr {
		return &types.NotFoundError{Model: r.model.Name, Key: key}
	}
	return err
}

// First returns the first row matching the pending clauses.
func (r *Repository[T]) First(ctx context.Context) (*T, error) {
	spec := r.takePending()
	if r.err != nil {
		return nil, r.err
	}
	return r.FirstOf(ctx, spec)
}

// FirstOf returns the first row matching spec. Pending clauses are untouched.
func (r *Repository[T]) FirstOf(ctx context.Context, spec query.Spec) (*T, error) {
	if r.err != nil {
		return nil, r.err
	}
	entity := new(T)
	q, err := query.ApplySelect(r.db.NewSelect().Model(entity), spec, r.queryOptions())
	if err != nil {
		return nil, err
	}
	if err := q.Limit(1).Scan(ctx); err != nil {
		return nil, r.wrapErr(err, nil)
	}
	return entity, nil
}

// Get returns every row matching the pending clauses.
func (r *Repository[T]) Get(ctx context.Context) ([]*T, error) {
	spec := r.takePending()
	if r.err != nil {
		return nil, r.err
	}
	return r.Query(ctx, spec)
}

// Query returns every row matching spec. Pending clauses are untouched.
func (r *Repository[T]) Query(ctx context.Context, spec query.Spec, columns ...string) ([]*T, error) {
	if r.err != nil {
		return nil, r.err
	}
	entities := make([]*T, 0)
	q, err := query.ApplySelect(r.db.NewSelect().Model(&entities), spec, r.queryOptions())
	if err != nil {
		return nil, err
	}
	q = r.selectColumns(q, columns)
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

// All returns every row of the table. Only eager loads among the pending
// clauses apply.
func (r *Repository[T]) All(ctx context.Context) ([]*T, error) {
	spec := r.takePending()
	if r.err != nil {
		return nil, r.err
	}
	entities := make([]*T, 0)
	q := query.ApplyEagerLoads(r.db.NewSelect().Model(&entities), spec.Relations())
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

// Count returns the number of rows matching the pending conditions.
func (r *Repository[T]) Count(ctx context.Context) (int, error) {
	spec := r.takePending()
	if r.err != nil {
		return 0, r.err
	}
	return r.count(ctx, spec)
}

func (r *Repository[T]) count(ctx context.Context, spec query.Spec) (int, error) {
	q, err := query.ApplySelect(r.db.NewSelect().Model((*T)(nil)), spec.WithoutPaging(), r.queryOptions())
	if err != nil {
		return 0, err
	}
	return q.Count(ctx)
}

// Paginate returns one page of the rows matching the pending clauses. The
// page number, path and query string come from the bound input.
func (r *Repository[T]) Paginate(ctx context.Context, perPage int, columns ...string) (*types.Pagination[T], error) {
	spec := r.takePending()
	if r.err != nil {
		return nil, r.err
	}
	req := types.NewPageRequest(r.currentPage(), perPage)
	pagination := r.newPagination(req)

	total, err := r.count(ctx, spec)
	if err != nil || total == 0 {
		return pagination, err
	}
	pagination.Total = total

	items, err := r.Query(ctx, spec.Take(req.GetPageSize()).Skip(req.GetOffset()), columns...)
	if err != nil {
		return nil, err
	}
	pagination.Items = items
	return pagination, nil
}

// PaginateArrayResults pages an in-memory result set using the bound input.
func (r *Repository[T]) PaginateArrayResults(items []*T, perPage int) *types.Pagination[T] {
	pagination := types.Paginate(items, r.currentPage(), perPage)
	if src := r.opts.input; src != nil {
		pagination.Path = src.Path()
		pagination.Query = src.Query()
	}
	return pagination
}

func (r *Repository[T]) currentPage() int {
	if r.opts.input == nil {
		return 1
	}
	return r.opts.input.Page()
}

func (r *Repository[T]) newPagination(req *types.PageRequest) *types.Pagination[T] {
	pagination := types.NewDefaultPagination[T](req.GetPage(), req.GetPageSize())
	if src := r.opts.input; src != nil {
		pagination.Path = src.Path()
		pagination.Query = src.Query()
	}
	return pagination
}

// FindBy returns the first row whose column equals value. Pending conditions
// are discarded; pending eager loads apply.
func (r *Repository[T]) FindBy(ctx context.Context, column string, value any) (*T, error) {
	pending := r.takePending()
	if r.err != nil {
		return nil, r.err
	}
	spec := query.New().With(pending.Relations()...).Where(column, value)
	entity, err := r.FirstOf(ctx, spec)
	return entity, r.keyErr(err, value)
}

// Find looks a row up by primary key.
func (r *Repository[T]) Find(ctx context.Context, id any) (*T, error) {
	if r.err != nil {
		r.takePending()
		return nil, r.err
	}
	return r.FindBy(ctx, r.model.PrimaryKey, id)
}

// GetAll lists every row, optionally restricted to columns and ordered.
func (r *Repository[T]) GetAll(ctx context.Context, columns []string, orderBy string, direction string) ([]*T, error) {
	spec := query.New()
	if orderBy != "" {
		spec = spec.OrderBy(orderBy, direction)
	}
	return r.Query(ctx, spec, columns...)
}

// Delete removes every row matching the pending conditions and scopes and
// returns how many were removed. Without conditions the whole table is
// cleared.
func (r *Repository[T]) Delete(ctx context.Context) (int64, error) {
	spec := r.takePending()
	if r.err != nil {
		return 0, r.err
	}
	q, err := query.ApplyDelete(r.db.NewDelete().Model((*T)(nil)), spec, query.Options{Scopes: r.opts.scopes})
	if err != nil {
		return 0, err
	}
	if !spec.HasFilters() {
		q = q.Where("1 = 1")
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	r.opts.logger.Debug("Deleted records", "model", r.model.Name, "count", n)
	return n, nil
}

func (r *Repository[T]) selectColumns(q *bun.SelectQuery, columns []string) *bun.SelectQuery {
	columns = slices.DeleteFunc(slices.Clone(columns), func(c string) bool { return c == "" || c == "*" })
	for _, c := range columns {
		if r.model.Alias != "" {
			q = q.ColumnExpr("?", bun.Ident(r.model.Alias+"."+c))
		} else {
			q = q.ColumnExpr("?", bun.Ident(c))
		}
	}
	return q
}
