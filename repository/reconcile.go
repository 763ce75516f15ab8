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

	"github.com/uptrace/bun"

	"github.com/tomoncle/repokit/attrs"
	"github.com/tomoncle/repokit/query"
	"github.com/tomoncle/repokit/types"
)

// Reconcile returns a map holding exactly the fillable keys: values present
// in data are kept, the rest are nil. Applying it twice changes nothing.
func Reconcile(fillable []string, data attrs.Map) attrs.Map {
	out := make(attrs.Map, len(fillable))
	for _, col := range fillable {
		out[col] = data[col]
	}
	return out
}

// SetMissingFillableAttributesToNull reconciles data against the model's
// fillable columns.
func (r *Repository[T]) SetMissingFillableAttributesToNull(data attrs.Map) (attrs.Map, error) {
	if r.err != nil {
		return nil, r.err
	}
	return Reconcile(r.model.Fillable, data), nil
}

// Make builds an unsaved instance from the fillable subset of data.
func (r *Repository[T]) Make(data attrs.Map) (*T, error) {
	if r.err != nil {
		return nil, r.err
	}
	entity := new(T)
	if _, err := r.model.fill(entity, data); err != nil {
		return nil, err
	}
	return entity, nil
}

// Create inserts a record built from the fillable subset of data.
func (r *Repository[T]) Create(ctx context.Context, data attrs.Map) (*T, error) {
	entity, err := r.Make(data)
	if err != nil {
		return nil, err
	}
	if _, err := r.db.NewInsert().Model(entity).Exec(ctx); err != nil {
		return nil, err
	}
	r.opts.logger.Debug("Created record", "model", r.model.Name, "key", r.model.Key(entity))
	return entity, nil
}

// CreateMultipleFromArray creates one record per entry, stopping at the
// first failure.
func (r *Repository[T]) CreateMultipleFromArray(ctx context.Context, records []attrs.Map) ([]*T, error) {
	entities := make([]*T, 0, len(records))
	for _, data := range records {
		entity, err := r.Create(ctx, data)
		if err != nil {
			return entities, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// CreateOrUpdateFromArray updates the record named by the primary key in
// data, or creates one when data carries no key or the key is unknown. With
// reconcile set, fillable columns absent from data are cleared on update.
//
// The lookup and the write are separate statements; run inside WithTx when
// they must be atomic.
func (r *Repository[T]) CreateOrUpdateFromArray(ctx context.Context, data attrs.Map, reconcile bool) (*T, error) {
	if r.err != nil {
		return nil, r.err
	}
	key, ok := r.model.KeyFrom(data)
	if !ok {
		return r.Create(ctx, data)
	}
	entity, err := r.UpdateByPrimary(ctx, key, data, reconcile)
	if errors.Is(err, types.ErrNotFound) {
		return r.Create(ctx, data)
	}
	return entity, err
}

// CreateOrUpdateMultipleFromArray applies CreateOrUpdateFromArray to each
// entry in order, stopping at the first failure.
func (r *Repository[T]) CreateOrUpdateMultipleFromArray(ctx context.Context, records []attrs.Map, reconcile bool) ([]*T, error) {
	entities := make([]*T, 0, len(records))
	for _, data := range records {
		entity, err := r.CreateOrUpdateFromArray(ctx, data, reconcile)
		if err != nil {
			return entities, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// UpdateByPrimary loads the record, fills it from data, writes the filled
// columns and returns the stored state.
func (r *Repository[T]) UpdateByPrimary(ctx context.Context, key any, data attrs.Map, reconcile bool) (*T, error) {
	entity, err := r.FindOneByPrimary(ctx, key, true)
	if err != nil {
		return nil, err
	}
	if reconcile {
		data = Reconcile(r.model.Fillable, data)
	}
	cols, err := r.model.fill(entity, data)
	if err != nil {
		return nil, err
	}
	if len(cols) > 0 {
		_, err := r.db.NewUpdate().
			Model(entity).
			Column(cols...).
			WherePK().
			Exec(ctx)
		if err != nil {
			return nil, err
		}
	}
	r.opts.logger.Debug("Updated record", "model", r.model.Name, "key", key, "columns", cols)
	return r.FindOneByPrimary(ctx, key, true)
}

// FindOneByPrimary looks a record up by key. A missing record is an error
// only when throwIfMissing is set; otherwise nil is returned.
func (r *Repository[T]) FindOneByPrimary(ctx context.Context, key any, throwIfMissing bool) (*T, error) {
	if r.err != nil {
		return nil, r.err
	}
	entity, err := r.FirstOf(ctx, query.New().Where(r.model.PrimaryKey, key))
	return r.found(entity, r.keyErr(err, key), throwIfMissing)
}

// FindOneFromArray returns the first record whose columns equal criteria.
// A nil criterion matches NULL.
func (r *Repository[T]) FindOneFromArray(ctx context.Context, criteria attrs.Map, throwIfMissing bool) (*T, error) {
	if r.err != nil {
		return nil, r.err
	}
	entity, err := r.FirstOf(ctx, r.criteria(criteria))
	return r.found(entity, err, throwIfMissing)
}

// FindMultipleFromArray returns every record whose columns equal criteria.
func (r *Repository[T]) FindMultipleFromArray(ctx context.Context, criteria attrs.Map) ([]*T, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.Query(ctx, r.criteria(criteria))
}

// FindMultipleFromIds returns the records whose primary key is in ids.
func (r *Repository[T]) FindMultipleFromIds(ctx context.Context, ids any) ([]*T, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.Query(ctx, query.New().WhereIn(r.model.PrimaryKey, ids))
}

// ModelUniqueInstance returns the first record, creating an empty one when
// the table has none.
func (r *Repository[T]) ModelUniqueInstance(ctx context.Context) (*T, error) {
	if r.err != nil {
		return nil, r.err
	}
	entity, err := r.FirstOf(ctx, query.New())
	if !errors.Is(err, types.ErrNotFound) {
		return entity, err
	}
	entity = new(T)
	if _, err := r.db.NewInsert().Model(entity).Exec(ctx); err != nil {
		return nil, err
	}
	return entity, nil
}

// DeleteFromArray deletes the record named by the primary key in data.
func (r *Repository[T]) DeleteFromArray(ctx context.Context, data attrs.Map) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	key, ok := r.model.KeyFrom(data)
	if !ok {
		return false, &types.NotFoundError{Model: r.model.Name}
	}
	return r.DeleteByPrimary(ctx, key)
}

// DeleteByPrimary deletes one record and reports whether a row was removed.
// An unknown key is a NotFoundError.
func (r *Repository[T]) DeleteByPrimary(ctx context.Context, key any) (bool, error) {
	entity, err := r.FindOneByPrimary(ctx, key, true)
	if err != nil {
		return false, err
	}
	res, err := r.db.NewDelete().Model(entity).WherePK().Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	r.opts.logger.Debug("Deleted record", "model", r.model.Name, "key", key)
	return n > 0, nil
}

// DeleteMultipleFromPrimaries deletes the records whose primary key is in
// keys and returns how many rows were removed.
func (r *Repository[T]) DeleteMultipleFromPrimaries(ctx context.Context, keys any) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	values := query.Values(keys)
	if keys == nil || len(values) == 0 {
		return 0, nil
	}
	res, err := r.db.NewDelete().
		Model((*T)(nil)).
		Where("? IN (?)", bun.Ident(r.model.PrimaryKey), bun.In(values)).
		Exec(ctx)
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

func (r *Repository[T]) criteria(m attrs.Map) query.Spec {
	spec := query.New()
	for _, col := range attrs.Keys(m) {
		spec = spec.Where(col, m[col])
	}
	return spec
}

func (r *Repository[T]) keyErr(err error, key any) error {
	var nf *types.NotFoundError
	if errors.As(err, &nf) {
		nf.Key = key
	}
	return err
}

func (r *Repository[T]) found(entity *T, err error, throwIfMissing bool) (*T, error) {
	if err != nil && !throwIfMissing && errors.Is(err, types.ErrNotFound) {
		return nil, nil
	}
	return entity, err
}
