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
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

// Upsert inserts entities in one statement, updating fields of rows that
// collide on conflictKeys. fields defaults to the fillable columns and
// conflictKeys to the primary key. MySQL ignores conflictKeys and uses every
// unique index.
func (r *Repository[T]) Upsert(ctx context.Context, fields []string, conflictKeys []string, entities ...*T) error {
	if r.err != nil {
		return r.err
	}
	if len(entities) == 0 {
		return nil
	}
	if len(fields) == 0 {
		fields = r.model.Fillable
	}
	if len(fields) == 0 {
		return fmt.Errorf("fields cannot be empty")
	}
	for _, f := range fields {
		if !r.model.HasColumn(f) {
			return fmt.Errorf("upsert %s: unknown column %q", r.model.Name, f)
		}
	}
	if len(conflictKeys) == 0 {
		conflictKeys = []string{r.model.PrimaryKey}
	}

	features := r.db.Dialect().Features()
	switch {
	case features.Has(feature.InsertOnConflict):
		return r.upsertOnConflict(ctx, fields, conflictKeys, entities)
	case features.Has(feature.InsertOnDuplicateKey):
		return r.upsertOnDuplicateKey(ctx, fields, entities)
	default:
		return r.upsertFallback(ctx, entities)
	}
}

func (r *Repository[T]) upsertOnDuplicateKey(ctx context.Context, fields []string, entities []*T) error {
	sets := make([]string, 0, len(fields))
	for _, field := range fields {
		sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", r.ident(field), r.ident(field)))
	}
	_, err := r.db.NewInsert().
		Model(&entities).
		On("DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")).
		Exec(ctx)
	return err
}

func (r *Repository[T]) upsertOnConflict(ctx context.Context, fields []string, conflictKeys []string, entities []*T) error {
	keys := make([]string, 0, len(conflictKeys))
	for _, k := range conflictKeys {
		keys = append(keys, r.ident(k))
	}
	sets := make([]string, 0, len(fields))
	for _, field := range fields {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", r.ident(field), r.ident(field)))
	}
	_, err := r.db.NewInsert().
		Model(&entities).
		On("CONFLICT (" + strings.Join(keys, ", ") + ") DO UPDATE").
		Set(strings.Join(sets, ", ")).
		Exec(ctx)
	return err
}

// upsertFallback tries an insert per entity and updates by primary key when
// the insert fails.
func (r *Repository[T]) upsertFallback(ctx context.Context, entities []*T) error {
	for _, entity := range entities {
		_, err := r.db.NewInsert().Model(entity).Exec(ctx)
		if err == nil {
			continue
		}
		if _, updateErr := r.db.NewUpdate().Model(entity).WherePK().Exec(ctx); updateErr != nil {
			return fmt.Errorf("upsert failed for entity: insert error: %v, update error: %w", err, updateErr)
		}
	}
	return nil
}

func (r *Repository[T]) ident(name string) string {
	return string(schema.NewFormatter(r.db.Dialect()).AppendQuery(nil, "?", bun.Ident(name)))
}
