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

package query

import (
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

// ScopeFunc is a reusable clause fragment invoked by name.
type ScopeFunc func(q bun.QueryBuilder, args ...any) bun.QueryBuilder

// Options controls how a Spec is rendered onto a bun query.
type Options struct {
	// Alias qualifies bare column names; leave empty for DELETE.
	Alias  string
	Scopes map[string]ScopeFunc
}

// ApplySelect renders s onto q: eager loads first, then conditions, ordering,
// limit and offset, then scopes.
func ApplySelect(q *bun.SelectQuery, s Spec, opts Options) (*bun.SelectQuery, error) {
	if err := s.Err(); err != nil {
		return q, err
	}
	if err := checkScopes(s, opts.Scopes); err != nil {
		return q, err
	}
	q = ApplyEagerLoads(q, s.with)
	q = q.ApplyQueryBuilder(func(qb bun.QueryBuilder) bun.QueryBuilder {
		return ApplyFilters(qb, s, opts.Alias)
	})
	for _, o := range s.orders {
		q = q.OrderExpr("? "+o.Direction.Name(), column(opts.Alias, o.Column))
	}
	if n, ok := s.Limit(); ok {
		q = q.Limit(n)
	}
	if n, ok := s.Offset(); ok {
		q = q.Offset(n)
	}
	q = q.ApplyQueryBuilder(func(qb bun.QueryBuilder) bun.QueryBuilder {
		return applyScopes(qb, s, opts.Scopes)
	})
	return q, nil
}

// ApplyDelete renders the conditions and scopes of s onto q. Ordering, limit
// and offset do not apply to deletes.
func ApplyDelete(q *bun.DeleteQuery, s Spec, opts Options) (*bun.DeleteQuery, error) {
	if err := s.Err(); err != nil {
		return q, err
	}
	if err := checkScopes(s, opts.Scopes); err != nil {
		return q, err
	}
	q = q.ApplyQueryBuilder(func(qb bun.QueryBuilder) bun.QueryBuilder {
		return applyScopes(ApplyFilters(qb, s, opts.Alias), s, opts.Scopes)
	})
	return q, nil
}

// ApplyEagerLoads adds one Relation per name.
func ApplyEagerLoads(q *bun.SelectQuery, relations []string) *bun.SelectQuery {
	for _, rel := range relations {
		q = q.Relation(rel)
	}
	return q
}

// ApplyFilters adds the where, where-in and raw conditions of s, AND combined
// in the order they were recorded.
func ApplyFilters(qb bun.QueryBuilder, s Spec, alias string) bun.QueryBuilder {
	for _, w := range s.wheres {
		col := column(alias, w.Column)
		if w.Value == nil {
			switch w.Operator {
			case "=", "IS":
				qb = qb.Where("? IS NULL", col)
				continue
			case "!=", "<>", "IS NOT":
				qb = qb.Where("? IS NOT NULL", col)
				continue
			}
		}
		qb = qb.Where("? "+w.Operator+" ?", col, w.Value)
	}
	for _, in := range s.whereIns {
		if len(in.Values) == 0 {
			qb = qb.Where("1 = 0")
			continue
		}
		qb = qb.Where("? IN (?)", column(alias, in.Column), bun.In(in.Values))
	}
	for _, raw := range s.raws {
		qb = qb.Where(raw.Schema, raw.Args...)
	}
	return qb
}

func applyScopes(qb bun.QueryBuilder, s Spec, scopes map[string]ScopeFunc) bun.QueryBuilder {
	for _, sc := range s.scopes {
		qb = scopes[sc.Name](qb, sc.Args...)
	}
	return qb
}

func checkScopes(s Spec, scopes map[string]ScopeFunc) error {
	for _, sc := range s.scopes {
		if fn, ok := scopes[sc.Name]; !ok || fn == nil {
			return fmt.Errorf("scope %q is not registered", sc.Name)
		}
	}
	return nil
}

// column quotes name as an identifier, prefixing alias when name is not
// already qualified. Raw expressions go through WhereRaw instead.
func column(alias, name string) bun.Ident {
	if alias != "" && !strings.Contains(name, ".") {
		name = alias + "." + name
	}
	return bun.Ident(name)
}
