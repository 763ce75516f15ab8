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
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/tomoncle/repokit/types"
)

var operators = map[string]string{
	"=":        "=",
	"!=":       "!=",
	"<>":       "<>",
	"<":        "<",
	"<=":       "<=",
	">":        ">",
	">=":       ">=",
	"like":     "LIKE",
	"not like": "NOT LIKE",
	"ilike":    "ILIKE",
	"is":       "IS",
	"is not":   "IS NOT",
}

// Where is a single (column, operator, value) condition.
type Where struct {
	Column   string
	Operator string
	Value    any
}

// WhereIn restricts column to a set of values.
type WhereIn struct {
	Column string
	Values []any
}

// Order is one ORDER BY term.
type Order struct {
	Column    string
	Direction types.Direction
}

// ScopeCall invokes a named scope with its arguments.
type ScopeCall struct {
	Name string
	Args []any
}

// Spec is an immutable set of query clauses. Every builder method returns a
// new Spec and leaves the receiver untouched, so a Spec can be shared and
// reused freely.
type Spec struct {
	wheres   []Where
	whereIns []WhereIn
	raws     []types.QueryFilter
	orders   []Order
	limit    *int
	offset   *int
	with     []string
	scopes   []ScopeCall
	errs     []error
}

// New returns an empty Spec.
func New() Spec { return Spec{} }

func appendCopy[E any](s []E, v ...E) []E {
	out := make([]E, len(s), len(s)+len(v))
	copy(out, s)
	return append(out, v...)
}

// Where adds an AND condition. With one argument the operator is "=" and the
// argument is the value; with two the first is the operator.
func (s Spec) Where(column string, args ...any) Spec {
	switch len(args) {
	case 1:
		s.wheres = appendCopy(s.wheres, Where{Column: column, Operator: "=", Value: args[0]})
	case 2:
		op, ok := args[0].(string)
		if !ok {
			return s.fail(fmt.Errorf("where %q: operator must be a string, got %T", column, args[0]))
		}
		normalized, ok := operators[strings.ToLower(strings.TrimSpace(op))]
		if !ok {
			return s.fail(fmt.Errorf("where %q: unsupported operator %q", column, op))
		}
		s.wheres = appendCopy(s.wheres, Where{Column: column, Operator: normalized, Value: args[1]})
	default:
		return s.fail(fmt.Errorf("where %q: expected 1 or 2 arguments, got %d", column, len(args)))
	}
	return s
}

// WhereIn adds an IN condition. A scalar value becomes a one element set.
func (s Spec) WhereIn(column string, values any) Spec {
	s.whereIns = appendCopy(s.whereIns, WhereIn{Column: column, Values: Values(values)})
	return s
}

// WhereRaw adds a raw fragment with its own placeholders.
func (s Spec) WhereRaw(filter *types.QueryFilter) Spec {
	if filter == nil || filter.Schema == "" {
		return s
	}
	s.raws = appendCopy(s.raws, *filter)
	return s
}

// OrderBy appends an ORDER BY term; direction defaults to ascending.
func (s Spec) OrderBy(column string, direction ...string) Spec {
	dir := types.Ascending
	if len(direction) > 0 {
		d, err := types.ParseDirection(direction[0])
		if err != nil {
			return s.fail(fmt.Errorf("order by %q: %w", column, err))
		}
		dir = d
	}
	return s.OrderByDirection(column, dir)
}

func (s Spec) OrderByDirection(column string, dir types.Direction) Spec {
	if !dir.IsValid() {
		return s.fail(fmt.Errorf("order by %q: invalid direction %d", column, dir))
	}
	s.orders = appendCopy(s.orders, Order{Column: column, Direction: dir})
	return s
}

// Take sets the LIMIT. The last call wins.
func (s Spec) Take(n int) Spec {
	if n < 0 {
		return s.fail(fmt.Errorf("take: negative limit %d", n))
	}
	s.limit = &n
	return s
}

// Skip sets the OFFSET. The last call wins.
func (s Spec) Skip(n int) Spec {
	if n < 0 {
		return s.fail(fmt.Errorf("skip: negative offset %d", n))
	}
	s.offset = &n
	return s
}

// With replaces the relations to eager-load. Calling it twice keeps only the
// second list.
func (s Spec) With(relations ...string) Spec {
	s.with = appendCopy([]string(nil), relations...)
	return s
}

// Scope records a named scope call. Calling the same name again replaces its
// arguments but keeps its original position.
func (s Spec) Scope(name string, args ...any) Spec {
	call := ScopeCall{Name: name, Args: appendCopy([]any(nil), args...)}
	for i, sc := range s.scopes {
		if sc.Name == name {
			s.scopes = appendCopy(s.scopes)
			s.scopes[i] = call
			return s
		}
	}
	s.scopes = appendCopy(s.scopes, call)
	return s
}

func (s Spec) fail(err error) Spec {
	s.errs = appendCopy(s.errs, err)
	return s
}

// Err joins the argument errors recorded by the builder methods.
func (s Spec) Err() error { return errors.Join(s.errs...) }

// IsZero reports whether no clause has been recorded.
func (s Spec) IsZero() bool {
	return len(s.wheres) == 0 && len(s.whereIns) == 0 && len(s.raws) == 0 &&
		len(s.orders) == 0 && s.limit == nil && s.offset == nil &&
		len(s.with) == 0 && len(s.scopes) == 0 && len(s.errs) == 0
}

func (s Spec) Wheres() []Where           { return appendCopy(s.wheres) }
func (s Spec) WhereIns() []WhereIn       { return appendCopy(s.whereIns) }
func (s Spec) Raws() []types.QueryFilter { return appendCopy(s.raws) }
func (s Spec) Orders() []Order           { return appendCopy(s.orders) }
func (s Spec) Relations() []string       { return appendCopy(s.with) }
func (s Spec) Scopes() []ScopeCall       { return appendCopy(s.scopes) }

// WithoutPaging drops ordering, limit and offset, keeping conditions, eager
// loads and scopes. Count queries use it.
func (s Spec) WithoutPaging() Spec {
	s.orders = nil
	s.limit = nil
	s.offset = nil
	return s
}

// HasFilters reports whether s restricts rows through conditions or scopes.
func (s Spec) HasFilters() bool {
	return len(s.wheres) > 0 || len(s.whereIns) > 0 || len(s.raws) > 0 || len(s.scopes) > 0
}

// Limit returns the LIMIT and whether one was set.
func (s Spec) Limit() (int, bool) {
	if s.limit == nil {
		return 0, false
	}
	return *s.limit, true
}

// Offset returns the OFFSET and whether one was set.
func (s Spec) Offset() (int, bool) {
	if s.offset == nil {
		return 0, false
	}
	return *s.offset, true
}

// Values flattens a slice or array of any element type into []any. Any other
// value, nil included, becomes a one element set. []byte counts as a scalar.
func Values(values any) []any {
	switch v := values.(type) {
	case nil:
		return []any{nil}
	case []any:
		return appendCopy([]any(nil), v...)
	case []byte:
		return []any{v}
	}
	rv := reflect.ValueOf(values)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{values}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
