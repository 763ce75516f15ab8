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
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"

	"github.com/tomoncle/repokit/attrs"
	"github.com/tomoncle/repokit/types"
)

// Fillable is implemented by models that declare their mass-assignable
// columns.
type Fillable interface {
	Fillable() []string
}

// Model describes the bun model a repository is bound to.
type Model struct {
	Name       string
	Table      string
	Alias      string
	PrimaryKey string
	Columns    []string
	Fillable   []string

	table *schema.Table
	pk    *schema.Field
}

func resolveModel[T any](db bun.IDB, fillable []string) (*Model, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: no database bound", types.ErrNoModelConfigured)
	}
	if d, ok := db.(*bun.DB); ok && d == nil {
		return nil, fmt.Errorf("%w: no database bound", types.ErrNoModelConfigured)
	}
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", types.ErrNoModelConfigured, typ)
	}
	table := db.Dialect().Tables().Get(typ)
	if table == nil || len(table.PKs) != 1 {
		return nil, fmt.Errorf("%w: %s must declare exactly one primary key", types.ErrNoModelConfigured, typ.Name())
	}

	m := &Model{
		Name:       typ.Name(),
		Table:      table.Name,
		Alias:      table.Alias,
		PrimaryKey: table.PKs[0].Name,
		table:      table,
		pk:         table.PKs[0],
	}
	for _, f := range table.Fields {
		m.Columns = append(m.Columns, f.Name)
	}

	if len(fillable) == 0 {
		if f, ok := any(new(T)).(Fillable); ok {
			fillable = f.Fillable()
		}
	}
	if len(fillable) == 0 {
		for _, f := range table.Fields {
			if !f.IsPK {
				fillable = append(fillable, f.Name)
			}
		}
	}
	for _, col := range fillable {
		if _, ok := table.FieldMap[col]; !ok {
			return nil, types.NewConfigError(m.Name+".fillable", "unknown column %q", col)
		}
	}
	m.Fillable = slices.Clone(fillable)
	return m, nil
}

// HasColumn reports whether name is a column of the model table.
func (m *Model) HasColumn(name string) bool {
	_, ok := m.table.FieldMap[name]
	return ok
}

// IsFillable reports whether name may be mass assigned.
func (m *Model) IsFillable(name string) bool {
	return slices.Contains(m.Fillable, name)
}

// Key returns the primary key value of entity, a pointer to the model.
func (m *Model) Key(entity any) any {
	v, _ := fieldValue(entity, m.pk)
	return v
}

// Value returns the value of column on entity, a pointer to the model.
func (m *Model) Value(entity any, column string) (any, bool) {
	f, ok := m.table.FieldMap[column]
	if !ok {
		return nil, false
	}
	return fieldValue(entity, f)
}

func fieldValue(entity any, f *schema.Field) (any, bool) {
	v := reflect.ValueOf(entity)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	return v.FieldByIndex(f.Index).Interface(), true
}

// KeyFrom extracts a non-empty primary key value from data.
func (m *Model) KeyFrom(data attrs.Map) (any, bool) {
	v, ok := data[m.PrimaryKey]
	if !ok || isEmptyKey(v) {
		return nil, false
	}
	return normalizeKey(v), true
}

// fill decodes the fillable subset of data onto entity and returns the
// columns it assigned, in fillable order.
func (m *Model) fill(entity any, data attrs.Map) ([]string, error) {
	input := make(map[string]any, len(data))
	cols := make([]string, 0, len(data))
	for _, col := range m.Fillable {
		v, ok := data[col]
		if !ok {
			continue
		}
		input[m.table.FieldMap[col].GoName] = v
		cols = append(cols, col)
	}
	if len(input) == 0 {
		return cols, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		Squash:           true,
		ZeroFields:       true,
		Result:           entity,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(input); err != nil {
		return nil, fmt.Errorf("fill %s: %w", m.Name, err)
	}
	return cols, nil
}

// isEmptyKey treats nil, blank strings, "0", numeric zero and false as no key.
func isEmptyKey(v any) bool {
	switch k := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(k)
		return s == "" || s == "0"
	case json.Number:
		return isEmptyKey(string(k))
	case bool:
		return !k
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	case reflect.Pointer:
		return rv.IsNil() || isEmptyKey(rv.Elem().Interface())
	}
	return false
}

// normalizeKey turns integral JSON numbers into int64.
func normalizeKey(v any) any {
	switch k := v.(type) {
	case float64:
		if k == math.Trunc(k) && math.Abs(k) < 1<<53 {
			return int64(k)
		}
	case json.Number:
		if n, err := k.Int64(); err == nil {
			return n
		}
	}
	return v
}
