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
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/tomoncle/repokit/attrs"
	"github.com/tomoncle/repokit/input"
	"github.com/tomoncle/repokit/types"
)

func TestModelResolution(t *testing.T) {
	db := newTestDB(t)

	model, err := New[User](db).Model()
	require.NoError(t, err)
	assert.Equal(t, "User", model.Name)
	assert.Equal(t, "users", model.Table)
	assert.Equal(t, "u", model.Alias)
	assert.Equal(t, "id", model.PrimaryKey)
	assert.Equal(t, []string{"name", "email", "age", "company_id"}, model.Fillable)
	assert.True(t, model.HasColumn("password"))
	assert.False(t, model.IsFillable("password"))

	settings, err := New[Setting](db).Model()
	require.NoError(t, err)
	assert.Equal(t, []string{"key", "value", "priority", "updated_at"}, settings.Fillable)

	overridden, err := New[User](db, WithFillable("name")).Model()
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, overridden.Fillable)

	_, err = New[User](db, WithFillable("nickname")).Model()
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
}

func TestNoModelConfigured(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	cases := map[string]func() error{
		"nil db": func() error {
			_, err := New[User](nil).First(ctx)
			return err
		},
		"typed nil db": func() error {
			_, err := New[User]((*bun.DB)(nil)).Get(ctx)
			return err
		},
		"not a struct": func() error {
			_, err := New[int](db).Count(ctx)
			return err
		},
		"no primary key": func() error {
			_, err := New[logLine](db).CreateOrUpdateFromArray(ctx, attrs.Map{"message": "x"}, true)
			return err
		},
	}
	for name, run := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, run(), types.ErrNoModelConfigured)
		})
	}

	repo := New[User](nil).Where("name", "x")
	_, err := repo.Get(ctx)
	require.ErrorIs(t, err, types.ErrNoModelConfigured)
	assert.True(t, repo.Pending().IsZero(), "clauses are cleared even when the model is missing")
}

func TestClausesAreClearedAfterTerminalOperations(t *testing.T) {
	ctx := context.Background()
	repo := newUsers(t, newTestDB(t))
	seedUsers(t, repo, 3)

	users, err := repo.Where("name", "user-2").OrderBy("name", "desc").Take(1).Get(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "user-2", users[0].Name)
	assert.True(t, repo.Pending().IsZero())

	users, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3, "a second read sees none of the earlier clauses")

	_, err = repo.Where("no_such_column", 1).Get(ctx)
	require.Error(t, err)
	assert.True(t, repo.Pending().IsZero(), "a failed query still clears clauses")

	_, err = repo.Where("name", "~~", "x").First(ctx)
	require.Error(t, err)
	assert.True(t, repo.Pending().IsZero())

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestColumnNamesCannotCarryExpressions(t *testing.T) {
	ctx := context.Background()
	repo := newUsers(t, newTestDB(t))
	seedUsers(t, repo, 3)

	users, err := repo.Where("name = 'nobody' OR 1 = 1 OR name", "nobody").Get(ctx)
	assert.Error(t, err)
	assert.Empty(t, users)

	found, err := repo.FindBy(ctx, "(1=1) OR name", "nobody")
	assert.Error(t, err)
	assert.Nil(t, found)

	_, err = repo.GetAll(ctx, nil, "age desc, (select 1)", "asc")
	assert.Error(t, err)

	deleted, _ := repo.Where("1 = 1 OR name", "nobody").Delete(ctx)
	assert.Zero(t, deleted)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestWhereOperatorsAndWhereIn(t *testing.T) {
	ctx := context.Background()
	repo := newUsers(t, newTestDB(t))
	seedUsers(t, repo, 5)

	users, err := repo.Where("age", ">", 3).OrderBy("age").Get(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(4), *users[0].Age)

	users, err = repo.WhereIn("name", []string{"user-1", "user-5", "nobody"}).Get(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	users, err = repo.WhereIn("name", []string{}).Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	count, err := repo.Where("name", "like", "user-%").Where("age", "<=", 2).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	users, err = repo.WhereRaw(types.NewQueryFilter("u.age % 2 = ?", 0)).Get(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestOrderSkipTake(t *testing.T) {
	ctx := context.Background()
	repo := newUsers(t, newTestDB(t))
	seedUsers(t, repo, 5)

	users, err := repo.OrderBy("age", "desc").Skip(1).Take(2).Get(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "user-4", users[0].Name)
	assert.Equal(t, "user-3", users[1].Name)

	first, err := repo.OrderBy("age", "desc").First(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-5", first.Name)
}

func TestEagerLoading(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	companies := New[Company](db, WithLogger(nopLogger{}))
	users := newUsers(t, db)

	acme, err := companies.Create(ctx, attrs.Map{"name": "Acme"})
	require.NoError(t, err)
	for _, name := range []string{"a", "b"} {
		_, err := users.Create(ctx, attrs.Map{"name": name, "company_id": acme.ID})
		require.NoError(t, err)
	}

	users.With("Company").With("Company")
	assert.Equal(t, []string{"Company"}, users.Pending().Relations(), "With overwrites")

	loaded, err := users.OrderBy("name").Get(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.NotNil(t, loaded[0].Company)
	assert.Equal(t, "Acme", loaded[0].Company.Name)
	assert.Empty(t, users.Pending().Relations(), "eager loads are cleared too")

	withUsers, err := companies.With("Users").Find(ctx, acme.ID)
	require.NoError(t, err)
	assert.Len(t, withUsers.Users, 2)

	plain, err := users.First(ctx)
	require.NoError(t, err)
	assert.Nil(t, plain.Company)
}

func TestAllIgnoresConditions(t *testing.T) {
	ctx := context.Background()
	repo := newUsers(t, newTestDB(t))
	seedUsers(t, repo, 4)

	users, err := repo.Where("name", "nobody").Take(1).All(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 4)
	assert.True(t, repo.Pending().IsZero())
}

func TestScopes(t *testing.T) {
	ctx := context.Background()
	olderThan := func(q bun.QueryBuilder, args ...any) bun.QueryBuilder {
		return q.Where("? > ?", bun.Ident("age"), args[0])
	}
	repo := newUsers(t, newTestDB(t), WithScope("olderThan", olderThan))
	seedUsers(t, repo, 5)

	count, err := repo.Scope("olderThan", 1).Scope("olderThan", 3).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "a repeated scope replaces its arguments")

	_, err = repo.Scope("unknown").Get(ctx)
	assert.ErrorContains(t, err, `scope "unknown" is not registered`)

	deleted, err := repo.Scope("olderThan", 4).Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestCountAndPaginate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedUsers(t, newUsers(t, db), 35)

	src := input.FromMap(attrs.Map{}, input.WithPath("/users"), input.WithQuery(url.Values{"page": {"2"}}))
	repo := newUsers(t, db, WithInput(src))

	count, err := repo.Where("age", ">", 30).OrderBy("age").Take(1).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count, "ordering and limits do not affect counts")

	page, err := repo.OrderBy("age").Paginate(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, 35, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 2, page.LastPage())
	assert.False(t, page.HasMorePages())
	require.Len(t, page.Items, 15)
	assert.Equal(t, "user-21", page.Items[0].Name)
	assert.Equal(t, "/users?page=1", page.PreviousPageURL())
	assert.True(t, repo.Pending().IsZero())

	page, err = repo.Where("name", "nobody").Paginate(ctx, 20)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Items)

	first, err := newUsers(t, db).OrderBy("age", "desc").Paginate(ctx, 10, "id", "name")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Page)
	require.Len(t, first.Items, 10)
	assert.Equal(t, "user-35", first.Items[0].Name)
	assert.Nil(t, first.Items[0].Email, "only the selected columns are loaded")
}

func TestPaginatePagesPartitionRows(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seeded := seedUsers(t, newUsers(t, db), 35)

	seen := make(map[int64]int)
	for _, tt := range []struct {
		page string
		want int
	}{
		{"1", 20},
		{"2", 15},
	} {
		src := input.FromMap(attrs.Map{}, input.WithQuery(url.Values{"page": {tt.page}}))
		page, err := newUsers(t, db, WithInput(src)).OrderBy("id").Paginate(ctx, 20)
		require.NoError(t, err)
		assert.Equal(t, 35, page.Total)
		require.Len(t, page.Items, tt.want, "page %s", tt.page)
		for _, u := range page.Items {
			seen[u.ID]++
		}
	}

	require.Len(t, seen, 35, "the two pages cover every row")
	for _, u := range seeded {
		assert.Equal(t, 1, seen[u.ID], "user %d appears on exactly one page", u.ID)
	}
}

func TestPaginateArrayResults(t *testing.T) {
	items := []*User{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}, {Name: "e"}}
	src := input.FromMap(attrs.Map{"page": 3}, input.WithPath("/u"))
	repo := New[User](nil, WithInput(src))

	page := repo.PaginateArrayResults(items, 2)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.Page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "e", page.Items[0].Name)
	assert.Equal(t, "/u", page.Path)
}

func TestFindAndFindBy(t *testing.T) {
	ctx := context.Background()
	repo := newUsers(t, newTestDB(t))
	users := seedUsers(t, repo, 2)

	found, err := repo.Find(ctx, users[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "user-2", found.Name)

	found, err = repo.Where("name", "nobody").FindBy(ctx, "name", "user-1")
	require.NoError(t, err, "pending conditions are discarded")
	assert.Equal(t, users[0].ID, found.ID)

	_, err = repo.Find(ctx, 999)
	require.ErrorIs(t, err, types.ErrNotFound)
	var nf *types.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "User", nf.Model)
	assert.Equal(t, 999, nf.Key)
	assert.EqualError(t, err, "User [999]: record not found")

	_, err = repo.Where("name", "nobody").First(ctx)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestGetAll(t *testing.T) {
	ctx := context.Background()
	repo := newUsers(t, newTestDB(t))
	seedUsers(t, repo, 3)

	users, err := repo.GetAll(ctx, []string{"id", "name"}, "age", "desc")
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "user-3", users[0].Name)
	assert.Nil(t, users[0].Age)

	users, err = repo.GetAll(ctx, nil, "", "")
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.NotNil(t, users[0].Age)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	repo := newUsers(t, newTestDB(t))
	seedUsers(t, repo, 5)

	n, err := repo.Where("age", ">=", 4).Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.True(t, repo.Pending().IsZero())

	n, err = repo.Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n, "an unfiltered delete clears the table")

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := newUsers(t, db)

	rollback := errors.New("rollback")
	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := repo.WithTx(tx).Create(ctx, attrs.Map{"name": "temp"}); err != nil {
			return err
		}
		return rollback
	})
	require.ErrorIs(t, err, rollback)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
