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
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/tomoncle/repokit/attrs"
	"github.com/tomoncle/repokit/database"
	"github.com/tomoncle/repokit/types"
)

type Company struct {
	bun.BaseModel `bun:"table:companies,alias:c"`

	ID    int64   `bun:"id,pk,autoincrement"`
	Name  string  `bun:"name,notnull"`
	Users []*User `bun:"rel:has-many,join:id=company_id"`
}

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID            int64    `bun:"id,pk,autoincrement"`
	Name          string   `bun:"name,notnull"`
	Email         *string  `bun:"email"`
	Age           *int64   `bun:"age"`
	Password      string   `bun:"password"`
	RememberToken *string  `bun:"remember_token"`
	CompanyID     *int64   `bun:"company_id"`
	Company       *Company `bun:"rel:belongs-to,join:company_id=id"`
}

func (User) Fillable() []string {
	return []string{"name", "email", "age", "company_id"}
}

type Setting struct {
	bun.BaseModel `bun:"table:settings,alias:s"`

	ID        int64            `bun:"id,pk,autoincrement"`
	Key       string           `bun:"key,notnull,unique"`
	Value     types.JsonObject `bun:"value,type:json"`
	Priority  int              `bun:"priority"`
	UpdatedAt time.Time        `bun:"updated_at,nullzero"`
}

type logLine struct {
	bun.BaseModel `bun:"table:log_lines"`

	Message string `bun:"message"`
}

type nopLogger struct{}

func (nopLogger) SetLevel(database.LogLevel)   {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// opRecorder collects the operation of every query run after it is added.
type opRecorder struct {
	mu  sync.Mutex
	ops []string
}

func (h *opRecorder) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *opRecorder) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ops = append(h.ops, event.Operation())
}

func (h *opRecorder) Ops() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.ops...)
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	cfg := database.DefaultConnectionConfig()
	cfg.Type = "sqlite"
	cfg.DBName = filepath.Join(t.TempDir(), "repository.db")
	cfg.MaxOpenConns = 1
	cfg.MaxIdleConns = 1
	cfg.SlowQueryTime = 0

	registry := database.NewModelRegistry()
	registry.Register(database.NewModelAdapter((*Company)(nil), 10))
	registry.Register(database.NewModelAdapter((*User)(nil), 20))
	registry.Register(database.NewModelAdapter((*Setting)(nil), 30))

	m := database.NewDatabaseManager(cfg,
		database.WithModelRegistry(registry),
		database.WithManagerLogger(nopLogger{}),
	)
	ctx := context.Background()
	require.NoError(t, m.Connect(ctx))
	t.Cleanup(func() { _ = m.Disconnect() })
	require.NoError(t, m.RunMigrations(ctx))
	return m.GetDB()
}

func newUsers(t *testing.T, db bun.IDB, opts ...Option) *Repository[User] {
	t.Helper()
	repo := New[User](db, append([]Option{WithLogger(nopLogger{})}, opts...)...)
	_, err := repo.Model()
	require.NoError(t, err)
	return repo
}

// seedUsers creates n users named user-1..user-n with age equal to their
// index.
func seedUsers(t *testing.T, repo *Repository[User], n int) []*User {
	t.Helper()
	users := make([]*User, 0, n)
	for i := 1; i <= n; i++ {
		u, err := repo.Create(context.Background(), attrs.Map{
			"name":  fmt.Sprintf("user-%d", i),
			"email": fmt.Sprintf("user-%d@example.com", i),
			"age":   i,
		})
		require.NoError(t, err)
		users = append(users, u)
	}
	return users
}

func ptr[V any](v V) *V { return &v }
