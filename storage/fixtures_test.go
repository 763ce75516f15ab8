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

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/tomoncle/repokit/config"
	"github.com/tomoncle/repokit/database"
	"github.com/tomoncle/repokit/input"
)

type nopLogger struct{}

func (nopLogger) SetLevel(database.LogLevel)   {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type profile struct {
	bun.BaseModel `bun:"table:profiles,alias:p"`

	ID    int64   `bun:"id,pk,autoincrement"`
	Name  string  `bun:"name,notnull"`
	Photo *string `bun:"photo"`
}

const filesConfig = `
file_types: [images]
models:
  home:
    json_storage: true
    storage_path: %q
    public_path: /files/home
    images:
      banner:
        name: home-banner
        authorized_extensions: [png, jpg]
        available_sizes:
          thumb: {width: 40, height: 40}
          zoom: {width: 300}
  profiles:
    storage_path: %q
    public_path: /files/profiles
    images:
      photo:
        name: Profile Photo
        authorized_extensions: [png]
        available_sizes:
          admin: {width: 40, height: 40}
`

// loadFiles returns the home (JSON storage) and profiles (record storage)
// configurations, both rooted in a temporary directory.
func loadFiles(t *testing.T) (home, profiles *config.ModelFiles) {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Parse([]byte(fmt.Sprintf(filesConfig,
		filepath.Join(dir, "home"), filepath.Join(dir, "profiles"))))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	home, err = cfg.Model("home")
	require.NoError(t, err)
	profiles, err = cfg.Model("profiles")
	require.NoError(t, err)
	return home, profiles
}

func writeAttributes(t *testing.T, files *config.ModelFiles, content any) {
	t.Helper()
	data, err := json.Marshal(content)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(files.StoragePath(), 0o755))
	require.NoError(t, os.WriteFile(files.StoragePath(AttributesFile), data, 0o644))
}

func writeSource(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

// uploadInput builds a multipart request carrying one file under field.
func uploadInput(t *testing.T, field, filename, body string) input.Source {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	r.Header.Set("Content-Type", w.FormDataContentType())
	src, err := input.FromRequest(r)
	require.NoError(t, err)
	return src
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	cfg := database.DefaultConnectionConfig()
	cfg.Type = "sqlite"
	cfg.DBName = filepath.Join(t.TempDir(), "storage.db")
	cfg.MaxOpenConns = 1
	cfg.MaxIdleConns = 1
	cfg.SlowQueryTime = 0

	registry := database.NewModelRegistry()
	registry.Register(database.NewModelAdapter((*profile)(nil), 10))

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
