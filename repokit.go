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

package repokit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"

	"github.com/tomoncle/repokit/config"
	"github.com/tomoncle/repokit/database"
	"github.com/tomoncle/repokit/input"
	"github.com/tomoncle/repokit/repository"
	"github.com/tomoncle/repokit/storage"
)

// ErrNotInitialized is returned when the global database is not connected.
var ErrNotInitialized = errors.New("repokit: database not initialized")

// Config is the application level configuration document.
type Config struct {
	Database   database.Config `yaml:"database" json:"database"`
	Repository config.Config   `yaml:"repository" json:"repository"`
}

// DefaultConfig returns database defaults and an empty file configuration.
func DefaultConfig() *Config {
	return &Config{Database: *database.DefaultConfig()}
}

// ParseConfig decodes YAML over DefaultConfig.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads a YAML configuration file and applies DB_* environment
// overrides to the connection section.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	database.OverrideFromEnv(&cfg.Database.Connection)
	return cfg, nil
}

var (
	filesMu sync.RWMutex
	files   *config.Config
)

// Init validates the file configuration and connects the global database.
func Init(ctx context.Context, cfg *Config, opts ...database.ManagerOption) error {
	if cfg == nil {
		return fmt.Errorf("repokit: configuration cannot be empty")
	}
	if err := cfg.Repository.Validate(); err != nil {
		return err
	}
	if _, err := database.InitDB(ctx, &cfg.Database, opts...); err != nil {
		return err
	}
	filesMu.Lock()
	files = &cfg.Repository
	filesMu.Unlock()
	return nil
}

// Close disconnects the global database.
func Close() error {
	return database.CloseDB()
}

// Files returns the file configuration of model key as loaded by Init.
func Files(key string) (*config.ModelFiles, error) {
	filesMu.RLock()
	defer filesMu.RUnlock()
	return files.Model(key)
}

// Service hands out repositories for T bound to the global database. It is
// safe for concurrent use; the repositories it returns are not, so take one
// per request.
type Service[T any] struct {
	opts []repository.Option
}

// NewService records options applied to every repository it creates.
func NewService[T any](opts ...repository.Option) *Service[T] {
	return &Service[T]{opts: slices.Clone(opts)}
}

// For returns a fresh repository, bound to src when it is not nil.
func (s *Service[T]) For(src input.Source) *repository.Repository[T] {
	opts := slices.Clone(s.opts)
	if src != nil {
		opts = append(opts, repository.WithInput(src))
	}
	return repository.New[T](database.GetDB(), opts...)
}

// Repository returns a fresh repository without request input.
func (s *Service[T]) Repository() *repository.Repository[T] {
	return s.For(nil)
}

// Transaction runs fn with a repository bound to a new transaction that is
// committed when fn returns nil and rolled back otherwise.
func (s *Service[T]) Transaction(ctx context.Context, fn func(ctx context.Context, repo *repository.Repository[T]) error) error {
	db := database.GetDB()
	if db == nil {
		return ErrNotInitialized
	}
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, s.For(nil).WithTx(tx))
	})
}

// Images returns the image manager of model key for the record identified by
// id. Names are kept on that record, or in the model's attributes.json when
// its configuration enables json_storage.
func (s *Service[T]) Images(key string, id any, opts ...storage.Option) (*storage.Images, error) {
	files, err := Files(key)
	if err != nil {
		return nil, err
	}
	return storage.NewImages(files, storage.TargetFor(files, s.Repository(), id, opts...), opts...), nil
}
