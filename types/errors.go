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

package types

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the repository layer. Callers match them with
// errors.Is.
var (
	ErrNotFound             = errors.New("record not found")
	ErrNoModelConfigured    = errors.New("no model configured")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// NotFoundError names the model and key of a record that does not exist.
type NotFoundError struct {
	Model string
	Key   any
}

func (e *NotFoundError) Error() string {
	if e.Key == nil {
		return fmt.Sprintf("%s: %v", e.Model, ErrNotFound)
	}
	return fmt.Sprintf("%s [%v]: %v", e.Model, e.Key, ErrNotFound)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConfigError points at the configuration key that failed validation.
type ConfigError struct {
	Path   string
	Reason string
}

// NewConfigError formats the reason with args.
func NewConfigError(path string, format string, args ...any) *ConfigError {
	return &ConfigError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: %s", ErrInvalidConfiguration, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrInvalidConfiguration, e.Path, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfiguration }
