// SPDX-License-Identifier: Apache-2.0
/*
Copyright (C) 2026 The MiStomp Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logging builds the zap loggers used by the host.
package logging

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Formats supported by New.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config selects the level and encoding of a logger.
type Config struct {
	// Level is a zap level name, info when empty.
	Level string `json:"level" yaml:"level" toml:"level"`

	// Format is FormatConsole (the default) or FormatJSON.
	Format string `json:"format" yaml:"format" toml:"format"`
}

// Validate checks the level and the format.
func (c Config) Validate() error {
	if _, err := c.level(); err != nil {
		return err
	}
	switch c.Format {
	case "", FormatConsole, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid log format %q", c.Format)
	}
}

func (c Config) level() (zapcore.Level, error) {
	level := zapcore.InfoLevel
	if c.Level != "" {
		if err := level.Set(strings.ToLower(c.Level)); err != nil {
			return level, fmt.Errorf("invalid log level %q", c.Level)
		}
	}
	return level, nil
}

// New returns a logger writing to stderr. Every entry carries the session
// field, a random identifier of the process.
func New(cfg Config) (*zap.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := cfg.level()

	var zc zap.Config
	switch cfg.Format {
	case "", FormatConsole:
		zc = zap.NewDevelopmentConfig()
		zc.Development = false
		zc.DisableStacktrace = true
	default:
		zc = zap.NewProductionConfig()
		zc.Sampling = nil
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("session", uuid.NewString())), nil
}
