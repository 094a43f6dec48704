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

// Package config loads the configuration of the host from YAML, JSON or
// TOML files.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/BowmanRA/mistomp/pkg/bridge"
	"github.com/BowmanRA/mistomp/pkg/logging"
)

// Default values.
const (
	DefaultVersion         = "1"
	DefaultClientName      = "MiStomp"
	DefaultBlockSize       = 512
	DefaultPluginExtension = ".so"
)

//go:embed schema.json
var schema string

// ErrInvalid is wrapped by the errors reporting a configuration that does
// not validate.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Version string         `json:"version" yaml:"version" toml:"version"`
	Ladspa  Ladspa         `json:"ladspa" yaml:"ladspa" toml:"ladspa"`
	Host    Host           `json:"host" yaml:"host" toml:"host"`
	Log     logging.Config `json:"log" yaml:"log" toml:"log"`
}

type Ladspa struct {
	// PluginDirectory is searched before LADSPA_PATH and the default
	// directories.
	PluginDirectory     string `json:"pluginDirectory" yaml:"pluginDirectory" toml:"pluginDirectory"`
	PluginFileExtension string `json:"pluginFileExtension" yaml:"pluginFileExtension" toml:"pluginFileExtension"`
}

type Host struct {
	ClientName string `json:"clientName" yaml:"clientName" toml:"clientName"`
	BlockSize  uint32 `json:"blockSize" yaml:"blockSize" toml:"blockSize"`
	Plugin     Plugin `json:"plugin" yaml:"plugin" toml:"plugin"`

	// Controls maps a control input, by index or by port name, to its
	// initial value. Ports not listed start at their default value.
	Controls map[string]float32 `json:"controls" yaml:"controls" toml:"controls"`

	ConnectPolicy string `json:"connectPolicy" yaml:"connectPolicy" toml:"connectPolicy"`

	// AutoConnect connects the paths to the physical capture and playback
	// ports of the server.
	AutoConnect bool   `json:"autoConnect" yaml:"autoConnect" toml:"autoConnect"`
	Paths       []Path `json:"paths" yaml:"paths" toml:"paths"`
}

// Plugin selects the hosted plugin by unique ID, label, or both.
type Plugin struct {
	UniqueID uint64 `json:"uniqueId" yaml:"uniqueId" toml:"uniqueId"`
	Label    string `json:"label" yaml:"label" toml:"label"`
}

// IsSet reports whether a plugin is selected.
func (p Plugin) IsSet() bool {
	return p.UniqueID != 0 || p.Label != ""
}

func (p Plugin) String() string {
	switch {
	case p.UniqueID != 0 && p.Label != "":
		return fmt.Sprintf("%s (%d)", p.Label, p.UniqueID)
	case p.UniqueID != 0:
		return fmt.Sprintf("%d", p.UniqueID)
	default:
		return p.Label
	}
}

// Path is a pair of server ports named <name>_in and <name>_out. The input
// goes through the plugin unless the path is dry.
type Path struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	Dry  bool   `json:"dry" yaml:"dry" toml:"dry"`

	// PluginInput and PluginOutput are plugin port indices. When nil, the
	// first audio input and the first audio output are used.
	PluginInput  *uint32 `json:"pluginInput" yaml:"pluginInput" toml:"pluginInput"`
	PluginOutput *uint32 `json:"pluginOutput" yaml:"pluginOutput" toml:"pluginOutput"`

	// Gain scales the output of the path, 1 when nil.
	Gain *float32 `json:"gain" yaml:"gain" toml:"gain"`
}

// GainOrDefault returns the gain of the path.
func (p Path) GainOrDefault() float32 {
	if p.Gain == nil {
		return 1
	}
	return *p.Gain
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Version: DefaultVersion,
		Ladspa: Ladspa{
			PluginFileExtension: DefaultPluginExtension,
		},
		Host: Host{
			ClientName:    DefaultClientName,
			BlockSize:     DefaultBlockSize,
			ConnectPolicy: bridge.ConnectEveryBlock.String(),
			AutoConnect:   true,
			Paths:         defaultPaths(),
		},
		Log: logging.Config{
			Level:  "info",
			Format: logging.FormatConsole,
		},
	}
}

// defaultPaths sends the input of "pre" through the plugin and copies the
// input of "post" unchanged.
func defaultPaths() []Path {
	return []Path{
		{Name: "pre"},
		{Name: "post", Dry: true},
	}
}

// Load reads a configuration file. The format is chosen from the file
// extension: .yaml, .yml, .json or .toml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a configuration in the format named by ext, validates it,
// and returns it merged over the defaults.
func Parse(data []byte, ext string) (*Config, error) {
	var unmarshal func([]byte, any) error
	switch strings.ToLower(ext) {
	case ".yaml", ".yml", ".json":
		unmarshal = yaml.Unmarshal
	case ".toml":
		unmarshal = func(b []byte, v any) error {
			return toml.NewDecoder(bytes.NewReader(b)).Decode(v)
		}
	default:
		return nil, fmt.Errorf("unsupported configuration format %q", ext)
	}

	var doc map[string]any
	if err := unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	c := Default()
	c.Host.Paths = nil
	if err := unmarshal(data, c); err != nil {
		return nil, err
	}
	if c.Host.Paths == nil {
		c.Host.Paths = defaultPaths()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func validateDocument(doc map[string]any) error {
	if doc == nil {
		doc = map[string]any{}
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewGoLoader(doc))
	if err != nil {
		return err
	}
	if !result.Valid() {
		// return first error
		e := result.Errors()[0]
		return fmt.Errorf("%w: %s: %s", ErrInvalid, e.Field(), e.Description())
	}
	return nil
}

// Validate checks the constraints that the schema cannot express.
func (c *Config) Validate() error {
	if b := c.Host.BlockSize; b == 0 || b&(b-1) != 0 {
		return fmt.Errorf("%w: block size %d is not a power of two", ErrInvalid, b)
	}
	if _, err := bridge.ParsePolicy(c.Host.ConnectPolicy); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, err.Error())
	}
	if len(c.Host.Paths) == 0 {
		return fmt.Errorf("%w: no audio path", ErrInvalid)
	}
	names := map[string]bool{}
	for _, p := range c.Host.Paths {
		if p.Name == "" {
			return fmt.Errorf("%w: path without a name", ErrInvalid)
		}
		if names[p.Name] {
			return fmt.Errorf("%w: duplicate path %q", ErrInvalid, p.Name)
		}
		names[p.Name] = true
		if p.Dry && (p.PluginInput != nil || p.PluginOutput != nil) {
			return fmt.Errorf("%w: dry path %q cannot use plugin ports", ErrInvalid, p.Name)
		}
		if p.Gain != nil && *p.Gain < 0 {
			return fmt.Errorf("%w: negative gain on path %q", ErrInvalid, p.Name)
		}
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, err.Error())
	}
	return nil
}

// Policy returns the connect policy of the bridge.
func (c *Config) Policy() bridge.ConnectPolicy {
	p, _ := bridge.ParsePolicy(c.Host.ConnectPolicy)
	return p
}
