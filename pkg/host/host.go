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

// Package host runs a LADSPA plugin inside a JACK client.
package host

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BowmanRA/mistomp/pkg/bridge"
	"github.com/BowmanRA/mistomp/pkg/config"
	"github.com/BowmanRA/mistomp/pkg/jack"
	"github.com/BowmanRA/mistomp/pkg/ladspa"
	"github.com/BowmanRA/mistomp/pkg/loader"
	"github.com/BowmanRA/mistomp/pkg/plugin"
)

// DefaultMonitorInterval is the period of the failure reports of the
// bridge.
const DefaultMonitorInterval = time.Second

// ErrNoPlugin is returned when the configuration does not select a plugin.
var ErrNoPlugin = errors.New("no plugin selected")

// Server is the audio server the plugin runs in. It is implemented by
// *jack.Client.
type Server interface {
	bridge.AudioServer
	SetBlockSize(frames uint32) error
	RegisterPort(name string, dir jack.Direction) (bridge.Port, error)
	PortName(p bridge.Port) string
	PhysicalPorts(dir jack.Direction) ([]string, error)
	Connect(src, dst string) error
	Activate() error
	Deactivate() error
	Close() error
}

var _ Server = (*jack.Client)(nil)

type Options struct {
	Config *config.Config
	Logger *zap.Logger

	// Server is opened with the client name of the configuration when nil.
	Server Server

	// Library is used instead of searching the plugin directories when
	// non-nil.
	Library *loader.Library

	MonitorInterval time.Duration
}

// Match returns the matcher selecting the configured plugin. When both a
// unique ID and a label are set, both must match.
func Match(p config.Plugin) (loader.Match, error) {
	if !p.IsSet() {
		return nil, ErrNoPlugin
	}
	return func(d *ladspa.Descriptor) bool {
		if p.UniqueID != 0 && d.UniqueID != p.UniqueID {
			return false
		}
		return p.Label == "" || d.Label == p.Label
	}, nil
}

// session holds what Run sets up, so that it can be torn down in order
// from any point of the setup.
type session struct {
	logger *zap.Logger
	server Server
	lib    *loader.Library
	inst   *plugin.Instance
	bridge *bridge.Bridge
	active bool
}

// Run hosts the configured plugin until ctx is done. Both the server and
// the library are closed before Run returns, including when they are given
// in opts.
func Run(ctx context.Context, opts Options) (err error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.MonitorInterval
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}

	s := &session{logger: logger, server: opts.Server, lib: opts.Library}
	defer func() {
		err = errors.Join(err, s.shutdown())
	}()

	match, err := Match(cfg.Host.Plugin)
	if err != nil {
		return err
	}
	var d *ladspa.Descriptor
	if s.lib != nil {
		d, err = s.lib.Find(match)
	} else {
		dirs := loader.SearchPath(cfg.Ladspa.PluginDirectory)
		s.lib, d, err = loader.FindInDirs(dirs, cfg.Ladspa.PluginFileExtension, match)
	}
	if err != nil {
		return fmt.Errorf("finding plugin %s: %w", cfg.Host.Plugin, err)
	}
	logger.Info("plugin found",
		zap.String("module", s.lib.Path()),
		zap.Stringer("plugin", d),
		zap.Uint32("ports", d.PortCount))

	if s.server == nil {
		client, err := jack.Open(cfg.Host.ClientName)
		if err != nil {
			return err
		}
		s.server = client
	}
	if b := cfg.Host.BlockSize; b != 0 && b != s.server.BlockSize() {
		if err := s.server.SetBlockSize(b); err != nil {
			logger.Warn("cannot change the block size", zap.Uint32("blockSize", b), zap.Error(err))
		}
	}
	sampleRate := s.server.SampleRate()
	logger.Info("audio server ready",
		zap.Uint32("sampleRate", sampleRate),
		zap.Uint32("blockSize", s.server.BlockSize()))

	s.inst, err = plugin.Instantiate(s.lib, d, sampleRate)
	if err != nil {
		return err
	}
	controls, err := resolveControls(d, cfg.Host.Controls)
	if err != nil {
		return err
	}
	if err := s.inst.SetControlDefaults(controls); err != nil {
		return err
	}

	bc, ports, err := s.bindings(d, cfg)
	if err != nil {
		return err
	}
	s.bridge, err = bridge.New(s.server, s.inst, bc)
	if err != nil {
		return err
	}
	if err := s.bridge.Attach(); err != nil {
		return err
	}
	if err := s.inst.Activate(); err != nil {
		return err
	}
	if err := s.server.Activate(); err != nil {
		return err
	}
	s.active = true
	logger.Info("processing", zap.Stringer("connectPolicy", bc.Policy))

	if cfg.Host.AutoConnect {
		s.autoConnect(ports)
	}

	monitorCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.bridge.Monitor(monitorCtx, logger, interval)
	}()
	<-ctx.Done()
	stop()
	<-done
	return nil
}

// resolveControls maps control values keyed by port index or name to port
// indices.
func resolveControls(d *ladspa.Descriptor, controls map[string]float32) (map[uint32]float32, error) {
	res := make(map[uint32]float32, len(controls))
	for key, v := range controls {
		if i, err := strconv.ParseUint(key, 10, 32); err == nil {
			res[uint32(i)] = v
			continue
		}
		p, ok := d.PortByName(key)
		if !ok {
			return nil, fmt.Errorf("%w: no port named %q", ladspa.ErrPortRange, key)
		}
		res[p.Index] = v
	}
	return res, nil
}

// pathPorts are the server ports of a path.
type pathPorts struct {
	name    string
	in, out bridge.Port
}

// bindings registers the server ports of every path and builds the bridge
// configuration. Plugin audio ports used by no path are given scratch
// buffers.
func (s *session) bindings(d *ladspa.Descriptor, cfg *config.Config) (bridge.Config, []pathPorts, error) {
	bc := bridge.Config{Policy: cfg.Policy()}
	inputs, outputs := d.AudioInputs(), d.AudioOutputs()
	used := map[uint32]bool{}

	var ports []pathPorts
	for _, p := range cfg.Host.Paths {
		pp := pathPorts{name: p.Name}
		var err error
		if pp.in, err = s.server.RegisterPort(p.Name+"_in", jack.Input); err != nil {
			return bc, nil, err
		}
		if pp.out, err = s.server.RegisterPort(p.Name+"_out", jack.Output); err != nil {
			return bc, nil, err
		}
		ports = append(ports, pp)

		if p.Dry {
			bc.Sends = append(bc.Sends, bridge.Send{From: pp.in, To: pp.out, Gain: p.GainOrDefault()})
			continue
		}
		in, err := pluginPort(d, p.PluginInput, inputs, ladspa.Port.IsAudioInput)
		if err != nil {
			return bc, nil, fmt.Errorf("path %s: %w", p.Name, err)
		}
		out, err := pluginPort(d, p.PluginOutput, outputs, ladspa.Port.IsAudioOutput)
		if err != nil {
			return bc, nil, fmt.Errorf("path %s: %w", p.Name, err)
		}
		bc.Inputs = append(bc.Inputs, bridge.InputBinding{Port: pp.in, PluginPort: in})
		bc.Outputs = append(bc.Outputs, bridge.OutputBinding{Port: pp.out, PluginPort: out, Gain: p.GainOrDefault()})
		used[in], used[out] = true, true
	}

	for _, i := range append(inputs, outputs...) {
		if !used[i] {
			bc.Scratch = append(bc.Scratch, i)
		}
	}
	return bc, ports, nil
}

func pluginPort(d *ladspa.Descriptor, index *uint32, candidates []uint32, ok func(ladspa.Port) bool) (uint32, error) {
	if index == nil {
		if len(candidates) == 0 {
			return 0, fmt.Errorf("%w: plugin has no suitable audio port", ladspa.ErrUnsupportedPlugin)
		}
		return candidates[0], nil
	}
	if *index >= d.PortCount {
		return 0, fmt.Errorf("%w: %d", ladspa.ErrPortRange, *index)
	}
	if p := d.Port(*index); !ok(p) {
		return 0, fmt.Errorf("port %d (%s) is a %s port", p.Index, p.Name, p.Descriptor)
	}
	return *index, nil
}

// autoConnect connects the i-th path to the i-th physical capture and
// playback ports.
func (s *session) autoConnect(ports []pathPorts) {
	capture, err := s.server.PhysicalPorts(jack.Output)
	if err != nil {
		s.logger.Warn("cannot list capture ports", zap.Error(err))
	}
	playback, err := s.server.PhysicalPorts(jack.Input)
	if err != nil {
		s.logger.Warn("cannot list playback ports", zap.Error(err))
	}
	for i, p := range ports {
		if i < len(capture) {
			s.connect(capture[i], s.server.PortName(p.in))
		} else {
			s.logger.Warn("no capture port for path", zap.String("path", p.name))
		}
		if i < len(playback) {
			s.connect(s.server.PortName(p.out), playback[i])
		} else {
			s.logger.Warn("no playback port for path", zap.String("path", p.name))
		}
	}
}

func (s *session) connect(src, dst string) {
	if err := s.server.Connect(src, dst); err != nil {
		s.logger.Warn("auto-connect failed", zap.Error(err))
		return
	}
	s.logger.Debug("connected", zap.String("source", src), zap.String("destination", dst))
}

// shutdown stops the server callbacks before the plugin is destroyed, and
// destroys the plugin before its module is unloaded.
func (s *session) shutdown() error {
	var errs []error
	if s.server != nil && s.active {
		errs = append(errs, s.server.Deactivate())
	}
	if s.bridge != nil {
		st := s.bridge.Stats()
		s.logger.Info("stopped",
			zap.Uint64("blocks", st.Blocks),
			zap.Uint64("failures", st.Failures))
	}
	if s.inst != nil {
		errs = append(errs, s.inst.Cleanup())
	}
	if s.bridge != nil {
		errs = append(errs, s.bridge.Close())
	}
	if s.lib != nil {
		errs = append(errs, s.lib.Close())
	}
	if s.server != nil {
		errs = append(errs, s.server.Close())
	}
	return errors.Join(errs...)
}
